package persistence

import (
	"fmt"
	"log"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// Stats reports the row counts exposed on the debug surface.
type Stats struct {
	ItemCount   int
	SampleCount int
}

// GetStats reads the current item/sample row counts.
func (db *DB) GetStats() (Stats, error) {
	items, err := db.CountRows("item")
	if err != nil {
		return Stats{}, err
	}
	samples, err := db.CountRows("sample")
	if err != nil {
		return Stats{}, err
	}
	return Stats{ItemCount: items, SampleCount: samples}, nil
}

// AttachAdminRoutes mounts a tsweb debug surface plus a tailsql live-SQL
// console over the item/sample tables, grounded on internal/db/db.go's
// AttachAdminRoutes.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("persistence: failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://timeline.db", db.DB, &tailsql.DBOptions{
		Label: "Timeline DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("db-stats", "item/sample row counts (JSON)", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats, err := db.GetStats()
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to get stats: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"items":%d,"samples":%d}`, stats.ItemCount, stats.SampleCount)
	}))
}
