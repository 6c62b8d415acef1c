// Command timeline-server runs the long-lived timeline engine process: an
// HTTP ingest endpoint for raw samples from the external signal layer, a
// debug admin mux (tsweb/tailsql), an optional gRPC event relay, and a
// periodic save ticker. Grounded on cmd/radar/radar.go's overall shape:
// flag-parsed config, signal.NotifyContext for graceful shutdown, a
// WaitGroup around the HTTP server goroutine.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/timelineengine/internal/timeline/classify"
	"github.com/banshee-data/timelineengine/internal/timeline/config"
	"github.com/banshee-data/timelineengine/internal/timeline/engine"
	"github.com/banshee-data/timelineengine/internal/timeline/events"
	"github.com/banshee-data/timelineengine/internal/timeline/persistence"
	"github.com/banshee-data/timelineengine/internal/timeline/sample"
)

var (
	listen      = flag.String("listen", ":8090", "HTTP listen address for the ingest/debug server")
	dbPathFlag  = flag.String("db-path", "timeline.db", "path to sqlite DB file")
	configFile  = flag.String("config", "", "path to JSON tuning configuration file (defaults built in if unset)")
	grpcListen  = flag.String("grpc-listen", "", "optional gRPC event relay listen address; disabled if empty")
	saveEvery   = flag.Duration("save-interval", 30*time.Second, "periodic save tick regardless of dirty count")
)

func main() {
	flag.Parse()

	cfg := config.MustLoadDefaultConfig(*configFile, func(format string, v ...interface{}) {
		log.Printf(format, v...)
	})

	db, err := persistence.Open(*dbPathFlag)
	if err != nil {
		log.Fatalf("timeline-server: open db: %v", err)
	}
	defer db.Close()

	store := persistence.NewSQLiteStore(db)
	eng := engine.New(store, classify.Stub{}, cfg)

	var bridge *events.GRPCBridge
	if *grpcListen != "" {
		bridge = events.NewGRPCBridge(events.GRPCBridgeConfig{ListenAddr: *grpcListen}, eng.Events)
		if err := bridge.Start(); err != nil {
			log.Fatalf("timeline-server: grpc bridge: %v", err)
		}
		defer bridge.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng.Run(ctx.Done())

	ticker := time.NewTicker(*saveEvery)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := eng.Flush(); err != nil {
					log.Printf("timeline-server: periodic save failed: %v", err)
				}
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ingest", ingestHandler(eng))
	db.AttachAdminRoutes(mux)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		srv := &http.Server{Addr: *listen, Handler: mux}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("timeline-server: http server error: %v", err)
		}
	}()

	wg.Wait()
	if err := eng.Flush(); err != nil {
		log.Printf("timeline-server: final save failed: %v", err)
	}
	log.Printf("timeline-server: graceful shutdown complete")
}

// ingestHandler decodes a JSON raw observation and routes it through the
// engine. The external raw-signal layer (out of scope per spec.md §1) is
// expected to POST one observation per request.
func ingestHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var raw sample.Raw
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if raw.Date.IsZero() {
			raw.Date = time.Now()
		}
		eng.Ingest(raw)
		w.WriteHeader(http.StatusAccepted)
	}
}
