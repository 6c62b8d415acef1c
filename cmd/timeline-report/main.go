// Command timeline-report renders operator-facing reports over a persisted
// timeline store: an HTML per-item duration bar chart of Visits/Paths via go-echarts,
// and a segment-duration histogram plus per-activity-type breakdown via
// gonum/plot. Grounded on internal/lidar/monitor/gridplotter.go's
// plot.New/plotter.NewLine/Save shape and echarts_handlers.go's chart
// construction style, retargeted from LiDAR grid cells to timeline items.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/timelineengine/internal/timeline/persistence"
)

var (
	dbPathFlag = flag.String("db-path", "timeline.db", "path to sqlite DB file")
	outDir     = flag.String("out", "timeline-report", "output directory for rendered charts")
)

type itemRow struct {
	id           string
	kind         string
	startDate    int64
	endDate      int64
	activityType sql.NullString
}

func main() {
	flag.Parse()

	db, err := persistence.Open(*dbPathFlag)
	if err != nil {
		log.Fatalf("timeline-report: open db: %v", err)
	}
	defer db.Close()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("timeline-report: mkdir %s: %v", *outDir, err)
	}

	rows, err := loadItems(db)
	if err != nil {
		log.Fatalf("timeline-report: load items: %v", err)
	}
	if len(rows) == 0 {
		log.Printf("timeline-report: no items in %s, nothing to render", *dbPathFlag)
		return
	}

	if err := renderGantt(rows, filepath.Join(*outDir, "timeline.html")); err != nil {
		log.Fatalf("timeline-report: gantt chart: %v", err)
	}
	if err := renderDurationHistogram(rows, filepath.Join(*outDir, "durations.png")); err != nil {
		log.Fatalf("timeline-report: duration histogram: %v", err)
	}
	if err := renderActivityBreakdown(rows, filepath.Join(*outDir, "activity-breakdown.png")); err != nil {
		log.Fatalf("timeline-report: activity breakdown: %v", err)
	}
	log.Printf("timeline-report: wrote reports to %s", *outDir)
}

func loadItems(db *persistence.DB) ([]itemRow, error) {
	rs, err := db.Query(`
		SELECT id, kind, startDate, endDate, activityType
		FROM item
		WHERE deleted = 0 AND startDate IS NOT NULL AND endDate IS NOT NULL
		ORDER BY startDate ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var out []itemRow
	for rs.Next() {
		var r itemRow
		if err := rs.Scan(&r.id, &r.kind, &r.startDate, &r.endDate, &r.activityType); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rs.Err()
}

// renderGantt writes an HTML bar chart (go-echarts) with one bar per item in
// start order, labelled with its kind and start time, whose value is its
// duration in minutes. All bars are one series; kinds are not coloured apart.
func renderGantt(rows []itemRow, path string) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Timeline: Visits and Paths"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "start time"}),
	)

	labels := make([]string, 0, len(rows))
	durationMinutes := make([]opts.BarData, 0, len(rows))
	for _, r := range rows {
		start := time.Unix(r.startDate, 0).UTC()
		end := time.Unix(r.endDate, 0).UTC()
		labels = append(labels, fmt.Sprintf("%s %s", r.kind, start.Format("15:04:05")))
		durationMinutes = append(durationMinutes, opts.BarData{Value: end.Sub(start).Minutes()})
	}
	bar.SetXAxis(labels).AddSeries("duration (minutes)", durationMinutes)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return bar.Render(f)
}

// renderDurationHistogram buckets item durations (seconds) into a gonum/plot
// histogram, grounded on gridplotter.go's plot.New/plotter pipeline.
func renderDurationHistogram(rows []itemRow, path string) error {
	values := make(plotter.Values, len(rows))
	for i, r := range rows {
		values[i] = float64(r.endDate - r.startDate)
	}

	p := plot.New()
	p.Title.Text = "Item duration distribution (seconds)"

	hist, err := plotter.NewHist(values, 30)
	if err != nil {
		return fmt.Errorf("new histogram: %w", err)
	}
	p.Add(hist)

	return p.Save(10*vg.Inch, 5*vg.Inch, path)
}

// renderActivityBreakdown counts items per activityType and renders a bar
// chart of the counts.
func renderActivityBreakdown(rows []itemRow, path string) error {
	counts := map[string]int{}
	for _, r := range rows {
		t := "unclassified"
		if r.activityType.Valid && r.activityType.String != "" {
			t = r.activityType.String
		}
		counts[t]++
	}

	p := plot.New()
	p.Title.Text = "Items per activity type"

	values := make(plotter.Values, 0, len(counts))
	names := make([]string, 0, len(counts))
	for t, n := range counts {
		names = append(names, t)
		values = append(values, float64(n))
	}

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return fmt.Errorf("new bar chart: %w", err)
	}
	p.Add(bars)
	p.NominalX(names...)

	return p.Save(10*vg.Inch, 5*vg.Inch, path)
}
