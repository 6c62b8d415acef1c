// Package engine wires the timeline subsystems into one value type: the
// §9 REDESIGN FLAGS call for "a TimelineEngine value owns Store, Recorder,
// Classifier, and an observer registry. No process-wide mutable state
// beyond logging" in place of the singleton/NotificationCenter pattern an
// object-oriented port would reach for.
//
// Grounded on internal/lidar/pipeline/tracking_pipeline.go's Pipeline
// type: one struct owning the frame callback, the background store, and
// the publisher, with a single Run goroutine driving them. Engine plays
// the same role for one device's sample stream, generalised to also own
// the merge engine and the periodic save ticker.
package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/timelineengine/internal/timeline/classify"
	"github.com/banshee-data/timelineengine/internal/timeline/config"
	"github.com/banshee-data/timelineengine/internal/timeline/events"
	"github.com/banshee-data/timelineengine/internal/timeline/item"
	"github.com/banshee-data/timelineengine/internal/timeline/merge"
	"github.com/banshee-data/timelineengine/internal/timeline/recorder"
	"github.com/banshee-data/timelineengine/internal/timeline/sample"
	"github.com/banshee-data/timelineengine/internal/timeline/store"
	"github.com/banshee-data/timelineengine/internal/timeline/timelinelog"
)

// ThresholdsFromConfig projects the subset of TuningConfig the item
// package's pair-dispatched rules need.
func ThresholdsFromConfig(c *config.TuningConfig) item.Thresholds {
	return item.Thresholds{
		VisitRadiusMin:              *c.VisitRadiusMin,
		VisitRadiusMax:              *c.VisitRadiusMax,
		MinVisitKeeperDuration:      time.Duration(*c.MinVisitKeeperDurationSeconds * float64(time.Second)),
		MinPathKeeperDuration:       time.Duration(*c.MinPathKeeperDurationSeconds * float64(time.Second)),
		MinPathKeeperDistanceMeters: *c.MinPathKeeperDistanceMeters,
		MinDataGapKeeperDuration:    time.Duration(*c.MinDataGapKeeperDurationSeconds * float64(time.Second)),
		ModeShiftSpeedKph:           *c.ModeShiftSpeedKph,

		MergeableDistanceMultiplier: *c.MergeableDistanceMultiplier,
		MergeableVisitPathFloorM:    *c.MergeableVisitPathFloorM,
		MergeForwardSteps:           *c.MergeForwardSteps,
		MergeBackwardSteps:          *c.MergeBackwardSteps,
		MergeBridgeEnabled:          *c.MergeBridgeEnabled,
	}
}

// Engine owns one device's full processing stack: the identity-map Store,
// the sample-routing Recorder, the merge engine's scoring thresholds, and
// the event Registry external subscribers observe.
type Engine struct {
	Store            *store.Store
	Events           *events.Registry
	cfg              *config.TuningConfig
	th               item.Thresholds
	rec              *recorder.Recorder
	saveEvery        int
	dataGapThreshold time.Duration
}

// New constructs an Engine. classifier may be nil (degrades per
// activityTypeClassifySamples' "feature degrades" contract). persister may
// be nil (Save becomes a no-op, matching store.New's own contract).
func New(persister store.Persister, classifier classify.Classifier, cfg *config.TuningConfig) *Engine {
	if cfg == nil {
		cfg = config.Defaults()
	}
	st := store.New(persister)
	th := ThresholdsFromConfig(cfg)
	registry := events.NewRegistry(0)
	dataGapThreshold := time.Duration(*cfg.DataGapThresholdSeconds * float64(time.Second))

	e := &Engine{Store: st, Events: registry, cfg: cfg, th: th, saveEvery: *cfg.SaveBatchSize, dataGapThreshold: dataGapThreshold}
	st.SetPurgeTTL(time.Duration(*cfg.KeepDeletedItemsForSeconds * float64(time.Second)))

	hooks := recorder.Hooks{
		OnNewItem: func(it *item.Item) { registry.Publish(events.NewItem(it)) },
		OnAppend:  func(it *item.Item, s *sample.Sample) { registry.Publish(events.Updated(it)) },
		OnLink: func(a, b *item.Item) {
			registry.Publish(events.Finalised(a))
			// §4.10: a link spanning more than dataGapThreshold with nothing
			// recorded between a and b gets a synthetic off/off Path bridged
			// in before the merge pass evaluates a's new neighbour.
			if gap := merge.InsertDataGap(st, a, b, e.dataGapThreshold); gap != nil {
				registry.Publish(events.NewItem(gap))
			}
			growingID := b.ID()
			merge.Process(st, a, th, &growingID, e.publishMerge)
		},
	}
	rcfg := recorder.Config{
		SamplesPerMinute:            *cfg.SamplesPerMinute,
		ActivityTypeClassifySamples: *cfg.ActivityTypeClassifySamples,
		ModeShiftSpeedKph:           *cfg.ModeShiftSpeedKph,
		SleepThinningBase:           *cfg.SleepThinningBase,
		Thresholds:                  th,
	}
	e.rec = recorder.New(st, classifier, rcfg, hooks)
	return e
}

// publishMerge is the merge engine's OnMerge hook: every executed merge
// becomes a mergedTimelineItems event for external subscribers.
func (e *Engine) publishMerge(kept uuid.UUID, killed []uuid.UUID) {
	e.Events.Publish(events.Merged(kept, killed, "merge.Process"))
}

func (e *Engine) ingestClosure(raw sample.Raw) func() {
	return func() {
		e.rec.Record(raw)
		if e.Store.DirtyCount() >= e.saveEvery {
			if err := e.Store.Save(false); err != nil {
				timelinelog.Opsf("engine: batch save failed: %v", err)
			}
		}
	}
}

// Ingest routes one raw observation through the recorder, queued onto the
// store's background processing goroutine (§5's single FIFO processing
// queue; requires Run to have been called). The current item is not
// merge-evaluated here: §4.8 only re-evaluates merges once an item stops
// being current (recorder's OnLink hook), since a still-growing item's
// neighbours can't yet be scored against its final extent.
func (e *Engine) Ingest(raw sample.Raw) {
	e.Store.ProcessAsync(e.ingestClosure(raw))
}

// IngestSync runs the same routing step synchronously on the caller's
// goroutine, still serialised against any concurrent Process/ProcessAsync
// caller via the store's processing mutex. Used by tests, and by any
// caller that replays a whole history without a running background
// goroutine.
func (e *Engine) IngestSync(raw sample.Raw) {
	e.Store.Process(e.ingestClosure(raw))
}

// Run starts the store's background processing goroutine and the event
// registry's broadcast loop. Both stop when stop is closed.
func (e *Engine) Run(stop <-chan struct{}) {
	e.Store.Run(stop)
	e.Events.Start(stop)
}

// Flush forces an immediate save regardless of the dirty count.
func (e *Engine) Flush() error {
	return e.Store.Save(true)
}

// SafeDelete implements §4.9 for an externally requested deletion (e.g. a
// user editing their timeline): it merges deadman into its best-scoring
// neighbour rather than leaving a hole, publishing a mergedTimelineItems
// event for the merge it performs.
func (e *Engine) SafeDelete(deadman *item.Item) error {
	var err error
	e.Store.Process(func() {
		err = merge.SafeDelete(e.Store, deadman, e.th, e.publishMerge)
	})
	return err
}
