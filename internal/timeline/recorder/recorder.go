// Package recorder implements the sample router state machine (§4.6):
// for each new raw observation, decide whether to append it to the
// current item or start a successor. Routing runs inside the store's
// processing queue; the caller (the engine) does the queuing.
//
// Grounded on internal/lidar/pipeline/tracking_pipeline.go's
// NewFrameCallback: a closure capturing mutable state across calls
// (lastProcessedTime/minFrameInterval throttling, staged pipeline),
// generalised from a frame-rate gate to the Recorder's sample-rate gate
// and from "advance or skip" to the full stationary/moving state machine.
package recorder

import (
	"math"
	"time"

	"github.com/banshee-data/timelineengine/internal/timeline/classify"
	"github.com/banshee-data/timelineengine/internal/timeline/item"
	"github.com/banshee-data/timelineengine/internal/timeline/sample"
	"github.com/banshee-data/timelineengine/internal/timeline/store"
	"github.com/banshee-data/timelineengine/internal/timeline/timelinelog"
)

const modeShiftSpeedKphToMps = 1 / 3.6

// Config bundles the Recorder's tunable knobs, sourced from config.TuningConfig.
type Config struct {
	SamplesPerMinute            float64
	ActivityTypeClassifySamples bool
	ModeShiftSpeedKph           float64
	SleepThinningBase           float64
	Thresholds                  item.Thresholds
}

// Hooks lets callers (the engine, tests) observe routing decisions without
// the recorder depending on the events package directly.
type Hooks struct {
	OnNewItem func(it *item.Item)
	OnAppend  func(it *item.Item, s *sample.Sample)
	OnLink    func(a, b *item.Item)
}

// Recorder is the sample-to-item routing state machine. One Recorder
// tracks one device's current item; the engine owns one Recorder per
// tracked device.
type Recorder struct {
	store      *store.Store
	classifier classify.Classifier
	cfg        Config
	hooks      Hooks

	lastRecorded time.Time
	current      *item.Item
}

// New constructs a Recorder with no current item. classifier may be nil,
// in which case samples are never classified (equivalent to
// activityTypeClassifySamples=false regardless of cfg).
func New(st *store.Store, classifier classify.Classifier, cfg Config, hooks Hooks) *Recorder {
	return &Recorder{store: st, classifier: classifier, cfg: cfg, hooks: hooks}
}

// Current returns the recorder's current item, or nil before the first
// sample arrives.
func (r *Recorder) Current() *item.Item { return r.current }

// Record routes one raw observation. Callers must invoke Record from
// inside a store.Process closure (the engine's ingest path does this via
// store.ProcessAsync); Record itself does not re-enter the queue.
func (r *Recorder) Record(raw sample.Raw) {
	now := raw.Date
	minInterval := time.Duration(60e9/r.cfg.SamplesPerMinute) * time.Nanosecond
	if !r.lastRecorded.IsZero() && now.Sub(r.lastRecorded) < minInterval {
		timelinelog.Tracef("recorder: dropping sample at %s, rate limited", now)
		return
	}
	r.lastRecorded = now

	if r.cfg.ActivityTypeClassifySamples && r.classifier != nil && raw.Classification == nil {
		sm := sample.New(raw)
		cls, err := r.classifier.Classify(sm)
		if err != nil {
			timelinelog.Opsf("recorder: classifier error, degrading: %v", err)
		} else {
			sm.Classification = cls
		}
		r.route(sm)
		return
	}
	r.route(sample.New(raw))
}

func (r *Recorder) route(s *sample.Sample) {
	if r.current == nil {
		r.startFresh(s)
		return
	}

	if r.current.IsDataGap() {
		r.startSuccessor(s)
		return
	}

	wasMoving := r.current.Kind() == item.KindPath
	nowMoving := s.MovingState != sample.MovingStationary

	switch {
	case !wasMoving && !nowMoving:
		r.appendStationary(s)
	case wasMoving && nowMoving:
		r.appendOrSplitMoving(s)
	default:
		r.startSuccessor(s)
	}
}

func (r *Recorder) startFresh(s *sample.Sample) {
	kind := item.KindPath
	if s.MovingState == sample.MovingStationary {
		kind = item.KindVisit
	}
	it := r.newItem(kind, s)
	r.current = it
}

func (r *Recorder) startSuccessor(s *sample.Sample) {
	kind := item.KindPath
	if s.MovingState == sample.MovingStationary {
		kind = item.KindVisit
	}
	prev := r.current
	next := r.newItem(kind, s)
	if prev != nil {
		r.store.Link(prev, next)
		if r.hooks.OnLink != nil {
			r.hooks.OnLink(prev, next)
		}
	}
	r.current = next
}

func (r *Recorder) newItem(kind item.Kind, s *sample.Sample) *item.Item {
	var it *item.Item
	if kind == item.KindVisit {
		it = r.store.CreateVisit(s)
	} else {
		it = r.store.CreatePath(s)
	}
	r.store.MarkDirtyItem(it)
	r.store.MarkDirtySample(s)
	if r.hooks.OnNewItem != nil {
		r.hooks.OnNewItem(it)
	}
	return it
}

func (r *Recorder) appendStationary(s *sample.Sample) {
	r.current.AddSample(s)
	r.store.MarkDirtyItem(r.current)
	r.store.MarkDirtySample(s)
	if r.hooks.OnAppend != nil {
		r.hooks.OnAppend(r.current, s)
	}
	if s.RecordingState.IsSleepLike() {
		r.thinSleepSamples()
	}
}

// thinSleepSamples trims the contiguous run of sleep-like samples at the
// tail of the current item, keeping at most
// floor(sleepThinningBase + ageInQuarterHours(oldestCandidate)), always
// retaining the oldest sleep sample in the run so the recording-outage
// gap it anchors stays visible (§4.6 step 5).
func (r *Recorder) thinSleepSamples() {
	samples := r.current.Samples()
	runStart := len(samples)
	for runStart > 0 && samples[runStart-1].RecordingState.IsSleepLike() {
		runStart--
	}
	run := samples[runStart:]
	if len(run) < 2 {
		return
	}
	oldest := run[0]
	ageQuarterHours := r.lastRecorded.Sub(oldest.Date).Hours() * 4
	keep := int(math.Floor(r.cfg.SleepThinningBase + ageQuarterHours))
	if keep < 1 {
		keep = 1
	}
	if len(run) <= keep {
		return
	}
	// Keep the oldest anchor plus the most recent keep-1 samples; drop the
	// rest of the run (the ones between the anchor and the kept tail).
	toDrop := run[1 : len(run)-(keep-1)]
	for _, s := range toDrop {
		r.current.RemoveSample(s.ID)
	}
	r.store.MarkDirtyItem(r.current)
}

func (r *Recorder) appendOrSplitMoving(s *sample.Sample) {
	currentModeType := r.current.ModeActivityType()
	sType := s.EffectiveActivityType()
	if currentModeType == "" || sType == currentModeType {
		r.current.AddSample(s)
		r.store.MarkDirtyItem(r.current)
		r.store.MarkDirtySample(s)
		if r.hooks.OnAppend != nil {
			r.hooks.OnAppend(r.current, s)
		}
		return
	}

	last := r.current.LastSample()
	modeShiftMps := r.cfg.ModeShiftSpeedKph * modeShiftSpeedKphToMps
	if last != nil && last.Speed > modeShiftMps && s.Speed > modeShiftMps {
		// Both sides are moving fast: treat the type flicker as classifier
		// noise, not a real mode change.
		r.current.AddSample(s)
		r.store.MarkDirtyItem(r.current)
		r.store.MarkDirtySample(s)
		if r.hooks.OnAppend != nil {
			r.hooks.OnAppend(r.current, s)
		}
		return
	}

	r.startSuccessor(s)
}
