// Package item implements the Visit/Path tagged variant (§3, §4.4):
// sample ownership, lazily memoised geometry/aggregate caches, and the
// pair-dispatched distance/containment/keepness operations the merge
// engine and edge sanitiser consume.
//
// Grounded on l5tracks.TrackedObject's cached-derived-quantity fields and
// the "inheritance -> tagged variant" redesign: instead of Visit/Path
// subclasses, Item carries a Kind and kind-specific data lives behind
// kind-dispatched functions rather than a type hierarchy.
package item

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/timelineengine/internal/timeline/classify"
	"github.com/banshee-data/timelineengine/internal/timeline/geo"
	"github.com/banshee-data/timelineengine/internal/timeline/sample"
	"github.com/banshee-data/timelineengine/internal/timeline/timelineerr"
)

// Kind distinguishes the two item variants.
type Kind string

const (
	KindVisit Kind = "visit"
	KindPath  Kind = "path"
)

// Keepness is the {0,1,2} tie-break rank used throughout the merge engine.
type Keepness int

const (
	KeepnessInvalid     Keepness = 0
	KeepnessValid       Keepness = 1
	KeepnessWorthKeeping Keepness = 2
)

// Segment is a maximal run of an item's samples sharing (recordingState,
// activityType).
type Segment struct {
	RecordingState sample.RecordingState
	ActivityType   sample.ActivityType
	Start, End     time.Time
	Samples        []*sample.Sample
}

type aggregateCache struct {
	valid            bool
	dateStart        time.Time
	dateEnd          time.Time
	centre           geo.Point
	radiusMean       float64
	radiusSD         float64
	altitude         float64
	rawActivity      classify.Aggregate
	modeActivityType sample.ActivityType
	segments         []Segment
}

// Item is the engine's mutable graph node. All fields are private; callers
// go through accessor methods so cache invalidation stays centralised.
type Item struct {
	mu sync.Mutex

	id           uuid.UUID
	kind         Kind
	deleted      bool
	mergeLocked  bool
	lastModified time.Time

	samples []*sample.Sample // invariant: strictly date-ordered, unique IDs

	previous *uuid.UUID
	next     *uuid.UUID

	cache aggregateCache
}

// New creates an unlinked, sampleless item of the given kind.
func New(kind Kind) *Item {
	return &Item{
		id:           uuid.New(),
		kind:         kind,
		lastModified: time.Now(),
	}
}

func (it *Item) ID() uuid.UUID   { return it.id }
func (it *Item) Kind() Kind      { return it.kind }
func (it *Item) IsVisit() bool   { return it.kind == KindVisit }
func (it *Item) IsPath() bool    { return it.kind == KindPath }

func (it *Item) Deleted() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.deleted
}

func (it *Item) MergeLocked() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.mergeLocked
}

func (it *Item) SetMergeLocked(v bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.mergeLocked = v
}

func (it *Item) LastModified() time.Time {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.lastModified
}

// Samples returns a snapshot copy of the item's owned samples, in date order.
func (it *Item) Samples() []*sample.Sample {
	it.mu.Lock()
	defer it.mu.Unlock()
	out := make([]*sample.Sample, len(it.samples))
	copy(out, it.samples)
	return out
}

func (it *Item) SampleCount() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return len(it.samples)
}

// PreviousID/NextID return the linked neighbour's id, or nil if unlinked.
func (it *Item) PreviousID() *uuid.UUID {
	it.mu.Lock()
	defer it.mu.Unlock()
	return copyUUID(it.previous)
}

func (it *Item) NextID() *uuid.UUID {
	it.mu.Lock()
	defer it.mu.Unlock()
	return copyUUID(it.next)
}

func copyUUID(u *uuid.UUID) *uuid.UUID {
	if u == nil {
		return nil
	}
	v := *u
	return &v
}

// setPreviousRaw/setNextRaw are the low-level link setters. Store's link
// primitive is the only caller that should ever invoke these, and it must
// repair the mirror side atomically inside the same process() closure to
// preserve I1. Self-links are refused per I4.
func (it *Item) setPreviousRaw(id *uuid.UUID) {
	if id != nil && *id == it.id {
		timelineerr.InvariantViolation("item %s cannot link to itself as previous", it.id)
	}
	it.mu.Lock()
	defer it.mu.Unlock()
	it.previous = copyUUID(id)
	it.lastModified = time.Now()
}

func (it *Item) setNextRaw(id *uuid.UUID) {
	if id != nil && *id == it.id {
		timelineerr.InvariantViolation("item %s cannot link to itself as next", it.id)
	}
	it.mu.Lock()
	defer it.mu.Unlock()
	it.next = copyUUID(id)
	it.lastModified = time.Now()
}

// SetPreviousRaw and SetNextRaw expose the low-level setters to the store
// package, which owns the link-repair primitive (§9 design notes).
func (it *Item) SetPreviousRaw(id *uuid.UUID) { it.setPreviousRaw(id) }
func (it *Item) SetNextRaw(id *uuid.UUID)     { it.setNextRaw(id) }

// AddSample inserts s in date order, invalidates the cache, and stamps
// s.ItemID. Adding to a deleted item is an invariant violation (I5).
func (it *Item) AddSample(s *sample.Sample) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.deleted {
		timelineerr.InvariantViolation("cannot add sample %s to deleted item %s", s.ID, it.id)
	}
	idx := sort.Search(len(it.samples), func(i int) bool {
		return it.samples[i].Date.After(s.Date)
	})
	it.samples = append(it.samples, nil)
	copy(it.samples[idx+1:], it.samples[idx:])
	it.samples[idx] = s
	s.ItemID = it.id
	it.invalidateLocked()
}

// RemoveSample removes the sample with id from this item, if present.
func (it *Item) RemoveSample(id uuid.UUID) {
	it.mu.Lock()
	defer it.mu.Unlock()
	for i, s := range it.samples {
		if s.ID == id {
			it.samples = append(it.samples[:i], it.samples[i+1:]...)
			it.invalidateLocked()
			return
		}
	}
}

// TakeAllSamples removes and returns every sample this item owns, in date
// order, leaving the item empty. Used by merge execution to transfer
// ownership into the keeper.
func (it *Item) TakeAllSamples() []*sample.Sample {
	it.mu.Lock()
	defer it.mu.Unlock()
	out := it.samples
	it.samples = nil
	it.invalidateLocked()
	return out
}

// MarkDeleted sets deleted=true and nulls both links, per I5. The item
// must already have an empty sample list.
func (it *Item) MarkDeleted() {
	it.mu.Lock()
	defer it.mu.Unlock()
	if len(it.samples) != 0 {
		timelineerr.InvariantViolation("cannot delete item %s with %d remaining samples", it.id, len(it.samples))
	}
	it.deleted = true
	it.previous = nil
	it.next = nil
	it.lastModified = time.Now()
}

func (it *Item) invalidateLocked() {
	it.cache = aggregateCache{}
	it.lastModified = time.Now()
}

// ensureCache recomputes the aggregate cache if invalid. It snapshots the
// sample slice under the lock, releases it, computes pure functions over
// the snapshot, then re-acquires the lock to store the result. This keeps
// the mutex non-reentrant while still tolerating callers (e.g. the edge
// sanitiser) that read cached aggregates of an item mid-mutation of a
// neighbour. The cache holds no config-dependent values, so it needs no
// threshold parameters and stays valid across callers using different
// VISIT_RADIUS bounds.
func (it *Item) ensureCache() aggregateCache {
	it.mu.Lock()
	if it.cache.valid {
		c := it.cache
		it.mu.Unlock()
		return c
	}
	samples := make([]*sample.Sample, len(it.samples))
	copy(samples, it.samples)
	it.mu.Unlock()

	c := computeAggregates(samples)

	it.mu.Lock()
	// Only cache the result if nothing changed while we computed unlocked.
	if len(it.samples) == len(samples) {
		it.cache = c
	}
	out := it.cache
	if !out.valid {
		out = c
	}
	it.mu.Unlock()
	return out
}

func computeAggregates(samples []*sample.Sample) aggregateCache {
	c := aggregateCache{valid: true}
	if len(samples) == 0 {
		return c
	}
	c.dateStart = samples[0].Date
	c.dateEnd = samples[len(samples)-1].Date

	var coords []geo.Point
	var weights []float64
	var hAccs []float64
	var altSum float64
	altN := 0
	for _, s := range samples {
		if s.HasUsableCoordinate() {
			coords = append(coords, s.Coordinate)
			weights = append(weights, geo.AccuracyWeight(s.HorizontalAccuracy, 100))
			hAccs = append(hAccs, s.HorizontalAccuracy)
			altSum += s.Altitude
			altN++
		}
	}
	if len(coords) > 0 {
		c.centre = geo.WeightedCentroid(coords, weights)
		c.radiusMean, c.radiusSD = geo.RadiusStats(c.centre, coords, hAccs)
		c.altitude = altSum / float64(altN)
	}

	// Mode activity type: most common per-sample effective type.
	counts := map[sample.ActivityType]int{}
	for _, s := range samples {
		t := s.EffectiveActivityType()
		if t == "" {
			continue
		}
		counts[t]++
	}
	var mode sample.ActivityType
	best := -1
	for t, n := range counts {
		if n > best {
			mode, best = t, n
		}
	}
	c.modeActivityType = mode

	c.rawActivity = classify.ComputeRaw(samples)
	c.segments = computeSegments(samples)
	return c
}

func computeSegments(samples []*sample.Sample) []Segment {
	var segments []Segment
	for _, s := range samples {
		t := s.EffectiveActivityType()
		if len(segments) > 0 {
			last := &segments[len(segments)-1]
			if last.RecordingState == s.RecordingState && last.ActivityType == t {
				last.End = s.Date
				last.Samples = append(last.Samples, s)
				continue
			}
		}
		segments = append(segments, Segment{
			RecordingState: s.RecordingState,
			ActivityType:   t,
			Start:          s.Date,
			End:            s.Date,
			Samples:        []*sample.Sample{s},
		})
	}
	return segments
}

// DateRange returns the item's first and last sample dates.
func (it *Item) DateRange() (start, end time.Time) {
	c := it.ensureCache()
	return c.dateStart, c.dateEnd
}

func (it *Item) Centre() geo.Point {
	return it.ensureCache().centre
}

func (it *Item) RadiusMeanSD() (mean, sd float64) {
	c := it.ensureCache()
	return c.radiusMean, c.radiusSD
}

// ClampedRadius returns mean + n*sd clamped to [visitRadiusMin, visitRadiusMax].
func (it *Item) ClampedRadius(n, visitRadiusMin, visitRadiusMax float64) float64 {
	mean, sd := it.RadiusMeanSD()
	return geo.NSigmaRadius(mean, sd, n, visitRadiusMin, visitRadiusMax)
}

func (it *Item) Altitude() float64 {
	return it.ensureCache().altitude
}

// ActivityAggregate returns the item's classifier aggregate with
// invariant I6 enforced against the given VISIT_RADIUS_MAX.
func (it *Item) ActivityAggregate(visitRadiusMin, visitRadiusMax float64) classify.Aggregate {
	c := it.ensureCache()
	radius3sd := geo.NSigmaRadius(c.radiusMean, c.radiusSD, 3, visitRadiusMin, visitRadiusMax)
	return classify.EnforceI6(c.rawActivity, radius3sd, visitRadiusMax)
}

func (it *Item) ModeActivityType() sample.ActivityType {
	return it.ensureCache().modeActivityType
}

func (it *Item) Segments() []Segment {
	return it.ensureCache().segments
}

// FirstSample/LastSample return the item's edge samples facing previous/next.
func (it *Item) FirstSample() *sample.Sample {
	it.mu.Lock()
	defer it.mu.Unlock()
	if len(it.samples) == 0 {
		return nil
	}
	return it.samples[0]
}

func (it *Item) LastSample() *sample.Sample {
	it.mu.Lock()
	defer it.mu.Unlock()
	if len(it.samples) == 0 {
		return nil
	}
	return it.samples[len(it.samples)-1]
}

// IsDataGap reports whether a Path is a synthetic data-gap marker: its
// first sample's recording state is off.
func (it *Item) IsDataGap() bool {
	if it.kind != KindPath {
		return false
	}
	first := it.FirstSample()
	return first != nil && first.RecordingState == sample.RecordingOff
}

// IsNolo reports whether a Path carries no sample with a usable coordinate.
func (it *Item) IsNolo() bool {
	if it.kind != KindPath {
		return false
	}
	for _, s := range it.Samples() {
		if s.HasUsableCoordinate() {
			return false
		}
	}
	return true
}

// TotalDistance sums the great-circle distance between consecutive
// usable-coordinate samples, used for Path validity/keeper checks.
func (it *Item) TotalDistance() float64 {
	samples := it.Samples()
	var total float64
	var prev *sample.Sample
	for _, s := range samples {
		if !s.HasUsableCoordinate() {
			continue
		}
		if prev != nil {
			total += geo.Distance(prev.Coordinate, s.Coordinate)
		}
		prev = s
	}
	return total
}

// StepCount, FloorsUp, and FloorsDown report pedometer-derived aggregates.
// No sample in this engine currently carries step/floor readings (no
// pedometer source is wired in), so these always report absent; they exist
// so the persistence layer has a stable column to leave NULL rather than
// omit, matching the "feature degrades" behaviour for missing pedometer
// permission.
func (it *Item) StepCount() (int, bool)  { return 0, false }
func (it *Item) FloorsUp() (int, bool)   { return 0, false }
func (it *Item) FloorsDown() (int, bool) { return 0, false }

// Duration returns end-start over the item's own samples.
func (it *Item) Duration() time.Duration {
	it.mu.Lock()
	if len(it.samples) == 0 {
		it.mu.Unlock()
		return 0
	}
	start, end := it.samples[0].Date, it.samples[len(it.samples)-1].Date
	it.mu.Unlock()
	return end.Sub(start)
}
