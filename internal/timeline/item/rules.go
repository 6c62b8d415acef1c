// Pair-dispatched geometry/validity rules (§4.4), replacing the
// inheritance-based Visit/Path distance/maximumMergeableDistance overrides
// with a match-on-(kind,kind) switch, per the tagged-variant redesign.
package item

import (
	"math"
	"time"

	"github.com/banshee-data/timelineengine/internal/timeline/geo"
	"github.com/banshee-data/timelineengine/internal/timeline/sample"
)

// Thresholds bundles the configuration constants the validity/distance
// rules consume, so callers don't thread twelve scalar parameters through
// every call site.
type Thresholds struct {
	VisitRadiusMin              float64
	VisitRadiusMax              float64
	MinVisitKeeperDuration      time.Duration
	MinPathKeeperDuration       time.Duration
	MinPathKeeperDistanceMeters float64
	MinDataGapKeeperDuration    time.Duration
	ModeShiftSpeedKph           float64

	// Merge scoring tunables (§4.8 C2/candidate enumeration).
	MergeableDistanceMultiplier float64
	MergeableVisitPathFloorM    float64
	MergeForwardSteps           int
	MergeBackwardSteps          int
	MergeBridgeEnabled          bool
}

const modeShiftSpeedKphToMps = 1 / 3.6

// ModeShiftSpeedMps converts the configured km/h mode-shift boundary to the
// m/s unit samples carry their Speed in.
func (th Thresholds) ModeShiftSpeedMps() float64 {
	return th.ModeShiftSpeedKph * modeShiftSpeedKphToMps
}

const minPathValiditySamples = 2
const minDataGapValidityDuration = 30 * time.Second

// IsValid reports whether the item meets the bare minimum to exist as a
// timeline entry at all (§4.4 table).
func (it *Item) IsValid(th Thresholds) bool {
	dur := it.Duration()
	switch {
	case it.IsVisit():
		return it.SampleCount() >= 1 && dur >= 10*time.Second
	case it.IsDataGap():
		return dur >= minDataGapValidityDuration
	case it.IsNolo():
		return it.SampleCount() >= minPathValiditySamples && dur >= 10*time.Second
	default: // normal Path
		return it.SampleCount() >= minPathValiditySamples && dur >= 10*time.Second && it.TotalDistance() >= 10
	}
}

// IsWorthKeeping reports whether the item should survive as a real
// timeline entry rather than be absorbed by a neighbour.
func (it *Item) IsWorthKeeping(th Thresholds) bool {
	if !it.IsValid(th) {
		return false
	}
	dur := it.Duration()
	switch {
	case it.IsVisit():
		return dur >= th.MinVisitKeeperDuration
	case it.IsDataGap():
		return dur >= th.MinDataGapKeeperDuration
	case it.IsNolo():
		return false
	default:
		return dur >= th.MinPathKeeperDuration && it.TotalDistance() >= th.MinPathKeeperDistanceMeters
	}
}

// KeepnessScore maps IsValid/IsWorthKeeping onto the {0,1,2} rank.
func (it *Item) KeepnessScore(th Thresholds) Keepness {
	switch {
	case !it.IsValid(th):
		return KeepnessInvalid
	case it.IsWorthKeeping(th):
		return KeepnessWorthKeeping
	default:
		return KeepnessValid
	}
}

// Distance is the pair-dispatched geometric distance between two items
// (§4.4). A negative result for Visit↔Visit means the two radii overlap.
func Distance(a, b *Item, th Thresholds) float64 {
	switch {
	case a.IsVisit() && b.IsVisit():
		ca := a.Centre()
		cb := b.Centre()
		return geo.Distance(ca, cb) - a.ClampedRadius(2, th.VisitRadiusMin, th.VisitRadiusMax) - b.ClampedRadius(2, th.VisitRadiusMin, th.VisitRadiusMax)
	case a.IsVisit() && b.IsPath():
		return visitPathDistance(a, b, th)
	case a.IsPath() && b.IsVisit():
		return visitPathDistance(b, a, th)
	default: // Path <-> Path
		return pathPathDistance(a, b, th)
	}
}

func visitPathDistance(visit, path *Item, th Thresholds) float64 {
	edge := nearestEdgeSample(visit, path)
	if edge == nil {
		return math.Inf(1)
	}
	centre := visit.Centre()
	return geo.Distance(centre, edge.Coordinate) - visit.ClampedRadius(2, th.VisitRadiusMin, th.VisitRadiusMax)
}

// nearestEdgeSample picks the path sample whose chronological edge faces
// the visit: if the path starts after the visit ends, that's the path's
// first sample; otherwise its last.
func nearestEdgeSample(visit, path *Item) *sample.Sample {
	visitStart, visitEnd := visit.DateRange()
	first, last := path.FirstSample(), path.LastSample()
	if first == nil {
		return nil
	}
	if first.Date.After(visitEnd) || first.Date.Equal(visitEnd) {
		return first
	}
	if last != nil && (last.Date.Before(visitStart) || last.Date.Equal(visitStart)) {
		return last
	}
	return first
}

func pathPathDistance(a, b *Item, th Thresholds) float64 {
	ea, eb := facingEdges(a, b)
	if ea == nil || eb == nil {
		return math.Inf(1)
	}
	return geo.Distance(ea.Coordinate, eb.Coordinate)
}

// facingEdges returns the samples of a and b that face each other across
// the time gap between the two items.
func facingEdges(a, b *Item) (*sample.Sample, *sample.Sample) {
	aStart, aEnd := a.DateRange()
	bStart, bEnd := b.DateRange()
	var aEdge, bEdge *sample.Sample
	if aEnd.Before(bStart) || aEnd.Equal(bStart) {
		aEdge, bEdge = a.LastSample(), b.FirstSample()
	} else if bEnd.Before(aStart) || bEnd.Equal(aStart) {
		aEdge, bEdge = a.FirstSample(), b.LastSample()
	} else {
		aEdge, bEdge = a.FirstSample(), b.FirstSample()
	}
	return aEdge, bEdge
}

// ContainsLocation reports whether loc lies within the item, per kind.
func ContainsLocation(it *Item, loc geo.Point, sd float64, th Thresholds) bool {
	if it.IsVisit() {
		centre := it.Centre()
		return geo.Distance(centre, loc) <= it.ClampedRadius(sd, th.VisitRadiusMin, th.VisitRadiusMax)
	}
	samples := it.Samples()
	for i, s := range samples {
		if !s.HasUsableCoordinate() {
			continue
		}
		tolerance := 10.0
		if i > 0 && samples[i-1].HasUsableCoordinate() {
			if d := geo.Distance(samples[i-1].Coordinate, s.Coordinate); d > tolerance {
				tolerance = d
			}
		}
		if i < len(samples)-1 && samples[i+1].HasUsableCoordinate() {
			if d := geo.Distance(s.Coordinate, samples[i+1].Coordinate); d > tolerance {
				tolerance = d
			}
		}
		if geo.Distance(loc, s.Coordinate) <= tolerance {
			return true
		}
	}
	return false
}

// AvgSpeedMps is an item's mean ground speed: total travelled distance over
// its own duration. Visits and data-gap/nolo Paths report 0.
func (it *Item) AvgSpeedMps() float64 {
	if it.IsVisit() {
		return 0
	}
	dur := it.Duration().Seconds()
	if dur <= 0 {
		return 0
	}
	return it.TotalDistance() / dur
}

// MaximumMergeableDistance bounds how far apart two items may sit and still
// be proposed as a merge candidate (§4.8 C2).
func MaximumMergeableDistance(a, b *Item, th Thresholds) float64 {
	gapSeconds := math.Abs(TimeInterval(a, b).Seconds())
	switch {
	case a.IsPath() && b.IsPath():
		return (a.AvgSpeedMps() + b.AvgSpeedMps()) / 2 * gapSeconds * th.MergeableDistanceMultiplier
	case a.IsVisit() && b.IsPath():
		return maxFloat(b.AvgSpeedMps()*gapSeconds*th.MergeableDistanceMultiplier, th.MergeableVisitPathFloorM)
	case a.IsPath() && b.IsVisit():
		return maxFloat(a.AvgSpeedMps()*gapSeconds*th.MergeableDistanceMultiplier, th.MergeableVisitPathFloorM)
	default: // Visit <-> Visit
		return math.Inf(1)
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// TimeInterval returns the gap (positive) or overlap (negative, magnitude
// equal to overlap duration) between it and other.
func TimeInterval(it, other *Item) time.Duration {
	itStart, itEnd := it.DateRange()
	otherStart, otherEnd := other.DateRange()
	if itEnd.Before(otherStart) || itEnd.Equal(otherStart) {
		return otherStart.Sub(itEnd)
	}
	if otherEnd.Before(itStart) || otherEnd.Equal(itStart) {
		return itStart.Sub(otherEnd)
	}
	// Overlapping: negative magnitude of the overlap.
	overlapStart := itStart
	if otherStart.After(overlapStart) {
		overlapStart = otherStart
	}
	overlapEnd := itEnd
	if otherEnd.Before(overlapEnd) {
		overlapEnd = otherEnd
	}
	overlap := overlapEnd.Sub(overlapStart)
	if overlap < 0 {
		overlap = 0
	}
	return -overlap
}
