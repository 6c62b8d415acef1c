// Package sanitise implements the edge sanitiser (§4.7): it reshuffles
// boundary samples between an item and its Path neighbours to correct
// mis-classified edges before the merge engine scores candidates.
//
// No direct teacher precedent exists for this specific algorithm; it is
// grounded on the "iterate a local fixup until fixpoint, with an
// oscillation guard" shape the merge engine's own execution loop uses
// (velocity_coherent_merging.go's DetectFragments -> FindMergeCandidates
// -> MergeFragments pipeline recurses to a fixpoint the same way).
package sanitise

import (
	"fmt"

	"github.com/banshee-data/timelineengine/internal/timeline/item"
	"github.com/banshee-data/timelineengine/internal/timeline/sample"
	"github.com/banshee-data/timelineengine/internal/timeline/store"
)

const maxIterationsPerSide = 64

// Item sanitises both boundaries of self (previous and next) against any
// neighbour that is a Path, per §4.7's preconditions (both items unlocked,
// within mergeable distance, edges carry usable coordinates).
func Item(st *store.Store, self *item.Item, th item.Thresholds, maxMergeableDistance func(a, b *item.Item) float64) {
	for _, onNextSide := range []bool{true, false} {
		neighbourID := self.NextID()
		if !onNextSide {
			neighbourID = self.PreviousID()
		}
		if neighbourID == nil {
			continue
		}
		neighbour := st.GetItem(*neighbourID)
		if neighbour == nil || !neighbour.IsPath() {
			continue
		}
		sanitisePair(st, self, neighbour, onNextSide, th, maxMergeableDistance)
	}
}

func sanitisePair(st *store.Store, self, neighbour *item.Item, onNextSide bool, th item.Thresholds, maxMergeableDistance func(a, b *item.Item) float64) {
	if self.MergeLocked() || neighbour.MergeLocked() {
		return
	}
	if maxMergeableDistance != nil {
		d := item.Distance(self, neighbour, th)
		if d > maxMergeableDistance(self, neighbour) {
			return
		}
	}

	var history []string
	for i := 0; i < maxIterationsPerSide; i++ {
		var moved bool
		var desc string
		if self.IsVisit() {
			moved, desc = tryMoveVisitPath(self, neighbour, onNextSide, th)
		} else {
			moved, desc = tryMovePathPath(self, neighbour, onNextSide, th)
		}
		if !moved {
			return
		}
		st.MarkDirtyItem(self)
		st.MarkDirtyItem(neighbour)
		history = append(history, desc)
		if len(history) >= 2 && history[len(history)-1] == history[len(history)-2] {
			return
		}
	}
}

// selfEdge returns self's sample facing neighbour.
func selfEdge(self *item.Item, onNextSide bool) *sample.Sample {
	if onNextSide {
		return self.LastSample()
	}
	return self.FirstSample()
}

// neighbourEdges returns (edge facing self, the sample one step further
// away from self) for neighbour.
func neighbourEdges(neighbour *item.Item, onNextSide bool) (edge, further *sample.Sample) {
	samples := neighbour.Samples()
	if len(samples) == 0 {
		return nil, nil
	}
	if onNextSide {
		// neighbour is self.next: neighbour's facing edge is its first sample.
		edge = samples[0]
		if len(samples) > 1 {
			further = samples[1]
		}
		return
	}
	// neighbour is self.previous: neighbour's facing edge is its last sample.
	edge = samples[len(samples)-1]
	if len(samples) > 1 {
		further = samples[len(samples)-2]
	}
	return
}

func moveSample(from, to *item.Item, s *sample.Sample) {
	from.RemoveSample(s.ID)
	to.AddSample(s)
}

// tryMoveVisitPath applies one iteration of the Visit<->Path rule (§4.7).
func tryMoveVisitPath(visit, path *item.Item, onNextSide bool, th item.Thresholds) (bool, string) {
	visitEdge := selfEdge(visit, onNextSide)
	pathEdge, pathEdgeNext := neighbourEdges(path, onNextSide)
	if visitEdge == nil || pathEdge == nil {
		return false, ""
	}
	if !visitEdge.HasUsableCoordinate() || !pathEdge.HasUsableCoordinate() {
		return false, ""
	}

	pathEdgeInside := item.ContainsLocation(visit, pathEdge.Coordinate, 2, th)
	pathEdgeNextInside := pathEdgeNext != nil && pathEdgeNext.HasUsableCoordinate() &&
		item.ContainsLocation(visit, pathEdgeNext.Coordinate, 2, th)
	visitEdgeInside := item.ContainsLocation(visit, visitEdge.Coordinate, 2, th)

	switch {
	case pathEdgeInside && pathEdgeNextInside:
		moveSample(path, visit, pathEdge)
		return true, "path->visit:" + pathEdge.ID.String()
	case !pathEdgeInside && !visitEdgeInside:
		moveSample(visit, path, visitEdge)
		return true, "visit->path:" + visitEdge.ID.String()
	case !pathEdgeInside &&
		visitEdge.EffectiveActivityType() != "" &&
		visitEdge.EffectiveActivityType() == pathEdge.EffectiveActivityType() &&
		visitEdge.EffectiveActivityType() != sample.ActivityStationary:
		moveSample(visit, path, visitEdge)
		return true, "visit->path-type:" + visitEdge.ID.String()
	default:
		return false, ""
	}
}

// tryMovePathPath applies one iteration of the Path<->Path rule (§4.7).
func tryMovePathPath(self, neighbour *item.Item, onNextSide bool, th item.Thresholds) (bool, string) {
	myEdge := selfEdge(self, onNextSide)
	theirEdge, _ := neighbourEdges(neighbour, onNextSide)
	if myEdge == nil || theirEdge == nil {
		return false, ""
	}
	if !myEdge.HasUsableCoordinate() || !theirEdge.HasUsableCoordinate() {
		return false, ""
	}

	myType := self.ModeActivityType()
	theirType := neighbour.ModeActivityType()
	if myType != "" && myType == theirType {
		return false, ""
	}

	modeShiftMps := th.ModeShiftSpeedMps()
	below, above := myEdge.Speed, theirEdge.Speed
	if (below < modeShiftMps) != (above < modeShiftMps) {
		return false, ""
	}

	if theirEdge.EffectiveActivityType() != "" && theirEdge.EffectiveActivityType() == myType {
		moveSample(neighbour, self, theirEdge)
		return true, fmt.Sprintf("theirs->self:%s", theirEdge.ID)
	}
	return false, ""
}
