// Package merge implements the merge engine (§4.8-4.10): candidate
// enumeration around a focal item, scoring, execution of the winning
// merge, and the recursion-to-fixpoint loop, plus safe-delete and
// data-gap insertion.
//
// Grounded on internal/lidar/velocity_coherent_merging.go's FragmentMerger:
// DetectFragments/FindMergeCandidates/MergeFragments becomes
// enumerateCandidates/scoreMerge/execute, and the teacher's ordered
// position/velocity/trajectory sub-scores averaged into one OverallScore
// becomes the kind/keepness/distance/temporal sub-tiers summed into one
// Score rank here.
package merge

import (
	"github.com/banshee-data/timelineengine/internal/timeline/item"
)

// Score ranks a candidate merge's desirability. Ordering matters: higher
// is better, and Impossible must sort last.
type Score int

const (
	Impossible Score = iota
	VeryLow
	Low
	Medium
	High
	Perfect
)

func (s Score) String() string {
	switch s {
	case Impossible:
		return "impossible"
	case VeryLow:
		return "veryLow"
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Perfect:
		return "perfect"
	default:
		return "unknown"
	}
}

const (
	smallGapSeconds = 60.0
	largeGapSeconds = 600.0
)

// kindCompatible reports whether keeper absorbing deadman makes semantic
// sense at all. Path+Path only merges within the same activity type;
// everything else (Visit+Visit, Visit absorbing a Path or vice versa) is
// left to the other sub-scores to rank.
func kindCompatible(keeper, deadman *item.Item) bool {
	if keeper.IsPath() && deadman.IsPath() {
		return keeper.ModeActivityType() == deadman.ModeActivityType()
	}
	return true
}

// temporalTier scores adjacency: touching (a gap of at most one second)
// scores highest; any overlap, or a gap beyond largeGapSeconds, scores
// lowest.
func temporalTier(keeper, deadman *item.Item) int {
	gap := item.TimeInterval(keeper, deadman).Seconds()
	switch {
	case gap < 0:
		return 0 // overlap
	case gap <= 1:
		return 3 // adjacent
	case gap <= smallGapSeconds:
		return 2
	case gap <= largeGapSeconds:
		return 1
	default:
		return 0
	}
}

// scoreMerge implements §4.8's scoring rule. betweener may be nil for a
// direct two-item merge.
func scoreMerge(keeper, betweener, deadman *item.Item, th item.Thresholds) Score {
	if keeper == nil || deadman == nil {
		return Impossible
	}
	if keeper.Deleted() || deadman.Deleted() || keeper.MergeLocked() || deadman.MergeLocked() {
		return Impossible
	}
	if betweener != nil && (betweener.Deleted() || betweener.MergeLocked()) {
		return Impossible
	}
	if !kindCompatible(keeper, deadman) {
		return Impossible
	}

	dist := item.Distance(keeper, deadman, th)
	maxDist := item.MaximumMergeableDistance(keeper, deadman, th)
	if dist > maxDist {
		return Impossible
	}

	points := 0
	if keeper.KeepnessScore(th) >= deadman.KeepnessScore(th) {
		points += 2
	}

	if maxDist <= 0 {
		if dist <= 0 {
			points += 2
		}
	} else {
		ratio := dist / maxDist
		switch {
		case ratio <= 0.25:
			points += 2
		case ratio <= 0.5:
			points += 1
		}
	}

	points += temporalTier(keeper, deadman)

	switch {
	case points >= 7:
		return Perfect
	case points >= 5:
		return High
	case points >= 3:
		return Medium
	case points >= 1:
		return Low
	default:
		return VeryLow
	}
}
