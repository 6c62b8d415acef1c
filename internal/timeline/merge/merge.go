package merge

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/timelineengine/internal/timeline/item"
	"github.com/banshee-data/timelineengine/internal/timeline/sample"
	"github.com/banshee-data/timelineengine/internal/timeline/sanitise"
	"github.com/banshee-data/timelineengine/internal/timeline/store"
	"github.com/banshee-data/timelineengine/internal/timeline/timelineerr"
	"github.com/banshee-data/timelineengine/internal/timeline/timelinelog"
)

// OnMerge is invoked once per executed merge, after the graph mutation
// commits, so the engine can publish a mergedTimelineItems event.
type OnMerge func(kept uuid.UUID, killed []uuid.UUID)

func maxMergeableDistanceFn(th item.Thresholds) func(a, b *item.Item) float64 {
	return func(a, b *item.Item) float64 { return item.MaximumMergeableDistance(a, b, th) }
}

// Process is the §4.8 execution loop: sanitise w's edges, enumerate
// candidates, execute the top non-impossible one, and recurse from the
// resulting keeper. It terminates when the top candidate is impossible.
// protect excludes one item id from the candidate pool entirely, in every
// role; see enumerateCandidates. Pass nil when nothing needs protecting
// (e.g. from SafeDelete, where every neighbour involved is already
// finalised).
func Process(st *store.Store, w *item.Item, th item.Thresholds, protect *uuid.UUID, onMerge OnMerge) {
	for w != nil {
		sanitise.Item(st, w, th, maxMergeableDistanceFn(th))

		candidates := enumerateCandidates(st, w, th, protect)
		if len(candidates) == 0 {
			return
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Score > candidates[j].Score
		})
		top := candidates[0]
		if top.Score == Impossible {
			return
		}
		w = execute(st, top.Keeper, top.Betweener, top.Deadman, onMerge)
	}
}

// execute performs one merge (§4.8): transfer betweener then deadman
// samples into keeper, reattach keeper's outward link to bypass the
// consumed items, and mark betweener/deadman deleted. Returns keeper so
// callers can recurse from it.
func execute(st *store.Store, keeper, betweener, deadman *item.Item, onMerge OnMerge) *item.Item {
	keeperIsEarlier := keeperPrecedesChain(keeper, betweener, deadman)

	var farID *uuid.UUID
	if keeperIsEarlier {
		farID = deadman.NextID()
	} else {
		farID = deadman.PreviousID()
	}
	var far *item.Item
	if farID != nil {
		far = st.GetItem(*farID)
	}

	var killed []uuid.UUID
	if betweener != nil {
		for _, s := range betweener.TakeAllSamples() {
			keeper.AddSample(s)
			st.MarkDirtySample(s)
		}
		killed = append(killed, betweener.ID())
	}
	for _, s := range deadman.TakeAllSamples() {
		keeper.AddSample(s)
		st.MarkDirtySample(s)
	}
	killed = append(killed, deadman.ID())

	if keeperIsEarlier {
		st.Link(keeper, far)
	} else {
		st.Link(far, keeper)
	}

	if betweener != nil {
		betweener.MarkDeleted()
		st.MarkDirtyItem(betweener)
	}
	deadman.MarkDeleted()
	st.MarkDirtyItem(deadman)
	st.MarkDirtyItem(keeper)

	timelinelog.Diagf("merge: kept=%s killed=%v", keeper.ID(), killed)
	if onMerge != nil {
		onMerge(keeper.ID(), killed)
	}
	return keeper
}

// keeperPrecedesChain reports whether keeper sits chronologically before
// the betweener/deadman chain (vs. after it), inferred from the still-
// intact links at the moment of execution.
func keeperPrecedesChain(keeper, betweener, deadman *item.Item) bool {
	firstOfChain := betweener
	if firstOfChain == nil {
		firstOfChain = deadman
	}
	if next := keeper.NextID(); next != nil && *next == firstOfChain.ID() {
		return true
	}
	if prev := keeper.PreviousID(); prev != nil && *prev == firstOfChain.ID() {
		return false
	}
	// Betweener present but keeper links directly to deadman (bridge case:
	// keeper is P or N, chain is P-W-N with w==betweener).
	if betweener != nil {
		if next := keeper.NextID(); next != nil && *next == betweener.ID() {
			return true
		}
		if prev := keeper.PreviousID(); prev != nil && *prev == betweener.ID() {
			return false
		}
	}
	return true
}

// SafeDelete implements §4.9: delete deadman by merging it into the
// highest-scored neighbour, falling back to a forced merge with whichever
// neighbour scores highest if none is desirable. Returns an error if
// deadman has no neighbours at all (deletion requires an external
// decision).
func SafeDelete(st *store.Store, deadman *item.Item, th item.Thresholds, onMerge OnMerge) error {
	sanitise.Item(st, deadman, th, maxMergeableDistanceFn(th))

	next := resolveID(st, deadman.NextID())
	prev := resolveID(st, deadman.PreviousID())
	if next == nil && prev == nil {
		return timelineerr.NoOpResult("merge.SafeDelete: no neighbours, deletion requires an external decision")
	}

	var candidates []Candidate
	if next != nil && prev != nil {
		candidates = append(candidates,
			Candidate{Keeper: next, Betweener: deadman, Deadman: prev, Score: scoreMerge(next, deadman, prev, th)},
			Candidate{Keeper: prev, Betweener: deadman, Deadman: next, Score: scoreMerge(prev, deadman, next, th)},
		)
	}
	if prev != nil {
		candidates = append(candidates, Candidate{Keeper: prev, Deadman: deadman, Score: scoreMerge(prev, nil, deadman, th)})
	}
	if next != nil {
		candidates = append(candidates, Candidate{Keeper: next, Deadman: deadman, Score: scoreMerge(next, nil, deadman, th)})
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	top := candidates[0]

	keeper := execute(st, top.Keeper, top.Betweener, top.Deadman, onMerge)
	Process(st, keeper, th, nil, onMerge)
	return nil
}

// DefaultDataGapThreshold is the §4.10 default: gaps longer than 5 minutes
// with nothing between the two items get a synthetic data-gap Path.
const DefaultDataGapThreshold = 5 * time.Minute

// InsertDataGap synthesises a data-gap Path between older and newer when
// they are separated by more than threshold with nothing between them
// (§4.10), and links it in on both sides. Returns nil if the gap is too
// short to warrant a marker.
func InsertDataGap(st *store.Store, older, newer *item.Item, threshold time.Duration) *item.Item {
	_, olderEnd := older.DateRange()
	newerStart, _ := newer.DateRange()
	gap := newerStart.Sub(olderEnd)
	if gap <= threshold {
		return nil
	}

	start := sample.New(sample.Raw{Date: olderEnd, RecordingState: sample.RecordingOff})
	end := sample.New(sample.Raw{Date: newerStart, RecordingState: sample.RecordingOff})

	gapItem := item.New(item.KindPath)
	gapItem.AddSample(start)
	gapItem.AddSample(end)

	st.AdoptItem(gapItem)
	st.AdoptSample(start)
	st.AdoptSample(end)

	st.Link(older, gapItem)
	st.Link(gapItem, newer)

	return gapItem
}
