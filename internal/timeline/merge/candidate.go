package merge

import (
	"github.com/google/uuid"

	"github.com/banshee-data/timelineengine/internal/timeline/item"
	"github.com/banshee-data/timelineengine/internal/timeline/store"
)

// Candidate is one proposed merge triple with its computed score.
type Candidate struct {
	Keeper    *item.Item
	Betweener *item.Item // nil for a direct two-item merge
	Deadman   *item.Item
	Score     Score
}

func resolveID(st *store.Store, id *uuid.UUID) *item.Item {
	if id == nil {
		return nil
	}
	return st.GetItem(*id)
}

// enumerateCandidates builds the candidate pool around focal item w (§4.8).
// protect, if non-nil, excludes one item id from the pool entirely, in
// every role (keeper, betweener, deadman): the engine uses this to keep the
// recorder's still-growing current item out of scoring altogether, since a
// not-yet-finished item's keepness/extent isn't settled enough to judge a
// merge against, whether it would be the one absorbing or the one absorbed.
//
// th.MergeForwardSteps/MergeBackwardSteps gate the one-hop betweener search
// past the direct neighbour in each direction: <2 proposes only the direct
// (W,_,N)/(N,_,W) pair, >=2 also walks one further hop for a betweener
// chain. th.MergeBridgeEnabled gates the P-W-N bridge proposal.
func enumerateCandidates(st *store.Store, w *item.Item, th item.Thresholds, protect *uuid.UUID) []Candidate {
	var out []Candidate

	isProtected := func(it *item.Item) bool { return protect != nil && it.ID() == *protect }

	add := func(keeper, betweener, deadman *item.Item) {
		if keeper == nil || deadman == nil || keeper.ID() == deadman.ID() {
			return
		}
		if deadman.IsDataGap() {
			return
		}
		if isProtected(keeper) || isProtected(deadman) || (betweener != nil && isProtected(betweener)) {
			return
		}
		out = append(out, Candidate{
			Keeper:    keeper,
			Betweener: betweener,
			Deadman:   deadman,
			Score:     scoreMerge(keeper, betweener, deadman, th),
		})
	}

	n := resolveID(st, w.NextID())
	if n != nil {
		add(w, nil, n)
		add(n, nil, w)
		if th.MergeForwardSteps >= 2 && n.KeepnessScore(th) < w.KeepnessScore(th) {
			nn := resolveID(st, n.NextID())
			if nn != nil && nn.KeepnessScore(th) > n.KeepnessScore(th) {
				add(w, n, nn)
				add(nn, n, w)
			}
		}
	}

	p := resolveID(st, w.PreviousID())
	if p != nil {
		add(w, nil, p)
		add(p, nil, w)
		if th.MergeBackwardSteps >= 2 && p.KeepnessScore(th) < w.KeepnessScore(th) {
			pp := resolveID(st, p.PreviousID())
			if pp != nil && pp.KeepnessScore(th) > p.KeepnessScore(th) {
				add(w, p, pp)
				add(pp, p, w)
			}
		}
	}

	if th.MergeBridgeEnabled && p != nil && n != nil && !p.IsDataGap() && !n.IsDataGap() &&
		p.KeepnessScore(th) > w.KeepnessScore(th) && n.KeepnessScore(th) > w.KeepnessScore(th) {
		add(p, w, n)
		add(n, w, p)
	}

	return out
}
