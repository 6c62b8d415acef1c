package store

import (
	"github.com/banshee-data/timelineengine/internal/timeline/item"
)

// Link sets a.next = b and b.previous = a atomically (as seen by any
// reader; both setters run back to back with no other store mutation
// interleaved because callers invoke Link from inside a Process closure).
// Passing a nil endpoint unlinks that side. This is the single "set link"
// primitive §9 calls for: every link mutation in recorder/sanitise/merge
// goes through here so I1 (link symmetry) never observes a half-updated
// pair.
func (s *Store) Link(a, b *item.Item) {
	if a != nil {
		if b != nil {
			id := b.ID()
			a.SetNextRaw(&id)
		} else {
			a.SetNextRaw(nil)
		}
	}
	if b != nil {
		if a != nil {
			id := a.ID()
			b.SetPreviousRaw(&id)
		} else {
			b.SetPreviousRaw(nil)
		}
	}
	if a != nil {
		s.markDirtyItem(a)
	}
	if b != nil {
		s.markDirtyItem(b)
	}
}

// UnlinkNext removes the link between a and its next neighbour, clearing
// both sides' raw links directly (it does not go through Link) and
// marking both dirty.
func (s *Store) UnlinkNext(a *item.Item) {
	if a == nil {
		return
	}
	nextID := a.NextID()
	if nextID == nil {
		return
	}
	next := s.GetItem(*nextID)
	a.SetNextRaw(nil)
	if next != nil {
		next.SetPreviousRaw(nil)
		s.markDirtyItem(next)
	}
	s.markDirtyItem(a)
}
