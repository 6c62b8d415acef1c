// Package store implements the engine's identity map (§4.3): stable UUID
// identity for items/samples, a weak cache with an explicit strong-retain
// set, and the single FIFO processing queue that serialises every graph
// mutation.
//
// Grounded on l5tracks.Tracker's sync.RWMutex-guarded Tracks map and its
// uuid.NewString() id-minting idiom, generalised from a single map to a
// two-map identity store with Go's weak package doing the "allow eviction
// unless retained" work the teacher's tracker never needed (it keeps
// every track strongly until cleanup).
package store

import (
	"sync"
	"time"
	"weak"

	"github.com/google/uuid"

	"github.com/banshee-data/timelineengine/internal/timeline/item"
	"github.com/banshee-data/timelineengine/internal/timeline/sample"
	"github.com/banshee-data/timelineengine/internal/timeline/timelineerr"
	"github.com/banshee-data/timelineengine/internal/timeline/timelinelog"
)

// purgeSweepInterval bounds how often Run's background goroutine checks for
// stale deleted items, independent of purgeTTL, mirroring the teacher's
// "at most once per pruneInterval" pacing for its own deleted-track sweep.
const purgeSweepInterval = 1 * time.Minute

// Persister is the transactional batch-save collaborator (§4.3 save,
// §5 shared resources). Implementations receive the drained dirty sets by
// value so further mutation never aliases an in-flight write.
type Persister interface {
	SaveBatch(items []*item.Item, samples []*sample.Sample) error
}

// Store is the engine's identity map and processing queue owner.
type Store struct {
	mapMu   sync.RWMutex
	items   map[uuid.UUID]weak.Pointer[item.Item]
	samples map[uuid.UUID]weak.Pointer[sample.Sample]

	strongMu sync.Mutex
	strong   map[uuid.UUID]any // retained items/samples, keyed by id

	processMu sync.Mutex // serialises process() closures: the single FIFO queue

	queueMu sync.Mutex
	queue   []func()
	running bool

	dirtyMu      sync.Mutex
	dirtyItems   map[uuid.UUID]*item.Item
	dirtySamples map[uuid.UUID]*sample.Sample
	lastSaved    time.Time

	purgeTTL time.Duration

	persister Persister
	onSaved   func(count int, err error)
}

// New creates an empty Store. persister may be nil, in which case Save is
// a no-op (matches the teacher's `if db == nil { return nil }` guard
// throughout internal/lidar's *_store.go files).
func New(persister Persister) *Store {
	return &Store{
		items:        make(map[uuid.UUID]weak.Pointer[item.Item]),
		samples:      make(map[uuid.UUID]weak.Pointer[sample.Sample]),
		strong:       make(map[uuid.UUID]any),
		dirtyItems:   make(map[uuid.UUID]*item.Item),
		dirtySamples: make(map[uuid.UUID]*sample.Sample),
		persister:    persister,
	}
}

// OnSaved installs a callback invoked after every Save attempt (err nil on
// success).
func (s *Store) OnSaved(f func(count int, err error)) { s.onSaved = f }

// GetItem looks up id, preferring the strong set, falling back to the weak
// cache. Returns nil if absent; callers re-materialise from a persistence
// collaborator if one exists.
func (s *Store) GetItem(id uuid.UUID) *item.Item {
	s.strongMu.Lock()
	if v, ok := s.strong[id]; ok {
		s.strongMu.Unlock()
		if it, ok := v.(*item.Item); ok {
			return it
		}
	}
	s.strongMu.Unlock()

	s.mapMu.RLock()
	wp, ok := s.items[id]
	s.mapMu.RUnlock()
	if !ok {
		return nil
	}
	return wp.Value()
}

// GetSample mirrors GetItem for samples.
func (s *Store) GetSample(id uuid.UUID) *sample.Sample {
	s.strongMu.Lock()
	if v, ok := s.strong[id]; ok {
		s.strongMu.Unlock()
		if sm, ok := v.(*sample.Sample); ok {
			return sm
		}
	}
	s.strongMu.Unlock()

	s.mapMu.RLock()
	wp, ok := s.samples[id]
	s.mapMu.RUnlock()
	if !ok {
		return nil
	}
	return wp.Value()
}

// registerItem/registerSample add a newly minted object to the weak cache.
// New objects are born unretained per §4.3.
func (s *Store) registerItem(it *item.Item) {
	s.mapMu.Lock()
	s.items[it.ID()] = weak.Make(it)
	s.mapMu.Unlock()
	s.markDirtyItem(it)
}

func (s *Store) registerSample(sm *sample.Sample) {
	s.mapMu.Lock()
	s.samples[sm.ID] = weak.Make(sm)
	s.mapMu.Unlock()
	s.markDirtySample(sm)
}

// CreateVisit mints a Visit, attaches firstSample, and registers both.
func (s *Store) CreateVisit(firstSample *sample.Sample) *item.Item {
	it := item.New(item.KindVisit)
	it.AddSample(firstSample)
	s.registerItem(it)
	s.registerSample(firstSample)
	return it
}

// CreatePath mints a Path, attaches firstSample, and registers both.
func (s *Store) CreatePath(firstSample *sample.Sample) *item.Item {
	it := item.New(item.KindPath)
	it.AddSample(firstSample)
	s.registerItem(it)
	s.registerSample(firstSample)
	return it
}

// CreateSample mints a Sample from a raw observation and registers it,
// unattached to any item.
func (s *Store) CreateSample(raw sample.Raw) *sample.Sample {
	sm := sample.New(raw)
	s.registerSample(sm)
	return sm
}

// AdoptSample registers a sample minted outside the store (e.g. by the
// data-gap insertion routine) without re-minting its id.
func (s *Store) AdoptSample(sm *sample.Sample) {
	s.registerSample(sm)
}

// AdoptItem registers an item minted outside the store (e.g. a data-gap
// Path) without re-minting its id.
func (s *Store) AdoptItem(it *item.Item) {
	s.registerItem(it)
}

// Retain adds obj (an *item.Item or *sample.Sample) to the strong set,
// preventing weak-cache eviction.
func (s *Store) Retain(id uuid.UUID, obj any) {
	s.strongMu.Lock()
	defer s.strongMu.Unlock()
	s.strong[id] = obj
}

// Release removes id from the strong set. It is a no-op if id is not
// present, matching §4.3's "no-op if already absent" contract; callers
// that need "no-op while part of the active set" must check that
// themselves (the store does not track "current item" membership here;
// the engine keeps its current item alive through the Recorder's own
// reference to it, not through Retain).
func (s *Store) Release(id uuid.UUID) {
	s.strongMu.Lock()
	defer s.strongMu.Unlock()
	delete(s.strong, id)
}

func (s *Store) markDirtyItem(it *item.Item) {
	s.dirtyMu.Lock()
	defer s.dirtyMu.Unlock()
	s.dirtyItems[it.ID()] = it
}

func (s *Store) markDirtySample(sm *sample.Sample) {
	s.dirtyMu.Lock()
	defer s.dirtyMu.Unlock()
	s.dirtySamples[sm.ID] = sm
}

// MarkDirtyItem and MarkDirtySample record that it/sm were mutated this
// processing closure and should be included in the next Save. Callers
// (recorder, sanitiser, merge) call these after any mutation.
func (s *Store) MarkDirtyItem(it *item.Item)     { s.markDirtyItem(it) }
func (s *Store) MarkDirtySample(sm *sample.Sample) { s.markDirtySample(sm) }

// DirtyCount reports how many items+samples are pending a save, used to
// decide whether to trigger a non-immediate save against saveBatchSize.
func (s *Store) DirtyCount() int {
	s.dirtyMu.Lock()
	defer s.dirtyMu.Unlock()
	return len(s.dirtyItems) + len(s.dirtySamples)
}

// LastSaved returns the time of the last successfully committed Save.
func (s *Store) LastSaved() time.Time {
	s.dirtyMu.Lock()
	defer s.dirtyMu.Unlock()
	return s.lastSaved
}

// Save drains the dirty sets and hands them to the persistence
// collaborator inside a single transaction. lastSaved is only updated
// after the transaction commits. immediate is currently advisory (always
// saves now); it is threaded through for callers that want to log whether
// a save was forced versus batch-triggered.
func (s *Store) Save(immediate bool) error {
	s.dirtyMu.Lock()
	items := make([]*item.Item, 0, len(s.dirtyItems))
	for _, it := range s.dirtyItems {
		items = append(items, it)
	}
	samples := make([]*sample.Sample, 0, len(s.dirtySamples))
	for _, sm := range s.dirtySamples {
		samples = append(samples, sm)
	}
	s.dirtyMu.Unlock()

	if s.persister == nil {
		s.clearDirty(items, samples)
		return nil
	}
	if len(items) == 0 && len(samples) == 0 {
		return timelineerr.NoOpResult("store.Save")
	}

	err := s.persister.SaveBatch(items, samples)
	if err != nil {
		if s.onSaved != nil {
			s.onSaved(0, err)
		}
		return timelineerr.Wrap("store.Save", err)
	}
	s.clearDirty(items, samples)
	if s.onSaved != nil {
		s.onSaved(len(items)+len(samples), nil)
	}
	return nil
}

// clearDirty removes exactly the entries that were part of this save from
// the dirty sets, so mutations made during the save (from a concurrent
// process() closure queued after Save began draining) are not lost.
func (s *Store) clearDirty(items []*item.Item, samples []*sample.Sample) {
	s.dirtyMu.Lock()
	defer s.dirtyMu.Unlock()
	for _, it := range items {
		delete(s.dirtyItems, it.ID())
	}
	for _, sm := range samples {
		delete(s.dirtySamples, sm.ID)
	}
	s.lastSaved = time.Now()
}

// Process runs closure synchronously, holding the store's single
// processing-queue mutex so no two processing closures ever overlap (§4.3,
// §5). Use this from the submitting goroutine when synchronous completion
// is required (tests, safe-delete's caller).
func (s *Store) Process(closure func()) {
	s.processMu.Lock()
	defer s.processMu.Unlock()
	closure()
}

// ProcessAsync enqueues closure to run on the store's background
// processing goroutine, preserving FIFO order across concurrent
// producers (the Recorder callback "hops onto the queue" per §5).
// Safe to call before Run; closures queue until Run starts draining.
func (s *Store) ProcessAsync(closure func()) {
	s.queueMu.Lock()
	s.queue = append(s.queue, closure)
	s.queueMu.Unlock()
}

// Run starts the background goroutine that drains ProcessAsync's queue in
// FIFO order until stop is closed. Each queued closure runs inside
// Process, so it serialises against synchronous Process callers too.
func (s *Store) Run(stop <-chan struct{}) {
	s.queueMu.Lock()
	if s.running {
		s.queueMu.Unlock()
		return
	}
	s.running = true
	s.queueMu.Unlock()

	go func() {
		var lastPrune time.Time
		for {
			select {
			case <-stop:
				return
			default:
			}
			s.queueMu.Lock()
			if len(s.queue) == 0 {
				s.queueMu.Unlock()
				s.maybePrune(&lastPrune)
				time.Sleep(time.Millisecond)
				continue
			}
			next := s.queue[0]
			s.queue = s.queue[1:]
			s.queueMu.Unlock()
			s.Process(next)
			s.maybePrune(&lastPrune)
		}
	}()
}

// SetPurgeTTL configures how long a deleted item lingers in the identity
// map before Run's background sweep evicts it. ttl<=0 disables the sweep.
func (s *Store) SetPurgeTTL(ttl time.Duration) { s.purgeTTL = ttl }

// PruneDeleted evicts items that have been marked deleted for longer than
// ttl from the identity map, the strong-retain set, and the dirty set, so
// the engine's continuous create/merge/delete churn doesn't grow the store
// unboundedly. Grounded on track_store.go's PruneDeletedTracks, generalised
// from a transactional SQL DELETE sweep to an in-memory map-eviction pass.
// Returns the number of items evicted.
func (s *Store) PruneDeleted(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mapMu.Lock()
	var stale []uuid.UUID
	for id, wp := range s.items {
		it := wp.Value()
		if it == nil {
			delete(s.items, id)
			continue
		}
		if it.Deleted() && it.LastModified().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		delete(s.items, id)
	}
	s.mapMu.Unlock()

	if len(stale) == 0 {
		return 0
	}

	s.strongMu.Lock()
	for _, id := range stale {
		delete(s.strong, id)
	}
	s.strongMu.Unlock()

	s.dirtyMu.Lock()
	for _, id := range stale {
		delete(s.dirtyItems, id)
	}
	s.dirtyMu.Unlock()

	return len(stale)
}

// maybePrune runs PruneDeleted at most once per purgeSweepInterval, no-op
// if purging is disabled (purgeTTL<=0).
func (s *Store) maybePrune(last *time.Time) {
	if s.purgeTTL <= 0 {
		return
	}
	now := time.Now()
	if !last.IsZero() && now.Sub(*last) < purgeSweepInterval {
		return
	}
	*last = now
	if n := s.PruneDeleted(s.purgeTTL); n > 0 {
		timelinelog.Diagf("store: pruned %d deleted items older than %v", n, s.purgeTTL)
	}
}

// AllItems returns a snapshot of every strongly-retained item. Items held
// only in the weak cache are not included.
func (s *Store) AllItems() []*item.Item {
	s.strongMu.Lock()
	defer s.strongMu.Unlock()
	out := make([]*item.Item, 0, len(s.strong))
	for _, v := range s.strong {
		if it, ok := v.(*item.Item); ok {
			out = append(out, it)
		}
	}
	return out
}
