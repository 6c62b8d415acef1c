// Package events implements the engine's notification fan-out (§6 event
// stream, §9 "event callbacks as a typed multi-producer channel").
//
// Grounded on internal/lidar/visualiser/publisher.go's Publisher: the
// frameChan/broadcastLoop/clientStream shape becomes ingestCh/broadcastLoop/
// subscriber here, generalised from one FrameBundle type to four
// timeline event kinds, and from a gRPC-streamed client list to a plain
// Go channel per subscriber (§9 explicitly asks for "a callback invoked on
// a dedicated notification worker, never on the processing queue").
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/timelineengine/internal/timeline/item"
	"github.com/banshee-data/timelineengine/internal/timeline/timelinelog"
)

// Kind distinguishes the four event shapes §6 lists.
type Kind string

const (
	NewTimelineItem       Kind = "newTimelineItem"
	UpdatedTimelineItem    Kind = "updatedTimelineItem"
	FinalisedTimelineItem Kind = "finalisedTimelineItem"
	MergedTimelineItems   Kind = "mergedTimelineItems"
)

// Event is one notification. Item is populated for the three item-kind
// events; Kept/Killed/Description are populated for MergedTimelineItems.
type Event struct {
	Kind        Kind
	At          time.Time
	Item        *item.Item
	Kept        uuid.UUID
	Killed      []uuid.UUID
	Description string
}

type subscriber struct {
	id     string
	ch     chan Event
	doneCh chan struct{}
}

// Registry is the engine's observer hub: producers call Publish (non-
// blocking); a dedicated goroutine drains the ingest queue and fans each
// event out to every subscriber's channel, dropping for any subscriber
// whose channel is full rather than blocking the broadcast loop.
type Registry struct {
	ingestCh chan Event

	mu          sync.RWMutex
	subscribers map[string]*subscriber

	eventCount int64
	stopCh     chan struct{}
	running    bool
}

// NewRegistry constructs a Registry with the given ingest buffer depth.
func NewRegistry(bufferSize int) *Registry {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Registry{
		ingestCh:    make(chan Event, bufferSize),
		subscribers: make(map[string]*subscriber),
		stopCh:      make(chan struct{}),
	}
}

// Start launches the broadcast loop. It is idempotent; calling it twice is
// a no-op. The loop exits when stop is closed.
func (r *Registry) Start(stop <-chan struct{}) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go func() {
		for {
			select {
			case <-stop:
				return
			case ev := <-r.ingestCh:
				r.broadcast(ev)
			}
		}
	}()
}

func (r *Registry) broadcast(ev Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.eventCount++
	for _, sub := range r.subscribers {
		select {
		case sub.ch <- ev:
		default:
			timelinelog.Opsf("events: dropping %s for subscriber %s, channel full", ev.Kind, sub.id)
		}
	}
}

// Publish enqueues ev for broadcast. Non-blocking: if the ingest queue is
// full, the event is dropped and logged rather than stalling the caller
// (the processing queue must never block on a slow observer).
func (r *Registry) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case r.ingestCh <- ev:
	default:
		timelinelog.Opsf("events: ingest queue full, dropping %s", ev.Kind)
	}
}

// Subscribe registers a new observer and returns its event channel plus an
// unsubscribe function. The channel is buffered; slow readers lose events
// rather than blocking the broadcaster.
func (r *Registry) Subscribe(id string) (<-chan Event, func()) {
	sub := &subscriber{id: id, ch: make(chan Event, 32), doneCh: make(chan struct{})}
	r.mu.Lock()
	r.subscribers[id] = sub
	r.mu.Unlock()
	return sub.ch, func() { r.unsubscribe(id) }
}

func (r *Registry) unsubscribe(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.subscribers[id]; ok {
		delete(r.subscribers, id)
		close(sub.doneCh)
	}
}

// Stats reports current registry load for debug endpoints.
type Stats struct {
	EventCount      int64
	SubscriberCount int
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{EventCount: r.eventCount, SubscriberCount: len(r.subscribers)}
}

// NewItem/Updated/Finalised/Merged are convenience constructors used by the
// engine's hooks, keeping call sites free of Event literal boilerplate.
func NewItem(it *item.Item) Event       { return Event{Kind: NewTimelineItem, Item: it} }
func Updated(it *item.Item) Event       { return Event{Kind: UpdatedTimelineItem, Item: it} }
func Finalised(it *item.Item) Event     { return Event{Kind: FinalisedTimelineItem, Item: it} }
func Merged(kept uuid.UUID, killed []uuid.UUID, description string) Event {
	return Event{Kind: MergedTimelineItems, Kept: kept, Killed: killed, Description: description}
}
