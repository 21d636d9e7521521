package canvas

import (
	"sort"
	"sync"

	"github.com/gardar/ocrmark/pkg/geom"
)

// Event names emitted by a Canvas
type Event string

const (
	EventMarkHover  Event = "markHover"
	EventMarkLeave  Event = "markLeave"
	EventMarkClick  Event = "markClick"
	EventChangePage Event = "changePage"
	EventUpdate     Event = "update"
)

// EventData carries the payload of an event. Shape is set for mark events, Page for
// changePage.
type EventData struct {
	Event Event
	Shape Shape
	Page  int
	Point geom.Point
}

// Handler receives events
type Handler func(EventData)

// Unsubscribe removes the handler it was returned for. Calling it twice is harmless.
type Unsubscribe func()

// Registry is a concurrency-safe event fan-out that Canvas implementations can embed
type Registry struct {
	mu       sync.Mutex
	next     int
	handlers map[Event]map[int]Handler
}

// On registers h for event and returns its unsubscribe handle
func (r *Registry) On(event Event, h Handler) Unsubscribe {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = make(map[Event]map[int]Handler)
	}
	if r.handlers[event] == nil {
		r.handlers[event] = make(map[int]Handler)
	}
	id := r.next
	r.next++
	r.handlers[event][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.handlers[event], id)
			r.mu.Unlock()
		})
	}
}

// Emit calls every handler of data.Event in registration order. Handlers run outside
// the registry lock and may unsubscribe themselves.
func (r *Registry) Emit(data EventData) {
	r.mu.Lock()
	byID := r.handlers[data.Event]
	ids := make([]int, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	hs := make([]Handler, 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		hs = append(hs, byID[id])
	}
	r.mu.Unlock()

	for _, h := range hs {
		h(data)
	}
}

// Count returns how many handlers are registered for event
func (r *Registry) Count(event Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers[event])
}
