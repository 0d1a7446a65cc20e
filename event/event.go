// Package event is a small synchronous publish/subscribe hub shared by maps and layers.
package event

import "sync"

type Type string

const (
	// LayerAdded carries the added layer.
	LayerAdded Type = "layerAdd"
	// LayerRemoved carries the removed layer.
	LayerRemoved Type = "layerRemove"
	// LayerOrderChanged carries the moved layer.
	LayerOrderChanged Type = "layerOrderChange"
	// Changed is raised by a layer whose content or display properties changed.
	Changed Type = "propertyChange"
	// Moved is raised on every map center or resolution change.
	Moved Type = "bboxChange"
	// Settled is raised when a burst of map changes is over.
	Settled Type = "bboxChangeEnd"
)

type Event struct {
	Type    Type
	Payload any
}

type handler struct {
	id int
	fn func(Event)
}

// Emitter dispatches events to handlers synchronously, in subscription order.
type Emitter struct {
	mu       sync.Mutex
	next     int
	handlers map[Type][]handler
}

// On subscribes fn to t and returns the function that removes it.
func (e *Emitter) On(t Type, fn func(Event)) (off func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers == nil {
		e.handlers = make(map[Type][]handler)
	}
	e.next++
	id := e.next
	e.handlers[t] = append(e.handlers[t], handler{id: id, fn: fn})
	return func() { e.off(t, id) }
}

func (e *Emitter) off(t Type, id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	hs := e.handlers[t]
	for i, h := range hs {
		if h.id == id {
			e.handlers[t] = append(hs[:i:i], hs[i+1:]...)
			return
		}
	}
}

// Emit calls the handlers subscribed at the time of the call.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	hs := append([]handler(nil), e.handlers[ev.Type]...)
	e.mu.Unlock()
	for _, h := range hs {
		h.fn(ev)
	}
}

// Forward re-emits events of the given types on target.
func (e *Emitter) Forward(target *Emitter, types ...Type) (off func()) {
	offs := make([]func(), len(types))
	for i, t := range types {
		offs[i] = e.On(t, target.Emit)
	}
	return func() {
		for _, o := range offs {
			o()
		}
	}
}
