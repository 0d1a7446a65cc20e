package resource

import (
	"image"
	"sync"
)

// Manual is a Loader whose loads finish only when told to. Embedding
// applications use it for images they render themselves.
type Manual struct {
	mu       sync.Mutex
	pending  map[string][]*Future
	requests []string
	queue    []completion
}

func NewManual() *Manual {
	return &Manual{pending: make(map[string][]*Future)}
}

func (m *Manual) Load(url string) *Future {
	f := NewFuture(url)
	m.mu.Lock()
	m.pending[url] = append(m.pending[url], f)
	m.requests = append(m.requests, url)
	m.mu.Unlock()
	return f
}

// Requests lists every requested url in request order, repeats included.
func (m *Manual) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.requests))
	copy(out, m.requests)
	return out
}

// Pending returns how many loads of url are still unfinished.
func (m *Manual) Pending(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending[url])
}

// Resolve finishes every pending load of url with img. It returns the number of loads finished.
func (m *Manual) Resolve(url string, img image.Image) int {
	return m.finish(url, img, nil)
}

// Fail finishes every pending load of url with err.
func (m *Manual) Fail(url string, err error) int {
	return m.finish(url, nil, err)
}

func (m *Manual) finish(url string, img image.Image, err error) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	futures := m.pending[url]
	delete(m.pending, url)
	for _, f := range futures {
		m.queue = append(m.queue, completion{future: f, img: img, err: err})
	}
	return len(futures)
}

func (m *Manual) Dispatch() int {
	m.mu.Lock()
	queue := m.queue
	m.queue = nil
	m.mu.Unlock()
	for _, c := range queue {
		c.future.settle(c.img, c.err)
	}
	return len(queue)
}
