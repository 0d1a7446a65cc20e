// Package resource loads images asynchronously for the single-threaded render tick.
//
// A Future settles only inside Dispatch (or immediately for already known
// results), so every callback runs on the goroutine that drives the tick.
package resource

import (
	"errors"
	"image"
)

// ErrEmpty is reported for a response without a body.
var ErrEmpty = errors.New("empty image resource")

// State of a Future.
type State int

const (
	Pending State = iota
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Future is a pending image load.
type Future struct {
	url         string
	state       State
	img         image.Image
	err         error
	subscribers []func(image.Image, error)
}

// NewFuture returns a pending future for url.
func NewFuture(url string) *Future {
	return &Future{url: url}
}

// Resolved returns a future that is already Ready.
func Resolved(url string, img image.Image) *Future {
	return &Future{url: url, state: Ready, img: img}
}

// Rejected returns a future that already Failed.
func Rejected(url string, err error) *Future {
	return &Future{url: url, state: Failed, err: err}
}

func (f *Future) URL() string        { return f.url }
func (f *Future) State() State       { return f.state }
func (f *Future) Image() image.Image { return f.img }
func (f *Future) Err() error         { return f.err }
func (f *Future) Settled() bool      { return f.state != Pending }

// Then calls fn once the future settles. A settled future calls fn right away.
func (f *Future) Then(fn func(image.Image, error)) {
	if f.Settled() {
		fn(f.img, f.err)
		return
	}
	f.subscribers = append(f.subscribers, fn)
}

// settle is a no-op for a future that already settled.
func (f *Future) settle(img image.Image, err error) {
	if f.Settled() {
		return
	}
	if err == nil && img == nil {
		err = ErrEmpty
	}
	if err != nil {
		f.state = Failed
		f.err = err
	} else {
		f.state = Ready
		f.img = img
	}
	subscribers := f.subscribers
	f.subscribers = nil
	for _, fn := range subscribers {
		fn(f.img, f.err)
	}
}

// Loader starts image loads.
type Loader interface {
	Load(url string) *Future
}

// Dispatcher settles futures whose loads finished since the last call and
// returns how many it settled.
type Dispatcher interface {
	Dispatch() int
}
