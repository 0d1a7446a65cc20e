// Package crs identifies coordinate systems and resolves projections between them.
//
// Systems form a sparse directed graph: every system knows a few one-step
// projections to its neighbours. ProjectionTo composes at most two steps and
// remembers the answer, including a negative one, for the process lifetime.
package crs

import (
	"errors"
	"sync"

	"github.com/paulmach/orb"
)

// ErrNoProjection is returned by callers that need a projection and got none.
var ErrNoProjection = errors.New("no projection between coordinate systems")

type edge struct {
	target *CRS
	fn     orb.Projection
}

type memoEntry struct {
	fn orb.Projection
	ok bool
}

// CRS is a named coordinate system.
type CRS struct {
	id          string
	description string

	mu    sync.Mutex
	edges []edge
	memo  map[*CRS]memoEntry
}

// New creates a coordinate system without any projections.
func New(id, description string) *CRS {
	return &CRS{
		id:          id,
		description: description,
		memo:        make(map[*CRS]memoEntry),
	}
}

func (c *CRS) ID() string {
	return c.id
}

func (c *CRS) Description() string {
	return c.description
}

func (c *CRS) String() string {
	return c.id
}

// AddProjection registers a one-step projection from c to target.
// A later registration for the same target replaces the earlier one for lookups
// that have not been memoized yet.
func (c *CRS) AddProjection(target *CRS, fn orb.Projection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.edges {
		if c.edges[i].target == target {
			c.edges[i].fn = fn
			return
		}
	}
	c.edges = append(c.edges, edge{target: target, fn: fn})
}

// Equals reports whether c and other are the same system.
func (c *CRS) Equals(other *CRS) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c == other || c.id == other.id && c.id != ""
}

// ProjectionTo returns the function converting positions in c to target.
func (c *CRS) ProjectionTo(target *CRS) (orb.Projection, bool) {
	if c == nil || target == nil {
		return nil, false
	}
	if c.Equals(target) {
		return identity, true
	}

	c.mu.Lock()
	if m, found := c.memo[target]; found {
		c.mu.Unlock()
		return m.fn, m.ok
	}
	edges := make([]edge, len(c.edges))
	copy(edges, c.edges)
	c.mu.Unlock()

	fn, ok := resolve(edges, target)

	c.mu.Lock()
	c.memo[target] = memoEntry{fn: fn, ok: ok}
	c.mu.Unlock()
	return fn, ok
}

// CanProjectTo reports whether ProjectionTo finds a path.
func (c *CRS) CanProjectTo(target *CRS) bool {
	_, ok := c.ProjectionTo(target)
	return ok
}

// Project converts p into target.
func (c *CRS) Project(p orb.Point, target *CRS) (orb.Point, bool) {
	fn, ok := c.ProjectionTo(target)
	if !ok {
		return orb.Point{}, false
	}
	return fn(p), true
}

func resolve(edges []edge, target *CRS) (orb.Projection, bool) {
	for _, e := range edges {
		if e.target.Equals(target) {
			return e.fn, true
		}
	}
	for _, e := range edges {
		second, ok := e.target.directTo(target)
		if !ok {
			continue
		}
		first := e.fn
		return func(p orb.Point) orb.Point {
			return second(first(p))
		}, true
	}
	return nil, false
}

func (c *CRS) directTo(target *CRS) (orb.Projection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.edges {
		if e.target.Equals(target) {
			return e.fn, true
		}
	}
	return nil, false
}

func identity(p orb.Point) orb.Point {
	return p
}
