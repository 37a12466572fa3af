// Package singleflight is a typed wrapper around golang.org/x/sync/singleflight
// that also reports which keys have a call running.
package singleflight

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Group merges concurrent calls that share a key into one execution.
// The zero value is ready to use.
type Group[T any] struct {
	g singleflight.Group

	mu sync.Mutex
	m  map[string]int
}

// Result is delivered on the channel returned by DoChan.
type Result[T any] struct {
	Val    T
	Err    error
	Shared bool
}

// New creates a new Group.
func New[T any]() *Group[T] {
	return &Group[T]{m: make(map[string]int)}
}

// Do executes fn once per key at a time. Duplicate callers wait for the
// original call and receive its results; shared reports whether more than
// one caller received them.
func (g *Group[T]) Do(key string, fn func() (T, error)) (v T, err error, shared bool) {
	val, err, shared := g.g.Do(key, g.wrap(key, fn))
	if val != nil {
		v = val.(T)
	}
	return v, err, shared
}

// DoChan is like Do but returns a channel that receives the result. The
// channel is buffered so an abandoned receiver never blocks the owner.
func (g *Group[T]) DoChan(key string, fn func() (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)
	ch := g.g.DoChan(key, g.wrap(key, fn))
	go func() {
		r := <-ch
		var v T
		if r.Val != nil {
			v = r.Val.(T)
		}
		out <- Result[T]{Val: v, Err: r.Err, Shared: r.Shared}
	}()
	return out
}

// Forget drops key so the next call executes even if one is in flight.
func (g *Group[T]) Forget(key string) {
	g.g.Forget(key)
}

// InFlight reports whether a call for key is running.
func (g *Group[T]) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.m[key] > 0
}

func (g *Group[T]) wrap(key string, fn func() (T, error)) func() (any, error) {
	return func() (any, error) {
		g.mu.Lock()
		if g.m == nil {
			g.m = make(map[string]int)
		}
		g.m[key]++
		g.mu.Unlock()

		defer func() {
			g.mu.Lock()
			if g.m[key]--; g.m[key] <= 0 {
				delete(g.m, key)
			}
			g.mu.Unlock()
		}()
		return fn()
	}
}
