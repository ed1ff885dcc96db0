// Package valuecell holds mutable attribute data behind an explicit version
// so consumers can tell whether a value changed since they last read it.
package valuecell

import "sync"

// Cell is a value plus a version that increases on every write.
type Cell[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
}

// New returns a cell holding v at version 0.
func New[T any](v T) *Cell[T] {
	return &Cell[T]{value: v}
}

// Value returns the current value.
func (c *Cell[T]) Value() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Version returns the number of writes so far.
func (c *Cell[T]) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Load returns the value together with its version.
func (c *Cell[T]) Load() (T, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.version
}

// Set replaces the value and marks the cell changed.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	c.value = v
	c.version++
	c.mu.Unlock()
}

// Update applies fn to the value in place and marks the cell changed.
func (c *Cell[T]) Update(fn func(T) T) {
	c.mu.Lock()
	c.value = fn(c.value)
	c.version++
	c.mu.Unlock()
}

// Changed reports whether the cell was written after version since.
func (c *Cell[T]) Changed(since uint64) bool {
	return c.Version() != since
}
