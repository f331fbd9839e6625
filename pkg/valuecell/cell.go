// Package valuecell implements the value cell: the named slot a service
// writes into during its owner's STARTING/STOPPING window, readable by
// dependents for as long as the owner reports the value defined.
package valuecell

import "sync"

// Cell holds one provided value. Writes are only accepted while the
// cell is open (the owner's STARTING/STOPPING window); the defined
// value itself persists across that window so it remains readable while
// the owner is UP, per spec §3/§8.
type Cell struct {
	mu       sync.RWMutex
	value    interface{}
	defined  bool
	writable bool
}

// New returns a cell with no value, closed for writes.
func New() *Cell { return &Cell{} }

// OpenForWrite makes the cell writable. Called by the owning controller
// on entry to STARTING and again on entry to STOPPING.
func (c *Cell) OpenForWrite() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writable = true
}

// CloseForWrite makes the cell unwritable without touching its value.
// Called leaving STARTING into UP (the value now belongs to readers
// only) and leaving STOPPING into DOWN.
func (c *Cell) CloseForWrite() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writable = false
}

// Clear wipes the stored value, making the cell undefined. Called on
// start failure and once a stop completes.
func (c *Cell) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
	c.defined = false
}

// Set stores a value, reporting false — a contract violation per §7 —
// if the cell is not currently open for writes.
func (c *Cell) Set(v interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.writable {
		return false
	}
	c.value = v
	c.defined = true
	return true
}

// Get returns the stored value and whether one is currently defined.
func (c *Cell) Get() (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.defined
}

// Defined reports whether a value is currently present.
func (c *Cell) Defined() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defined
}
