package heap

import "sync"

// Capture is the indirection cell used to share a local or argument slot
// between an enclosing frame and a nested closure (§3.2, §4.5 CLOSURELOAD).
// Reads and writes of a ramped-up slot go through the Capture rather than
// the frame's own array, so both activations observe the same value.
type Capture struct {
	Header
	mu sync.RWMutex
	v  Value
}

// NewCapture wraps v in a fresh Capture, installed by Frame.RampUpArg or
// Frame.RampUpLocal the first time a slot is promoted.
func NewCapture(v Value) *Capture {
	return &Capture{v: v}
}

func (c *Capture) Kind() Kind     { return KindCapture }
func (c *Capture) String() string { return "capture" }

// Load returns the cell's current value.
func (c *Capture) Load() Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v
}

// Store overwrites the cell's value, visible to every holder of the
// Capture before the next synchronization point (§8 "captured write
// visibility").
func (c *Capture) Store(v Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v = v
}
