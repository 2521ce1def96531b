package heap

import "github.com/go-spade/spade/lang/spaderr"

// Manager is the allocator every heap value is created through (§4.2):
// each allocation records the manager back-pointer and invokes a
// post-allocation hook, giving a future collector a chance to enqueue or
// mark the value without this package needing to know anything about how
// collection works. No collector runs today (§4.2 explicitly leaves real
// GC out of scope); OnAlloc defaults to a no-op.
type Manager struct {
	OnAlloc func(Monitored)
	OnFree  func(Monitored)
}

// NewManager returns a Manager with no-op hooks.
func NewManager() *Manager {
	return &Manager{}
}

// Halloc registers v as having been allocated by m, stamping its Header's
// manager back-pointer and firing OnAlloc.
func (m *Manager) Halloc(v Monitored) (Monitored, error) {
	if m == nil {
		return nil, spaderr.NewArgument("halloc called without a memory manager")
	}
	switch h := headerOf(v); {
	case h != nil:
		h.mgr = m
	}
	if m.OnAlloc != nil {
		m.OnAlloc(v)
	}
	return v, nil
}

// Hfree runs the destructor (today: the OnFree hook) then returns; there
// is no backing memory pool to return the value to since allocation is
// delegated to the Go garbage collector for the underlying storage. The
// hook exists so a future reference-counted or arena-based manager has
// somewhere to plug in without changing every call site.
func (m *Manager) Hfree(v Monitored) {
	if m == nil || v == nil {
		return
	}
	if m.OnFree != nil {
		m.OnFree(v)
	}
}

// headerOf extracts the embedded *Header from any of the concrete
// Monitored kinds, so Halloc/Hfree can stamp the manager back-pointer
// without a type switch at every call site growing with each new kind.
func headerOf(v Monitored) *Header {
	switch x := v.(type) {
	case *Array:
		return &x.Header
	case *Object:
		return &x.Header
	case *Module:
		return &x.Header
	case *Method:
		return &x.Header
	case *Type:
		return &x.Header
	case *Capture:
		return &x.Header
	}
	return nil
}
