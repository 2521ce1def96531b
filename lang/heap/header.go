package heap

import (
	"sync"

	"github.com/go-spade/spade/lang/spaderr"
)

// Header is the memory-info header every non-primitive heap value embeds
// (§3.2): a type pointer, a back-pointer to the owning Manager, a GC mark
// bit, and a recursive monitor for ENTERMONITOR/EXITMONITOR.
type Header struct {
	typ     *Type
	mgr     *Manager
	marked  bool
	monitor Monitor
}

func (h *Header) Type() *Type       { return h.typ }
func (h *Header) Monitor() *Monitor { return &h.monitor }

// Mark sets or clears the GC mark bit. No collector runs today (§4.2 notes
// real GC as out of scope); the bit exists so a future mark phase has
// somewhere to record state without changing the value layout.
func (h *Header) Mark(v bool)  { h.marked = v }
func (h *Header) Marked() bool { return h.marked }

// Monitor is the recursive mutex every heap value owns. It is recursive
// with respect to the calling Thread, identified by an opaque id the
// interpreter passes in: a thread that already holds the monitor may
// re-enter it, and must exit the same number of times before another
// thread can acquire it.
type Monitor struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner uint64
	held  bool
	depth int
}

func (m *Monitor) init() {
	if m.cond == nil {
		m.cond = sync.NewCond(&m.mu)
	}
}

// Enter acquires the monitor on behalf of threadID, blocking if another
// thread currently holds it.
func (m *Monitor) Enter(threadID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	for m.held && m.owner != threadID {
		m.cond.Wait()
	}
	m.owner = threadID
	m.held = true
	m.depth++
}

// Exit releases one level of the monitor held by threadID. It is an
// IllegalAccess error to exit a monitor not held by threadID.
func (m *Monitor) Exit(threadID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	if !m.held || m.owner != threadID {
		return spaderr.NewIllegalAccess("monitor not held by thread %d", threadID)
	}
	m.depth--
	if m.depth == 0 {
		m.held = false
		m.cond.Signal()
	}
	return nil
}
