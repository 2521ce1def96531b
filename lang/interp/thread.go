package interp

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/go-spade/spade/lang/frame"
	"github.com/go-spade/spade/lang/heap"
)

// VMHandle is the slice of the hosting VM a Thread needs while running: the
// PRINTLN sink, module lookup for GINVOKE-style cross-module resolution, and
// the basic-module type lookup GETTYPE falls back to for primitives. It is
// declared here, in the package that needs it, rather than imported from
// the vm package, to avoid the import cycle a concrete *vm.VM type would
// create (vm imports lang/interp to drive a Thread); the vm package's VM
// type satisfies this interface structurally.
type VMHandle interface {
	// Stdout is where PRINTLN writes.
	Stdout() io.Writer

	// LookupModule resolves a fully qualified module name, for cross-module
	// global/class references outside a method's own constant pool.
	LookupModule(name string) (*heap.Module, bool)

	// BasicTypeFor returns the well-known Type for a primitive kind (null,
	// bool, char, int, float, string), as installed by the VM's one-time
	// load of the basic module (§4.6, §9). Header-embedding kinds answer
	// GETTYPE through their own Header.Type() instead.
	BasicTypeFor(k heap.Kind) *heap.Type
}

// Debugger observes a Thread's progress, called once per instruction when
// installed (§4.6). A nil Debugger disables the hook entirely; the
// interpreter never allocates on its behalf.
type Debugger interface {
	Update(vm VMHandle, th *Thread)
}

// Thread is one independent call stack executing against a shared VM and
// heap.Manager (§5 Concurrency). Each Thread has its own stack and its own
// cancellation and step-count accounting; the heap and module registry
// beneath it are shared and protected by their own locks.
type Thread struct {
	ID   uint64
	Name string

	VM      VMHandle
	Manager *heap.Manager
	Debug   Debugger

	MaxSteps          uint64
	MaxCallStackDepth int
	DisableRecursion  bool

	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
	steps     uint64

	callStack []*frame.Frame
}

// NewThread returns a Thread bound to vm and mgr, with the given id. The
// caller sets MaxSteps/MaxCallStackDepth/DisableRecursion/Debug afterward;
// zero values mean "unbounded" for the step and depth limits.
func NewThread(id uint64, name string, vm VMHandle, mgr *heap.Manager) *Thread {
	ctx, cancel := context.WithCancel(context.Background())
	return &Thread{
		ID:      id,
		Name:    name,
		VM:      vm,
		Manager: mgr,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Cancel requests cooperative termination: the dispatch loop checks it once
// per instruction and unwinds with a fatal error the next time it does.
func (th *Thread) Cancel() {
	th.cancelled.Store(true)
	th.cancel()
}

func (th *Thread) cancelledErr() bool { return th.cancelled.Load() }

// Depth reports the current call-stack depth.
func (th *Thread) Depth() int { return len(th.callStack) }

func (th *Thread) pushFrame(fr *frame.Frame) { th.callStack = append(th.callStack, fr) }

func (th *Thread) popFrame() { th.callStack = th.callStack[:len(th.callStack)-1] }

func (th *Thread) currentLine(fr *frame.Frame) uint32 {
	line, err := fr.Template.Lines.SourceLineFor(fr.PC)
	if err != nil {
		return 0
	}
	return line
}
