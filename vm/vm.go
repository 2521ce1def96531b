// Package vm is the process-wide glue binding together the module
// registry, the thread registry, and the stdout sink every lang/interp
// Thread runs against (§4.6). It is the one package allowed to import
// lang/interp and construct Threads; lang/interp only ever sees it through
// the VMHandle interface it declares itself, so there is no import cycle.
package vm

import (
	"io"
	"sync"

	"github.com/go-spade/spade/lang/heap"
	"github.com/go-spade/spade/lang/interp"
	"github.com/go-spade/spade/lang/sig"
)

// VM owns every resource shared across the Threads executing a program:
// the module registry, the per-signature metadata store, the thread
// registry, and the PRINTLN sink. A VM is safe for concurrent use from
// multiple Threads (§5).
type VM struct {
	Manager *heap.Manager

	stdout io.Writer

	modMu   sync.RWMutex
	modules map[string]*heap.Module // keyed by top-level module name

	metaMu sync.RWMutex
	meta   map[string]map[string]string // signature -> key -> value

	threadMu sync.RWMutex
	threads  map[uint64]*interp.Thread
	nextID   uint64

	basicMu sync.Mutex
	basic   map[heap.Kind]*heap.Type
}

// New returns a VM that writes PRINTLN output to stdout. A nil stdout
// defaults to io.Discard, matching a headless or test-only caller that has
// no interest in program output.
func New(stdout io.Writer) *VM {
	if stdout == nil {
		stdout = io.Discard
	}
	return &VM{
		Manager: heap.NewManager(),
		stdout:  stdout,
		modules: make(map[string]*heap.Module),
		meta:    make(map[string]map[string]string),
		threads: make(map[uint64]*interp.Thread),
		basic:   make(map[heap.Kind]*heap.Type),
	}
}

// Stdout implements interp.VMHandle.
func (vm *VM) Stdout() io.Writer { return vm.stdout }

// BasicTypeFor implements interp.VMHandle, answering GETTYPE's fallback for
// a primitive kind once LoadBasic has run. Returns nil for a kind with no
// basic-module counterpart (array/object/module/method/type/capture all
// answer GETTYPE through their own Header.Type() instead; see opGettype).
func (vm *VM) BasicTypeFor(k heap.Kind) *heap.Type {
	vm.basicMu.Lock()
	defer vm.basicMu.Unlock()
	return vm.basic[k]
}

// RegisterModule adds mod to the top-level registry, keyed by its full
// Name. LookupModule looks only a name's first "::"-separated segment up
// in this registry, so a module is reachable through it only when its Name
// has no parent qualifier. A module loaded as someone else's submodule is
// reachable only through its parent's Submodules map, not this registry;
// RegisterModule is for the top-level modules a Loader.Load call returns.
func (vm *VM) RegisterModule(mod *heap.Module) {
	vm.modMu.Lock()
	defer vm.modMu.Unlock()
	vm.modules[mod.Name] = mod
}

// LookupModule implements interp.VMHandle: it resolves a fully qualified,
// "::"-separated module name by looking up the top-level segment in the
// registry, then walking Submodules for every remaining segment (§4.6's
// "hierarchical lookup via signature walking").
func (vm *VM) LookupModule(name string) (*heap.Module, bool) {
	parts := splitModulePath(name)
	if len(parts) == 0 {
		return nil, false
	}

	vm.modMu.RLock()
	mod, ok := vm.modules[parts[0]]
	vm.modMu.RUnlock()
	if !ok {
		return nil, false
	}

	for _, seg := range parts[1:] {
		next, ok := mod.Submodules[seg]
		if !ok {
			return nil, false
		}
		mod = next
	}
	return mod, true
}

// splitModulePath splits a "::"-joined qualified name into its segments,
// using the sig package's grammar rather than strings.Split directly so a
// module path embedded inside a fuller class/method signature (e.g.
// "a::b.Class.method()") still yields just the module segments.
func splitModulePath(name string) []string {
	parsed, err := sig.Parse(name)
	if err != nil {
		return nil
	}
	return parsed.Modules
}

// SetMetadata records a string value under sig for later Metadata lookup,
// mirroring the per-module manifest dump the loader can optionally produce
// (LoadOptions.ManifestDump).
func (vm *VM) SetMetadata(signature, key, value string) {
	vm.metaMu.Lock()
	defer vm.metaMu.Unlock()
	m, ok := vm.meta[signature]
	if !ok {
		m = make(map[string]string)
		vm.meta[signature] = m
	}
	m[key] = value
}

// Metadata returns the value stored under sig/key, if any.
func (vm *VM) Metadata(signature, key string) (string, bool) {
	vm.metaMu.RLock()
	defer vm.metaMu.RUnlock()
	m, ok := vm.meta[signature]
	if !ok {
		return "", false
	}
	v, ok := m[key]
	return v, ok
}

// registerThread adds th to the registry under its own ID, assigning the
// next sequential ID if th.ID is zero.
func (vm *VM) registerThread(th *interp.Thread) {
	vm.threadMu.Lock()
	defer vm.threadMu.Unlock()
	if th.ID == 0 {
		vm.nextID++
		th.ID = vm.nextID
	}
	vm.threads[th.ID] = th
}

func (vm *VM) unregisterThread(id uint64) {
	vm.threadMu.Lock()
	defer vm.threadMu.Unlock()
	delete(vm.threads, id)
}

// Thread looks up a registered Thread by ID, for a foreign call or
// debugger that needs to reach a thread other than its own.
func (vm *VM) Thread(id uint64) (*interp.Thread, bool) {
	vm.threadMu.RLock()
	defer vm.threadMu.RUnlock()
	th, ok := vm.threads[id]
	return th, ok
}

// Threads returns a snapshot of every currently registered thread.
func (vm *VM) Threads() []*interp.Thread {
	vm.threadMu.RLock()
	defer vm.threadMu.RUnlock()
	out := make([]*interp.Thread, 0, len(vm.threads))
	for _, th := range vm.threads {
		out = append(out, th)
	}
	return out
}

// newThread allocates a fresh Thread bound to this VM with a unique ID, but
// does not register it; callers driving the top-level program call
// RunMain, and anything spawning a concurrent worker thread calls Spawn,
// both of which register the Thread themselves.
func (vm *VM) newThread(name string) *interp.Thread {
	vm.threadMu.Lock()
	vm.nextID++
	id := vm.nextID
	vm.threadMu.Unlock()
	return interp.NewThread(id, name, vm, vm.Manager)
}

// RunMain registers a Thread for the program's entry point and runs fn on
// it synchronously, deregistering the thread once fn returns. It exists
// alongside Spawn so the top-level call (which has no producer racing it)
// does not pay for the handshake machinery spawn needs.
func (vm *VM) RunMain(name string, fn func(th *interp.Thread) (heap.Value, error)) (heap.Value, error) {
	th := vm.newThread(name)
	vm.registerThread(th)
	defer vm.unregisterThread(th.ID)
	return fn(th)
}

// ThreadHandle is the caller's view of a Spawn'd thread: the Thread itself,
// plus a way to block for and retrieve its eventual result.
type ThreadHandle struct {
	Thread *interp.Thread

	done   chan struct{}
	result heap.Value
	err    error
}

// Join blocks until the spawned thread's body has returned, then yields
// its result.
func (h *ThreadHandle) Join() (heap.Value, error) {
	<-h.done
	return h.result, h.err
}

// Spawn starts fn running on a new Thread in its own goroutine (§5
// Concurrency: "parallel OS threads"). It blocks the caller until two
// things have both happened: the new thread is visible in the registry,
// and the new goroutine has begun running fn — the producer-consumer
// handshake §5 requires so a thread can never be observed unregistered
// once its body starts. Spawn itself returns as soon as the handshake
// completes; it does not wait for fn to finish (see ThreadHandle.Join).
func (vm *VM) Spawn(name string, fn func(th *interp.Thread) (heap.Value, error)) *ThreadHandle {
	th := vm.newThread(name)
	handle := &ThreadHandle{Thread: th, done: make(chan struct{})}

	var regMu sync.Mutex
	regCond := sync.NewCond(&regMu)
	registered := false

	var startMu sync.Mutex
	startCond := sync.NewCond(&startMu)
	started := false

	go func() {
		regMu.Lock()
		for !registered {
			regCond.Wait()
		}
		regMu.Unlock()

		startMu.Lock()
		started = true
		startCond.Signal()
		startMu.Unlock()

		handle.result, handle.err = fn(th)
		vm.unregisterThread(th.ID)
		close(handle.done)
	}()

	vm.registerThread(th)

	regMu.Lock()
	registered = true
	regCond.Signal()
	regMu.Unlock()

	startMu.Lock()
	for !started {
		startCond.Wait()
	}
	startMu.Unlock()

	return handle
}

// stepDebugger is a minimal interp.Debugger counting dispatch-loop
// iterations across every thread it is attached to; it exists so a VM has
// something concrete to hand a Thread when no richer debugger (e.g. a TUI)
// is attached, rather than leaving Thread.Debug nil only by convention.
type stepDebugger struct {
	mu    sync.Mutex
	steps map[uint64]uint64
}

// NewStepDebugger returns an interp.Debugger that tallies instructions
// dispatched per thread ID, for a caller that wants step counts without
// building a full TUI.
func NewStepDebugger() interp.Debugger {
	return &stepDebugger{steps: make(map[uint64]uint64)}
}

func (d *stepDebugger) Update(_ interp.VMHandle, th *interp.Thread) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.steps[th.ID]++
}

// Steps reports the number of instructions dispatched so far for threadID.
func (d *stepDebugger) Steps(threadID uint64) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.steps[threadID]
}
