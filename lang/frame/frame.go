// Package frame implements the activation record and its per-method
// tables (C4): FrameTemplate (the immutable blueprint built once by the
// loader) and Frame (the per-call activation cloned from it), plus the
// exception table, line-number table and match table a method carries
// (§3.4, §4.4).
//
// The split between a fixed-size contiguous args/locals/stack buffer and
// the blueprint that sizes it is grounded on the wider codebase's pattern
// of slicing one big per-call []Value buffer out of a method's static
// shape (locals count, max stack) — generalized here into separate args
// and locals tables addressed by 8-bit and 16-bit indices respectively, as
// the format requires, and into per-slot metadata and ramp-up-to-Capture,
// which that simpler model did not need.
package frame

import (
	"fmt"

	"github.com/go-spade/spade/lang/heap"
	"github.com/go-spade/spade/lang/spaderr"
)

// SlotInfo is the per-slot metadata an arg or local table entry carries
// (§3.1 Arg/Local, §3.4): its declared name and arbitrary string metadata.
type SlotInfo struct {
	Name string
	Meta map[string]string
}

// FrameTemplate is the immutable per-method blueprint (§3.4): code, arg
// and local slot prototypes, stack sizing, and the method's tables. Every
// call to the method clones a fresh Frame from this template.
type FrameTemplate struct {
	Method *heap.Method
	Module *heap.Module
	Pool   []heap.Value

	Code         []byte
	StackMax     int
	ClosureStart int

	Args   []SlotInfo
	Locals []SlotInfo

	Exceptions ExceptionTable
	Lines      LineTable
	Matches    []*MatchTable

	// PresetCaptures holds local slots that must start every call already
	// bound to a shared Capture, keyed by local index. CLOSURELOAD (§4.5)
	// populates this on a cloned template so that every future call into
	// that particular closure instance shares the same captures with the
	// enclosing activation that created it, rather than each call ramping
	// up an independent cell.
	PresetCaptures map[int]*heap.Capture
}

// NewFrame clones a fresh activation record from the template.
func (t *FrameTemplate) NewFrame() *Frame {
	args := make([]heap.Value, len(t.Args))
	for i := range args {
		args[i] = heap.NullValue
	}
	locals := make([]heap.Value, len(t.Locals))
	for i := range locals {
		locals[i] = heap.NullValue
	}
	localCaptures := make([]*heap.Capture, len(locals))
	for i, c := range t.PresetCaptures {
		if i >= 0 && i < len(localCaptures) {
			localCaptures[i] = c
		}
	}
	return &Frame{
		Template:      t,
		Stack:         make([]heap.Value, t.StackMax),
		Args:          args,
		ArgCaptures:   make([]*heap.Capture, len(args)),
		Locals:        locals,
		LocalCaptures: localCaptures,
	}
}

// Clone returns a new FrameTemplate sharing this one's code and tables but
// with an independent PresetCaptures map, the "deep-copies it (copying its
// frame template)" step of CLOSURELOAD (§4.5): the clone is what
// subsequent calls through the closure actually run, while the original
// template (the un-captured method) is left untouched.
func (t *FrameTemplate) Clone() *FrameTemplate {
	c := *t
	c.PresetCaptures = make(map[int]*heap.Capture, len(t.PresetCaptures))
	for k, v := range t.PresetCaptures {
		c.PresetCaptures[k] = v
	}
	return &c
}

// Frame is a single call's activation record (§3.4): a fixed-size operand
// stack, the instruction pointer into a copy-by-reference of the
// template's code, and the args/locals tables.
type Frame struct {
	Template *FrameTemplate

	Stack []heap.Value
	SP    int
	PC    uint32

	Args        []heap.Value
	ArgCaptures []*heap.Capture

	Locals        []heap.Value
	LocalCaptures []*heap.Capture
}

func (f *Frame) Push(v heap.Value) error {
	if f.SP >= len(f.Stack) {
		return spaderr.NewMemory(fmt.Sprintf("operand stack overflow (max %d)", len(f.Stack)))
	}
	f.Stack[f.SP] = v
	f.SP++
	return nil
}

func (f *Frame) Pop() (heap.Value, error) {
	if f.SP == 0 {
		return nil, spaderr.NewIllegalAccess("operand stack underflow")
	}
	f.SP--
	v := f.Stack[f.SP]
	f.Stack[f.SP] = nil
	return v, nil
}

func (f *Frame) Peek(depth int) (heap.Value, error) {
	idx := f.SP - 1 - depth
	if idx < 0 {
		return nil, spaderr.NewIllegalAccess("operand stack underflow")
	}
	return f.Stack[idx], nil
}

// GetArg reads argument i, dereferencing through its Capture if the slot
// has been ramped up.
func (f *Frame) GetArg(i int) (heap.Value, error) {
	if i < 0 || i >= len(f.Args) {
		return nil, spaderr.NewIllegalAccess("argument index %d out of range", i)
	}
	if c := f.ArgCaptures[i]; c != nil {
		return c.Load(), nil
	}
	return f.Args[i], nil
}

func (f *Frame) SetArg(i int, v heap.Value) error {
	if i < 0 || i >= len(f.Args) {
		return spaderr.NewIllegalAccess("argument index %d out of range", i)
	}
	if c := f.ArgCaptures[i]; c != nil {
		c.Store(v)
		return nil
	}
	f.Args[i] = v
	return nil
}

// RampUpArg installs a Capture at argument slot i if not already present
// (§4.4 ramp_up), returning it so the caller (CLOSURELOAD) can share it
// with a nested frame's local.
func (f *Frame) RampUpArg(i int) (*heap.Capture, error) {
	if i < 0 || i >= len(f.Args) {
		return nil, spaderr.NewIllegalAccess("argument index %d out of range", i)
	}
	if f.ArgCaptures[i] == nil {
		f.ArgCaptures[i] = heap.NewCapture(f.Args[i])
	}
	return f.ArgCaptures[i], nil
}

func (f *Frame) GetLocal(i int) (heap.Value, error) {
	if i < 0 || i >= len(f.Locals) {
		return nil, spaderr.NewIllegalAccess("local index %d out of range", i)
	}
	if c := f.LocalCaptures[i]; c != nil {
		return c.Load(), nil
	}
	return f.Locals[i], nil
}

func (f *Frame) SetLocal(i int, v heap.Value) error {
	if i < 0 || i >= len(f.Locals) {
		return spaderr.NewIllegalAccess("local index %d out of range", i)
	}
	if c := f.LocalCaptures[i]; c != nil {
		c.Store(v)
		return nil
	}
	f.Locals[i] = v
	return nil
}

// RampUpLocal installs a Capture at local slot i if not already present.
func (f *Frame) RampUpLocal(i int) (*heap.Capture, error) {
	if i < 0 || i >= len(f.Locals) {
		return nil, spaderr.NewIllegalAccess("local index %d out of range", i)
	}
	if f.LocalCaptures[i] == nil {
		f.LocalCaptures[i] = heap.NewCapture(f.Locals[i])
	}
	return f.LocalCaptures[i], nil
}

// InstallCapture binds an already-existing Capture at local slot i,
// bypassing normal ramp-up — the other half of CLOSURELOAD (§4.5): a
// nested method's closed-over local is installed directly from the
// enclosing frame's ramped-up Capture, not independently promoted.
func (f *Frame) InstallCapture(i int, c *heap.Capture) error {
	if i < 0 || i >= len(f.Locals) {
		return spaderr.NewIllegalAccess("local index %d out of range", i)
	}
	f.LocalCaptures[i] = c
	return nil
}

// Reset clears the operand stack and sets pc, used by exception unwinding
// (§4.5 "clear the operand stack, push the thrown value, resume").
func (f *Frame) Reset(pc uint32) {
	for i := 0; i < f.SP; i++ {
		f.Stack[i] = nil
	}
	f.SP = 0
	f.PC = pc
}
