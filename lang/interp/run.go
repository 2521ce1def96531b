package interp

import (
	"fmt"

	"github.com/go-spade/spade/lang/frame"
	"github.com/go-spade/spade/lang/heap"
	"github.com/go-spade/spade/lang/spaderr"
)

// Call invokes m with args in a fresh Frame pushed onto th's call stack
// (§4.5 dispatch loop, §5 "each Thread owns its own call stack"). A bound
// method (§4.5 SPLOAD/VINVOKE/SPINVOKE "bind this") has its receiver
// installed into the new frame's locals[0] before execution starts,
// matching CLOSURELOAD's own "install into locals[k]" shape rather than
// treating the receiver as an extra argument.
func (th *Thread) Call(m *heap.Method, args []heap.Value) (heap.Value, error) {
	if th.cancelledErr() {
		return nil, spaderr.NewArgument("thread cancelled")
	}
	if th.MaxCallStackDepth > 0 && th.Depth() >= th.MaxCallStackDepth {
		return nil, spaderr.NewStackOverflow(th.Depth())
	}
	if th.DisableRecursion {
		for _, fr := range th.callStack {
			if fr.Template.Method == m {
				return nil, spaderr.NewStackOverflow(th.Depth())
			}
		}
	}
	if ff, ok := m.Body.(ForeignFunc); ok {
		v, err := ff(th, m.BoundSelf, args)
		if err == nil && v == nil {
			v = heap.NullValue
		}
		return v, err
	}
	tmpl, ok := m.Body.(*frame.FrameTemplate)
	if !ok || tmpl == nil {
		return nil, spaderr.NewForeignCall("method " + m.Name + " has no frame template")
	}
	fr := tmpl.NewFrame()
	for i := 0; i < len(args) && i < len(fr.Args); i++ {
		fr.Args[i] = args[i]
	}
	if m.BoundSelf != nil && len(fr.Locals) > 0 {
		fr.Locals[0] = m.BoundSelf
	}
	th.pushFrame(fr)
	defer th.popFrame()
	return th.run(fr)
}

// run is the dispatch loop (§4.5): it reads the opcode at fr.PC, advances
// past its operand, and branches. A per-call subStack backs CALLSUB/RETSUB,
// which are intra-method only and so need no representation on Frame
// itself. RET and VRET return straight out of run, bypassing exception
// unwinding entirely (RET's only failure, popping an empty operand stack,
// is returned as is); every other opcode's
// error return is routed through catch, which resumes the same frame on a
// matching exception-table entry or propagates otherwise.
func (th *Thread) run(fr *frame.Frame) (heap.Value, error) {
	var subStack []uint32
	tmpl := fr.Template
	code := tmpl.Code

	for {
		if th.MaxSteps > 0 && th.steps >= th.MaxSteps {
			return nil, spaderr.NewArgument("thread exceeded max step budget")
		}
		th.steps++
		if th.cancelledErr() {
			return nil, spaderr.NewArgument("thread cancelled")
		}
		if th.Debug != nil {
			th.Debug.Update(th.VM, th)
		}

		instrPC := fr.PC
		if instrPC >= uint32(len(code)) {
			return nil, spaderr.NewIllegalAccess("pc %d out of range", instrPC)
		}
		op := Opcode(code[instrPC])

		width := operandBytes(op)
		if width == closureLoadWidth {
			width = 0
		}
		next := instrPC + 1 + uint32(width)
		fr.PC = next

		var operand uint32
		switch width {
		case 1:
			operand = uint32(code[instrPC+1])
		case 2:
			operand = be16(code[instrPC+1 : instrPC+3])
		}

		var err error
		switch op {
		case NOP:

		case CONST, CONSTF:
			err = pushPool(fr, operand)
		case CONSTNULL:
			err = fr.Push(heap.NullValue)
		case CONSTTRUE:
			err = fr.Push(heap.Bool(true))
		case CONSTFALSE:
			err = fr.Push(heap.Bool(false))
		case POP:
			_, err = fr.Pop()
		case NPOP:
			for i := uint32(0); i < operand && err == nil; i++ {
				_, err = fr.Pop()
			}
		case DUP:
			var v heap.Value
			if v, err = fr.Peek(0); err == nil {
				err = fr.Push(v)
			}
		case NDUP:
			var v heap.Value
			if v, err = fr.Peek(0); err == nil {
				for i := uint32(0); i < operand && err == nil; i++ {
					err = fr.Push(v)
				}
			}

		case GLOAD, GLOADF:
			err = th.opGload(fr, operand)
		case GSTORE, GSTOREF:
			err = th.opGstore(fr, operand, false)
		case PGSTORE, PGSTOREF:
			err = th.opGstore(fr, operand, true)
		case LLOAD, LLOADF:
			var v heap.Value
			if v, err = fr.GetLocal(int(operand)); err == nil {
				err = fr.Push(v)
			}
		case LSTORE, LSTOREF:
			err = opSlotStore(fr, int(operand), false, fr.SetLocal)
		case PLSTORE, PLSTOREF:
			err = opSlotStore(fr, int(operand), true, fr.SetLocal)
		case ALOAD, ALOADF:
			var v heap.Value
			if v, err = fr.GetArg(int(operand)); err == nil {
				err = fr.Push(v)
			}
		case ASTORE, ASTOREF:
			err = opSlotStore(fr, int(operand), false, fr.SetArg)
		case PASTORE, PASTOREF:
			err = opSlotStore(fr, int(operand), true, fr.SetArg)
		case MLOAD, MLOADF:
			err = th.opMload(fr, operand)
		case MSTORE, MSTOREF:
			err = th.opMstore(fr, operand, false)
		case PMSTORE, PMSTOREF:
			err = th.opMstore(fr, operand, true)

		case SPLOAD, SPLOADF:
			err = th.opSpload(fr, operand)

		case ARRPACK:
			err = th.opArrpack(fr, int(operand))
		case ARRUNPACK:
			err = th.opArrunpack(fr)
		case ARRBUILD:
			err = fr.Push(heap.NewZeroArray(int(operand)))
		case ILOAD:
			err = th.opIload(fr)
		case ISTORE:
			err = th.opIstore(fr, false)
		case PISTORE:
			err = th.opIstore(fr, true)
		case ARRLEN:
			err = th.opArrlen(fr)

		case INVOKE:
			err = th.opInvoke(fr, int(operand))
		case VINVOKE, VINVOKEF, GINVOKE, GINVOKEF, LINVOKE, LINVOKEF,
			AINVOKE, AINVOKEF, SPINVOKE, SPINVOKEF:
			idx, argc := parseInvokeOperand(code, instrPC, op)
			err = th.dispatchInvoke(fr, op, idx, int(argc))
		case CALLSUB:
			subStack = append(subStack, next)
			fr.PC = jumpTarget(next, operand)
		case RETSUB:
			if len(subStack) == 0 {
				err = spaderr.NewIllegalAccess("retsub with empty call-sub stack")
			} else {
				fr.PC = subStack[len(subStack)-1]
				subStack = subStack[:len(subStack)-1]
			}

		case JMP:
			fr.PC = jumpTarget(next, operand)
		case JT, JF:
			var v heap.Value
			if v, err = fr.Pop(); err == nil {
				taken := heap.Truth(v)
				if op == JF {
					taken = !taken
				}
				if taken {
					fr.PC = jumpTarget(next, operand)
				}
			}
		case JLT, JLE, JEQ, JNE, JGE, JGT:
			var a, b heap.Value
			if b, err = fr.Pop(); err == nil {
				if a, err = fr.Pop(); err == nil {
					if comparePredicate(op, heap.Compare(a, b)) {
						fr.PC = jumpTarget(next, operand)
					}
				}
			}

		case ADD, SUB, MUL, DIV, REM, POW, AND, OR, XOR, SHL, SHR, USHR, ROL, ROR,
			CONCAT, LT, LE, EQ, NE, GE, GT, IS, NIS:
			var a, b heap.Value
			if b, err = fr.Pop(); err == nil {
				if a, err = fr.Pop(); err == nil {
					var res heap.Value
					if res, err = evalBinary(op, a, b); err == nil {
						err = fr.Push(res)
					}
				}
			}
		case NEG, INV, NOT:
			var a heap.Value
			if a, err = fr.Pop(); err == nil {
				var res heap.Value
				if res, err = evalUnary(op, a); err == nil {
					err = fr.Push(res)
				}
			}
		case ISNULL, NISNULL:
			var v heap.Value
			if v, err = fr.Pop(); err == nil {
				isNull := v.Kind() == heap.KindNull
				if op == NISNULL {
					isNull = !isNull
				}
				err = fr.Push(heap.Bool(isNull))
			}

		case GETTYPE:
			err = th.opGettype(fr)
		case SCAST, SCASTF:
			err = th.opCastFromPool(fr, operand, false)
		case CCAST, CCASTF:
			err = th.opCastFromPool(fr, operand, true)
		case I2F:
			var v heap.Value
			if v, err = fr.Pop(); err == nil {
				i, ok := v.(heap.Int)
				if !ok {
					err = spaderr.NewCast(v.Kind().String(), "float")
				} else {
					err = fr.Push(heap.Float(float64(i)))
				}
			}
		case F2I:
			var v heap.Value
			if v, err = fr.Pop(); err == nil {
				f, ok := v.(heap.Float)
				if !ok {
					err = spaderr.NewCast(v.Kind().String(), "int")
				} else {
					err = fr.Push(heap.Int(int64(f)))
				}
			}
		case I2B:
			var v heap.Value
			if v, err = fr.Pop(); err == nil {
				i, ok := v.(heap.Int)
				if !ok {
					err = spaderr.NewCast(v.Kind().String(), "bool")
				} else {
					err = fr.Push(heap.Bool(i != 0))
				}
			}
		case B2I:
			var v heap.Value
			if v, err = fr.Pop(); err == nil {
				b, ok := v.(heap.Bool)
				if !ok {
					err = spaderr.NewCast(v.Kind().String(), "int")
				} else {
					var n int64
					if b {
						n = 1
					}
					err = fr.Push(heap.Int(n))
				}
			}
		case O2B:
			var v heap.Value
			if v, err = fr.Pop(); err == nil {
				err = fr.Push(heap.Bool(heap.Truth(v)))
			}
		case O2S:
			var v heap.Value
			if v, err = fr.Pop(); err == nil {
				err = fr.Push(heap.String(v.String()))
			}

		case ENTERMONITOR:
			var v heap.Value
			if v, err = fr.Pop(); err == nil {
				mv, ok := v.(heap.Monitored)
				if !ok {
					err = spaderr.NewIllegalAccess("entermonitor on unmonitored value")
				} else {
					mv.Monitor().Enter(th.ID)
				}
			}
		case EXITMONITOR:
			var v heap.Value
			if v, err = fr.Pop(); err == nil {
				mv, ok := v.(heap.Monitored)
				if !ok {
					err = spaderr.NewIllegalAccess("exitmonitor on unmonitored value")
				} else {
					err = mv.Monitor().Exit(th.ID)
				}
			}

		case MTPERF, MTPERFF:
			err = th.opMtperf(fr, int(operand))
		case CLOSURELOAD:
			var newPC uint32
			if newPC, err = th.opClosureload(fr, instrPC); err == nil {
				fr.PC = newPC
			}
		case OBJLOAD:
			err = th.opObjload(fr)
		case THROW:
			var v heap.Value
			if v, err = fr.Pop(); err == nil {
				err = &spaderr.ThrowSignal{Value: v}
			}
		case RET:
			v, rerr := fr.Pop()
			if rerr != nil {
				return nil, rerr
			}
			return v, nil
		case VRET:
			return heap.NullValue, nil
		case PRINTLN:
			var v heap.Value
			if v, err = fr.Pop(); err == nil {
				fmt.Fprintln(th.VM.Stdout(), v.String())
			}

		default:
			err = spaderr.NewIllegalAccess("unimplemented opcode %s", op)
		}

		if err != nil {
			resumed, rerr := th.catch(fr, instrPC, err)
			if resumed {
				continue
			}
			return nil, rerr
		}
	}
}

// catch implements exception unwinding (§4.5): only a *spaderr.ThrowSignal
// participates — every other error kind is fatal by default (§7's
// "recoverable via program-level THROW if the VM wraps it; fatal
// otherwise", read here as "only THROW's own carrier is ever wrapped").
// CCAST's checked-cast failure produces the same carrier, so it shares this
// one path instead of a second, parallel catch mechanism.
func (th *Thread) catch(fr *frame.Frame, instrPC uint32, err error) (bool, error) {
	ts, ok := err.(*spaderr.ThrowSignal)
	if !ok {
		return false, err
	}
	v, ok := ts.Value.(heap.Value)
	if !ok {
		return false, err
	}
	var typ *heap.Type
	if t, ok := v.(heap.Typed); ok {
		typ = t.Type()
	} else {
		typ = th.VM.BasicTypeFor(v.Kind())
	}
	target, found := fr.Template.Exceptions.GetTarget(instrPC, typ)
	if !found {
		return false, err
	}
	fr.Reset(target)
	if perr := fr.Push(v); perr != nil {
		return false, perr
	}
	return true, nil
}

func jumpTarget(next uint32, operand uint32) uint32 {
	off := int32(int16(uint16(operand)))
	return uint32(int32(next) + off)
}

func comparePredicate(op Opcode, cmp heap.Ordering) bool {
	switch op {
	case JLT, LT:
		return cmp == heap.Less
	case JLE, LE:
		return cmp == heap.Less || cmp == heap.Equal
	case JEQ, EQ:
		return cmp == heap.Equal
	case JNE, NE:
		return cmp != heap.Equal
	case JGE, GE:
		return cmp == heap.Greater || cmp == heap.Equal
	case JGT, GT:
		return cmp == heap.Greater
	}
	return false
}

func pushPool(fr *frame.Frame, idx uint32) error {
	if int(idx) >= len(fr.Template.Pool) {
		return spaderr.NewIllegalAccess("pool index %d out of range", idx)
	}
	return fr.Push(fr.Template.Pool[idx])
}

func poolName(tmpl *frame.FrameTemplate, idx uint32) (string, error) {
	if int(idx) >= len(tmpl.Pool) {
		return "", spaderr.NewIllegalAccess("pool index %d out of range", idx)
	}
	s, ok := tmpl.Pool[idx].(heap.String)
	if !ok {
		return "", spaderr.NewIllegalAccess("pool entry %d is not a name", idx)
	}
	return string(s), nil
}

// opSlotStore is the shared shape of LSTORE/ASTORE and their P-prefixed,
// push-the-value-back variants: pop the value, write it through setter,
// and on keep re-push it so assignment can be used as an expression.
func opSlotStore(fr *frame.Frame, idx int, keep bool, setter func(int, heap.Value) error) error {
	v, err := fr.Pop()
	if err != nil {
		return err
	}
	if err := setter(idx, v); err != nil {
		return err
	}
	if keep {
		return fr.Push(v)
	}
	return nil
}

func (th *Thread) opGload(fr *frame.Frame, idx uint32) error {
	name, err := poolName(fr.Template, idx)
	if err != nil {
		return err
	}
	g, ok := fr.Template.Module.Global(name)
	if !ok {
		return spaderr.NewIllegalAccess("undefined global %q", name)
	}
	return fr.Push(g.Value)
}

func (th *Thread) opGstore(fr *frame.Frame, idx uint32, keep bool) error {
	v, err := fr.Pop()
	if err != nil {
		return err
	}
	name, err := poolName(fr.Template, idx)
	if err != nil {
		return err
	}
	fr.Template.Module.SetGlobal(name, v)
	if keep {
		return fr.Push(v)
	}
	return nil
}

// opMload/opMstore ground MLOAD/MSTORE's documented order (§4.5): the
// object is always popped first, then, for a store, the value underneath it.
func (th *Thread) opMload(fr *frame.Frame, idx uint32) error {
	obj, err := fr.Pop()
	if err != nil {
		return err
	}
	name, err := poolName(fr.Template, idx)
	if err != nil {
		return err
	}
	o, ok := obj.(*heap.Object)
	if !ok {
		return spaderr.NewIllegalAccess("member load on non-object")
	}
	slot, ok := o.GetMember(name)
	if !ok {
		return spaderr.NewIllegalAccess("undefined member %q", name)
	}
	return fr.Push(slot.Value)
}

func (th *Thread) opMstore(fr *frame.Frame, idx uint32, keep bool) error {
	obj, err := fr.Pop()
	if err != nil {
		return err
	}
	v, err := fr.Pop()
	if err != nil {
		return err
	}
	name, err := poolName(fr.Template, idx)
	if err != nil {
		return err
	}
	o, ok := obj.(*heap.Object)
	if !ok {
		return spaderr.NewIllegalAccess("member store on non-object")
	}
	o.SetMember(name, v, 0)
	if keep {
		return fr.Push(v)
	}
	return nil
}

func popArgs(fr *frame.Frame, n int) ([]heap.Value, error) {
	args := make([]heap.Value, n)
	for i := n - 1; i >= 0; i-- {
		v, err := fr.Pop()
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (th *Thread) opArrpack(fr *frame.Frame, n int) error {
	elems, err := popArgs(fr, n)
	if err != nil {
		return err
	}
	return fr.Push(heap.NewArray(elems))
}

func (th *Thread) opArrunpack(fr *frame.Frame) error {
	v, err := fr.Pop()
	if err != nil {
		return err
	}
	arr, ok := v.(*heap.Array)
	if !ok {
		return spaderr.NewIllegalAccess("arrunpack on non-array")
	}
	for _, e := range arr.Elems() {
		if err := fr.Push(e); err != nil {
			return err
		}
	}
	return nil
}

func (th *Thread) opIload(fr *frame.Frame) error {
	idxV, err := fr.Pop()
	if err != nil {
		return err
	}
	arrV, err := fr.Pop()
	if err != nil {
		return err
	}
	arr, ok := arrV.(*heap.Array)
	if !ok {
		return spaderr.NewIllegalAccess("iload on non-array")
	}
	idx, ok := idxV.(heap.Int)
	if !ok {
		return spaderr.NewIllegalAccess("array index is not an int")
	}
	v, err := arr.Index(int64(idx))
	if err != nil {
		return err
	}
	return fr.Push(v)
}

func (th *Thread) opIstore(fr *frame.Frame, keep bool) error {
	v, err := fr.Pop()
	if err != nil {
		return err
	}
	idxV, err := fr.Pop()
	if err != nil {
		return err
	}
	arrV, err := fr.Pop()
	if err != nil {
		return err
	}
	arr, ok := arrV.(*heap.Array)
	if !ok {
		return spaderr.NewIllegalAccess("istore on non-array")
	}
	idx, ok := idxV.(heap.Int)
	if !ok {
		return spaderr.NewIllegalAccess("array index is not an int")
	}
	if err := arr.SetIndex(int64(idx), v); err != nil {
		return err
	}
	if keep {
		return fr.Push(v)
	}
	return nil
}

func (th *Thread) opArrlen(fr *frame.Frame) error {
	v, err := fr.Pop()
	if err != nil {
		return err
	}
	arr, ok := v.(*heap.Array)
	if !ok {
		return spaderr.NewIllegalAccess("arrlen on non-array")
	}
	return fr.Push(heap.Int(arr.Len()))
}

func (th *Thread) opInvoke(fr *frame.Frame, argc int) error {
	mv, err := fr.Pop()
	if err != nil {
		return err
	}
	m, ok := mv.(*heap.Method)
	if !ok {
		return spaderr.NewIllegalAccess("invoke: top of stack is not a method")
	}
	args, err := popArgs(fr, argc)
	if err != nil {
		return err
	}
	ret, err := th.Call(m, args)
	if err != nil {
		return err
	}
	return fr.Push(ret)
}

// parseInvokeOperand reads the combined index+argc operand shared by the
// five "sugar" call opcodes (§4.5): a fast variant's index is one byte, a
// normal variant's is two, and every variant ends with a trailing one-byte
// argument count.
func parseInvokeOperand(code []byte, instrPC uint32, op Opcode) (uint32, uint8) {
	fast := op == VINVOKEF || op == GINVOKEF || op == LINVOKEF || op == AINVOKEF || op == SPINVOKEF
	p := instrPC + 1
	if fast {
		return uint32(code[p]), code[p+1]
	}
	return be16(code[p : p+2]), code[p+2]
}

func (th *Thread) dispatchInvoke(fr *frame.Frame, op Opcode, idx uint32, argc int) error {
	switch op {
	case VINVOKE, VINVOKEF:
		return th.invokeVirtual(fr, idx, argc)
	case GINVOKE, GINVOKEF:
		return th.invokeSlot(fr, argc, func() (heap.Value, error) {
			name, err := poolName(fr.Template, idx)
			if err != nil {
				return nil, err
			}
			g, ok := fr.Template.Module.Global(name)
			if !ok {
				return nil, spaderr.NewIllegalAccess("undefined global %q", name)
			}
			return g.Value, nil
		})
	case LINVOKE, LINVOKEF:
		return th.invokeSlot(fr, argc, func() (heap.Value, error) { return fr.GetLocal(int(idx)) })
	case AINVOKE, AINVOKEF:
		return th.invokeSlot(fr, argc, func() (heap.Value, error) { return fr.GetArg(int(idx)) })
	case SPINVOKE, SPINVOKEF:
		return th.invokeSuper(fr, idx, argc)
	}
	return spaderr.NewIllegalAccess("unreachable invoke opcode %s", op)
}

// invokeSlot is GINVOKE/LINVOKE/AINVOKE's shared shape (§4.5 "call
// globally/locally/argly"): resolve the callee directly from a slot, with
// no self-binding, then call with the popped arguments.
func (th *Thread) invokeSlot(fr *frame.Frame, argc int, resolve func() (heap.Value, error)) error {
	args, err := popArgs(fr, argc)
	if err != nil {
		return err
	}
	mv, err := resolve()
	if err != nil {
		return err
	}
	m, ok := mv.(*heap.Method)
	if !ok {
		return spaderr.NewIllegalAccess("invoke target is not a method")
	}
	ret, err := th.Call(m, args)
	if err != nil {
		return err
	}
	return fr.Push(ret)
}

// invokeVirtual implements VINVOKE (§4.5): pops n args then self, resolves
// the method named by the pool entry at idx on self's own (already
// inheritance-flattened) member table, so the most-derived override always
// wins — the dynamic-dispatch counterpart to opSpload's static lookup.
func (th *Thread) invokeVirtual(fr *frame.Frame, idx uint32, argc int) error {
	args, err := popArgs(fr, argc)
	if err != nil {
		return err
	}
	self, err := fr.Pop()
	if err != nil {
		return err
	}
	name, err := poolName(fr.Template, idx)
	if err != nil {
		return err
	}
	m, err := resolveVirtual(self, name)
	if err != nil {
		return err
	}
	bound := m.Clone()
	bound.BoundSelf = self
	ret, err := th.Call(bound, args)
	if err != nil {
		return err
	}
	return fr.Push(ret)
}

func resolveVirtual(self heap.Value, name string) (*heap.Method, error) {
	t, ok := self.(heap.Typed)
	if !ok || t.Type() == nil {
		return nil, spaderr.NewIllegalAccess("virtual dispatch on an untyped value")
	}
	slot, ok := t.Type().Members.Get(name)
	if !ok {
		return nil, spaderr.NewIllegalAccess("no member %q on %s", name, t.Type().Sig)
	}
	m, ok := slot.Value.(*heap.Method)
	if !ok {
		return nil, spaderr.NewIllegalAccess("member %q is not a method", name)
	}
	return m, nil
}

// opSpload and invokeSuper implement SPLOAD/SPINVOKE (§4.5): the pool entry
// at idx is the exact supertype method the compiler statically resolved
// "super.name(...)" against, loaded once at module-load time rather than
// searched at run time — unlike VINVOKE's by-name dynamic lookup, a super
// call's target can never change underneath it, so there is nothing to
// re-resolve on every call.
func (th *Thread) opSpload(fr *frame.Frame, idx uint32) error {
	self, err := fr.Pop()
	if err != nil {
		return err
	}
	m, err := superMethod(fr.Template, idx)
	if err != nil {
		return err
	}
	bound := m.Clone()
	bound.BoundSelf = self
	return fr.Push(bound)
}

func (th *Thread) invokeSuper(fr *frame.Frame, idx uint32, argc int) error {
	args, err := popArgs(fr, argc)
	if err != nil {
		return err
	}
	self, err := fr.Pop()
	if err != nil {
		return err
	}
	m, err := superMethod(fr.Template, idx)
	if err != nil {
		return err
	}
	bound := m.Clone()
	bound.BoundSelf = self
	ret, err := th.Call(bound, args)
	if err != nil {
		return err
	}
	return fr.Push(ret)
}

func superMethod(tmpl *frame.FrameTemplate, idx uint32) (*heap.Method, error) {
	if int(idx) >= len(tmpl.Pool) {
		return nil, spaderr.NewIllegalAccess("pool index %d out of range", idx)
	}
	m, ok := tmpl.Pool[idx].(*heap.Method)
	if !ok {
		return nil, spaderr.NewIllegalAccess("pool entry %d is not a method", idx)
	}
	return m, nil
}

// opGettype implements GETTYPE (§4.5): Header-embedding kinds answer
// through their own Type(); primitives, which embed no Header, fall back
// to the VM's basic-module lookup.
func (th *Thread) opGettype(fr *frame.Frame) error {
	v, err := fr.Pop()
	if err != nil {
		return err
	}
	if t, ok := v.(heap.Typed); ok && t.Type() != nil {
		return fr.Push(t.Type())
	}
	typ := th.VM.BasicTypeFor(v.Kind())
	if typ == nil {
		return spaderr.NewIllegalAccess("no registered type for kind %s", v.Kind())
	}
	return fr.Push(typ)
}

// opCastFromPool implements SCAST/CCAST (§4.5): SCAST pushes null on a
// failed match, CCAST throws. Both share castMatches for the actual type
// test.
func (th *Thread) opCastFromPool(fr *frame.Frame, poolIdx uint32, checked bool) error {
	if int(poolIdx) >= len(fr.Template.Pool) {
		return spaderr.NewIllegalAccess("pool index %d out of range", poolIdx)
	}
	target, ok := fr.Template.Pool[poolIdx].(*heap.Type)
	if !ok {
		return spaderr.NewIllegalAccess("cast target is not a type")
	}
	v, err := fr.Pop()
	if err != nil {
		return err
	}
	if th.castMatches(v, target) {
		return fr.Push(v)
	}
	if !checked {
		return fr.Push(heap.NullValue)
	}
	return &spaderr.ThrowSignal{Value: heap.String(spaderr.NewCast(v.Kind().String(), target.String()).Error())}
}

func (th *Thread) castMatches(v heap.Value, target *heap.Type) bool {
	if t, ok := v.(heap.Typed); ok && t.Type() != nil {
		return t.Type().IsSubtypeOf(target.Sig)
	}
	return th.VM.BasicTypeFor(v.Kind()) == target
}

func (th *Thread) opObjload(fr *frame.Frame) error {
	v, err := fr.Pop()
	if err != nil {
		return err
	}
	t, ok := v.(*heap.Type)
	if !ok {
		return spaderr.NewIllegalAccess("objload operand is not a type")
	}
	obj := heap.NewObject(t)
	if _, err := th.Manager.Halloc(obj); err != nil {
		return err
	}
	return fr.Push(obj)
}

func (th *Thread) opMtperf(fr *frame.Frame, k int) error {
	if k < 0 || k >= len(fr.Template.Matches) {
		return spaderr.NewIllegalAccess("match table index %d out of range", k)
	}
	v, err := fr.Pop()
	if err != nil {
		return err
	}
	fr.PC = fr.Template.Matches[k].Perform(v)
	return nil
}

// opClosureload implements CLOSURELOAD's variable-length record format
// (§4.5): count:u8, then that many dest_slot:u16, kind:u8, from:(u8|u16)
// records. It returns the pc immediately past the last record, since the
// instruction's total width isn't known until count and every record's
// kind byte have been read.
func (th *Thread) opClosureload(fr *frame.Frame, instrPC uint32) (uint32, error) {
	code := fr.Template.Code
	p := instrPC + 1
	n := int(code[p])
	p++

	mv, err := fr.Pop()
	if err != nil {
		return 0, err
	}
	srcMethod, ok := mv.(*heap.Method)
	if !ok {
		return 0, spaderr.NewIllegalAccess("closureload: top of stack is not a method")
	}
	srcTmpl, ok := srcMethod.Body.(*frame.FrameTemplate)
	if !ok {
		return 0, spaderr.NewIllegalAccess("closureload: method has no frame template")
	}
	cloned := srcMethod.Clone()
	clonedTmpl := srcTmpl.Clone()
	cloned.Body = clonedTmpl

	for i := 0; i < n; i++ {
		dest := int(be16(code[p : p+2]))
		p += 2
		kind := code[p]
		p++
		var cell *heap.Capture
		if kind == 0 {
			from := int(code[p])
			p++
			cell, err = fr.RampUpArg(from)
		} else {
			from := int(be16(code[p : p+2]))
			p += 2
			cell, err = fr.RampUpLocal(from)
		}
		if err != nil {
			return 0, err
		}
		clonedTmpl.PresetCaptures[dest] = cell
	}

	if err := fr.Push(cloned); err != nil {
		return 0, err
	}
	return p, nil
}
