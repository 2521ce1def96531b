package interp

import (
	"bytes"
	"io"
	"testing"

	"github.com/go-spade/spade/lang/frame"
	"github.com/go-spade/spade/lang/heap"
	"github.com/stretchr/testify/require"
)

// fakeVM is the minimal VMHandle a dispatch-loop test needs: a capturing
// stdout and no basic-module types installed, since none of these
// scenarios touch GETTYPE/casts against a primitive kind.
type fakeVM struct {
	stdout bytes.Buffer
}

func (v *fakeVM) Stdout() io.Writer                             { return &v.stdout }
func (v *fakeVM) LookupModule(name string) (*heap.Module, bool) { return nil, false }
func (v *fakeVM) BasicTypeFor(k heap.Kind) *heap.Type            { return nil }

func newFakeThread() (*Thread, *fakeVM) {
	vm := &fakeVM{}
	return NewThread(1, "test", vm, heap.NewManager()), vm
}

func newMethod(tmpl *frame.FrameTemplate) *heap.Method {
	m := heap.NewMethod("m", "m()", heap.MethodKindFunction, 0, 0)
	m.Body = tmpl
	tmpl.Method = m
	tmpl.Module = heap.NewModule("test")
	return m
}

func TestDispatchHello(t *testing.T) {
	tmpl := &frame.FrameTemplate{
		Pool:     []heap.Value{heap.String("hi")},
		Code:     []byte{byte(CONSTF), 0, byte(PRINTLN), byte(VRET)},
		StackMax: 2,
	}
	m := newMethod(tmpl)
	th, vm := newFakeThread()

	_, err := th.Call(m, nil)
	require.NoError(t, err)
	require.Equal(t, "hi\n", vm.stdout.String())
}

func TestDispatchIntegerPower(t *testing.T) {
	tmpl := &frame.FrameTemplate{
		Pool:     []heap.Value{heap.Int(2), heap.Int(3)},
		Code:     []byte{byte(CONSTF), 0, byte(CONSTF), 1, byte(POW), byte(PRINTLN), byte(VRET)},
		StackMax: 4,
	}
	m := newMethod(tmpl)
	th, vm := newFakeThread()

	_, err := th.Call(m, nil)
	require.NoError(t, err)
	require.Equal(t, "8\n", vm.stdout.String())
}

func TestDispatchFloatDivision(t *testing.T) {
	tmpl := &frame.FrameTemplate{
		Pool: []heap.Value{heap.Int(1), heap.Int(4)},
		Code: []byte{
			byte(CONSTF), 0, byte(I2F),
			byte(CONSTF), 1, byte(I2F),
			byte(DIV), byte(PRINTLN), byte(VRET),
		},
		StackMax: 4,
	}
	m := newMethod(tmpl)
	th, vm := newFakeThread()

	_, err := th.Call(m, nil)
	require.NoError(t, err)
	require.Equal(t, "0.250000\n", vm.stdout.String())
}

// TestDispatchJump builds: const true, jf +5(to the "2" branch), const 1,
// jmp +2(to println), const 2, println, vret — matching the bytecode
// shape of spec.md's jump scenario without going through an assembler.
func TestDispatchJump(t *testing.T) {
	tmpl := &frame.FrameTemplate{
		Pool: []heap.Value{heap.Int(1), heap.Int(2)},
		Code: []byte{
			/*0*/ byte(CONSTTRUE),
			/*1*/ byte(JF), 0, 5,
			/*4*/ byte(CONSTF), 0,
			/*6*/ byte(JMP), 0, 2,
			/*9*/ byte(CONSTF), 1,
			/*11*/ byte(PRINTLN),
			/*12*/ byte(VRET),
		},
		StackMax: 4,
	}
	m := newMethod(tmpl)
	th, vm := newFakeThread()

	_, err := th.Call(m, nil)
	require.NoError(t, err)
	require.Equal(t, "1\n", vm.stdout.String())
}

// TestDispatchClosure builds an outer method with a local x initialized
// to 0, a closure-producing method that increments a captured x each time
// it is invoked, and calls the closure three times before printing x.
func TestDispatchClosure(t *testing.T) {
	innerTmpl := &frame.FrameTemplate{
		Pool: []heap.Value{heap.Int(1)},
		Code: []byte{
			/*0*/ byte(LLOADF), 0,
			/*2*/ byte(CONSTF), 0,
			/*4*/ byte(ADD),
			/*5*/ byte(LSTOREF), 0,
			/*7*/ byte(VRET),
		},
		StackMax: 4,
		Locals:   make([]frame.SlotInfo, 1),
	}
	innerMethod := heap.NewMethod("inc", "inc()", heap.MethodKindMethod, 0, 0)
	innerMethod.Body = innerTmpl
	innerTmpl.Method = innerMethod

	outerTmpl := &frame.FrameTemplate{
		Pool: []heap.Value{heap.Int(0), innerMethod},
		Code: []byte{
			/*0*/ byte(CONSTF), 0,
			/*2*/ byte(LSTOREF), 0,
			/*4*/ byte(CONSTF), 1,
			/*6*/ byte(CLOSURELOAD), 1, 0, 0, 1, 0, 0,
			/*13*/ byte(LSTOREF), 1,
			/*15*/ byte(LINVOKEF), 1, 0,
			/*18*/ byte(POP),
			/*19*/ byte(LINVOKEF), 1, 0,
			/*22*/ byte(POP),
			/*23*/ byte(LINVOKEF), 1, 0,
			/*26*/ byte(POP),
			/*27*/ byte(LLOADF), 0,
			/*29*/ byte(PRINTLN),
			/*30*/ byte(VRET),
		},
		StackMax: 4,
		Locals:   make([]frame.SlotInfo, 2),
	}
	m := newMethod(outerTmpl)
	th, vm := newFakeThread()

	_, err := th.Call(m, nil)
	require.NoError(t, err)
	require.Equal(t, "3\n", vm.stdout.String())
}

// TestDispatchException builds a method that throws a value of type E
// inside an exception-table range whose target resumes execution with the
// thrown value still on top of the stack.
func TestDispatchException(t *testing.T) {
	excType := heap.NewType(heap.ClassKindClass, "test.E", nil, nil)
	tmpl := &frame.FrameTemplate{
		Pool: []heap.Value{excType},
		Code: []byte{
			/*0*/ byte(CONSTF), 0,
			/*2*/ byte(OBJLOAD),
			/*3*/ byte(THROW),
			/*4*/ byte(NOP),
			/*5*/ byte(NOP),
			/*6*/ byte(NOP),
			/*7*/ byte(NOP),
			/*8*/ byte(NOP),
			/*9*/ byte(NOP),
			/*10*/ byte(PRINTLN),
			/*11*/ byte(VRET),
		},
		StackMax: 4,
		Exceptions: frame.ExceptionTable{
			{FromPC: 0, ToPC: 5, TargetPC: 10, Type: excType},
		},
	}
	m := newMethod(tmpl)
	th, vm := newFakeThread()

	_, err := th.Call(m, nil)
	require.NoError(t, err)
	require.Contains(t, vm.stdout.String(), "test.E")
}
