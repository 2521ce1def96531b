package interp

import (
	"github.com/go-spade/spade/lang/heap"
	"github.com/go-spade/spade/lang/spaderr"
)

// ForeignFunc is the Go-side shape of a native method (§6.4): the VM calls
// it with the owning Thread, the bound receiver (nil for a free function),
// and the method's arguments already popped off the stack in call order. A
// non-nil returned heap.Value is pushed back onto the caller's stack; a nil
// Value with a nil error means the foreign call produced no result, and
// Thread.Call hands the caller heap.NullValue instead, as after a VRET. No
// native library loading is implemented here — a
// ForeignFunc is always a Go closure registered ahead of time, matching
// spec.md §1's exclusion of platform-specific symbol resolution.
type ForeignFunc func(th *Thread, self heap.Value, args []heap.Value) (heap.Value, error)

// ForeignTag identifies the payload a ForeignValue carries, mirroring the
// six-way split of the original implementation's value.hpp tagged union
// (ValueTag) one level up from its C enum.
type ForeignTag uint8

const (
	ForeignNull ForeignTag = iota
	ForeignBool
	ForeignChar
	ForeignInt
	ForeignFloat
	ForeignObj
)

// ForeignValue pins down the 16-byte tagged-union shape value.hpp describes
// (8-byte tag-plus-padding, 8-byte payload) as a documentation and interop
// type for the foreign-call boundary (§6.4, §10): a native caller marshals
// its Value this way before crossing into Go. It is never used inside the
// interpreter itself, which manipulates heap.Value directly — ForeignFunc's
// signature above takes heap.Value, not ForeignValue. Obj, the one
// pointer-shaped payload, stands in for every heap-allocated kind (array,
// object, module, method, type, capture); ToForeign/FromForeign below do
// the narrowing between that single slot and heap's richer Kind set.
type ForeignValue struct {
	Tag   ForeignTag
	Bool  bool
	Char  rune
	Int   int64
	Float float64
	Obj   heap.Value
}

// ToForeign narrows a heap.Value down to the tagged-union shape a foreign
// caller expects, returning a ForeignCall error for any kind outside the
// six value.hpp recognizes directly (string included — the original ABI
// has no VALUE_STRING tag, only VALUE_OBJ, so heap.String crosses as Obj).
func ToForeign(v heap.Value) (ForeignValue, error) {
	switch x := v.(type) {
	case heap.Null:
		return ForeignValue{Tag: ForeignNull}, nil
	case heap.Bool:
		return ForeignValue{Tag: ForeignBool, Bool: bool(x)}, nil
	case heap.Char:
		return ForeignValue{Tag: ForeignChar, Char: rune(x)}, nil
	case heap.Int:
		return ForeignValue{Tag: ForeignInt, Int: int64(x)}, nil
	case heap.Float:
		return ForeignValue{Tag: ForeignFloat, Float: float64(x)}, nil
	case nil:
		return ForeignValue{}, spaderr.NewForeignCall("nil value crossing foreign boundary")
	default:
		return ForeignValue{Tag: ForeignObj, Obj: v}, nil
	}
}

// FromForeign is ToForeign's inverse, reconstructing the heap.Value a
// ForeignValue stands for.
func FromForeign(fv ForeignValue) (heap.Value, error) {
	switch fv.Tag {
	case ForeignNull:
		return heap.Null{}, nil
	case ForeignBool:
		return heap.Bool(fv.Bool), nil
	case ForeignChar:
		return heap.Char(fv.Char), nil
	case ForeignInt:
		return heap.Int(fv.Int), nil
	case ForeignFloat:
		return heap.Float(fv.Float), nil
	case ForeignObj:
		if fv.Obj == nil {
			return nil, spaderr.NewForeignCall("obj-tagged foreign value carries no payload")
		}
		return fv.Obj, nil
	}
	return nil, spaderr.NewForeignCall("unrecognized foreign value tag")
}
