package heap

import (
	"fmt"
	"strings"

	"github.com/go-spade/spade/lang/spaderr"
)

// Array is a mutable fixed-length sequence of values (§3.2). Length is
// fixed at allocation; negative indices wrap from the end, matching
// ARRPACK/ILOAD/ISTORE's indexing rules (§4.5).
type Array struct {
	Header
	elems []Value
}

func NewArray(elems []Value) *Array {
	return &Array{elems: elems}
}

// NewZeroArray returns a new array of length n filled with Null (ARRBUILD,
// §4.5).
func NewZeroArray(n int) *Array {
	elems := make([]Value, n)
	for i := range elems {
		elems[i] = NullValue
	}
	return &Array{elems: elems}
}

func (a *Array) Kind() Kind { return KindArray }
func (a *Array) String() string {
	parts := make([]string, len(a.elems))
	for i, e := range a.elems {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (a *Array) Len() int { return len(a.elems) }

// resolveIndex maps a possibly-negative index onto [0, Len), or returns an
// IllegalAccess error if it is still out of bounds afterward.
func (a *Array) resolveIndex(i int64) (int, error) {
	n := int64(len(a.elems))
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, spaderr.NewIllegalAccess("array index %d out of bounds (len %d)", i, n)
	}
	return int(i), nil
}

func (a *Array) Index(i int64) (Value, error) {
	idx, err := a.resolveIndex(i)
	if err != nil {
		return nil, err
	}
	return a.elems[idx], nil
}

func (a *Array) SetIndex(i int64, v Value) error {
	idx, err := a.resolveIndex(i)
	if err != nil {
		return err
	}
	a.elems[idx] = v
	return nil
}

// Elems returns the backing slice. Callers must not retain it across a
// mutation of a.
func (a *Array) Elems() []Value { return a.elems }

var _ fmt.Stringer = (*Array)(nil)
