package heap

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareSameTag(t *testing.T) {
	require.Equal(t, Less, Compare(Int(1), Int(2)))
	require.Equal(t, Greater, Compare(Int(2), Int(1)))
	require.Equal(t, Equal, Compare(Int(2), Int(2)))

	require.Equal(t, Less, Compare(String("a"), String("b")))
	require.Equal(t, Equal, Compare(String("a"), String("a")))

	require.Equal(t, Equal, Compare(NullValue, NullValue))
}

func TestCompareFloatNaN(t *testing.T) {
	nan := Float(math.NaN())
	require.Equal(t, Greater, Compare(nan, Float(1)))
	require.Equal(t, Less, Compare(Float(1), nan))
	require.Equal(t, Equal, Compare(nan, nan))
}

func TestCompareCrossTag(t *testing.T) {
	require.Equal(t, Undefined, Compare(Int(1), String("1")))
	require.False(t, Equal(Int(1), String("1")))
}

func TestCompareArray(t *testing.T) {
	a := NewArray([]Value{Int(1), Int(2)})
	b := NewArray([]Value{Int(1), Int(2)})
	c := NewArray([]Value{Int(1), Int(3)})
	require.Equal(t, Equal, Compare(a, b))
	require.Equal(t, Less, Compare(a, c))
}

func TestCompareObjectIdentity(t *testing.T) {
	typ := NewType(ClassKindClass, "m.T", nil, nil)
	o1 := NewObject(typ)
	o2 := NewObject(typ)
	require.Equal(t, Equal, Compare(o1, o1))
	require.Equal(t, Undefined, Compare(o1, o2))
}

func TestTruth(t *testing.T) {
	require.False(t, Truth(NullValue))
	require.False(t, Truth(Bool(false)))
	require.True(t, Truth(Bool(true)))
	require.False(t, Truth(Int(0)))
	require.True(t, Truth(Int(1)))
	require.False(t, Truth(Char(0)))
	require.False(t, Truth(String("")))
	require.True(t, Truth(String("x")))
	require.False(t, Truth(NewArray(nil)))
	require.True(t, Truth(NewArray([]Value{NullValue})))
	require.True(t, Truth(NewObject(NewType(ClassKindClass, "m.T", nil, nil))))
}

func TestArrayNegativeIndex(t *testing.T) {
	a := NewArray([]Value{Int(10), Int(20), Int(30)})
	v, err := a.Index(-1)
	require.NoError(t, err)
	require.Equal(t, Int(30), v)

	_, err = a.Index(-4)
	require.Error(t, err)
}

func TestObjectMemberCopyIsolated(t *testing.T) {
	typ := NewType(ClassKindClass, "m.T", nil, nil)
	typ.Members.Put("x", Slot{Value: Int(0)})

	o1 := NewObject(typ)
	o2 := NewObject(typ)
	o1.SetMember("x", Int(5), 0)

	s1, _ := o1.GetMember("x")
	s2, _ := o2.GetMember("x")
	require.Equal(t, Int(5), s1.Value)
	require.Equal(t, Int(0), s2.Value)
}

func TestCaptureSharedMutation(t *testing.T) {
	cell := NewCapture(Int(0))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cell.Store(Int(1))
	}()
	wg.Wait()
	require.Equal(t, Int(1), cell.Load())
}

func TestMonitorRecursiveEnterExit(t *testing.T) {
	var mon Monitor
	mon.Enter(1)
	mon.Enter(1) // recursive re-entry by same thread must not deadlock
	require.NoError(t, mon.Exit(1))
	require.NoError(t, mon.Exit(1))
}

func TestMonitorWrongOwnerExit(t *testing.T) {
	var mon Monitor
	mon.Enter(1)
	err := mon.Exit(2)
	require.Error(t, err)
}

func TestSlotMapClone(t *testing.T) {
	m := NewSlotMap(4)
	m.Put("a", Slot{Value: Int(1)})
	clone := m.Clone()
	clone.Put("b", Slot{Value: Int(2)})

	_, ok := m.Get("b")
	require.False(t, ok)
	_, ok = clone.Get("a")
	require.True(t, ok)
}
