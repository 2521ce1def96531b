package frame

import (
	"testing"

	"github.com/go-spade/spade/lang/heap"
	"github.com/stretchr/testify/require"
)

func tmpl() *FrameTemplate {
	return &FrameTemplate{
		StackMax: 4,
		Args:     []SlotInfo{{Name: "a"}},
		Locals:   []SlotInfo{{Name: "x"}, {Name: "y"}},
	}
}

func TestFramePushPop(t *testing.T) {
	f := tmpl().NewFrame()
	require.NoError(t, f.Push(heap.Int(1)))
	require.NoError(t, f.Push(heap.Int(2)))
	v, err := f.Pop()
	require.NoError(t, err)
	require.Equal(t, heap.Int(2), v)
	v, err = f.Peek(0)
	require.NoError(t, err)
	require.Equal(t, heap.Int(1), v)
}

func TestFrameStackOverflow(t *testing.T) {
	f := tmpl().NewFrame()
	for i := 0; i < 4; i++ {
		require.NoError(t, f.Push(heap.Int(int64(i))))
	}
	err := f.Push(heap.Int(5))
	require.Error(t, err)
}

func TestFrameStackUnderflow(t *testing.T) {
	f := tmpl().NewFrame()
	_, err := f.Pop()
	require.Error(t, err)
}

func TestRampUpAndSharedCapture(t *testing.T) {
	outer := tmpl().NewFrame()
	require.NoError(t, outer.SetLocal(0, heap.Int(0)))

	cell, err := outer.RampUpLocal(0)
	require.NoError(t, err)

	inner := tmpl().NewFrame()
	require.NoError(t, inner.InstallCapture(0, cell))

	require.NoError(t, inner.SetLocal(0, heap.Int(42)))
	v, err := outer.GetLocal(0)
	require.NoError(t, err)
	require.Equal(t, heap.Int(42), v)
}

func TestExceptionTableGetTarget(t *testing.T) {
	typ := heap.NewType(heap.ClassKindClass, "m.E", nil, nil)
	table := ExceptionTable{{FromPC: 0, ToPC: 5, TargetPC: 10, Type: typ}}

	pc, ok := table.GetTarget(2, typ)
	require.True(t, ok)
	require.Equal(t, uint32(10), pc)

	_, ok = table.GetTarget(6, typ)
	require.False(t, ok)
}

func TestLineTableSourceLineFor(t *testing.T) {
	lt := LineTable{{Times: 3, Line: 10}, {Times: 2, Line: 11}}
	line, err := lt.SourceLineFor(0)
	require.NoError(t, err)
	require.Equal(t, uint32(10), line)

	line, err = lt.SourceLineFor(4)
	require.NoError(t, err)
	require.Equal(t, uint32(11), line)

	_, err = lt.SourceLineFor(10)
	require.Error(t, err)
}

func TestMatchTablePerform(t *testing.T) {
	mt := NewMatchTable([]MatchCase{
		{Value: heap.Int(1), Target: 100},
		{Value: heap.Int(2), Target: 200},
	}, 999)

	require.Equal(t, uint32(100), mt.Perform(heap.Int(1)))
	require.Equal(t, uint32(200), mt.Perform(heap.Int(2)))
	require.Equal(t, uint32(999), mt.Perform(heap.Int(3)))
}
