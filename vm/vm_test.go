package vm

import (
	"sync"
	"testing"

	"github.com/go-spade/spade/lang/frame"
	"github.com/go-spade/spade/lang/heap"
	"github.com/go-spade/spade/lang/interp"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookupModule(t *testing.T) {
	v := New(nil)

	top := heap.NewModule("app")
	sub := heap.NewModule("app::util")
	top.Submodules["util"] = sub
	leaf := heap.NewModule("app::util::strings")
	sub.Submodules["strings"] = leaf

	v.RegisterModule(top)

	got, ok := v.LookupModule("app")
	require.True(t, ok)
	require.Same(t, top, got)

	got, ok = v.LookupModule("app::util")
	require.True(t, ok)
	require.Same(t, sub, got)

	got, ok = v.LookupModule("app::util::strings")
	require.True(t, ok)
	require.Same(t, leaf, got)

	_, ok = v.LookupModule("app::missing")
	require.False(t, ok)

	_, ok = v.LookupModule("nope")
	require.False(t, ok)
}

func TestLoadBasicIsIdempotentAndWiresKinds(t *testing.T) {
	v := New(nil)

	require.NoError(t, v.LoadBasic())
	intType := v.BasicTypeFor(heap.KindInt)
	require.NotNil(t, intType)
	require.Equal(t, "basic.int", intType.Sig)

	mod, ok := v.LookupModule("basic")
	require.True(t, ok)
	require.Same(t, intType, mod.Classes["int"])

	require.NoError(t, v.LoadBasic())
	require.Same(t, intType, v.BasicTypeFor(heap.KindInt))
}

func TestMetadataRoundTrip(t *testing.T) {
	v := New(nil)
	v.SetMetadata("app.Foo.bar()", "deprecated", "true")

	got, ok := v.Metadata("app.Foo.bar()", "deprecated")
	require.True(t, ok)
	require.Equal(t, "true", got)

	_, ok = v.Metadata("app.Foo.bar()", "missing")
	require.False(t, ok)
}

func TestRunMainRegistersAndDeregisters(t *testing.T) {
	v := New(nil)

	var sawDuringRun bool
	_, err := v.RunMain("main", func(th *interp.Thread) (heap.Value, error) {
		_, sawDuringRun = v.Thread(th.ID)
		return heap.Int(1), nil
	})
	require.NoError(t, err)
	require.True(t, sawDuringRun)
	require.Empty(t, v.Threads())
}

// TestSpawnHandshake verifies a spawned thread is registered and its body
// has started before Spawn returns, and that Join yields the body's result
// once it completes.
func TestSpawnHandshake(t *testing.T) {
	v := New(nil)

	var mu sync.Mutex
	bodyStarted := false
	release := make(chan struct{})

	handle := v.Spawn("worker", func(th *interp.Thread) (heap.Value, error) {
		mu.Lock()
		bodyStarted = true
		mu.Unlock()
		<-release
		return heap.Int(42), nil
	})

	_, ok := v.Thread(handle.Thread.ID)
	require.True(t, ok, "spawned thread must be registered by the time Spawn returns")

	mu.Lock()
	started := bodyStarted
	mu.Unlock()
	require.True(t, started, "spawned thread's body must have begun by the time Spawn returns")

	close(release)
	result, err := handle.Join()
	require.NoError(t, err)
	require.Equal(t, heap.Int(42), result)

	_, ok = v.Thread(handle.Thread.ID)
	require.False(t, ok, "thread must be deregistered once its body returns")
}

func TestStepDebuggerCountsPerThread(t *testing.T) {
	v := New(nil)
	dbg := NewStepDebugger().(*stepDebugger)

	tmpl := &frame.FrameTemplate{
		Code:     []byte{byte(interp.VRET)},
		StackMax: 1,
	}
	m := heap.NewMethod("m", "m()", heap.MethodKindFunction, 0, 0)
	m.Body = tmpl
	tmpl.Method = m
	tmpl.Module = heap.NewModule("test")

	th := interp.NewThread(1, "t", v, v.Manager)
	th.Debug = dbg

	_, err := th.Call(m, nil)
	require.NoError(t, err)
	require.Greater(t, dbg.Steps(th.ID), uint64(0))
}
