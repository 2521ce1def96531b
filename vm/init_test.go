package vm

import (
	"testing"

	"github.com/go-spade/spade/lang/frame"
	"github.com/go-spade/spade/lang/heap"
	"github.com/go-spade/spade/lang/interp"
	"github.com/stretchr/testify/require"
)

// trivialInitMethod returns a *heap.Method whose body does nothing but
// return, installed as mod's named init method.
func trivialInitMethod(mod *heap.Module, name string) *heap.Method {
	m := heap.NewMethod(name, mod.Name+"."+name+"()", heap.MethodKindFunction, 0, 0)
	tmpl := &frame.FrameTemplate{
		Method:   m,
		Module:   mod,
		Code:     []byte{byte(interp.VRET)},
		StackMax: 1,
	}
	m.Body = tmpl
	mod.Methods[name] = m
	return m
}

func TestRunInitializersRunsInOrderAndSetsState(t *testing.T) {
	v := New(nil)

	first := heap.NewModule("a")
	first.InitMethod = "init"
	trivialInitMethod(first, "init")
	first.State = heap.ModuleLoaded

	second := heap.NewModule("b")
	// No InitMethod: a library with no top-level init code, must be skipped.
	second.State = heap.ModuleLoaded

	th := interp.NewThread(1, "main", v, v.Manager)

	err := v.RunInitializers(th, []*heap.Module{first, second})
	require.NoError(t, err)
	require.Equal(t, heap.ModuleInitialized, first.State)
	require.Equal(t, heap.ModuleLoaded, second.State)
}

func TestRunInitializersMissingMethodErrors(t *testing.T) {
	v := New(nil)

	mod := heap.NewModule("broken")
	mod.InitMethod = "init"
	mod.State = heap.ModuleLoaded

	th := interp.NewThread(1, "main", v, v.Manager)

	err := v.RunInitializers(th, []*heap.Module{mod})
	require.Error(t, err)
	require.Equal(t, heap.ModuleLoaded, mod.State)
}
