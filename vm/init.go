package vm

import (
	"github.com/go-spade/spade/lang/heap"
	"github.com/go-spade/spade/lang/interp"
	"github.com/go-spade/spade/lang/spaderr"
)

// RunInitializers calls each module's initializer method, in the order
// given, on th (§4.3 step 8: "the VM is expected to call them in that
// order before the program entry"). A module with no InitMethod (a
// library with no top-level init code) is skipped. Every module's globals
// stay heap.NullValue (§4.3 step 4's "null until the module initializer
// runs") until its own initializer runs here, so callers must invoke this
// before the entry method's own call.
func (vm *VM) RunInitializers(th *interp.Thread, mods []*heap.Module) error {
	for _, mod := range mods {
		if mod.InitMethod == "" {
			continue
		}
		init, ok := mod.Methods[mod.InitMethod]
		if !ok {
			return spaderr.NewIllegalAccess("module %q: initializer %q not found", mod.Name, mod.InitMethod)
		}
		if _, err := th.Call(init, nil); err != nil {
			return err
		}
		mod.State = heap.ModuleInitialized
	}
	return nil
}
