package maincmd

import (
	"context"
	"fmt"
	"io"

	"github.com/go-spade/spade/lang/heap"
	"github.com/go-spade/spade/lang/interp"
	"github.com/go-spade/spade/lang/loader"
	"github.com/go-spade/spade/lang/spaderr"
	"github.com/go-spade/spade/vm"
)

// runProgram loads the program at path, runs its entry method on a fresh
// VM, and returns the process exit code (§6.2: "returns the program's exit
// code, from the outermost RET"). A bare Int result becomes that exit
// code; any other result, including none, is success (0). diagnostics
// receives load and runtime errors; it is the CLI's stderr.
func runProgram(ctx context.Context, path string, progArgs []string, stdout, diagnostics io.Writer, cfg RunConfig, attachDebugger bool) int {
	v := vm.New(stdout)

	ldr := loader.NewLoader(v.Manager)
	mod, entry, err := ldr.Load(ctx, path, loader.LoadOptions{})
	if err != nil {
		fmt.Fprintf(diagnostics, "load error: %s\n", err)
		return 1
	}
	v.RegisterModule(mod)

	if err := v.LoadBasic(); err != nil {
		fmt.Fprintf(diagnostics, "internal error: %s\n", err)
		return 1
	}

	if entry == nil {
		fmt.Fprintf(diagnostics, "%s: not an executable (no entry point)\n", path)
		return 1
	}

	callArgs, err := entryCallArgs(entry, progArgs)
	if err != nil {
		fmt.Fprintf(diagnostics, "%s\n", err)
		return 1
	}

	var dbg interp.Debugger
	if attachDebugger {
		dbg = vm.NewStepDebugger()
	}

	initOrder := ldr.InitOrder()

	var mainID uint64
	result, err := v.RunMain("main", func(th *interp.Thread) (heap.Value, error) {
		mainID = th.ID
		th.MaxSteps = uint64(cfg.MaxSteps)
		th.MaxCallStackDepth = cfg.MaxCallStackDepth
		th.DisableRecursion = cfg.DisableRecursion
		th.Debug = dbg
		if err := v.RunInitializers(th, initOrder); err != nil {
			return heap.NullValue, err
		}
		return th.Call(entry, callArgs)
	})
	if s, ok := dbg.(interface{ Steps(uint64) uint64 }); ok {
		fmt.Fprintf(diagnostics, "debug: %d instructions dispatched\n", s.Steps(mainID))
	}
	if err != nil {
		return reportRunError(diagnostics, err)
	}
	return exitCodeFor(result)
}

// entryCallArgs adapts the process's program arguments to the entry
// method's declared arity: zero args for a no-arg entry, or a single
// array[string] for a one-arg entry. Any other arity is a load-time
// mismatch the CLI reports directly rather than asking the interpreter to
// fail an ARGCOUNT check against a synthetic call.
func entryCallArgs(entry *heap.Method, progArgs []string) ([]heap.Value, error) {
	switch entry.NumArgs {
	case 0:
		return nil, nil
	case 1:
		elems := make([]heap.Value, len(progArgs))
		for i, a := range progArgs {
			elems[i] = heap.String(a)
		}
		return []heap.Value{heap.NewArray(elems)}, nil
	default:
		return nil, fmt.Errorf("entry point %s: unsupported arity %d", entry.Sig, entry.NumArgs)
	}
}

// exitCodeFor implements "exit code from the outermost RET": an Int result
// is taken as the process exit code directly; anything else (Null, a
// value of another kind, or no return at all) is success.
func exitCodeFor(result heap.Value) int {
	if i, ok := result.(heap.Int); ok {
		return int(i)
	}
	return 0
}

// reportRunError writes a diagnostic for an uncaught program error and
// picks the process exit code: an uncaught ThrowSignal prints the thrown
// value and exits 1, matching §7's "converted to stack-trace-plus-exit if
// uncaught"; any other (fatal) error prints its message and also exits 1.
func reportRunError(diagnostics io.Writer, err error) int {
	if sig, ok := err.(*spaderr.ThrowSignal); ok {
		fmt.Fprintf(diagnostics, "uncaught exception: %s\n", sig.Value)
		return 1
	}
	fmt.Fprintf(diagnostics, "%s\n", err)
	return 1
}
