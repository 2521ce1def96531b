package maincmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-spade/spade/lang/bincode"
	"github.com/go-spade/spade/lang/heap"
	"github.com/go-spade/spade/lang/interp"
	"github.com/go-spade/spade/lang/spaderr"
	"github.com/stretchr/testify/require"
)

func TestEntryCallArgsNoArity(t *testing.T) {
	entry := heap.NewMethod("main", "app.main()", heap.MethodKindFunction, 0, 0)
	args, err := entryCallArgs(entry, []string{"a", "b"})
	require.NoError(t, err)
	require.Nil(t, args)
}

func TestEntryCallArgsArrayArity(t *testing.T) {
	entry := heap.NewMethod("main", "app.main([string])", heap.MethodKindFunction, 0, 1)
	args, err := entryCallArgs(entry, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, args, 1)
	arr, ok := args[0].(*heap.Array)
	require.True(t, ok)
	require.Equal(t, 2, arr.Len())
}

func TestEntryCallArgsUnsupportedArity(t *testing.T) {
	entry := heap.NewMethod("main", "app.main(int,int)", heap.MethodKindFunction, 0, 2)
	_, err := entryCallArgs(entry, nil)
	require.Error(t, err)
}

func TestExitCodeFor(t *testing.T) {
	require.Equal(t, 7, exitCodeFor(heap.Int(7)))
	require.Equal(t, 0, exitCodeFor(heap.NullValue))
	require.Equal(t, 0, exitCodeFor(nil))
}

func TestReportRunErrorUncaughtThrow(t *testing.T) {
	var buf bytes.Buffer
	code := reportRunError(&buf, &spaderr.ThrowSignal{Value: heap.String("boom")})
	require.Equal(t, 1, code)
	require.Contains(t, buf.String(), "boom")
}

func TestReportRunErrorFatal(t *testing.T) {
	var buf bytes.Buffer
	code := reportRunError(&buf, spaderr.NewMemory("out of memory"))
	require.Equal(t, 1, code)
	require.Contains(t, buf.String(), "out of memory")
}

// TestRunProgramRunsModuleInitializerBeforeEntry builds a tiny program
// whose module initializer stores 42 into a global and whose entry point
// loads that same global straight back out as its RET value. If
// runProgram never called the initializer, the global would still be
// heap.NullValue and the entry's GLOADF/RET would read back null instead
// of an Int, changing the process exit code.
func TestRunProgramRunsModuleInitializerBeforeEntry(t *testing.T) {
	pool := []bincode.Const{
		bincode.NullConst(),
		bincode.StringConst("app"),     // 1: module name
		bincode.StringConst("init"),    // 2: init method name
		bincode.StringConst("main"),    // 3: entry method name
		bincode.StringConst("counter"), // 4: global name
		bincode.IntConst(42),           // 5: stored value
	}

	mod := bincode.Module{
		NameIdx: 1,
		InitIdx: 2,
		Pool:    pool,
		Globals: []bincode.Global{{NameIdx: 4}},
		Methods: []bincode.Method{
			{
				NameIdx:  2,
				StackMax: 1,
				Code: []byte{
					byte(interp.CONSTF), 5,
					byte(interp.GSTOREF), 4,
					byte(interp.VRET),
				},
			},
			{
				NameIdx:  3,
				StackMax: 1,
				Code: []byte{
					byte(interp.GLOADF), 4,
					byte(interp.RET),
				},
			},
		},
	}

	p := &bincode.Program{
		Magic:    bincode.MagicExecutable,
		EntryIdx: 1,
		Pool: []bincode.Const{
			bincode.NullConst(),
			bincode.StringConst("main"),
		},
		Modules: []bincode.Module{mod},
	}

	dir := t.TempDir()
	path := dir + "/app.spd"
	require.NoError(t, bincode.WriteFile(path, p))

	var stdout, stderr bytes.Buffer
	code := runProgram(context.Background(), path, nil, &stdout, &stderr, RunConfig{}, false)
	require.Equal(t, "", stderr.String())
	require.Equal(t, 42, code)
}

func TestCmdValidateRequiresProgramPath(t *testing.T) {
	c := &Cmd{}
	require.Error(t, c.Validate())

	c.SetArgs([]string{"prog.spdc"})
	require.NoError(t, c.Validate())

	c = &Cmd{Help: true}
	require.NoError(t, c.Validate())
}
