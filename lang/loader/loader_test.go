package loader

import (
	"context"
	"testing"

	"github.com/go-spade/spade/lang/bincode"
	"github.com/go-spade/spade/lang/heap"
	"github.com/stretchr/testify/require"
)

func samplePoolModule(name string) bincode.Module {
	// pool[0] = null sentinel, pool[1] = module name, pool[2] = init name,
	// pool[3] = global name, pool[4] = class name, pool[5] = method name.
	pool := []bincode.Const{
		bincode.NullConst(),
		bincode.StringConst(name),
		bincode.StringConst("init"),
		bincode.StringConst("counter"),
		bincode.StringConst("Greeter"),
		bincode.StringConst("greet"),
	}
	return bincode.Module{
		NameIdx: 1,
		InitIdx: 2,
		Pool:    pool,
		Globals: []bincode.Global{{NameIdx: 3, TypeIdx: 0}},
		Methods: []bincode.Method{{
			NameIdx:  2,
			StackMax: 2,
			Code:     []byte{0x01, 0x02},
		}},
		Classes: []bincode.Class{{
			NameIdx: 4,
			Methods: []bincode.Method{{
				NameIdx:  5,
				StackMax: 1,
				Code:     []byte{0x00},
			}},
		}},
	}
}

func sampleProgram() *bincode.Program {
	mod := samplePoolModule("app")
	return &bincode.Program{
		Magic:      bincode.MagicExecutable,
		EntryIdx:   1,
		ImportsIdx: 0,
		Pool: []bincode.Const{
			bincode.NullConst(),
			bincode.StringConst("init"),
		},
		Modules: []bincode.Module{mod},
	}
}

func TestVerifyAcceptsWellFormedProgram(t *testing.T) {
	p := sampleProgram()
	require.NoError(t, Verify(p, "sample"))
}

func TestVerifyRejectsBadMagic(t *testing.T) {
	p := sampleProgram()
	p.Magic = 0
	require.Error(t, Verify(p, "sample"))
}

func TestVerifyRejectsOutOfRangeIndex(t *testing.T) {
	p := sampleProgram()
	p.Modules[0].NameIdx = 999
	require.Error(t, Verify(p, "sample"))
}

func TestVerifyRejectsIllegalConstTag(t *testing.T) {
	p := sampleProgram()
	p.Modules[0].Pool[1].Tag = bincode.ConstTag(0xFF)
	require.Error(t, Verify(p, "sample"))
}

func TestVerifyRejectsClosureStartPastLocals(t *testing.T) {
	p := sampleProgram()
	p.Modules[0].Methods[0].ClosureStart = 5
	require.Error(t, Verify(p, "sample"))
}

func TestVerifyRejectsExceptionRangePastCode(t *testing.T) {
	p := sampleProgram()
	p.Modules[0].Methods[0].Exceptions = []bincode.ExceptionRecord{
		{StartPC: 0, EndPC: 100, TargetPC: 0},
	}
	require.Error(t, Verify(p, "sample"))
}

func TestVerifyRejectsLineInfoOverrun(t *testing.T) {
	p := sampleProgram()
	p.Modules[0].Methods[0].Lines = []bincode.LineNumber{{Times: 255, Line: 1}}
	require.Error(t, Verify(p, "sample"))
}

func TestLoaderMaterializesModule(t *testing.T) {
	p := sampleProgram()
	require.NoError(t, Verify(p, "sample"))

	l := NewLoader(heap.NewManager())
	hm, err := l.loadModule(&p.Modules[0], "", "sample")
	require.NoError(t, err)
	require.Equal(t, "app", hm.Name)
	require.Contains(t, hm.Globals, "counter")
	require.Equal(t, "init", hm.InitMethod)
	require.Contains(t, hm.Methods, "init")
	require.Contains(t, hm.Classes, "app.Greeter")

	typ := hm.Classes["app.Greeter"]
	_, ok := typ.Members.Get("greet")
	require.True(t, ok)

	require.NoError(t, l.ResolveAll())
}

func TestLoaderSubmoduleQualifiedName(t *testing.T) {
	outer := samplePoolModule("outer")
	inner := samplePoolModule("inner")
	outer.Submodules = []bincode.Module{inner}

	l := NewLoader(nil)
	hm, err := l.loadModule(&outer, "", "sample")
	require.NoError(t, err)
	require.Contains(t, hm.Submodules, "inner")
	require.Equal(t, "outer::inner", hm.Submodules["inner"].Name)
}

func TestLoaderResolvesSupertypes(t *testing.T) {
	basePool := []bincode.Const{
		bincode.NullConst(),
		bincode.StringConst("m"),
		bincode.StringConst("Base"),
		bincode.StringConst("Derived"),
		bincode.StringConst("m.Base"),
	}
	m := bincode.Module{
		NameIdx: 1,
		Pool:    basePool,
		Classes: []bincode.Class{
			{NameIdx: 2},
			{NameIdx: 3, SupersIdx: 4},
		},
	}
	// Build the array-of-signature-strings constant for the Derived class's
	// supertype list and append it to the pool.
	m.Pool = append(m.Pool, bincode.ArrayConst([]bincode.Const{bincode.StringConst("m.Base")}))
	m.Classes[1].SupersIdx = uint16(len(m.Pool) - 1)

	l := NewLoader(nil)
	hm, err := l.loadModule(&m, "", "sample")
	require.NoError(t, err)
	require.NoError(t, l.ResolveAll())

	derived := hm.Classes["m.Derived"]
	require.Len(t, derived.Resolved, 1)
	require.NotNil(t, derived.Resolved[0])
	require.Equal(t, "m.Base", derived.Resolved[0].Sig)
	require.True(t, derived.IsSubtypeOf("m.Base"))
}

func TestLoaderMergesInheritedMembers(t *testing.T) {
	pool := []bincode.Const{
		bincode.NullConst(),
		bincode.StringConst("m"),
		bincode.StringConst("Base"),
		bincode.StringConst("field"),
		bincode.StringConst("Derived"),
	}
	m := bincode.Module{
		NameIdx: 1,
		Pool:    pool,
		Classes: []bincode.Class{
			{NameIdx: 2, Fields: []bincode.Field{{NameIdx: 3}}},
			{NameIdx: 4},
		},
	}
	m.Pool = append(m.Pool, bincode.ArrayConst([]bincode.Const{bincode.StringConst("m.Base")}))
	m.Classes[1].SupersIdx = uint16(len(m.Pool) - 1)

	l := NewLoader(nil)
	_, err := l.loadModule(&m, "", "sample")
	require.NoError(t, err)
	require.NoError(t, l.resolveAll())

	derived := l.types["m.Derived"]
	require.NotNil(t, derived)
	_, ok := derived.Members.Get("field")
	require.True(t, ok, "expected Derived to inherit Base's field member")
}

func TestLoadEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/app.spd"
	require.NoError(t, bincode.WriteFile(path, sampleProgram()))

	l := NewLoader(heap.NewManager())
	mod, entry, err := l.Load(context.Background(), path, LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, "app", mod.Name)
	require.NotNil(t, entry)
	require.Equal(t, "init", entry.Name)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	l := NewLoader(nil)
	_, _, err := l.Load(context.Background(), "/nonexistent/path.spd", LoadOptions{})
	require.Error(t, err)
}

// TestLoadRejectsUnresolvedSupertype checks §4.3 step 7's strictness is
// enforced on the real Load path, not only via the separately exposed
// ResolveAll: a class naming a supertype that is never defined anywhere in
// the program must fail Load itself, rather than loading with a silently
// nil Resolved entry.
func TestLoadRejectsUnresolvedSupertype(t *testing.T) {
	p := sampleProgram()
	mod := &p.Modules[0]

	missingSig := bincode.StringConst("app.NoSuchBase")
	mod.Pool = append(mod.Pool, missingSig, bincode.ArrayConst([]bincode.Const{missingSig}))
	mod.Classes[0].SupersIdx = uint16(len(mod.Pool) - 1)

	require.NoError(t, Verify(p, "sample"))

	dir := t.TempDir()
	path := dir + "/app.spd"
	require.NoError(t, bincode.WriteFile(path, p))

	l := NewLoader(heap.NewManager())
	_, _, err := l.Load(context.Background(), path, LoadOptions{})
	require.Error(t, err)
}
