// Package loader implements the verifier and the bottom-up module
// materializer (C3, §4.3): Verify rejects structurally malformed programs
// before any heap allocation happens, and Load walks the import DAG,
// building heap.Module/heap.Type/heap.Method values and frame.FrameTemplate
// blueprints from a verified bincode.Program.
package loader

import (
	"fmt"

	"github.com/go-spade/spade/lang/bincode"
	"github.com/go-spade/spade/lang/spaderr"
)

// Verify performs the cheap structural pass of §4.3: magic number, every
// index against its target table's size, tag and kind-byte legality, and
// the line-info total-byte check. path is used only to annotate the
// returned CorruptFile error.
func Verify(p *bincode.Program, path string) error {
	if p.Magic != bincode.MagicExecutable && p.Magic != bincode.MagicLibrary {
		return spaderr.NewCorruptFile(path, "unrecognized magic number")
	}
	if err := verifyPool(p.Pool, path); err != nil {
		return err
	}
	if p.IsExecutable() {
		if err := checkIdx(p.EntryIdx, len(p.Pool), path, "entry index"); err != nil {
			return err
		}
	}
	if err := checkIdx(p.ImportsIdx, len(p.Pool), path, "imports index"); err != nil {
		return err
	}
	for i := range p.Modules {
		if err := verifyModule(&p.Modules[i], path); err != nil {
			return err
		}
	}
	return nil
}

// checkIdx validates a 16-bit pool/name index against a table of size n.
// Index 0 is always accepted: by convention a well-formed pool reserves
// slot 0 for a Null constant used as the "absent" sentinel value, matching
// bincode.Program.EntryIdx's documented "0 for libraries" convention
// generalized to every other optional index field.
func checkIdx(idx uint16, n int, path, what string) error {
	if idx == 0 {
		return nil
	}
	if int(idx) >= n {
		return spaderr.NewCorruptFile(path, fmt.Sprintf("%s %d out of range (pool size %d)", what, idx, n))
	}
	return nil
}

func verifyPool(pool []bincode.Const, path string) error {
	for i, c := range pool {
		if !c.Tag.Valid() {
			return spaderr.NewCorruptFile(path, fmt.Sprintf("constant #%d: illegal tag %d", i, c.Tag))
		}
		if c.Tag == bincode.TagArray {
			if err := verifyPool(c.Array, path); err != nil {
				return err
			}
		}
	}
	return nil
}

func verifyModule(m *bincode.Module, path string) error {
	if err := verifyPool(m.Pool, path); err != nil {
		return err
	}
	poolLen := len(m.Pool)

	if err := checkIdx(m.NameIdx, poolLen, path, "module name index"); err != nil {
		return err
	}
	if err := checkIdx(m.CompiledFromIdx, poolLen, path, "compiled-from index"); err != nil {
		return err
	}
	if err := checkIdx(m.InitIdx, poolLen, path, "module init index"); err != nil {
		return err
	}

	for i := range m.Globals {
		g := &m.Globals[i]
		if err := checkIdx(g.NameIdx, poolLen, path, "global name index"); err != nil {
			return err
		}
		if err := checkIdx(g.TypeIdx, poolLen, path, "global type index"); err != nil {
			return err
		}
	}

	for i := range m.Classes {
		if err := verifyClass(&m.Classes[i], poolLen, path); err != nil {
			return err
		}
	}

	for i := range m.Methods {
		if err := verifyMethod(&m.Methods[i], poolLen, path); err != nil {
			return err
		}
	}

	for i := range m.Submodules {
		if err := verifyModule(&m.Submodules[i], path); err != nil {
			return err
		}
	}
	return nil
}

func verifyClass(c *bincode.Class, poolLen int, path string) error {
	if !c.Kind.Valid() {
		return spaderr.NewCorruptFile(path, fmt.Sprintf("illegal class kind %d", c.Kind))
	}
	if err := checkIdx(c.NameIdx, poolLen, path, "class name index"); err != nil {
		return err
	}
	if err := checkIdx(c.SupersIdx, poolLen, path, "class supers index"); err != nil {
		return err
	}
	for i := range c.Fields {
		f := &c.Fields[i]
		if !f.Kind.Valid() {
			return spaderr.NewCorruptFile(path, fmt.Sprintf("illegal field kind %d", f.Kind))
		}
		if err := checkIdx(f.NameIdx, poolLen, path, "field name index"); err != nil {
			return err
		}
		if err := checkIdx(f.TypeIdx, poolLen, path, "field type index"); err != nil {
			return err
		}
	}
	for i := range c.Methods {
		if err := verifyMethod(&c.Methods[i], poolLen, path); err != nil {
			return err
		}
	}
	return nil
}

func verifyMethod(m *bincode.Method, poolLen int, path string) error {
	if !m.Kind.Valid() {
		return spaderr.NewCorruptFile(path, fmt.Sprintf("illegal method kind %d", m.Kind))
	}
	if err := checkIdx(m.NameIdx, poolLen, path, "method name index"); err != nil {
		return err
	}
	for i := range m.Args {
		a := &m.Args[i]
		if err := checkIdx(a.NameIdx, poolLen, path, "arg name index"); err != nil {
			return err
		}
		if err := checkIdx(a.TypeIdx, poolLen, path, "arg type index"); err != nil {
			return err
		}
	}
	for i := range m.Locals {
		l := &m.Locals[i]
		if err := checkIdx(l.NameIdx, poolLen, path, "local name index"); err != nil {
			return err
		}
		if err := checkIdx(l.TypeIdx, poolLen, path, "local type index"); err != nil {
			return err
		}
	}

	// §9 REDESIGN FLAG: re-check at load time what the assembler was
	// previously relied on to enforce at emit time.
	if int(m.ClosureStart) > len(m.Locals) {
		return spaderr.NewCorruptFile(path, fmt.Sprintf(
			"method %d: closure_start %d exceeds locals count %d", m.NameIdx, m.ClosureStart, len(m.Locals)))
	}

	codeLen := uint32(len(m.Code))
	for i, e := range m.Exceptions {
		if e.StartPC > codeLen || e.EndPC > codeLen || e.StartPC > e.EndPC {
			return spaderr.NewCorruptFile(path, fmt.Sprintf("exception record %d: range [%d,%d) exceeds code length %d", i, e.StartPC, e.EndPC, codeLen))
		}
		if e.TargetPC > codeLen {
			return spaderr.NewCorruptFile(path, fmt.Sprintf("exception record %d: target_pc %d exceeds code length %d", i, e.TargetPC, codeLen))
		}
		if err := checkIdx(e.ExceptionIdx, poolLen, path, "exception type index"); err != nil {
			return err
		}
	}

	var lineBytes uint32
	for _, ln := range m.Lines {
		lineBytes += uint32(ln.Times)
	}
	if lineBytes > codeLen {
		return spaderr.NewCorruptFile(path, fmt.Sprintf("line-info covers %d bytes, exceeds code length %d", lineBytes, codeLen))
	}

	for mi, mr := range m.Matches {
		for ci, c := range mr.Cases {
			if c.Location > codeLen {
				return spaderr.NewCorruptFile(path, fmt.Sprintf("match %d case %d: location %d exceeds code length %d", mi, ci, c.Location, codeLen))
			}
			if err := checkIdx(c.ValueIdx, poolLen, path, "match case value index"); err != nil {
				return err
			}
		}
		if mr.DefaultLocation > codeLen {
			return spaderr.NewCorruptFile(path, fmt.Sprintf("match %d: default location %d exceeds code length %d", mi, mr.DefaultLocation, codeLen))
		}
	}

	return nil
}
