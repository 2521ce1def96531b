package bincode

import (
	"fmt"
	"io"
	"strings"
)

// Disassemble writes a human-readable structural dump of p to w: the
// module tree, classes, methods and their raw code, exception and match
// tables, and metadata. It does not decode opcodes to mnemonics; pairing
// the dump with instruction names is the loader/interpreter's job once a
// program is actually loaded, not a concern of the wire format.
func Disassemble(w io.Writer, p *Program) error {
	d := &disasm{w: w}
	kind := "library"
	if p.IsExecutable() {
		kind = "executable"
	}
	d.printf("; %s version=%d.%d entry=%d imports=%d\n",
		kind, p.MajorVersion, p.MinorVersion, p.EntryIdx, p.ImportsIdx)
	d.printPool(p.Pool, 0)
	for i := range p.Modules {
		d.printModule(&p.Modules[i], 0)
	}
	d.printMeta(p.Meta, 0)
	return d.err
}

type disasm struct {
	w   io.Writer
	err error
}

func (d *disasm) printf(format string, args ...interface{}) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, format, args...)
}

func indent(depth int) string { return strings.Repeat("  ", depth) }

func (d *disasm) printPool(pool []Const, depth int) {
	if len(pool) == 0 {
		return
	}
	d.printf("%spool[%d]:\n", indent(depth), len(pool))
	for i, c := range pool {
		d.printf("%s  #%d = %s\n", indent(depth), i, constString(c))
	}
}

func constString(c Const) string {
	switch c.Tag {
	case TagNull:
		return "null"
	case TagTrue:
		return "true"
	case TagFalse:
		return "false"
	case TagChar:
		return fmt.Sprintf("char %q", c.Char)
	case TagInt:
		return fmt.Sprintf("int %d", c.Int)
	case TagFloat:
		return fmt.Sprintf("float %v", c.Float)
	case TagString:
		return fmt.Sprintf("string %q", c.String)
	case TagArray:
		parts := make([]string, len(c.Array))
		for i, e := range c.Array {
			parts[i] = constString(e)
		}
		return "array[" + strings.Join(parts, ", ") + "]"
	}
	return "?"
}

func (d *disasm) printMeta(m Metadata, depth int) {
	for _, e := range m {
		d.printf("%s@%s = %q\n", indent(depth), e.Key, e.Value)
	}
}

func (d *disasm) printModule(m *Module, depth int) {
	d.printf("%smodule #name=%d init=%d\n", indent(depth), m.NameIdx, m.InitIdx)
	d.printPool(m.Pool, depth+1)
	for i := range m.Globals {
		g := &m.Globals[i]
		d.printf("%sglobal #name=%d type=%d flags=%#x\n", indent(depth+1), g.NameIdx, g.TypeIdx, g.AccessFlags)
	}
	for i := range m.Classes {
		d.printClass(&m.Classes[i], depth+1)
	}
	for i := range m.Methods {
		d.printMethod(&m.Methods[i], depth+1)
	}
	for i := range m.Submodules {
		d.printModule(&m.Submodules[i], depth+1)
	}
	d.printMeta(m.Meta, depth+1)
}

func (d *disasm) printClass(c *Class, depth int) {
	d.printf("%sclass #name=%d kind=%d supers=%d\n", indent(depth), c.NameIdx, c.Kind, c.SupersIdx)
	for i := range c.Fields {
		f := &c.Fields[i]
		d.printf("%sfield #name=%d type=%d kind=%d flags=%#x\n", indent(depth+1), f.NameIdx, f.TypeIdx, f.Kind, f.AccessFlags)
	}
	for i := range c.Methods {
		d.printMethod(&c.Methods[i], depth+1)
	}
	d.printMeta(c.Meta, depth+1)
}

func (d *disasm) printMethod(m *Method, depth int) {
	d.printf("%smethod #name=%d kind=%d flags=%#x args=%d locals=%d closureStart=%d stackMax=%d\n",
		indent(depth), m.NameIdx, m.Kind, m.AccessFlags, len(m.Args), len(m.Locals), m.ClosureStart, m.StackMax)
	d.printf("%scode[%d]: % x\n", indent(depth+1), len(m.Code), m.Code)
	for _, e := range m.Exceptions {
		d.printf("%sexception [%d,%d) -> %d type=%d\n", indent(depth+1), e.StartPC, e.EndPC, e.TargetPC, e.ExceptionIdx)
	}
	if len(m.Lines) > 0 {
		pc := uint32(0)
		d.printf("%slines:", indent(depth+1))
		for _, ln := range m.Lines {
			d.printf(" %d:+%d@%d", ln.Line, ln.Times, pc)
			pc += uint32(ln.Times)
		}
		d.printf("\n")
	}
	for mi, mr := range m.Matches {
		d.printf("%smatch#%d default=%d:", indent(depth+1), mi, mr.DefaultLocation)
		for _, c := range mr.Cases {
			d.printf(" %d->%d", c.ValueIdx, c.Location)
		}
		d.printf("\n")
	}
	d.printMeta(m.Meta, depth+1)
}
