package bincode

import (
	"io"
	"math"

	"github.com/go-spade/spade/lang/spaderr"
)

// Writer serializes a Program into the binary format. A Writer never
// validates semantic soundness (that is the loader's verifier); it only
// enforces the structural limits the wire format itself imposes, such as
// MaxPoolSize.
type Writer struct {
	w   io.Writer
	buf [8]byte
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// Write serializes p to w.
func Write(w io.Writer, p *Program) error {
	return NewWriter(w).WriteProgram(p)
}

func (w *Writer) write(b []byte) error {
	_, err := w.w.Write(b)
	return err
}

func (w *Writer) writeU8(v uint8) error {
	w.buf[0] = v
	return w.write(w.buf[:1])
}

func (w *Writer) writeU16(v uint16) error {
	w.buf[0] = byte(v >> 8)
	w.buf[1] = byte(v)
	return w.write(w.buf[:2])
}

func (w *Writer) writeU32(v uint32) error {
	w.buf[0] = byte(v >> 24)
	w.buf[1] = byte(v >> 16)
	w.buf[2] = byte(v >> 8)
	w.buf[3] = byte(v)
	return w.write(w.buf[:4])
}

func (w *Writer) writeU64(v uint64) error {
	for i := 0; i < 8; i++ {
		w.buf[i] = byte(v >> uint(56-8*i))
	}
	return w.write(w.buf[:8])
}

func (w *Writer) writeBytes(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return w.write(b)
}

func (w *Writer) writeUTF8(s string) error {
	if len(s) > 0xFFFF {
		return spaderr.NewArgument("string constant too long: %d bytes", len(s))
	}
	if err := w.writeU16(uint16(len(s))); err != nil {
		return err
	}
	return w.writeBytes([]byte(s))
}

func (w *Writer) writeMeta(m Metadata) error {
	if err := w.writeU16(uint16(len(m))); err != nil {
		return err
	}
	for _, e := range m {
		if err := w.writeUTF8(e.Key); err != nil {
			return err
		}
		if err := w.writeUTF8(e.Value); err != nil {
			return err
		}
	}
	return nil
}

// WriteProgram serializes the whole file (§6.1), the structural inverse of
// ReadProgram.
func (w *Writer) WriteProgram(p *Program) error {
	if err := w.writeU32(p.Magic); err != nil {
		return err
	}
	if err := w.writeU32(p.MinorVersion); err != nil {
		return err
	}
	if err := w.writeU32(p.MajorVersion); err != nil {
		return err
	}
	if err := w.writeU16(p.EntryIdx); err != nil {
		return err
	}
	if err := w.writeU16(p.ImportsIdx); err != nil {
		return err
	}
	if err := w.writePool(p.Pool); err != nil {
		return err
	}
	if len(p.Modules) > 0xFFFF {
		return spaderr.NewArgument("too many top-level modules: %d", len(p.Modules))
	}
	if err := w.writeU16(uint16(len(p.Modules))); err != nil {
		return err
	}
	for i := range p.Modules {
		if err := w.writeModule(&p.Modules[i]); err != nil {
			return err
		}
	}
	return w.writeMeta(p.Meta)
}

func (w *Writer) writePool(pool []Const) error {
	if len(pool) > MaxPoolSize {
		return spaderr.NewArgument("constant pool too large: %d entries", len(pool))
	}
	if err := w.writeU16(uint16(len(pool))); err != nil {
		return err
	}
	for i := range pool {
		if err := w.writeConst(&pool[i]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeConst(c *Const) error {
	if !c.Tag.Valid() {
		return spaderr.NewArgument("illegal constant tag %d", c.Tag)
	}
	if err := w.writeU8(uint8(c.Tag)); err != nil {
		return err
	}
	switch c.Tag {
	case TagNull, TagTrue, TagFalse:
		return nil
	case TagChar:
		return w.writeU32(uint32(c.Char))
	case TagInt:
		return w.writeU64(uint64(c.Int))
	case TagFloat:
		return w.writeU64(math.Float64bits(c.Float))
	case TagString:
		return w.writeUTF8(c.String)
	case TagArray:
		return w.writePool(c.Array)
	}
	return spaderr.NewArgument("illegal constant tag %d", c.Tag)
}

func (w *Writer) writeModule(m *Module) error {
	if err := w.writeU8(uint8(m.Kind)); err != nil {
		return err
	}
	if err := w.writeU16(m.CompiledFromIdx); err != nil {
		return err
	}
	if err := w.writeU16(m.NameIdx); err != nil {
		return err
	}
	if err := w.writeU16(m.InitIdx); err != nil {
		return err
	}

	if len(m.Globals) > 0xFFFF {
		return spaderr.NewArgument("too many globals: %d", len(m.Globals))
	}
	if err := w.writeU16(uint16(len(m.Globals))); err != nil {
		return err
	}
	for i := range m.Globals {
		if err := w.writeGlobal(&m.Globals[i]); err != nil {
			return err
		}
	}

	if len(m.Methods) > 0xFFFF {
		return spaderr.NewArgument("too many methods: %d", len(m.Methods))
	}
	if err := w.writeU16(uint16(len(m.Methods))); err != nil {
		return err
	}
	for i := range m.Methods {
		if err := w.writeMethod(&m.Methods[i]); err != nil {
			return err
		}
	}

	if len(m.Classes) > 0xFFFF {
		return spaderr.NewArgument("too many classes: %d", len(m.Classes))
	}
	if err := w.writeU16(uint16(len(m.Classes))); err != nil {
		return err
	}
	for i := range m.Classes {
		if err := w.writeClass(&m.Classes[i]); err != nil {
			return err
		}
	}

	if err := w.writePool(m.Pool); err != nil {
		return err
	}

	if len(m.Submodules) > 0xFFFF {
		return spaderr.NewArgument("too many submodules: %d", len(m.Submodules))
	}
	if err := w.writeU16(uint16(len(m.Submodules))); err != nil {
		return err
	}
	for i := range m.Submodules {
		if err := w.writeModule(&m.Submodules[i]); err != nil {
			return err
		}
	}

	return w.writeMeta(m.Meta)
}

func (w *Writer) writeGlobal(g *Global) error {
	if err := w.writeU16(g.AccessFlags); err != nil {
		return err
	}
	if err := w.writeU16(g.NameIdx); err != nil {
		return err
	}
	if err := w.writeU16(g.TypeIdx); err != nil {
		return err
	}
	return w.writeMeta(g.Meta)
}

func (w *Writer) writeClass(c *Class) error {
	if !c.Kind.Valid() {
		return spaderr.NewArgument("illegal class kind %d", c.Kind)
	}
	if err := w.writeU8(uint8(c.Kind)); err != nil {
		return err
	}
	if err := w.writeU16(c.AccessFlags); err != nil {
		return err
	}
	if err := w.writeU16(c.NameIdx); err != nil {
		return err
	}
	if err := w.writeU16(c.SupersIdx); err != nil {
		return err
	}

	if len(c.Fields) > 0xFFFF {
		return spaderr.NewArgument("too many fields: %d", len(c.Fields))
	}
	if err := w.writeU16(uint16(len(c.Fields))); err != nil {
		return err
	}
	for i := range c.Fields {
		if err := w.writeField(&c.Fields[i]); err != nil {
			return err
		}
	}

	if len(c.Methods) > 0xFFFF {
		return spaderr.NewArgument("too many methods: %d", len(c.Methods))
	}
	if err := w.writeU16(uint16(len(c.Methods))); err != nil {
		return err
	}
	for i := range c.Methods {
		if err := w.writeMethod(&c.Methods[i]); err != nil {
			return err
		}
	}

	return w.writeMeta(c.Meta)
}

func (w *Writer) writeField(f *Field) error {
	if !f.Kind.Valid() {
		return spaderr.NewArgument("illegal field kind %d", f.Kind)
	}
	if err := w.writeU8(uint8(f.Kind)); err != nil {
		return err
	}
	if err := w.writeU16(f.AccessFlags); err != nil {
		return err
	}
	if err := w.writeU16(f.NameIdx); err != nil {
		return err
	}
	if err := w.writeU16(f.TypeIdx); err != nil {
		return err
	}
	return w.writeMeta(f.Meta)
}

func (w *Writer) writeMethod(m *Method) error {
	if !m.Kind.Valid() {
		return spaderr.NewArgument("illegal method kind %d", m.Kind)
	}
	if err := w.writeU8(uint8(m.Kind)); err != nil {
		return err
	}
	if err := w.writeU16(m.AccessFlags); err != nil {
		return err
	}
	if err := w.writeU16(m.NameIdx); err != nil {
		return err
	}

	if len(m.Args) > 0xFF {
		return spaderr.NewArgument("too many arguments: %d", len(m.Args))
	}
	if err := w.writeU8(uint8(len(m.Args))); err != nil {
		return err
	}
	for i := range m.Args {
		if err := w.writeArg(&m.Args[i]); err != nil {
			return err
		}
	}

	if len(m.Locals) > 0xFFFF {
		return spaderr.NewArgument("too many locals: %d", len(m.Locals))
	}
	if err := w.writeU16(uint16(len(m.Locals))); err != nil {
		return err
	}
	if err := w.writeU16(m.ClosureStart); err != nil {
		return err
	}
	for i := range m.Locals {
		if err := w.writeLocal(&m.Locals[i]); err != nil {
			return err
		}
	}

	if err := w.writeU32(m.StackMax); err != nil {
		return err
	}
	if err := w.writeU32(uint32(len(m.Code))); err != nil {
		return err
	}
	if err := w.writeBytes(m.Code); err != nil {
		return err
	}

	if len(m.Exceptions) > 0xFFFF {
		return spaderr.NewArgument("too many exception records: %d", len(m.Exceptions))
	}
	if err := w.writeU16(uint16(len(m.Exceptions))); err != nil {
		return err
	}
	for i := range m.Exceptions {
		if err := w.writeException(&m.Exceptions[i]); err != nil {
			return err
		}
	}

	if err := w.writeLines(m.Lines); err != nil {
		return err
	}

	if len(m.Matches) > 0xFFFF {
		return spaderr.NewArgument("too many match records: %d", len(m.Matches))
	}
	if err := w.writeU16(uint16(len(m.Matches))); err != nil {
		return err
	}
	for i := range m.Matches {
		if err := w.writeMatch(&m.Matches[i]); err != nil {
			return err
		}
	}

	return w.writeMeta(m.Meta)
}

func (w *Writer) writeArg(a *Arg) error {
	if err := w.writeU16(a.NameIdx); err != nil {
		return err
	}
	if err := w.writeU16(a.TypeIdx); err != nil {
		return err
	}
	return w.writeMeta(a.Meta)
}

func (w *Writer) writeLocal(l *Local) error {
	if err := w.writeU16(l.NameIdx); err != nil {
		return err
	}
	if err := w.writeU16(l.TypeIdx); err != nil {
		return err
	}
	return w.writeMeta(l.Meta)
}

func (w *Writer) writeException(e *ExceptionRecord) error {
	if err := w.writeU32(e.StartPC); err != nil {
		return err
	}
	if err := w.writeU32(e.EndPC); err != nil {
		return err
	}
	if err := w.writeU32(e.TargetPC); err != nil {
		return err
	}
	if err := w.writeU16(e.ExceptionIdx); err != nil {
		return err
	}
	return w.writeMeta(e.Meta)
}

func (w *Writer) writeLines(lines []LineNumber) error {
	if len(lines) > 0xFFFF {
		return spaderr.NewArgument("too many line-number runs: %d", len(lines))
	}
	if err := w.writeU16(uint16(len(lines))); err != nil {
		return err
	}
	for _, ln := range lines {
		if err := w.writeU8(ln.Times); err != nil {
			return err
		}
		if err := w.writeU32(ln.Line); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeMatch(mr *MatchRecord) error {
	if len(mr.Cases) > 0xFFFF {
		return spaderr.NewArgument("too many match cases: %d", len(mr.Cases))
	}
	if err := w.writeU16(uint16(len(mr.Cases))); err != nil {
		return err
	}
	for _, c := range mr.Cases {
		if err := w.writeU16(c.ValueIdx); err != nil {
			return err
		}
		if err := w.writeU32(c.Location); err != nil {
			return err
		}
	}
	if err := w.writeU32(mr.DefaultLocation); err != nil {
		return err
	}
	return w.writeMeta(mr.Meta)
}
