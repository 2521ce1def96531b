package bincode

import (
	"errors"
	"io"
	"math"

	"github.com/go-spade/spade/lang/spaderr"
)

// Reader parses the binary program format from an io.Reader. Nested counts
// are authoritative: the reader never probes the stream to validate them
// (that is the verifier's job, applied after a full Read); a Reader fails
// with CorruptFile only for a truncated stream, an unrecognized magic
// number, or an illegal constant tag or class/field/method kind byte.
type Reader struct {
	r    io.Reader
	path string
	buf  [8]byte
}

// NewReader returns a Reader over r. path is used only to annotate
// CorruptFile errors; it may be empty.
func NewReader(r io.Reader, path string) *Reader {
	return &Reader{r: r, path: path}
}

// Read parses a complete Program from r.
func Read(r io.Reader, path string) (*Program, error) {
	return NewReader(r, path).ReadProgram()
}

func (r *Reader) corrupt(reason string) error {
	return spaderr.NewCorruptFile(r.path, reason)
}

func (r *Reader) fill(n int) ([]byte, error) {
	b := r.buf[:n]
	if _, err := io.ReadFull(r.r, b); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, r.corrupt("unexpected end of file")
		}
		return nil, err
	}
	return b, nil
}

func (r *Reader) readU8() (uint8, error) {
	b, err := r.fill(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) readU16() (uint16, error) {
	b, err := r.fill(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func (r *Reader) readU32() (uint32, error) {
	b, err := r.fill(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

func (r *Reader) readU64() (uint64, error) {
	b, err := r.fill(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

func (r *Reader) readBytes(n uint32) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, r.corrupt("unexpected end of file reading byte vector")
	}
	return buf, nil
}

func (r *Reader) readUTF8() (string, error) {
	n, err := r.readU16()
	if err != nil {
		return "", err
	}
	b, err := r.readBytes(uint32(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) readMeta() (Metadata, error) {
	n, err := r.readU16()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	meta := make(Metadata, n)
	for i := range meta {
		k, err := r.readUTF8()
		if err != nil {
			return nil, err
		}
		v, err := r.readUTF8()
		if err != nil {
			return nil, err
		}
		meta[i] = MetaEntry{Key: k, Value: v}
	}
	return meta, nil
}

// ReadProgram parses the whole file: magic, versions, entry/imports
// indices, the file-level constant pool, the module sequence, and file
// metadata (§6.1).
func (r *Reader) ReadProgram() (*Program, error) {
	p := &Program{}

	magic, err := r.readU32()
	if err != nil {
		return nil, err
	}
	if magic != MagicExecutable && magic != MagicLibrary {
		return nil, r.corrupt("unrecognized magic number")
	}
	p.Magic = magic

	if p.MinorVersion, err = r.readU32(); err != nil {
		return nil, err
	}
	if p.MajorVersion, err = r.readU32(); err != nil {
		return nil, err
	}
	if p.EntryIdx, err = r.readU16(); err != nil {
		return nil, err
	}
	if p.ImportsIdx, err = r.readU16(); err != nil {
		return nil, err
	}

	poolCount, err := r.readU16()
	if err != nil {
		return nil, err
	}
	if p.Pool, err = r.readPool(int(poolCount)); err != nil {
		return nil, err
	}

	moduleCount, err := r.readU16()
	if err != nil {
		return nil, err
	}
	p.Modules = make([]Module, moduleCount)
	for i := range p.Modules {
		if p.Modules[i], err = r.readModule(); err != nil {
			return nil, err
		}
	}

	if p.Meta, err = r.readMeta(); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Reader) readPool(n int) ([]Const, error) {
	if n == 0 {
		return nil, nil
	}
	pool := make([]Const, n)
	for i := range pool {
		c, err := r.readConst()
		if err != nil {
			return nil, err
		}
		pool[i] = c
	}
	return pool, nil
}

func (r *Reader) readConst() (Const, error) {
	tagB, err := r.readU8()
	if err != nil {
		return Const{}, err
	}
	tag := ConstTag(tagB)
	if !tag.Valid() {
		return Const{}, r.corrupt("illegal constant tag")
	}
	switch tag {
	case TagNull:
		return NullConst(), nil
	case TagTrue:
		return TrueConst(), nil
	case TagFalse:
		return FalseConst(), nil
	case TagChar:
		v, err := r.readU32()
		if err != nil {
			return Const{}, err
		}
		return CharConst(rune(v)), nil
	case TagInt:
		v, err := r.readU64()
		if err != nil {
			return Const{}, err
		}
		return IntConst(int64(v)), nil
	case TagFloat:
		v, err := r.readU64()
		if err != nil {
			return Const{}, err
		}
		return FloatConst(math.Float64frombits(v)), nil
	case TagString:
		s, err := r.readUTF8()
		if err != nil {
			return Const{}, err
		}
		return StringConst(s), nil
	case TagArray:
		n, err := r.readU16()
		if err != nil {
			return Const{}, err
		}
		elems, err := r.readPool(int(n))
		if err != nil {
			return Const{}, err
		}
		return ArrayConst(elems), nil
	}
	return Const{}, r.corrupt("illegal constant tag")
}

func (r *Reader) readModule() (Module, error) {
	var m Module
	kindB, err := r.readU8()
	if err != nil {
		return m, err
	}
	m.Kind = ModuleKind(kindB)

	if m.CompiledFromIdx, err = r.readU16(); err != nil {
		return m, err
	}
	if m.NameIdx, err = r.readU16(); err != nil {
		return m, err
	}
	if m.InitIdx, err = r.readU16(); err != nil {
		return m, err
	}

	gCount, err := r.readU16()
	if err != nil {
		return m, err
	}
	if gCount > 0 {
		m.Globals = make([]Global, gCount)
	}
	for i := range m.Globals {
		if m.Globals[i], err = r.readGlobal(); err != nil {
			return m, err
		}
	}

	mCount, err := r.readU16()
	if err != nil {
		return m, err
	}
	if mCount > 0 {
		m.Methods = make([]Method, mCount)
	}
	for i := range m.Methods {
		if m.Methods[i], err = r.readMethod(); err != nil {
			return m, err
		}
	}

	cCount, err := r.readU16()
	if err != nil {
		return m, err
	}
	if cCount > 0 {
		m.Classes = make([]Class, cCount)
	}
	for i := range m.Classes {
		if m.Classes[i], err = r.readClass(); err != nil {
			return m, err
		}
	}

	pCount, err := r.readU16()
	if err != nil {
		return m, err
	}
	if m.Pool, err = r.readPool(int(pCount)); err != nil {
		return m, err
	}

	sCount, err := r.readU16()
	if err != nil {
		return m, err
	}
	if sCount > 0 {
		m.Submodules = make([]Module, sCount)
	}
	for i := range m.Submodules {
		if m.Submodules[i], err = r.readModule(); err != nil {
			return m, err
		}
	}

	if m.Meta, err = r.readMeta(); err != nil {
		return m, err
	}
	return m, nil
}

func (r *Reader) readGlobal() (Global, error) {
	var g Global
	var err error
	if g.AccessFlags, err = r.readU16(); err != nil {
		return g, err
	}
	if g.NameIdx, err = r.readU16(); err != nil {
		return g, err
	}
	if g.TypeIdx, err = r.readU16(); err != nil {
		return g, err
	}
	g.Meta, err = r.readMeta()
	return g, err
}

func (r *Reader) readClass() (Class, error) {
	var c Class
	kindB, err := r.readU8()
	if err != nil {
		return c, err
	}
	c.Kind = ClassKind(kindB)
	if !c.Kind.Valid() {
		return c, r.corrupt("illegal class kind")
	}
	if c.AccessFlags, err = r.readU16(); err != nil {
		return c, err
	}
	if c.NameIdx, err = r.readU16(); err != nil {
		return c, err
	}
	if c.SupersIdx, err = r.readU16(); err != nil {
		return c, err
	}

	fCount, err := r.readU16()
	if err != nil {
		return c, err
	}
	c.Fields = make([]Field, fCount)
	for i := range c.Fields {
		if c.Fields[i], err = r.readField(); err != nil {
			return c, err
		}
	}

	mCount, err := r.readU16()
	if err != nil {
		return c, err
	}
	c.Methods = make([]Method, mCount)
	for i := range c.Methods {
		if c.Methods[i], err = r.readMethod(); err != nil {
			return c, err
		}
	}

	c.Meta, err = r.readMeta()
	return c, err
}

func (r *Reader) readField() (Field, error) {
	var f Field
	kindB, err := r.readU8()
	if err != nil {
		return f, err
	}
	f.Kind = FieldKind(kindB)
	if !f.Kind.Valid() {
		return f, r.corrupt("illegal field kind")
	}
	if f.AccessFlags, err = r.readU16(); err != nil {
		return f, err
	}
	if f.NameIdx, err = r.readU16(); err != nil {
		return f, err
	}
	if f.TypeIdx, err = r.readU16(); err != nil {
		return f, err
	}
	f.Meta, err = r.readMeta()
	return f, err
}

func (r *Reader) readMethod() (Method, error) {
	var m Method
	kindB, err := r.readU8()
	if err != nil {
		return m, err
	}
	m.Kind = MethodKind(kindB)
	if !m.Kind.Valid() {
		return m, r.corrupt("illegal method kind")
	}
	if m.AccessFlags, err = r.readU16(); err != nil {
		return m, err
	}
	if m.NameIdx, err = r.readU16(); err != nil {
		return m, err
	}

	argCount, err := r.readU8()
	if err != nil {
		return m, err
	}
	m.Args = make([]Arg, argCount)
	for i := range m.Args {
		if m.Args[i], err = r.readArg(); err != nil {
			return m, err
		}
	}

	localsCount, err := r.readU16()
	if err != nil {
		return m, err
	}
	if m.ClosureStart, err = r.readU16(); err != nil {
		return m, err
	}
	m.Locals = make([]Local, localsCount)
	for i := range m.Locals {
		if m.Locals[i], err = r.readLocal(); err != nil {
			return m, err
		}
	}

	if m.StackMax, err = r.readU32(); err != nil {
		return m, err
	}
	codeCount, err := r.readU32()
	if err != nil {
		return m, err
	}
	if m.Code, err = r.readBytes(codeCount); err != nil {
		return m, err
	}

	excCount, err := r.readU16()
	if err != nil {
		return m, err
	}
	m.Exceptions = make([]ExceptionRecord, excCount)
	for i := range m.Exceptions {
		if m.Exceptions[i], err = r.readException(); err != nil {
			return m, err
		}
	}

	if m.Lines, err = r.readLines(); err != nil {
		return m, err
	}

	matchCount, err := r.readU16()
	if err != nil {
		return m, err
	}
	m.Matches = make([]MatchRecord, matchCount)
	for i := range m.Matches {
		if m.Matches[i], err = r.readMatch(); err != nil {
			return m, err
		}
	}

	m.Meta, err = r.readMeta()
	return m, err
}

func (r *Reader) readArg() (Arg, error) {
	var a Arg
	var err error
	if a.NameIdx, err = r.readU16(); err != nil {
		return a, err
	}
	if a.TypeIdx, err = r.readU16(); err != nil {
		return a, err
	}
	a.Meta, err = r.readMeta()
	return a, err
}

func (r *Reader) readLocal() (Local, error) {
	var l Local
	var err error
	if l.NameIdx, err = r.readU16(); err != nil {
		return l, err
	}
	if l.TypeIdx, err = r.readU16(); err != nil {
		return l, err
	}
	l.Meta, err = r.readMeta()
	return l, err
}

func (r *Reader) readException() (ExceptionRecord, error) {
	var e ExceptionRecord
	var err error
	if e.StartPC, err = r.readU32(); err != nil {
		return e, err
	}
	if e.EndPC, err = r.readU32(); err != nil {
		return e, err
	}
	if e.TargetPC, err = r.readU32(); err != nil {
		return e, err
	}
	if e.ExceptionIdx, err = r.readU16(); err != nil {
		return e, err
	}
	e.Meta, err = r.readMeta()
	return e, err
}

func (r *Reader) readLines() ([]LineNumber, error) {
	n, err := r.readU16()
	if err != nil {
		return nil, err
	}
	lines := make([]LineNumber, n)
	for i := range lines {
		times, err := r.readU8()
		if err != nil {
			return nil, err
		}
		line, err := r.readU32()
		if err != nil {
			return nil, err
		}
		lines[i] = LineNumber{Times: times, Line: line}
	}
	return lines, nil
}

func (r *Reader) readMatch() (MatchRecord, error) {
	var mr MatchRecord
	caseCount, err := r.readU16()
	if err != nil {
		return mr, err
	}
	mr.Cases = make([]MatchCase, caseCount)
	for i := range mr.Cases {
		v, err := r.readU16()
		if err != nil {
			return mr, err
		}
		loc, err := r.readU32()
		if err != nil {
			return mr, err
		}
		mr.Cases[i] = MatchCase{ValueIdx: v, Location: loc}
	}
	if mr.DefaultLocation, err = r.readU32(); err != nil {
		return mr, err
	}
	mr.Meta, err = r.readMeta()
	return mr, err
}
