package bincode

// Const is one entry of a constant pool (§3.1). Exactly one of the typed
// fields is meaningful, selected by Tag.
type Const struct {
	Tag    ConstTag
	Char   rune
	Int    int64
	Float  float64
	String string
	Array  []Const
}

func NullConst() Const           { return Const{Tag: TagNull} }
func TrueConst() Const           { return Const{Tag: TagTrue} }
func FalseConst() Const          { return Const{Tag: TagFalse} }
func CharConst(c rune) Const     { return Const{Tag: TagChar, Char: c} }
func IntConst(i int64) Const     { return Const{Tag: TagInt, Int: i} }
func FloatConst(f float64) Const { return Const{Tag: TagFloat, Float: f} }
func StringConst(s string) Const { return Const{Tag: TagString, String: s} }
func ArrayConst(a []Const) Const { return Const{Tag: TagArray, Array: a} }

// MetaEntry is one key/value pair of a metadata table (§6.1).
type MetaEntry struct{ Key, Value string }

// Metadata is the len-prefixed (utf8,utf8) table attached to most records.
type Metadata []MetaEntry

// Arg is one formal parameter slot of a method (§3.1).
type Arg struct {
	NameIdx uint16
	TypeIdx uint16
	Meta    Metadata
}

// Local is one local-variable slot of a method (§3.1).
type Local struct {
	NameIdx uint16
	TypeIdx uint16
	Meta    Metadata
}

// ExceptionRecord is one entry of a method's exception table (§4.4, §6.1):
// an exception thrown while pc is in [StartPC, EndPC) and assignable to
// ExceptionIdx's type transfers control to TargetPC.
type ExceptionRecord struct {
	StartPC, EndPC, TargetPC uint32
	ExceptionIdx             uint16
	Meta                     Metadata
}

// LineNumber is one run of the run-length-encoded line-number table: Times
// consecutive bytecode bytes map to source line Line (§4.4, §6.1).
type LineNumber struct {
	Times uint8
	Line  uint32
}

// MatchCase is one value/target pair of a match table (§4.4, §6.1).
type MatchCase struct {
	ValueIdx uint16
	Location uint32
}

// MatchRecord is one method-local pattern-match dispatch table (§4.4).
type MatchRecord struct {
	Cases           []MatchCase
	DefaultLocation uint32
	Meta            Metadata
}

// Method is the persistent form of a function, method or constructor
// (§3.1, §6.1).
type Method struct {
	Kind         MethodKind
	AccessFlags  uint16
	NameIdx      uint16
	Args         []Arg
	ClosureStart uint16
	Locals       []Local
	StackMax     uint32
	Code         []byte
	Exceptions   []ExceptionRecord
	Lines        []LineNumber
	Matches      []MatchRecord
	Meta         Metadata
}

// Field is the persistent form of a var/const member (§3.1, §6.1).
type Field struct {
	Kind        FieldKind
	AccessFlags uint16
	NameIdx     uint16
	TypeIdx     uint16
	Meta        Metadata
}

// Class is the persistent form of a class, interface, annotation or enum
// (§3.1, §6.1).
type Class struct {
	Kind        ClassKind
	AccessFlags uint16
	NameIdx     uint16
	SupersIdx   uint16 // index into the owning pool of an array-of-signature-strings constant
	Fields      []Field
	Methods     []Method
	Meta        Metadata
}

// Global is the persistent form of a module-level variable (§3.1, §6.1).
type Global struct {
	AccessFlags uint16
	NameIdx     uint16
	TypeIdx     uint16
	Meta        Metadata
}

// Module is the persistent form of one compilation unit nested within a
// program (§3.1, §6.1), including its own constant pool and submodules.
type Module struct {
	Kind            ModuleKind
	CompiledFromIdx uint16
	NameIdx         uint16
	InitIdx         uint16
	Globals         []Global
	Methods         []Method
	Classes         []Class
	Pool            []Const
	Submodules      []Module
	Meta            Metadata
}

// Program is the root of the binary format (§3.1, §6.1): a full file's
// structural tree, as produced by Read and consumed by Write.
type Program struct {
	Magic        uint32
	MinorVersion uint32
	MajorVersion uint32
	EntryIdx     uint16 // 0 for libraries
	ImportsIdx   uint16 // index of an array constant in Pool
	Pool         []Const
	Modules      []Module
	Meta         Metadata
}

// IsExecutable reports whether the program carries an entry point.
func (p *Program) IsExecutable() bool { return p.Magic == MagicExecutable }
