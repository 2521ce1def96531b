// Package bincode implements the binary program format codec (C1, §4.1,
// §6.1): reading and writing the persistent on-disk representation of a
// compiled program into the structural tree defined in this package, and
// the inverse write path, such that write(read(p)) round-trips byte for
// byte on a well-formed file (§8's round-trip law).
//
// The primitive I/O here mirrors the shape of the original Spade project's
// ElpReader/ElpWriter (sputils/src/elpops/{reader,writer}.hpp): fixed-width
// big-endian integers built up from byte reads, not a single
// encoding/binary.Read over a fixed struct, because the on-disk layout is a
// variable-shape tree (counts precede heterogeneous records, constants
// nest recursively) that a fixed-struct decode cannot express.
package bincode

// Magic numbers identifying the program kind (§3.1, §6.1).
const (
	MagicExecutable uint32 = 0xC0FFEEDE
	MagicLibrary    uint32 = 0xDEADCAFE
)

// ConstTag identifies the kind of a constant-pool entry (§3.1).
type ConstTag uint8

const (
	TagNull   ConstTag = 0
	TagTrue   ConstTag = 1
	TagFalse  ConstTag = 2
	TagChar   ConstTag = 3
	TagInt    ConstTag = 4
	TagFloat  ConstTag = 5
	TagString ConstTag = 6
	TagArray  ConstTag = 7
)

func (t ConstTag) Valid() bool { return t <= TagArray }

// ModuleKind identifies a module's nature. The binary format defines a
// single concrete module kind today; the byte is reserved for future
// variants (e.g. a package vs. a standalone script), matching the spec's
// "kind byte" field for Module.
type ModuleKind uint8

const (
	ModuleKindDefault ModuleKind = 0
)

// ClassKind identifies a class record's nature (§3.1).
type ClassKind uint8

const (
	ClassKindClass      ClassKind = 0
	ClassKindInterface  ClassKind = 1
	ClassKindAnnotation ClassKind = 2
	ClassKindEnum       ClassKind = 3
)

func (k ClassKind) Valid() bool { return k <= ClassKindEnum }

// FieldKind identifies a field record's nature (§3.1).
type FieldKind uint8

const (
	FieldKindVar   FieldKind = 0
	FieldKindConst FieldKind = 1
)

func (k FieldKind) Valid() bool { return k <= FieldKindConst }

// MethodKind identifies a method record's nature (§3.1).
type MethodKind uint8

const (
	MethodKindFunction    MethodKind = 0
	MethodKindMethod      MethodKind = 1
	MethodKindConstructor MethodKind = 2
)

func (k MethodKind) Valid() bool { return k <= MethodKindConstructor }

// Index bounds: pool/name indices are 16-bit (§3.1); the effective pool
// size must stay below 65535 so that the zero-meaning-"absent" sentinel
// some records use (e.g. a module's entry index) remains unambiguous.
const MaxPoolSize = 0xFFFF - 1

// Access flag bits, shared across globals/fields/methods/classes.
const (
	AccessPublic    uint16 = 1 << 0
	AccessPrivate   uint16 = 1 << 1
	AccessProtected uint16 = 1 << 2
	AccessStatic    uint16 = 1 << 3
	AccessFinal     uint16 = 1 << 4
	AccessAbstract  uint16 = 1 << 5
)
