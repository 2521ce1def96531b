// Package interp implements the dispatch loop (C5): the bytecode
// instruction set, the stack-based interpreter that executes a
// frame.FrameTemplate, exception unwinding, closure capture, and the
// foreign-call ABI types.
package interp

import "fmt"

// Opcode is a single instruction's operation code (§4.5, §6.1): a
// single byte optionally followed by a 1- or 2-byte operand.
type Opcode uint8

// Every opcode that carries an index-shaped operand (a constant-pool
// reference, a local/arg/global slot number, or a match-table index) has
// two forms: the plain form reads a 2-byte operand, its "F" ("fast")
// counterpart reads 1 byte. This generalizes the loader's "every optional
// 16-bit index field" convention (lang/loader/verify.go) to the
// instruction encoding: the emitter (out of scope here) picks the fast
// form when the index fits in 8 bits, but semantics are identical — only
// operandBytes below differs between the two.
//
// Count-shaped operands (NPOP, NDUP, ARRPACK, ARRBUILD, and the trailing
// argument count on every INVOKE variant) are always a single byte: they
// count stack slots, not pool or slot indices, and in practice never need
// more than 8 bits. Jump-shaped operands (JMP and friends, CALLSUB) are
// always a fixed signed 2-byte relative offset, regardless of fast/slow
// variants, since a narrower encoding would limit jump range for no
// benefit (unlike an index, an offset isn't usually small).
const ( //nolint:revive
	NOP Opcode = iota

	// stack
	CONST
	CONSTF
	CONSTNULL
	CONSTTRUE
	CONSTFALSE
	POP
	NPOP
	DUP
	NDUP

	// globals/locals/args/members
	GLOAD
	GLOADF
	GSTORE
	GSTOREF
	PGSTORE
	PGSTOREF
	LLOAD
	LLOADF
	LSTORE
	LSTOREF
	PLSTORE
	PLSTOREF
	ALOAD
	ALOADF
	ASTORE
	ASTOREF
	PASTORE
	PASTOREF
	MLOAD
	MLOADF
	MSTORE
	MSTOREF
	PMSTORE
	PMSTOREF

	// super call binding
	SPLOAD
	SPLOADF

	// arrays
	ARRPACK
	ARRUNPACK
	ARRBUILD
	ILOAD
	ISTORE
	PISTORE
	ARRLEN

	// call
	INVOKE
	VINVOKE
	VINVOKEF
	GINVOKE
	GINVOKEF
	LINVOKE
	LINVOKEF
	AINVOKE
	AINVOKEF
	SPINVOKE
	SPINVOKEF
	CALLSUB
	RETSUB

	// jumps
	JMP
	JT
	JF
	JLT
	JLE
	JEQ
	JNE
	JGE
	JGT

	// arithmetic/logic
	ADD
	SUB
	MUL
	DIV
	REM
	POW
	NEG
	AND
	OR
	XOR
	SHL
	SHR
	USHR
	ROL
	ROR
	INV
	NOT
	CONCAT
	LT
	LE
	EQ
	NE
	GE
	GT
	IS
	NIS
	ISNULL
	NISNULL

	// type ops
	GETTYPE
	SCAST
	SCASTF
	CCAST
	CCASTF
	I2F
	F2I
	I2B
	B2I
	O2B
	O2S

	// monitors
	ENTERMONITOR
	EXITMONITOR

	// misc
	MTPERF
	MTPERFF
	CLOSURELOAD
	OBJLOAD
	THROW
	RET
	VRET
	PRINTLN

	opcodeMax
)

var opcodeNames = [...]string{
	NOP: "nop",

	CONST: "const", CONSTF: "constf",
	CONSTNULL: "const_null", CONSTTRUE: "const_true", CONSTFALSE: "const_false",
	POP: "pop", NPOP: "npop", DUP: "dup", NDUP: "ndup",

	GLOAD: "gload", GLOADF: "gloadf",
	GSTORE: "gstore", GSTOREF: "gstoref",
	PGSTORE: "pgstore", PGSTOREF: "pgstoref",
	LLOAD: "lload", LLOADF: "lloadf",
	LSTORE: "lstore", LSTOREF: "lstoref",
	PLSTORE: "plstore", PLSTOREF: "plstoref",
	ALOAD: "aload", ALOADF: "aloadf",
	ASTORE: "astore", ASTOREF: "astoref",
	PASTORE: "pastore", PASTOREF: "pastoref",
	MLOAD: "mload", MLOADF: "mloadf",
	MSTORE: "mstore", MSTOREF: "mstoref",
	PMSTORE: "pmstore", PMSTOREF: "pmstoref",

	SPLOAD: "spload", SPLOADF: "sploadf",

	ARRPACK: "arrpack", ARRUNPACK: "arrunpack", ARRBUILD: "arrbuild",
	ILOAD: "iload", ISTORE: "istore", PISTORE: "pistore", ARRLEN: "arrlen",

	INVOKE: "invoke",
	VINVOKE: "vinvoke", VINVOKEF: "vinvokef",
	GINVOKE: "ginvoke", GINVOKEF: "ginvokef",
	LINVOKE: "linvoke", LINVOKEF: "linvokef",
	AINVOKE: "ainvoke", AINVOKEF: "ainvokef",
	SPINVOKE: "spinvoke", SPINVOKEF: "spinvokef",
	CALLSUB: "callsub", RETSUB: "retsub",

	JMP: "jmp", JT: "jt", JF: "jf",
	JLT: "jlt", JLE: "jle", JEQ: "jeq", JNE: "jne", JGE: "jge", JGT: "jgt",

	ADD: "add", SUB: "sub", MUL: "mul", DIV: "div", REM: "rem", POW: "pow", NEG: "neg",
	AND: "and", OR: "or", XOR: "xor", SHL: "shl", SHR: "shr", USHR: "ushr",
	ROL: "rol", ROR: "ror", INV: "inv", NOT: "not", CONCAT: "concat",
	LT: "lt", LE: "le", EQ: "eq", NE: "ne", GE: "ge", GT: "gt",
	IS: "is", NIS: "nis", ISNULL: "isnull", NISNULL: "nisnull",

	GETTYPE: "gettype",
	SCAST:   "scast", SCASTF: "scastf",
	CCAST: "ccast", CCASTF: "ccastf",
	I2F: "i2f", F2I: "f2i", I2B: "i2b", B2I: "b2i", O2B: "o2b", O2S: "o2s",

	ENTERMONITOR: "entermonitor", EXITMONITOR: "exitmonitor",

	MTPERF: "mtperf", MTPERFF: "mtperff",
	CLOSURELOAD: "closureload",
	OBJLOAD:     "objload",
	THROW:       "throw",
	RET:         "ret",
	VRET:        "vret",
	PRINTLN:     "println",
}

func (op Opcode) String() string {
	if op < opcodeMax {
		if name := opcodeNames[op]; name != "" {
			return name
		}
	}
	return fmt.Sprintf("illegal op (%d)", op)
}

// closureLoadWidth is the sentinel operandBytes returns for CLOSURELOAD,
// whose operand is a variable-length record list (§4.5) rather than a
// fixed-width field; the dispatch loop parses it directly from the code
// stream instead of through the generic operand reader.
const closureLoadWidth = -1

// operandBytes reports how many bytes follow op's opcode byte, or
// closureLoadWidth for the one variable-length instruction.
func operandBytes(op Opcode) int {
	switch op {
	case NOP,
		CONSTNULL, CONSTTRUE, CONSTFALSE, POP, DUP,
		ARRUNPACK, ILOAD, ISTORE, PISTORE, ARRLEN,
		RETSUB,
		ADD, SUB, MUL, DIV, REM, POW, NEG,
		AND, OR, XOR, SHL, SHR, USHR, ROL, ROR, INV, NOT, CONCAT,
		LT, LE, EQ, NE, GE, GT, IS, NIS, ISNULL, NISNULL,
		GETTYPE, I2F, F2I, I2B, B2I, O2B, O2S,
		ENTERMONITOR, EXITMONITOR,
		OBJLOAD, THROW, RET, VRET, PRINTLN:
		return 0

	case CONSTF, NPOP, NDUP,
		GLOADF, GSTOREF, PGSTOREF,
		LLOADF, LSTOREF, PLSTOREF,
		ALOADF, ASTOREF, PASTOREF,
		MLOADF, MSTOREF, PMSTOREF,
		SPLOADF,
		ARRPACK, ARRBUILD,
		INVOKE,
		SCASTF, CCASTF,
		MTPERFF:
		return 1

	case CONST,
		GLOAD, GSTORE, PGSTORE,
		LLOAD, LSTORE, PLSTORE,
		ALOAD, ASTORE, PASTORE,
		MLOAD, MSTORE, PMSTORE,
		SPLOAD,
		VINVOKEF, GINVOKEF, LINVOKEF, AINVOKEF, SPINVOKEF,
		JMP, JT, JF, JLT, JLE, JEQ, JNE, JGE, JGT,
		CALLSUB,
		SCAST, CCAST,
		MTPERF:
		return 2

	case VINVOKE, GINVOKE, LINVOKE, AINVOKE, SPINVOKE:
		return 3

	case CLOSURELOAD:
		return closureLoadWidth
	}
	return 0
}

func be16(b []byte) uint32 { return uint32(b[0])<<8 | uint32(b[1]) }
