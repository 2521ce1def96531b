package interp

import (
	"math"
	"math/bits"

	"github.com/go-spade/spade/lang/heap"
	"github.com/go-spade/spade/lang/spaderr"
)

// evalBinary dispatches the two-operand arithmetic/logic opcodes (§4.5).
// Numeric ops require both operands to share the same numeric kind (Int or
// Float); mixed-kind arithmetic is a Cast error rather than an implicit
// conversion, matching the explicit-cast-only rule the spec documents for
// I2F/F2I. Per the resolved Open Question on mixed-type arithmetic
// consistency, that Cast error is an ordinary fatal error here, not a
// ThrowSignal: only CCAST's own checked-cast failure is catchable, keeping
// a single uniform rule for what participates in exception unwinding.
func evalBinary(op Opcode, a, b heap.Value) (heap.Value, error) {
	switch op {
	case ADD, SUB, MUL, DIV, REM, POW:
		return numericArith(op, a, b)
	case AND, OR, XOR, SHL, SHR, USHR, ROL, ROR:
		return intBitwise(op, a, b)
	case CONCAT:
		as, ok1 := a.(heap.String)
		bs, ok2 := b.(heap.String)
		if !ok1 || !ok2 {
			return nil, spaderr.NewCast(a.Kind().String(), "string")
		}
		return as + bs, nil
	case LT, LE, EQ, NE, GE, GT:
		return heap.Bool(comparePredicate(op, heap.Compare(a, b))), nil
	case IS:
		return heap.Bool(identical(a, b)), nil
	case NIS:
		return heap.Bool(!identical(a, b)), nil
	}
	return nil, spaderr.NewIllegalAccess("unsupported binary operator %s", opSymbol(op))
}

// identical implements IS/NIS (§4.5): primitives compare by value, matching
// §8's "immutable copy identity" property (a primitive is always identical
// to any equal copy of itself); every heap-allocated kind compares by
// pointer identity, which a plain == on the interface value already gives.
func identical(a, b heap.Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case heap.KindNull, heap.KindBool, heap.KindChar, heap.KindInt, heap.KindFloat, heap.KindString:
		return heap.Equal(a, b)
	}
	return a == b
}

func numericArith(op Opcode, a, b heap.Value) (heap.Value, error) {
	if ai, ok := a.(heap.Int); ok {
		bi, ok := b.(heap.Int)
		if !ok {
			return nil, spaderr.NewCast(b.Kind().String(), "int")
		}
		return intArith(op, int64(ai), int64(bi))
	}
	if af, ok := a.(heap.Float); ok {
		bf, ok := b.(heap.Float)
		if !ok {
			return nil, spaderr.NewCast(b.Kind().String(), "float")
		}
		return floatArith(op, float64(af), float64(bf))
	}
	return nil, spaderr.NewCast(a.Kind().String(), "int or float")
}

func intArith(op Opcode, a, b int64) (heap.Value, error) {
	switch op {
	case ADD:
		return heap.Int(a + b), nil
	case SUB:
		return heap.Int(a - b), nil
	case MUL:
		return heap.Int(a * b), nil
	case DIV:
		if b == 0 {
			return nil, spaderr.NewIllegalAccess("integer division by zero")
		}
		return heap.Int(a / b), nil
	case REM:
		if b == 0 {
			return nil, spaderr.NewIllegalAccess("integer modulo by zero")
		}
		return heap.Int(a % b), nil
	case POW:
		return heap.Int(intPow(a, b)), nil
	}
	return nil, spaderr.NewIllegalAccess("unsupported int arithmetic operator %s", opSymbol(op))
}

// intPow computes a**b by exponentiation-by-squaring for b >= 0; a negative
// exponent truncates to 0 rather than raising a separate error, the same
// truncate-don't-fail spirit as integer division's truncation toward zero.
func intPow(a, b int64) int64 {
	if b < 0 {
		return 0
	}
	var result int64 = 1
	for b > 0 {
		if b&1 == 1 {
			result *= a
		}
		a *= a
		b >>= 1
	}
	return result
}

func floatArith(op Opcode, a, b float64) (heap.Value, error) {
	switch op {
	case ADD:
		return heap.Float(a + b), nil
	case SUB:
		return heap.Float(a - b), nil
	case MUL:
		return heap.Float(a * b), nil
	case DIV:
		return heap.Float(a / b), nil
	case REM:
		return heap.Float(math.Mod(a, b)), nil
	case POW:
		return heap.Float(math.Pow(a, b)), nil
	}
	return nil, spaderr.NewIllegalAccess("unsupported float arithmetic operator %s", opSymbol(op))
}

func intBitwise(op Opcode, a, b heap.Value) (heap.Value, error) {
	ai, ok := a.(heap.Int)
	if !ok {
		return nil, spaderr.NewCast(a.Kind().String(), "int")
	}
	bi, ok := b.(heap.Int)
	if !ok {
		return nil, spaderr.NewCast(b.Kind().String(), "int")
	}
	x, y := uint64(ai), uint64(bi)
	switch op {
	case AND:
		return heap.Int(x & y), nil
	case OR:
		return heap.Int(x | y), nil
	case XOR:
		return heap.Int(x ^ y), nil
	case SHL:
		return heap.Int(int64(ai) << (uint64(bi) & 63)), nil
	case SHR:
		return heap.Int(int64(ai) >> (uint64(bi) & 63)), nil
	case USHR:
		return heap.Int(x >> (uint64(bi) & 63)), nil
	case ROL:
		return heap.Int(bits.RotateLeft64(x, int(bi))), nil
	case ROR:
		return heap.Int(bits.RotateLeft64(x, -int(bi))), nil
	}
	return nil, spaderr.NewIllegalAccess("unsupported bitwise operator %s", opSymbol(op))
}

func evalUnary(op Opcode, a heap.Value) (heap.Value, error) {
	switch op {
	case NEG:
		switch v := a.(type) {
		case heap.Int:
			return -v, nil
		case heap.Float:
			return -v, nil
		}
		return nil, spaderr.NewCast(a.Kind().String(), "int or float")
	case INV:
		v, ok := a.(heap.Int)
		if !ok {
			return nil, spaderr.NewCast(a.Kind().String(), "int")
		}
		return ^v, nil
	case NOT:
		v, ok := a.(heap.Bool)
		if !ok {
			return nil, spaderr.NewCast(a.Kind().String(), "bool")
		}
		return !v, nil
	}
	return nil, spaderr.NewIllegalAccess("unsupported unary operator %s", opSymbol(op))
}
