package interp

import "github.com/go-spade/spade/lang/token"

// opTokens maps the opcodes that implement a binary/unary/compare
// operator onto the token.Token naming that same operator, so an error
// message can quote the operator's symbol ("+", "<=") instead of its
// opcode mnemonic ("add", "jle"). CONCAT, IS, NIS and the ISNULL family
// have no token.Token counterpart: the original operator set token.go
// mirrors never named them.
var opTokens = map[Opcode]token.Token{
	ADD: token.ADD, SUB: token.SUB, MUL: token.MUL, DIV: token.DIV, REM: token.REM, POW: token.POW,
	AND: token.AND, OR: token.OR, XOR: token.XOR, SHL: token.SHL, SHR: token.SHR, USHR: token.USHR,
	ROL: token.ROL, ROR: token.ROR,
	NEG: token.NEG, INV: token.INV, NOT: token.NOT,
	LT: token.LT, LE: token.LE, GT: token.GT, GE: token.GE, EQ: token.EQL, NE: token.NEQ,
}

// opSymbol quotes op's operator symbol for an error message via
// opTokens, falling back to op's own mnemonic for an opcode with no
// token.Token counterpart.
func opSymbol(op Opcode) string {
	if tok, ok := opTokens[op]; ok {
		return tok.GoString()
	}
	return op.String()
}
