// Package sig implements the fully-qualified signature grammar of §3.3/§6.3:
// structured names for modules, classes, methods and parameters. Signatures
// are parsed and compared structurally rather than by raw string equality,
// though string equality of two signature's String() forms always implies
// structural equality.
//
// The parser is a small hand-rolled recursive-descent scan over the input
// string, one byte at a time (peek/accept), in the same cursor style as
// a hand-written lexer would use, scaled down to this grammar's needs.
package sig

import (
	"fmt"
	"strings"
)

// ClassRef is one `.Class[Tparams]` segment of a signature.
type ClassRef struct {
	Name       string
	TypeParams []string
}

func (c ClassRef) String() string {
	if len(c.TypeParams) == 0 {
		return c.Name
	}
	return c.Name + "`" + strings.Join(c.TypeParams, ",") + "`"
}

func (c ClassRef) equal(o ClassRef) bool {
	return c.Name == o.Name && equalStrings(c.TypeParams, o.TypeParams)
}

// MethodRef is the trailing `.method[Tparams](params)` segment of a
// signature, when present.
type MethodRef struct {
	Name       string
	TypeParams []string
	Params     []Signature
}

func (m MethodRef) String() string {
	var b strings.Builder
	b.WriteString(m.Name)
	if len(m.TypeParams) > 0 {
		b.WriteString("`")
		b.WriteString(strings.Join(m.TypeParams, ","))
		b.WriteString("`")
	}
	b.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	return b.String()
}

func (m MethodRef) equal(o MethodRef) bool {
	if m.Name != o.Name || !equalStrings(m.TypeParams, o.TypeParams) || len(m.Params) != len(o.Params) {
		return false
	}
	for i := range m.Params {
		if !m.Params[i].Equal(o.Params[i]) {
			return false
		}
	}
	return true
}

// A Signature is the structured form of a fully-qualified name: either a bare
// type-parameter reference (`[T]`), or a module path followed by zero or more
// class segments and an optional trailing method segment.
type Signature struct {
	// TypeParam holds the parameter name when this signature is a bare `[T]`
	// reference; when non-empty, every other field is zero.
	TypeParam string

	// Modules are the `::`-separated module path segments; may be empty (the
	// signature then names only classes/methods in the current module).
	Modules []string

	Classes []ClassRef

	// Method is set when the signature ends in a `.method(...)` segment.
	Method *MethodRef
}

// String renders the signature back to its canonical textual form.
func (s Signature) String() string {
	if s.TypeParam != "" {
		return "[" + s.TypeParam + "]"
	}
	var b strings.Builder
	b.WriteString(strings.Join(s.Modules, "::"))
	for _, c := range s.Classes {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(c.String())
	}
	if s.Method != nil {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.Method.String())
	}
	return b.String()
}

// Equal reports structural equality, not merely that the two signatures print
// the same string (though identical strings always imply Equal).
func (s Signature) Equal(o Signature) bool {
	if s.TypeParam != "" || o.TypeParam != "" {
		return s.TypeParam == o.TypeParam
	}
	if !equalStrings(s.Modules, o.Modules) || len(s.Classes) != len(o.Classes) {
		return false
	}
	for i := range s.Classes {
		if !s.Classes[i].equal(o.Classes[i]) {
			return false
		}
	}
	if (s.Method == nil) != (o.Method == nil) {
		return false
	}
	if s.Method != nil && !s.Method.equal(*o.Method) {
		return false
	}
	return true
}

// Compose appends a class reference, returning a new Signature rooted at s
// (the current scope), used by the loader when building the
// fully-qualified name of a class (§4.3 step 3-6).
func (s Signature) Compose(class string, typeParams []string) Signature {
	ns := s
	ns.Classes = append(append([]ClassRef(nil), s.Classes...), ClassRef{Name: class, TypeParams: typeParams})
	return ns
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Parse parses the textual signature grammar of §6.3 into a structured
// Signature. An empty string is a valid signature denoting "no name".
func Parse(s string) (Signature, error) {
	p := &parser{s: s}
	if p.peek() == 0 {
		return Signature{}, nil
	}
	if p.accept('[') {
		id := p.ident()
		if id == "" {
			return Signature{}, p.errorf("expected type parameter name")
		}
		if !p.accept(']') {
			return Signature{}, p.errorf("expected ']'")
		}
		if p.peek() != 0 {
			return Signature{}, p.errorf("unexpected trailing input after type parameter")
		}
		return Signature{TypeParam: id}, nil
	}

	sg, err := p.signature()
	if err != nil {
		return Signature{}, err
	}
	if p.peek() != 0 {
		return Signature{}, p.errorf("unexpected trailing input %q", p.s[p.i:])
	}
	return sg, nil
}

// parser is the cursor over the signature text.
type parser struct {
	s string
	i int
}

func (p *parser) peek() byte {
	if p.i >= len(p.s) {
		return 0
	}
	return p.s[p.i]
}

func (p *parser) accept(b byte) bool {
	if p.peek() == b {
		p.i++
		return true
	}
	return false
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("sig: %s (at offset %d in %q)", fmt.Sprintf(format, args...), p.i, p.s)
}

func isIdentByte(b byte, first bool) bool {
	if b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b == '_' {
		return true
	}
	if !first && b >= '0' && b <= '9' {
		return true
	}
	return false
}

func (p *parser) ident() string {
	start := p.i
	for p.i < len(p.s) && isIdentByte(p.s[p.i], p.i == start) {
		p.i++
	}
	return p.s[start:p.i]
}

// signature parses: module ("." class_or_method)*
func (p *parser) signature() (Signature, error) {
	var sg Signature
	sg.Modules = p.modulePath()

	for p.peek() == '.' {
		p.i++
		name := p.ident()
		if name == "" {
			return Signature{}, p.errorf("expected class or method name after '.'")
		}
		typeParams, err := p.optTypeParams()
		if err != nil {
			return Signature{}, err
		}
		if p.accept('(') {
			params, err := p.params()
			if err != nil {
				return Signature{}, err
			}
			if !p.accept(')') {
				return Signature{}, p.errorf("expected ')'")
			}
			sg.Method = &MethodRef{Name: name, TypeParams: typeParams, Params: params}
			break // method must be the last segment
		}
		sg.Classes = append(sg.Classes, ClassRef{Name: name, TypeParams: typeParams})
	}
	return sg, nil
}

// modulePath parses: (id ("::" id)*)?
func (p *parser) modulePath() []string {
	var mods []string
	id := p.ident()
	if id == "" {
		return nil
	}
	mods = append(mods, id)
	for p.i+1 < len(p.s) && p.s[p.i] == ':' && p.s[p.i+1] == ':' {
		p.i += 2
		next := p.ident()
		if next == "" {
			break
		}
		mods = append(mods, next)
	}
	return mods
}

// optTypeParams parses an optional `Tparams` = "`" id ("," id)* "`" suffix.
// The grammar in §6.3 writes this as "[id (',' id)*]" for typeparams, but the
// disambiguating delimiter used on the wire (and by String above) is a
// backtick pair, since '[' is already used for the bare type-parameter atom;
// only the backtick form is accepted here.
func (p *parser) optTypeParams() ([]string, error) {
	if !p.accept('`') {
		return nil, nil
	}
	var params []string
	for {
		id := p.ident()
		if id == "" {
			return nil, p.errorf("expected type parameter name")
		}
		params = append(params, id)
		if p.accept(',') {
			continue
		}
		break
	}
	if !p.accept('`') {
		return nil, p.errorf("expected '`' to close type parameters")
	}
	return params, nil
}

// params parses: param ("," param)*
// param = "[" id "]" | module ("." class)+ ("(" params? ")")?
func (p *parser) params() ([]Signature, error) {
	var params []Signature
	if p.peek() == ')' {
		return nil, nil
	}
	for {
		param, err := p.param()
		if err != nil {
			return nil, err
		}
		params = append(params, param)
		if p.accept(',') {
			continue
		}
		break
	}
	return params, nil
}

func (p *parser) param() (Signature, error) {
	if p.accept('[') {
		id := p.ident()
		if id == "" {
			return Signature{}, p.errorf("expected type parameter name")
		}
		if !p.accept(']') {
			return Signature{}, p.errorf("expected ']'")
		}
		return Signature{TypeParam: id}, nil
	}
	return p.signature()
}
