package heap

// MethodKind mirrors the three method natures of §3.1 (function/method/
// constructor). Defined again here rather than imported from lang/bincode
// so the heap package stays independent of the on-disk format; lang/loader
// is the only place that needs to know both.
type MethodKind uint8

const (
	MethodKindFunction MethodKind = iota
	MethodKindMethod
	MethodKindConstructor
)

// Method is the runtime counterpart of a compiled method or function
// (§3.2). Its executable body (the FrameTemplate of §3.4/§4.4) is opaque
// to this package — stored as Body — so that lang/heap never needs to
// import lang/frame; lang/frame and lang/loader, which already depend on
// lang/heap, set and read Body via a type assertion, the same handle
// indirection §9's design notes prescribe for the loader's reference pool.
type Method struct {
	Header

	Name        string
	Sig         string
	MKind       MethodKind
	AccessFlags uint16
	NumArgs     int
	Owner       *Type // nil for a free (module-level) function

	// BoundSelf, when non-nil, is installed into the new frame's locals[0]
	// by the interpreter's call path (§4.5 SPLOAD/VINVOKE/SPINVOKE "bind
	// this"): a method value produced by a super or virtual dispatch is
	// already bound to the receiver it was resolved against, so the
	// caller's own INVOKE doesn't need to know it's invoking a bound call.
	BoundSelf Value

	Body interface{}
}

func NewMethod(name, sig string, kind MethodKind, access uint16, numArgs int) *Method {
	return &Method{Name: name, Sig: sig, MKind: kind, AccessFlags: access, NumArgs: numArgs}
}

func (m *Method) Kind() Kind     { return KindMethod }
func (m *Method) String() string { return "method(" + m.Sig + ")" }

// Clone returns a shallow copy of m with a fresh Header; Body is shared
// with the original. CLOSURELOAD (§4.5) clones the frame template itself
// separately and installs it as the copy's Body.
func (m *Method) Clone() *Method {
	c := *m
	c.Header = Header{}
	return &c
}
