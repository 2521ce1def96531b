package vm

import "github.com/go-spade/spade/lang/heap"

// basicModuleName is the well-known name GETTYPE/LookupModule resolve the
// built-in types through, matching the "basic" module named in §4.6/§9.
const basicModuleName = "basic"

// basicTypeSpec is one entry of the built-in type table §4.6 and §9 name:
// any, bool, int, float, char, string, array[T], Enum, Annotation,
// Throwable. kind is KindNull (the zero Kind) for the types with no direct
// primitive-value counterpart (any, array, Enum, Annotation, Throwable),
// since BasicTypeFor is only ever consulted for the five Kinds a Go
// primitive Value actually reports.
type basicTypeSpec struct {
	name       string
	kind       heap.Kind
	primitive  bool
	typeParams []string
	kindOf     heap.ClassKind
}

var basicTypeSpecs = []basicTypeSpec{
	{name: "any", primitive: false},
	{name: "bool", kind: heap.KindBool, primitive: true},
	{name: "int", kind: heap.KindInt, primitive: true},
	{name: "float", kind: heap.KindFloat, primitive: true},
	{name: "char", kind: heap.KindChar, primitive: true},
	{name: "string", kind: heap.KindString, primitive: true},
	{name: "array", typeParams: []string{"T"}, primitive: false},
	{name: "Enum", kindOf: heap.ClassKindEnum, primitive: false},
	{name: "Annotation", kindOf: heap.ClassKindAnnotation, primitive: false},
	{name: "Throwable", primitive: false},
}

// LoadBasic installs the basic module exactly once (§4.6: "one-time basic
// module loading"): a synthetic heap.Module named "basic" holding a Type
// for each of the well-known built-ins, registered both in the module
// registry (so "basic.int" resolves through LookupModule/GINVOKE like any
// other module-qualified name) and in the VM's kind-indexed fast path
// (so BasicTypeFor, GETTYPE's hot path for primitives, never walks the
// module registry at all). Calling it more than once is a no-op: the
// second call finds the module already registered and returns immediately.
func (vm *VM) LoadBasic() error {
	vm.basicMu.Lock()
	defer vm.basicMu.Unlock()
	if len(vm.basic) > 0 {
		return nil
	}

	mod := heap.NewModule(basicModuleName)
	mod.State = heap.ModuleLoaded

	for _, spec := range basicTypeSpecs {
		sig := basicModuleName + "." + spec.name
		typ := heap.NewType(spec.kindOf, sig, spec.typeParams, nil)
		mod.Classes[spec.name] = typ
		if spec.primitive {
			vm.basic[spec.kind] = typ
		}
	}
	mod.State = heap.ModuleInitialized
	vm.RegisterModule(mod)
	return nil
}
