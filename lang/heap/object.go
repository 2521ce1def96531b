package heap

import "fmt"

// Object is an instance of a Type: a type pointer plus a member table
// (§3.2). The per-type template is shared; each Object copies it on
// construction so subsequent writes to one instance never leak to another.
type Object struct {
	Header
	Members *SlotMap
}

// NewObject constructs an instance of typ, copying its member-slot
// template (§3.2 "on construction, an object copies the type's
// member_slots map").
func NewObject(typ *Type) *Object {
	o := &Object{Members: typ.Members.Clone()}
	o.typ = typ
	return o
}

func (o *Object) Kind() Kind { return KindObject }
func (o *Object) String() string {
	if o.typ != nil {
		return fmt.Sprintf("%s(%p)", o.typ.Sig, o)
	}
	return fmt.Sprintf("object(%p)", o)
}

// GetMember reads a member slot by name. Reading an unset member is
// IllegalAccess (§7); "unset" here means the name is absent from the
// member table entirely, not merely null-valued.
func (o *Object) GetMember(name string) (Slot, bool) { return o.Members.Get(name) }

// SetMember overwrites an existing slot or creates a new one (§3.2).
func (o *Object) SetMember(name string, v Value, access uint16) {
	o.Members.Put(name, Slot{Value: v, AccessFlags: access})
}
