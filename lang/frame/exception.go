package frame

import "github.com/go-spade/spade/lang/heap"

// ExceptionEntry is one record of a method's exception table (§3.1, §4.4):
// a thrown value assignable to Type transfers control to TargetPC when the
// throwing pc falls in [FromPC, ToPC).
type ExceptionEntry struct {
	FromPC, ToPC, TargetPC uint32
	Type                   *heap.Type
}

// ExceptionTable is the ordered list of ExceptionEntry searched top-down
// on THROW (§4.4, §4.5).
type ExceptionTable []ExceptionEntry

// GetTarget returns the first record whose range contains pc and whose
// type equals or is a supertype of thrown (equality-by-identity is
// acceptable for the MVP per §4.4; true subtype matching uses
// heap.Type.IsSubtypeOf).
func (t ExceptionTable) GetTarget(pc uint32, thrown *heap.Type) (uint32, bool) {
	for _, e := range t {
		if pc < e.FromPC || pc >= e.ToPC {
			continue
		}
		if e.Type == nil {
			// A nil type entry is a catch-all, matching any thrown value.
			return e.TargetPC, true
		}
		if thrown == e.Type || (thrown != nil && thrown.IsSubtypeOf(e.Type.Sig)) {
			return e.TargetPC, true
		}
	}
	return 0, false
}
