package heap

import "github.com/dolthub/swiss"

// Slot is one member-table entry: a value plus its access-flag bitfield
// (§3.2). Objects and Types both use Slot for their member tables.
type Slot struct {
	Value       Value
	AccessFlags uint16
}

// SlotMap is a name-keyed member table, backed by a swiss-table hash map
// the same way the wider codebase backs its dictionary-like values, kept
// here as a name->Slot map rather than a Value->Value map because member
// tables are always keyed by a field/method name string (§3.2), not by an
// arbitrary runtime value.
type SlotMap struct {
	m *swiss.Map[string, Slot]
}

// NewSlotMap returns a member table with initial capacity for at least
// size entries.
func NewSlotMap(size int) *SlotMap {
	if size < 1 {
		size = 1
	}
	return &SlotMap{m: swiss.NewMap[string, Slot](uint32(size))}
}

// Clone copies every slot into a fresh, independent SlotMap: the operation
// an Object performs on construction when it copies its Type's member-slot
// template (§3.2).
func (s *SlotMap) Clone() *SlotMap {
	clone := NewSlotMap(s.Len())
	s.m.Iter(func(k string, v Slot) bool {
		clone.m.Put(k, v)
		return false
	})
	return clone
}

func (s *SlotMap) Get(name string) (Slot, bool) { return s.m.Get(name) }
func (s *SlotMap) Put(name string, slot Slot)    { s.m.Put(name, slot) }
func (s *SlotMap) Len() int                      { return s.m.Count() }

// Names returns every key currently present. The order is unspecified.
func (s *SlotMap) Names() []string {
	names := make([]string, 0, s.Len())
	s.m.Iter(func(k string, _ Slot) bool {
		names = append(names, k)
		return false
	})
	return names
}
