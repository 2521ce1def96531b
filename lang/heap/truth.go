package heap

// Truth implements the truth table of §4.2: null is always false; bool is
// itself; char/int/float are false only at their zero value; string and
// array are false only when empty; every other heap value (object,
// module, method, type, capture) is true.
func Truth(v Value) bool {
	switch x := v.(type) {
	case Null:
		return false
	case Bool:
		return bool(x)
	case Char:
		return x != 0
	case Int:
		return x != 0
	case Float:
		return x != 0
	case String:
		return len(x) != 0
	case *Array:
		return x.Len() != 0
	}
	return true
}
