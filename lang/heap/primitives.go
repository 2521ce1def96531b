package heap

import (
	"fmt"
	"strconv"
)

// Immutable primitive values answer Copy by returning themselves; this is
// observable only via identity (`is`) per §3.2. Go value types already give
// us this for free (Bool/Char/Int/Float/String are non-pointer Values), so
// Copy is simply the identity function at the call site — there is no
// method to override.

// Null is the singleton null value.
type Null struct{}

// NullValue is the sole Null instance.
var NullValue = Null{}

func (Null) Kind() Kind     { return KindNull }
func (Null) String() string { return "null" }

// Bool is the boolean value type.
type Bool bool

func (b Bool) Kind() Kind     { return KindBool }
func (b Bool) String() string { return strconv.FormatBool(bool(b)) }

// Char is a 32-bit Unicode code point.
type Char rune

func (c Char) Kind() Kind     { return KindChar }
func (c Char) String() string { return string(rune(c)) }

// Int is a 64-bit signed integer.
type Int int64

func (i Int) Kind() Kind     { return KindInt }
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Float is a 64-bit IEEE double. Its string form matches the host's default
// float formatting (§8 scenario 3 expects "0.250000", i.e. %f with six
// decimal digits, matching printf's %f default used by the original tool).
type Float float64

func (f Float) Kind() Kind     { return KindFloat }
func (f Float) String() string { return fmt.Sprintf("%f", float64(f)) }

// String is an immutable UTF-8 byte sequence.
type String string

func (s String) Kind() Kind     { return KindString }
func (s String) String() string { return string(s) }

// Len returns the number of bytes in s.
func (s String) Len() int { return len(s) }
