package frame

import "github.com/go-spade/spade/lang/spaderr"

// LineRun is one run of the run-length-encoded line-number table (§3.1,
// §4.4): Times consecutive bytecode bytes map to source line Line.
type LineRun struct {
	Times uint8
	Line  uint32
}

// LineTable maps a byte offset within a method's code to its source line
// (§4.4).
type LineTable []LineRun

// SourceLineFor performs a linear scan over the runs, matching §4.4's
// described lookup; the table is expected to be small enough (one run per
// contiguous statement) that a linear scan is not a bottleneck, and doing
// so avoids maintaining a second, derived offset index.
func (t LineTable) SourceLineFor(offset uint32) (uint32, error) {
	var pc uint32
	for _, run := range t {
		end := pc + uint32(run.Times)
		if offset >= pc && offset < end {
			return run.Line, nil
		}
		pc = end
	}
	return 0, spaderr.NewIllegalAccess("byte offset %d has no line mapping", offset)
}
