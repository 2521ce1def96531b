package frame

import (
	"github.com/dolthub/swiss"
	"github.com/go-spade/spade/lang/heap"
)

// MatchCase is one value/target pair of a match table (§3.1, §4.4).
type MatchCase struct {
	Value  heap.Value
	Target uint32
}

// MatchTable is a per-method pattern-match dispatch table (§4.4): value ->
// target pc with a default target, backed by a swiss-table hash map keyed
// by the structural hash of the case value, the same hash-map backing the
// wider codebase uses for its dictionary-like values, applied here to
// value-hash buckets rather than string keys since match cases are
// runtime heap.Values, not names.
type MatchTable struct {
	Default uint32
	buckets *swiss.Map[uint64, []MatchCase]
}

func NewMatchTable(cases []MatchCase, def uint32) *MatchTable {
	mt := &MatchTable{
		Default: def,
		buckets: swiss.NewMap[uint64, []MatchCase](uint32(len(cases) + 1)),
	}
	for _, c := range cases {
		h := hashValue(c.Value)
		bucket, _ := mt.buckets.Get(h)
		mt.buckets.Put(h, append(bucket, c))
	}
	return mt
}

// Perform returns the case target whose value compares Equal to v, or the
// default target (§4.4 "perform(value)").
func (mt *MatchTable) Perform(v heap.Value) uint32 {
	bucket, ok := mt.buckets.Get(hashValue(v))
	if ok {
		for _, c := range bucket {
			if heap.Equal(c.Value, v) {
				return c.Target
			}
		}
	}
	return mt.Default
}

// hashValue computes a hash derived from a value's structural tag (§4.4
// "Hashing is defined on the structural tag"), so that values which
// compare Equal always land in the same bucket.
func hashValue(v heap.Value) uint64 {
	const prime = 1099511628211
	h := uint64(14695981039346656037)
	mix := func(b byte) {
		h ^= uint64(b)
		h *= prime
	}
	mixStr := func(s string) {
		for i := 0; i < len(s); i++ {
			mix(s[i])
		}
	}
	mix(byte(v.Kind()))
	switch x := v.(type) {
	case heap.Null:
	case heap.Bool:
		if x {
			mix(1)
		}
	case heap.Char:
		mixStr(string(rune(x)))
	case heap.Int:
		for i := 0; i < 8; i++ {
			mix(byte(x >> (8 * i)))
		}
	case heap.Float:
		mixStr(x.String())
	case heap.String:
		mixStr(string(x))
	default:
		// Heap-allocated kinds (array, object, module, method, type,
		// capture) hash by their String() form, not by pointer identity.
		mixStr(v.String())
	}
	return h
}
