// Package ring implements arithmetic over the 64-bit circular identifier space.
//
// Ids carry no absolute order. Every geometric question ("is this key mine",
// "does this node sit between my predecessor and me") is answered through
// Between, directly or via Arc.
package ring

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/spaolacci/murmur3"
)

// MaxID is the largest identifier on the ring.
const MaxID = ID(math.MaxUint64)

// ID is a position on the ring [0, 2^64).
type ID uint64

func (id ID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// ParseID parses the 16 hex digit form produced by String.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ring id %q: %w", s, err)
	}
	return ID(v), nil
}

// Between reports whether n lies strictly on the clockwise arc from a to b.
//
//	a == b: the whole ring except a itself
//	a <  b: the open interval (a, b)
//	a >  b: the arc wraps through zero, (a, max] or [0, b)
func Between(a, b, n ID) bool {
	switch {
	case a == b:
		return n != a
	case a < b:
		return n > a && n < b
	default:
		return n > a || n < b
	}
}

// Responsible reports whether the node at self, whose predecessor is pred,
// owns key.
func Responsible(pred, self, key ID) bool {
	return Arc{From: pred, To: self}.Contains(key)
}

// RandomID returns a uniformly distributed id. Not suitable for anything
// security related.
func RandomID() ID {
	return ID(rand.Uint64())
}

// KeyID maps an arbitrary key onto the ring.
func KeyID(key []byte) ID {
	return ID(murmur3.Sum64(key))
}

// Arc is the clockwise half-open arc (From, To]. From == To denotes the whole ring.
type Arc struct {
	From ID `json:"from"`
	To   ID `json:"to"`
}

// FullRing covers every id.
var FullRing = Arc{From: MaxID, To: MaxID}

func (a Arc) String() string {
	return fmt.Sprintf("(%s, %s]", a.From, a.To)
}

// Full reports whether the arc covers the whole ring.
func (a Arc) Full() bool {
	return a.From == a.To
}

// Contains reports whether n is on the arc.
func (a Arc) Contains(n ID) bool {
	return n == a.To || Between(a.From, a.To, n)
}

// Spans reports whether the arc shares at least one id with the linear
// interval [lo, hi]. lo must not exceed hi.
func (a Arc) Spans(lo, hi ID) bool {
	for _, iv := range a.intervals() {
		if iv.lo <= hi && lo <= iv.hi {
			return true
		}
	}
	return false
}

// Covers reports whether every id of [lo, hi] lies on the arc.
func (a Arc) Covers(lo, hi ID) bool {
	for _, iv := range a.intervals() {
		if iv.lo <= lo && hi <= iv.hi {
			return true
		}
	}
	return false
}

// Intersect returns the arcs shared by a and b. The result holds zero, one or
// two arcs; two arcs happen when each input wraps around the other's gap.
func (a Arc) Intersect(b Arc) []Arc {
	var out []interval
	for _, x := range a.intervals() {
		for _, y := range b.intervals() {
			lo, hi := max(x.lo, y.lo), min(x.hi, y.hi)
			if lo <= hi {
				out = append(out, interval{lo: lo, hi: hi})
			}
		}
	}

	// A wrapping result comes back as [0, x] and [y, max]; stitch it into one arc.
	if len(out) > 1 {
		var head, tail *interval
		for i := range out {
			if out[i].lo == 0 {
				head = &out[i]
			}
			if out[i].hi == MaxID {
				tail = &out[i]
			}
		}
		if head != nil && tail != nil && head != tail {
			merged := Arc{From: tail.lo - 1, To: head.hi}
			arcs := []Arc{merged}
			for i := range out {
				if &out[i] != head && &out[i] != tail {
					arcs = append(arcs, out[i].arc())
				}
			}
			return arcs
		}
	}

	arcs := make([]Arc, 0, len(out))
	for _, iv := range out {
		arcs = append(arcs, iv.arc())
	}
	return arcs
}

// interval is an inclusive, non-wrapping range of ids.
type interval struct {
	lo, hi ID
}

func (iv interval) arc() Arc {
	if iv.lo == 0 && iv.hi == MaxID {
		return FullRing
	}
	return Arc{From: iv.lo - 1, To: iv.hi}
}

// intervals splits the arc into at most two linear intervals.
func (a Arc) intervals() []interval {
	switch {
	case a.From == a.To:
		return []interval{{lo: 0, hi: MaxID}}
	case a.From < a.To:
		return []interval{{lo: a.From + 1, hi: a.To}}
	default:
		ivs := make([]interval, 0, 2)
		if a.From != MaxID {
			ivs = append(ivs, interval{lo: a.From + 1, hi: MaxID})
		}
		return append(ivs, interval{lo: 0, hi: a.To})
	}
}
