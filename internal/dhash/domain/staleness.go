package domain

import (
	"bytes"
	"fmt"
)

// StalenessPolicy decides which of two versions of the same key wins.
//
// IsStale reports whether existing must be replaced by incoming. It must be a
// pure function of its arguments so that every node reaches the same verdict
// for the same pair. When neither side is stale the existing copy is kept.
type StalenessPolicy interface {
	IsStale(existing, incoming Block) bool
}

// PolicyFor returns the policy for a block kind.
func PolicyFor(kind Kind) (StalenessPolicy, error) {
	switch kind {
	case KindVersioned, "":
		return VersionedPolicy{}, nil
	case KindTimestamp:
		return TimestampPolicy{}, nil
	case KindImmutable:
		return ImmutablePolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown block kind %q", kind)
	}
}

// VersionedPolicy prefers the higher version. Equal versions with different
// payloads are a conflict neither side wins.
type VersionedPolicy struct{}

func (VersionedPolicy) IsStale(existing, incoming Block) bool {
	ev, _, eerr := DecodeStamped(existing)
	iv, _, ierr := DecodeStamped(incoming)
	switch {
	case ierr != nil:
		return false
	case eerr != nil:
		return true
	default:
		return iv > ev
	}
}

// TimestampPolicy is last-writer-wins on the timestamp header. Equal
// timestamps fall back to byte order, which makes the policy a strict total
// order: for two distinct blocks exactly one is stale.
type TimestampPolicy struct{}

func (TimestampPolicy) IsStale(existing, incoming Block) bool {
	et, _, eerr := DecodeStamped(existing)
	it, _, ierr := DecodeStamped(incoming)
	switch {
	case ierr != nil:
		return false
	case eerr != nil:
		return true
	case it != et:
		return it > et
	default:
		return bytes.Compare(incoming, existing) > 0
	}
}

// ImmutablePolicy never replaces a stored block. Content-addressed blocks
// cannot legitimately differ under the same key.
type ImmutablePolicy struct{}

func (ImmutablePolicy) IsStale(existing, incoming Block) bool {
	return false
}
