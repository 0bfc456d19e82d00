package domain

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/anthanhphan/go-dhash-replication/pkg/merkle"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
)

// MaxBlockSize bounds a single block value.
const MaxBlockSize = 8 * 1024 * 1024

// stampLen is the size of the version or timestamp header of stamped blocks.
const stampLen = 8

// Block is an opaque value stored under a ring id. Only staleness policies
// look inside it.
type Block []byte

// Digest returns the digest recorded in the Merkle index for the block.
func (b Block) Digest() merkle.Digest {
	return merkle.HashBlock(b)
}

// Equal reports whether two blocks carry identical bytes.
func (b Block) Equal(other Block) bool {
	return bytes.Equal(b, other)
}

// Kind selects how blocks of a store are encoded and which staleness policy
// applies to them.
type Kind string

const (
	// KindVersioned blocks carry an 8-byte big-endian version header.
	KindVersioned Kind = "versioned"
	// KindTimestamp blocks carry an 8-byte big-endian unix-nano timestamp header.
	KindTimestamp Kind = "timestamp"
	// KindImmutable blocks are content addressed: their key is the ring id of
	// their bytes.
	KindImmutable Kind = "immutable"
)

// EncodeStamped prefixes payload with an 8-byte stamp.
func EncodeStamped(stamp uint64, payload []byte) Block {
	b := make(Block, stampLen+len(payload))
	binary.BigEndian.PutUint64(b[:stampLen], stamp)
	copy(b[stampLen:], payload)
	return b
}

// DecodeStamped splits a stamped block into its stamp and payload.
func DecodeStamped(b Block) (uint64, []byte, error) {
	if len(b) < stampLen {
		return 0, nil, fmt.Errorf("%w: %d bytes is shorter than the stamp header", ErrInvalidBlock, len(b))
	}
	return binary.BigEndian.Uint64(b[:stampLen]), b[stampLen:], nil
}

// ImmutableKey is the key a content-addressed block must be stored under.
func ImmutableKey(b Block) ring.ID {
	return ring.KeyID(b)
}
