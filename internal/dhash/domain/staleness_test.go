package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStampedRoundTrip(t *testing.T) {
	b := EncodeStamped(42, []byte("hello"))
	stamp, payload, err := DecodeStamped(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), stamp)
	assert.Equal(t, []byte("hello"), payload)

	_, _, err = DecodeStamped(Block("short"))
	assert.ErrorIs(t, err, ErrInvalidBlock)
}

func TestVersionedPolicy(t *testing.T) {
	p := VersionedPolicy{}
	v1 := EncodeStamped(1, []byte("a"))
	v2 := EncodeStamped(2, []byte("b"))
	v2other := EncodeStamped(2, []byte("c"))

	assert.True(t, p.IsStale(v1, v2))
	assert.False(t, p.IsStale(v2, v1))
	assert.False(t, p.IsStale(v2, v2other), "equal versions: keep existing")
	assert.False(t, p.IsStale(v2other, v2), "equal versions: keep existing")
	assert.False(t, p.IsStale(v2, v2))

	assert.True(t, p.IsStale(Block("x"), v1), "garbage loses to a decodable block")
	assert.False(t, p.IsStale(v1, Block("x")))
}

func TestTimestampPolicy_StrictTotalOrder(t *testing.T) {
	p := TimestampPolicy{}
	blocks := []Block{
		EncodeStamped(10, []byte("a")),
		EncodeStamped(10, []byte("b")),
		EncodeStamped(11, []byte("a")),
		EncodeStamped(9, []byte("z")),
	}

	for i, x := range blocks {
		for j, y := range blocks {
			if i == j {
				assert.False(t, p.IsStale(x, y))
				continue
			}
			// exactly one direction wins
			assert.NotEqual(t, p.IsStale(x, y), p.IsStale(y, x), "pair %d,%d", i, j)
		}
	}
}

// The verdict for a fixed pair does not depend on which node asks.
func TestPolicies_Deterministic(t *testing.T) {
	older := EncodeStamped(3, []byte("old"))
	newer := EncodeStamped(4, []byte("new"))

	for _, kind := range []Kind{KindVersioned, KindTimestamp, KindImmutable} {
		p1, err := PolicyFor(kind)
		require.NoError(t, err)
		p2, err := PolicyFor(kind)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			assert.Equal(t, p1.IsStale(older, newer), p2.IsStale(older, newer), string(kind))
			assert.Equal(t, p1.IsStale(newer, older), p2.IsStale(newer, older), string(kind))
		}
	}
}

func TestImmutablePolicy(t *testing.T) {
	p := ImmutablePolicy{}
	assert.False(t, p.IsStale(Block("a"), Block("b")))
}

func TestPolicyFor_Unknown(t *testing.T) {
	_, err := PolicyFor("lww-vector")
	assert.Error(t, err)
}
