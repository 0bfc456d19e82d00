package redisstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "test:"), mr
}

func TestStore_PutGetDelete(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, 7)
	assert.ErrorIs(t, err, domain.ErrBlockNotFound)

	block := domain.EncodeStamped(1, []byte{0, 1, 2, 0xff})
	require.NoError(t, s.Put(ctx, 7, block))
	got, err := s.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, block, got)
	assert.True(t, mr.Exists("test:"+ring.ID(7).String()))

	require.NoError(t, s.Delete(ctx, 7))
	_, err = s.Get(ctx, 7)
	assert.ErrorIs(t, err, domain.ErrBlockNotFound)
	assert.NoError(t, s.Delete(ctx, 7))
}

func TestStore_ScanRingOrderAcrossPages(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	const n = scanPage + 37
	for i := n - 1; i >= 0; i-- {
		id := ring.ID(uint64(i) << 50)
		require.NoError(t, s.Put(ctx, id, domain.Block(fmt.Sprint(i))))
	}

	var seen []ring.ID
	require.NoError(t, s.Scan(ctx, func(id ring.ID, block domain.Block) error {
		seen = append(seen, id)
		assert.Equal(t, domain.Block(fmt.Sprint(uint64(id)>>50)), block)
		return nil
	}))
	require.Len(t, seen, n)
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1], seen[i])
	}
}

func TestStore_Unavailable(t *testing.T) {
	s, mr := newStore(t)
	mr.Close()

	err := s.Put(context.Background(), 1, domain.Block("x"))
	assert.Error(t, err)
	_, err = s.Get(context.Background(), 1)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrBlockNotFound)
}
