package lsm

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/config"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
)

func openAdapter(t *testing.T, dir string) *LSMAdapter {
	t.Helper()
	adapter, err := NewLSMAdapter(config.StorageConfig{DataDir: dir})
	require.NoError(t, err)
	return adapter
}

func TestLSMAdapter_PutGet(t *testing.T) {
	adapter := openAdapter(t, t.TempDir())
	defer func() { _ = adapter.Close() }()
	ctx := context.Background()

	require.NoError(t, adapter.Put(ctx, 1, domain.Block("hello world")))

	got, err := adapter.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Block("hello world"), got)

	_, err = adapter.Get(ctx, 2)
	assert.ErrorIs(t, err, domain.ErrBlockNotFound)
}

func TestLSMAdapter_OverwriteAndDelete(t *testing.T) {
	adapter := openAdapter(t, t.TempDir())
	defer func() { _ = adapter.Close() }()
	ctx := context.Background()

	require.NoError(t, adapter.Put(ctx, 1, domain.Block("v1")))
	require.NoError(t, adapter.Put(ctx, 1, domain.Block("v2")))

	got, err := adapter.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Block("v2"), got)

	require.NoError(t, adapter.Delete(ctx, 1))
	_, err = adapter.Get(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrBlockNotFound)

	assert.NoError(t, adapter.Delete(ctx, 99), "deleting an absent id is not an error")
}

func TestLSMAdapter_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	adapter1 := openAdapter(t, dir)
	require.NoError(t, adapter1.Put(ctx, 10, domain.Block("data1")))
	require.NoError(t, adapter1.Put(ctx, 20, domain.Block("data2")))
	require.NoError(t, adapter1.Put(ctx, 20, domain.Block("data2b")))
	require.NoError(t, adapter1.Put(ctx, 30, domain.Block("gone")))
	require.NoError(t, adapter1.Delete(ctx, 30))
	require.NoError(t, adapter1.Close())

	adapter2 := openAdapter(t, dir)
	defer func() { _ = adapter2.Close() }()

	got, err := adapter2.Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.Block("data1"), got)

	got, err = adapter2.Get(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, domain.Block("data2b"), got)

	_, err = adapter2.Get(ctx, 30)
	assert.ErrorIs(t, err, domain.ErrBlockNotFound)
	assert.Equal(t, 2, adapter2.Len())

	// Sequence numbers continue after replay.
	require.NoError(t, adapter2.Put(ctx, 10, domain.Block("data1b")))
	require.NoError(t, adapter2.Close())

	adapter3 := openAdapter(t, dir)
	defer func() { _ = adapter3.Close() }()
	got, err = adapter3.Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.Block("data1b"), got)
}

func TestLSMAdapter_TruncatesTornTail(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	adapter := openAdapter(t, dir)
	require.NoError(t, adapter.Put(ctx, 1, domain.Block("intact")))
	require.NoError(t, adapter.Put(ctx, 2, domain.Block("torn")))
	path := adapter.getSegmentPath(adapter.activeFileID)
	require.NoError(t, adapter.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-3))

	adapter2 := openAdapter(t, dir)
	defer func() { _ = adapter2.Close() }()

	got, err := adapter2.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Block("intact"), got)
	_, err = adapter2.Get(ctx, 2)
	assert.ErrorIs(t, err, domain.ErrBlockNotFound)

	// The store keeps accepting writes after the tail is cut.
	require.NoError(t, adapter2.Put(ctx, 3, domain.Block("after")))
	got, err = adapter2.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.Block("after"), got)
}

func TestLSMAdapter_CorruptRecordIsRejected(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	adapter := openAdapter(t, dir)
	require.NoError(t, adapter.Put(ctx, 1, domain.Block("first")))
	require.NoError(t, adapter.Put(ctx, 2, domain.Block("second")))
	path := adapter.getSegmentPath(adapter.activeFileID)
	second := adapter.index[2]
	require.NoError(t, adapter.Close())

	// Flip one payload byte of the second record.
	f, err := os.OpenFile(path, os.O_RDWR, 0600)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{'X'}, second.Offset+headerSize)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	adapter2 := openAdapter(t, dir)
	defer func() { _ = adapter2.Close() }()
	assert.Equal(t, 1, adapter2.Len())
}

func TestLSMAdapter_Scan(t *testing.T) {
	adapter := openAdapter(t, t.TempDir())
	defer func() { _ = adapter.Close() }()
	ctx := context.Background()

	for _, id := range []ring.ID{30, 10, 20} {
		require.NoError(t, adapter.Put(ctx, id, domain.Block(fmt.Sprintf("v%d", id))))
	}

	var seen []ring.ID
	require.NoError(t, adapter.Scan(ctx, func(id ring.ID, block domain.Block) error {
		seen = append(seen, id)
		assert.Equal(t, domain.Block(fmt.Sprintf("v%d", id)), block)
		return nil
	}))
	assert.Equal(t, []ring.ID{10, 20, 30}, seen)

	stop := fmt.Errorf("stop")
	err := adapter.Scan(ctx, func(ring.ID, domain.Block) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestLSMAdapter_Segmentation(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	adapter := openAdapter(t, dir)
	adapter.maxSegmentSize = 100

	for i := 0; i < 10; i++ {
		require.NoError(t, adapter.Put(ctx, ring.ID(i), domain.Block(fmt.Sprintf("data-block-content-%d", i))))
	}

	ids, err := adapter.segmentIDs(dir)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(ids), 2)

	for i := 0; i < 10; i++ {
		got, err := adapter.Get(ctx, ring.ID(i))
		require.NoError(t, err)
		assert.Equal(t, domain.Block(fmt.Sprintf("data-block-content-%d", i)), got)
	}
	require.NoError(t, adapter.Close())

	adapter2 := openAdapter(t, dir)
	defer func() { _ = adapter2.Close() }()
	assert.Equal(t, 10, adapter2.Len())
}

func TestLSMAdapter_Compact(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	adapter := openAdapter(t, dir)
	adapter.maxSegmentSize = 100

	for i := 0; i < 10; i++ {
		require.NoError(t, adapter.Put(ctx, ring.ID(i), domain.Block(fmt.Sprintf("old-%d", i))))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, adapter.Put(ctx, ring.ID(i), domain.Block(fmt.Sprintf("new-%d", i))))
	}
	for i := 8; i < 10; i++ {
		require.NoError(t, adapter.Delete(ctx, ring.ID(i)))
	}

	before, err := adapter.segmentIDs(dir)
	require.NoError(t, err)

	require.NoError(t, adapter.Compact())

	after, err := adapter.segmentIDs(dir)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	check := func(a *LSMAdapter) {
		assert.Equal(t, 8, a.Len())
		for i := 0; i < 8; i++ {
			want := fmt.Sprintf("old-%d", i)
			if i < 5 {
				want = fmt.Sprintf("new-%d", i)
			}
			got, err := a.Get(ctx, ring.ID(i))
			require.NoError(t, err)
			assert.Equal(t, domain.Block(want), got)
		}
		for i := 8; i < 10; i++ {
			_, err := a.Get(ctx, ring.ID(i))
			assert.ErrorIs(t, err, domain.ErrBlockNotFound)
		}
	}
	check(adapter)

	// Writes after compaction land in a fresh segment and survive replay.
	require.NoError(t, adapter.Put(ctx, 0, domain.Block("new-0")))
	require.NoError(t, adapter.Close())

	adapter2 := openAdapter(t, dir)
	defer func() { _ = adapter2.Close() }()
	check(adapter2)
}

func TestLSMAdapter_ClosedRejectsWrites(t *testing.T) {
	adapter := openAdapter(t, t.TempDir())
	require.NoError(t, adapter.Close())

	assert.ErrorIs(t, adapter.Put(context.Background(), 1, domain.Block("x")), errClosed)
	assert.ErrorIs(t, adapter.Compact(), errClosed)
}
