package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v3"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/port"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
	"github.com/anthanhphan/gosdk/logger"
)

var keyPrefix = []byte("b/")

// Adapter implements port.BlockStore on BadgerDB. Keys are the big-endian
// ring id behind a prefix, so iteration follows ring order.
type Adapter struct {
	db   *badgerdb.DB
	path string
}

// Ensure Adapter implements BlockStore
var _ port.BlockStore = (*Adapter)(nil)

// Open opens or creates a database under dir. An empty dir keeps everything
// in memory.
func Open(dir string, fsync bool) (*Adapter, error) {
	var opts badgerdb.Options
	if dir == "" {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		opts = badgerdb.DefaultOptions(dir).WithSyncWrites(fsync)
	}
	opts = opts.WithLogger(badgerLogger{})

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	return &Adapter{db: db, path: dir}, nil
}

func encodeKey(id ring.ID) []byte {
	k := make([]byte, len(keyPrefix)+8)
	copy(k, keyPrefix)
	binary.BigEndian.PutUint64(k[len(keyPrefix):], uint64(id))
	return k
}

func decodeKey(k []byte) (ring.ID, error) {
	if len(k) != len(keyPrefix)+8 {
		return 0, fmt.Errorf("malformed block key %x", k)
	}
	return ring.ID(binary.BigEndian.Uint64(k[len(keyPrefix):])), nil
}

func (a *Adapter) Get(ctx context.Context, id ring.ID) (domain.Block, error) {
	var val []byte
	err := a.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(encodeKey(id))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, domain.ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	return domain.Block(val), nil
}

func (a *Adapter) Put(ctx context.Context, id ring.ID, block domain.Block) error {
	return a.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(encodeKey(id), block)
	})
}

func (a *Adapter) Delete(ctx context.Context, id ring.ID) error {
	return a.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(encodeKey(id))
	})
}

// Scan walks one read transaction, so fn sees a consistent snapshot.
func (a *Adapter) Scan(ctx context.Context, fn func(id ring.ID, block domain.Block) error) error {
	return a.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			id, err := decodeKey(item.Key())
			if err != nil {
				logger.Warnw("Skipping foreign key in block store", "error", err.Error())
				continue
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read %s: %w", id, err)
			}
			if err := fn(id, domain.Block(val)); err != nil {
				return err
			}
		}
		return nil
	})
}

// RunGC reclaims value log space. Badger reports ErrNoRewrite when there is
// nothing to collect.
func (a *Adapter) RunGC(discardRatio float64) error {
	if a.path == "" {
		return nil
	}
	err := a.db.RunValueLogGC(discardRatio)
	if errors.Is(err, badgerdb.ErrNoRewrite) {
		return nil
	}
	return err
}

func (a *Adapter) Close() error {
	return a.db.Close()
}

// badgerLogger forwards badger's printf-style logging to the structured logger.
type badgerLogger struct{}

func trim(format string, args ...any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}

func (badgerLogger) Errorf(format string, args ...any) {
	logger.Errorw("badger", "msg", trim(format, args...))
}

func (badgerLogger) Warningf(format string, args ...any) {
	logger.Warnw("badger", "msg", trim(format, args...))
}

func (badgerLogger) Infof(format string, args ...any) {
	logger.Debugw("badger", "msg", trim(format, args...))
}

func (badgerLogger) Debugf(format string, args ...any) {}
