package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/pkg/merkle"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
	"github.com/anthanhphan/gosdk/logger"
)

const lockStripes = 64

// blockOpsService owns every local mutation: it applies the staleness policy
// and keeps the Merkle index in step with the store.
type blockOpsService struct {
	core  *ReplicatedService
	locks [lockStripes]sync.Mutex
}

func newBlockOpsService(core *ReplicatedService) *blockOpsService {
	return &blockOpsService{core: core}
}

func (s *blockOpsService) lockFor(id ring.ID) *sync.Mutex {
	return &s.locks[uint64(id)%lockStripes]
}

// store accepts block unless the stored copy supersedes it.
func (s *blockOpsService) store(ctx context.Context, id ring.ID, block domain.Block) error {
	if err := s.validate(id, block); err != nil {
		storeTotal.WithLabelValues("invalid").Inc()
		return err
	}

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.core.store.Get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrBlockNotFound):
	case err != nil:
		storeTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: read %s: %w", domain.ErrLocalStorage, id, err)
	case existing.Equal(block):
		// Keeps the index honest if it lost the entry.
		s.core.index.Update(id, block.Digest())
		storeTotal.WithLabelValues("identical").Inc()
		return nil
	case !s.core.policy.IsStale(existing, block):
		storeTotal.WithLabelValues("stale").Inc()
		return fmt.Errorf("%w: %s", domain.ErrStaleBlock, id)
	}

	if err := s.core.store.Put(ctx, id, block); err != nil {
		storeTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: write %s: %w", domain.ErrLocalStorage, id, err)
	}
	s.core.index.Update(id, block.Digest())
	s.observe(block)
	storeTotal.WithLabelValues("stored").Inc()

	logger.Debugw("Block stored", "key", id.String(), "size", len(block))
	return nil
}

func (s *blockOpsService) validate(id ring.ID, block domain.Block) error {
	if len(block) > domain.MaxBlockSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", domain.ErrInvalidBlock, len(block), domain.MaxBlockSize)
	}
	switch s.core.kind {
	case domain.KindImmutable:
		if want := domain.ImmutableKey(block); want != id {
			return fmt.Errorf("%w: content key is %s, not %s", domain.ErrInvalidBlock, want, id)
		}
	case domain.KindVersioned, domain.KindTimestamp:
		if _, _, err := domain.DecodeStamped(block); err != nil {
			return err
		}
	}
	return nil
}

// observe keeps local version stamps ahead of every accepted version.
func (s *blockOpsService) observe(block domain.Block) {
	if s.core.kind != domain.KindVersioned || s.core.stamper == nil {
		return
	}
	if stamp, _, err := domain.DecodeStamped(block); err == nil {
		s.core.stamper.Observe(stamp)
	}
}

func (s *blockOpsService) fetch(ctx context.Context, id ring.ID) (domain.Block, error) {
	block, err := s.core.store.Get(ctx, id)
	if errors.Is(err, domain.ErrBlockNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrLocalStorage, id, err)
	}
	return block, nil
}

func (s *blockOpsService) remove(ctx context.Context, id ring.ID) error {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	if err := s.core.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: delete %s: %w", domain.ErrLocalStorage, id, err)
	}
	s.core.index.Update(id, merkle.Digest{})
	logger.Debugw("Block removed", "key", id.String())
	return nil
}

// encode wraps a client payload in the block format of the store.
func (s *blockOpsService) encode(payload []byte) (domain.Block, error) {
	switch s.core.kind {
	case domain.KindVersioned:
		return domain.EncodeStamped(s.core.stamper.Next(), payload), nil
	case domain.KindTimestamp:
		return domain.EncodeStamped(uint64(s.core.clock.Now().UnixNano()), payload), nil
	case domain.KindImmutable:
		return domain.Block(append([]byte(nil), payload...)), nil
	default:
		return nil, fmt.Errorf("unknown block kind %q", s.core.kind)
	}
}

// rebuild reloads the index from a full scan of the store.
func (s *blockOpsService) rebuild(ctx context.Context) error {
	var entries []merkle.Entry
	err := s.core.store.Scan(ctx, func(id ring.ID, block domain.Block) error {
		entries = append(entries, merkle.Entry{ID: id, Digest: block.Digest()})
		s.observe(block)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: scan: %w", domain.ErrLocalStorage, err)
	}

	s.core.index.Load(entries)
	logger.Infow("Merkle index rebuilt", "keys", len(entries), "root", s.core.index.Root().Digest.String())
	return nil
}
