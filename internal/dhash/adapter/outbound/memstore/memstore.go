// Package memstore is a BlockStore kept entirely in memory.
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/port"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
)

var _ port.BlockStore = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	blocks map[ring.ID]domain.Block
}

func New() *Store {
	return &Store{blocks: make(map[ring.ID]domain.Block)}
}

func (s *Store) Get(ctx context.Context, id ring.ID) (domain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blocks[id]
	if !ok {
		return nil, domain.ErrBlockNotFound
	}
	return slices.Clone(b), nil
}

func (s *Store) Put(ctx context.Context, id ring.ID, block domain.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[id] = slices.Clone(block)
	return nil
}

func (s *Store) Delete(ctx context.Context, id ring.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocks, id)
	return nil
}

// Scan visits blocks in ring order.
func (s *Store) Scan(ctx context.Context, fn func(id ring.ID, block domain.Block) error) error {
	s.mu.RLock()
	ids := make([]ring.ID, 0, len(s.blocks))
	for id := range s.blocks {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	slices.Sort(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		if err := fn(id, b); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks)
}

func (s *Store) Close() error {
	return nil
}
