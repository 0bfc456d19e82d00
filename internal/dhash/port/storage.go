package port

import (
	"context"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
)

//go:generate mockgen -destination=../service/mocks/storage_mock.go -package=mocks -source=storage.go

// BlockStore is the local block storage engine.
type BlockStore interface {
	// Get returns domain.ErrBlockNotFound when id is absent.
	Get(ctx context.Context, id ring.ID) (domain.Block, error)

	// Put stores or overwrites the block under id.
	Put(ctx context.Context, id ring.ID, block domain.Block) error

	// Delete removes id. Deleting an absent id is not an error.
	Delete(ctx context.Context, id ring.ID) error

	// Scan calls fn for every stored block. Returning an error from fn stops
	// the scan and returns that error.
	Scan(ctx context.Context, fn func(id ring.ID, block domain.Block) error) error

	Close() error
}
