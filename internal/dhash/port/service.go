package port

import (
	"context"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/pkg/merkle"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
	"github.com/anthanhphan/go-dhash-replication/pkg/shard"
)

//go:generate mockgen -destination=../service/mocks/service_mock.go -package=mocks -source=service.go

// ReplicationService is what the inbound adapters drive.
type ReplicationService interface {
	// Store accepts block under id unless the stored copy supersedes it.
	Store(ctx context.Context, id ring.ID, block domain.Block) error
	Fetch(ctx context.Context, id ring.ID) (domain.Block, error)
	Remove(ctx context.Context, id ring.ID) error

	// Encode wraps a client payload in the block format of the store.
	Encode(payload []byte) (domain.Block, error)
	Kind() domain.Kind

	// Peer-facing anti-entropy queries.
	RootDigest(ctx context.Context, arc ring.Arc) (domain.RootInfo, error)
	Children(ctx context.Context, r merkle.Range) ([]merkle.RangeDigest, error)
	LeafEntries(ctx context.Context, r merkle.Range) ([]merkle.Entry, error)

	// Admin queries.
	MerkleRoot() merkle.RangeDigest
	Replicas() []shard.Node
	Successors(ctx context.Context, id ring.ID, count int) ([]shard.Node, error)
	TriggerSync(ctx context.Context) []domain.PassResult
}
