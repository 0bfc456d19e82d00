package port

import (
	"context"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/pkg/merkle"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
)

//go:generate mockgen -destination=../service/mocks/peer_mock.go -package=mocks -source=peer.go

// PeerClient issues anti-entropy and block calls to another node.
type PeerClient interface {
	// RootDigest opens a reconciliation pass. arc is the caller's local arc.
	RootDigest(ctx context.Context, addr string, arc ring.Arc) (domain.RootInfo, error)

	// Children returns the child digests of r in the peer's index.
	Children(ctx context.Context, addr string, r merkle.Range) ([]merkle.RangeDigest, error)

	// LeafEntries returns the keys and digests the peer indexes under r.
	LeafEntries(ctx context.Context, addr string, r merkle.Range) ([]merkle.Entry, error)

	// GetBlock returns domain.ErrBlockNotFound when the peer has no block for id.
	GetBlock(ctx context.Context, addr string, id ring.ID) (domain.Block, error)

	// PutBlock runs the peer's store operation. A rejected write surfaces as
	// domain.ErrStaleBlock.
	PutBlock(ctx context.Context, addr string, id ring.ID, block domain.Block) error
}
