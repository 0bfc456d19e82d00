package port

import (
	"context"

	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
	"github.com/anthanhphan/go-dhash-replication/pkg/shard"
)

//go:generate mockgen -destination=../service/mocks/routing_mock.go -package=mocks -source=routing.go

// Router answers placement questions about the local node.
type Router interface {
	// Self returns the local node.
	Self() shard.Node

	// LocalArc returns (predecessor, self], the range the local node is primary for.
	LocalArc(ctx context.Context) (ring.Arc, error)

	// HeldArc returns every id the local node keeps a replica of.
	HeldArc(ctx context.Context) (ring.Arc, error)

	// ResolveReplicas returns the members replicating arc, the local node excluded.
	ResolveReplicas(ctx context.Context, arc ring.Arc) ([]shard.Node, error)

	// FindSuccessors returns up to count members clockwise from id, the
	// member responsible for id first.
	FindSuccessors(ctx context.Context, id ring.ID, count int) ([]shard.Node, error)
}

// MembershipPort defines the interface for cluster membership and failure detection.
type MembershipPort interface {
	// Join joins an existing cluster using a list of seed nodes.
	Join(seeds []string) error

	// Leave gracefully leaves the cluster.
	Leave() error

	// Members returns the list of current healthy members.
	Members() []shard.Node

	// LocalNode returns the local node information.
	LocalNode() shard.Node

	// OnChange registers a callback run after every membership change.
	OnChange(fn func())
}
