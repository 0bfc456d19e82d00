package shard

import (
	"context"
	"fmt"

	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
)

// Router answers placement questions for one local node: which members hold
// replicas of its range, and which range it holds replicas for.
//
// Replicas of the arc (pred, n] live on n's `replicas` clockwise successors.
type Router struct {
	ring     *Ring
	self     Node
	replicas int
}

// NewRouter creates a router for the local node self.
func NewRouter(r *Ring, self Node, replicas int) *Router {
	if replicas < 1 {
		replicas = 1
	}
	return &Router{ring: r, self: self, replicas: replicas}
}

// Self returns the local node.
func (r *Router) Self() Node {
	return r.self
}

// Replicas returns the replication factor.
func (r *Router) Replicas() int {
	return r.replicas
}

// LocalArc returns the arc the local node is primary for, (predecessor, self].
func (r *Router) LocalArc(ctx context.Context) (ring.Arc, error) {
	pred, err := r.ring.Predecessor(r.self.Position)
	if err != nil {
		return ring.Arc{}, err
	}
	return ring.Arc{From: pred.Position, To: r.self.Position}, nil
}

// HeldArc returns the arc the local node stores data for: its own range plus
// the ranges of the predecessors it replicates.
func (r *Router) HeldArc(ctx context.Context) (ring.Arc, error) {
	size := r.ring.Size()
	if size == 0 {
		return ring.Arc{}, ErrNoNodes
	}
	if size <= r.replicas+1 {
		return ring.FullRing, nil
	}
	from, err := r.ring.NthPredecessor(r.self.Position, r.replicas+1)
	if err != nil {
		return ring.Arc{}, err
	}
	return ring.Arc{From: from.Position, To: r.self.Position}, nil
}

// ResolveReplicas returns the members that should replicate arc: the
// successors of the arc's owner, the owner itself and duplicates excluded.
func (r *Router) ResolveReplicas(ctx context.Context, arc ring.Arc) ([]Node, error) {
	succ, err := r.ring.Successors(arc.To, r.replicas+1)
	if err != nil {
		return nil, fmt.Errorf("resolve replicas of %s: %w", arc, err)
	}

	out := make([]Node, 0, len(succ))
	seen := make(map[string]bool, len(succ))
	for i, n := range succ {
		if i == 0 || n.ID == r.self.ID || seen[n.ID] {
			seen[n.ID] = true
			continue
		}
		seen[n.ID] = true
		out = append(out, n)
	}
	return out, nil
}

// FindSuccessors returns up to count members clockwise from id.
func (r *Router) FindSuccessors(ctx context.Context, id ring.ID, count int) ([]Node, error) {
	return r.ring.Successors(id, count)
}
