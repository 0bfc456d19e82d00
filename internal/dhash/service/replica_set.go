package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
	"github.com/anthanhphan/go-dhash-replication/pkg/shard"
	"github.com/anthanhphan/gosdk/logger"
)

// ReplicaSet is an immutable snapshot of the nodes replicating the local arc.
type ReplicaSet struct {
	Arc         ring.Arc     `json:"arc"`
	Nodes       []shard.Node `json:"nodes"`
	RefreshedAt time.Time    `json:"refreshed_at"`
}

// Empty reports whether the set has no replicas.
func (s ReplicaSet) Empty() bool {
	return len(s.Nodes) == 0
}

// replicaSetManager keeps the current replica set. Readers see either the
// old or the new set, never a mix.
type replicaSetManager struct {
	core    *ReplicatedService
	current atomic.Pointer[ReplicaSet]
}

func newReplicaSetManager(core *ReplicatedService) *replicaSetManager {
	return &replicaSetManager{core: core}
}

// refresh recomputes the replica set from the router. On failure the
// previous set stays in place.
func (m *replicaSetManager) refresh(ctx context.Context) error {
	self := m.core.router.Self()

	arc, err := m.core.router.LocalArc(ctx)
	if err != nil {
		refreshFailures.WithLabelValues().Inc()
		return fmt.Errorf("%w: local arc: %w", domain.ErrRoutingFailure, err)
	}
	nodes, err := m.core.router.ResolveReplicas(ctx, arc)
	if err != nil {
		refreshFailures.WithLabelValues().Inc()
		return fmt.Errorf("%w: %w", domain.ErrRoutingFailure, err)
	}

	seen := make(map[string]struct{}, len(nodes))
	replicas := make([]shard.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.ID == self.ID {
			continue
		}
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		replicas = append(replicas, n)
	}

	next := &ReplicaSet{Arc: arc, Nodes: replicas, RefreshedAt: m.core.clock.Now()}
	prev := m.current.Swap(next)
	replicaSetSize.WithLabelValues().Set(float64(len(replicas)))

	if prev == nil || !sameNodes(prev.Nodes, replicas) {
		logger.Infow("Replica set changed", "arc", arc.String(), "replicas", nodeIDs(replicas))
	}
	return nil
}

func (m *replicaSetManager) currentSet() ReplicaSet {
	if s := m.current.Load(); s != nil {
		return *s
	}
	return ReplicaSet{}
}

func sameNodes(a, b []shard.Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Addr != b[i].Addr {
			return false
		}
	}
	return true
}

func nodeIDs(nodes []shard.Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
