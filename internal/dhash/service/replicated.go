package service

import (
	"context"
	"fmt"
	"time"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/port"
	"github.com/anthanhphan/go-dhash-replication/pkg/idgen"
	"github.com/anthanhphan/go-dhash-replication/pkg/merkle"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
	"github.com/anthanhphan/go-dhash-replication/pkg/shard"
	"github.com/jonboulle/clockwork"
)

const (
	defaultInterval        = time.Minute
	defaultRefreshInterval = 30 * time.Second
	defaultWorkers         = 4
)

// Options tune a ReplicatedService. Zero values take defaults.
type Options struct {
	// Kind selects block encoding and, unless Policy is set, the staleness policy.
	Kind   domain.Kind
	Policy domain.StalenessPolicy

	// Interval between reconciliation rounds.
	Interval time.Duration
	// RefreshInterval between replica set recomputations.
	RefreshInterval time.Duration
	// Workers bounds concurrent passes.
	Workers int

	// Stamper issues versions for KindVersioned payloads.
	Stamper *idgen.Stamper
	Clock   clockwork.Clock
}

func (o *Options) setDefaults() {
	if o.Kind == "" {
		o.Kind = domain.KindVersioned
	}
	if o.Interval <= 0 {
		o.Interval = defaultInterval
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = defaultRefreshInterval
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
}

// ReplicatedService is a facade that composes the replication use-case
// services of one node: local block operations, the replica set, the
// reconciliation engine and its scheduler.
type ReplicatedService struct {
	store   port.BlockStore
	peers   port.PeerClient
	router  port.Router
	index   *merkle.Tree
	policy  domain.StalenessPolicy
	kind    domain.Kind
	stamper *idgen.Stamper
	clock   clockwork.Clock
	opts    Options

	blocks     *blockOpsService
	tree       *treeQueryService
	replicas   *replicaSetManager
	reconciler *reconciler
	scheduler  *antiEntropyScheduler
}

// Ensure ReplicatedService implements port.ReplicationService.
var _ port.ReplicationService = (*ReplicatedService)(nil)

// NewReplicatedService builds the facade and all use-case services.
func NewReplicatedService(store port.BlockStore, peers port.PeerClient, router port.Router, index *merkle.Tree, opts Options) (*ReplicatedService, error) {
	opts.setDefaults()

	policy := opts.Policy
	if policy == nil {
		p, err := domain.PolicyFor(opts.Kind)
		if err != nil {
			return nil, err
		}
		policy = p
	}

	stamper := opts.Stamper
	if stamper == nil && opts.Kind == domain.KindVersioned {
		s, err := idgen.New(idgen.NodeIDFor(router.Self().ID), nil)
		if err != nil {
			return nil, fmt.Errorf("create version stamper: %w", err)
		}
		stamper = s
	}

	svc := &ReplicatedService{
		store:   store,
		peers:   peers,
		router:  router,
		index:   index,
		policy:  policy,
		kind:    opts.Kind,
		stamper: stamper,
		clock:   opts.Clock,
		opts:    opts,
	}

	svc.blocks = newBlockOpsService(svc)
	svc.tree = newTreeQueryService(svc)
	svc.replicas = newReplicaSetManager(svc)
	svc.reconciler = newReconciler(svc)
	svc.scheduler = newAntiEntropyScheduler(svc)

	return svc, nil
}

// Store keeps block under id if there is no stored copy, the stored copy is
// identical, or the policy finds the stored copy stale. Otherwise it returns
// domain.ErrStaleBlock. Replicas pick up the change on their next pass.
func (s *ReplicatedService) Store(ctx context.Context, id ring.ID, block domain.Block) error {
	return s.blocks.store(ctx, id, block)
}

// Fetch returns the local copy of id.
func (s *ReplicatedService) Fetch(ctx context.Context, id ring.ID) (domain.Block, error) {
	return s.blocks.fetch(ctx, id)
}

// Remove deletes the local copy of id. Replicas still holding the key will
// hand it back on the next pass.
func (s *ReplicatedService) Remove(ctx context.Context, id ring.ID) error {
	return s.blocks.remove(ctx, id)
}

// Encode wraps a client payload in the block format of this store.
func (s *ReplicatedService) Encode(payload []byte) (domain.Block, error) {
	return s.blocks.encode(payload)
}

// Kind returns the block kind of this store.
func (s *ReplicatedService) Kind() domain.Kind {
	return s.kind
}

// Rebuild reloads the Merkle index from storage.
func (s *ReplicatedService) Rebuild(ctx context.Context) error {
	return s.blocks.rebuild(ctx)
}

// RootDigest answers the opening request of a peer's pass.
func (s *ReplicatedService) RootDigest(ctx context.Context, arc ring.Arc) (domain.RootInfo, error) {
	return s.tree.rootDigest(ctx, arc)
}

// Children returns the child digests of r.
func (s *ReplicatedService) Children(ctx context.Context, r merkle.Range) ([]merkle.RangeDigest, error) {
	return s.tree.children(ctx, r)
}

// LeafEntries returns the keys indexed under r.
func (s *ReplicatedService) LeafEntries(ctx context.Context, r merkle.Range) ([]merkle.Entry, error) {
	return s.tree.leafEntries(ctx, r)
}

// MerkleRoot returns the current root digest.
func (s *ReplicatedService) MerkleRoot() merkle.RangeDigest {
	return s.index.Root()
}

// Replicas returns the current replica set.
func (s *ReplicatedService) Replicas() []shard.Node {
	return s.replicas.currentSet().Nodes
}

// Successors looks up up to count members clockwise from id. A count below
// one is treated as one.
func (s *ReplicatedService) Successors(ctx context.Context, id ring.ID, count int) ([]shard.Node, error) {
	if count < 1 {
		count = 1
	}
	nodes, err := s.router.FindSuccessors(ctx, id, count)
	if err != nil {
		return nil, fmt.Errorf("%w: successors of %s: %w", domain.ErrRoutingFailure, id, err)
	}
	return nodes, nil
}

// ReplicaSet returns the current replica set with its arc.
func (s *ReplicatedService) ReplicaSet() ReplicaSet {
	return s.replicas.currentSet()
}

// RefreshReplicas recomputes the replica set. On failure the previous set is kept.
func (s *ReplicatedService) RefreshReplicas(ctx context.Context) error {
	return s.replicas.refresh(ctx)
}

// Reconcile runs one pass against peer.
func (s *ReplicatedService) Reconcile(ctx context.Context, peer shard.Node) (domain.PassResult, error) {
	return s.reconciler.reconcile(ctx, peer)
}

// TriggerSync reconciles with every replica now.
func (s *ReplicatedService) TriggerSync(ctx context.Context) []domain.PassResult {
	return s.scheduler.runOnce(ctx)
}

// Start begins periodic anti-entropy. Calling Start on a running service
// does nothing.
func (s *ReplicatedService) Start(randomizeFirstTick bool) {
	s.scheduler.start(randomizeFirstTick)
}

// Stop halts periodic anti-entropy and waits for running passes.
func (s *ReplicatedService) Stop() {
	s.scheduler.stop()
}
