package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/adapter/outbound/memstore"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/pkg/merkle"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
	"github.com/anthanhphan/go-dhash-replication/pkg/shard"
)

var errPeerDown = errors.New("connection refused")

// loopback routes peer calls straight into other in-process services.
type loopback struct {
	mu    sync.Mutex
	nodes map[string]*ReplicatedService
	down  map[string]bool
	calls map[string]int
}

func newLoopback() *loopback {
	return &loopback{
		nodes: make(map[string]*ReplicatedService),
		down:  make(map[string]bool),
		calls: make(map[string]int),
	}
}

func (l *loopback) target(addr, method string) (*ReplicatedService, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls[method]++
	if l.down[addr] {
		return nil, errPeerDown
	}
	svc, ok := l.nodes[addr]
	if !ok {
		return nil, fmt.Errorf("unknown peer %s", addr)
	}
	return svc, nil
}

func (l *loopback) setDown(addr string, down bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.down[addr] = down
}

func (l *loopback) RootDigest(ctx context.Context, addr string, arc ring.Arc) (domain.RootInfo, error) {
	svc, err := l.target(addr, "RootDigest")
	if err != nil {
		return domain.RootInfo{}, err
	}
	return svc.RootDigest(ctx, arc)
}

func (l *loopback) Children(ctx context.Context, addr string, r merkle.Range) ([]merkle.RangeDigest, error) {
	svc, err := l.target(addr, "Children")
	if err != nil {
		return nil, err
	}
	return svc.Children(ctx, r)
}

func (l *loopback) LeafEntries(ctx context.Context, addr string, r merkle.Range) ([]merkle.Entry, error) {
	svc, err := l.target(addr, "LeafEntries")
	if err != nil {
		return nil, err
	}
	return svc.LeafEntries(ctx, r)
}

func (l *loopback) GetBlock(ctx context.Context, addr string, id ring.ID) (domain.Block, error) {
	svc, err := l.target(addr, "GetBlock")
	if err != nil {
		return nil, err
	}
	return svc.Fetch(ctx, id)
}

func (l *loopback) PutBlock(ctx context.Context, addr string, id ring.ID, block domain.Block) error {
	svc, err := l.target(addr, "PutBlock")
	if err != nil {
		return err
	}
	return svc.Store(ctx, id, block)
}

type testNode struct {
	node  shard.Node
	svc   *ReplicatedService
	store *memstore.Store
}

type cluster struct {
	t     *testing.T
	ring  *shard.Ring
	net   *loopback
	nodes map[string]*testNode
}

func newCluster(t *testing.T, positions map[string]ring.ID) *cluster {
	t.Helper()
	c := &cluster{t: t, ring: shard.NewRing(), net: newLoopback(), nodes: make(map[string]*testNode)}
	for id, pos := range positions {
		c.ring.AddNode(shard.Node{ID: id, Addr: id + ":7000", Position: pos})
	}
	for id, pos := range positions {
		c.add(id, pos, merkle.DefaultShape, Options{})
	}
	return c
}

func (c *cluster) add(id string, pos ring.ID, shape merkle.Shape, opts Options) *testNode {
	c.t.Helper()
	node := shard.Node{ID: id, Addr: id + ":7000", Position: pos, Status: shard.NodeStatusHealthy}
	tree, err := merkle.NewTree(shape)
	require.NoError(c.t, err)

	store := memstore.New()
	svc, err := NewReplicatedService(store, c.net, shard.NewRouter(c.ring, node, 2), tree, opts)
	require.NoError(c.t, err)

	c.net.mu.Lock()
	c.net.nodes[node.Addr] = svc
	c.net.mu.Unlock()

	tn := &testNode{node: node, svc: svc, store: store}
	c.nodes[id] = tn
	return tn
}

func (c *cluster) node(id string) *testNode {
	return c.nodes[id]
}

func versioned(version uint64, payload string) domain.Block {
	return domain.EncodeStamped(version, []byte(payload))
}

func (n *testNode) put(t *testing.T, id ring.ID, block domain.Block) {
	t.Helper()
	require.NoError(t, n.svc.Store(context.Background(), id, block))
}

func (n *testNode) keys(t *testing.T) map[ring.ID]domain.Block {
	t.Helper()
	out := make(map[ring.ID]domain.Block)
	require.NoError(t, n.store.Scan(context.Background(), func(id ring.ID, b domain.Block) error {
		out[id] = b
		return nil
	}))
	return out
}

// randomIDsIn draws n distinct ids from arc.
func randomIDsIn(r *rand.Rand, arc ring.Arc, n int) []ring.ID {
	seen := make(map[ring.ID]bool, n)
	out := make([]ring.ID, 0, n)
	for len(out) < n {
		id := ring.ID(r.Uint64())
		if !arc.Contains(id) || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
