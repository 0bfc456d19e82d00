package shard

import (
	"errors"
	"sort"
	"sync"

	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
)

var ErrNoNodes = errors.New("no live nodes on the ring")

// Ring tracks cluster members by ring position.
type Ring struct {
	mu    sync.RWMutex
	nodes map[string]Node
	// live holds healthy members sorted clockwise by position.
	live []Node
}

// NewRing creates an empty membership ring.
func NewRing() *Ring {
	return &Ring{
		nodes: make(map[string]Node),
	}
}

// AddNode adds or refreshes a member.
func (r *Ring) AddNode(node Node) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if node.Status == "" {
		node.Status = NodeStatusHealthy
	}
	r.nodes[node.ID] = node
	r.rebuildLocked()
}

// SetNodeStatus updates a member's status without forgetting it.
func (r *Ring) SetNodeStatus(nodeID string, status NodeStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if node, exists := r.nodes[nodeID]; exists {
		node.Status = status
		r.nodes[nodeID] = node
		r.rebuildLocked()
	}
}

// RemoveNode forgets a member.
func (r *Ring) RemoveNode(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[nodeID]; !exists {
		return
	}
	delete(r.nodes, nodeID)
	r.rebuildLocked()
}

func (r *Ring) rebuildLocked() {
	live := make([]Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		if n.Status == NodeStatusHealthy {
			live = append(live, n)
		}
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].Position == live[j].Position {
			return live[i].ID < live[j].ID
		}
		return live[i].Position < live[j].Position
	})
	r.live = live
}

// GetNodes returns every known member, healthy or not.
func (r *Ring) GetNodes() []Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Size returns the number of live members.
func (r *Ring) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.live)
}

// successorIndexLocked returns the index of the live member responsible for key.
func (r *Ring) successorIndexLocked(key ring.ID) int {
	n := len(r.live)
	for i := range r.live {
		pred := r.live[(i+n-1)%n].Position
		if ring.Responsible(pred, r.live[i].Position, key) {
			return i
		}
	}
	return 0
}

// Successor returns the live member responsible for key.
func (r *Ring) Successor(key ring.ID) (Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.live) == 0 {
		return Node{}, ErrNoNodes
	}
	return r.live[r.successorIndexLocked(key)], nil
}

// Successors walks clockwise from the member responsible for key and returns
// up to count distinct members.
func (r *Ring) Successors(key ring.ID, count int) ([]Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.live) == 0 {
		return nil, ErrNoNodes
	}
	if count <= 0 {
		return []Node{}, nil
	}
	if count > len(r.live) {
		count = len(r.live)
	}

	start := r.successorIndexLocked(key)
	out := make([]Node, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, r.live[(start+i)%len(r.live)])
	}
	return out, nil
}

// Predecessor returns the live member immediately counter-clockwise of id.
func (r *Ring) Predecessor(id ring.ID) (Node, error) {
	return r.NthPredecessor(id, 1)
}

// NthPredecessor steps n members counter-clockwise from id. With fewer than n
// live members the walk wraps around.
func (r *Ring) NthPredecessor(id ring.ID, n int) (Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := len(r.live)
	if size == 0 {
		return Node{}, ErrNoNodes
	}
	idx := r.successorIndexLocked(id)
	step := n % size
	return r.live[(idx-step+size)%size], nil
}
