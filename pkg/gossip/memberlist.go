// Package gossip keeps the membership ring up to date from a memberlist cluster.
package gossip

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
	"github.com/anthanhphan/go-dhash-replication/pkg/shard"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/hashicorp/memberlist"
)

// Membership feeds memberlist join/leave/update events into a shard.Ring.
type Membership struct {
	list *memberlist.Memberlist
	conf *memberlist.Config
	ring *shard.Ring

	self       shard.Node
	addr       string
	serverPort int

	mu        sync.RWMutex
	listeners []func()
}

var (
	_ memberlist.Delegate      = (*Membership)(nil)
	_ memberlist.EventDelegate = (*Membership)(nil)
)

type nodeMeta struct {
	ServerPort int    `json:"server_port"`
	Position   string `json:"position"`
}

// NewMembership starts a memberlist agent for self and registers it in the ring.
// self.Addr is ignored; the advertised server address is derived from the
// bind address and serverPort.
func NewMembership(self shard.Node, bindAddr string, bindPort int, serverPort int, r *shard.Ring) (*Membership, error) {
	config := memberlist.DefaultLANConfig()
	config.Name = self.ID
	config.BindAddr = bindAddr
	config.BindPort = bindPort
	config.AdvertisePort = bindPort
	config.LogOutput = io.Discard

	m := &Membership{
		conf:       config,
		ring:       r,
		self:       self,
		addr:       bindAddr,
		serverPort: serverPort,
	}
	config.Events = m
	config.Delegate = m

	list, err := memberlist.Create(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create memberlist: %w", err)
	}
	m.list = list

	m.self.Addr = net.JoinHostPort(m.serverHost(), strconv.Itoa(serverPort))
	m.self.Status = shard.NodeStatusHealthy
	r.AddNode(m.self)

	return m, nil
}

// OnChange registers fn to run after every membership change.
func (m *Membership) OnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Join joins the cluster using seed nodes.
func (m *Membership) Join(seeds []string) error {
	if len(seeds) == 0 {
		return nil
	}
	if _, err := m.list.Join(seeds); err != nil {
		return fmt.Errorf("failed to join cluster: %w", err)
	}
	return nil
}

// Leave leaves the cluster and stops the agent.
func (m *Membership) Leave() error {
	if err := m.list.Leave(5 * time.Second); err != nil {
		return err
	}
	return m.list.Shutdown()
}

// LocalNode returns the local member.
func (m *Membership) LocalNode() shard.Node {
	return m.self
}

// Members returns the members memberlist currently considers alive.
func (m *Membership) Members() []shard.Node {
	members := m.list.Members()
	nodes := make([]shard.Node, 0, len(members))
	for _, mem := range members {
		nodes = append(nodes, toNode(mem))
	}
	return nodes
}

// NodeMeta returns the local node metadata.
func (m *Membership) NodeMeta(limit int) []byte {
	data, err := encodeMeta(m.serverPort, m.self.Position)
	if err != nil {
		logger.Warnw("failed to marshal gossip node meta", "error", err.Error())
		return nil
	}
	if len(data) > limit && limit > 0 {
		logger.Warnw("gossip node meta exceeds limit", "size", len(data), "limit", limit)
		return nil
	}
	return data
}

func (m *Membership) NotifyMsg([]byte)                           {}
func (m *Membership) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (m *Membership) LocalState(join bool) []byte                { return nil }
func (m *Membership) MergeRemoteState(buf []byte, join bool)     {}

// NotifyJoin is invoked when a node joins.
func (m *Membership) NotifyJoin(node *memberlist.Node) {
	n := toNode(node)
	logger.Infow("Node joined", "id", n.ID, "position", n.Position.String(), "addr", n.Addr)
	m.ring.AddNode(n)
	m.changed()
}

// NotifyLeave is invoked when a node leaves or is declared dead.
func (m *Membership) NotifyLeave(node *memberlist.Node) {
	logger.Infow("Node left", "id", node.Name)
	m.ring.SetNodeStatus(node.Name, shard.NodeStatusUnhealthy)
	m.changed()
}

// NotifyUpdate is invoked when a node's metadata changes.
func (m *Membership) NotifyUpdate(node *memberlist.Node) {
	m.NotifyJoin(node)
}

func (m *Membership) changed() {
	m.mu.RLock()
	listeners := append([]func(){}, m.listeners...)
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}

func toNode(node *memberlist.Node) shard.Node {
	serverPort, position, err := decodeMeta(node.Meta)
	if err != nil {
		logger.Warnw("failed to decode node metadata", "node", node.Name, "error", err.Error())
	}

	port := int(node.Port)
	if serverPort > 0 {
		port = serverPort
	}
	if err != nil || len(node.Meta) == 0 {
		position = ring.KeyID([]byte(node.Name))
	}

	return shard.Node{
		ID:       node.Name,
		Addr:     net.JoinHostPort(node.Addr.String(), strconv.Itoa(port)),
		Position: position,
		Status:   shard.NodeStatusHealthy,
	}
}

func encodeMeta(serverPort int, position ring.ID) ([]byte, error) {
	return json.Marshal(nodeMeta{ServerPort: serverPort, Position: position.String()})
}

func decodeMeta(meta []byte) (int, ring.ID, error) {
	if len(meta) == 0 {
		return 0, 0, nil
	}
	var m nodeMeta
	if err := json.Unmarshal(meta, &m); err != nil {
		return 0, 0, err
	}
	position, err := ring.ParseID(m.Position)
	if err != nil {
		return m.ServerPort, 0, err
	}
	return m.ServerPort, position, nil
}

func (m *Membership) serverHost() string {
	if m.addr == "" {
		return m.addr
	}
	if ip := net.ParseIP(m.addr); ip == nil || !ip.IsUnspecified() {
		return m.addr
	}
	if m.list == nil || m.list.LocalNode() == nil {
		return m.addr
	}

	adv := m.list.LocalNode().Addr.String()
	if adv == "" {
		return m.addr
	}
	if ip := net.ParseIP(adv); ip != nil && ip.IsUnspecified() {
		return m.addr
	}
	return adv
}
