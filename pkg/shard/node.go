package shard

import (
	"fmt"

	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
)

// Node represents a storage node and its position on the ring.
type Node struct {
	ID       string     `json:"id"`
	Addr     string     `json:"addr"`
	Position ring.ID    `json:"position"`
	Status   NodeStatus `json:"status"`
}

type NodeStatus string

const (
	NodeStatusHealthy   NodeStatus = "healthy"
	NodeStatusUnhealthy NodeStatus = "unhealthy"
	NodeStatusLeft      NodeStatus = "left"
)

func (n Node) String() string {
	return fmt.Sprintf("%s@%s[%s]", n.ID, n.Addr, n.Position)
}

// PositionFor returns the ring position of a node: the explicit position when
// one is configured, otherwise the hash of its ID.
func PositionFor(nodeID string, explicit string) (ring.ID, error) {
	if explicit == "" {
		return ring.KeyID([]byte(nodeID)), nil
	}
	return ring.ParseID(explicit)
}
