package domain

import (
	"github.com/anthanhphan/go-dhash-replication/pkg/merkle"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
)

// RootInfo answers a replica's opening request of a reconciliation pass.
type RootInfo struct {
	Shape merkle.Shape `json:"shape"`
	// Cover is the node covering the requested arc and its digest.
	Cover merkle.RangeDigest `json:"cover"`
	// Held is the arc the answering node keeps replicas for.
	Held ring.Arc `json:"held"`
}

// PassOutcome is the terminal state of a reconciliation pass.
type PassOutcome string

const (
	OutcomeConverged PassOutcome = "converged"
	OutcomeFailed    PassOutcome = "failed"
	OutcomeSkipped   PassOutcome = "skipped"
)

// PassResult summarises one reconciliation pass against one replica.
type PassResult struct {
	Peer    string      `json:"peer"`
	Outcome PassOutcome `json:"outcome"`

	// Comparisons counts digest comparisons between local and remote nodes.
	Comparisons int `json:"comparisons"`
	// NodesVisited counts remote tree nodes fetched.
	NodesVisited int `json:"nodes_visited"`
	// Fetches counts remote calls issued.
	Fetches int `json:"fetches"`

	Pushed     int `json:"pushed"`
	Pulled     int `json:"pulled"`
	Replaced   int `json:"replaced"`
	Kept       int `json:"kept"`
	Unresolved int `json:"unresolved"`
	// Divergent counts keys left divergent by local storage failures.
	Divergent int `json:"divergent"`
}

// Mutations is the number of local or remote writes the pass performed.
func (r PassResult) Mutations() int {
	return r.Pushed + r.Pulled + r.Replaced
}
