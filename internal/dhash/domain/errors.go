package domain

import "errors"

var (
	ErrBlockNotFound = errors.New("block not found")
	ErrStaleBlock    = errors.New("block is stale")
	ErrInvalidBlock  = errors.New("invalid block encoding")

	// ErrRoutingFailure means the replica set could not be resolved. The
	// previous replica set stays in use.
	ErrRoutingFailure = errors.New("routing failure")
	// ErrRemoteUnreachable aborts a reconciliation pass against one replica.
	ErrRemoteUnreachable = errors.New("remote replica unreachable")
	// ErrConflictUnresolved is recorded when neither version of a key is stale.
	// The local copy is kept.
	ErrConflictUnresolved = errors.New("conflict unresolved")
	// ErrLocalStorage wraps failures of the local block store.
	ErrLocalStorage = errors.New("local storage failure")

	ErrTreeShapeMismatch = errors.New("merkle tree shape mismatch")
	ErrNotReplica        = errors.New("peer does not replicate the local range")
)
