package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/pkg/merkle"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
	"github.com/anthanhphan/go-dhash-replication/pkg/shard"
	"github.com/anthanhphan/gosdk/logger"
)

type passState int

const (
	stateStart passState = iota
	stateDescend
	stateLeaf
	stateConverged
	stateFailed
)

func (s passState) String() string {
	switch s {
	case stateStart:
		return "start"
	case stateDescend:
		return "descend"
	case stateLeaf:
		return "leaf"
	case stateConverged:
		return "converged"
	case stateFailed:
		return "failed"
	default:
		return fmt.Sprintf("passState(%d)", int(s))
	}
}

// checkrepState is the bookkeeping of one pass against one replica.
type checkrepState struct {
	peer     shard.Node
	state    passState
	local    *merkle.Snapshot
	localArc ring.Arc
	// arcs is the local arc restricted to what the replica holds.
	arcs []ring.Arc

	frontier []merkle.Range
	leaves   []merkle.Range
	// outstanding counts remote calls issued and not yet answered.
	outstanding int

	result domain.PassResult
	err    error
}

func newCheckrepState(peer shard.Node, local *merkle.Snapshot, localArc ring.Arc) *checkrepState {
	return &checkrepState{
		peer:     peer,
		state:    stateStart,
		local:    local,
		localArc: localArc,
		result:   domain.PassResult{Peer: peer.ID},
	}
}

func (st *checkrepState) terminal() bool {
	return st.state == stateConverged || st.state == stateFailed
}

func (st *checkrepState) fail(err error) {
	st.state = stateFailed
	st.err = err
	st.frontier, st.leaves = nil, nil
}

func (st *checkrepState) fetchFailed(err error) {
	st.outstanding--
	st.fail(fmt.Errorf("%w: %s: %w", domain.ErrRemoteUnreachable, st.peer.Addr, err))
}

// advance picks the next state: internal nodes first, so the descent is
// breadth-first, then leaves.
func (st *checkrepState) advance() {
	switch {
	case len(st.frontier) > 0:
		st.state = stateDescend
	case len(st.leaves) > 0:
		st.state = stateLeaf
	default:
		st.state = stateConverged
	}
}

func (st *checkrepState) enqueue(r merkle.Range) {
	if r.Depth == st.local.Shape().Depth {
		st.leaves = append(st.leaves, r)
		return
	}
	st.frontier = append(st.frontier, r)
}

func (st *checkrepState) spans(r merkle.Range) bool {
	lo, hi := st.local.Shape().Bounds(r)
	for _, a := range st.arcs {
		if a.Spans(lo, hi) {
			return true
		}
	}
	return false
}

func (st *checkrepState) contains(id ring.ID) bool {
	for _, a := range st.arcs {
		if a.Contains(id) {
			return true
		}
	}
	return false
}

func (st *checkrepState) rootArrived(info domain.RootInfo) {
	st.outstanding--
	st.result.NodesVisited++

	shape := st.local.Shape()
	if info.Shape != shape {
		st.fail(fmt.Errorf("%w: local %d/%d, %s has %d/%d", domain.ErrTreeShapeMismatch,
			shape.Bits, shape.Depth, st.peer.ID, info.Shape.Bits, info.Shape.Depth))
		return
	}

	st.arcs = st.localArc.Intersect(info.Held)
	if len(st.arcs) == 0 {
		st.fail(fmt.Errorf("%w: %s holds %s, local arc is %s", domain.ErrNotReplica, st.peer.ID, info.Held, st.localArc))
		return
	}

	cover := st.local.Cover(st.localArc)
	if info.Cover.Range != cover.Range {
		st.fail(fmt.Errorf("%w: cover %s, %s answered %s", domain.ErrTreeShapeMismatch, cover.Range, st.peer.ID, info.Cover.Range))
		return
	}

	st.result.Comparisons++
	if info.Cover.Digest == cover.Digest {
		st.state = stateConverged
		return
	}
	st.enqueue(cover.Range)
	st.advance()
}

func (st *checkrepState) childrenArrived(parent merkle.Range, remote []merkle.RangeDigest) {
	st.outstanding--
	st.result.NodesVisited += len(remote)

	local, err := st.local.Children(parent)
	if err != nil || len(local) != len(remote) {
		st.fail(fmt.Errorf("%w: %s returned %d children for %s", domain.ErrTreeShapeMismatch, st.peer.ID, len(remote), parent))
		return
	}

	for i, rc := range remote {
		if rc.Range != local[i].Range {
			st.fail(fmt.Errorf("%w: child %d of %s is %s at %s", domain.ErrTreeShapeMismatch, i, parent, rc.Range, st.peer.ID))
			return
		}
		if !st.spans(rc.Range) {
			continue
		}
		st.result.Comparisons++
		if rc.Digest == local[i].Digest {
			continue
		}
		st.enqueue(rc.Range)
	}
	st.advance()
}

// keyDiff is one key whose local and remote digests disagree.
type keyDiff struct {
	id        ring.ID
	hasLocal  bool
	hasRemote bool
}

// leafEntriesArrived merges both sides of a leaf and lists the keys to repair.
func (st *checkrepState) leafEntriesArrived(r merkle.Range, remote []merkle.Entry) []keyDiff {
	st.outstanding--
	st.result.NodesVisited++

	local, err := st.local.LeafEntries(r)
	if err != nil {
		st.fail(err)
		return nil
	}
	remote = slices.Clone(remote)
	slices.SortFunc(remote, func(a, b merkle.Entry) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	var diffs []keyDiff
	i, j := 0, 0
	for i < len(local) || j < len(remote) {
		var d keyDiff
		switch {
		case j >= len(remote) || (i < len(local) && local[i].ID < remote[j].ID):
			d = keyDiff{id: local[i].ID, hasLocal: true}
			i++
		case i >= len(local) || remote[j].ID < local[i].ID:
			d = keyDiff{id: remote[j].ID, hasRemote: true}
			j++
		default:
			same := local[i].Digest == remote[j].Digest
			d = keyDiff{id: local[i].ID, hasLocal: true, hasRemote: true}
			i++
			j++
			if same {
				continue
			}
		}
		if st.contains(d.id) {
			diffs = append(diffs, d)
		}
	}
	return diffs
}

// reconciler runs checkrep passes.
type reconciler struct {
	core *ReplicatedService
}

func newReconciler(core *ReplicatedService) *reconciler {
	return &reconciler{core: core}
}

// reconcile runs one pass against peer. The returned error is non-nil only
// when the pass failed; unresolved conflicts and local write failures are
// reported through the counters.
func (e *reconciler) reconcile(ctx context.Context, peer shard.Node) (domain.PassResult, error) {
	started := e.core.clock.Now()

	localArc, err := e.core.router.LocalArc(ctx)
	if err != nil {
		res := domain.PassResult{Peer: peer.ID, Outcome: domain.OutcomeFailed}
		observePass(res, e.core.clock.Since(started).Seconds())
		return res, fmt.Errorf("%w: local arc: %w", domain.ErrRoutingFailure, err)
	}

	st := newCheckrepState(peer, e.core.index.Snapshot(), localArc)
	logger.Debugw("AE: Starting pass", "peer", peer.ID, "arc", localArc.String())

	for !st.terminal() {
		if err := ctx.Err(); err != nil {
			st.fail(err)
			break
		}
		e.step(ctx, st)
	}

	if st.state == stateConverged {
		st.result.Outcome = domain.OutcomeConverged
	} else {
		st.result.Outcome = domain.OutcomeFailed
	}
	observePass(st.result, e.core.clock.Since(started).Seconds())

	if st.err != nil {
		logger.Warnw("AE: Pass failed", "peer", peer.ID, "error", st.err.Error(),
			"comparisons", st.result.Comparisons, "mutations", st.result.Mutations())
		return st.result, st.err
	}
	logger.Debugw("AE: Pass converged", "peer", peer.ID,
		"comparisons", st.result.Comparisons,
		"pushed", st.result.Pushed,
		"pulled", st.result.Pulled,
		"replaced", st.result.Replaced,
		"unresolved", st.result.Unresolved)
	return st.result, nil
}

// step issues the remote call of the current state and feeds its answer
// back as an event.
func (e *reconciler) step(ctx context.Context, st *checkrepState) {
	peers := e.core.peers
	addr := st.peer.Addr

	switch st.state {
	case stateStart:
		st.outstanding++
		st.result.Fetches++
		info, err := peers.RootDigest(ctx, addr, st.localArc)
		if err != nil {
			st.fetchFailed(err)
			return
		}
		st.rootArrived(info)

	case stateDescend:
		parent := st.frontier[0]
		st.frontier = st.frontier[1:]
		st.outstanding++
		st.result.Fetches++
		children, err := peers.Children(ctx, addr, parent)
		if err != nil {
			st.fetchFailed(err)
			return
		}
		st.childrenArrived(parent, children)

	case stateLeaf:
		leaf := st.leaves[0]
		st.leaves = st.leaves[1:]
		st.outstanding++
		st.result.Fetches++
		entries, err := peers.LeafEntries(ctx, addr, leaf)
		if err != nil {
			st.fetchFailed(err)
			return
		}
		for _, d := range st.leafEntriesArrived(leaf, entries) {
			if err := e.repair(ctx, st, d); err != nil {
				st.fail(fmt.Errorf("%w: %s: %w", domain.ErrRemoteUnreachable, addr, err))
				return
			}
		}
		if !st.terminal() {
			st.advance()
		}
	}
}

// repair resolves one divergent key. Only remote failures are returned.
func (e *reconciler) repair(ctx context.Context, st *checkrepState, d keyDiff) error {
	switch {
	case !d.hasRemote:
		return e.push(ctx, st, d.id)
	case !d.hasLocal:
		return e.pull(ctx, st, d.id)
	default:
		return e.resolveConflict(ctx, st, d.id)
	}
}

func (e *reconciler) push(ctx context.Context, st *checkrepState, id ring.ID) error {
	block, err := e.core.store.Get(ctx, id)
	if errors.Is(err, domain.ErrBlockNotFound) {
		return nil
	}
	if err != nil {
		st.result.Divergent++
		logger.Warnw("AE: Failed to read block for push", "peer", st.peer.ID, "key", id.String(), "error", err.Error())
		return nil
	}
	return e.send(ctx, st, id, block)
}

func (e *reconciler) send(ctx context.Context, st *checkrepState, id ring.ID, block domain.Block) error {
	st.outstanding++
	st.result.Fetches++
	err := e.core.peers.PutBlock(ctx, st.peer.Addr, id, block)
	st.outstanding--

	switch {
	case errors.Is(err, domain.ErrStaleBlock):
		// The replica moved ahead since the comparison.
		st.result.Kept++
		return nil
	case err != nil:
		return err
	}
	st.result.Pushed++
	logger.Debugw("AE: Pushed block", "peer", st.peer.ID, "key", id.String())
	return nil
}

func (e *reconciler) fetchRemote(ctx context.Context, st *checkrepState, id ring.ID) (domain.Block, bool, error) {
	st.outstanding++
	st.result.Fetches++
	block, err := e.core.peers.GetBlock(ctx, st.peer.Addr, id)
	st.outstanding--

	switch {
	case errors.Is(err, domain.ErrBlockNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return block, true, nil
}

func (e *reconciler) pull(ctx context.Context, st *checkrepState, id ring.ID) error {
	block, ok, err := e.fetchRemote(ctx, st, id)
	if err != nil || !ok {
		return err
	}
	e.storeLocal(ctx, st, id, block, &st.result.Pulled)
	return nil
}

func (e *reconciler) resolveConflict(ctx context.Context, st *checkrepState, id ring.ID) error {
	remote, ok, err := e.fetchRemote(ctx, st, id)
	if err != nil || !ok {
		return err
	}

	local, err := e.core.store.Get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrBlockNotFound):
		e.storeLocal(ctx, st, id, remote, &st.result.Pulled)
		return nil
	case err != nil:
		st.result.Divergent++
		logger.Warnw("AE: Failed to read local block", "peer", st.peer.ID, "key", id.String(), "error", err.Error())
		return nil
	case local.Equal(remote):
		return nil
	}

	policy := e.core.policy
	switch {
	case policy.IsStale(local, remote):
		e.storeLocal(ctx, st, id, remote, &st.result.Replaced)
		return nil
	case policy.IsStale(remote, local):
		return e.send(ctx, st, id, local)
	default:
		st.result.Kept++
		st.result.Unresolved++
		logger.Warnw("AE: Keeping local block", "peer", st.peer.ID, "key", id.String(),
			"error", domain.ErrConflictUnresolved.Error())
		return nil
	}
}

// storeLocal writes a block obtained from the replica and bumps counter on
// success. Local failures leave the key divergent without failing the pass.
func (e *reconciler) storeLocal(ctx context.Context, st *checkrepState, id ring.ID, block domain.Block, counter *int) {
	err := e.core.blocks.store(ctx, id, block)
	switch {
	case err == nil:
		*counter++
		logger.Debugw("AE: Stored block from replica", "peer", st.peer.ID, "key", id.String())
	case errors.Is(err, domain.ErrStaleBlock):
		st.result.Kept++
	default:
		st.result.Divergent++
		logger.Warnw("AE: Failed to store block from replica", "peer", st.peer.ID, "key", id.String(), "error", err.Error())
	}
}
