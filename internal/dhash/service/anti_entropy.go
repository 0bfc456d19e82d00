package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/pkg/resilience"
	"github.com/anthanhphan/go-dhash-replication/pkg/shard"
	"github.com/anthanhphan/gosdk/logger"
	"golang.org/x/sync/errgroup"
)

// antiEntropyScheduler fires a reconciliation pass against every replica on
// a fixed interval. A replica whose previous pass is still running is skipped.
type antiEntropyScheduler struct {
	core *ReplicatedService

	mu      sync.Mutex
	running bool
	pool    *resilience.WorkerPool
	cancel  context.CancelFunc
	done    chan struct{}

	// claims holds the replicas with a pass queued or running, whether it
	// came from a tick or from runOnce.
	claimsMu sync.Mutex
	claims   map[string]struct{}
}

func newAntiEntropyScheduler(core *ReplicatedService) *antiEntropyScheduler {
	return &antiEntropyScheduler{core: core, claims: make(map[string]struct{})}
}

// claim marks peer as busy. It returns false when a pass against peer is
// already queued or running.
func (s *antiEntropyScheduler) claim(peer string) bool {
	s.claimsMu.Lock()
	defer s.claimsMu.Unlock()
	if _, busy := s.claims[peer]; busy {
		return false
	}
	s.claims[peer] = struct{}{}
	return true
}

func (s *antiEntropyScheduler) release(peer string) {
	s.claimsMu.Lock()
	delete(s.claims, peer)
	s.claimsMu.Unlock()
}

// start launches the timer loop. With randomize the first tick lands
// uniformly in [0, interval) so that nodes started together spread out.
func (s *antiEntropyScheduler) start(randomize bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.pool = resilience.NewWorkerPool(s.core.opts.Workers, s.core.opts.Workers*4)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	first := s.core.opts.Interval
	if randomize {
		first = time.Duration(rand.Int64N(int64(s.core.opts.Interval)))
	}

	go s.loop(ctx, s.pool, first, s.done)
	logger.Infow("AE: Scheduler started", "interval", s.core.opts.Interval.String(), "first_tick", first.String())
}

// stop halts the timer, cancels running passes and waits for them.
func (s *antiEntropyScheduler) stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done, pool := s.cancel, s.done, s.pool
	s.mu.Unlock()

	cancel()
	<-done
	pool.Close()
	pool.Wait()
	logger.Infow("AE: Scheduler stopped")
}

func (s *antiEntropyScheduler) loop(ctx context.Context, pool *resilience.WorkerPool, first time.Duration, done chan struct{}) {
	defer close(done)

	timer := s.core.clock.NewTimer(first)
	defer timer.Stop()
	refresh := s.core.clock.NewTicker(s.core.opts.RefreshInterval)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
			s.tick(ctx, pool)
			timer.Reset(s.core.opts.Interval)
		case <-refresh.Chan():
			if err := s.core.replicas.refresh(ctx); err != nil {
				logger.Warnw("AE: Periodic replica refresh failed", "error", err.Error())
			}
		}
	}
}

// tick submits one pass per replica.
func (s *antiEntropyScheduler) tick(ctx context.Context, pool *resilience.WorkerPool) {
	set := s.core.replicas.currentSet()
	if set.Empty() {
		if err := s.core.replicas.refresh(ctx); err != nil {
			logger.Warnw("AE: Replica refresh failed", "error", err.Error())
		}
		return
	}

	for _, peer := range set.Nodes {
		if !s.claim(peer.ID) {
			logger.Debugw("AE: Previous pass still running", "peer", peer.ID)
			continue
		}
		submitted, err := pool.TrySubmit(peer.ID, func() {
			defer s.release(peer.ID)
			s.runPass(ctx, peer)
		})
		switch {
		case err != nil:
			s.release(peer.ID)
			logger.Warnw("AE: Could not schedule pass", "peer", peer.ID, "error", err.Error())
		case !submitted:
			s.release(peer.ID)
			logger.Debugw("AE: Previous pass still running", "peer", peer.ID)
		}
	}
}

func (s *antiEntropyScheduler) runPass(ctx context.Context, peer shard.Node) domain.PassResult {
	res, err := s.core.reconciler.reconcile(ctx, peer)
	if errors.Is(err, domain.ErrNotReplica) {
		if rerr := s.core.replicas.refresh(ctx); rerr != nil {
			logger.Warnw("AE: Replica refresh failed", "peer", peer.ID, "error", rerr.Error())
		}
	}
	return res
}

// runOnce reconciles with every current replica now and waits for the
// results. Replicas with a pass already queued or running are reported as
// skipped, and ticks skip replicas that runOnce is working on.
func (s *antiEntropyScheduler) runOnce(ctx context.Context) []domain.PassResult {
	set := s.core.replicas.currentSet()
	if set.Empty() {
		if err := s.core.replicas.refresh(ctx); err != nil {
			logger.Warnw("AE: Replica refresh failed", "error", err.Error())
			return nil
		}
		set = s.core.replicas.currentSet()
	}

	results := make([]domain.PassResult, len(set.Nodes))
	var g errgroup.Group
	g.SetLimit(s.core.opts.Workers)
	for i, peer := range set.Nodes {
		if !s.claim(peer.ID) {
			results[i] = domain.PassResult{Peer: peer.ID, Outcome: domain.OutcomeSkipped}
			continue
		}
		g.Go(func() error {
			defer s.release(peer.ID)
			results[i] = s.runPass(ctx, peer)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
