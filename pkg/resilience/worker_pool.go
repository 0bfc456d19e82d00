package resilience

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrWorkerPoolClosed = errors.New("worker pool is closed")
	ErrWorkerPoolFull   = errors.New("worker pool queue is full")
)

// WorkerPool runs submitted jobs on a fixed number of goroutines.
// Jobs may carry a key; at most one job per key is queued or running at a time.
type WorkerPool struct {
	jobs   chan func()
	closed bool
	mu     sync.RWMutex
	once   sync.Once
	wg     sync.WaitGroup

	keysMu   sync.Mutex
	inFlight map[string]struct{}
}

func NewWorkerPool(workers, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}

	p := &WorkerPool{
		jobs:     make(chan func(), queueSize),
		inFlight: make(map[string]struct{}),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}

	return p
}

// Submit queues job, blocking while the queue is full.
func (p *WorkerPool) Submit(ctx context.Context, job func()) error {
	if job == nil {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrWorkerPoolClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.jobs <- job:
		return nil
	}
}

// TrySubmit queues job under key without blocking. It returns false with a
// nil error when a job for the same key is still queued or running.
func (p *WorkerPool) TrySubmit(key string, job func()) (bool, error) {
	if job == nil {
		return false, nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false, ErrWorkerPoolClosed
	}

	p.keysMu.Lock()
	if _, busy := p.inFlight[key]; busy {
		p.keysMu.Unlock()
		return false, nil
	}
	p.inFlight[key] = struct{}{}
	p.keysMu.Unlock()

	wrapped := func() {
		defer p.release(key)
		job()
	}

	select {
	case p.jobs <- wrapped:
		return true, nil
	default:
		p.release(key)
		return false, ErrWorkerPoolFull
	}
}

// InFlight reports whether a job for key is queued or running.
func (p *WorkerPool) InFlight(key string) bool {
	p.keysMu.Lock()
	defer p.keysMu.Unlock()
	_, busy := p.inFlight[key]
	return busy
}

func (p *WorkerPool) release(key string) {
	p.keysMu.Lock()
	delete(p.inFlight, key)
	p.keysMu.Unlock()
}

// Close stops accepting jobs. Already queued jobs still run.
func (p *WorkerPool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
	})
}

func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
