package grpc_handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/port"
	"github.com/anthanhphan/go-dhash-replication/pkg/merkle"
	"github.com/anthanhphan/go-dhash-replication/pkg/resilience"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
	"github.com/anthanhphan/gosdk/logger"
)

const (
	digestTimeout = 3 * time.Second
	blockTimeout  = 10 * time.Second
)

// ClientAdapter implements port.PeerClient.
type ClientAdapter struct {
	mu       sync.RWMutex
	conns    map[string]*grpc.ClientConn
	breakers *resilience.BreakerSet
	dialOpts []grpc.DialOption
}

// NewClientAdapter creates a new replication client. opts are appended to the
// default dial options.
func NewClientAdapter(breaker resilience.CircuitBreakerConfig, opts ...grpc.DialOption) *ClientAdapter {
	if breaker.FailureThreshold <= 0 {
		breaker.FailureThreshold = 3
	}
	if breaker.SuccessThreshold <= 0 {
		breaker.SuccessThreshold = 2
	}
	if breaker.OpenTimeout <= 0 {
		breaker.OpenTimeout = 10 * time.Second
	}
	if breaker.HalfOpenMaxFlight <= 0 {
		breaker.HalfOpenMaxFlight = 1
	}
	breaker.IsFailure = isPeerFailure

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.ForceCodec(wireCodec{}),
			grpc.MaxCallRecvMsgSize(maxMsgSize),
			grpc.MaxCallSendMsgSize(maxMsgSize),
		),
	}, opts...)

	return &ClientAdapter{
		conns:    make(map[string]*grpc.ClientConn),
		breakers: resilience.NewBreakerSet(breaker),
		dialOpts: dialOpts,
	}
}

// Ensure ClientAdapter implements PeerClient
var _ port.PeerClient = (*ClientAdapter)(nil)

func (c *ClientAdapter) getConn(addr string) (*grpc.ClientConn, error) {
	c.mu.RLock()
	conn, ok := c.conns[addr]
	c.mu.RUnlock()
	if ok {
		return conn, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, ok := c.conns[addr]; ok {
		return conn, nil
	}

	newConn, err := grpc.NewClient(addr, c.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	c.conns[addr] = newConn
	return newConn, nil
}

func (c *ClientAdapter) RootDigest(ctx context.Context, addr string, arc ring.Arc) (domain.RootInfo, error) {
	callCtx, cancel := c.withDefaultTimeout(ctx, digestTimeout)
	defer cancel()

	var resp rootDigestResponse
	err := c.invoke(callCtx, addr, methodRootDigest, &rootDigestRequest{Arc: arc}, &resp)
	return resp.Info, err
}

func (c *ClientAdapter) Children(ctx context.Context, addr string, r merkle.Range) ([]merkle.RangeDigest, error) {
	callCtx, cancel := c.withDefaultTimeout(ctx, digestTimeout)
	defer cancel()

	var resp childrenResponse
	if err := c.invoke(callCtx, addr, methodChildren, &rangeRequest{Range: r}, &resp); err != nil {
		return nil, err
	}
	return resp.Children, nil
}

func (c *ClientAdapter) LeafEntries(ctx context.Context, addr string, r merkle.Range) ([]merkle.Entry, error) {
	callCtx, cancel := c.withDefaultTimeout(ctx, digestTimeout)
	defer cancel()

	var resp leafEntriesResponse
	if err := c.invoke(callCtx, addr, methodLeafEntries, &rangeRequest{Range: r}, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *ClientAdapter) GetBlock(ctx context.Context, addr string, id ring.ID) (domain.Block, error) {
	callCtx, cancel := c.withDefaultTimeout(ctx, blockTimeout)
	defer cancel()

	resp := new(wrapperspb.BytesValue)
	if err := c.invoke(callCtx, addr, methodGetBlock, &getBlockRequest{ID: id}, resp); err != nil {
		return nil, err
	}
	return domain.Block(resp.GetValue()), nil
}

func (c *ClientAdapter) PutBlock(ctx context.Context, addr string, id ring.ID, block domain.Block) error {
	callCtx, cancel := c.withDefaultTimeout(ctx, blockTimeout)
	defer cancel()

	return c.invoke(callCtx, addr, methodPutBlock, &putBlockRequest{ID: id, Block: block}, new(emptypb.Empty))
}

// invoke runs one unary call through the breaker of addr.
func (c *ClientAdapter) invoke(ctx context.Context, addr, method string, req, resp any) error {
	err := c.breakers.Execute(ctx, addr, func(execCtx context.Context) error {
		conn, err := c.getConn(addr)
		if err != nil {
			return normalizeRPCErr(execCtx, err)
		}
		return fromStatus(normalizeRPCErr(execCtx, conn.Invoke(execCtx, method, req, resp)))
	})
	if err == nil || !isPeerFailure(err) {
		return err
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		logger.Warnw("Replication RPC short-circuited", "op", method, "target", addr, "error", err.Error())
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	logger.Warnw("Replication RPC failed", "op", method, "target", addr, "error", err.Error())
	c.dropConn(addr)
	return err
}

func (c *ClientAdapter) withDefaultTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (c *ClientAdapter) dropConn(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[addr]; ok {
		_ = conn.Close()
		delete(c.conns, addr)
	}
}

// Close closes all connections.
func (c *ClientAdapter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for addr, conn := range c.conns {
		_ = conn.Close()
		delete(c.conns, addr)
	}
	return nil
}

// isPeerFailure reports whether err says something about the health of the
// peer rather than about the request.
func isPeerFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, domain.ErrBlockNotFound),
		errors.Is(err, domain.ErrStaleBlock),
		errors.Is(err, domain.ErrInvalidBlock),
		errors.Is(err, merkle.ErrInvalidRange):
		return false
	default:
		return true
	}
}

// fromStatus turns the codes produced by toStatus back into domain errors.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	s, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch s.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", domain.ErrBlockNotFound, s.Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", domain.ErrStaleBlock, s.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", merkle.ErrInvalidRange, s.Message())
	default:
		return err
	}
}

func normalizeRPCErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled {
		return context.Canceled
	}
	if errors.Is(err, io.EOF) && ctx != nil && errors.Is(ctx.Err(), context.Canceled) {
		return context.Canceled
	}
	return err
}
