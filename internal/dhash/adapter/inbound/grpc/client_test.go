package grpc_handler

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/service/mocks"
	"github.com/anthanhphan/go-dhash-replication/pkg/merkle"
	"github.com/anthanhphan/go-dhash-replication/pkg/resilience"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
)

const bufAddr = "passthrough:///bufnet"

func TestNormalizeRPCErr(t *testing.T) {
	t.Run("grpc canceled to context canceled", func(t *testing.T) {
		err := normalizeRPCErr(context.Background(), status.Error(codes.Canceled, "canceled"))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("eof with canceled context to context canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := normalizeRPCErr(ctx, io.EOF)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("unavailable stays failure", func(t *testing.T) {
		input := status.Error(codes.Unavailable, "unavailable")
		err := normalizeRPCErr(context.Background(), input)
		assert.Equal(t, codes.Unavailable, status.Code(err))
	})
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
		back error
	}{
		{"not found", domain.ErrBlockNotFound, codes.NotFound, domain.ErrBlockNotFound},
		{"stale", domain.ErrStaleBlock, codes.FailedPrecondition, domain.ErrStaleBlock},
		{"bad range", merkle.ErrInvalidRange, codes.InvalidArgument, merkle.ErrInvalidRange},
		{"routing", domain.ErrRoutingFailure, codes.Unavailable, nil},
		{"other", errors.New("disk on fire"), codes.Internal, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := toStatus(tt.err)
			assert.Equal(t, tt.code, status.Code(st))

			back := fromStatus(st)
			if tt.back != nil {
				assert.ErrorIs(t, back, tt.back)
				assert.False(t, isPeerFailure(back))
			} else {
				assert.True(t, isPeerFailure(back))
			}
		})
	}
}

func startServer(t *testing.T, svc *mocks.MockReplicationService) *ClientAdapter {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	gs := NewGRPCServer(NewServer(svc))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	client := NewClientAdapter(resilience.CircuitBreakerConfig{FailureThreshold: 2, OpenTimeout: time.Minute},
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClientServer_RoundTrip(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockReplicationService(ctrl)
	client := startServer(t, svc)
	ctx := context.Background()

	arc := ring.Arc{From: 10, To: 1 << 62}
	info := domain.RootInfo{
		Shape: merkle.DefaultShape,
		Cover: merkle.RangeDigest{Range: merkle.Range{Depth: 1, Prefix: 3}, Digest: merkle.HashBlock([]byte("x"))},
		Held:  ring.Arc{From: 7, To: 1 << 62},
	}
	svc.EXPECT().RootDigest(gomock.Any(), arc).Return(info, nil)

	got, err := client.RootDigest(ctx, bufAddr, arc)
	require.NoError(t, err)
	assert.Equal(t, info, got)

	r := merkle.Range{Depth: 2, Prefix: 0x31}
	children := []merkle.RangeDigest{
		{Range: merkle.Range{Depth: 3, Prefix: 0x310}},
		{Range: merkle.Range{Depth: 3, Prefix: 0x311}, Digest: merkle.HashBlock([]byte("y"))},
	}
	svc.EXPECT().Children(gomock.Any(), r).Return(children, nil)

	gotChildren, err := client.Children(ctx, bufAddr, r)
	require.NoError(t, err)
	assert.Equal(t, children, gotChildren)

	entries := []merkle.Entry{{ID: ring.MaxID, Digest: merkle.HashBlock([]byte("z"))}}
	svc.EXPECT().LeafEntries(gomock.Any(), r).Return(entries, nil)

	gotEntries, err := client.LeafEntries(ctx, bufAddr, r)
	require.NoError(t, err)
	assert.Equal(t, entries, gotEntries)

	block := domain.EncodeStamped(5, []byte("payload"))
	svc.EXPECT().Fetch(gomock.Any(), ring.ID(42)).Return(block, nil)

	gotBlock, err := client.GetBlock(ctx, bufAddr, 42)
	require.NoError(t, err)
	assert.Equal(t, block, gotBlock)

	svc.EXPECT().Store(gomock.Any(), ring.ID(43), block).Return(nil)
	require.NoError(t, client.PutBlock(ctx, bufAddr, 43, block))
}

func TestClientServer_DomainErrorsDoNotTripBreaker(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockReplicationService(ctrl)
	client := startServer(t, svc)
	ctx := context.Background()

	svc.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, domain.ErrBlockNotFound).Times(3)
	for i := 0; i < 3; i++ {
		_, err := client.GetBlock(ctx, bufAddr, 1)
		assert.ErrorIs(t, err, domain.ErrBlockNotFound)
	}

	svc.EXPECT().Store(gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.ErrStaleBlock).Times(3)
	for i := 0; i < 3; i++ {
		err := client.PutBlock(ctx, bufAddr, 1, domain.EncodeStamped(1, nil))
		assert.ErrorIs(t, err, domain.ErrStaleBlock)
	}

	assert.Equal(t, resilience.CircuitClosed, client.breakers.Get(bufAddr).State())
}

func TestClientServer_FailuresOpenBreaker(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockReplicationService(ctrl)
	client := startServer(t, svc)
	ctx := context.Background()

	svc.EXPECT().Children(gomock.Any(), gomock.Any()).Return(nil, errors.New("boom")).Times(2)
	for i := 0; i < 2; i++ {
		_, err := client.Children(ctx, bufAddr, merkle.RootRange)
		assert.Equal(t, codes.Internal, status.Code(err))
	}

	_, err := client.Children(ctx, bufAddr, merkle.RootRange)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}
