package grpc_handler

import (
	"context"
	"errors"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/port"
	"github.com/anthanhphan/go-dhash-replication/pkg/merkle"
	"github.com/anthanhphan/gosdk/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// maxMsgSize leaves room for a full block plus framing.
const maxMsgSize = 2 * domain.MaxBlockSize

// Server serves the replication RPCs of one node.
type Server struct {
	service port.ReplicationService
}

// NewServer creates a new gRPC server.
func NewServer(service port.ReplicationService) *Server {
	return &Server{
		service: service,
	}
}

// NewGRPCServer builds a grpc.Server speaking the replication codec with s
// registered on it.
func NewGRPCServer(s *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ForceServerCodec(wireCodec{}),
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	}, opts...)
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs
}

// Register adds the replication service to gs.
func (s *Server) Register(gs grpc.ServiceRegistrar) {
	gs.RegisterService(&replicationServiceDesc, s)
}

func (s *Server) RootDigest(ctx context.Context, req *rootDigestRequest) (*rootDigestResponse, error) {
	info, err := s.service.RootDigest(ctx, req.Arc)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rootDigestResponse{Info: info}, nil
}

func (s *Server) Children(ctx context.Context, req *rangeRequest) (*childrenResponse, error) {
	children, err := s.service.Children(ctx, req.Range)
	if err != nil {
		return nil, toStatus(err)
	}
	return &childrenResponse{Children: children}, nil
}

func (s *Server) LeafEntries(ctx context.Context, req *rangeRequest) (*leafEntriesResponse, error) {
	entries, err := s.service.LeafEntries(ctx, req.Range)
	if err != nil {
		return nil, toStatus(err)
	}
	return &leafEntriesResponse{Entries: entries}, nil
}

func (s *Server) GetBlock(ctx context.Context, req *getBlockRequest) (*wrapperspb.BytesValue, error) {
	block, err := s.service.Fetch(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(block), nil
}

func (s *Server) PutBlock(ctx context.Context, req *putBlockRequest) (*emptypb.Empty, error) {
	if err := s.service.Store(ctx, req.ID, domain.Block(req.Block)); err != nil {
		if !errors.Is(err, domain.ErrStaleBlock) {
			logger.Warnw("PutBlock rejected", "id", req.ID.String(), "error", err.Error())
		}
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// toStatus maps domain errors onto gRPC codes. The client maps them back.
func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrBlockNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrStaleBlock):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrInvalidBlock), errors.Is(err, merkle.ErrInvalidRange):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrRoutingFailure):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
