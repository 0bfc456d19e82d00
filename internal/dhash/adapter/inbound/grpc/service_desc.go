package grpc_handler

import (
	"context"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/pkg/merkle"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "dhash.v1.Replication"

const (
	methodRootDigest  = "/" + serviceName + "/RootDigest"
	methodChildren    = "/" + serviceName + "/Children"
	methodLeafEntries = "/" + serviceName + "/LeafEntries"
	methodGetBlock    = "/" + serviceName + "/GetBlock"
	methodPutBlock    = "/" + serviceName + "/PutBlock"
)

type rootDigestRequest struct {
	Arc ring.Arc `json:"arc"`
}

type rootDigestResponse struct {
	Info domain.RootInfo `json:"info"`
}

type rangeRequest struct {
	Range merkle.Range `json:"range"`
}

type childrenResponse struct {
	Children []merkle.RangeDigest `json:"children"`
}

type leafEntriesResponse struct {
	Entries []merkle.Entry `json:"entries"`
}

type getBlockRequest struct {
	ID ring.ID `json:"id"`
}

type putBlockRequest struct {
	ID    ring.ID `json:"id"`
	Block []byte  `json:"block"`
}

// replicationServer is the method set registered under serviceName.
type replicationServer interface {
	RootDigest(context.Context, *rootDigestRequest) (*rootDigestResponse, error)
	Children(context.Context, *rangeRequest) (*childrenResponse, error)
	LeafEntries(context.Context, *rangeRequest) (*leafEntriesResponse, error)
	GetBlock(context.Context, *getBlockRequest) (*wrapperspb.BytesValue, error)
	PutBlock(context.Context, *putBlockRequest) (*emptypb.Empty, error)
}

// unaryHandler adapts a typed method to grpc.MethodHandler.
func unaryHandler[Req, Resp any](method string, call func(replicationServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(replicationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(replicationServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var replicationServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*replicationServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RootDigest",
			Handler:    unaryHandler(methodRootDigest, replicationServer.RootDigest),
		},
		{
			MethodName: "Children",
			Handler:    unaryHandler(methodChildren, replicationServer.Children),
		},
		{
			MethodName: "LeafEntries",
			Handler:    unaryHandler(methodLeafEntries, replicationServer.LeafEntries),
		},
		{
			MethodName: "GetBlock",
			Handler:    unaryHandler(methodGetBlock, replicationServer.GetBlock),
		},
		{
			MethodName: "PutBlock",
			Handler:    unaryHandler(methodPutBlock, replicationServer.PutBlock),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dhash/v1/replication",
}
