// Package rpc describes the budgetgrid.v1.AccountMap gRPC service.
// Messages are google.protobuf.Struct values built by package wire,
// so the service descriptor is written by hand instead of generated.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "budgetgrid.v1.AccountMap"

	MethodGet       = "Get"
	MethodPut       = "Put"
	MethodRemove    = "Remove"
	MethodValues    = "Values"
	MethodLock      = "Lock"
	MethodUnlock    = "Unlock"
	MethodMembers   = "Members"
	MethodSubscribe = "Subscribe"
)

func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// AccountMapServer is implemented by grid nodes.
type AccountMapServer interface {
	Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Put(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Remove(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Values(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Lock(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Unlock(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Members(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	// Subscribe streams one change per message until the client goes away.
	Subscribe(in *structpb.Struct, stream grpc.ServerStream) error
}

type unaryCall func(AccountMapServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccountMapServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodGet, AccountMapServer.Get),
		unary(MethodPut, AccountMapServer.Put),
		unary(MethodRemove, AccountMapServer.Remove),
		unary(MethodValues, AccountMapServer.Values),
		unary(MethodLock, AccountMapServer.Lock),
		unary(MethodUnlock, AccountMapServer.Unlock),
		unary(MethodMembers, AccountMapServer.Members),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodSubscribe,
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "budgetgrid/v1/account_map",
}

// SubscribeStreamDesc is the client side description of the Subscribe stream.
var SubscribeStreamDesc = &ServiceDesc.Streams[0]

func RegisterAccountMapServer(s grpc.ServiceRegistrar, srv AccountMapServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unary(method string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AccountMapServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AccountMapServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(AccountMapServer).Subscribe(in, stream)
}
