// Package api serves the history over gRPC and a JSON HTTP gateway on one
// loopback port. It complements the line-oriented control port with a change
// stream and clipboard restore.
//
// The service is described by hand rather than generated: every message is a
// well-known type (Empty, UInt32Value, UInt64Value, StringValue) or an
// HttpBody carrying the encoded history, so no .proto compilation step exists.
package api

import (
	"context"

	"google.golang.org/genproto/googleapis/api/httpbody"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "clippo.v1.HistoryService"

const (
	methodGetHistory   = "/" + ServiceName + "/GetHistory"
	methodResetHistory = "/" + ServiceName + "/ResetHistory"
	methodRestore      = "/" + ServiceName + "/Restore"
	methodWatch        = "/" + ServiceName + "/Watch"
)

// HistoryServer is the server side of clippo.v1.HistoryService.
type HistoryServer interface {
	// GetHistory returns the encoded history as application/json.
	GetHistory(context.Context, *emptypb.Empty) (*httpbody.HttpBody, error)
	// ResetHistory clears the history and returns the new store version.
	ResetHistory(context.Context, *emptypb.Empty) (*wrapperspb.UInt64Value, error)
	// Restore writes the entry at the given index back to the clipboard.
	Restore(context.Context, *wrapperspb.UInt32Value) (*wrapperspb.StringValue, error)
	// Watch streams the encoded history now and after every change.
	Watch(*emptypb.Empty, grpc.ServerStreamingServer[httpbody.HttpBody]) error
}

// ServiceDesc describes HistoryService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HistoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetHistory", Handler: getHistoryHandler},
		{MethodName: "ResetHistory", Handler: resetHistoryHandler},
		{MethodName: "Restore", Handler: restoreHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "clippo/v1/history.proto",
}

// Register adds srv to s.
func Register(s grpc.ServiceRegistrar, srv HistoryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func getHistoryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HistoryServer).GetHistory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetHistory}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(HistoryServer).GetHistory(ctx, req.(*emptypb.Empty))
	})
}

func resetHistoryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HistoryServer).ResetHistory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodResetHistory}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(HistoryServer).ResetHistory(ctx, req.(*emptypb.Empty))
	})
}

func restoreHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.UInt32Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HistoryServer).Restore(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRestore}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(HistoryServer).Restore(ctx, req.(*wrapperspb.UInt32Value))
	})
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(HistoryServer).Watch(in, &grpc.GenericServerStream[emptypb.Empty, httpbody.HttpBody]{ServerStream: stream})
}
