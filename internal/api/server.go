package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/soheilhy/cmux"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// DefaultAddr is the API listen address.
const DefaultAddr = "127.0.0.1:7880"

// NewGateway returns an HTTP mux exposing srv as JSON:
//
//	GET  /v1/history                  encoded history
//	POST /v1/history/reset            clear, returns the new version
//	POST /v1/history/{index}/restore  write entry back to the clipboard
func NewGateway(srv HistoryServer) (*gwruntime.ServeMux, error) {
	mux := gwruntime.NewServeMux()

	routes := []struct {
		method, pattern string
		call            func(r *http.Request, params map[string]string) (proto.Message, error)
	}{
		{"GET", "/v1/history", func(r *http.Request, _ map[string]string) (proto.Message, error) {
			return srv.GetHistory(r.Context(), &emptypb.Empty{})
		}},
		{"POST", "/v1/history/reset", func(r *http.Request, _ map[string]string) (proto.Message, error) {
			return srv.ResetHistory(r.Context(), &emptypb.Empty{})
		}},
		{"POST", "/v1/history/{index}/restore", func(r *http.Request, params map[string]string) (proto.Message, error) {
			i, err := strconv.ParseUint(params["index"], 10, 32)
			if err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "bad index %q", params["index"])
			}
			return srv.Restore(r.Context(), wrapperspb.UInt32(uint32(i)))
		}},
	}

	for _, rt := range routes {
		call := rt.call
		err := mux.HandlePath(rt.method, rt.pattern, func(w http.ResponseWriter, r *http.Request, params map[string]string) {
			ctx := gwruntime.NewServerMetadataContext(r.Context(), gwruntime.ServerMetadata{})
			_, outbound := gwruntime.MarshalerForRequest(mux, r)
			resp, err := call(r, params)
			if err != nil {
				gwruntime.HTTPError(ctx, mux, outbound, w, r, err)
				return
			}
			gwruntime.ForwardResponseMessage(ctx, mux, outbound, w, r, resp)
		})
		if err != nil {
			return nil, fmt.Errorf("gateway route %s %s: %w", rt.method, rt.pattern, err)
		}
	}
	return mux, nil
}

// Serve runs the gRPC service and its HTTP gateway on ln until ctx is
// cancelled. gRPC connections (HTTP/2 with content-type application/grpc)
// and HTTP/1 requests share the listener through cmux.
func Serve(ctx context.Context, ln net.Listener, srv HistoryServer) error {
	gw, err := NewGateway(srv)
	if err != nil {
		return err
	}

	gs := grpc.NewServer()
	Register(gs, srv)
	hs := &http.Server{Handler: gw}

	m := cmux.New(ln)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.HTTP1Fast())

	go func() {
		if err := gs.Serve(grpcL); err != nil && ctx.Err() == nil {
			slog.Warn("api: grpc server stopped", "err", err)
		}
	}()
	go func() {
		if err := hs.Serve(httpL); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
			slog.Warn("api: http gateway stopped", "err", err)
		}
	}()

	stop := context.AfterFunc(ctx, func() {
		gs.Stop()
		_ = hs.Close()
		_ = ln.Close()
	})
	defer stop()

	slog.Info("api listening", "addr", ln.Addr())
	err = m.Serve()
	gs.Stop()
	_ = hs.Close()
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("api: %w", err)
}
