package api

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/genproto/googleapis/api/httpbody"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"go.klb.dev/clippo/internal/entry"
	"go.klb.dev/clippo/internal/history"
	"go.klb.dev/clippo/internal/message"
)

// Remover deletes the persisted history after a reset.
type Remover interface {
	Remove(version uint64) error
}

// Clipboard receives restored entries.
type Clipboard interface {
	Write(e entry.Entry) error
}

// Service implements HistoryServer over a history store.
type Service struct {
	store   *history.Store
	remover Remover
	clip    Clipboard
}

// NewService returns a Service. clip may be nil, in which case Restore
// answers FailedPrecondition.
func NewService(store *history.Store, remover Remover, clip Clipboard) *Service {
	return &Service{store: store, remover: remover, clip: clip}
}

// GetHistory implements HistoryService.GetHistory.
func (s *Service) GetHistory(ctx context.Context, _ *emptypb.Empty) (*httpbody.HttpBody, error) {
	snap, err := s.store.Snapshot()
	if err != nil {
		return nil, storeErr(err)
	}
	body, err := historyBody(snap.Entries)
	if err != nil {
		return nil, err
	}
	slog.Debug("api: history served", "peer", addrFromCtx(ctx), "entries", len(snap.Entries))
	return body, nil
}

// ResetHistory implements HistoryService.ResetHistory.
func (s *Service) ResetHistory(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.UInt64Value, error) {
	version, err := s.store.Clear()
	if err != nil {
		return nil, storeErr(err)
	}
	if err := s.remover.Remove(version); err != nil {
		return nil, status.Errorf(codes.Internal, "remove history file: %v", err)
	}
	slog.Info("api: history cleared", "peer", addrFromCtx(ctx))
	return wrapperspb.UInt64(version), nil
}

// Restore implements HistoryService.Restore.
func (s *Service) Restore(ctx context.Context, req *wrapperspb.UInt32Value) (*wrapperspb.StringValue, error) {
	if s.clip == nil {
		return nil, status.Error(codes.FailedPrecondition, "no clipboard backend")
	}
	snap, err := s.store.Snapshot()
	if err != nil {
		return nil, storeErr(err)
	}
	i := int(req.GetValue())
	if i >= len(snap.Entries) {
		return nil, status.Errorf(codes.NotFound, "no history entry at index %d (history has %d)", i, len(snap.Entries))
	}
	e := snap.Entries[i]
	if err := s.clip.Write(e); err != nil {
		return nil, status.Errorf(codes.Internal, "write clipboard: %v", err)
	}
	history.LogEntry("api: entry restored to clipboard", e, len(snap.Entries))
	return wrapperspb.String(e.String()), nil
}

// Watch implements HistoryService.Watch. The first message is the current
// history; later messages follow changes, coalesced when the client is slow.
func (s *Service) Watch(_ *emptypb.Empty, stream grpc.ServerStreamingServer[httpbody.HttpBody]) error {
	changed, cancel := s.store.Subscribe()
	defer cancel()

	addr := addrFromCtx(stream.Context())
	slog.Info("api: watch started", "peer", addr)
	defer slog.Info("api: watch ended", "peer", addr)

	var (
		sent  uint64
		first = true
	)
	for {
		snap, err := s.store.Snapshot()
		if err != nil {
			return storeErr(err)
		}
		if first || snap.Version != sent {
			body, err := historyBody(snap.Entries)
			if err != nil {
				return err
			}
			if err := stream.Send(body); err != nil {
				return err
			}
			sent, first = snap.Version, false
		}
		select {
		case <-stream.Context().Done():
			return nil
		case <-changed:
		}
	}
}

func historyBody(entries []entry.Entry) (*httpbody.HttpBody, error) {
	b, err := message.Encode(entries)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode history: %v", err)
	}
	return &httpbody.HttpBody{ContentType: "application/json", Data: b}, nil
}

func storeErr(err error) error {
	if errors.Is(err, history.ErrPoisoned) {
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func addrFromCtx(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}
