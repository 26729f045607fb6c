package api

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"go.klb.dev/clippo/internal/entry"
	"go.klb.dev/clippo/internal/history"
	"go.klb.dev/clippo/internal/message"
	"go.klb.dev/clippo/internal/persist"
)

type fakeClipboard struct {
	mu     sync.Mutex
	writes []entry.Entry
	err    error
}

func (c *fakeClipboard) Write(e entry.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.writes = append(c.writes, e)
	return nil
}

func (c *fakeClipboard) written() []entry.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]entry.Entry(nil), c.writes...)
}

func (c *fakeClipboard) fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func newService(t *testing.T, initial ...entry.Entry) (*Service, *history.Store, *fakeClipboard) {
	t.Helper()
	store := history.New(0, initial)
	cb := &fakeClipboard{}
	file := persist.New(filepath.Join(t.TempDir(), persist.DefaultFileName))
	return NewService(store, file, cb), store, cb
}

// bufClient serves svc over an in-memory listener and returns a client for it.
func bufClient(t *testing.T, svc HistoryServer) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	Register(gs, svc)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func TestGetHistory(t *testing.T) {
	svc, _, _ := newService(t, entry.RawText("b"), entry.NewImage(1, 1, []byte{1, 2, 3, 4}))
	c := bufClient(t, svc)

	got, err := c.GetHistory(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !got[0].Equal(entry.RawText("b")) || got[1].Kind() != entry.KindImage {
		t.Errorf("GetHistory = %v", got)
	}
}

func TestResetHistory(t *testing.T) {
	svc, store, _ := newService(t, entry.RawText("a"))
	c := bufClient(t, svc)

	v, err := c.Reset(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	snap, _ := store.Snapshot()
	if len(snap.Entries) != 0 {
		t.Errorf("history not cleared: %v", snap.Entries)
	}
	if v != snap.Version {
		t.Errorf("Reset returned version %d, store is at %d", v, snap.Version)
	}
}

func TestRestore(t *testing.T) {
	svc, store, cb := newService(t, entry.RawText("newest"), entry.RawText("older"))
	c := bufClient(t, svc)

	desc, err := c.Restore(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if desc != "older" {
		t.Errorf("description = %q", desc)
	}
	if w := cb.written(); len(w) != 1 || !w[0].Equal(entry.RawText("older")) {
		t.Errorf("clipboard writes = %v", w)
	}
	// Restoring never reorders the history.
	if e, _ := store.At(0); !e.Equal(entry.RawText("newest")) {
		t.Errorf("front entry = %v", e)
	}

	_, err = c.Restore(context.Background(), 2)
	if status.Code(err) != codes.NotFound {
		t.Errorf("out of range restore: %v, want NotFound", err)
	}

	cb.fail(errors.New("clipboard locked"))
	_, err = c.Restore(context.Background(), 0)
	if status.Code(err) != codes.Internal {
		t.Errorf("failed write: %v, want Internal", err)
	}
}

func TestRestoreWithoutClipboard(t *testing.T) {
	store := history.New(0, []entry.Entry{entry.RawText("a")})
	c := bufClient(t, NewService(store, persist.New(filepath.Join(t.TempDir(), "h.json")), nil))
	_, err := c.Restore(context.Background(), 0)
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("Restore = %v, want FailedPrecondition", err)
	}
}

func TestWatchFollowsChanges(t *testing.T) {
	svc, store, _ := newService(t)
	c := bufClient(t, svc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	updates := make(chan []entry.Entry, 4)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, func(entries []entry.Entry) error {
			updates <- entries
			return nil
		})
	}()

	first := <-updates
	if len(first) != 0 {
		t.Fatalf("first update = %v, want empty history", first)
	}
	if _, err := store.InsertFront(entry.RawText("hello")); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-updates:
		if len(got) != 1 || !got[0].Equal(entry.RawText("hello")) {
			t.Errorf("second update = %v", got)
		}
	case <-ctx.Done():
		t.Fatal("no update after insert")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch after cancel = %v", err)
	}
}

func TestWatchStopsOnCallbackError(t *testing.T) {
	svc, _, _ := newService(t, entry.RawText("a"))
	c := bufClient(t, svc)
	stop := errors.New("enough")
	err := c.Watch(context.Background(), func([]entry.Entry) error { return stop })
	if !errors.Is(err, stop) {
		t.Errorf("Watch = %v, want callback error", err)
	}
}

func TestGateway(t *testing.T) {
	svc, store, cb := newService(t, entry.RawText("x"), entry.RawText("y"))
	gw, err := NewGateway(svc)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(gw)
	defer srv.Close()

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
		check    func(t *testing.T, body string)
	}{
		{
			name: "history", method: "GET", path: "/v1/history", wantCode: http.StatusOK,
			check: func(t *testing.T, body string) {
				if body != `[{"Text":"x"},{"Text":"y"}]` {
					t.Errorf("body = %s", body)
				}
			},
		},
		{
			name: "restore", method: "POST", path: "/v1/history/1/restore", wantCode: http.StatusOK,
			check: func(t *testing.T, body string) {
				if body != `"y"` {
					t.Errorf("body = %s", body)
				}
				if n := len(cb.written()); n != 1 {
					t.Errorf("clipboard writes = %d", n)
				}
			},
		},
		{name: "restore bad index", method: "POST", path: "/v1/history/abc/restore", wantCode: http.StatusBadRequest},
		{name: "restore out of range", method: "POST", path: "/v1/history/7/restore", wantCode: http.StatusNotFound},
		{
			name: "reset", method: "POST", path: "/v1/history/reset", wantCode: http.StatusOK,
			check: func(t *testing.T, _ string) {
				if store.Len() != 0 {
					t.Errorf("history len %d after reset", store.Len())
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			if err != nil {
				t.Fatal(err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			b, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tt.wantCode, b)
			}
			if tt.check != nil {
				tt.check(t, strings.TrimSpace(string(b)))
			}
		})
	}
}

func TestServeMultiplexesGRPCAndHTTP(t *testing.T) {
	svc, _, _ := newService(t, entry.RawText("shared"))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- Serve(ctx, ln, svc) }()

	addr := ln.Addr().String()

	c, err := Dial(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	rpcCtx, rpcCancel := context.WithTimeout(ctx, 5*time.Second)
	defer rpcCancel()
	got, err := c.GetHistory(rpcCtx)
	if err != nil {
		t.Fatalf("grpc GetHistory: %v", err)
	}
	if len(got) != 1 || !got[0].Equal(entry.RawText("shared")) {
		t.Errorf("grpc history = %v", got)
	}

	resp, err := http.Get("http://" + addr + "/v1/history")
	if err != nil {
		t.Fatalf("http get: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	entries, _, err := message.Decode(b)
	if err != nil || len(entries) != 1 {
		t.Errorf("http history = %s (%v)", b, err)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Serve after cancel = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
