package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clippo/internal/api"
	"go.klb.dev/clippo/internal/clip"
	"go.klb.dev/clippo/internal/control"
	"go.klb.dev/clippo/internal/history"
	"go.klb.dev/clippo/internal/ipc"
	"go.klb.dev/clippo/internal/monitor"
	"go.klb.dev/clippo/internal/persist"
	"go.klb.dev/clippo/internal/push"
)

func newDaemonCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Watch the clipboard and serve the history",
		Long: `Starts the clipboard history daemon.

The daemon loads the history file, samples the clipboard every poll interval,
pushes the full history to the presentation process after each new entry, and
serves GET_HISTORY / RESET_HISTORY on the control port. When --api-addr is set
the same history is also available over gRPC and HTTP on that port, and the
gRPC API is always served on the owner-only IPC socket unless --no-ipc.

The daemon exits non-zero if the control listener fails five times in a row.

Config file search order:
  /etc/clippo/clippo.toml
  $HOME/.config/clippo/clippo.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → CLIPPO_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runDaemon(v) },
	}

	f := cmd.Flags()
	f.String("push-addr", push.DefaultAddr, "presentation process address the history is pushed to")
	f.String("control-addr", control.DefaultAddr, "control listener address (GET_HISTORY / RESET_HISTORY)")
	f.String("api-addr", api.DefaultAddr, "gRPC + HTTP API address (empty = disabled)")
	f.Bool("no-ipc", false, "do not serve the API on the local IPC socket")
	f.String("history-file", persist.DefaultPath(), "history file")
	f.Int("max-history", history.DefaultLimit, "maximum number of history entries")
	f.Duration("poll-interval", monitor.DefaultInterval, "clipboard sampling interval")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runDaemon(v *viper.Viper) error {
	if err := setupLogging(v); err != nil {
		return err
	}
	if err := checkDaemonConfig(v); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	file := persist.New(v.GetString("history-file"))
	initial, src := file.Load()
	store := history.New(v.GetInt("max-history"), initial)

	slog.Info("clippo daemon starting",
		"version", Version,
		"history_file", file.Path(),
		"history_source", src,
		"entries", store.Len(),
		"max_history", store.Limit(),
	)

	backend := clip.New()
	defer backend.Close()
	slog.Info("clipboard backend", "name", backend.Name())

	controlAddr := v.GetString("control-addr")
	ctlLn, err := net.Listen("tcp", controlAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", controlAddr, err)
	}

	var wg sync.WaitGroup
	ctlErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctlErr <- control.New(store, file).Serve(ctx, ctlLn)
	}()

	svc := api.NewService(store, file, backend)
	serveAPI := func(ln net.Listener) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := api.Serve(ctx, ln, svc); err != nil {
				slog.Warn("API stopped", "addr", ln.Addr(), "err", err)
			}
		}()
	}
	if apiAddr := v.GetString("api-addr"); apiAddr != "" {
		apiLn, err := net.Listen("tcp", apiAddr)
		if err != nil {
			slog.Warn("API unavailable", "addr", apiAddr, "err", err)
		} else {
			serveAPI(apiLn)
		}
	}
	// IPC socket for the watch/restore CLI tools
	if !v.GetBool("no-ipc") {
		ipcLn, err := ipc.Listen()
		if err != nil {
			slog.Warn("IPC socket unavailable", "err", err)
		} else {
			slog.Info("IPC socket listening", "path", ipc.SocketPath())
			serveAPI(ipcLn)
		}
	}

	pusher := push.New(v.GetString("push-addr"))
	mon := monitor.New(backend, store, pusher, file, v.GetDuration("poll-interval"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		mon.Run(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case runErr = <-ctlErr:
	}
	stop()
	wg.Wait()

	if runErr != nil {
		if errors.Is(runErr, control.ErrExhausted) {
			slog.Error("control listener gave up, exiting", "err", runErr)
		}
		return runErr
	}
	return nil
}
