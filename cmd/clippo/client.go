package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"go.klb.dev/clippo/internal/api"
	"go.klb.dev/clippo/internal/control"
	"go.klb.dev/clippo/internal/entry"
	"go.klb.dev/clippo/internal/ipc"
	"go.klb.dev/clippo/internal/message"
)

const requestTimeout = 10 * time.Second

func newHistoryCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the daemon's clipboard history",
		Long: `Sends GET_HISTORY to the control port and prints the entries, most
recent first. --json prints the reply exactly as received.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runHistory(v) },
	}

	f := cmd.Flags()
	f.String("control-addr", control.DefaultAddr, "control listener address")
	f.Bool("json", false, "output the raw encoded history")
	addConfigFlag(cmd)

	return cmd
}

func runHistory(v *viper.Viper) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	c := control.NewClient(v.GetString("control-addr"))
	if v.GetBool("json") {
		b, err := c.Raw(ctx, string(message.CommandGetHistory))
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	}

	entries, err := c.GetHistory(ctx)
	if err != nil {
		return err
	}
	printHistory(os.Stdout, entries)
	return nil
}

func newResetCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "reset",
		Short:   "Clear the daemon's history and delete the history file",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			if err := control.NewClient(v.GetString("control-addr")).Reset(ctx); err != nil {
				return err
			}
			fmt.Println("history cleared")
			return nil
		},
	}

	cmd.Flags().String("control-addr", control.DefaultAddr, "control listener address")
	addConfigFlag(cmd)

	return cmd
}

func newWatchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream history changes from the daemon API",
		Long: `Opens a Watch stream on the daemon's gRPC API and prints the history
whenever it changes, until interrupted.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runWatch(v) },
	}

	f := cmd.Flags()
	f.String("api-addr", api.DefaultAddr, "daemon API address")
	f.Bool("json", false, "print each update as the encoded history")
	addConfigFlag(cmd)

	return cmd
}

func runWatch(v *viper.Viper) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c, err := dialAPI(v)
	if err != nil {
		return err
	}
	defer c.Close()

	jsonOut := v.GetBool("json")
	return c.Watch(ctx, func(entries []entry.Entry) error {
		if jsonOut {
			b, err := message.Encode(entries)
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		}
		fmt.Printf("── %s · %d entries\n", time.Now().Format("15:04:05"), len(entries))
		printHistory(os.Stdout, entries)
		return nil
	})
}

func newRestoreCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "restore INDEX",
		Short: "Put a history entry back on the clipboard",
		Long: `Asks the daemon to write history entry INDEX (0 = most recent, as shown
by "clippo history") back to the system clipboard.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, args []string) error {
			i, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("index %q: %w", args[0], err)
			}
			c, err := dialAPI(v)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			desc, err := c.Restore(ctx, uint32(i))
			if err != nil {
				return err
			}
			fmt.Printf("restored %d: %s\n", i, desc)
			return nil
		},
	}

	cmd.Flags().String("api-addr", api.DefaultAddr, "daemon API address")
	addConfigFlag(cmd)

	return cmd
}

// dialAPI connects over the IPC socket when a daemon is listening there and
// --api-addr was not given explicitly, otherwise over TCP.
func dialAPI(v *viper.Viper) (*api.Client, error) {
	if !v.IsSet("api-addr") && ipc.IsRunning() {
		c, err := api.Dial("passthrough:///clippo-ipc", grpc.WithContextDialer(ipc.DialContext))
		if err == nil {
			return c, nil
		}
	}
	return api.Dial(v.GetString("api-addr"))
}

// printHistory writes one line per entry: index, kind, size, description.
func printHistory(w io.Writer, entries []entry.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "History is empty.")
		return
	}
	tw := tabwriter.NewWriter(w, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "#\tKIND\tSIZE\tCONTENT\n")
	for i, e := range entries {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, e.Kind(), fmtSize(e.Size()), oneLine(e))
	}
	_ = tw.Flush()
}

func oneLine(e entry.Entry) string {
	txt, ok := e.Text()
	if !ok {
		return e.String()
	}
	out := make([]rune, 0, 60)
	for _, r := range txt {
		if len(out) == 60 {
			return string(out) + "…"
		}
		switch r {
		case '\n', '\r', '\t':
			r = ' '
		}
		out = append(out, r)
	}
	return string(out)
}

func fmtSize(n int) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%dB", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1fK", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1fM", float64(n)/(1024*1024))
	}
}
