// clippo: clipboard history daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "clippo",
		Short: "Clipboard history daemon",
		Long: `clippo watches the system clipboard, keeps the last 100 distinct entries
(text and images) and serves them to a presentation process over loopback.

Run "clippo daemon" in the background. The daemon pushes every new history
to 127.0.0.1:7878 and answers GET_HISTORY / RESET_HISTORY on 127.0.0.1:7879.
Use "clippo history/reset/watch/restore" as CLI tools against a running daemon.

Config file search order (first found wins):
  /etc/clippo/clippo.toml
  $HOME/.config/clippo/clippo.toml
  path supplied via --config

All flags can be set via CLIPPO_<FLAG> env vars or config-file keys.
See "clippo daemon --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newDaemonCmd(),
		newHistoryCmd(),
		newResetCmd(),
		newWatchCmd(),
		newRestoreCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("clippo %s\n", Version)
		},
	}
}
