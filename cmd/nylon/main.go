// Command nylon is the operator-facing entry point: network and node
// bootstrap subcommands plus the long-running mesh client itself.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// set by LDFLAGS
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:           "nylon",
		Short:         "nylon is a mesh networking client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevelFromEnv()})))
	}

	root.AddCommand(newNetCmd())
	root.AddCommand(newNodeCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// logLevelFromEnv maps NYLON_LOG to an slog.Level, defaulting to Info.
func logLevelFromEnv() slog.Level {
	switch os.Getenv("NYLON_LOG") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("version: %s\ncommit: %s\ndate: %s\n", version, commit, date)
			return nil
		},
	}
}
