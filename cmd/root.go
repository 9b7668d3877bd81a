// Package cmd wires the agent-memory-backend binary's cobra subcommands:
// serve (the default), migrate, and version.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X github.com/agentmemory/backend/cmd.Version=v1.0.0".
var Version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "memoryd",
	Short: "Persistent cross-session memory backend for cooperating agents",
	Long: "memoryd stores project/session/task state, routes inter-agent messages, " +
		"and fans real-time events out to WebSocket clients over a single Postgres store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("memoryd %s\n", Version)
		},
	}
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
