// Package main implements campusctl, a CLI for the campusd HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	server string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "campusctl",
		Short: "CLI for the campusconnect match and greeting API",
		Long: `campusctl talks to a running campusd server.

It can fetch a welcome greeting, rank activities for a user, and manage
personal API keys. The matches command also works offline with the local
scorer.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:9090", "campusd server URL")

	root.AddCommand(
		newHealthCmd(opts),
		newGreetCmd(opts),
		newMatchesCmd(opts),
		newInsightsCmd(opts),
		newKeyCmd(opts),
	)
	return root
}

func printLine(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
}
