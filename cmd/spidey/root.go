package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for spidey.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spidey",
		Short: "Depth-limited web crawler that classifies the URLs it finds",
		Long: `spidey crawls a website from one or more seed URLs, up to a fixed number
of link hops, and classifies every URL found on each page: links, files,
images, audio, video, HTML, text, PDF, CSV and XML.

Classified files can be saved to disk, each page's classification can be
written as a CSV link graph, and every crawl is kept in a local SQLite
history that the history command can list and show again.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
