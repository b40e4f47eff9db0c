package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/spidey/internal/config"
	"github.com/nao1215/spidey/internal/database"
	"github.com/nao1215/spidey/internal/report"
)

// historyTimeLayout formats session start times in listings.
const historyTimeLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [seed]",
		Short: "List, show or delete recorded crawl sessions",
		Long: `History reads the sessions that 'spidey crawl' recorded in the local
database.

Without flags it lists every session, newest first. A seed argument limits
the list to crawls of that seed.

Examples:
  # List all recorded sessions
  spidey history

  # List the sessions of one seed
  spidey history https://example.com

  # Show the full report of session 3
  spidey history --show 3

  # Show session 3 as JSON
  spidey history --show 3 --json

  # Delete session 3
  spidey history --delete 3`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64P("show", "s", 0,
		"Show the report of the session with this ID")
	cmd.Flags().Int64("delete", 0,
		"Delete the session with this ID")
	cmd.Flags().String("db-dir", "",
		"Directory of the session history database (default: XDG data directory)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output the shown session in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the shown session in Markdown format")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	showID, err := flags.GetInt64("show")
	if err != nil {
		return err
	}
	deleteID, err := flags.GetInt64("delete")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	// Validate before opening the database so a bad invocation
	// leaves nothing behind.
	if showID != 0 && deleteID != 0 {
		return errors.New("--show and --delete cannot be used together")
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(filepath.Join(dbDir, database.FileName)); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, "No crawl sessions recorded yet.")
		fmt.Fprintln(out, "\nUse 'spidey crawl <url>' to crawl a site.")
		return nil
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	switch {
	case showID != 0:
		session, err := db.GetSession(ctx, showID)
		if err != nil {
			return fmt.Errorf("failed to load session %d: %w", showID, err)
		}
		if session == nil {
			return fmt.Errorf("session %d not found", showID)
		}
		downloads, err := db.ListDownloads(ctx, showID)
		if err != nil {
			return fmt.Errorf("failed to load downloads of session %d: %w", showID, err)
		}

		cfg := config.NewConfig()
		cfg.JSONReport = jsonOutput
		cfg.MarkdownReport = markdownOutput
		cfg.Verbose = true
		_, err = newReportWriter(cfg, out).Write(report.NewReport(session, downloads, nil))
		return err

	case deleteID != 0:
		deleted, err := db.DeleteSession(ctx, deleteID)
		if err != nil {
			return fmt.Errorf("failed to delete session %d: %w", deleteID, err)
		}
		if !deleted {
			return fmt.Errorf("session %d not found", deleteID)
		}
		fmt.Fprintf(out, "Deleted session %d\n", deleteID)
		return nil

	default:
		seed := ""
		if len(args) > 0 {
			seed = args[0]
		}
		return listSessions(cmd, db, seed, out)
	}
}

// listSessions prints a table of stored sessions.
func listSessions(cmd *cobra.Command, db *database.SessionDB, seed string, out io.Writer) error {
	sessions, err := db.ListSessions(cmd.Context(), seed)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		if seed != "" {
			fmt.Fprintf(out, "No crawl sessions found for %s\n", seed)
		} else {
			fmt.Fprintln(out, "No crawl sessions recorded yet.")
		}
		fmt.Fprintln(out, "\nUse 'spidey crawl <url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawl sessions (%d):\n\n", len(sessions))
	fmt.Fprintf(out, "  %-6s  %-19s  %-5s  %-6s  %-9s  %s\n", "ID", "Started", "Depth", "Pages", "Transport", "Seed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 68))
	for _, s := range sessions {
		transport := s.Transport
		if transport == "" {
			transport = "-"
		}
		fmt.Fprintf(out, "  %-6d  %-19s  %-5d  %-6d  %-9s  %s\n",
			s.ID,
			s.StartedAt.Local().Format(historyTimeLayout),
			s.Depth,
			s.Pages,
			transport,
			s.Seed,
		)
	}
	fmt.Fprintln(out, "\nUse 'spidey history --show <id>' to see the report of a session.")

	return nil
}
