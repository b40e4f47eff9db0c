package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/nao1215/spidey/internal/config"
	"github.com/nao1215/spidey/internal/database"
	"github.com/nao1215/spidey/internal/model"
	"github.com/nao1215/spidey/internal/report"
)

// seedHistory stores one finished session with a download and returns
// the database directory and the session ID.
func seedHistory(t *testing.T) (string, int64) {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	session := model.NewSession("https://example.com", 1, true)
	session.Transport = "http"
	scrape := model.NewScrape("https://example.com")
	scrape.Links.Add("https://example.com/about")
	scrape.PDF.Add("https://example.com/a.pdf")
	scrape.Files.Add("https://example.com/a.pdf")
	session.MarkVisited(scrape.Source)
	session.Append(scrape)
	session.Finish()

	ctx := context.Background()
	id, err := db.SaveSession(ctx, session)
	if err != nil {
		t.Fatalf("save session: %v", err)
	}
	err = db.SaveDownloads(ctx, id, []model.Download{{
		Source:   "https://example.com",
		Category: model.CategoryPDF,
		URL:      "https://example.com/a.pdf",
		Path:     "/out/a.pdf",
		Size:     12,
	}})
	if err != nil {
		t.Fatalf("save downloads: %v", err)
	}
	return dir, id
}

func runHistory(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"history"}, args...))
	err := root.Execute()
	return stdout.String(), err
}

func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()
	if cmd.Use != "history [seed]" {
		t.Errorf("expected use 'history [seed]', got %q", cmd.Use)
	}
	for _, name := range []string{"show", "delete", "db-dir", "json", "markdown"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
}

func TestHistoryCommand(t *testing.T) {
	t.Parallel()

	t.Run("reports an empty history", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--db-dir", t.TempDir())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No crawl sessions recorded yet") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("lists sessions", func(t *testing.T) {
		t.Parallel()

		dir, id := seedHistory(t)
		out, err := runHistory(t, "--db-dir", dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Crawl sessions (1)") {
			t.Errorf("expected one session, got:\n%s", out)
		}
		if !strings.Contains(out, "https://example.com") || !strings.Contains(out, strconv.FormatInt(id, 10)) {
			t.Errorf("expected seed and id in listing, got:\n%s", out)
		}
	})

	t.Run("filters by seed", func(t *testing.T) {
		t.Parallel()

		dir, _ := seedHistory(t)
		out, err := runHistory(t, "--db-dir", dir, "https://other.example")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No crawl sessions found for https://other.example") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("shows a session as JSON", func(t *testing.T) {
		t.Parallel()

		dir, id := seedHistory(t)
		out, err := runHistory(t, "--db-dir", dir, "--show", strconv.FormatInt(id, 10), "-j")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got report.JSONReport
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("expected JSON report, got %v:\n%s", err, out)
		}
		if got.Session.Seed != "https://example.com" {
			t.Errorf("unexpected seed %q", got.Session.Seed)
		}
		if got.Totals[model.CategoryPDF] != 1 || got.Totals[model.CategoryLinks] != 1 {
			t.Errorf("unexpected totals %v", got.Totals)
		}
		if len(got.Downloads) != 1 {
			t.Errorf("expected stored download, got %d", len(got.Downloads))
		}
	})

	t.Run("shows a session as text", func(t *testing.T) {
		t.Parallel()

		dir, id := seedHistory(t)
		out, err := runHistory(t, "--db-dir", dir, "-s", strconv.FormatInt(id, 10))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "SPIDEY CRAWL REPORT") {
			t.Errorf("expected text report, got:\n%s", out)
		}
	})

	t.Run("unknown session is an error", func(t *testing.T) {
		t.Parallel()

		dir, _ := seedHistory(t)
		if _, err := runHistory(t, "--db-dir", dir, "--show", "999"); err == nil {
			t.Error("expected error for unknown session")
		}
	})

	t.Run("deletes a session", func(t *testing.T) {
		t.Parallel()

		dir, id := seedHistory(t)
		idArg := strconv.FormatInt(id, 10)

		out, err := runHistory(t, "--db-dir", dir, "--delete", idArg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Deleted session "+idArg) {
			t.Errorf("unexpected output:\n%s", out)
		}

		if _, err := runHistory(t, "--db-dir", dir, "--delete", idArg); err == nil {
			t.Error("expected error when deleting twice")
		}
	})

	t.Run("rejects conflicting flags", func(t *testing.T) {
		t.Parallel()

		dir, _ := seedHistory(t)
		if _, err := runHistory(t, "--db-dir", dir, "--show", "1", "--delete", "1"); err == nil {
			t.Error("expected error for --show with --delete")
		}
		if _, err := runHistory(t, "--db-dir", dir, "--show", "1", "-j", "-m"); !errors.Is(err, config.ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})
}
