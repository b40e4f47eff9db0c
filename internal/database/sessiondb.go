package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/spidey/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "spidey.db"

// SessionDB stores crawl sessions, their scrapes and download records in a
// single SQLite file.
type SessionDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures SessionDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
// With CreateIfNotExists false a missing database is an error and nothing
// is created on disk.
func Open(dbDir string, opts Options) (*SessionDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file. Pragmas in the DSN apply to
	// every pooled connection, not just the first one.
	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := dbPath + "?mode=" + mode + "&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &SessionDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Path returns the database file path.
func (sdb *SessionDB) Path() string {
	return sdb.dbPath
}

// Close closes the database connection.
func (sdb *SessionDB) Close() error {
	return sdb.db.Close()
}

func (sdb *SessionDB) createTables() error {
	schema := `
	-- One row per crawl run
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		seed TEXT NOT NULL,
		depth INTEGER NOT NULL,
		stay_internal INTEGER NOT NULL,
		transport TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		pages INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_seed ON sessions(seed);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);

	-- Scrapes keep the order in which pages were appended
	CREATE TABLE IF NOT EXISTS scrapes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		source TEXT NOT NULL,
		fetch_error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_scrapes_session ON scrapes(session_id);

	CREATE TABLE IF NOT EXISTS scrape_urls (
		scrape_id INTEGER NOT NULL REFERENCES scrapes(id) ON DELETE CASCADE,
		category TEXT NOT NULL,
		url TEXT NOT NULL,
		UNIQUE(scrape_id, category, url)
	);

	CREATE INDEX IF NOT EXISTS idx_scrape_urls_url ON scrape_urls(url);

	CREATE TABLE IF NOT EXISTS downloads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		source TEXT NOT NULL,
		category TEXT NOT NULL,
		url TEXT NOT NULL,
		path TEXT,
		size INTEGER NOT NULL DEFAULT 0,
		digest TEXT,
		metadata TEXT,
		error TEXT,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_downloads_session ON downloads(session_id);
	CREATE INDEX IF NOT EXISTS idx_downloads_digest ON downloads(digest);
	`

	_, err := sdb.db.ExecContext(context.Background(), schema)
	return err
}

// SessionSummary describes a stored session without its scrapes.
type SessionSummary struct {
	ID           int64
	Name         string
	Seed         string
	Depth        int
	StayInternal bool
	Transport    string
	StartedAt    time.Time
	FinishedAt   time.Time
	Pages        int
}

// SaveSession stores session with all of its scrapes in one transaction and
// returns the new session ID.
func (sdb *SessionDB) SaveSession(ctx context.Context, session *model.Session) (id int64, err error) {
	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // original error is more useful
		}
	}()

	scrapes := session.Results()
	result, err := tx.ExecContext(ctx, `
	INSERT INTO sessions (name, seed, depth, stay_internal, transport, started_at, finished_at, pages)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		session.Name,
		session.Seed,
		session.Depth,
		session.StayInternal,
		session.Transport,
		formatTimestamp(session.StartedAt),
		formatTimestamp(session.FinishedAt),
		len(scrapes),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}
	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read session id: %w", err)
	}

	scrapeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scrapes (session_id, position, source, fetch_error) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare scrape insert: %w", err)
	}
	defer scrapeStmt.Close()

	urlStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO scrape_urls (scrape_id, category, url) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare url insert: %w", err)
	}
	defer urlStmt.Close()

	for pos, scrape := range scrapes {
		res, err := scrapeStmt.ExecContext(ctx, id, pos, scrape.Source, scrape.FetchError)
		if err != nil {
			return 0, fmt.Errorf("failed to insert scrape %s: %w", scrape.Source, err)
		}
		scrapeID, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to read scrape id: %w", err)
		}
		for _, c := range model.Categories {
			for _, u := range scrape.Set(c).Sorted() {
				if _, err := urlStmt.ExecContext(ctx, scrapeID, string(c), u); err != nil {
					return 0, fmt.Errorf("failed to insert url %s: %w", u, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit session: %w", err)
	}
	return id, nil
}

// SaveDownloads stores download records for the session with sessionID.
func (sdb *SessionDB) SaveDownloads(ctx context.Context, sessionID int64, downloads []model.Download) (err error) {
	if len(downloads) == 0 {
		return nil
	}

	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // original error is more useful
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO downloads (session_id, source, category, url, path, size, digest, metadata, error, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare download insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range downloads {
		var metadata any
		if len(d.Metadata) > 0 {
			data, err := json.Marshal(d.Metadata)
			if err != nil {
				return fmt.Errorf("failed to serialize metadata: %w", err)
			}
			metadata = string(data)
		}
		if _, err := stmt.ExecContext(ctx,
			sessionID,
			d.Source,
			string(d.Category),
			d.URL,
			d.Path,
			d.Size,
			d.Digest,
			metadata,
			d.Error,
			formatTimestamp(d.Timestamp),
		); err != nil {
			return fmt.Errorf("failed to insert download %s: %w", d.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit downloads: %w", err)
	}
	return nil
}

// ListSessions returns stored sessions, newest first. A non-empty seed
// restricts the list to runs of that seed.
func (sdb *SessionDB) ListSessions(ctx context.Context, seed string) ([]SessionSummary, error) {
	query := `
	SELECT id, name, seed, depth, stay_internal, transport, started_at, finished_at, pages
	FROM sessions
	WHERE 1=1
	`
	args := make([]any, 0, 1)
	if seed != "" {
		query += " AND seed = ?"
		args = append(args, seed)
	}
	query += " ORDER BY started_at DESC, id DESC"

	rows, err := sdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var results []SessionSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, summary)
	}
	return results, rows.Err()
}

// GetSession loads the session with id including its scrapes in their
// original order. It returns (nil, nil) when no such session exists.
func (sdb *SessionDB) GetSession(ctx context.Context, id int64) (*model.Session, error) {
	row := sdb.db.QueryRowContext(ctx, `
	SELECT id, name, seed, depth, stay_internal, transport, started_at, finished_at, pages
	FROM sessions
	WHERE id = ?
	`, id)
	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	session := model.NewSession(summary.Seed, summary.Depth, summary.StayInternal)
	session.Name = summary.Name
	session.Transport = summary.Transport
	session.StartedAt = summary.StartedAt
	session.FinishedAt = summary.FinishedAt

	rows, err := sdb.db.QueryContext(ctx, `
	SELECT s.id, s.source, COALESCE(s.fetch_error, ''), u.category, u.url
	FROM scrapes s
	LEFT JOIN scrape_urls u ON u.scrape_id = s.id
	WHERE s.session_id = ?
	ORDER BY s.position, u.category, u.url
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load scrapes: %w", err)
	}
	defer rows.Close()

	var (
		current   *model.Scrape
		currentID int64 = -1
	)
	for rows.Next() {
		var (
			scrapeID   int64
			source     string
			fetchError string
			category   sql.NullString
			url        sql.NullString
		)
		if err := rows.Scan(&scrapeID, &source, &fetchError, &category, &url); err != nil {
			return nil, fmt.Errorf("failed to scan scrape: %w", err)
		}
		if scrapeID != currentID {
			current = model.NewScrape(source)
			current.FetchError = fetchError
			currentID = scrapeID
			session.MarkVisited(source)
			session.Append(current)
		}
		if !category.Valid {
			continue
		}
		if c, ok := model.ParseCategory(category.String); ok {
			current.Set(c).Add(url.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load scrapes: %w", err)
	}

	return session, nil
}

// ListDownloads returns the download records of the session with sessionID
// in insertion order.
func (sdb *SessionDB) ListDownloads(ctx context.Context, sessionID int64) ([]model.Download, error) {
	rows, err := sdb.db.QueryContext(ctx, `
	SELECT source, category, url, COALESCE(path, ''), size, COALESCE(digest, ''),
		metadata, COALESCE(error, ''), timestamp
	FROM downloads
	WHERE session_id = ?
	ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	defer rows.Close()

	var results []model.Download
	for rows.Next() {
		var (
			d         model.Download
			category  string
			metadata  sql.NullString
			timestamp string
		)
		if err := rows.Scan(&d.Source, &category, &d.URL, &d.Path, &d.Size, &d.Digest,
			&metadata, &d.Error, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		d.Category = model.Category(category)
		d.Timestamp = parseTimestamp(timestamp)
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &d.Metadata); err != nil {
				d.Metadata = nil
			}
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// DeleteSession removes a session with its scrapes and downloads.
// It reports whether a session was removed.
func (sdb *SessionDB) DeleteSession(ctx context.Context, id int64) (bool, error) {
	result, err := sdb.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (SessionSummary, error) {
	var (
		s         SessionSummary
		transport sql.NullString
		started   string
		finished  sql.NullString
	)
	err := row.Scan(&s.ID, &s.Name, &s.Seed, &s.Depth, &s.StayInternal, &transport,
		&started, &finished, &s.Pages)
	if errors.Is(err, sql.ErrNoRows) {
		return s, err
	}
	if err != nil {
		return s, fmt.Errorf("failed to scan session: %w", err)
	}
	s.Transport = transport.String
	s.StartedAt = parseTimestamp(started)
	if finished.Valid {
		s.FinishedAt = parseTimestamp(finished.String)
	}
	return s, nil
}

// timestampLayout is fixed width so stored values sort chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each of timestampFormats and returns the zero time
// if none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
