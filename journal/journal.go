// Package journal keeps an append-only show log in SQLite.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zenibako/cueforge/cuelist"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS show_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    at TEXT NOT NULL,
    kind TEXT NOT NULL,
    cue_id TEXT,
    detail TEXT
);
CREATE INDEX IF NOT EXISTS idx_show_log_kind ON show_log(kind);`

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
)

// Entry is one line of the show log.
type Entry struct {
	ID     int64
	At     time.Time
	Kind   string
	CueID  string
	Detail string
}

// Source is anything that publishes cue list events.
type Source interface {
	Subscribe(fn func(cuelist.Event)) (unsubscribe func())
}

// Journal manages show log persistence backed by SQLite.
type Journal struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Journal{db: db, path: path}, nil
}

// Path is the database file.
func (j *Journal) Path() string { return j.path }

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record appends an entry. A zero At is stamped with the current time.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return retryOnBusy(ctx, func() error {
		_, err := j.db.ExecContext(ctx,
			`INSERT INTO show_log (at, kind, cue_id, detail) VALUES (?, ?, ?, ?)`,
			e.At.UTC().Format(time.RFC3339Nano), e.Kind, nullable(e.CueID), nullable(e.Detail))
		if err != nil {
			return fmt.Errorf("insert show log entry: %w", err)
		}
		return nil
	})
}

// Entries returns up to limit entries, newest first. A limit of zero or
// less returns everything.
func (j *Journal) Entries(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, at, kind, cue_id, detail FROM show_log ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query show log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e             Entry
			at            string
			cueID, detail sql.NullString
		)
		if err := rows.Scan(&e.ID, &at, &e.Kind, &cueID, &detail); err != nil {
			return nil, fmt.Errorf("scan show log: %w", err)
		}
		if e.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			log.Warn("Unreadable show log timestamp", "id", e.ID, "at", at)
		}
		e.CueID = cueID.String
		e.Detail = detail.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// Attach records the show-relevant events of src until the returned
// function is called.
func (j *Journal) Attach(src Source) (detach func()) {
	return src.Subscribe(func(ev cuelist.Event) {
		e, ok := entryFor(ev)
		if !ok {
			return
		}
		if err := j.Record(context.Background(), e); err != nil {
			log.Error("Failed to journal event", "kind", ev.Kind, "error", err)
		}
	})
}

func entryFor(ev cuelist.Event) (Entry, bool) {
	e := Entry{At: ev.At, Kind: string(ev.Kind), CueID: ev.CueID}
	switch ev.Kind {
	case cuelist.EventGo, cuelist.EventExecutionStarted, cuelist.EventExecutionFinished, cuelist.EventStandByChanged:
		e.Detail = cueDetail(ev.Number)
	case cuelist.EventExecutionFailed:
		parts := []string{cueDetail(ev.Number)}
		if ev.Err != nil {
			parts = append(parts, ev.Err.Error())
		}
		e.Detail = strings.TrimSpace(strings.Join(parts, " "))
	case cuelist.EventAllCuesStopped, cuelist.EventPanic:
		if ev.Count > 0 {
			e.Detail = fmt.Sprintf("%d cues", ev.Count)
		}
	case cuelist.EventWorkspaceSaved, cuelist.EventWorkspaceOpened:
		e.Detail = ev.Path
	default:
		return Entry{}, false
	}
	return e, true
}

func cueDetail(number string) string {
	if number == "" {
		return ""
	}
	return "cue " + number
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == 5 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return lastErr
}
