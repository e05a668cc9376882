// Package journal keeps a local audit trail of settled mutations.
// Writes are best-effort: a journal failure is logged by the caller
// and never affects the mutation outcome.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// ErrClosed is returned when the journal is used after Close.
var ErrClosed = errors.New("journal is closed")

// Outcome classifies how a mutation settled.
type Outcome string

const (
	OutcomeCommitted  Outcome = "committed"
	OutcomeRolledBack Outcome = "rolled_back"
	OutcomeConflict   Outcome = "conflict"
)

// Entry is one journal record.
type Entry struct {
	ID        string          `json:"id"`
	DealID    string          `json:"deal_id"`
	Operation string          `json:"operation"`
	ActorID   string          `json:"actor_id"`
	Outcome   Outcome         `json:"outcome"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Journal is the SQLite-backed mutation audit log.
type Journal struct {
	db     *sql.DB
	closed bool
}

// Open creates or opens the journal database at dbPath, applying
// pragmas and pending migrations.
func Open(dbPath string) (*Journal, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Journal{db: db}, nil
}

// enablePragmas sets SQLite pragmas for performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	j.closed = true
	return j.db.Close()
}

// Append records one settled mutation. The entry gets a fresh ULID
// and timestamp; Detail may be nil.
func (j *Journal) Append(ctx context.Context, entry Entry) (string, error) {
	if j.closed {
		return "", ErrClosed
	}

	entry.ID = ulid.Make().String()
	entry.CreatedAt = time.Now().UTC()

	var detail any
	if len(entry.Detail) > 0 {
		detail = string(entry.Detail)
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO mutation_journal (id, deal_id, operation, actor_id, outcome, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.DealID, entry.Operation, entry.ActorID, string(entry.Outcome), detail,
		entry.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("append journal entry: %w", err)
	}

	return entry.ID, nil
}

// Tail returns the most recent entries, newest first. A dealID filter
// of "" returns entries for all deals.
func (j *Journal) Tail(ctx context.Context, dealID string, limit int) ([]Entry, error) {
	if j.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, deal_id, operation, actor_id, outcome, detail, created_at
		FROM mutation_journal`
	args := []any{}
	if dealID != "" {
		query += " WHERE deal_id = ?"
		args = append(args, dealID)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var outcome string
		var detail sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &e.DealID, &e.Operation, &e.ActorID, &outcome, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}

		e.Outcome = Outcome(outcome)
		if detail.Valid {
			e.Detail = json.RawMessage(detail.String)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = t
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// CountByOutcome returns how many entries settled with each outcome.
func (j *Journal) CountByOutcome(ctx context.Context) (map[Outcome]int, error) {
	if j.closed {
		return nil, ErrClosed
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT outcome, COUNT(*) FROM mutation_journal GROUP BY outcome
	`)
	if err != nil {
		return nil, fmt.Errorf("count journal entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan journal count: %w", err)
		}
		counts[Outcome(outcome)] = n
	}

	return counts, rows.Err()
}
