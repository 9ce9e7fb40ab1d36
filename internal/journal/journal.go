// Package journal keeps a SQLite record of completed bucket operations.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/eteran/bucketd/internal/hooks"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations
var migrationsFS embed.FS

// DefaultListLimit is used by List when no positive limit is given.
const DefaultListLimit = 100

// Entry is one journal row.
type Entry struct {
	ID          int64     `json:"id"`
	RequestID   string    `json:"requestId,omitempty"`
	Slot        string    `json:"slot"`
	Method      string    `json:"method,omitempty"`
	Key         string    `json:"key"`
	FileName    string    `json:"fileName,omitempty"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType,omitempty"`
	Status      int       `json:"status,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Journal stores entries in a SQLite database.
type Journal struct {
	db *sql.DB

	// RequestID extracts a request identifier from a hook context. It may be
	// nil.
	RequestID func(ctx context.Context) string
}

// initSchema applies all SQL files in the embedded migrations in
// lexicographical order.
func initSchema(ctx context.Context, db *sql.DB) error {
	return fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		content, readError := migrationsFS.ReadFile(path)
		if readError != nil {
			return fmt.Errorf("error reading SQL file: %w", readError)
		}

		slog.Info("Running migration", "path", path)
		_, execError := db.ExecContext(ctx, string(content))
		return execError
	})
}

// Open opens or creates the journal database at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path must not be empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record inserts e. A zero CreatedAt is replaced with the current time.
func (j *Journal) Record(ctx context.Context, e Entry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	res, err := j.db.ExecContext(ctx,
		`INSERT INTO uploads(request_id, slot, method, key, file_name, size, content_type, status, error, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.Slot, e.Method, e.Key, e.FileName, e.Size,
		nullString(e.ContentType), e.Status, nullString(e.Error), e.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert journal entry: %w", err)
	}

	return res.LastInsertId()
}

// List returns the most recent entries, newest first.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, request_id, slot, method, key, file_name, size, content_type, status, error, created_at
		 FROM uploads ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e           Entry
			contentType sql.NullString
			errText     sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Slot, &e.Method, &e.Key, &e.FileName, &e.Size, &contentType, &e.Status, &errText, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.ContentType = contentType.String
		e.Error = errText.String
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Hook returns a hook that records every invocation of the slot it is bound
// to. Journal failures are logged and never fail the operation.
func (j *Journal) Hook() hooks.Hook {
	return hooks.Func(func(ctx context.Context, slot hooks.Slot, d *hooks.Domain) error {
		e := Entry{
			Slot:        string(slot),
			Method:      d.Method,
			Key:         d.Key,
			FileName:    d.FileName,
			Size:        d.FileSize,
			ContentType: d.ContentType,
		}
		if j.RequestID != nil {
			e.RequestID = j.RequestID(ctx)
		}
		if d.Response != nil {
			e.Status = d.Response.StatusCode
		}
		if d.Err != nil {
			e.Error = d.Err.Error()
		}

		if _, err := j.Record(ctx, e); err != nil {
			slog.Error("Failed to record journal entry", "key", d.Key, "error", err)
		}

		// The journal only observes. In the uploaded slot the store result is
		// handed back unchanged.
		if slot == hooks.Uploaded {
			return d.Err
		}
		return nil
	})
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
