// Package catalog keeps an index of captured photos and recordings in SQLite.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"camsession/internal/domain"
)

// timeFormat is fixed width so stored timestamps order as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Store implements domain.MediaCatalog using SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the catalog database at dbPath and runs the
// schema migration.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("create catalog dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	// One connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog db: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS media (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id   TEXT NOT NULL,
			kind        TEXT NOT NULL,
			path        TEXT NOT NULL UNIQUE,
			size_bytes  INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS media_device_created ON media (device_id, created_at);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts rec, or refreshes the row already stored for its path.
func (s *Store) Record(ctx context.Context, rec domain.MediaRecord) (int64, error) {
	if rec.Path == "" {
		return 0, domain.NewDomainError("Store.Record", domain.ErrInvalidInput, "media path is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO media (device_id, kind, path, size_bytes, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size_bytes = excluded.size_bytes,
			duration_ms = excluded.duration_ms
		RETURNING id`,
		rec.DeviceID, string(rec.Kind), rec.Path, rec.SizeBytes, rec.DurationMs,
		rec.CreatedAt.UTC().Format(timeFormat),
	).Scan(&id)
	if err != nil {
		return 0, domain.NewSubSystemError("catalog", "Store.Record", domain.ErrCatalogWrite, err.Error())
	}
	return id, nil
}

// List returns matching records, newest first.
func (s *Store) List(ctx context.Context, filter domain.MediaFilter) ([]domain.MediaRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.DeviceID != "" {
		where = append(where, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	query := "SELECT id, device_id, kind, path, size_bytes, duration_ms, created_at FROM media"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// DeleteOlderThan removes records created before cutoff and returns them so
// the caller can delete the files.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]domain.MediaRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin retention: %w", err)
	}
	defer tx.Rollback()

	ts := cutoff.UTC().Format(timeFormat)
	rows, err := tx.QueryContext(ctx,
		"SELECT id, device_id, kind, path, size_bytes, duration_ms, created_at FROM media WHERE created_at < ? ORDER BY id", ts)
	if err != nil {
		return nil, fmt.Errorf("select expired media: %w", err)
	}
	expired, err := scanRecords(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM media WHERE created_at < ?", ts); err != nil {
		return nil, domain.NewSubSystemError("catalog", "Store.DeleteOlderThan", domain.ErrCatalogWrite, err.Error())
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.NewSubSystemError("catalog", "Store.DeleteOlderThan", domain.ErrCatalogWrite, err.Error())
	}
	return expired, nil
}

func scanRecords(rows *sql.Rows) ([]domain.MediaRecord, error) {
	var out []domain.MediaRecord
	for rows.Next() {
		var (
			rec     domain.MediaRecord
			kind    string
			created string
		)
		if err := rows.Scan(&rec.ID, &rec.DeviceID, &kind, &rec.Path, &rec.SizeBytes, &rec.DurationMs, &created); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		rec.Kind = domain.MediaKind(kind)
		rec.CreatedAt, _ = time.Parse(timeFormat, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}
