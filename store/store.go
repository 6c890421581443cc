// Package store keeps transcriptions in SQLite so a voice message is only
// sent to a provider once.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("transcription not found")

const schema = `
CREATE TABLE IF NOT EXISTS transcriptions (
	id         TEXT PRIMARY KEY,
	digest     TEXT NOT NULL UNIQUE,
	provider   TEXT NOT NULL,
	language   TEXT NOT NULL DEFAULT '',
	text       TEXT NOT NULL,
	created_at REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS transcriptions_created ON transcriptions(created_at);
`

// Record is one stored transcription.
type Record struct {
	ID        string
	Digest    string
	Provider  string
	Language  string
	Text      string
	CreatedAt time.Time
}

type Store struct {
	db *sql.DB
}

// Open creates the database file and schema if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup returns the transcription stored for digest, or ErrNotFound.
func (s *Store) Lookup(ctx context.Context, digest string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, digest, provider, language, text, created_at
		FROM transcriptions
		WHERE digest = ?
	`, digest)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("scan transcription: %w", err)
	}
	return r, nil
}

// Save stores r, replacing any earlier transcription of the same audio.
// ID and CreatedAt are filled in when empty.
func (s *Store) Save(ctx context.Context, r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcriptions (id, digest, provider, language, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(digest) DO UPDATE SET
			provider = excluded.provider,
			language = excluded.language,
			text = excluded.text,
			created_at = excluded.created_at
	`, r.ID, r.Digest, r.Provider, r.Language, r.Text, unixFromTime(r.CreatedAt))
	if err != nil {
		return Record{}, fmt.Errorf("insert transcription: %w", err)
	}
	return r, nil
}

// Recent returns up to n transcriptions, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, digest, provider, language, text, created_at
		FROM transcriptions
		ORDER BY created_at DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query transcriptions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transcription: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var r Record
	var createdAt float64
	if err := row.Scan(&r.ID, &r.Digest, &r.Provider, &r.Language, &r.Text, &createdAt); err != nil {
		return Record{}, err
	}
	r.CreatedAt = timeFromUnix(createdAt)
	return r, nil
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
