// Package board is the SQLite-backed store behind the sticky-note board.
//
// The note/board CRUD application owns the same database file; this package
// exposes the read surface the AI relay needs (notes, their incoming
// connections, board system prompts and provider credentials) plus the few
// writes used to seed data from tests and the operator CLI.
package board

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// DefaultBoardID is the board created by migration. It always exists.
const DefaultBoardID int64 = 1

// ─── Types ───────────────────────────────────────────────────────────────────

// Note is a single sticky note.
type Note struct {
	ID        int64   `json:"id"`
	BoardID   int64   `json:"board_id"`
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	PositionX int     `json:"position_x"`
	PositionY int     `json:"position_y"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
	DeletedAt *string `json:"deleted_at,omitempty"`
}

// Connection is a directed edge: the source note informs the target note.
type Connection struct {
	ID        int64  `json:"id"`
	SourceID  int64  `json:"source_id"`
	TargetID  int64  `json:"target_id"`
	BoardID   int64  `json:"board_id"`
	CreatedAt string `json:"created_at"`
}

// Board groups notes and carries the system prompt used for AI requests.
type Board struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	SystemPrompt string `json:"system_prompt"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// ModelConfig holds the credentials and model list of one provider.
type ModelConfig struct {
	ID       int64    `json:"id"`
	Provider string   `json:"provider"`
	APIBase  string   `json:"api_base"`
	APIKey   string   `json:"api_key"`
	Models   []string `json:"models"`
}

// MaskedKey returns the API key with everything but its edges hidden.
func (m ModelConfig) MaskedKey() string {
	if m.APIKey == "" {
		return ""
	}
	if len(m.APIKey) <= 10 {
		return "***"
	}
	return m.APIKey[:3] + "***..." + m.APIKey[len(m.APIKey)-4:]
}

// CreateNoteParams holds the input for creating a note.
type CreateNoteParams struct {
	BoardID   int64  `json:"board_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	PositionX int    `json:"position_x"`
	PositionY int    `json:"position_y"`
	// CreatedAt overrides the creation timestamp (SQLite datetime text).
	// Empty means now.
	CreatedAt string `json:"created_at,omitempty"`
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds store configuration.
type Config struct {
	DataDir     string
	BusyTimeout time.Duration
}

// DefaultConfig returns the default configuration for the store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:     filepath.Join(home, ".stickyboard"),
		BusyTimeout: 5 * time.Second,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the board database backed by SQLite.
type Store struct {
	db    *sql.DB
	cfg   Config
	hooks storeHooks
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type storeHooks struct {
	exec  func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error)
	query func(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error)
}

func defaultStoreHooks() storeHooks {
	return storeHooks{
		exec: func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
			return db.ExecContext(ctx, query, args...)
		},
		query: func(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error) {
			return db.QueryContext(ctx, query, args...)
		},
	}
}

func (s *Store) execHook(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(ctx, db, query, args...)
	}
	return db.ExecContext(ctx, query, args...)
}

func (s *Store) queryHook(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error) {
	if s.hooks.query != nil {
		return s.hooks.query(ctx, db, query, args...)
	}
	return db.QueryContext(ctx, query, args...)
}

// New creates a Store with the given configuration.
// It creates the data directory if needed, opens SQLite with WAL mode,
// and runs migrations.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("board: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "notes.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("board: open database: %w", err)
	}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	// SQLite performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("board: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg, hooks: defaultStoreHooks()}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("board: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS boards (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			title         TEXT NOT NULL,
			system_prompt TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS notes (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			wall_id    INTEGER NOT NULL DEFAULT 1,
			title      TEXT    NOT NULL,
			content    TEXT    NOT NULL,
			position_x INTEGER NOT NULL DEFAULT 0,
			position_y INTEGER NOT NULL DEFAULT 0,
			created_at TEXT    NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT    NOT NULL DEFAULT (datetime('now')),
			deleted_at TEXT,
			FOREIGN KEY (wall_id) REFERENCES boards(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_notes_wall    ON notes(wall_id);
		CREATE INDEX IF NOT EXISTS idx_notes_deleted ON notes(deleted_at);
		CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created_at);

		CREATE TABLE IF NOT EXISTS connections (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			source_id  INTEGER NOT NULL,
			target_id  INTEGER NOT NULL,
			wall_id    INTEGER NOT NULL DEFAULT 1,
			created_at TEXT    NOT NULL DEFAULT (datetime('now')),
			FOREIGN KEY (source_id) REFERENCES notes(id)  ON DELETE CASCADE,
			FOREIGN KEY (target_id) REFERENCES notes(id)  ON DELETE CASCADE,
			FOREIGN KEY (wall_id)   REFERENCES boards(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_conn_target ON connections(target_id, wall_id);
		CREATE INDEX IF NOT EXISTS idx_conn_source ON connections(source_id);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_conn_unique ON connections(source_id, target_id, wall_id);

		CREATE TABLE IF NOT EXISTS model_configs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			provider   TEXT NOT NULL UNIQUE,
			api_base   TEXT NOT NULL,
			api_key    TEXT NOT NULL DEFAULT '',
			models     TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`
	if _, err := s.execHook(ctx, s.db, schema); err != nil {
		return err
	}

	// The default board must exist before any note can reference it.
	if _, err := s.execHook(ctx, s.db,
		`INSERT OR IGNORE INTO boards (id, title, system_prompt) VALUES (?, ?, '')`,
		DefaultBoardID, "Default board",
	); err != nil {
		return fmt.Errorf("seeding default board: %w", err)
	}

	return nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// isUniqueViolation checks if an error is a SQLite UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// now returns the current time in SQLite's datetime('now') format, so
// created_at values sort the same whichever side filled them in.
func now() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}
