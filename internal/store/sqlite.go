package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	// _txlock=immediate takes the write lock at BEGIN so read-then-write
	// transactions on the same frame serialize.
	dsn := dbPath + "?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(10000)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workspaces (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS workspace_members (
		workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
		user_id      TEXT NOT NULL,
		role         TEXT NOT NULL,
		created_at   TEXT NOT NULL,
		PRIMARY KEY (workspace_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS channels (
		id           TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
		title        TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_channels_workspace ON channels(workspace_id);

	CREATE TABLE IF NOT EXISTS frames (
		id         TEXT PRIMARY KEY,
		channel_id TEXT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
		title      TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_frames_channel ON frames(channel_id, sort_order);

	CREATE TABLE IF NOT EXISTS content_nodes (
		id           TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
		channel_id   TEXT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
		variant      TEXT NOT NULL,
		title        TEXT NOT NULL DEFAULT '',
		value        TEXT NOT NULL DEFAULT '',
		thought      TEXT NOT NULL DEFAULT '',
		x            REAL,
		y            REAL,
		width        REAL,
		height       REAL,
		threads      TEXT NOT NULL DEFAULT '[]',
		created_by   TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_content_workspace ON content_nodes(workspace_id);
	CREATE INDEX IF NOT EXISTS idx_content_channel ON content_nodes(channel_id);

	CREATE TABLE IF NOT EXISTS placements (
		frame_id    TEXT NOT NULL REFERENCES frames(id) ON DELETE CASCADE,
		instance_id TEXT NOT NULL,
		content_id  TEXT NOT NULL REFERENCES content_nodes(id) ON DELETE CASCADE,
		type        TEXT NOT NULL,
		x           REAL NOT NULL DEFAULT 0,
		y           REAL NOT NULL DEFAULT 0,
		width       REAL NOT NULL DEFAULT 0,
		height      REAL NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		UNIQUE (frame_id, instance_id)
	);
	CREATE INDEX IF NOT EXISTS idx_placements_content ON placements(content_id);

	-- No uniqueness on (frame_id, source, target) or (frame_id, id): the
	-- one-edge-per-pair rule is enforced inside write transactions.
	CREATE TABLE IF NOT EXISTS edges (
		seq           INTEGER PRIMARY KEY AUTOINCREMENT,
		id            TEXT NOT NULL,
		frame_id      TEXT NOT NULL REFERENCES frames(id) ON DELETE CASCADE,
		source        TEXT NOT NULL,
		target        TEXT NOT NULL,
		source_handle TEXT NOT NULL,
		target_handle TEXT NOT NULL,
		label         TEXT NOT NULL DEFAULT '',
		created_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_edges_frame_id ON edges(frame_id, id);
	CREATE INDEX IF NOT EXISTS idx_edges_pair ON edges(frame_id, source, target);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(frame_id, target);

	CREATE TABLE IF NOT EXISTS movement_batches (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL UNIQUE,
		frame_id   TEXT NOT NULL REFERENCES frames(id) ON DELETE CASCADE,
		snapshots  TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_movements_frame ON movement_batches(frame_id, seq);

	CREATE TABLE IF NOT EXISTS link_metadata (
		url          TEXT PRIMARY KEY,
		platform     TEXT NOT NULL DEFAULT '',
		title        TEXT NOT NULL DEFAULT '',
		description  TEXT NOT NULL DEFAULT '',
		author       TEXT NOT NULL DEFAULT '',
		site_name    TEXT NOT NULL DEFAULT '',
		published_at TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL,
		expires_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_link_metadata_expires ON link_metadata(expires_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// withTx runs fn inside a single write transaction.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func now() time.Time {
	return time.Now().UTC()
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s)
	return t
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

var ttlRegex = regexp.MustCompile(`^(\d+)([dhms])$`)

// ParseTTL parses a TTL string like "30d", "24h", "30m" into a time.Duration.
func ParseTTL(s string) (time.Duration, error) {
	m := ttlRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid format %q (use e.g. 30d, 24h, 30m, 60s)", s)
	}
	n, _ := strconv.Atoi(m[1])
	switch m[2] {
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "s":
		return time.Duration(n) * time.Second, nil
	}
	return 0, fmt.Errorf("unknown unit %q", m[2])
}
