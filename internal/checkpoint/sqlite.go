package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danshapiro/meridian/internal/flow"
)

// SQLiteStore keeps the latest checkpoint per thread in a local sqlite
// database. WAL keeps readers live during writes; a single connection keeps
// the pure-Go driver serialized.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" {
		return nil, errors.New("missing db path")
	}
	if dir := filepath.Dir(p); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return fmt.Errorf("pragma journal_mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=3000;`); err != nil {
		return fmt.Errorf("pragma busy_timeout: %w", err)
	}
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS thread_checkpoints (
	thread_id  TEXT PRIMARY KEY,
	state_json TEXT NOT NULL,
	checksum   TEXT NOT NULL,
	saved_at   INTEGER NOT NULL
);`)
	if err != nil {
		return fmt.Errorf("create thread_checkpoints: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, threadID string) (*flow.ThreadState, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	var stateJSON, sum string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json, checksum FROM thread_checkpoints WHERE thread_id = ?`, threadID,
	).Scan(&stateJSON, &sum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, flow.ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if checksum([]byte(stateJSON)) != sum {
		return nil, fmt.Errorf("checkpoint for thread %s is corrupt: checksum mismatch", threadID)
	}
	var st flow.ThreadState
	if err := json.Unmarshal([]byte(stateJSON), &st); err != nil {
		return nil, fmt.Errorf("decode checkpoint state for thread %s: %w", threadID, err)
	}
	return &st, nil
}

func (s *SQLiteStore) Save(ctx context.Context, threadID string, state *flow.ThreadState) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO thread_checkpoints (thread_id, state_json, checksum, saved_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(thread_id) DO UPDATE SET
	state_json = excluded.state_json,
	checksum   = excluded.checksum,
	saved_at   = excluded.saved_at`,
		threadID, string(raw), checksum(raw), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, pattern string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT thread_id FROM thread_checkpoints`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list checkpoints: %w", err)
		}
		ok, err := flow.MatchThreadID(pattern, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
