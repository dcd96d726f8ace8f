// Package checkpoint provides durable CheckpointStore backends: a one-file-
// per-thread JSON store and a sqlite store.
package checkpoint

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/danshapiro/meridian/internal/flow"
)

// FileStore keeps one JSON document per thread under a directory. Writes go
// through a temp file plus rename so a crash never leaves a torn checkpoint,
// and each document carries a content checksum verified on load.
type FileStore struct {
	dir string
}

// fileDoc is the on-disk envelope. Checksum covers the raw state bytes.
type fileDoc struct {
	ThreadID string          `json:"thread_id"`
	State    json.RawMessage `json:"state"`
	Checksum string          `json:"checksum"`
	SavedAt  time.Time       `json:"saved_at"`
}

func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("checkpoint directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) Load(ctx context.Context, threadID string) (*flow.ThreadState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(f.path(threadID))
	if os.IsNotExist(err) {
		return nil, flow.ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var doc fileDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode checkpoint for thread %s: %w", threadID, err)
	}
	if doc.ThreadID != "" && doc.ThreadID != threadID {
		// Sanitized filename collision with another thread id.
		return nil, flow.ErrThreadNotFound
	}
	if sum := checksum(doc.State); sum != doc.Checksum {
		return nil, fmt.Errorf("checkpoint for thread %s is corrupt: checksum mismatch", threadID)
	}
	var st flow.ThreadState
	if err := json.Unmarshal(doc.State, &st); err != nil {
		return nil, fmt.Errorf("decode checkpoint state for thread %s: %w", threadID, err)
	}
	return &st, nil
}

func (f *FileStore) Save(ctx context.Context, threadID string, state *flow.ThreadState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stateRaw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint state: %w", err)
	}
	doc := fileDoc{
		ThreadID: threadID,
		State:    stateRaw,
		Checksum: checksum(stateRaw),
		SavedAt:  time.Now().UTC(),
	}
	// No indentation: re-indenting the embedded raw state would change the
	// bytes the checksum covers.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	final := f.path(threadID)
	tmp, err := os.CreateTemp(f.dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

func (f *FileStore) List(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(f.dir, name))
		if err != nil {
			return nil, fmt.Errorf("list checkpoints: %w", err)
		}
		// Thread ids are sanitized into filenames, so the real id comes from
		// the document.
		var doc fileDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("list checkpoints: decode %s: %w", name, err)
		}
		ok, err := flow.MatchThreadID(pattern, doc.ThreadID)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, doc.ThreadID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *FileStore) Close() error {
	return nil
}

// path maps a thread id to its checkpoint file. The hash suffix keeps the
// mapping injective: ids that sanitize to the same name ("a/b" and "a_b")
// still get distinct files.
func (f *FileStore) path(threadID string) string {
	name := sanitizeThreadID(threadID) + "-" + checksum([]byte(threadID))[:8]
	return filepath.Join(f.dir, name+".json")
}

// sanitizeThreadID maps a thread id to a safe filename component.
func sanitizeThreadID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "thread"
	}
	return sb.String()
}

func checksum(raw []byte) string {
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
