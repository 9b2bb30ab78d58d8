package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"scorekit/core"
	"scorekit/engine"
	"scorekit/leaderboard"
)

// Store persists every board to a single JSON file.
// Suitable for demos and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed, keyed by BoardKey.String()
	data map[string][]core.ScoreEntry
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[string][]core.ScoreEntry{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw map[string][]core.ScoreEntry
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, entries := range raw {
		leaderboard.Sort(entries)
		if len(entries) > core.MaxEntries {
			entries = entries[:core.MaxEntries]
		}
		s.data[k] = entries
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Submit applies the insert in memory and writes the file; if the write fails
// the in-memory board is restored.
func (s *Store) Submit(ctx context.Context, key core.BoardKey, entry core.ScoreEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key.String()
	prev, existed := s.data[k]
	s.data[k] = leaderboard.Retain(prev, entry.Clone(), core.MaxEntries)
	if err := s.persist(); err != nil {
		if existed {
			s.data[k] = prev
		} else {
			delete(s.data, k)
		}
		return err
	}
	return nil
}

func (s *Store) Query(ctx context.Context, key core.BoardKey, limit int) ([]core.ScoreEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.data[key.String()]
	if limit > len(entries) {
		limit = len(entries)
	}
	if limit <= 0 {
		return []core.ScoreEntry{}, nil
	}
	out := make([]core.ScoreEntry, limit)
	for i := range out {
		out[i] = entries[i].Clone()
	}
	return out, nil
}

var _ engine.Store = (*Store)(nil)
