package memory

import (
	"context"
	"log/slog"
	"sync"

	"scorekit/core"
	"scorekit/engine"
	"scorekit/leaderboard"
)

// Store is a process-local engine.Store. Its contents live only as long as the
// instance; nothing survives a restart.
type Store struct {
	boards sync.Map // map[string]leaderboard.Board
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger that records evictions. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

func (s *Store) board(key core.BoardKey) leaderboard.Board {
	if v, ok := s.boards.Load(key.String()); ok {
		return v.(leaderboard.Board)
	}
	actual, _ := s.boards.LoadOrStore(key.String(), leaderboard.NewSkipList())
	return actual.(leaderboard.Board)
}

// Submit inserts the entry and evicts everything beyond core.MaxEntries.
func (s *Store) Submit(ctx context.Context, key core.BoardKey, entry core.ScoreEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if evicted := s.board(key).Add(entry.Clone(), core.MaxEntries); evicted > 0 {
		s.log().DebugContext(ctx, "evicted entries", "board", key.String(), "count", evicted)
	}
	return nil
}

// Query returns copies of the first limit entries.
func (s *Store) Query(ctx context.Context, key core.BoardKey, limit int) ([]core.ScoreEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit > core.MaxEntries {
		limit = core.MaxEntries
	}
	v, ok := s.boards.Load(key.String())
	if !ok || limit <= 0 {
		return []core.ScoreEntry{}, nil
	}
	return v.(leaderboard.Board).TopN(limit), nil
}

var _ engine.Store = (*Store)(nil)
