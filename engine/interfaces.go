package engine

import (
	"context"

	"scorekit/core"
)

// Store keeps, per board, the best core.MaxEntries entries in rank order.
// Submit must either apply completely (insert plus any eviction) or fail.
// Query on an unknown board returns an empty slice and no error.
type Store interface {
	Submit(ctx context.Context, key core.BoardKey, entry core.ScoreEntry) error
	Query(ctx context.Context, key core.BoardKey, limit int) ([]core.ScoreEntry, error)
}

// RuleEngine evaluates rules and emits derived events.
type RuleEngine interface {
	Evaluate(ctx context.Context, standings []core.ScoreEntry, trigger core.Event) []core.Event
}
