package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scorekit/core"
)

// ScoreService wires a store, event bus, and rules into the leaderboard API.
type ScoreService struct {
	store Store
	bus   *EventBus
	rules RuleEngine
	now   func() time.Time
	newID func() string
}

func NewScoreService(store Store, bus *EventBus, rules RuleEngine) *ScoreService {
	if store == nil || bus == nil || rules == nil {
		panic("NewScoreService requires non-nil store, bus, and rules")
	}
	return &ScoreService{
		store: store,
		bus:   bus,
		rules: rules,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func DefaultRuleEngine() RuleEngine {
	return &simpleRuleEngine{rules: []core.Rule{core.NewRecordRule{}}}
}

// Subscribe convenience method.
func (s *ScoreService) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

func (s *ScoreService) Publish(ctx context.Context, ev core.Event) {
	s.bus.Publish(ctx, ev)
}

// Submit validates a submission, records it and returns the stored entry.
func (s *ScoreService) Submit(ctx context.Context, sub core.Submission) (core.ScoreEntry, error) {
	if err := sub.Validate(); err != nil {
		return core.ScoreEntry{}, err
	}
	entry := core.NewEntry(sub, s.newID(), s.now())
	key := entry.Key()
	if err := s.store.Submit(ctx, key, entry); err != nil {
		return core.ScoreEntry{}, fmt.Errorf("%w: submit %s: %w", core.ErrBackingUnavailable, key, err)
	}

	ev := core.NewScoreSubmitted(entry)
	s.bus.Publish(ctx, ev)
	// rules are best-effort; the submission has already been accepted
	standings, err := s.store.Query(ctx, key, core.MaxEntries)
	if err == nil {
		for _, d := range s.rules.Evaluate(ctx, standings, ev) {
			s.bus.Publish(ctx, d)
		}
	}
	return entry, nil
}

// Leaderboard returns up to limit entries of a board in rank order.
// limit is clamped with core.ClampLimit.
func (s *ScoreService) Leaderboard(ctx context.Context, key core.BoardKey, limit int) ([]core.ScoreEntry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	entries, err := s.store.Query(ctx, key, core.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", core.ErrBackingUnavailable, key, err)
	}
	if entries == nil {
		entries = []core.ScoreEntry{}
	}
	return entries, nil
}

// Rank returns the 1-based position of the player's best retained entry.
func (s *ScoreService) Rank(ctx context.Context, key core.BoardKey, playerName string) (int, bool, error) {
	entries, err := s.Leaderboard(ctx, key, core.MaxEntries)
	if err != nil {
		return 0, false, err
	}
	name := core.NormalizePlayerName(playerName)
	for i, e := range entries {
		if e.PlayerName == name {
			return i + 1, true, nil
		}
	}
	return 0, false, nil
}

// Qualifies reports whether score would place within the top topN of a board.
// A board with fewer than topN entries always qualifies.
func (s *ScoreService) Qualifies(ctx context.Context, key core.BoardKey, score float64, topN int) (bool, error) {
	if err := core.ValidateScore(score); err != nil {
		return false, err
	}
	topN = core.ClampLimit(topN)
	entries, err := s.Leaderboard(ctx, key, topN)
	if err != nil {
		return false, err
	}
	if len(entries) < topN {
		return true, nil
	}
	return score < entries[len(entries)-1].Score, nil
}

// Ping checks that the store answers reads.
func (s *ScoreService) Ping(ctx context.Context) error {
	_, err := s.Leaderboard(ctx, core.BoardKey{GameType: "healthcheck", Difficulty: "probe"}, 1)
	return err
}

func (s *ScoreService) Close() { s.bus.Close() }

type simpleRuleEngine struct{ rules []core.Rule }

func (r *simpleRuleEngine) Evaluate(ctx context.Context, standings []core.ScoreEntry, trigger core.Event) []core.Event {
	var out []core.Event
	for _, rule := range r.rules {
		out = append(out, rule.Evaluate(ctx, standings, trigger)...)
	}
	return out
}
