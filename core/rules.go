package core

import "context"

// Rule inspects a board right after a submission and may emit derived events.
// standings holds the board in rank order as it was read after the write.
type Rule interface {
	Evaluate(ctx context.Context, standings []ScoreEntry, trigger Event) []Event
}

// NewRecordRule emits a new record when the submitted entry takes rank 1.
type NewRecordRule struct{}

func (NewRecordRule) Evaluate(_ context.Context, standings []ScoreEntry, trigger Event) []Event {
	if trigger.Type != EventScoreSubmitted || len(standings) == 0 {
		return nil
	}
	if standings[0].ID != trigger.Entry.ID {
		return nil
	}
	var previous *ScoreEntry
	if len(standings) > 1 {
		p := standings[1]
		previous = &p
	}
	return []Event{NewRecord(trigger.Entry, previous)}
}
