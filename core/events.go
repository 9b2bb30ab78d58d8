package core

import "time"

// EventType enumerates domain events.
type EventType string

const (
	EventScoreSubmitted EventType = "score_submitted"
	EventNewRecord      EventType = "new_record"
)

// Event represents an immutable domain event.
type Event struct {
	Type     EventType      `json:"type"`
	Time     time.Time      `json:"time"`
	Board    BoardKey       `json:"board"`
	Entry    ScoreEntry     `json:"entry"`
	Rank     int            `json:"rank,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func NewScoreSubmitted(entry ScoreEntry) Event {
	return Event{Type: EventScoreSubmitted, Time: time.Now().UTC(), Board: entry.Key(), Entry: entry}
}

func NewRecord(entry ScoreEntry, previous *ScoreEntry) Event {
	ev := Event{Type: EventNewRecord, Time: time.Now().UTC(), Board: entry.Key(), Entry: entry, Rank: 1}
	if previous != nil {
		ev.Metadata = map[string]any{
			"previousScore":  previous.Score,
			"previousHolder": previous.PlayerName,
		}
	}
	return ev
}
