package analytics

import (
	"sort"
	"sync"

	"scorekit/core"
	"scorekit/leaderboard"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// BoardSummary is a point-in-time view of one board's activity.
type BoardSummary struct {
	GameType         string           `json:"gameType"`
	Difficulty       string           `json:"difficulty"`
	Submissions      int64            `json:"submissions"`
	NewRecords       int64            `json:"newRecords"`
	BestScore        *float64         `json:"bestScore,omitempty"`
	BestPlayer       string           `json:"bestPlayer,omitempty"`
	DistinctPlayers  int              `json:"distinctPlayers"`
	SubmissionsByDay map[string]int64 `json:"submissionsByDay"`
}

type boardCounters struct {
	key       core.BoardKey
	submitted int64
	records   int64
	best      *core.ScoreEntry
	players   map[string]struct{}
	byDay     map[string]int64
}

// BoardStats counts submissions per board since process start.
type BoardStats struct {
	mu     sync.RWMutex
	boards map[core.BoardKey]*boardCounters
}

func NewBoardStats() *BoardStats {
	return &BoardStats{boards: make(map[core.BoardKey]*boardCounters)}
}

func (s *BoardStats) OnEvent(e core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.boards[e.Board]
	if b == nil {
		b = &boardCounters{
			key:     e.Board,
			players: make(map[string]struct{}),
			byDay:   make(map[string]int64),
		}
		s.boards[e.Board] = b
	}

	switch e.Type {
	case core.EventScoreSubmitted:
		b.submitted++
		b.players[e.Entry.PlayerName] = struct{}{}
		b.byDay[e.Entry.Timestamp.UTC().Format("2006-01-02")]++
		if b.best == nil || leaderboard.Less(e.Entry, *b.best) {
			best := e.Entry.Clone()
			b.best = &best
		}
	case core.EventNewRecord:
		b.records++
	}
}

// Board returns the summary for one board.
func (s *BoardStats) Board(key core.BoardKey) (BoardSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.boards[key]
	if !ok {
		return BoardSummary{}, false
	}
	return b.summary(), true
}

// Snapshot returns summaries for every board seen, ordered by game type then difficulty.
func (s *BoardStats) Snapshot() []BoardSummary {
	s.mu.RLock()
	out := make([]BoardSummary, 0, len(s.boards))
	for _, b := range s.boards {
		out = append(out, b.summary())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].GameType != out[j].GameType {
			return out[i].GameType < out[j].GameType
		}
		return out[i].Difficulty < out[j].Difficulty
	})
	return out
}

func (b *boardCounters) summary() BoardSummary {
	sum := BoardSummary{
		GameType:         b.key.GameType,
		Difficulty:       b.key.Difficulty,
		Submissions:      b.submitted,
		NewRecords:       b.records,
		DistinctPlayers:  len(b.players),
		SubmissionsByDay: make(map[string]int64, len(b.byDay)),
	}
	for d, n := range b.byDay {
		sum.SubmissionsByDay[d] = n
	}
	if b.best != nil {
		score := b.best.Score
		sum.BestScore = &score
		sum.BestPlayer = b.best.PlayerName
	}
	return sum
}
