package leaderboard

import (
	"sort"

	"scorekit/core"
)

// Board abstracts an ordered, bounded set of score entries for one partition.
type Board interface {
	// Add inserts e, keeps the best n entries and returns the number evicted.
	Add(e core.ScoreEntry, n int) int
	TopN(n int) []core.ScoreEntry
}

// Less orders entries by score ascending (lower is better), then by submission
// time, then by id, so equal scores rank the same way on every read.
func Less(a, b core.ScoreEntry) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

// Sort orders entries in place by rank.
func Sort(entries []core.ScoreEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return Less(entries[i], entries[j]) })
}

// Retain inserts e into the ranked slice and drops everything beyond rank n.
// The input slice is not modified.
func Retain(entries []core.ScoreEntry, e core.ScoreEntry, n int) []core.ScoreEntry {
	out := make([]core.ScoreEntry, 0, len(entries)+1)
	out = append(out, entries...)
	out = append(out, e)
	Sort(out)
	if len(out) > n {
		out = out[:n]
	}
	return out
}
