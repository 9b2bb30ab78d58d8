package leaderboard

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"scorekit/core"
)

// A skip list ordered by Less, giving O(log n) inserts and cheap rank-based trimming.

const maxLevel = 16
const pFactor = 0.25

type node struct {
	e    core.ScoreEntry
	next [maxLevel]*node
}

type SkipList struct {
	mu   sync.RWMutex
	head *node
	lvl  int
	size int
	rng  *rand.Rand
}

func NewSkipList() *SkipList {
	// Use crypto/rand to generate a secure seed for PCG
	var seed [16]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		seed = [16]byte{}
	}
	seed1 := binary.BigEndian.Uint64(seed[:8])
	seed2 := binary.BigEndian.Uint64(seed[8:])

	return &SkipList{
		head: &node{},
		lvl:  1,
		rng:  rand.New(rand.NewPCG(seed1, seed2)),
	}
}

func (s *SkipList) randomLevel() int {
	lvl := 1
	for lvl < maxLevel && s.rng.Float64() < pFactor {
		lvl++
	}
	return lvl
}

// Add inserts e at its rank position and trims to n entries under a single
// lock, so readers never observe the list above its bound. Entries are never
// replaced. It reports how many entries were evicted.
func (s *SkipList) Add(e core.ScoreEntry, n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insert(e)
	return len(s.trim(n))
}

func (s *SkipList) insert(e core.ScoreEntry) {
	update := [maxLevel]*node{}
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && Less(cur.next[i].e, e) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	lvl := s.randomLevel()
	if lvl > s.lvl {
		for i := s.lvl; i < lvl; i++ {
			update[i] = s.head
		}
		s.lvl = lvl
	}
	n := &node{e: e}
	for i := 0; i < lvl; i++ {
		n.next[i] = update[i].next[i]
		update[i].next[i] = n
	}
	s.size++
}

// trim keeps the first n entries and returns the evicted tail in rank order.
func (s *SkipList) trim(n int) []core.ScoreEntry {
	if n < 0 {
		n = 0
	}
	if s.size <= n {
		return nil
	}
	// last[i] is the last kept node on level i (or head).
	last := [maxLevel]*node{}
	for i := range last {
		last[i] = s.head
	}
	cur := s.head
	for pos := 0; pos < n; pos++ {
		cur = cur.next[0]
		for i := 0; i < s.lvl; i++ {
			if last[i].next[i] == cur {
				last[i] = cur
			}
		}
	}
	evicted := make([]core.ScoreEntry, 0, s.size-n)
	for tail := last[0].next[0]; tail != nil; tail = tail.next[0] {
		evicted = append(evicted, tail.e)
	}
	for i := 0; i < s.lvl; i++ {
		last[i].next[i] = nil
	}
	s.size = n
	for s.lvl > 1 && s.head.next[s.lvl-1] == nil {
		s.lvl--
	}
	return evicted
}

// TopN returns copies of the first n entries in rank order.
func (s *SkipList) TopN(n int) []core.ScoreEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return []core.ScoreEntry{}
	}
	if n > s.size {
		n = s.size
	}
	out := make([]core.ScoreEntry, 0, n)
	cur := s.head.next[0]
	for cur != nil && len(out) < n {
		out = append(out, cur.e.Clone())
		cur = cur.next[0]
	}
	return out
}

var _ Board = (*SkipList)(nil)
