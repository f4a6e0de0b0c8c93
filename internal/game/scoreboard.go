package game

import (
	"sort"
	"sync"

	"arena-combat/internal/world"
)

// Scoreboard ranks pawns by score, computed as kills * 100 - deaths * 10.
// Arenas hold at most a few hundred pawns, so ranks are sorted on read.
type Scoreboard struct {
	mu      sync.RWMutex
	entries map[world.EntityID]*ScoreEntry
}

// ScoreEntry represents a pawn on the scoreboard
type ScoreEntry struct {
	Pawn   world.EntityID `json:"pawn"`
	Name   string         `json:"name"`
	Kills  int            `json:"kills"`
	Deaths int            `json:"deaths"`
	Score  float64        `json:"score"`
	Rank   int            `json:"rank"`
}

// NewScoreboard creates an empty scoreboard
func NewScoreboard() *Scoreboard {
	return &Scoreboard{entries: make(map[world.EntityID]*ScoreEntry)}
}

func score(kills, deaths int) float64 {
	return float64(kills)*100.0 - float64(deaths)*10.0
}

// Update records a pawn's kills and deaths
func (sb *Scoreboard) Update(id world.EntityID, name string, kills, deaths int) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.entries[id] = &ScoreEntry{Pawn: id, Name: name, Kills: kills, Deaths: deaths, Score: score(kills, deaths)}
}

// Remove drops a pawn
func (sb *Scoreboard) Remove(id world.EntityID) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	delete(sb.entries, id)
}

// Len returns the number of ranked pawns
func (sb *Scoreboard) Len() int {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return len(sb.entries)
}

// ranked returns every entry in rank order. Ties go to the lower id.
func (sb *Scoreboard) ranked() []ScoreEntry {
	sb.mu.RLock()
	out := make([]ScoreEntry, 0, len(sb.entries))
	for _, e := range sb.entries {
		out = append(out, *e)
	}
	sb.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Pawn < out[j].Pawn
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Top returns the top n pawns; n <= 0 returns all of them
func (sb *Scoreboard) Top(n int) []ScoreEntry {
	all := sb.ranked()
	if n > 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// Rank returns a pawn's rank (1-indexed), or 0 if it is not ranked
func (sb *Scoreboard) Rank(id world.EntityID) int {
	for _, e := range sb.ranked() {
		if e.Pawn == id {
			return e.Rank
		}
	}
	return 0
}
