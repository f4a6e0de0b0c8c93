package game

import (
	"testing"

	"arena-combat/internal/world"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreboardRanking(t *testing.T) {
	sb := NewScoreboard()
	sb.Update(3, "carol", 2, 0)
	sb.Update(1, "alice", 2, 1)
	sb.Update(2, "bob", 0, 0)
	sb.Update(4, "dave", 2, 0)

	top := sb.Top(0)
	require.Len(t, top, 4)
	ids := []world.EntityID{top[0].Pawn, top[1].Pawn, top[2].Pawn, top[3].Pawn}
	assert.Equal(t, []world.EntityID{3, 4, 1, 2}, ids, "ties go to the lower id")
	assert.Equal(t, 200.0, top[0].Score)
	assert.Equal(t, 190.0, top[2].Score)
	for i, e := range top {
		assert.Equal(t, i+1, e.Rank)
	}

	assert.Len(t, sb.Top(2), 2)
	assert.Equal(t, 3, sb.Rank(1))
	assert.Equal(t, 0, sb.Rank(99))

	sb.Update(2, "bob", 5, 0)
	assert.Equal(t, 1, sb.Rank(2))

	sb.Remove(2)
	assert.Equal(t, 3, sb.Len())
	assert.Equal(t, 0, sb.Rank(2))
}

func TestScoreboardNegativeScores(t *testing.T) {
	sb := NewScoreboard()
	sb.Update(1, "a", 0, 3)
	sb.Update(2, "b", 0, 0)

	top := sb.Top(0)
	assert.Equal(t, world.EntityID(2), top[0].Pawn)
	assert.Equal(t, -30.0, top[1].Score)
}
