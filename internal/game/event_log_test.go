package game

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"arena-combat/internal/world"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{}

func (failingSink) WriteEvents([]Event) error { return errors.New("store offline") }

func TestEventLogRequiresStart(t *testing.T) {
	el := NewEventLog(zerolog.Nop())
	assert.False(t, el.EmitSimple(EventTypeTick, 1, world.NoEntity, nil))
	assert.Equal(t, uint64(0), el.GetTotalCount())
}

func TestEventLogWritesFileAndSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "combat.jsonl")
	sink := &memorySink{}

	el := NewEventLog(zerolog.Nop())
	el.SetSink(sink)
	require.NoError(t, el.Start(path))

	assert.True(t, el.EmitSimple(EventTypePawnJoin, 1, 7, PawnJoinPayload{Name: "alpha"}))
	assert.True(t, el.EmitSimple(EventTypeDamage, 2, 7, DamagePayload{Victim: 8, Magnitude: -20}))
	assert.True(t, el.EmitSimple(EventTypeKill, 2, 7, KillPayload{KillerID: 7, VictimID: 8}))
	el.Stop()
	el.Stop()

	assert.Equal(t, 1, sink.count(EventTypeKill))
	assert.Len(t, sink.events, 3)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var types []EventType
	var seqs []uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		types = append(types, ev.Type)
		seqs = append(seqs, ev.Sequence)
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []EventType{EventTypePawnJoin, EventTypeDamage, EventTypeKill}, types)
	assert.Equal(t, []uint64{1, 2, 3}, seqs)

	var kill KillPayload
	require.NoError(t, json.Unmarshal(sink.events[2].Payload, &kill))
	assert.Equal(t, world.EntityID(8), kill.VictimID)

	stats := el.GetStats()
	assert.False(t, stats.Running)
	assert.Equal(t, uint64(0), stats.Pending)
	assert.Equal(t, uint64(3), stats.Total)
}

func TestEventLogPawnRateLimit(t *testing.T) {
	el := NewEventLog(zerolog.Nop())
	require.NoError(t, el.Start(""))
	defer el.Stop()

	burst := MaxEventsPerPawn / 10
	accepted := 0
	for i := 0; i < burst*2; i++ {
		if el.EmitSimple(EventTypeActivation, 1, 5, nil) {
			accepted++
		}
	}
	assert.GreaterOrEqual(t, accepted, burst)
	assert.Less(t, accepted, burst*2)
	assert.Positive(t, el.GetDroppedCount())

	// Tick events carry no pawn and only see the global limit
	assert.True(t, el.EmitSimple(EventTypeTick, 1, world.NoEntity, nil))
}

func TestEventLogSinkErrorsCounted(t *testing.T) {
	el := NewEventLog(zerolog.Nop())
	el.SetSink(failingSink{})
	require.NoError(t, el.Start(""))
	el.EmitSimple(EventTypeTick, 1, world.NoEntity, nil)
	el.Stop()
	assert.Equal(t, uint64(1), el.GetStats().SinkErrors)
}

func TestCleanupPawnLimiters(t *testing.T) {
	el := NewEventLog(zerolog.Nop())
	el.getPawnLimiter(1)
	el.getPawnLimiter(2)

	el.cleanupPawnLimiters(time.Now().Add(-time.Hour))
	_, ok := el.pawnLimiters.Load(world.EntityID(1))
	assert.True(t, ok)

	el.cleanupPawnLimiters(time.Now().Add(time.Hour))
	_, ok = el.pawnLimiters.Load(world.EntityID(1))
	assert.False(t, ok)
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "kill", EventTypeKill.String())
	assert.Equal(t, "pawn_join", EventTypePawnJoin.String())
	assert.Equal(t, "unknown", EventType(200).String())
}
