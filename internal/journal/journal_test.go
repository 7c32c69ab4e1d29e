package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/fullness/internal/events"
)

func TestBusEventsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "events", "")
	clock := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	var tick uint64 = 4
	bus := events.NewBus(func() uint64 { return tick })
	unsub := w.Subscribe(bus)

	ctx := context.Background()
	bus.Publish(ctx, events.Event{Type: events.TransferStarted, Actor: "player", Target: "npc-1",
		Payload: map[string]any{"actual": 0.1}})
	bus.Publish(ctx, events.Event{Type: events.GiverConsumed, Actor: "giver-1"})

	// Next hour goes to a new file.
	clock = clock.Add(time.Hour)
	tick = 90
	bus.Publish(ctx, events.Event{Type: events.BoostEnded, Actor: "player"})
	unsub()
	require.NoError(t, w.Close())

	files, err := Files(dir, "events")
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "events-2026-03-01-10.jsonl.zst"),
		filepath.Join(dir, "events-2026-03-01-11.jsonl.zst"),
	}, files)

	first, err := ReadFile(files[0])
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, events.TransferStarted, first[0].Type)
	assert.Equal(t, uint64(4), first[0].Tick)
	assert.Equal(t, "npc-1", first[0].Target)
	assert.InDelta(t, 0.1, first[0].Payload["actual"], 1e-12)

	second, err := ReadFile(files[1])
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, uint64(90), second[0].Tick)
}

func TestCloseWithoutWrites(t *testing.T) {
	w := NewWriter(t.TempDir(), "events", "%Y%m%d")
	assert.NoError(t, w.Close())
}
