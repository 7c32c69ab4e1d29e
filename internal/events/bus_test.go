package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversByType(t *testing.T) {
	b := NewBus(func() uint64 { return 7 })
	var primary, all []Event
	b.Subscribe(InputPrimary, func(_ context.Context, e Event) { primary = append(primary, e) })
	b.SubscribeAll(func(_ context.Context, e Event) { all = append(all, e) })

	ctx := context.Background()
	b.Publish(ctx, Event{Type: InputPrimary})
	b.Publish(ctx, Event{Type: NPCState, Actor: "npc-1"})
	b.Publish(ctx, Event{})

	assert.Len(t, primary, 1)
	assert.Len(t, all, 2)
	assert.Equal(t, uint64(7), primary[0].Tick)
	assert.False(t, primary[0].Time.IsZero())
}

func TestUnsubscribeDuringDelivery(t *testing.T) {
	b := NewBus(nil)
	var calls int
	var stop func()
	stop = b.Subscribe(GiverConsumed, func(context.Context, Event) {
		calls++
		stop()
	})
	b.Publish(context.Background(), Event{Type: GiverConsumed})
	b.Publish(context.Background(), Event{Type: GiverConsumed})
	assert.Equal(t, 1, calls)
	assert.Zero(t, b.Len())

	stop() // second call is harmless
}

func TestPublisherFuncAndNop(t *testing.T) {
	var got Type
	PublisherFunc(func(_ context.Context, e Event) { got = e.Type }).Publish(context.Background(), Event{Type: BoostStarted})
	assert.Equal(t, BoostStarted, got)

	Nop().Publish(context.Background(), Event{Type: BoostEnded})
	var nilFn PublisherFunc
	nilFn.Publish(context.Background(), Event{Type: BoostEnded})
}
