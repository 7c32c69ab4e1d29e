package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/fullness/internal/gauge"
)

func endpoint(id string, v float64) Endpoint {
	return Endpoint{ID: id, Gauge: gauge.New(v, 2)}
}

func fixedParams(mult, ret, dur float64) func() Params {
	return func() Params { return Params{Multiplier: mult, ReturnFraction: ret, Duration: dur} }
}

func run(p *Protocol, seconds, dt float64) {
	for t := 0.0; t < seconds-1e-9; t += dt {
		p.Step(dt)
	}
}

func TestComputeScenarios(t *testing.T) {
	cases := []struct {
		name                         string
		source, sink, requested, mul float64
		actual, sourceTarget, sinkT  float64
	}{
		{"clamped sink", 0.5, 0.0, 0.3, 5, 0.3, 0.2, 1.0},
		{"limited by headroom", -0.95, 0.0, 0.1, 5, 0.05, -1.0, 0.25},
		{"plain", 0.0, -0.5, 0.1, 2, 0.1, -0.1, -0.3},
		{"negative request", 0.0, 0.0, -1, 5, 0, 0, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			plan := Compute(c.source, c.sink, c.requested, c.mul, 0.05)
			assert.InDelta(t, c.actual, plan.Actual, 1e-12)
			assert.InDelta(t, c.sourceTarget, plan.SourceTarget, 1e-12)
			assert.InDelta(t, c.sinkT, plan.SinkTarget, 1e-12)
			assert.InDelta(t, plan.Actual*c.mul*0.05, plan.Credit, 1e-12)
			assert.Equal(t, min(max(0, c.requested), c.source+1), plan.Actual)
		})
	}
}

func TestRequestRunsLinearlyAndCreditsSource(t *testing.T) {
	var done []*Transfer
	p := NewProtocol(fixedParams(5, 0.05, 1), Hooks{Completed: func(tr *Transfer) { done = append(done, tr) }})
	player, npc := endpoint("player", 0.5), endpoint("npc", 0.0)

	tr, err := p.Request(player, npc, 0.3)
	require.NoError(t, err)
	assert.NotEmpty(t, tr.ID)
	assert.True(t, p.Busy("player", "npc"))

	p.Step(0.5)
	assert.InDelta(t, 0.35, player.Gauge.Current(), 1e-9, "halfway is linear, not smoothed")
	assert.InDelta(t, 0.5, npc.Gauge.Current(), 1e-9)

	p.Step(0.5)
	require.Len(t, done, 1)
	assert.False(t, p.Busy("player", "npc"))
	assert.InDelta(t, 0.2+0.3*5*0.05, player.Gauge.Current(), 1e-9)
	assert.Equal(t, 1.0, npc.Gauge.Current())
	assert.Empty(t, p.Active())
}

func TestRequestGating(t *testing.T) {
	p := NewProtocol(fixedParams(5, 0.05, 1), Hooks{})

	_, err := p.Request(endpoint("player", 0.5), endpoint("full", 1), 0.1)
	assert.ErrorIs(t, err, ErrSinkFull)

	_, err = p.Request(endpoint("player", -1), endpoint("npc", 0), 0.1)
	assert.ErrorIs(t, err, ErrNoHeadroom)

	locked := true
	p.SetLock(func() bool { return locked })
	_, err = p.Request(endpoint("player", 0.5), endpoint("npc", 0), 0.1)
	assert.ErrorIs(t, err, ErrLocked)

	locked = false
	_, err = p.Request(endpoint("player", 0.5), endpoint("npc", 0), 0.1)
	assert.NoError(t, err)
}

func TestPairsAreIndependent(t *testing.T) {
	p := NewProtocol(fixedParams(5, 0, 1), Hooks{})
	player := endpoint("player", 0.5)
	a, b := endpoint("a", 0), endpoint("b", 0)

	_, err := p.Request(player, a, 0.3)
	require.NoError(t, err)
	_, err = p.Request(player, b, 0.3)
	require.NoError(t, err, "a different pair proceeds")
	_, err = p.Request(player, a, 0.3)
	assert.ErrorIs(t, err, ErrInFlight, "the same pair is dropped")
	assert.Len(t, p.Active(), 2)

	run(p, 1, 0.25)
	assert.InDelta(t, -0.1, player.Gauge.Current(), 1e-9, "shared source composes additively")
	assert.Equal(t, 1.0, a.Gauge.Current())
	assert.Equal(t, 1.0, b.Gauge.Current())
}

func TestSharedSourceReservesCommittedDraw(t *testing.T) {
	p := NewProtocol(fixedParams(5, 0, 1), Hooks{})
	player := endpoint("player", -0.8)
	a, b, c := endpoint("a", 0), endpoint("b", 0), endpoint("c", 0)

	ta, err := p.Request(player, a, 0.1)
	require.NoError(t, err)
	p.Step(0.5)
	assert.InDelta(t, 0.05, p.Reserved("player"), 1e-9)

	tb, err := p.Request(player, b, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, tb.Plan.Actual, 1e-9, "limited to headroom left after a's remaining draw")
	assert.InDelta(t, 0.2, tb.Plan.Requested, 1e-9)

	_, err = p.Request(player, c, 0.1)
	assert.ErrorIs(t, err, ErrNoHeadroom, "everything above the floor is committed")

	run(p, 1, 0.25)
	assert.Empty(t, p.Active())
	drawn := -0.8 - player.Gauge.Current()
	credited := a.Gauge.Current() + b.Gauge.Current()
	assert.InDelta(t, 0.2, drawn, 1e-9)
	assert.InDelta(t, ta.Plan.Actual+tb.Plan.Actual, drawn, 1e-9)
	assert.InDelta(t, drawn*5, credited, 1e-9, "sinks receive exactly what the source paid times the multiplier")
}

func TestDropRemovesPinnedGifts(t *testing.T) {
	var cancelled int
	p := NewProtocol(fixedParams(1, 0, 1), Hooks{Cancelled: func(*Transfer) { cancelled++ }})
	giver, player := endpoint("giver", 1), endpoint("player", -1)
	_, err := p.Gift(giver, player, 2)
	require.NoError(t, err)
	p.Step(0.5)
	mid := player.Gauge.Current()

	assert.Equal(t, 0, p.Cancel("giver"))
	assert.Equal(t, 1, p.Drop("giver"))
	assert.Equal(t, 1, cancelled)
	assert.Empty(t, p.Active())

	p.Step(0.5)
	assert.Equal(t, mid, player.Gauge.Current(), "nothing writes after the drop")
}

func TestParametersAreReadAtRequestTime(t *testing.T) {
	mult := 2.0
	p := NewProtocol(func() Params { return Params{Multiplier: mult, Duration: 1} }, Hooks{})
	player, npc := endpoint("player", 0.5), endpoint("npc", -1)

	tr, err := p.Request(player, npc, 0.1)
	require.NoError(t, err)
	mult = 10
	run(p, 1, 0.1)
	assert.Equal(t, 2.0, tr.Plan.Multiplier)
	assert.InDelta(t, -0.8, npc.Gauge.Current(), 1e-9)
}

func TestCancelKeepsWrittenValuesAndSkipsGifts(t *testing.T) {
	var cancelled int
	p := NewProtocol(fixedParams(1, 0.5, 1), Hooks{Cancelled: func(*Transfer) { cancelled++ }})
	player, npc := endpoint("player", 0.5), endpoint("npc", 0)
	giver := endpoint("giver", 1)

	_, err := p.Request(player, npc, 0.2)
	require.NoError(t, err)
	_, err = p.Gift(giver, player, 2)
	require.NoError(t, err)

	p.Step(0.5)
	playerMid, npcMid := player.Gauge.Current(), npc.Gauge.Current()

	assert.Equal(t, 1, p.Cancel("npc"))
	assert.Equal(t, 0, p.Cancel("giver"), "gifts are pinned")
	assert.Equal(t, 1, cancelled)
	assert.Equal(t, npcMid, npc.Gauge.Current(), "no rollback")
	assert.Equal(t, playerMid, player.Gauge.Current())
	assert.Len(t, p.Active(), 1)
}

func TestGiftDrivesSinkToCeiling(t *testing.T) {
	var done *Transfer
	p := NewProtocol(fixedParams(5, 0.5, 1), Hooks{Completed: func(tr *Transfer) { done = tr }})
	giver, player := endpoint("giver", 1), endpoint("player", -0.5)

	tr, err := p.Gift(giver, player, 2)
	require.NoError(t, err)
	assert.Equal(t, KindGift, tr.Kind)
	assert.True(t, tr.Pinned)

	run(p, 1, 0.1)
	assert.InDelta(t, 0.0, giver.Gauge.Current(), 1e-9)
	assert.InDelta(t, 0.25, player.Gauge.Current(), 1e-9)

	run(p, 1, 0.1)
	require.NotNil(t, done)
	assert.InDelta(t, -1.0, giver.Gauge.Current(), 1e-9)
	assert.InDelta(t, 1.0, player.Gauge.Current(), 1e-9)
	assert.Zero(t, done.Plan.Credit)
}

func TestGaugesStayInRangeEveryTick(t *testing.T) {
	p := NewProtocol(fixedParams(5, 1, 0.3), Hooks{})
	player := endpoint("player", 1)
	sinks := []Endpoint{endpoint("a", 0.9), endpoint("b", -1), endpoint("c", 0.99)}
	for _, s := range sinks {
		_, err := p.Request(player, s, 0.5)
		require.NoError(t, err)
	}
	for i := 0; i < 20; i++ {
		p.Step(1.0 / 30)
		for _, e := range append(sinks, player) {
			v := e.Gauge.Current()
			require.GreaterOrEqual(t, v, -1.0, e.ID)
			require.LessOrEqual(t, v, 1.0, e.ID)
		}
	}
	assert.Empty(t, p.Active())
}
