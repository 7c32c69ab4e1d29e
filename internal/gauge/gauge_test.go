package gauge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tickUntilIdle(t *testing.T, g *Gauge, dt float64, check func(float64)) {
	t.Helper()
	for i := 0; i < 10000 && g.InTransition(); i++ {
		g.Tick(dt)
		if check != nil {
			check(g.Current())
		}
	}
	require.False(t, g.InTransition(), "gauge never converged")
}

func TestSetTargetConvergesWithoutOvershoot(t *testing.T) {
	starts := []float64{-1, -0.4, 0, 0.7, 1}
	targets := []float64{-1, -0.95, -0.25, 0, 0.33, 0.999, 1}

	for _, start := range starts {
		for _, target := range targets {
			g := New(start, 2)
			lo, hi := start, target
			if lo > hi {
				lo, hi = hi, lo
			}
			prev := g.Current()
			g.SetTarget(target)
			tickUntilIdle(t, g, 1.0/60, func(v float64) {
				assert.GreaterOrEqual(t, v, Floor)
				assert.LessOrEqual(t, v, Ceil)
				assert.GreaterOrEqual(t, v, lo-1e-12)
				assert.LessOrEqual(t, v, hi+1e-12)
				if target >= start {
					assert.GreaterOrEqual(t, v, prev-1e-12)
				} else {
					assert.LessOrEqual(t, v, prev+1e-12)
				}
				prev = v
			})
			assert.Equal(t, target, g.Current(), "start=%v target=%v", start, target)
		}
	}
}

func TestSetTargetClampsOutOfRange(t *testing.T) {
	g := New(0, 4)
	g.SetTarget(3)
	assert.Equal(t, 1.0, g.Target())
	tickUntilIdle(t, g, 0.1, nil)
	assert.Equal(t, 1.0, g.Current())

	g.SetTarget(-7)
	assert.Equal(t, -1.0, g.Target())
}

func TestNewClampsInitial(t *testing.T) {
	assert.Equal(t, 1.0, New(5, 1).Current())
	assert.Equal(t, -1.0, New(-5, 1).Current())
	assert.Equal(t, DefaultRate, New(0, 0).Rate())
}

func TestSetTargetSameValueIsNoop(t *testing.T) {
	g := New(0.5, 1)
	g.SetTarget(0.5)
	assert.False(t, g.InTransition())

	g.SetTarget(0.8)
	g.Tick(0.1)
	mid := g.Current()
	g.SetTarget(0.8)
	g.Tick(0)
	assert.Equal(t, mid, g.Current())
	assert.True(t, g.InTransition())
}

func TestSetTargetReplacesTransition(t *testing.T) {
	g := New(0, 1)
	g.SetTarget(1)
	g.Tick(0.5)
	mid := g.Current()
	require.Greater(t, mid, 0.0)

	g.SetTarget(-1)
	g.Tick(0.01)
	assert.Less(t, g.Current(), mid, "new transition starts from the present value")
	tickUntilIdle(t, g, 0.05, nil)
	assert.Equal(t, -1.0, g.Current())
}

func TestAddTargetAccumulatesOnTarget(t *testing.T) {
	g := New(0, 1)
	g.AddTarget(0.1)
	g.AddTarget(0.1)
	assert.InDelta(t, 0.2, g.Target(), 1e-9)
	assert.Equal(t, 0.0, g.Current())
}

func TestObserversFireAndUnsubscribe(t *testing.T) {
	g := New(0, 10)
	var changes, completes int
	var completedAt float64
	stopChange := g.OnChange(func(float64) { changes++ })
	g.OnComplete(func(v float64) {
		completes++
		completedAt = v
	})

	g.SetTarget(0.5)
	tickUntilIdle(t, g, 0.01, nil)
	assert.Greater(t, changes, 1)
	assert.Equal(t, 1, completes)
	assert.Equal(t, 0.5, completedAt)

	stopChange()
	before := changes
	g.SetTarget(0)
	tickUntilIdle(t, g, 0.01, nil)
	assert.Equal(t, before, changes)
	assert.Equal(t, 2, completes)
}

func TestDriveBypassesSmoothing(t *testing.T) {
	g := New(0, 1)
	g.SetTarget(1)
	g.Tick(0.1)

	g.Drive(-0.3)
	assert.False(t, g.InTransition())
	assert.Equal(t, -0.3, g.Current())
	assert.Equal(t, -0.3, g.Target())

	assert.InDelta(t, -0.7, g.Nudge(-2), 1e-12)
	assert.Equal(t, -1.0, g.Current())
	assert.True(t, g.Empty())
	assert.Equal(t, 0.0, g.Headroom())
}

func TestBandWatcherReportsCrossingsOnce(t *testing.T) {
	g := New(1, 1)
	var seen []int
	w := WatchBands(g, Bands{75, 50, 25}, func(band int, _ float64) {
		seen = append(seen, band)
	})
	defer w.Close()

	g.Drive(0.9)  // 95% still band 0
	g.Drive(0.2)  // 60% band 1
	g.Drive(0.1)  // 55% band 1
	g.Drive(-0.2) // 40% band 2
	g.Drive(-0.9) // 5% band 3

	assert.Equal(t, []int{0, 1, 2, 3}, seen)
	assert.Equal(t, 3, w.Band())
}

func TestBandsIndex(t *testing.T) {
	b := Bands{75, 25, 1}
	cases := map[float64]int{100: 0, 75: 0, 74.9: 1, 25: 1, 24: 2, 1: 2, 0.5: 3, 0: 3}
	for p, want := range cases {
		assert.Equal(t, want, b.Index(p), "percent %v", p)
	}
}

func TestMathHelpers(t *testing.T) {
	assert.Equal(t, 0.0, SmoothStep(0.0, 1.0, -1))
	assert.Equal(t, 1.0, SmoothStep(0.0, 1.0, 2))
	assert.InDelta(t, 0.5, SmoothStep(0.0, 1.0, 0.5), 1e-12)
	assert.Equal(t, 50.0, Percent(0))
	assert.Equal(t, 0.0, Percent(-1))
	assert.Equal(t, 100.0, Percent(1))
	assert.Equal(t, 0.0, InverseLerp(2.0, 2.0, 5))
}
