package locomotion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/fullness/internal/geom"
)

func TestKinematicTravelsAtSpeed(t *testing.T) {
	k := NewKinematic(geom.V(0, 0, 0), 2, nil)
	k.MoveTo(geom.V(10, 0, 0))
	require.True(t, k.Moving())

	moved := k.Step(1)
	assert.InDelta(t, 2, moved, 1e-12)
	assert.InDelta(t, 2, k.Position().X, 1e-12)

	for i := 0; i < 10; i++ {
		k.Step(1)
	}
	assert.Equal(t, geom.V(10, 0, 0), k.Position())
	assert.False(t, k.Moving())
}

func TestKinematicStopHoldsPosition(t *testing.T) {
	k := NewKinematic(geom.V(0, 0, 0), 1, nil)
	k.MoveTo(geom.V(5, 0, 0))
	k.Stop()
	assert.Equal(t, 0.0, k.Step(1))
	assert.True(t, k.Stopped())
}

func TestKinematicIgnoresUnreachableDestination(t *testing.T) {
	area := &Area{Radius: 10, Obstacles: []Obstacle{{Center: geom.V(5, 0, 0), Radius: 1}}}
	k := NewKinematic(geom.V(0, 0, 0), 1, area)

	k.MoveTo(geom.V(5, 0, 0))
	assert.False(t, k.Moving())
	k.MoveTo(geom.V(20, 0, 0))
	assert.False(t, k.Moving())
	k.MoveTo(geom.V(0, 0, 5))
	assert.True(t, k.Moving())
}

func TestKinematicSamplePullsTowardMover(t *testing.T) {
	area := &Area{Radius: 10}
	k := NewKinematic(geom.V(0, 0, 0), 1, area)

	p, ok := k.Sample(geom.V(12, 0, 0), 5)
	require.True(t, ok)
	assert.True(t, area.Walkable(p))
	assert.LessOrEqual(t, p.Dist(geom.V(12, 0, 0)), 5.0)

	_, ok = k.Sample(geom.V(40, 0, 0), 1)
	assert.False(t, ok)
}

func TestIsWithin(t *testing.T) {
	k := NewKinematic(geom.V(1, 0, 1), 1, nil)
	assert.True(t, k.IsWithin(2, geom.V(2, 0, 2)))
	assert.False(t, k.IsWithin(1, geom.V(2, 0, 2)))
}
