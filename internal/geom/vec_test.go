package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRotateYKeepsLengthAndHeight(t *testing.T) {
	v := V(3, 2, 4)
	for _, deg := range []float64{25, -25, 50, -50, 75, -75, 180} {
		r := v.RotateY(deg)
		assert.InDelta(t, v.Len(), r.Len(), 1e-9)
		assert.Equal(t, 2.0, r.Y)
	}
}

func TestRotateYQuarterTurn(t *testing.T) {
	r := V(0, 0, 1).RotateY(90)
	assert.InDelta(t, 1, r.X, 1e-9)
	assert.InDelta(t, 0, r.Z, 1e-9)
}

func TestNormalizeZero(t *testing.T) {
	assert.True(t, Vec3{}.Normalize().IsZero())
	assert.InDelta(t, 1, V(3, 0, 4).Normalize().Len(), 1e-12)
}

func TestFlatDistIgnoresHeight(t *testing.T) {
	assert.InDelta(t, 5, V(0, 10, 0).FlatDist(V(3, -4, 4)), 1e-12)
}
