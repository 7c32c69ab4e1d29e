package gauge

import "golang.org/x/exp/constraints"

// Floor and Ceil bound every fullness value.
const (
	Floor = -1.0
	Ceil  = 1.0
)

// DefaultEpsilon is the tolerance used for "unchanged" and "arrived" checks.
const DefaultEpsilon = 1e-4

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 limits v to [0, 1].
func Clamp01[T constraints.Float](v T) T {
	return Clamp(v, 0, 1)
}

// ClampUnit limits v to the fullness range [-1, 1].
func ClampUnit(v float64) float64 {
	return Clamp(v, Floor, Ceil)
}

// Lerp interpolates between a and b. t is not clamped.
func Lerp[T constraints.Float](a, b, t T) T {
	return a + (b-a)*t
}

// InverseLerp returns where v sits between a and b, clamped to [0, 1].
func InverseLerp[T constraints.Float](a, b, v T) T {
	if a == b {
		return 0
	}
	return Clamp01((v - a) / (b - a))
}

// SmoothStep is the Hermite ease-in/ease-out curve between edge0 and edge1.
func SmoothStep[T constraints.Float](edge0, edge1, x T) T {
	t := InverseLerp(edge0, edge1, x)
	return t * t * (3 - 2*t)
}

// Percent maps a fullness value in [-1, 1] to [0, 100].
func Percent(v float64) float64 {
	return InverseLerp(Floor, Ceil, v) * 100
}

// Approximately reports whether a and b differ by less than eps.
func Approximately(a, b, eps float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < eps
}
