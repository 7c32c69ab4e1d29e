// Package geom provides the small amount of 3D vector math the behaviour
// layer needs. Y is up; "flat" means projected onto the XZ plane.
package geom

import (
	"fmt"
	"math"
)

// Vec3 is a point or direction in world space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// V is shorthand for Vec3{x, y, z}.
func V(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }
func (v Vec3) Dist(o Vec3) float64 { return v.Sub(o).Len() }
func (v Vec3) Flat() Vec3 { return Vec3{v.X, 0, v.Z} }
func (v Vec3) IsZero() bool { return v.X == 0 && v.Y == 0 && v.Z == 0 }
func (v Vec3) String() string { return fmt.Sprintf("(%.2f, %.2f, %.2f)", v.X, v.Y, v.Z) }
func (v Vec3) FlatDist(o Vec3) float64 { return v.Sub(o).Flat().Len() }

// Normalize returns the unit vector along v, or the zero vector when v is zero.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// RotateY rotates v about the vertical axis by deg degrees. Positive angles
// turn from +Z toward +X, matching a left-handed Y-up engine.
func (v Vec3) RotateY(deg float64) Vec3 {
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return Vec3{
		X: v.X*cos + v.Z*sin,
		Y: v.Y,
		Z: -v.X*sin + v.Z*cos,
	}
}

// Near reports whether v and o are within eps of each other.
func (v Vec3) Near(o Vec3, eps float64) bool {
	return v.Dist(o) <= eps
}
