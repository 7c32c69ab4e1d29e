// Package locomotion defines the movement capability behaviour controllers
// drive, and a headless kinematic implementation of it.
//
// Path finding and physics belong to the navigation collaborator; the
// controllers only ever issue move-to and stop commands through Port.
package locomotion

import "github.com/talgya/fullness/internal/geom"

// Port is the movement capability an actor exposes to its controller.
type Port interface {
	Position() geom.Vec3
	MoveTo(p geom.Vec3)
	Stop()
	Stopped() bool
	IsWithin(distance float64, p geom.Vec3) bool
	Speed() float64
	SetSpeed(speed float64)

	// Reachable reports whether a complete path to p exists.
	Reachable(p geom.Vec3) bool
	// Sample returns the nearest reachable point within radius of p.
	Sample(p geom.Vec3, radius float64) (geom.Vec3, bool)
}
