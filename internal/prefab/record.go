// Package prefab holds the authoritative placement state of prefab instances.
package prefab

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrRecordNotFound is returned by mutations against an id the store has
// never seen. Callers treat it as a no-op.
var ErrRecordNotFound = errors.New("prefab: record not found")

// Record is one placed prefab instance.
type Record struct {
	ID           string
	TemplatePath string

	// Local transform relative to the instance's parent, or world when unparented.
	Position mgl32.Vec3
	Rotation mgl32.Vec3 // Euler angles in degrees
	Scale    mgl32.Vec3

	// RenderDistance is the distance beyond which the instance is detached
	// from the live scene. Callers keep it >= 0.
	RenderDistance float32
	Hidden         bool

	// Deleted is a tombstone: the record stays in memory but is never
	// persisted or instantiated again.
	Deleted bool
}

// InRange reports whether pos is within the record's render distance.
// Distances are compared squared.
func (r Record) InRange(pos mgl32.Vec3) bool {
	return r.Position.Sub(pos).LenSqr() <= r.RenderDistance*r.RenderDistance
}
