package visibility

import "github.com/go-gl/mathgl/mgl32"

// MultiSource merges the observers of several sources.
type MultiSource []ObserverSource

func (m MultiSource) ObserverPositions() []mgl32.Vec3 {
	var positions []mgl32.Vec3
	for _, src := range m {
		if src == nil {
			continue
		}
		positions = append(positions, src.ObserverPositions()...)
	}
	return positions
}

// StaticSource is a fixed set of observer positions.
type StaticSource []mgl32.Vec3

func (s StaticSource) ObserverPositions() []mgl32.Vec3 {
	return s
}
