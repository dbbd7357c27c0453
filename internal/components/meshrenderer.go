package components

import (
	"image/color"

	"prefabeditor/internal/engine"
	"prefabeditor/internal/physics"

	"github.com/go-gl/mathgl/mgl32"
)

type MeshType int

const (
	MeshCube MeshType = iota
	MeshSphere
	MeshPlane
)

// ParseMeshType maps the template names "cube", "sphere" and "plane".
func ParseMeshType(name string) (MeshType, bool) {
	switch name {
	case "cube":
		return MeshCube, true
	case "sphere":
		return MeshSphere, true
	case "plane":
		return MeshPlane, true
	}
	return 0, false
}

func (m MeshType) String() string {
	switch m {
	case MeshCube:
		return "cube"
	case MeshSphere:
		return "sphere"
	case MeshPlane:
		return "plane"
	}
	return "unknown"
}

// MeshRenderer is a primitive shape drawn at its object's world position.
// For spheres Size.X is the radius; planes use Size.X by Size.Z.
type MeshRenderer struct {
	engine.BaseComponent
	MeshType MeshType
	Color    color.NRGBA
	Size     mgl32.Vec3
	Offset   mgl32.Vec3
}

func NewMeshRenderer(meshType MeshType, c color.NRGBA, size mgl32.Vec3) *MeshRenderer {
	return &MeshRenderer{
		MeshType: meshType,
		Color:    c,
		Size:     size,
	}
}

// HasGeometry reports whether the mesh covers any volume or area.
func (m *MeshRenderer) HasGeometry() bool {
	switch m.MeshType {
	case MeshSphere:
		return m.Size.X() > 0
	case MeshPlane:
		return m.Size.X() != 0 && m.Size.Z() != 0
	}
	return m.Size.X() != 0 && m.Size.Y() != 0 && m.Size.Z() != 0
}

// WorldCenter is the mesh center after applying the object's world transform.
func (m *MeshRenderer) WorldCenter() mgl32.Vec3 {
	g := m.GetGameObject()
	if g == nil {
		return m.Offset
	}
	scale := g.WorldScale()
	offset := mgl32.Vec3{m.Offset.X() * scale.X(), m.Offset.Y() * scale.Y(), m.Offset.Z() * scale.Z()}
	return g.WorldPosition().Add(engine.RotationMatrix(g.WorldRotation()).Mul3x1(offset))
}

// WorldSize is the full extent of the mesh scaled by the object's world scale.
func (m *MeshRenderer) WorldSize() mgl32.Vec3 {
	size := m.Size
	switch m.MeshType {
	case MeshSphere:
		d := m.Size.X() * 2
		size = mgl32.Vec3{d, d, d}
	case MeshPlane:
		size = mgl32.Vec3{m.Size.X(), 0, m.Size.Z()}
	}
	g := m.GetGameObject()
	if g == nil {
		return size
	}
	scale := g.WorldScale()
	return mgl32.Vec3{size.X() * scale.X(), size.Y() * scale.Y(), size.Z() * scale.Z()}
}

// Bounds returns the world-space AABB. Rotation only moves the center; the
// box itself stays axis aligned.
func (m *MeshRenderer) Bounds() physics.AABB {
	return physics.NewAABBFromCenter(m.WorldCenter(), m.WorldSize())
}
