package engine

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

var nextUID atomic.Uint64

type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Vec3 // Euler angles in degrees
	Scale    mgl32.Vec3
}

// IdentityTransform is a transform at the origin with unit scale.
func IdentityTransform() Transform {
	return Transform{Scale: mgl32.Vec3{1, 1, 1}}
}

type GameObject struct {
	UID        uint64
	Name       string
	Tags       []string
	Transform  Transform
	Scene      *Scene
	Parent     *GameObject
	Children   []*GameObject
	components []Component
}

func NewGameObject(name string) *GameObject {
	return &GameObject{
		UID:        nextUID.Add(1),
		Name:       name,
		Transform:  IdentityTransform(),
		components: make([]Component, 0),
		Children:   make([]*GameObject, 0),
	}
}

func (g *GameObject) AddComponent(c Component) {
	c.SetGameObject(g)
	g.components = append(g.components, c)
}

// GetComponent returns the first component of type T, or the zero value.
func GetComponent[T Component](g *GameObject) T {
	var zero T
	for _, c := range g.components {
		if typed, ok := c.(T); ok {
			return typed
		}
	}
	return zero
}

func (g *GameObject) Components() []Component {
	return g.components
}

func (g *GameObject) HasTag(tag string) bool {
	for _, t := range g.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag appends tag unless the object already carries it.
func (g *GameObject) AddTag(tag string) {
	if !g.HasTag(tag) {
		g.Tags = append(g.Tags, tag)
	}
}

func (g *GameObject) AddChild(child *GameObject) {
	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	child.Parent = g
	g.Children = append(g.Children, child)
}

func (g *GameObject) RemoveChild(child *GameObject) {
	for i, c := range g.Children {
		if c == child {
			g.Children = append(g.Children[:i], g.Children[i+1:]...)
			child.Parent = nil
			return
		}
	}
}

// Walk visits g and every descendant depth-first. Returning false from fn
// skips the visited object's children.
func (g *GameObject) Walk(fn func(*GameObject) bool) {
	if !fn(g) {
		return
	}
	for _, c := range g.Children {
		c.Walk(fn)
	}
}

// Root returns the top-most ancestor of g.
func (g *GameObject) Root() *GameObject {
	root := g
	for root.Parent != nil {
		root = root.Parent
	}
	return root
}

func (g *GameObject) WorldPosition() mgl32.Vec3 {
	if g.Parent == nil {
		return g.Transform.Position
	}
	parentPos := g.Parent.WorldPosition()
	parentScale := g.Parent.WorldScale()

	// Scale local position by parent's world scale
	scaled := mgl32.Vec3{
		g.Transform.Position.X() * parentScale.X(),
		g.Transform.Position.Y() * parentScale.Y(),
		g.Transform.Position.Z() * parentScale.Z(),
	}

	return parentPos.Add(RotationMatrix(g.Parent.WorldRotation()).Mul3x1(scaled))
}

func (g *GameObject) WorldRotation() mgl32.Vec3 {
	if g.Parent == nil {
		return g.Transform.Rotation
	}
	return g.Parent.WorldRotation().Add(g.Transform.Rotation)
}

func (g *GameObject) WorldScale() mgl32.Vec3 {
	if g.Parent == nil {
		return g.Transform.Scale
	}
	ps := g.Parent.WorldScale()
	return mgl32.Vec3{
		ps.X() * g.Transform.Scale.X(),
		ps.Y() * g.Transform.Scale.Y(),
		ps.Z() * g.Transform.Scale.Z(),
	}
}

// RotationMatrix builds the rotation for Euler angles in degrees, applied X then Y then Z.
func RotationMatrix(euler mgl32.Vec3) mgl32.Mat3 {
	rotX := mgl32.Rotate3DX(mgl32.DegToRad(euler.X()))
	rotY := mgl32.Rotate3DY(mgl32.DegToRad(euler.Y()))
	rotZ := mgl32.Rotate3DZ(mgl32.DegToRad(euler.Z()))
	return rotZ.Mul3(rotY).Mul3(rotX)
}
