package viewer

import (
	"image/color"

	"prefabeditor/internal/components"
	"prefabeditor/internal/engine"
	"prefabeditor/internal/world"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"
)

// Renderer draws the meshes of every attached object with plain raylib
// primitives.
type Renderer struct {
	GridSlices  int32
	GridSpacing float32

	// Stats of the last frame.
	Drawn  int
	Culled int
}

func NewRenderer() *Renderer {
	return &Renderer{GridSlices: 100, GridSpacing: 10}
}

// Draw must be called between BeginMode3D and EndMode3D. selected, when
// not nil, is outlined.
func (r *Renderer) Draw(w *world.World, frustum Frustum, selected *engine.GameObject) {
	r.Drawn, r.Culled = 0, 0
	rl.DrawGrid(r.GridSlices, r.GridSpacing)

	w.VisitAttached(func(root *engine.GameObject) {
		root.Walk(func(g *engine.GameObject) bool {
			for _, c := range g.Components() {
				if mesh, ok := c.(*components.MeshRenderer); ok && mesh.HasGeometry() {
					r.drawMesh(mesh, &frustum)
				}
			}
			return true
		})
	})

	if selected != nil {
		drawOutline(selected)
	}
}

func (r *Renderer) drawMesh(mesh *components.MeshRenderer, frustum *Frustum) {
	center := mesh.WorldCenter()
	size := mesh.WorldSize()
	if !frustum.ContainsSphere(center, size.Len()/2) {
		r.Culled++
		return
	}
	r.Drawn++

	c := toColor(mesh.Color)
	switch mesh.MeshType {
	case components.MeshSphere:
		rl.DrawSphere(toRL(center), size.X()/2, c)
	case components.MeshPlane:
		rl.DrawPlane(toRL(center), rl.Vector2{X: size.X(), Y: size.Z()}, c)
	default:
		rl.DrawCubeV(toRL(center), toRL(size), c)
		rl.DrawCubeWiresV(toRL(center), toRL(size), rl.Fade(rl.Black, 0.3))
	}
}

// drawOutline draws the bounds of every mesh under g.
func drawOutline(g *engine.GameObject) {
	g.Walk(func(node *engine.GameObject) bool {
		for _, c := range node.Components() {
			mesh, ok := c.(*components.MeshRenderer)
			if !ok || !mesh.HasGeometry() {
				continue
			}
			b := mesh.Bounds()
			rl.DrawBoundingBox(rl.BoundingBox{Min: toRL(b.Min), Max: toRL(b.Max)}, colorSelection)
		}
		return true
	})
}

// DrawRange draws a ring of radius around center on the ground plane.
func DrawRange(center mgl32.Vec3, radius float32) {
	if radius <= 0 {
		return
	}
	rl.DrawCircle3D(toRL(center), radius, rl.Vector3{X: 1, Y: 0, Z: 0}, 90, rl.Fade(colorSelection, 0.5))
}

func toColor(c color.NRGBA) rl.Color {
	return rl.NewColor(c.R, c.G, c.B, c.A)
}
