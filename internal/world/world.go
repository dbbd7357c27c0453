package world

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"prefabeditor/internal/components"
	"prefabeditor/internal/engine"
	"prefabeditor/internal/physics"

	"github.com/go-gl/mathgl/mgl32"
)

// Pose is the editor camera's position and viewing direction.
type Pose struct {
	Position mgl32.Vec3
	Forward  mgl32.Vec3
}

// World is the live environment prefab instances are attached to. All
// methods are safe for concurrent use; the scene itself must only be read
// through VisitAttached while other goroutines may attach or detach.
type World struct {
	Scene     *engine.Scene
	Templates *Templates

	mu             sync.RWMutex
	excluded       map[string]struct{}
	referenceNames []string
	camera         Pose
	hasCamera      bool
}

func New(templates *Templates) *World {
	if templates == nil {
		templates = NewTemplates("")
	}
	return &World{
		Scene:     engine.NewScene("Main"),
		Templates: templates,
		excluded:  make(map[string]struct{}),
	}
}

// SetExcludedNames replaces the names ignored by Raycast. Matching is case
// insensitive.
func (w *World) SetExcludedNames(names []string) {
	excluded := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			excluded[name] = struct{}{}
		}
	}
	w.mu.Lock()
	w.excluded = excluded
	w.mu.Unlock()
}

func (w *World) IsExcluded(g *engine.GameObject) bool {
	if g.Name == "" {
		return false
	}
	w.mu.RLock()
	_, ok := w.excluded[strings.ToLower(g.Name)]
	w.mu.RUnlock()
	return ok
}

// SetReferenceNames sets the names of scene objects that act as observers
// instead of the camera.
func (w *World) SetReferenceNames(names []string) {
	var refs []string
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			refs = append(refs, name)
		}
	}
	w.mu.Lock()
	w.referenceNames = refs
	w.mu.Unlock()
}

func (w *World) SetCamera(position, forward mgl32.Vec3) {
	w.mu.Lock()
	w.camera = Pose{Position: position, Forward: forward}
	w.hasCamera = true
	w.mu.Unlock()
}

// Camera returns the last pose passed to SetCamera.
func (w *World) Camera() (Pose, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.camera, w.hasCamera
}

// Instantiate builds a new, unattached node tree from a template.
func (w *World) Instantiate(ctx context.Context, templatePath string) (*engine.GameObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spec, err := w.Templates.Load(templatePath)
	if err != nil {
		return nil, err
	}
	g, err := spec.Build()
	if err != nil {
		return nil, fmt.Errorf("world: build template %s: %w", templatePath, err)
	}
	return g, nil
}

func (w *World) AddToScene(g *engine.GameObject) {
	w.mu.Lock()
	w.Scene.AddGameObject(g)
	w.mu.Unlock()
}

func (w *World) RemoveFromScene(g *engine.GameObject) {
	w.mu.Lock()
	w.Scene.RemoveGameObject(g)
	w.mu.Unlock()
}

func (w *World) Attached(g *engine.GameObject) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.Scene.Contains(g)
}

// AttachedCount is the number of root objects in the scene.
func (w *World) AttachedCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.Scene.GameObjects)
}

// VisitAttached calls fn for every attached root while holding the read
// lock. fn must not attach or detach.
func (w *World) VisitAttached(fn func(*engine.GameObject)) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, g := range w.Scene.GameObjects {
		fn(g)
	}
}

// SetTransform replaces the local transform of g under the world lock, so
// readers such as ObserverPositions never see a partial update.
func (w *World) SetTransform(g *engine.GameObject, position, rotation, scale mgl32.Vec3) {
	w.mu.Lock()
	defer w.mu.Unlock()
	g.Transform.Position = position
	g.Transform.Rotation = rotation
	g.Transform.Scale = scale
}

// ObserverPositions returns the world positions of the reference objects
// currently in the scene. When none are found it falls back to the camera.
func (w *World) ObserverPositions() []mgl32.Vec3 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var positions []mgl32.Vec3
	for _, name := range w.referenceNames {
		if g := w.Scene.FindByName(name); g != nil {
			positions = append(positions, g.WorldPosition())
		}
	}
	if len(positions) > 0 {
		return positions
	}
	if w.hasCamera {
		return []mgl32.Vec3{w.camera.Position}
	}
	return nil
}

// HasRenderableGeometry reports whether g itself carries a mesh with a
// non-empty extent.
func HasRenderableGeometry(g *engine.GameObject) bool {
	for _, c := range g.Components() {
		if mesh, ok := c.(*components.MeshRenderer); ok && mesh.HasGeometry() {
			return true
		}
	}
	return false
}

type Hit struct {
	Object   *engine.GameObject
	Distance float32
	Point    mgl32.Vec3
}

// Raycast returns the closest attached node hit by the ray within
// maxDistance. Excluded names and nodes without geometry are skipped.
func (w *World) Raycast(origin, direction mgl32.Vec3, maxDistance float32) (Hit, bool) {
	if direction.LenSqr() == 0 {
		return Hit{}, false
	}
	direction = direction.Normalize()

	w.mu.RLock()
	defer w.mu.RUnlock()

	var best Hit
	found := false
	for _, root := range w.Scene.GameObjects {
		root.Walk(func(g *engine.GameObject) bool {
			if g.Name != "" {
				if _, skip := w.excluded[strings.ToLower(g.Name)]; skip {
					return true
				}
			}
			for _, c := range g.Components() {
				mesh, ok := c.(*components.MeshRenderer)
				if !ok || !mesh.HasGeometry() {
					continue
				}
				dist, ok := physics.RaycastAABB(origin, direction, mesh.Bounds(), maxDistance)
				if ok && (!found || dist < best.Distance) {
					best = Hit{Object: g, Distance: dist, Point: origin.Add(direction.Mul(dist))}
					found = true
				}
			}
			return true
		})
	}
	return best, found
}
