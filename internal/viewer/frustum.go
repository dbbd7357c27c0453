package viewer

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Frustum holds the 6 planes of a view frustum: left, right, bottom, top,
// near, far. Normals point inward.
type Frustum struct {
	planes [6]plane
}

// plane is ax + by + cz + d = 0.
type plane struct {
	normal   mgl32.Vec3
	distance float32
}

// ExtractFrustum pulls the planes out of a view-projection matrix
// (Gribb/Hartmann).
func ExtractFrustum(viewProj mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := viewProj.Row(0), viewProj.Row(1), viewProj.Row(2), viewProj.Row(3)

	var f Frustum
	f.planes[0] = planeFrom(r3.Add(r0))
	f.planes[1] = planeFrom(r3.Sub(r0))
	f.planes[2] = planeFrom(r3.Add(r1))
	f.planes[3] = planeFrom(r3.Sub(r1))
	f.planes[4] = planeFrom(r3.Add(r2))
	f.planes[5] = planeFrom(r3.Sub(r2))
	return f
}

func planeFrom(v mgl32.Vec4) plane {
	p := plane{normal: v.Vec3(), distance: v.W()}
	length := p.normal.Len()
	if length == 0 {
		return p
	}
	return plane{normal: p.normal.Mul(1 / length), distance: p.distance / length}
}

// ContainsSphere reports whether the sphere is inside or crosses the
// frustum.
func (f *Frustum) ContainsSphere(center mgl32.Vec3, radius float32) bool {
	for i := range f.planes {
		if f.planes[i].normal.Dot(center)+f.planes[i].distance < -radius {
			return false
		}
	}
	return true
}

func (f *Frustum) ContainsPoint(point mgl32.Vec3) bool {
	return f.ContainsSphere(point, 0)
}
