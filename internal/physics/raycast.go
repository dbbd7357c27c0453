package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// RaycastAABB intersects a ray with a box using the slab method. direction
// need not be normalized; the returned distance is in units of its length.
// A ray starting inside the box hits at distance 0.
func RaycastAABB(origin, direction mgl32.Vec3, box AABB, maxDistance float32) (float32, bool) {
	tmin := float32(0)
	tmax := float32(math.Inf(1))

	for axis := 0; axis < 3; axis++ {
		o, d := origin[axis], direction[axis]
		lo, hi := box.Min[axis], box.Max[axis]

		if d == 0 {
			if o < lo || o > hi {
				return 0, false
			}
			continue
		}

		t1 := (lo - o) / d
		t2 := (hi - o) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return 0, false
		}
	}

	if tmin > maxDistance {
		return 0, false
	}
	return tmin, true
}
