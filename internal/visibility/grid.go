package visibility

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Grid is a uniform 3D cell index over instance positions. Every position
// change must go through Move; QueryRadius then returns a superset of the
// ids within the radius. Not safe for concurrent use; the scheduler guards
// it with its own lock.
type Grid struct {
	cellSize float32
	cells    map[cellKey]map[string]struct{}
	ids      map[string]cellKey
}

type cellKey struct {
	x, y, z int32
}

func NewGrid(cellSize float32) *Grid {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[cellKey]map[string]struct{}),
		ids:      make(map[string]cellKey),
	}
}

func (g *Grid) toCell(v float32) int32 {
	return int32(math.Floor(float64(v / g.cellSize)))
}

func (g *Grid) key(p mgl32.Vec3) cellKey {
	return cellKey{x: g.toCell(p.X()), y: g.toCell(p.Y()), z: g.toCell(p.Z())}
}

// Insert places id at p, moving it if it is already indexed.
func (g *Grid) Insert(id string, p mgl32.Vec3) {
	if _, ok := g.ids[id]; ok {
		g.Move(id, p)
		return
	}
	g.add(id, g.key(p))
}

func (g *Grid) add(id string, k cellKey) {
	cell := g.cells[k]
	if cell == nil {
		cell = make(map[string]struct{})
		g.cells[k] = cell
	}
	cell[id] = struct{}{}
	g.ids[id] = k
}

func (g *Grid) Remove(id string) {
	k, ok := g.ids[id]
	if !ok {
		return
	}
	delete(g.ids, id)
	if cell := g.cells[k]; cell != nil {
		delete(cell, id)
		if len(cell) == 0 {
			delete(g.cells, k)
		}
	}
}

// Move updates id's cell when its position changes. Unknown ids are
// inserted.
func (g *Grid) Move(id string, p mgl32.Vec3) {
	newK := g.key(p)
	if oldK, ok := g.ids[id]; ok {
		if oldK == newK {
			return
		}
		g.Remove(id)
	}
	g.add(id, newK)
}

func (g *Grid) Len() int {
	return len(g.ids)
}

// QueryRadius returns the ids in every cell overlapping the cube of half
// extent r around p. Callers do the exact distance check.
func (g *Grid) QueryRadius(p mgl32.Vec3, r float32) []string {
	if r < 0 || len(g.ids) == 0 {
		return nil
	}
	lo := g.key(p.Sub(mgl32.Vec3{r, r, r}))
	hi := g.key(p.Add(mgl32.Vec3{r, r, r}))

	var result []string
	span := float64(hi.x-lo.x+1) * float64(hi.y-lo.y+1) * float64(hi.z-lo.z+1)
	if span > float64(len(g.cells)) {
		// Range covers more cells than are occupied; scan the occupied ones.
		for k, cell := range g.cells {
			if k.x < lo.x || k.x > hi.x || k.y < lo.y || k.y > hi.y || k.z < lo.z || k.z > hi.z {
				continue
			}
			for id := range cell {
				result = append(result, id)
			}
		}
		return result
	}

	for x := lo.x; x <= hi.x; x++ {
		for y := lo.y; y <= hi.y; y++ {
			for z := lo.z; z <= hi.z; z++ {
				for id := range g.cells[cellKey{x, y, z}] {
					result = append(result, id)
				}
			}
		}
	}
	return result
}
