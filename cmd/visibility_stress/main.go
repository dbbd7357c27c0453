// Stress test comparing full scans against the spatial grid for visibility
// passes.
package main

import (
	"fmt"
	"math/rand"
	"time"

	"prefabeditor/internal/engine"
	"prefabeditor/internal/prefab"
	"prefabeditor/internal/visibility"

	"github.com/go-gl/mathgl/mgl32"
)

type nopScene struct{}

func (nopScene) AddToScene(*engine.GameObject)      {}
func (nopScene) RemoveFromScene(*engine.GameObject) {}

// walker moves a single observer along a straight line every pass.
type walker struct {
	pos  mgl32.Vec3
	step mgl32.Vec3
}

func (w *walker) ObserverPositions() []mgl32.Vec3 {
	w.pos = w.pos.Add(w.step)
	return []mgl32.Vec3{w.pos}
}

func main() {
	testCounts := []int{1000, 5000, 10000, 50000, 100000}
	for _, count := range testCounts {
		testPasses(count)
	}
}

func testPasses(count int) {
	rng := rand.New(rand.NewSource(42))

	// Spread records so density stays roughly constant as count grows.
	spawnSize := float32(200) + float32(count)/10

	store := prefab.NewStore()
	nodes := make(map[string]*engine.GameObject, count)
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("prefab-%d", i)
		store.Upsert(prefab.Record{
			ID:             id,
			TemplatePath:   "stress",
			Position:       mgl32.Vec3{rng.Float32()*spawnSize - spawnSize/2, 0, rng.Float32()*spawnSize - spawnSize/2},
			Scale:          mgl32.Vec3{1, 1, 1},
			RenderDistance: 20 + rng.Float32()*30,
		})
		nodes[id] = engine.NewGameObject(id)
	}

	const passes = 50
	run := func(cellSize float32) (time.Duration, visibility.Stats) {
		obs := &walker{pos: mgl32.Vec3{-spawnSize / 2, 0, 0}, step: mgl32.Vec3{spawnSize / passes, 0, 0}}
		sched := visibility.New(nopScene{}, obs, store)
		sched.EnableGrid(cellSize)
		for id, node := range nodes {
			sched.Track(id, node)
		}

		start := time.Now()
		for i := 0; i < passes; i++ {
			sched.Pass()
		}
		return time.Since(start) / passes, sched.Stats()
	}

	scanTime, scanStats := run(0)
	gridTime, gridStats := run(64)

	speedup := float64(scanTime) / float64(gridTime)
	fmt.Printf("%6d prefabs: scan %9v (%5d attaches) | grid %9v (%5d attaches) | %.1fx speedup\n",
		count, scanTime.Round(time.Microsecond), scanStats.Attaches,
		gridTime.Round(time.Microsecond), gridStats.Attaches, speedup)
}
