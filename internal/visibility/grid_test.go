package visibility

import (
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestGridQueryRadius(t *testing.T) {
	g := NewGrid(10)
	g.Insert("origin", mgl32.Vec3{1, 1, 1})
	g.Insert("neg", mgl32.Vec3{-5, 0, -5})
	g.Insert("far", mgl32.Vec3{500, 0, 0})

	got := g.QueryRadius(mgl32.Vec3{}, 8)
	slices.Sort(got)
	if !slices.Equal(got, []string{"neg", "origin"}) {
		t.Errorf("QueryRadius = %v", got)
	}

	got = g.QueryRadius(mgl32.Vec3{}, 10000)
	if len(got) != 3 {
		t.Errorf("Huge radius should return everything, got %v", got)
	}
}

func TestGridMoveRemove(t *testing.T) {
	g := NewGrid(10)
	g.Insert("a", mgl32.Vec3{})
	g.Move("a", mgl32.Vec3{100, 0, 0})

	if got := g.QueryRadius(mgl32.Vec3{}, 5); len(got) != 0 {
		t.Errorf("Moved id should leave its old cell, got %v", got)
	}
	if got := g.QueryRadius(mgl32.Vec3{100, 0, 0}, 5); len(got) != 1 {
		t.Errorf("Moved id should be found at its new cell, got %v", got)
	}

	g.Insert("a", mgl32.Vec3{})
	if g.Len() != 1 {
		t.Errorf("Insert of a known id should move it, len = %d", g.Len())
	}

	g.Remove("a")
	g.Remove("a")
	if g.Len() != 0 || len(g.cells) != 0 {
		t.Error("Remove should clean up empty cells")
	}
}

func TestMultiSource(t *testing.T) {
	m := MultiSource{
		StaticSource{{1, 0, 0}},
		nil,
		StaticSource{{2, 0, 0}, {3, 0, 0}},
	}
	if got := m.ObserverPositions(); len(got) != 3 {
		t.Errorf("Expected 3 merged positions, got %v", got)
	}
}
