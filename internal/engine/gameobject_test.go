package engine

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestNewGameObject(t *testing.T) {
	obj := NewGameObject("TestObject")

	if obj.Name != "TestObject" {
		t.Errorf("Expected name 'TestObject', got '%s'", obj.Name)
	}

	if obj.UID == 0 {
		t.Error("UID should not be 0")
	}

	if obj.components == nil {
		t.Error("components slice should be initialized")
	}

	if obj.Transform.Scale != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("Expected unit scale, got %v", obj.Transform.Scale)
	}
}

func TestGameObjectUniqueUIDs(t *testing.T) {
	obj1 := NewGameObject("First")
	obj2 := NewGameObject("Second")
	obj3 := NewGameObject("Third")

	if obj1.UID == obj2.UID {
		t.Error("GameObjects should have unique UIDs")
	}
	if obj2.UID == obj3.UID {
		t.Error("GameObjects should have unique UIDs")
	}
	if obj1.UID == obj3.UID {
		t.Error("GameObjects should have unique UIDs")
	}
}

func TestGameObjectTags(t *testing.T) {
	obj := NewGameObject("Test")
	obj.Tags = []string{"prefab-root", "static"}

	if !obj.HasTag("prefab-root") {
		t.Error("HasTag should return true for existing tag")
	}
	if obj.HasTag("player") {
		t.Error("HasTag should return false for non-existent tag")
	}

	obj.AddTag("static")
	if len(obj.Tags) != 2 {
		t.Errorf("AddTag should not duplicate tags, got %v", obj.Tags)
	}
	obj.AddTag("player")
	if !obj.HasTag("player") {
		t.Error("AddTag should add a missing tag")
	}

	obj2 := NewGameObject("Test2")
	if obj2.HasTag("anything") {
		t.Error("HasTag should return false when Tags is nil/empty")
	}
}

func TestGameObjectParentChild(t *testing.T) {
	parent := NewGameObject("Parent")
	child := NewGameObject("Child")

	parent.AddChild(child)

	if child.Parent != parent {
		t.Error("Child.Parent should be set")
	}
	if len(parent.Children) != 1 || parent.Children[0] != child {
		t.Fatalf("Child not added to parent's Children slice: %v", parent.Children)
	}

	other := NewGameObject("Other")
	other.AddChild(child)
	if len(parent.Children) != 0 {
		t.Error("Reparenting should detach the child from its old parent")
	}
	if child.Root() != other {
		t.Error("Root should follow the new parent")
	}
}

func TestGameObjectRemoveChild(t *testing.T) {
	parent := NewGameObject("Parent")
	child1 := NewGameObject("Child1")
	child2 := NewGameObject("Child2")

	parent.AddChild(child1)
	parent.AddChild(child2)

	parent.RemoveChild(child1)

	if len(parent.Children) != 1 {
		t.Errorf("Expected 1 child after removal, got %d", len(parent.Children))
	}
	if parent.Children[0] != child2 {
		t.Error("Wrong child removed")
	}
	if child1.Parent != nil {
		t.Error("Removed child should have nil parent")
	}
}

func TestGameObjectWalk(t *testing.T) {
	root := NewGameObject("Root")
	a := NewGameObject("A")
	b := NewGameObject("B")
	c := NewGameObject("C")
	root.AddChild(a)
	root.AddChild(b)
	a.AddChild(c)

	var names []string
	root.Walk(func(n *GameObject) bool {
		names = append(names, n.Name)
		return true
	})
	if len(names) != 4 || names[0] != "Root" || names[1] != "A" || names[2] != "C" || names[3] != "B" {
		t.Errorf("Unexpected walk order: %v", names)
	}

	names = names[:0]
	root.Walk(func(n *GameObject) bool {
		names = append(names, n.Name)
		return n.Name != "A"
	})
	if len(names) != 3 {
		t.Errorf("Returning false should skip children, got %v", names)
	}
}

func TestGameObjectComponents(t *testing.T) {
	obj := NewGameObject("Test")
	comp := &BaseComponent{}

	obj.AddComponent(comp)

	if len(obj.components) != 1 {
		t.Errorf("Expected 1 component, got %d", len(obj.components))
	}
	if comp.GetGameObject() != obj {
		t.Error("Component.gameObject should be set")
	}
	if GetComponent[*BaseComponent](obj) != comp {
		t.Error("GetComponent failed to find component")
	}
}

func TestGameObjectWorldTransform(t *testing.T) {
	parent := NewGameObject("Parent")
	parent.Transform.Position = mgl32.Vec3{10, 0, 0}
	parent.Transform.Scale = mgl32.Vec3{2, 2, 2}
	parent.Transform.Rotation = mgl32.Vec3{0, 90, 0}

	child := NewGameObject("Child")
	child.Transform.Position = mgl32.Vec3{1, 0, 0}
	parent.AddChild(child)

	// (1,0,0) scaled by 2 then rotated 90 degrees about Y gives (0,0,-2)
	got := child.WorldPosition()
	want := mgl32.Vec3{10, 0, -2}
	if !got.ApproxEqualThreshold(want, 1e-4) {
		t.Errorf("WorldPosition = %v, want %v", got, want)
	}

	if child.WorldScale() != (mgl32.Vec3{2, 2, 2}) {
		t.Errorf("WorldScale = %v", child.WorldScale())
	}
	if child.WorldRotation() != (mgl32.Vec3{0, 90, 0}) {
		t.Errorf("WorldRotation = %v", child.WorldRotation())
	}
}
