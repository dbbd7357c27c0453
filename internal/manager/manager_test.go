package manager

import (
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"prefabeditor/internal/components"
	"prefabeditor/internal/engine"
	"prefabeditor/internal/manifest"
	"prefabeditor/internal/world"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"
)

const scenarioManifest = `[
  {"pathPrefab": "Trees/Oak", "transforms": {"position": [40, 0, 0], "rotation": [0, 0, 0], "scale": [1, 1, 1]}, "renderDistance": 50},
  {"pathPrefab": "Rocks/Big", "transforms": {"position": [60, 0, 0], "rotation": [0, 0, 0], "scale": [1, 1, 1]}, "renderDistance": 50}
]`

func newTestWorld() *world.World {
	tpl := world.NewTemplates("")
	cube := []world.PartSpec{{Mesh: "cube", Size: []float32{2, 2, 2}}}
	tpl.Register("Trees/Oak", world.TemplateSpec{Name: "Oak", Parts: cube})
	tpl.Register("Rocks/Big", world.TemplateSpec{Name: "BigRock", Parts: cube})
	tpl.Register("Props/Crate", world.TemplateSpec{Name: "Crate", Parts: cube})
	tpl.Register("Trees/Tall", world.TemplateSpec{
		Name:     "Tall",
		Parts:    cube,
		Children: []world.TemplateSpec{{Name: "Canopy", Position: []float32{0, 5, 0}, Parts: cube}},
	})
	return world.New(tpl)
}

// newTestManager returns a manager whose scheduler never ticks on its own;
// tests drive it with Pass.
func newTestManager(t *testing.T, manifestBody string) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prefab-manager.json")
	if manifestBody != "" {
		if err := os.WriteFile(path, []byte(manifestBody), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	opts := DefaultOptions()
	opts.ManifestPath = path
	opts.TickInterval = time.Hour

	w := newTestWorld()
	w.SetCamera(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1})
	m := New(opts, w)
	t.Cleanup(m.Stop)
	return m, path
}

func idByTemplate(t *testing.T, m *Manager, templatePath string) string {
	t.Helper()
	for _, rec := range m.Records() {
		if rec.TemplatePath == templatePath {
			return rec.ID
		}
	}
	t.Fatalf("No record for %s", templatePath)
	return ""
}

func TestStartLoadsManifest(t *testing.T) {
	m, _ := newTestManager(t, scenarioManifest)

	var statuses []string
	m.OnStatus.AddListener(func(msg string) { statuses = append(statuses, msg) })

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !m.Scheduler().Running() {
		t.Error("Scheduler should be running after Start")
	}
	if m.Store().Len() != 2 {
		t.Fatalf("Expected 2 records, got %d", m.Store().Len())
	}

	oak := idByTemplate(t, m, "Trees/Oak")
	rock := idByTemplate(t, m, "Rocks/Big")
	if !strings.HasPrefix(oak, "prefab-") {
		t.Errorf("Unexpected generated id %q", oak)
	}

	m.Scheduler().Pass()
	if !m.Scheduler().Loaded(oak) || m.Scheduler().Loaded(rock) {
		t.Error("Expected only the oak at 40 units to be loaded")
	}

	m.World().SetCamera(mgl32.Vec3{100, 0, 0}, mgl32.Vec3{0, 0, -1})
	m.Scheduler().Pass()
	if m.Scheduler().Loaded(oak) || !m.Scheduler().Loaded(rock) {
		t.Error("Expected only the rock to be loaded after moving the camera")
	}

	if len(statuses) == 0 || statuses[0] != "Loaded 2 prefabs" {
		t.Errorf("Unexpected status messages %v", statuses)
	}

	if err := m.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted, got %v", err)
	}
}

func TestStartLoadFailure(t *testing.T) {
	m, _ := newTestManager(t, `[{"transforms": {"position": [0,0,0], "rotation": [0,0,0], "scale": [1,1,1]}}]`)

	err := m.Start(context.Background())
	var pe *manifest.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected ParseError, got %v", err)
	}
	if m.Store().Len() != 0 {
		t.Error("Failed load should leave the store empty")
	}
	if !m.Scheduler().Running() {
		t.Error("Scheduler should still start after a failed load")
	}
}

func TestStartMissingManifest(t *testing.T) {
	m, _ := newTestManager(t, "")
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Missing manifest should start empty, got %v", err)
	}
	if m.Store().Len() != 0 {
		t.Error("Expected an empty store")
	}
}

func TestStartSkipsUnknownTemplates(t *testing.T) {
	m, _ := newTestManager(t, `[
  {"pathPrefab": "Trees/Oak", "transforms": {"position": [0,0,0], "rotation": [0,0,0], "scale": [1,1,1]}},
  {"pathPrefab": "Nope", "transforms": {"position": [0,0,0], "rotation": [0,0,0], "scale": [1,1,1]}},
  {"pathPrefab": "Rocks/Big", "transforms": {"position": [0,0,0], "rotation": [0,0,0], "scale": [1,1,1]}, "isDeleted": true}
]`)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Instantiation failures should not fail Start: %v", err)
	}
	recs := m.Records()
	if len(recs) != 1 || recs[0].TemplatePath != "Trees/Oak" {
		t.Errorf("Expected only the oak, got %+v", recs)
	}
}

func TestStartRotationInRadians(t *testing.T) {
	m, _ := newTestManager(t, `[
  {"pathPrefab": "Trees/Tall", "transforms": {"position": [0,0,0], "rotation": [1.5707964, 0, 0], "scale": [1,1,1]}, "renderDistance": 50}
]`)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	id := idByTemplate(t, m, "Trees/Tall")
	rec, _ := m.Store().Get(id)
	if !rec.Rotation.ApproxEqualThreshold(mgl32.Vec3{90, 0, 0}, 1e-4) {
		t.Errorf("Expected 90 degrees about X, got %v", rec.Rotation)
	}

	node, _ := m.Scheduler().Node(id)
	if len(node.Children) != 1 {
		t.Fatalf("Expected one child, got %d", len(node.Children))
	}
	got := node.Children[0].WorldPosition()
	if got.Sub(mgl32.Vec3{0, 0, 5}).Len() > 1e-4 {
		t.Errorf("Expected canopy at (0, 0, 5), got %v", got)
	}
}

func TestPlace(t *testing.T) {
	m, _ := newTestManager(t, "")
	_ = m.Start(context.Background())
	m.World().SetCamera(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{0, 0, -5})

	id, err := m.Place(context.Background(), "Props/Crate")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	rec, ok := m.Selected()
	if !ok || rec.ID != id {
		t.Fatal("Placed prefab should be selected")
	}
	if !rec.Position.ApproxEqual(mgl32.Vec3{1, 2, -7}) {
		t.Errorf("Expected spawn 10 units ahead, got %v", rec.Position)
	}
	if rec.Scale != (mgl32.Vec3{1, 1, 1}) || rec.RenderDistance != 10000 {
		t.Errorf("Unexpected defaults %+v", rec)
	}
	if m.Scheduler().Loaded(id) {
		t.Error("Placed prefab should start unloaded")
	}
	m.Scheduler().Pass()
	if !m.Scheduler().Loaded(id) {
		t.Error("Placed prefab should load on the next pass")
	}

	if _, err := m.Place(context.Background(), "Missing"); !errors.Is(err, world.ErrUnknownTemplate) {
		t.Errorf("Expected ErrUnknownTemplate, got %v", err)
	}
}

func TestPlaceWithoutCamera(t *testing.T) {
	opts := DefaultOptions()
	opts.ManifestPath = filepath.Join(t.TempDir(), "m.json")
	m := New(opts, newTestWorld())
	if _, err := m.Place(context.Background(), "Props/Crate"); !errors.Is(err, ErrNoCamera) {
		t.Errorf("Expected ErrNoCamera, got %v", err)
	}
}

func TestPick(t *testing.T) {
	m, _ := newTestManager(t, "")
	_ = m.Start(context.Background())

	id, _ := m.Place(context.Background(), "Props/Crate")
	m.Select("")
	m.Scheduler().Pass()

	got, ok := m.Pick(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1})
	if !ok || got != id {
		t.Fatalf("Expected to pick %s, got %q", id, got)
	}
	if rec, _ := m.Selected(); rec.ID != id {
		t.Error("Pick should select the record")
	}

	// Objects that are not prefabs are never picked.
	m.Select("")
	wall := engine.NewGameObject("Wall")
	wall.Transform.Position = mgl32.Vec3{0, 0, 5}
	wall.AddComponent(components.NewMeshRenderer(components.MeshCube, color.NRGBA{}, mgl32.Vec3{4, 4, 1}))
	m.World().AddToScene(wall)
	if _, ok := m.Pick(mgl32.Vec3{}, mgl32.Vec3{0, 0, 1}); ok {
		t.Error("Non-prefab hit should not select anything")
	}
	if _, ok := m.Selected(); ok {
		t.Error("Selection should stay empty")
	}
}

func TestEditsWriteThrough(t *testing.T) {
	m, _ := newTestManager(t, scenarioManifest)
	_ = m.Start(context.Background())
	oak := idByTemplate(t, m, "Trees/Oak")

	pos := mgl32.Vec3{5, 0, 0}
	rot := mgl32.Vec3{0, 45, 0}
	scale := mgl32.Vec3{2, 2, 2}
	if !m.SetTransform(oak, pos, rot, scale) {
		t.Fatal("SetTransform should apply")
	}
	rec, _ := m.Store().Get(oak)
	if rec.Position != pos || rec.Rotation != rot || rec.Scale != scale {
		t.Errorf("Store not updated: %+v", rec)
	}
	node, _ := m.Scheduler().Node(oak)
	if node.Transform.Position != pos || node.Transform.Scale != scale {
		t.Errorf("Node not updated: %+v", node.Transform)
	}

	if !m.SetRenderDistance(oak, 1) || m.SetRenderDistance(oak, -1) {
		t.Error("Expected non-negative render distance to apply and negative to be rejected")
	}
	m.Scheduler().Pass()
	if m.Scheduler().Loaded(oak) {
		t.Error("Oak at 5 units with render distance 1 should be unloaded")
	}

	if !m.SetHidden(oak, true) {
		t.Error("SetHidden should apply")
	}
	if rec, _ := m.Store().Get(oak); !rec.Hidden {
		t.Error("Hidden flag should be stored")
	}

	before := m.Store().Len()
	if m.SetTransform("ghost", pos, rot, scale) || m.SetRenderDistance("ghost", 5) || m.SetHidden("ghost", true) || m.Delete("ghost") {
		t.Error("Edits on unknown ids should be no-ops")
	}
	if _, ok := m.Store().Get("ghost"); ok || m.Store().Len() != before {
		t.Error("Edits on unknown ids must not create records")
	}
}

func TestDelete(t *testing.T) {
	m, path := newTestManager(t, scenarioManifest)
	_ = m.Start(context.Background())
	oak := idByTemplate(t, m, "Trees/Oak")
	m.Scheduler().Pass()

	node, _ := m.Scheduler().Node(oak)
	m.Select(oak)
	if !m.Delete(oak) {
		t.Fatal("Delete should apply")
	}
	if m.World().Attached(node) {
		t.Error("Delete should detach immediately")
	}
	if _, ok := m.Selected(); ok {
		t.Error("Deleting the selection should clear it")
	}
	if m.Delete(oak) {
		t.Error("Second delete should be a no-op")
	}
	if m.Select(oak) {
		t.Error("Deleted records cannot be selected")
	}

	m.Scheduler().Pass()
	if m.World().Attached(node) || m.Scheduler().Loaded(oak) {
		t.Error("Deleted prefab must never be reattached")
	}

	if err := m.Save(); err != nil {
		t.Fatal(err)
	}
	recs, err := manifest.Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].TemplatePath != "Rocks/Big" {
		t.Errorf("Saved manifest should omit the deleted oak, got %+v", recs)
	}
	if _, ok := m.Store().Get(oak); ok {
		t.Error("Save should compact tombstones")
	}
}

func TestUndo(t *testing.T) {
	m, _ := newTestManager(t, scenarioManifest)
	_ = m.Start(context.Background())
	oak := idByTemplate(t, m, "Trees/Oak")

	if m.Undo() {
		t.Error("Nothing to undo yet")
	}

	m.Move(oak, mgl32.Vec3{1, 1, 1})
	m.SetHidden(oak, true)

	if !m.Undo() {
		t.Fatal("Undo should revert SetHidden")
	}
	if rec, _ := m.Store().Get(oak); rec.Hidden {
		t.Error("Hidden flag should be restored")
	}
	if !m.Undo() {
		t.Fatal("Undo should revert Move")
	}
	rec, _ := m.Store().Get(oak)
	if rec.Position != (mgl32.Vec3{40, 0, 0}) {
		t.Errorf("Position should be restored, got %v", rec.Position)
	}

	m.Delete(oak)
	if !m.Undo() {
		t.Fatal("Undo should restore the deleted prefab")
	}
	rec, ok := m.Store().Get(oak)
	if !ok || rec.Deleted {
		t.Fatal("Record should be live again")
	}
	m.Scheduler().Pass()
	if !m.Scheduler().Loaded(oak) {
		t.Error("Restored prefab should load again")
	}
	if sel, _ := m.Selected(); sel.ID != oak {
		t.Error("Restored prefab should be selected")
	}

	// Saving makes deletes permanent.
	m.Delete(oak)
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}
	if m.Undo() {
		t.Error("Deletes should not be undoable after a save")
	}
}

func TestSaveFormat(t *testing.T) {
	m, path := newTestManager(t, scenarioManifest)
	_ = m.Start(context.Background())

	if err := m.Save(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if len(raw) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(raw))
	}
	if _, ok := raw[0]["isDeleted"]; ok {
		t.Error("isDeleted should never be written")
	}
	if raw[0]["pathPrefab"] != "Trees/Oak" {
		t.Errorf("Entries should keep load order, got %v", raw[0]["pathPrefab"])
	}
}

func TestSaveToURLFails(t *testing.T) {
	opts := DefaultOptions()
	opts.ManifestPath = "https://example.invalid/prefab-manager.json"
	m := New(opts, newTestWorld())
	if err := m.Save(); err == nil {
		t.Error("Saving to a URL should fail")
	}
}

func TestReload(t *testing.T) {
	m, _ := newTestManager(t, scenarioManifest)
	_ = m.Start(context.Background())
	oak := idByTemplate(t, m, "Trees/Oak")
	m.Delete(oak)

	if err := m.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.Store().Len() != 2 {
		t.Errorf("Reload should discard unsaved deletes, got %d records", m.Store().Len())
	}
	if m.CanUndo() {
		t.Error("Reload should clear the undo history")
	}
}

func TestWatchManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prefab-manager.json")
	if err := os.WriteFile(path, []byte(scenarioManifest), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := DefaultOptions()
	opts.ManifestPath = path
	opts.TemplateBasePath = filepath.Join(dir, "prefabs")
	opts.TickInterval = time.Hour
	opts.WatchManifest = true
	m := New(opts, newTestWorld())
	t.Cleanup(m.Stop)

	var mu sync.Mutex
	var statuses []string
	m.OnStatus.AddListener(func(msg string) {
		mu.Lock()
		statuses = append(statuses, msg)
		mu.Unlock()
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Our own save must not trigger a reload.
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}
	oak := idByTemplate(t, m, "Trees/Oak")
	m.Move(oak, mgl32.Vec3{1, 0, 0})
	time.Sleep(300 * time.Millisecond)
	if !m.CanUndo() {
		t.Fatal("Saving should not reload the manifest")
	}

	single := `[{"pathPrefab": "Props/Crate", "transforms": {"position": [0,0,0], "rotation": [0,0,0], "scale": [1,1,1]}}]`
	if err := os.WriteFile(path, []byte(single), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if recs := m.Records(); len(recs) == 1 && recs[0].TemplatePath == "Props/Crate" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	t.Fatalf("Manifest change was not picked up, statuses: %v", statuses)
}

func TestWatchManifestPartialWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prefab-manager.json")
	if err := os.WriteFile(path, []byte(scenarioManifest), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := DefaultOptions()
	opts.ManifestPath = path
	opts.TemplateBasePath = filepath.Join(dir, "prefabs")
	opts.TickInterval = time.Hour
	opts.WatchManifest = true
	m := New(opts, newTestWorld())
	t.Cleanup(m.Stop)
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	single := `[{"pathPrefab": "Props/Crate", "transforms": {"position": [0,0,0], "rotation": [0,0,0], "scale": [1,1,1]}}]`
	if err := os.WriteFile(path, []byte(single[:20]), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := os.WriteFile(path, []byte(single), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if recs := m.Records(); len(recs) == 1 && recs[0].TemplatePath == "Props/Crate" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("Completed manifest was not loaded, records: %+v", m.Records())
}

func TestRemoteObservers(t *testing.T) {
	m, _ := newTestManager(t, scenarioManifest)
	m.opts.RemoteObserverAddr = "127.0.0.1:0"
	m = New(m.opts, newTestWorld())
	t.Cleanup(m.Stop)

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	addr := m.RemoteAddr()
	if addr == "" {
		t.Fatal("Remote feed should be listening")
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("Expected snapshot: %v", err)
	}

	if err := conn.WriteJSON(map[string]any{
		"type":    "observer",
		"payload": map[string]any{"id": "cam-1", "position": []float32{60, 0, 0}},
	}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(m.Hub().ObserverPositions()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// The world has no camera; the remote observer alone drives visibility.
	m.Scheduler().Pass()
	rock := idByTemplate(t, m, "Rocks/Big")
	if !m.Scheduler().Loaded(rock) {
		t.Fatal("Remote observer should load the rock")
	}

	var envelope struct {
		Type    string `json:"type"`
		Payload struct {
			ID string `json:"id"`
		} `json:"payload"`
	}
	for {
		if err := conn.ReadJSON(&envelope); err != nil {
			t.Fatalf("Expected prefabShown: %v", err)
		}
		if envelope.Type == "prefabShown" {
			break
		}
	}
	if envelope.Payload.ID == "" {
		t.Error("prefabShown should carry the instance id")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t, scenarioManifest)
	_ = m.Start(context.Background())
	m.Stop()
	m.Stop()
	if m.Scheduler().Running() {
		t.Error("Scheduler should be stopped")
	}

	unstarted := New(DefaultOptions(), newTestWorld())
	unstarted.Stop()
}

func TestTemplateChangeRebuildsInstances(t *testing.T) {
	dir := t.TempDir()
	tplDir := filepath.Join(dir, "prefabs")
	if err := os.MkdirAll(filepath.Join(tplDir, "Props"), 0o755); err != nil {
		t.Fatal(err)
	}
	tplPath := filepath.Join(tplDir, "Props", "Crate.yaml")
	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(tplPath, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("name: Crate\nparts:\n  - mesh: cube\n    size: [1, 1, 1]\n")

	opts := DefaultOptions()
	opts.ManifestPath = filepath.Join(dir, "prefab-manager.json")
	opts.TemplateBasePath = tplDir
	opts.TickInterval = time.Hour
	w := world.New(world.NewTemplates(tplDir))
	w.SetCamera(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1})
	m := New(opts, w)
	t.Cleanup(m.Stop)
	_ = m.Start(context.Background())

	id, err := m.Place(context.Background(), "Props/Crate")
	if err != nil {
		t.Fatal(err)
	}
	m.Scheduler().Pass()
	oldNode, _ := m.Scheduler().Node(id)

	write("name: Crate\nparts:\n  - mesh: sphere\n    size: [2]\n")
	m.handleFileChange(context.Background(), tplPath)

	newNode, _ := m.Scheduler().Node(id)
	if newNode == oldNode {
		t.Fatal("Template change should rebuild the instance")
	}
	if m.World().Attached(oldNode) {
		t.Error("Old node should be detached")
	}
	mesh := engine.GetComponent[*components.MeshRenderer](newNode)
	if mesh == nil || mesh.MeshType != components.MeshSphere {
		t.Errorf("Expected the rebuilt node to use the new template, got %+v", mesh)
	}
	if newNode.Transform.Position != oldNode.Transform.Position {
		t.Error("Rebuilt node should keep the record transform")
	}
	if owner, ok := m.spawner.Owner(newNode.UID); !ok || owner != id {
		t.Error("Rebuilt node should be owned by the record")
	}

	m.Scheduler().Pass()
	if !m.World().Attached(newNode) {
		t.Error("Rebuilt node should attach on the next pass")
	}
}
