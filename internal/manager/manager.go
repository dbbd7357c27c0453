// Package manager hosts the prefab store, the visibility scheduler and the
// editing operations on top of a world.
package manager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"prefabeditor/internal/engine"
	"prefabeditor/internal/manifest"
	"prefabeditor/internal/prefab"
	"prefabeditor/internal/remote"
	"prefabeditor/internal/spawn"
	"prefabeditor/internal/visibility"
	"prefabeditor/internal/world"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrNoCamera       = errors.New("manager: camera is missing")
	ErrAlreadyStarted = errors.New("manager: already started")
)

const pickDistance = math.MaxFloat32

// Manager owns the placement state of one manifest. Operations are
// serialized; OnStatus listeners must not call back into the Manager.
type Manager struct {
	opts    Options
	world   *world.World
	store   *prefab.Store
	spawner *spawn.Adapter
	sched   *visibility.Scheduler
	hub     *remote.Hub

	// OnStatus reports user-facing messages such as load and save results.
	OnStatus engine.EventWithArg[string]

	mu           sync.Mutex
	selected     string
	undoStack    []undoState
	lastManifest []byte

	started bool
	stopped bool
	cancel  context.CancelFunc
	server  *remote.Server
	watcher *manifest.Watcher
	watchWg sync.WaitGroup
}

// New wires a manager to w. Extra observer sources are merged with the
// world's camera and reference objects.
func New(opts Options, w *world.World, observers ...visibility.ObserverSource) *Manager {
	opts = opts.withDefaults()
	w.SetExcludedNames(opts.ExcludedObjectNames)
	w.SetReferenceNames(opts.ReferenceObjectNames)

	m := &Manager{
		opts:    opts,
		world:   w,
		store:   prefab.NewStore(),
		spawner: spawn.NewAdapter(w, opts.MaterializeConcurrency),
	}

	sources := visibility.MultiSource{w}
	sources = append(sources, observers...)
	if opts.RemoteObserverAddr != "" {
		m.hub = remote.NewHub()
		sources = append(sources, m.hub)
	}

	m.sched = visibility.New(w, sources, m.store)
	m.sched.EnableGrid(opts.GridCellSize)
	if m.hub != nil {
		m.hub.Loaded = m.sched.LoadedIDs
		m.sched.OnShown.AddListener(m.hub.PrefabShown)
		m.sched.OnHidden.AddListener(m.hub.PrefabHidden)
	}
	return m
}

func (m *Manager) Options() Options                 { return m.opts }
func (m *Manager) World() *world.World              { return m.world }
func (m *Manager) Store() *prefab.Store             { return m.store }
func (m *Manager) Scheduler() *visibility.Scheduler { return m.sched }

// Hub returns the remote observer hub, or nil when the feed is disabled.
func (m *Manager) Hub() *remote.Hub { return m.hub }

// RemoteAddr is the address the observer feed listens on, or "" when it
// is not running.
func (m *Manager) RemoteAddr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server == nil {
		return ""
	}
	return m.server.Addr()
}

func (m *Manager) status(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("manager: %s", msg)
	m.OnStatus.Invoke(msg)
}

// Start loads the manifest, materializes its records and starts the
// scheduler, plus the watcher and remote feed when configured. A failed
// load leaves the store empty and is returned, but everything else still
// starts.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	var errs []error
	if err := m.loadLocked(runCtx); err != nil {
		errs = append(errs, err)
	}

	if m.hub != nil {
		srv, err := remote.Listen(m.opts.RemoteObserverAddr, m.hub)
		if err != nil {
			m.status("Remote observer feed disabled: %v", err)
			errs = append(errs, err)
		} else {
			m.server = srv
		}
	}

	if m.opts.WatchManifest {
		if err := m.startWatcherLocked(runCtx); err != nil {
			m.status("Manifest watch disabled: %v", err)
			errs = append(errs, err)
		}
	}

	m.sched.Start(runCtx, m.opts.TickInterval)
	return errors.Join(errs...)
}

// Stop tears everything down: no pass, reload or remote update runs after
// it returns. Safe to call more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped || !m.started {
		m.stopped = true
		m.mu.Unlock()
		return
	}
	m.stopped = true
	cancel := m.cancel
	watcher := m.watcher
	server := m.server
	m.mu.Unlock()

	cancel()
	// Disconnect clients first so a pass blocked writing to one can finish.
	if server != nil {
		ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
		if err := server.Close(ctx); err != nil {
			log.Printf("manager: close remote feed: %v", err)
		}
		done()
	}
	m.sched.Stop()
	if watcher != nil {
		_ = watcher.Close()
	}
	m.watchWg.Wait()
}

// loadLocked replaces the current state with the manifest's contents.
func (m *Manager) loadLocked(ctx context.Context) error {
	m.clearLocked()

	path := m.opts.ManifestPath
	data, err := manifest.Fetch(ctx, path)
	if errors.Is(err, fs.ErrNotExist) {
		m.lastManifest = nil
		m.status("No manifest at %s, starting empty", path)
		return nil
	}
	var recs []prefab.Record
	if err == nil {
		recs, err = manifest.Deserialize(data)
	}
	if err != nil {
		m.status("Failed to load prefabs: %v", err)
		return fmt.Errorf("manager: load %s: %w", path, err)
	}
	m.lastManifest = data

	handles, err := m.spawner.MaterializeAll(ctx, recs)
	for _, h := range handles {
		m.store.Upsert(h.Record)
		m.sched.Track(h.Record.ID, h.Node)
	}
	if err != nil {
		for _, e := range unjoin(err) {
			log.Printf("manager: skipped prefab: %v", e)
		}
		m.status("Loaded %d prefabs, %d failed", len(handles), len(recs)-len(handles))
		return nil
	}
	m.status("Loaded %d prefabs", len(handles))
	return nil
}

func (m *Manager) clearLocked() {
	m.sched.Clear()
	m.spawner.Reset()
	m.store.Reset()
	m.selected = ""
	m.undoStack = nil
}

// Reload discards unsaved edits and loads the manifest again.
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(ctx)
}

// Save writes every live record to the manifest and drops tombstones for
// good.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := manifest.SaveFile(m.opts.ManifestPath, m.store.Entries())
	if err != nil {
		m.status("Save failed: %v", err)
		return err
	}
	m.lastManifest = data
	m.store.Compact()
	m.dropDeleteUndoLocked()
	m.status("Saved %d prefabs to %s", m.store.Len(), m.opts.ManifestPath)
	return nil
}

// Place spawns a template in front of the camera and selects it.
func (m *Manager) Place(ctx context.Context, templatePath string) (string, error) {
	pose, ok := m.world.Camera()
	if !ok {
		m.status("Cannot place prefab: camera is missing")
		return "", ErrNoCamera
	}

	forward := pose.Forward
	if forward.LenSqr() > 0 {
		forward = forward.Normalize()
	}
	s := m.opts.SpawnScale
	rec := prefab.Record{
		TemplatePath:   templatePath,
		Position:       pose.Position.Add(forward.Mul(m.opts.SpawnDistance)),
		Scale:          mgl32.Vec3{s, s, s},
		RenderDistance: m.opts.DefaultRenderDistance,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h, err := m.spawner.Materialize(ctx, rec)
	if err != nil {
		m.status("Error spawning prefab from path %s: %v", templatePath, err)
		return "", err
	}
	m.store.Upsert(h.Record)
	m.sched.Track(h.Record.ID, h.Node)
	m.selected = h.Record.ID
	m.status("Spawned prefab from path %q", templatePath)
	return h.Record.ID, nil
}

// Pick selects the prefab hit by the ray, if any.
func (m *Manager) Pick(origin, direction mgl32.Vec3) (string, bool) {
	hit, ok := m.world.Raycast(origin, direction, pickDistance)
	if !ok {
		return "", false
	}
	id, ok := m.spawner.Owner(hit.Object.UID)
	if !ok {
		return "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.liveLocked(id) {
		return "", false
	}
	m.selected = id
	return id, true
}

// Select sets the selection. An empty id clears it; unknown or deleted
// ids are ignored.
func (m *Manager) Select(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		m.selected = ""
		return true
	}
	if !m.liveLocked(id) {
		return false
	}
	m.selected = id
	return true
}

func (m *Manager) Selected() (prefab.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selected == "" {
		return prefab.Record{}, false
	}
	rec, ok := m.store.Get(m.selected)
	if !ok || rec.Deleted {
		return prefab.Record{}, false
	}
	return rec, true
}

func (m *Manager) liveLocked(id string) bool {
	rec, ok := m.store.Get(id)
	return ok && !rec.Deleted
}

// SetTransform writes the transform through to the store and the live
// node. Unknown or deleted ids are a no-op and report false.
func (m *Manager) SetTransform(id string, position, rotation, scale mgl32.Vec3) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.store.Get(id)
	if !ok || rec.Deleted {
		return false
	}
	m.pushUndoLocked(undoState{Type: undoTransform, ID: id, Record: rec})
	m.applyTransformLocked(id, position, rotation, scale)
	return true
}

// Move changes only the position.
func (m *Manager) Move(id string, position mgl32.Vec3) bool {
	rec, ok := m.store.Get(id)
	if !ok {
		return false
	}
	return m.SetTransform(id, position, rec.Rotation, rec.Scale)
}

func (m *Manager) applyTransformLocked(id string, position, rotation, scale mgl32.Vec3) {
	if err := m.store.UpdateTransform(id, position, rotation, scale); err != nil {
		return
	}
	if node, ok := m.sched.Node(id); ok {
		m.world.SetTransform(node, position, rotation, scale)
	}
	m.sched.Refresh(id)
}

// SetRenderDistance changes the distance beyond which id is detached.
// Negative distances are rejected.
func (m *Manager) SetRenderDistance(id string, distance float32) bool {
	if distance < 0 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.store.Get(id)
	if !ok || rec.Deleted {
		return false
	}
	m.pushUndoLocked(undoState{Type: undoRenderDistance, ID: id, Record: rec})
	if err := m.store.SetRenderDistance(id, distance); err != nil {
		return false
	}
	m.sched.Refresh(id)
	return true
}

// SetHidden hides or shows id. A hidden instance is detached on the next
// pass and stays in the manifest.
func (m *Manager) SetHidden(id string, hidden bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.store.Get(id)
	if !ok || rec.Deleted {
		return false
	}
	m.pushUndoLocked(undoState{Type: undoHidden, ID: id, Record: rec})
	return m.store.SetHidden(id, hidden) == nil
}

// Delete tombstones id and detaches its node right away. The record is
// left out of the next save.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.store.Get(id)
	if !ok || rec.Deleted {
		return false
	}
	m.store.MarkDeleted(id)
	m.sched.Untrack(id)
	m.spawner.Forget(id)
	if m.selected == id {
		m.selected = ""
	}
	m.pushUndoLocked(undoState{Type: undoDelete, ID: id, Record: rec})
	m.status("Deleted %s", id)
	return true
}

// Records returns the live records in insertion order.
func (m *Manager) Records() []prefab.Record {
	var recs []prefab.Record
	for rec := range m.store.Entries() {
		recs = append(recs, rec)
	}
	return recs
}

// rebuildTemplateLocked rematerializes every live record using the
// template. The new nodes start unloaded and replace the old ones.
func (m *Manager) rebuildTemplateLocked(ctx context.Context, key string) int {
	n := 0
	for rec := range m.store.Entries() {
		if world.TemplateKey(rec.TemplatePath) != key {
			continue
		}
		h, err := m.spawner.Materialize(ctx, rec)
		if err != nil {
			log.Printf("manager: rebuild %s: %v", rec.ID, err)
			continue
		}
		m.sched.Track(rec.ID, h.Node)
		n++
	}
	return n
}

func unjoin(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

func isURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
