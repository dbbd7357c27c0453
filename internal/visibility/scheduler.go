// Package visibility attaches prefab instances to the live scene while an
// observer is within their render distance and detaches them otherwise.
package visibility

import (
	"context"
	"slices"
	"sync"
	"time"

	"prefabeditor/internal/engine"
	"prefabeditor/internal/prefab"

	"github.com/go-gl/mathgl/mgl32"
)

const DefaultInterval = 100 * time.Millisecond

type Attacher interface {
	AddToScene(g *engine.GameObject)
	RemoveFromScene(g *engine.GameObject)
}

type ObserverSource interface {
	ObserverPositions() []mgl32.Vec3
}

type RecordSource interface {
	Get(id string) (prefab.Record, bool)
}

type State int

const (
	Unloaded State = iota
	Loaded
)

func (s State) String() string {
	if s == Loaded {
		return "loaded"
	}
	return "unloaded"
}

type Stats struct {
	Tracked  int
	Loaded   int
	Passes   uint64
	Attaches uint64
	Detaches uint64
}

type instance struct {
	node  *engine.GameObject
	state State

	// Cached for the grid; refreshed by Reposition and Refresh.
	position       mgl32.Vec3
	renderDistance float32
}

type change struct {
	id    string
	shown bool
}

// Scheduler owns the Loaded/Unloaded state of every tracked instance. A
// pass detaches loaded instances that are no longer visible, then attaches
// unloaded ones that are. It never attaches or detaches an instance twice
// in a row.
type Scheduler struct {
	attacher  Attacher
	observers ObserverSource
	records   RecordSource

	// Fired after the pass that changed the instance's state.
	OnShown  engine.EventWithArg[string]
	OnHidden engine.EventWithArg[string]

	mu         sync.Mutex
	instances  map[string]*instance
	grid       *Grid
	maxRange   float32
	rangeStale bool
	stats      Stats

	runMu sync.Mutex
	stop  chan struct{}
	done  chan struct{}
}

func New(attacher Attacher, observers ObserverSource, records RecordSource) *Scheduler {
	return &Scheduler{
		attacher:  attacher,
		observers: observers,
		records:   records,
		instances: make(map[string]*instance),
	}
}

// EnableGrid indexes tracked instances in a uniform grid with the given
// cell size so the attach phase only checks nearby candidates. A size of
// zero or less disables the grid.
func (s *Scheduler) EnableGrid(cellSize float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cellSize <= 0 {
		s.grid = nil
		return
	}
	s.grid = NewGrid(cellSize)
	for id, inst := range s.instances {
		s.grid.Insert(id, inst.position)
	}
	s.rangeStale = true
}

// Track registers node as the instance for id. The instance starts
// Unloaded and is considered on the next pass. Tracking an id again
// replaces its node, detaching the old one if it was loaded.
func (s *Scheduler) Track(id string, node *engine.GameObject) {
	var hidden bool

	s.mu.Lock()
	if old, ok := s.instances[id]; ok && old.state == Loaded {
		s.attacher.RemoveFromScene(old.node)
		s.stats.Detaches++
		hidden = true
	}
	inst := &instance{node: node, state: Unloaded}
	s.cache(id, inst)
	s.instances[id] = inst
	if s.grid != nil {
		s.grid.Insert(id, inst.position)
	}
	s.rangeStale = true
	s.mu.Unlock()

	if hidden {
		s.OnHidden.Invoke(id)
	}
}

func (s *Scheduler) cache(id string, inst *instance) {
	if rec, ok := s.records.Get(id); ok {
		inst.position = rec.Position
		inst.renderDistance = rec.RenderDistance
		return
	}
	if inst.node != nil {
		inst.position = inst.node.Transform.Position
	}
}

// Untrack detaches id if it is loaded and forgets it. It reports whether
// id was tracked.
func (s *Scheduler) Untrack(id string) bool {
	s.mu.Lock()
	inst, ok := s.instances[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	wasLoaded := inst.state == Loaded
	if wasLoaded {
		s.attacher.RemoveFromScene(inst.node)
		s.stats.Detaches++
	}
	delete(s.instances, id)
	if s.grid != nil {
		s.grid.Remove(id)
	}
	s.rangeStale = true
	s.mu.Unlock()

	if wasLoaded {
		s.OnHidden.Invoke(id)
	}
	return true
}

// Reposition moves id's grid entry to pos.
func (s *Scheduler) Reposition(id string, pos mgl32.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok {
		return
	}
	inst.position = pos
	if s.grid != nil {
		s.grid.Move(id, pos)
	}
}

// Refresh rereads id's position and render distance from the record source.
// Call it after every transform or render distance edit.
func (s *Scheduler) Refresh(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok {
		return
	}
	s.cache(id, inst)
	if s.grid != nil {
		s.grid.Move(id, inst.position)
	}
	s.rangeStale = true
}

// Pass runs one scheduling step. Without observers it does nothing.
func (s *Scheduler) Pass() {
	observers := s.observers.ObserverPositions()
	if len(observers) == 0 {
		return
	}

	var changes []change

	s.mu.Lock()
	s.stats.Passes++

	for id, inst := range s.instances {
		if inst.state != Loaded || s.visible(id, observers) {
			continue
		}
		s.attacher.RemoveFromScene(inst.node)
		inst.state = Unloaded
		s.stats.Detaches++
		changes = append(changes, change{id: id})
	}

	for _, id := range s.candidates(observers) {
		inst, ok := s.instances[id]
		if !ok || inst.state != Unloaded || !s.visible(id, observers) {
			continue
		}
		s.attacher.AddToScene(inst.node)
		inst.state = Loaded
		s.stats.Attaches++
		changes = append(changes, change{id: id, shown: true})
	}
	s.mu.Unlock()

	for _, c := range changes {
		if c.shown {
			s.OnShown.Invoke(c.id)
		} else {
			s.OnHidden.Invoke(c.id)
		}
	}
}

// visible reports whether the record for id exists, is neither hidden nor
// deleted, and lies within its render distance of the nearest observer.
func (s *Scheduler) visible(id string, observers []mgl32.Vec3) bool {
	rec, ok := s.records.Get(id)
	if !ok || rec.Hidden || rec.Deleted {
		return false
	}
	return slices.ContainsFunc(observers, rec.InRange)
}

func (s *Scheduler) candidates(observers []mgl32.Vec3) []string {
	if s.grid == nil {
		ids := make([]string, 0, len(s.instances))
		for id, inst := range s.instances {
			if inst.state == Unloaded {
				ids = append(ids, id)
			}
		}
		return ids
	}

	if s.rangeStale {
		s.maxRange = 0
		for _, inst := range s.instances {
			s.maxRange = max(s.maxRange, inst.renderDistance)
		}
		s.rangeStale = false
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, o := range observers {
		for _, id := range s.grid.QueryRadius(o, s.maxRange) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// Start runs passes every interval on a new goroutine until ctx is done or
// Stop is called. Calling Start while running returns the running loop's
// done channel.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.done != nil {
		select {
		case <-s.done:
		default:
			return s.done
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done
	go s.loop(ctx, interval, stop, done)
	return done
}

// Run is Start followed by waiting for the loop to exit.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	<-s.Start(ctx, interval)
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			// A pass may race with Stop; check again before touching the scene.
			select {
			case <-stop:
				return
			default:
			}
			s.Pass()
		}
	}
}

// Stop ends the loop started by Start and waits for it to exit. No pass
// runs after Stop returns. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.stop == nil {
		return
	}
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
	s.stop, s.done = nil, nil
}

func (s *Scheduler) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Scheduler) Loaded(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	return ok && inst.state == Loaded
}

func (s *Scheduler) State(id string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok {
		return Unloaded, false
	}
	return inst.state, true
}

// Node returns the node tracked for id.
func (s *Scheduler) Node(id string) (*engine.GameObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok {
		return nil, false
	}
	return inst.node, true
}

// LoadedIDs returns the ids of loaded instances, sorted.
func (s *Scheduler) LoadedIDs() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.instances))
	for id, inst := range s.instances {
		if inst.state == Loaded {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()
	slices.Sort(ids)
	return ids
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Tracked = len(s.instances)
	for _, inst := range s.instances {
		if inst.state == Loaded {
			st.Loaded++
		}
	}
	return st
}

// Clear detaches every loaded instance and forgets all of them.
func (s *Scheduler) Clear() {
	var hidden []string

	s.mu.Lock()
	for id, inst := range s.instances {
		if inst.state == Loaded {
			s.attacher.RemoveFromScene(inst.node)
			s.stats.Detaches++
			hidden = append(hidden, id)
		}
	}
	s.instances = make(map[string]*instance)
	if s.grid != nil {
		s.grid = NewGrid(s.grid.cellSize)
	}
	s.rangeStale = true
	s.mu.Unlock()

	for _, id := range hidden {
		s.OnHidden.Invoke(id)
	}
}
