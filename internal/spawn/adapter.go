// Package spawn turns prefab records into live node trees and remembers
// which record owns each node.
package spawn

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"prefabeditor/internal/engine"
	"prefabeditor/internal/prefab"

	"golang.org/x/sync/errgroup"
)

const (
	TagRoot    = "prefab-root"
	TagSpawned = "spawned-prefab"
)

const DefaultConcurrency = 8

var ErrDeleted = errors.New("spawn: record is deleted")

// Instantiator creates a fresh, unattached node tree for a template.
type Instantiator interface {
	Instantiate(ctx context.Context, templatePath string) (*engine.GameObject, error)
}

// Handle pairs a record with the node materialized for it.
type Handle struct {
	Record prefab.Record
	Node   *engine.GameObject
}

// InstantiationError reports a single record that could not be materialized.
// Index is the record's position in a MaterializeAll batch, or -1.
type InstantiationError struct {
	TemplatePath string
	Index        int
	Err          error
}

func (e *InstantiationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("spawn: entry %d: instantiate %q: %v", e.Index, e.TemplatePath, e.Err)
	}
	return fmt.Sprintf("spawn: instantiate %q: %v", e.TemplatePath, e.Err)
}

func (e *InstantiationError) Unwrap() error { return e.Err }

type Adapter struct {
	env         Instantiator
	concurrency int

	mu     sync.RWMutex
	owners map[uint64]string
	nodes  map[string][]uint64
}

// NewAdapter returns an adapter running at most concurrency instantiations
// at once in MaterializeAll. Values below 1 use DefaultConcurrency.
func NewAdapter(env Instantiator, concurrency int) *Adapter {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Adapter{
		env:         env,
		concurrency: concurrency,
		owners:      make(map[uint64]string),
		nodes:       make(map[string][]uint64),
	}
}

// Materialize instantiates rec's template, applies its transform and tags
// the tree. A record without an ID is given "prefab-<root uid>".
func (a *Adapter) Materialize(ctx context.Context, rec prefab.Record) (Handle, error) {
	if rec.Deleted {
		return Handle{}, &InstantiationError{TemplatePath: rec.TemplatePath, Index: -1, Err: ErrDeleted}
	}

	node, err := a.env.Instantiate(ctx, rec.TemplatePath)
	if err == nil && node == nil {
		err = errors.New("instantiator returned no node")
	}
	if err != nil {
		return Handle{}, &InstantiationError{TemplatePath: rec.TemplatePath, Index: -1, Err: err}
	}

	node.Transform = engine.Transform{
		Position: rec.Position,
		Rotation: rec.Rotation,
		Scale:    rec.Scale,
	}
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("prefab-%d", node.UID)
	}

	node.AddTag(TagRoot)
	var uids []uint64
	node.Walk(func(n *engine.GameObject) bool {
		n.AddTag(TagSpawned)
		uids = append(uids, n.UID)
		return true
	})

	a.mu.Lock()
	a.forgetLocked(rec.ID)
	for _, uid := range uids {
		a.owners[uid] = rec.ID
	}
	a.nodes[rec.ID] = uids
	a.mu.Unlock()

	return Handle{Record: rec, Node: node}, nil
}

// MaterializeAll materializes every non-deleted record and waits for all of
// them. Successful handles are returned in input order; failures are
// joined into the returned error and do not stop the rest of the batch.
func (a *Adapter) MaterializeAll(ctx context.Context, recs []prefab.Record) ([]Handle, error) {
	handles := make([]Handle, len(recs))
	done := make([]bool, len(recs))
	errs := make([]error, len(recs))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, rec := range recs {
		if rec.Deleted {
			continue
		}
		g.Go(func() error {
			h, err := a.Materialize(ctx, rec)
			if err != nil {
				var ie *InstantiationError
				if errors.As(err, &ie) {
					ie.Index = i
				}
				errs[i] = err
				return nil
			}
			handles[i] = h
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Handle, 0, len(recs))
	for i, h := range handles {
		if done[i] {
			out = append(out, h)
		}
	}
	return out, errors.Join(errs...)
}

// Owner returns the record id owning the node with the given UID. Every
// node of a materialized tree is owned, not only the root.
func (a *Adapter) Owner(uid uint64) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.owners[uid]
	return id, ok
}

// Forget drops the ownership edges of a record.
func (a *Adapter) Forget(recordID string) {
	a.mu.Lock()
	a.forgetLocked(recordID)
	a.mu.Unlock()
}

func (a *Adapter) forgetLocked(recordID string) {
	for _, uid := range a.nodes[recordID] {
		delete(a.owners, uid)
	}
	delete(a.nodes, recordID)
}

// Reset forgets every ownership edge.
func (a *Adapter) Reset() {
	a.mu.Lock()
	a.owners = make(map[uint64]string)
	a.nodes = make(map[string][]uint64)
	a.mu.Unlock()
}
