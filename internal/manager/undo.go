package manager

import (
	"context"

	"prefabeditor/internal/prefab"
)

const maxUndoStack = 50

type undoActionType int

const (
	undoTransform undoActionType = iota
	undoRenderDistance
	undoHidden
	undoDelete
)

// undoState holds the record as it was before the action.
type undoState struct {
	Type   undoActionType
	ID     string
	Record prefab.Record
}

func (m *Manager) pushUndoLocked(state undoState) {
	if len(m.undoStack) >= maxUndoStack {
		m.undoStack = m.undoStack[1:]
	}
	m.undoStack = append(m.undoStack, state)
}

// dropDeleteUndoLocked forgets deletes that a save has made permanent.
func (m *Manager) dropDeleteUndoLocked() {
	kept := m.undoStack[:0]
	for _, state := range m.undoStack {
		if state.Type != undoDelete {
			kept = append(kept, state)
		}
	}
	m.undoStack = kept
}

// CanUndo reports whether Undo has anything to restore.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undoStack) > 0
}

// Undo reverts the most recent edit and reports whether one was reverted.
func (m *Manager) Undo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.undoStack) > 0 {
		state := m.undoStack[len(m.undoStack)-1]
		m.undoStack = m.undoStack[:len(m.undoStack)-1]
		if m.undoLocked(state) {
			return true
		}
	}
	return false
}

func (m *Manager) undoLocked(state undoState) bool {
	prev := state.Record
	current, ok := m.store.Get(state.ID)

	switch state.Type {
	case undoTransform:
		if !ok || current.Deleted {
			return false
		}
		m.applyTransformLocked(state.ID, prev.Position, prev.Rotation, prev.Scale)
		m.selected = state.ID

	case undoRenderDistance:
		if !ok || current.Deleted {
			return false
		}
		_ = m.store.SetRenderDistance(state.ID, prev.RenderDistance)
		m.sched.Refresh(state.ID)
		m.selected = state.ID

	case undoHidden:
		if !ok || current.Deleted {
			return false
		}
		_ = m.store.SetHidden(state.ID, prev.Hidden)
		m.selected = state.ID

	case undoDelete:
		prev.Deleted = false
		h, err := m.spawner.Materialize(context.Background(), prev)
		if err != nil {
			m.status("Failed to restore %s: %v", state.ID, err)
			return false
		}
		m.store.Upsert(h.Record)
		m.sched.Track(h.Record.ID, h.Node)
		m.selected = h.Record.ID
		m.status("Restored %s", h.Record.ID)
	}
	return true
}
