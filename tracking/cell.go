package tracking

import (
	"sort"
	"sync"

	"github.com/theoremus-urban-solutions/geotrack/grid"
)

// EntityRef identifies one tracked entity within its organization.
type EntityRef struct {
	Organization string
	Entity       string
}

// CellSupervisor owns the membership set of exactly one grid cell.
// Membership writes go through the CellMap so that cross-cell handoffs
// can lock both supervisors involved.
type CellSupervisor struct {
	cell    grid.Cell
	mu      sync.Mutex
	members map[EntityRef]struct{}
}

func newCellSupervisor(cell grid.Cell) *CellSupervisor {
	return &CellSupervisor{cell: cell, members: make(map[EntityRef]struct{})}
}

// Snapshot returns a point-in-time copy of the membership set. It reflects
// membership before or after any concurrent handoff, never a torn state,
// because handoffs hold this cell's lock for their whole duration.
func (s *CellSupervisor) Snapshot() []EntityRef {
	s.mu.Lock()
	out := make([]EntityRef, 0, len(s.members))
	for ref := range s.members {
		out = append(out, ref)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Organization != out[j].Organization {
			return out[i].Organization < out[j].Organization
		}
		return out[i].Entity < out[j].Entity
	})
	return out
}

// CellMap lazily materializes one CellSupervisor per occupied grid cell and
// coordinates the two-cell handoff when an entity crosses a boundary.
// Each entity's actor is the single writer of that entity's placement, so
// all mutations for one entity are already serialized before they get here.
type CellMap struct {
	mu    sync.RWMutex
	cells map[grid.Cell]*CellSupervisor
}

// NewCellMap creates an empty cell map.
func NewCellMap() *CellMap {
	return &CellMap{cells: make(map[grid.Cell]*CellSupervisor)}
}

func (m *CellMap) supervisor(c grid.Cell) *CellSupervisor {
	m.mu.RLock()
	s, ok := m.cells[c]
	m.mu.RUnlock()
	if ok {
		return s
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.cells[c]; ok {
		return s
	}
	s = newCellSupervisor(c)
	m.cells[c] = s
	return s
}

// Place inserts an entity into a cell. Idempotent.
func (m *CellMap) Place(ref EntityRef, to grid.Cell) {
	s := m.supervisor(to)
	s.mu.Lock()
	s.members[ref] = struct{}{}
	s.mu.Unlock()
}

// Move transfers an entity between two cells as one coordinated step: both
// cells are locked for the duration, so no snapshot can observe the entity
// in neither or both. Locks are taken in canonical cell order to stay
// deadlock-free when two entities swap cells simultaneously.
func (m *CellMap) Move(ref EntityRef, from, to grid.Cell) {
	if from == to {
		m.Place(ref, to)
		return
	}
	fromSup := m.supervisor(from)
	toSup := m.supervisor(to)
	first, second := fromSup, toSup
	if cellLess(to, from) {
		first, second = toSup, fromSup
	}
	first.mu.Lock()
	second.mu.Lock()
	delete(fromSup.members, ref)
	toSup.members[ref] = struct{}{}
	second.mu.Unlock()
	first.mu.Unlock()
}

// Remove drops an entity from a cell's membership. No-op if absent.
func (m *CellMap) Remove(ref EntityRef, from grid.Cell) {
	m.mu.RLock()
	s, ok := m.cells[from]
	m.mu.RUnlock()
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.members, ref)
	s.mu.Unlock()
}

// MembersSnapshot returns the entities currently assigned to a cell.
func (m *CellMap) MembersSnapshot(c grid.Cell) []EntityRef {
	m.mu.RLock()
	s, ok := m.cells[c]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return s.Snapshot()
}

func cellLess(a, b grid.Cell) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Col < b.Col
}
