package tracking

import (
	"time"

	"github.com/theoremus-urban-solutions/geotrack/grid"
	"github.com/theoremus-urban-solutions/geotrack/utils"
)

// EntityState is the authoritative record for one tracked entity. It is
// owned exclusively by the entity's actor goroutine; everything outside the
// actor only ever sees copies.
type EntityState struct {
	Entity       string
	Organization string
	Lat          float64
	Lon          float64
	Cell         grid.Cell
	Sequence     uint64
	UpdatedMS    int64
	TraveledKM   float64
}

type actorDeps struct {
	grid  *grid.Grid
	cells *CellMap
	pub   Publisher
	stats *Stats
}

type msgKind int

const (
	msgApply msgKind = iota
	msgState
	msgRetire
)

type actorMsg struct {
	kind    msgKind
	report  Report
	err     chan error
	state   chan EntityState
	now     time.Time
	timeout time.Duration
	retired chan bool
}

// EntityActor serializes every operation on one entity's state through a
// single goroutine. The inbox is unbuffered: once done is closed no send
// can ever become ready, so a report racing retirement reliably fails over
// to the router's recreate path instead of getting lost.
type EntityActor struct {
	ref   EntityRef
	inbox chan actorMsg
	done  chan struct{}
}

func newEntityActor(ref EntityRef, deps actorDeps) *EntityActor {
	a := &EntityActor{
		ref:   ref,
		inbox: make(chan actorMsg),
		done:  make(chan struct{}),
	}
	go a.run(deps)
	return a
}

func (a *EntityActor) run(deps actorDeps) {
	st := EntityState{Entity: a.ref.Entity, Organization: a.ref.Organization}
	placed := false
	lastSeen := time.Now()
	for msg := range a.inbox {
		switch msg.kind {
		case msgApply:
			// any report, accepted or not, counts as activity
			lastSeen = time.Now()
			msg.err <- a.apply(&st, &placed, msg.report, deps)
		case msgState:
			msg.state <- st
		case msgRetire:
			if msg.now.Sub(lastSeen) < msg.timeout {
				msg.retired <- false
				continue
			}
			if placed {
				deps.cells.Remove(a.ref, st.Cell)
			}
			deps.stats.RetiredActors.Add(1)
			close(a.done)
			msg.retired <- true
			return
		}
	}
}

func (a *EntityActor) apply(st *EntityState, placed *bool, rep Report, deps actorDeps) error {
	if rep.TimestampMS <= st.UpdatedMS {
		deps.stats.StaleDrops.Add(1)
		return ErrStaleUpdate
	}
	cell, err := deps.grid.CellFor(grid.Coordinate{Lat: rep.Lat, Lon: rep.Lon})
	if err != nil {
		deps.stats.OutOfBoundsDrops.Add(1)
		return err
	}

	// Membership bookkeeping happens before the event is published, so an
	// observer reacting to the event already finds the entity in its new
	// cell.
	if !*placed {
		deps.cells.Place(a.ref, cell)
		*placed = true
	} else {
		if cell != st.Cell {
			deps.cells.Move(a.ref, st.Cell, cell)
		}
		st.TraveledKM += utils.HaversineKM(st.Lat, st.Lon, rep.Lat, rep.Lon)
	}

	st.Lat = rep.Lat
	st.Lon = rep.Lon
	st.Cell = cell
	st.UpdatedMS = rep.TimestampMS
	st.Sequence++
	deps.stats.AcceptedReports.Add(1)

	if deps.pub != nil {
		deps.pub.Publish(ChangeEvent{
			Entity:       st.Entity,
			Organization: st.Organization,
			Row:          cell.Row,
			Col:          cell.Col,
			Lat:          st.Lat,
			Lon:          st.Lon,
			Sequence:     st.Sequence,
			TimestampMS:  st.UpdatedMS,
		})
	}
	return nil
}

// submit delivers a message to the actor loop, or reports that the actor
// has already retired.
func (a *EntityActor) submit(m actorMsg) bool {
	select {
	case a.inbox <- m:
		return true
	case <-a.done:
		return false
	}
}

func (a *EntityActor) applyReport(rep Report) error {
	errc := make(chan error, 1)
	if !a.submit(actorMsg{kind: msgApply, report: rep, err: errc}) {
		return errActorStopped
	}
	return <-errc
}

// currentState returns an immutable snapshot of the entity's state.
func (a *EntityActor) currentState() (EntityState, bool) {
	reply := make(chan EntityState, 1)
	if !a.submit(actorMsg{kind: msgState, state: reply}) {
		return EntityState{}, false
	}
	return <-reply, true
}

// retireIfIdle asks the actor to retire itself if it has seen no report
// since timeout before now. The idle check and the membership removal run
// as one serialized step inside the actor loop, so a report accepted after
// the check cannot be lost to retirement.
func (a *EntityActor) retireIfIdle(now time.Time, timeout time.Duration) bool {
	reply := make(chan bool, 1)
	if !a.submit(actorMsg{kind: msgRetire, now: now, timeout: timeout, retired: reply}) {
		return true
	}
	return <-reply
}
