package tracking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/theoremus-urban-solutions/geotrack/grid"
)

// IngestRouter routes inbound reports to entity actors, creating each actor
// on first sight and retiring it after the configured idle timeout.
type IngestRouter struct {
	deps        actorDeps
	idleTimeout time.Duration
	orgs        map[string]struct{}

	mu     sync.Mutex
	actors map[EntityRef]*EntityActor
}

// NewIngestRouter creates a router for the given organizations. Reports for
// any other organization are rejected.
func NewIngestRouter(g *grid.Grid, cells *CellMap, pub Publisher, orgIDs []string, idleTimeout time.Duration) *IngestRouter {
	orgs := make(map[string]struct{}, len(orgIDs))
	for _, id := range orgIDs {
		orgs[id] = struct{}{}
	}
	return &IngestRouter{
		deps:        actorDeps{grid: g, cells: cells, pub: pub, stats: &Stats{}},
		idleTimeout: idleTimeout,
		orgs:        orgs,
		actors:      make(map[EntityRef]*EntityActor),
	}
}

// Route validates a report and forwards it to the owning entity actor.
// Returned errors follow the ingest taxonomy: ErrInvalidReport,
// ErrUnknownOrganization, ErrStaleUpdate, grid.ErrOutOfBounds. All of them
// mean the report was dropped and entity state is unchanged.
func (r *IngestRouter) Route(rep Report) error {
	if err := rep.validate(); err != nil {
		r.deps.stats.InvalidReports.Add(1)
		return err
	}
	if _, ok := r.orgs[rep.Organization]; !ok {
		r.deps.stats.UnknownOrgDrops.Add(1)
		return ErrUnknownOrganization
	}
	ref := EntityRef{Organization: rep.Organization, Entity: rep.Entity}
	for {
		a := r.actorFor(ref)
		err := a.applyReport(rep)
		if err == errActorStopped {
			// report raced retirement; replace the actor and retry
			r.forget(ref, a)
			continue
		}
		return err
	}
}

// actorFor returns the live actor for ref, creating it under the router
// lock so that concurrent first reports produce exactly one actor.
func (r *IngestRouter) actorFor(ref EntityRef) *EntityActor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.actors[ref]; ok {
		return a
	}
	a := newEntityActor(ref, r.deps)
	r.actors[ref] = a
	return a
}

func (r *IngestRouter) forget(ref EntityRef, a *EntityActor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.actors[ref]; ok && cur == a {
		delete(r.actors, ref)
	}
}

// CurrentState returns a snapshot of one entity's state.
func (r *IngestRouter) CurrentState(org, entity string) (EntityState, bool) {
	r.mu.Lock()
	a, ok := r.actors[EntityRef{Organization: org, Entity: entity}]
	r.mu.Unlock()
	if !ok {
		return EntityState{}, false
	}
	return a.currentState()
}

// MembersSnapshot returns the IDs of org's entities currently in a cell.
// Other organizations' entities in the same cell stay invisible.
func (r *IngestRouter) MembersSnapshot(org string, cell grid.Cell) []string {
	refs := r.deps.cells.MembersSnapshot(cell)
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.Organization == org {
			out = append(out, ref.Entity)
		}
	}
	sort.Strings(out)
	return out
}

// ActorCount returns the number of live entity actors.
func (r *IngestRouter) ActorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actors)
}

// Stats exposes the ingest drop/accept counters.
func (r *IngestRouter) Stats() *Stats {
	return r.deps.stats
}

// RunJanitor retires idle actors on a fixed interval until ctx is done.
func (r *IngestRouter) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.retireIdle(now)
		}
	}
}

func (r *IngestRouter) retireIdle(now time.Time) {
	r.mu.Lock()
	live := make(map[EntityRef]*EntityActor, len(r.actors))
	for ref, a := range r.actors {
		live[ref] = a
	}
	r.mu.Unlock()

	for ref, a := range live {
		if a.retireIfIdle(now, r.idleTimeout) {
			r.forget(ref, a)
		}
	}
}
