package tracking

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/theoremus-urban-solutions/geotrack/grid"
)

type capturePub struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func (p *capturePub) Publish(ev ChangeEvent) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *capturePub) all() []ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ChangeEvent, len(p.events))
	copy(out, p.events)
	return out
}

func newTestRouter(t *testing.T, pub Publisher, idleTimeout time.Duration) (*IngestRouter, *CellMap) {
	t.Helper()
	g, err := grid.New(60.0, 60.6, 24.4, 25.6, 0.2)
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	cells := NewCellMap()
	return NewIngestRouter(g, cells, pub, []string{"org-a", "org-b"}, idleTimeout), cells
}

func TestRoute_FirstReport(t *testing.T) {
	pub := &capturePub{}
	r, cells := newTestRouter(t, pub, time.Minute)

	err := r.Route(Report{Organization: "org-a", Entity: "e1", Lat: 60.1, Lon: 24.5, TimestampMS: 1000})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}

	st, ok := r.CurrentState("org-a", "e1")
	if !ok {
		t.Fatal("CurrentState: entity not found")
	}
	if st.Sequence != 1 {
		t.Errorf("sequence = %d, want 1", st.Sequence)
	}
	if st.Cell != (grid.Cell{Row: 0, Col: 0}) {
		t.Errorf("cell = %v, want (0,0)", st.Cell)
	}
	if got := cells.MembersSnapshot(grid.Cell{Row: 0, Col: 0}); len(got) != 1 || got[0].Entity != "e1" {
		t.Errorf("membership = %v, want [e1]", got)
	}
	if evs := pub.all(); len(evs) != 1 || evs[0].Sequence != 1 || evs[0].Row != 0 || evs[0].Col != 0 {
		t.Errorf("unexpected events: %+v", evs)
	}
}

func TestRoute_CellHandoff(t *testing.T) {
	pub := &capturePub{}
	r, _ := newTestRouter(t, pub, time.Minute)

	if err := r.Route(Report{Organization: "org-a", Entity: "e1", Lat: 60.1, Lon: 24.5, TimestampMS: 1000}); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if err := r.Route(Report{Organization: "org-a", Entity: "e1", Lat: 60.3, Lon: 24.5, TimestampMS: 2000}); err != nil {
		t.Fatalf("Route: %v", err)
	}

	if got := r.MembersSnapshot("org-a", grid.Cell{Row: 0, Col: 0}); len(got) != 0 {
		t.Errorf("old cell still holds %v", got)
	}
	if got := r.MembersSnapshot("org-a", grid.Cell{Row: 1, Col: 0}); len(got) != 1 || got[0] != "e1" {
		t.Errorf("new cell membership = %v, want [e1]", got)
	}

	evs := pub.all()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[1].Row != 1 || evs[1].Col != 0 || evs[1].Sequence != 2 {
		t.Errorf("handoff event = %+v", evs[1])
	}
}

// membershipPub verifies, at the instant of publish, that the entity is
// already present in the event's cell.
type membershipPub struct {
	cells    *CellMap
	mu       sync.Mutex
	failures []string
}

func (p *membershipPub) Publish(ev ChangeEvent) {
	found := false
	for _, ref := range p.cells.MembersSnapshot(ev.Cell()) {
		if ref.Entity == ev.Entity && ref.Organization == ev.Organization {
			found = true
			break
		}
	}
	if !found {
		p.mu.Lock()
		p.failures = append(p.failures, fmt.Sprintf("%s not in %v at seq %d", ev.Entity, ev.Cell(), ev.Sequence))
		p.mu.Unlock()
	}
}

func TestRoute_MembershipVisibleBeforePublish(t *testing.T) {
	g, err := grid.New(60.0, 60.6, 24.4, 25.6, 0.2)
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	cells := NewCellMap()
	pub := &membershipPub{cells: cells}
	r := NewIngestRouter(g, cells, pub, []string{"org-a"}, time.Minute)

	// walk the entity north across all three rows, twice
	ts := int64(0)
	for pass := 0; pass < 2; pass++ {
		for _, lat := range []float64{60.1, 60.3, 60.5} {
			ts += 1000
			if err := r.Route(Report{Organization: "org-a", Entity: "walker", Lat: lat, Lon: 24.5, TimestampMS: ts}); err != nil {
				t.Fatalf("Route: %v", err)
			}
		}
		for _, lat := range []float64{60.3, 60.1} {
			ts += 1000
			if err := r.Route(Report{Organization: "org-a", Entity: "walker", Lat: lat, Lon: 24.5, TimestampMS: ts}); err != nil {
				t.Fatalf("Route: %v", err)
			}
		}
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	for _, f := range pub.failures {
		t.Error(f)
	}
}

func TestRoute_StaleUpdate(t *testing.T) {
	pub := &capturePub{}
	r, _ := newTestRouter(t, pub, time.Minute)

	if err := r.Route(Report{Organization: "org-a", Entity: "e1", Lat: 60.1, Lon: 24.5, TimestampMS: 5000}); err != nil {
		t.Fatalf("Route: %v", err)
	}
	before, _ := r.CurrentState("org-a", "e1")

	tests := []struct {
		name string
		ts   int64
	}{
		{name: "earlier timestamp", ts: 4000},
		{name: "equal timestamp", ts: 5000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Route(Report{Organization: "org-a", Entity: "e1", Lat: 60.5, Lon: 25.5, TimestampMS: tt.ts})
			if !errors.Is(err, ErrStaleUpdate) {
				t.Fatalf("expected ErrStaleUpdate, got %v", err)
			}
			after, _ := r.CurrentState("org-a", "e1")
			if after != before {
				t.Errorf("state changed by stale report: %+v -> %+v", before, after)
			}
		})
	}

	if n := r.Stats().StaleDrops.Load(); n != 2 {
		t.Errorf("stale drops = %d, want 2", n)
	}
}

func TestRoute_OutOfBounds(t *testing.T) {
	pub := &capturePub{}
	r, _ := newTestRouter(t, pub, time.Minute)

	if err := r.Route(Report{Organization: "org-a", Entity: "e1", Lat: 60.1, Lon: 24.5, TimestampMS: 1000}); err != nil {
		t.Fatalf("Route: %v", err)
	}
	before, _ := r.CurrentState("org-a", "e1")

	err := r.Route(Report{Organization: "org-a", Entity: "e1", Lat: 59.0, Lon: 24.5, TimestampMS: 2000})
	if !errors.Is(err, grid.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	after, _ := r.CurrentState("org-a", "e1")
	if after != before {
		t.Errorf("state changed by out-of-bounds report")
	}
	if len(pub.all()) != 1 {
		t.Errorf("out-of-bounds report published an event")
	}
}

func TestRoute_Validation(t *testing.T) {
	pub := &capturePub{}
	r, _ := newTestRouter(t, pub, time.Minute)

	tests := []struct {
		name string
		rep  Report
		want error
	}{
		{name: "unknown org", rep: Report{Organization: "nope", Entity: "e1", Lat: 60.1, Lon: 24.5, TimestampMS: 1}, want: ErrUnknownOrganization},
		{name: "empty org", rep: Report{Entity: "e1", Lat: 60.1, Lon: 24.5, TimestampMS: 1}, want: ErrInvalidReport},
		{name: "empty entity", rep: Report{Organization: "org-a", Lat: 60.1, Lon: 24.5, TimestampMS: 1}, want: ErrInvalidReport},
		{name: "zero timestamp", rep: Report{Organization: "org-a", Entity: "e1", Lat: 60.1, Lon: 24.5}, want: ErrInvalidReport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Route(tt.rep); !errors.Is(err, tt.want) {
				t.Errorf("Route = %v, want %v", err, tt.want)
			}
		})
	}
	if r.ActorCount() != 0 {
		t.Errorf("rejected reports created actors: %d", r.ActorCount())
	}
}

func TestRoute_ConcurrentFirstReports(t *testing.T) {
	pub := &capturePub{}
	r, _ := newTestRouter(t, pub, time.Minute)

	const n = 32
	var wg sync.WaitGroup
	accepted := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.Route(Report{Organization: "org-a", Entity: "racer", Lat: 60.1, Lon: 24.5, TimestampMS: 1000})
			if err == nil {
				accepted <- struct{}{}
			} else if !errors.Is(err, ErrStaleUpdate) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(accepted)

	count := 0
	for range accepted {
		count++
	}
	if count != 1 {
		t.Errorf("accepted %d identical first reports, want 1", count)
	}
	if r.ActorCount() != 1 {
		t.Errorf("actor count = %d, want 1", r.ActorCount())
	}
	st, ok := r.CurrentState("org-a", "racer")
	if !ok || st.Sequence != 1 {
		t.Errorf("final state = %+v (ok=%v), want sequence 1", st, ok)
	}
}

func TestRoute_OrderIndependence(t *testing.T) {
	reports := make([]Report, 0, 8)
	for i := 1; i <= 8; i++ {
		reports = append(reports, Report{
			Organization: "org-a",
			Entity:       "e1",
			Lat:          60.0 + 0.07*float64(i),
			Lon:          24.4 + 0.13*float64(i),
			TimestampMS:  int64(i) * 1000,
		})
	}

	run := func(order []Report) EntityState {
		r, _ := newTestRouter(t, &capturePub{}, time.Minute)
		for _, rep := range order {
			err := r.Route(rep)
			if err != nil && !errors.Is(err, ErrStaleUpdate) {
				t.Fatalf("Route: %v", err)
			}
		}
		st, ok := r.CurrentState("org-a", "e1")
		if !ok {
			t.Fatal("entity missing after replay")
		}
		return st
	}

	sorted := run(reports)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 5; trial++ {
		shuffled := make([]Report, len(reports))
		copy(shuffled, reports)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := run(shuffled)
		// sequence and traveled distance depend on how many reports were
		// accepted along the way; position, cell and timestamp must not
		if got.Lat != sorted.Lat || got.Lon != sorted.Lon || got.Cell != sorted.Cell || got.UpdatedMS != sorted.UpdatedMS {
			t.Errorf("trial %d: final state %+v differs from sorted-order %+v", trial, got, sorted)
		}
	}
}

func TestRetireIdle(t *testing.T) {
	pub := &capturePub{}
	r, cells := newTestRouter(t, pub, 50*time.Millisecond)

	if err := r.Route(Report{Organization: "org-a", Entity: "e1", Lat: 60.1, Lon: 24.5, TimestampMS: 1000}); err != nil {
		t.Fatalf("Route: %v", err)
	}

	// not yet idle
	r.retireIdle(time.Now())
	if r.ActorCount() != 1 {
		t.Fatal("actor retired while active")
	}

	r.retireIdle(time.Now().Add(time.Second))
	if r.ActorCount() != 0 {
		t.Fatalf("actor count = %d after retirement, want 0", r.ActorCount())
	}
	if got := cells.MembersSnapshot(grid.Cell{Row: 0, Col: 0}); len(got) != 0 {
		t.Errorf("membership after retirement = %v, want empty", got)
	}
	if _, ok := r.CurrentState("org-a", "e1"); ok {
		t.Error("CurrentState found retired entity")
	}

	// a later report recreates the entity from scratch
	if err := r.Route(Report{Organization: "org-a", Entity: "e1", Lat: 60.1, Lon: 24.5, TimestampMS: 2000}); err != nil {
		t.Fatalf("Route after retirement: %v", err)
	}
	st, ok := r.CurrentState("org-a", "e1")
	if !ok || st.Sequence != 1 {
		t.Errorf("recreated state = %+v (ok=%v), want sequence 1", st, ok)
	}
}

func TestRoute_RetiredActorIsReplaced(t *testing.T) {
	pub := &capturePub{}
	r, _ := newTestRouter(t, pub, 0)

	if err := r.Route(Report{Organization: "org-a", Entity: "e1", Lat: 60.1, Lon: 24.5, TimestampMS: 1000}); err != nil {
		t.Fatalf("Route: %v", err)
	}

	// zero timeout: the actor retires on the first sweep, but we keep the
	// stale handle around to exercise the recreate path directly
	r.mu.Lock()
	stale := r.actors[EntityRef{Organization: "org-a", Entity: "e1"}]
	r.mu.Unlock()

	r.retireIdle(time.Now())
	if err := stale.applyReport(Report{Organization: "org-a", Entity: "e1", Lat: 60.1, Lon: 24.5, TimestampMS: 2000}); err != errActorStopped {
		t.Fatalf("apply on retired actor = %v, want errActorStopped", err)
	}

	if err := r.Route(Report{Organization: "org-a", Entity: "e1", Lat: 60.1, Lon: 24.5, TimestampMS: 3000}); err != nil {
		t.Fatalf("Route after retirement: %v", err)
	}
}

func TestRoute_OrganizationsAreIsolated(t *testing.T) {
	pub := &capturePub{}
	r, _ := newTestRouter(t, pub, time.Minute)

	if err := r.Route(Report{Organization: "org-a", Entity: "shared-id", Lat: 60.1, Lon: 24.5, TimestampMS: 1000}); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if err := r.Route(Report{Organization: "org-b", Entity: "shared-id", Lat: 60.5, Lon: 25.5, TimestampMS: 1000}); err != nil {
		t.Fatalf("Route: %v", err)
	}

	a, _ := r.CurrentState("org-a", "shared-id")
	b, _ := r.CurrentState("org-b", "shared-id")
	if a.Cell == b.Cell {
		t.Fatal("same entity id in two orgs collapsed into one actor")
	}
	if got := r.MembersSnapshot("org-a", grid.Cell{Row: 0, Col: 0}); len(got) != 1 {
		t.Errorf("org-a snapshot = %v", got)
	}
	if got := r.MembersSnapshot("org-b", grid.Cell{Row: 0, Col: 0}); len(got) != 0 {
		t.Errorf("org-b sees org-a members: %v", got)
	}
}
