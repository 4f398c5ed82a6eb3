package hub

import (
	"sync"
	"sync/atomic"

	"github.com/theoremus-urban-solutions/geotrack/grid"
	"github.com/theoremus-urban-solutions/geotrack/tracking"
)

// sendQueueSize bounds the per-subscriber backlog. A subscriber that falls
// further behind starts losing events.
const sendQueueSize = 64

// Sink is one subscriber's delivery endpoint. Send is called from a single
// goroutine per subscriber; Close is called exactly once, after the last
// Send.
type Sink interface {
	Send(ev tracking.ChangeEvent) error
	Close() error
}

type subscription struct {
	id  string
	org string

	mu    sync.Mutex // guards all/cells across viewport updates
	all   bool
	cells map[grid.Cell]struct{}

	out       chan tracking.ChangeEvent
	done      chan struct{}
	closeOnce sync.Once
}

func (s *subscription) stop() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *subscription) wants(ev tracking.ChangeEvent) bool {
	if s.org != ev.Organization {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.all {
		return true
	}
	_, ok := s.cells[ev.Cell()]
	return ok
}

func (s *subscription) setViewport(cells []grid.Cell) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(cells) == 0 {
		s.all = true
		s.cells = nil
		return
	}
	s.all = false
	s.cells = make(map[grid.Cell]struct{}, len(cells))
	for _, c := range cells {
		s.cells[c] = struct{}{}
	}
}

// Registry is the subscription registry: it matches change events against
// active subscriptions and hands them to each subscriber's queue.
// It implements tracking.Publisher.
type Registry struct {
	mu            sync.RWMutex
	subs          map[string]*subscription
	droppedEvents atomic.Uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]*subscription)}
}

// Subscribe registers a connection for an organization. An empty cell list
// means every cell of that organization. A second Subscribe with the same
// connection ID replaces the first.
func (r *Registry) Subscribe(connID, org string, cells []grid.Cell, sink Sink) {
	sub := &subscription{
		id:   connID,
		org:  org,
		out:  make(chan tracking.ChangeEvent, sendQueueSize),
		done: make(chan struct{}),
	}
	sub.setViewport(cells)

	r.mu.Lock()
	old := r.subs[connID]
	r.subs[connID] = sub
	r.mu.Unlock()
	if old != nil {
		old.stop()
	}

	go sub.pump(sink, r)
}

// pump is the subscriber's single writer goroutine.
func (s *subscription) pump(sink Sink, r *Registry) {
	defer func() { _ = sink.Close() }()
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.out:
			if err := sink.Send(ev); err != nil {
				// SubscriberUnavailable: isolated to this connection
				r.drop(s)
				return
			}
		}
	}
}

// drop removes a subscription unless it has already been replaced.
func (r *Registry) drop(sub *subscription) {
	r.mu.Lock()
	if cur, ok := r.subs[sub.id]; ok && cur == sub {
		delete(r.subs, sub.id)
	}
	r.mu.Unlock()
	sub.stop()
}

// Unsubscribe removes a connection. Safe to call concurrently with an
// in-flight delivery or a second Unsubscribe.
func (r *Registry) Unsubscribe(connID string) {
	r.mu.Lock()
	sub, ok := r.subs[connID]
	if ok {
		delete(r.subs, connID)
	}
	r.mu.Unlock()
	if ok {
		sub.stop()
	}
}

// UpdateViewport replaces the cell set of an existing subscription.
// An empty cell list widens the subscription to the whole organization.
func (r *Registry) UpdateViewport(connID string, cells []grid.Cell) {
	r.mu.RLock()
	sub, ok := r.subs[connID]
	r.mu.RUnlock()
	if ok {
		sub.setViewport(cells)
	}
}

// Publish fans an event out to every matching subscription. It never
// blocks: a full subscriber queue just drops this event for that
// subscriber.
func (r *Registry) Publish(ev tracking.ChangeEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, sub := range r.subs {
		if !sub.wants(ev) {
			continue
		}
		select {
		case sub.out <- ev:
		default:
			r.droppedEvents.Add(1)
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (r *Registry) SubscriberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// DroppedEvents returns how many events were lost to slow subscribers.
func (r *Registry) DroppedEvents() uint64 {
	return r.droppedEvents.Load()
}
