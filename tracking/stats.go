package tracking

import "sync/atomic"

// Stats counts accepted and dropped reports. Dropped reports are never
// retried by the core; the counters exist so operators can see them.
type Stats struct {
	AcceptedReports  atomic.Uint64
	StaleDrops       atomic.Uint64
	OutOfBoundsDrops atomic.Uint64
	InvalidReports   atomic.Uint64
	UnknownOrgDrops  atomic.Uint64
	RetiredActors    atomic.Uint64
}

// StatsSnapshot is a plain copy of the counters for serialization.
type StatsSnapshot struct {
	AcceptedReports  uint64 `json:"accepted_reports"`
	StaleDrops       uint64 `json:"stale_drops"`
	OutOfBoundsDrops uint64 `json:"out_of_bounds_drops"`
	InvalidReports   uint64 `json:"invalid_reports"`
	UnknownOrgDrops  uint64 `json:"unknown_org_drops"`
	RetiredActors    uint64 `json:"retired_actors"`
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		AcceptedReports:  s.AcceptedReports.Load(),
		StaleDrops:       s.StaleDrops.Load(),
		OutOfBoundsDrops: s.OutOfBoundsDrops.Load(),
		InvalidReports:   s.InvalidReports.Load(),
		UnknownOrgDrops:  s.UnknownOrgDrops.Load(),
		RetiredActors:    s.RetiredActors.Load(),
	}
}
