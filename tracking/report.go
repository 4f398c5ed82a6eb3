package tracking

import (
	"fmt"
	"math"
)

// Report is one inbound position report as delivered by a feed adapter.
// Delivery is at-least-once and possibly out of order; the staleness rule
// in the entity actor makes ingestion idempotent.
type Report struct {
	Organization string
	Entity       string
	Lat          float64
	Lon          float64
	TimestampMS  int64
}

func (r Report) validate() error {
	if r.Organization == "" {
		return fmt.Errorf("%w: empty organization", ErrInvalidReport)
	}
	if r.Entity == "" {
		return fmt.Errorf("%w: empty entity id", ErrInvalidReport)
	}
	if math.IsNaN(r.Lat) || math.IsInf(r.Lat, 0) || math.IsNaN(r.Lon) || math.IsInf(r.Lon, 0) {
		return fmt.Errorf("%w: non-finite coordinate", ErrInvalidReport)
	}
	if r.TimestampMS <= 0 {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidReport)
	}
	return nil
}
