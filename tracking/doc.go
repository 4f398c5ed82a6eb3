// Package tracking is the core of the geotrack engine: it maintains the
// authoritative state of every tracked entity and fans accepted position
// updates out as change events.
//
// This package handles:
//   - One actor goroutine per entity, serializing all reads and writes of
//     that entity's state (no locks on entity state)
//   - Per-cell membership supervision with atomic cell-to-cell handoff
//   - Ingest routing with lazy actor creation and idle retirement
//   - Staleness filtering so duplicated or out-of-order reports are
//     dropped deterministically
//
// The IngestRouter is the single entry point for inbound reports; the
// Publisher interface is the single exit point for change events.
package tracking
