package tracking

import "errors"

var (
	// ErrStaleUpdate marks a report whose timestamp does not advance the
	// entity's recorded state. Dropped, not surfaced to producers.
	ErrStaleUpdate = errors.New("stale update")

	// ErrUnknownOrganization marks a report for an organization that is
	// not configured.
	ErrUnknownOrganization = errors.New("unknown organization")

	// ErrInvalidReport marks a report that failed ingest validation.
	ErrInvalidReport = errors.New("invalid report")

	// returned through applyReport when a report races actor retirement;
	// the router recreates the actor and retries.
	errActorStopped = errors.New("actor stopped")
)
