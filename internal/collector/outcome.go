package collector

import (
	"github.com/google/uuid"

	"github.com/jonathan/npidb-scraper/internal/types"
)

// StopReason says why a run ended.
type StopReason int

const (
	// StopExhausted means a listing page came back with no provider rows.
	StopExhausted StopReason = iota
	// StopCap means the record cap was reached.
	StopCap
	// StopFetchFailed means a listing page returned a non-success status or could not be fetched.
	// This is also how the end of pagination shows up on sites that 404 past the last page.
	StopFetchFailed
	// StopCanceled means the caller's context ended the run.
	StopCanceled
)

func (s StopReason) String() string {
	switch s {
	case StopExhausted:
		return "exhausted"
	case StopCap:
		return "cap"
	case StopFetchFailed:
		return "fetch_failed"
	case StopCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Outcome is everything a run gathered. Records are in page order, and within a page
// in row order.
type Outcome struct {
	RunID   uuid.UUID
	Records []types.ProviderRecord

	// Pages counts listing pages that yielded rows.
	Pages int
	// Skipped counts listing rows dropped for having the wrong shape.
	Skipped int
	// EnrichFailures counts rows kept without phone/fax because their detail page failed.
	EnrichFailures int

	Stop     StopReason
	StopPage int
	// Transient is set when a fetch failure looked like an outage (429, 5xx, network)
	// rather than the end of the listing.
	Transient bool
	// Notice is a human-readable explanation of the stop, suitable for display.
	Notice string
}

// Empty reports the "no data found" state.
func (o *Outcome) Empty() bool {
	return len(o.Records) == 0
}
