package db

import (
	"time"

	"github.com/google/uuid"
)

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusEmpty     = "empty"
)

// Run represents a stored collection run
type Run struct {
	ID            uuid.UUID  `json:"id"`
	SpecialtySlug string     `json:"specialty_slug"`
	Specialty     string     `json:"specialty"`
	State         string     `json:"state"`
	Mode          string     `json:"mode"`
	Cap           int        `json:"cap"`
	Status        string     `json:"status"`
	StopReason    string     `json:"stop_reason,omitempty"`
	RecordCount   int        `json:"record_count"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

const schema = `
CREATE TABLE IF NOT EXISTS scrape_runs (
	id             UUID PRIMARY KEY,
	specialty_slug TEXT NOT NULL,
	specialty      TEXT NOT NULL,
	state          CHAR(2) NOT NULL,
	mode           TEXT NOT NULL,
	record_cap     INTEGER NOT NULL,
	listing_url    TEXT NOT NULL,
	status         TEXT NOT NULL,
	stop_reason    TEXT,
	record_count   INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS provider_records (
	run_id        UUID NOT NULL REFERENCES scrape_runs(id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	npi           TEXT NOT NULL,
	provider_name TEXT NOT NULL,
	address       TEXT NOT NULL,
	phone         TEXT NOT NULL DEFAULT '',
	fax           TEXT NOT NULL DEFAULT '',
	specialty     TEXT NOT NULL,
	state         CHAR(2) NOT NULL,
	PRIMARY KEY (run_id, position)
);
`
