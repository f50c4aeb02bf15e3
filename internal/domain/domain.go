package domain

import "time"

// Status is a period's position in the review lifecycle. Transitions
// are forward-only: pending -> drafted -> complete.
type Status string

const (
	StatusPending  Status = "pending"
	StatusDrafted  Status = "drafted"
	StatusComplete Status = "complete"
)

// ValidStatus reports whether s is a known period status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusDrafted, StatusComplete:
		return true
	}
	return false
}

// Period is one registered reporting window. Name is the unique key and
// periods are ordered chronologically by declaration. SourceID locates
// the period's input data in the document store and is opaque to the
// pipeline.
type Period struct {
	Name     string    `json:"name"`
	SourceID string    `json:"source_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Status   Status    `json:"status" enum:"pending,drafted,complete"`
}

// Run records one pipeline invocation (bootstrap or weekly).
type Run struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind" enum:"bootstrap,weekly"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Drafted    int       `json:"drafted"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	DryRun     bool      `json:"dry_run,omitempty"`
}

// RunFailure records a per-period failure inside a run so operators can
// re-run or investigate without re-reading logs.
type RunFailure struct {
	RunID   string `json:"run_id"`
	Period  string `json:"period"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type Event struct {
	ID         int64     `json:"id"`
	TS         time.Time `json:"ts"`
	Type       string    `json:"type"`
	EntityKind string    `json:"entity_kind"`
	EntityID   string    `json:"entity_id,omitempty"`
	Payload    string    `json:"payload_json"`
}
