package model

import "time"

// RunStatus represents the current state of an enrichment run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// PhaseStatus represents the outcome of one enrichment phase.
type PhaseStatus string

const (
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// Phase names in execution order.
const (
	PhaseGeocode     = "geocode"
	PhasePlaces      = "places"
	PhaseMaps        = "maps"
	PhaseOSM         = "osm"
	PhaseEnvironment = "environment"
	PhaseTravelTime  = "travel_time"
	PhaseScore       = "score"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Run is the audit record of one enrichment invocation for a listing.
type Run struct {
	ID         string        `json:"id"`
	ListingID  int64         `json:"listing_id"`
	Status     RunStatus     `json:"status"`
	Phases     []PhaseResult `json:"phases"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// Phase returns the named phase result, or nil.
func (r *Run) Phase(name string) *PhaseResult {
	for i := range r.Phases {
		if r.Phases[i].Name == name {
			return &r.Phases[i]
		}
	}
	return nil
}
