// Package checkpoint keeps a ledger of migration runs and the outcome of
// every table in each run.
package checkpoint

import (
	"encoding/json"
	"time"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunPartial   = "partial"
	RunFailed    = "failed"
	RunAborted   = "aborted"
)

// StateBackend defines the interface for run ledger persistence.
type StateBackend interface {
	// Run management
	CreateRun(id string, config any, configPath string) error
	UpdatePhase(runID, phase string) error
	CompleteRun(id, status, errorMsg string, findings int) error

	// Table outcomes
	RecordTable(runID string, t TableOutcome) error
	GetTableOutcomes(runID string) ([]TableOutcome, error)

	// History
	GetAllRuns() ([]Run, error)
	GetRunByID(runID string) (*Run, error)

	// Lifecycle
	Close() error
}

// Ensure State implements StateBackend
var _ StateBackend = (*State)(nil)

// Run is one migration run.
type Run struct {
	ID          string     `json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      string     `json:"status"`
	Phase       string     `json:"phase"`
	Error       string     `json:"error,omitempty"`
	Findings    int        `json:"findings"`
	ConfigPath  string     `json:"config_path"`
	Config      string     `json:"config"`
}

// TableOutcome is one table's final state in a run.
type TableOutcome struct {
	Table      string    `json:"table"`
	Status     string    `json:"status"`
	Rows       int       `json:"rows"`
	Blocked    int       `json:"blocked"`
	Reason     string    `json:"reason,omitempty"`
	Error      string    `json:"error,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// configJSON returns the config as a JSON string for storage.
func configJSON(config any) string {
	if config == nil {
		return "{}"
	}
	b, err := json.Marshal(config)
	if err != nil {
		return "{}"
	}
	return string(b)
}
