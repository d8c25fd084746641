package harvest

import (
	"time"

	"github.com/rs/zerolog"
)

// State is the coordinator lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunningRound
	StateCheckpointing
	StateCompleted
	// StateStopped means the round cap was reached with work remaining.
	StateStopped
	StateCancelled
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:          "idle",
	StateRunningRound:  "running_round",
	StateCheckpointing: "checkpointing",
	StateCompleted:     "completed",
	StateStopped:       "stopped_safety_limit",
	StateCancelled:     "cancelled",
	StateFailed:        "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsTerminal reports whether a run ends in s.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateStopped, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Summary reports the outcome of one Run. It is returned on every exit
// path, including errors.
type Summary struct {
	RunID  string `json:"run_id"`
	Query  string `json:"query"`
	State  State  `json:"state"`
	Rounds int    `json:"rounds"`

	// Cumulative across runs, taken from the checkpoint.
	TotalCollected int `json:"total_collected"`
	TotalImported  int `json:"total_imported"`

	// This run only.
	Fetched      int `json:"fetched"`
	Collected    int `json:"collected"`
	Imported     int `json:"imported"`
	Existing     int `json:"existing"`
	Duplicates   int `json:"duplicates"`
	Irrelevant   int `json:"irrelevant"`
	Failed       int `json:"failed"`
	SourceErrors int `json:"source_errors"`

	SourceOffsets map[string]int `json:"source_offsets"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	Error         string         `json:"error,omitempty"`
}

// Duration returns the wall time of the run.
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// MarshalZerologObject logs the summary as structured fields.
func (s *Summary) MarshalZerologObject(e *zerolog.Event) {
	offsets := zerolog.Dict()
	for source, offset := range s.SourceOffsets {
		offsets.Int(source, offset)
	}
	e.Str("run_id", s.RunID).
		Str("state", s.State.String()).
		Int("rounds", s.Rounds).
		Int("total_collected", s.TotalCollected).
		Int("total_imported", s.TotalImported).
		Int("fetched", s.Fetched).
		Int("collected", s.Collected).
		Int("imported", s.Imported).
		Int("existing", s.Existing).
		Int("duplicates", s.Duplicates).
		Int("irrelevant", s.Irrelevant).
		Int("failed", s.Failed).
		Int("source_errors", s.SourceErrors).
		Dict("source_offsets", offsets).
		Dur("duration", s.Duration())
}
