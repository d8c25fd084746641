package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event types published by the harvester.
const (
	EventTypePaperImported = "paper.imported"
)

// PaperImportedEvent is emitted after a harvested paper was created in the
// record store.
type PaperImportedEvent struct {
	EventType          string     `json:"event_type"`
	RunID              string     `json:"run_id"`
	PaperID            uuid.UUID  `json:"paper_id"`
	CanonicalID        string     `json:"canonical_id"`
	Title              string     `json:"title"`
	Source             SourceType `json:"source"`
	HasPerformanceData bool       `json:"has_performance_data"`
	ImportedAt         time.Time  `json:"imported_at"`
}

// NewPaperImportedEvent builds the event for a stored paper.
func NewPaperImportedEvent(runID string, p *Paper, at time.Time) PaperImportedEvent {
	return PaperImportedEvent{
		EventType:          EventTypePaperImported,
		RunID:              runID,
		PaperID:            p.ID,
		CanonicalID:        p.CanonicalID,
		Title:              p.Title,
		Source:             p.Source,
		HasPerformanceData: p.HasPerformanceData,
		ImportedAt:         at,
	}
}
