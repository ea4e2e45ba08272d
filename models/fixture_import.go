package models

import "time"

type ImportOutcome string

const (
	ImportCreated ImportOutcome = "created"
	ImportUpdated ImportOutcome = "updated"
	ImportSkipped ImportOutcome = "skipped"
)

// ImportItem is the classification of one upstream fixture within an import run.
type ImportItem struct {
	Outcome      ImportOutcome `json:"outcome"`
	Reason       string        `json:"reason,omitempty"`
	ExternalKey  string        `json:"external_key,omitempty"`
	OccurrenceID int           `json:"occurrence_id,omitempty"`
	Title        string        `json:"title,omitempty"`
	KickoffAt    *time.Time    `json:"kickoff_at,omitempty"`
}

type ImportSummary struct {
	TeamID     int          `json:"team_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Created    int          `json:"created"`
	Updated    int          `json:"updated"`
	Skipped    int          `json:"skipped"`
	Items      []ImportItem `json:"items"`
}

// Add records an item and bumps the matching counter.
func (s *ImportSummary) Add(item ImportItem) {
	switch item.Outcome {
	case ImportCreated:
		s.Created++
	case ImportUpdated:
		s.Updated++
	case ImportSkipped:
		s.Skipped++
	}
	s.Items = append(s.Items, item)
}
