package pipeline

import (
	"time"

	"horse.fit/tariqi/internal/incident"
)

type Stage string

const (
	StageExtract Stage = "extract"
	StagePersist Stage = "persist"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// ItemOutcome is the result of one report or incident at one stage.
type ItemOutcome struct {
	Ref    incident.SourceRef `json:"ref"`
	Stage  Stage              `json:"stage"`
	Status Status             `json:"status"`
	Reason string             `json:"reason,omitempty"`
}

type RunSummary struct {
	RunID         string        `json:"run_id"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Fetched       int           `json:"fetched"`
	EmptyText     int           `json:"empty_text"`
	ExtractFailed int           `json:"extract_failed"`
	Relevant      int           `json:"relevant"`
	Groups        int           `json:"groups"`
	Verified      int           `json:"verified"`
	Persisted     int           `json:"persisted"`
	PersistFailed int           `json:"persist_failed"`
	Published     int           `json:"published"`
	PublishFailed int           `json:"publish_failed"`
	MarkedGroup   int64         `json:"marked_group"`
	MarkedUser    int64         `json:"marked_user"`
	Degraded      bool          `json:"degraded"`
	IncidentIDs   []string      `json:"incident_ids,omitempty"`
	Outcomes      []ItemOutcome `json:"outcomes,omitempty"`
}

func (s *RunSummary) record(ref incident.SourceRef, stage Stage, status Status, reason string) {
	s.Outcomes = append(s.Outcomes, ItemOutcome{Ref: ref, Stage: stage, Status: status, Reason: reason})
}

// Count returns how many outcomes at stage ended with status.
func (s RunSummary) Count(stage Stage, status Status) int {
	n := 0
	for _, outcome := range s.Outcomes {
		if outcome.Stage == stage && outcome.Status == status {
			n++
		}
	}
	return n
}
