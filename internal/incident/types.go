// Package incident holds the values passed between extraction, deduplication and persistence.
package incident

import "time"

type Category string

const (
	CategoryAccident Category = "accident"
	CategoryTraffic  Category = "traffic"
	CategoryBlockade Category = "blockade"
	CategoryOther    Category = "other"
)

// SourceRef identifies a raw report in storage.
type SourceRef struct {
	ID     string `json:"id"`
	Origin string `json:"origin"`
}

// Extracted is the per-run classification of one raw report. Category is empty unless IsRelevant.
type Extracted struct {
	OriginalText   string     `json:"original_text"`
	NormalizedText string     `json:"normalized_text"`
	IsRelevant     bool       `json:"is_relevant"`
	Locations      []string   `json:"locations"`
	Times          []string   `json:"times"`
	Category       Category   `json:"category,omitempty"`
	Source         SourceRef  `json:"source"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
}

// Verified is one corroborated incident produced from a group of extracted reports.
type Verified struct {
	ID                      string      `json:"id"`
	RepresentativeText      string      `json:"representative_text"`
	Location                *string     `json:"location,omitempty"`
	Time                    *string     `json:"time,omitempty"`
	Category                *Category   `json:"category,omitempty"`
	ContributingReportCount int         `json:"contributing_report_count"`
	FirstReportAt           time.Time   `json:"first_report_at"`
	LastReportAt            time.Time   `json:"last_report_at"`
	Sources                 []SourceRef `json:"sources"`
}
