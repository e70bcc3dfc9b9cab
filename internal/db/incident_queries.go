package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IncidentSourceRef points at one contributing raw report.
type IncidentSourceRef struct {
	RawReportID string `json:"raw_report_id"`
	Origin      Origin `json:"origin"`
}

// NewIncident is one verified incident to persist together with its contributing reports.
type NewIncident struct {
	ID                      string
	RepresentativeText      string
	LocationText            *string
	TimeText                *string
	EventType               *string
	ContributingReportCount int
	FirstReportAt           time.Time
	LastReportAt            time.Time
	Sources                 []IncidentSourceRef
}

// IncidentRow is the read shape served to query surfaces.
type IncidentRow struct {
	ID                      string    `json:"id"`
	RepresentativeText      string    `json:"representative_text"`
	LocationText            *string   `json:"location_text,omitempty"`
	TimeText                *string   `json:"time_text,omitempty"`
	EventType               *string   `json:"event_type,omitempty"`
	ContributingReportCount int       `json:"contributing_report_count"`
	FirstReportAt           time.Time `json:"first_report_at"`
	LastReportAt            time.Time `json:"last_report_at"`
	CreatedAt               time.Time `json:"created_at"`
}

// InsertIncident writes the incident row and its source links in one transaction.
func (p *Pool) InsertIncident(ctx context.Context, incident NewIncident) (time.Time, error) {
	if strings.TrimSpace(incident.ID) == "" {
		return time.Time{}, fmt.Errorf("incident id is required")
	}
	if incident.LastReportAt.Before(incident.FirstReportAt) {
		return time.Time{}, fmt.Errorf("incident %s: last_report_at precedes first_report_at", incident.ID)
	}

	const insertIncident = `
INSERT INTO reports (
	id,
	representative_text,
	location_text,
	time_text,
	event_type,
	contributing_report_count,
	first_report_at,
	last_report_at
)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8)
RETURNING db_created_at
`
	var createdAt time.Time
	err := p.WithTx(ctx, func(tx Querier) error {
		if err := tx.QueryRow(ctx, insertIncident,
			incident.ID,
			incident.RepresentativeText,
			incident.LocationText,
			incident.TimeText,
			incident.EventType,
			incident.ContributingReportCount,
			incident.FirstReportAt.UTC(),
			incident.LastReportAt.UTC(),
		).Scan(&createdAt); err != nil {
			return fmt.Errorf("insert incident %s: %w", incident.ID, err)
		}

		if len(incident.Sources) == 0 {
			return nil
		}
		q, args := buildIncidentSourcesInsert(incident.ID, incident.Sources)
		if _, err := tx.Exec(ctx, q, args...); err != nil {
			return fmt.Errorf("insert incident %s sources: %w", incident.ID, err)
		}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return createdAt, nil
}

func buildIncidentSourcesInsert(incidentID string, sources []IncidentSourceRef) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO report_sources (report_id, raw_report_id, origin) VALUES ")
	args := make([]any, 0, len(sources)*3)
	for i, source := range sources {
		if i > 0 {
			b.WriteString(", ")
		}
		base := i * 3
		b.WriteString("($" + strconv.Itoa(base+1) + "::uuid, $" + strconv.Itoa(base+2) + "::uuid, $" + strconv.Itoa(base+3) + ")")
		args = append(args, incidentID, source.RawReportID, string(source.Origin))
	}
	b.WriteString(" ON CONFLICT DO NOTHING")
	return b.String(), args
}

// LatestIncidents returns the most recently stored incidents.
func (p *Pool) LatestIncidents(ctx context.Context, limit int) ([]IncidentRow, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	id::text,
	representative_text,
	location_text,
	time_text,
	event_type,
	contributing_report_count,
	first_report_at,
	last_report_at,
	db_created_at
FROM reports
ORDER BY db_created_at DESC, id DESC
LIMIT $1
`
	return p.queryIncidents(ctx, q, limit)
}

// SearchIncidentsByLocation matches query as a case-insensitive substring of location_text.
func (p *Pool) SearchIncidentsByLocation(ctx context.Context, query string, limit int) ([]IncidentRow, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, fmt.Errorf("location query is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	id::text,
	representative_text,
	location_text,
	time_text,
	event_type,
	contributing_report_count,
	first_report_at,
	last_report_at,
	db_created_at
FROM reports
WHERE location_text ILIKE $1
ORDER BY db_created_at DESC, id DESC
LIMIT $2
`
	return p.queryIncidents(ctx, q, "%"+escapeLike(trimmed)+"%", limit)
}

// IncidentSources lists the raw reports behind one incident.
func (p *Pool) IncidentSources(ctx context.Context, incidentID string) ([]IncidentSourceRef, error) {
	const q = `
SELECT raw_report_id::text, origin
FROM report_sources
WHERE report_id = $1::uuid
ORDER BY origin ASC, raw_report_id ASC
`
	rows, err := p.Query(ctx, q, incidentID)
	if err != nil {
		return nil, fmt.Errorf("query incident sources: %w", err)
	}
	defer rows.Close()

	out := make([]IncidentSourceRef, 0, 4)
	for rows.Next() {
		var (
			ref    IncidentSourceRef
			origin string
		)
		if err := rows.Scan(&ref.RawReportID, &origin); err != nil {
			return nil, fmt.Errorf("scan incident source row: %w", err)
		}
		ref.Origin = Origin(origin)
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incident source rows: %w", err)
	}
	return out, nil
}

func (p *Pool) queryIncidents(ctx context.Context, q string, args ...any) ([]IncidentRow, error) {
	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}
	defer rows.Close()

	items := make([]IncidentRow, 0, 8)
	for rows.Next() {
		var row IncidentRow
		if err := rows.Scan(
			&row.ID,
			&row.RepresentativeText,
			&row.LocationText,
			&row.TimeText,
			&row.EventType,
			&row.ContributingReportCount,
			&row.FirstReportAt,
			&row.LastReportAt,
			&row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan incident row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incident rows: %w", err)
	}
	return items, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
