package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Origin names the table a raw report lives in.
type Origin string

const (
	OriginGroup Origin = "group"
	OriginUser  Origin = "user"
)

// RawReport is the pipeline's read view over both raw report tables.
type RawReport struct {
	ID        string
	Origin    Origin
	SourceID  int64
	MessageID int64
	Text      *string
	Timestamp time.Time
	CreatedAt time.Time
}

// NewGroupReport is one scraped message to store.
type NewGroupReport struct {
	SourceGroupID    int64
	MessageID        int64
	ReplyToMessageID *int64
	Text             *string
	RawPayload       json.RawMessage
	Language         string
	Timestamp        time.Time
}

// NewUserReport is one direct user message to store.
type NewUserReport struct {
	UserID     int64
	MessageID  int64
	Text       *string
	RawPayload json.RawMessage
	Language   string
	Timestamp  time.Time
}

// InsertResult reports the outcome of an idempotent insert.
type InsertResult struct {
	ID       string
	Inserted bool
}

// FetchUnprocessedGroupReports returns up to limit unprocessed scraped messages, oldest first.
func (p *Pool) FetchUnprocessedGroupReports(ctx context.Context, limit int) ([]RawReport, error) {
	const q = `
SELECT id::text, source_group_id, message_id, text, timestamp, created_at
FROM raw_group_messages
WHERE processed = false
ORDER BY timestamp ASC, created_at ASC
LIMIT $1
`
	return p.fetchUnprocessed(ctx, q, OriginGroup, limit)
}

// FetchUnprocessedUserReports returns up to limit unprocessed user reports, oldest first.
func (p *Pool) FetchUnprocessedUserReports(ctx context.Context, limit int) ([]RawReport, error) {
	const q = `
SELECT id::text, user_id, message_id, text, timestamp, created_at
FROM raw_user_reports
WHERE processed = false
ORDER BY timestamp ASC, created_at ASC
LIMIT $1
`
	return p.fetchUnprocessed(ctx, q, OriginUser, limit)
}

func (p *Pool) fetchUnprocessed(ctx context.Context, q string, origin Origin, limit int) ([]RawReport, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed %s reports: %w", origin, err)
	}
	defer rows.Close()

	reports := make([]RawReport, 0, limit)
	for rows.Next() {
		row := RawReport{Origin: origin}
		if err := rows.Scan(&row.ID, &row.SourceID, &row.MessageID, &row.Text, &row.Timestamp, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan %s report row: %w", origin, err)
		}
		reports = append(reports, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s report rows: %w", origin, err)
	}
	return reports, nil
}

const (
	groupReportsTable = "raw_group_messages"
	userReportsTable  = "raw_user_reports"
)

// MarkResult counts the rows flagged per origin.
type MarkResult struct {
	Group int64
	User  int64
}

// MarkReportsProcessed flags both origins in one transaction. On error neither set is marked.
// Repeating it on the same ids is harmless.
func (p *Pool) MarkReportsProcessed(ctx context.Context, groupIDs, userIDs []string) (MarkResult, error) {
	if len(groupIDs) == 0 && len(userIDs) == 0 {
		return MarkResult{}, nil
	}

	var out MarkResult
	err := p.WithTx(ctx, func(tx Querier) error {
		var err error
		if out.Group, err = markProcessed(ctx, tx, groupReportsTable, groupIDs); err != nil {
			return err
		}
		out.User, err = markProcessed(ctx, tx, userReportsTable, userIDs)
		return err
	})
	if err != nil {
		return MarkResult{}, err
	}
	return out, nil
}

// MarkGroupReportsProcessed flips processed to true for ids. Repeating it is harmless.
func (p *Pool) MarkGroupReportsProcessed(ctx context.Context, ids []string) (int64, error) {
	return markProcessed(ctx, p, groupReportsTable, ids)
}

// MarkUserReportsProcessed flips processed to true for ids. Repeating it is harmless.
func (p *Pool) MarkUserReportsProcessed(ctx context.Context, ids []string) (int64, error) {
	return markProcessed(ctx, p, userReportsTable, ids)
}

func markProcessed(ctx context.Context, q Querier, table string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	affected, err := q.Exec(ctx, "UPDATE "+table+" SET processed = true WHERE id IN ?", ids)
	if err != nil {
		return 0, fmt.Errorf("mark %s processed: %w", table, err)
	}
	return affected, nil
}

// InsertGroupReport stores a scraped message unless (source_group_id, message_id) already exists.
func (p *Pool) InsertGroupReport(ctx context.Context, report NewGroupReport) (InsertResult, error) {
	const q = `
INSERT INTO raw_group_messages (
	source_group_id,
	message_id,
	reply_to_message_id,
	text,
	raw_payload,
	language,
	timestamp
)
VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
ON CONFLICT (source_group_id, message_id) DO NOTHING
RETURNING id::text
`
	return p.insertRaw(ctx, q,
		report.SourceGroupID,
		report.MessageID,
		report.ReplyToMessageID,
		report.Text,
		payloadOrNull(report.RawPayload),
		report.Language,
		report.Timestamp.UTC(),
	)
}

// InsertUserReport stores a user message unless (user_id, message_id) already exists.
func (p *Pool) InsertUserReport(ctx context.Context, report NewUserReport) (InsertResult, error) {
	const q = `
INSERT INTO raw_user_reports (
	user_id,
	message_id,
	text,
	raw_payload,
	language,
	timestamp
)
VALUES ($1, $2, $3, $4::jsonb, $5, $6)
ON CONFLICT (user_id, message_id) DO NOTHING
RETURNING id::text
`
	return p.insertRaw(ctx, q,
		report.UserID,
		report.MessageID,
		report.Text,
		payloadOrNull(report.RawPayload),
		report.Language,
		report.Timestamp.UTC(),
	)
}

func (p *Pool) insertRaw(ctx context.Context, q string, args ...any) (InsertResult, error) {
	var id string
	err := p.QueryRow(ctx, q, args...).Scan(&id)
	if IsNoRows(err) {
		return InsertResult{Inserted: false}, nil
	}
	if err != nil {
		if IsUniqueViolation(err) {
			return InsertResult{Inserted: false}, nil
		}
		return InsertResult{}, fmt.Errorf("insert raw report: %w", err)
	}
	return InsertResult{ID: id, Inserted: true}, nil
}

func payloadOrNull(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
