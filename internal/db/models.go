package db

import (
	"encoding/json"
	"time"
)

// RawGroupMessage maps raw_group_messages: reports scraped from public groups.
type RawGroupMessage struct {
	ID               string          `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	SourceGroupID    int64           `gorm:"column:source_group_id;type:bigint;not null;uniqueIndex:uq_raw_group_messages_source_message,priority:1"`
	MessageID        int64           `gorm:"column:message_id;type:bigint;not null;uniqueIndex:uq_raw_group_messages_source_message,priority:2"`
	ReplyToMessageID *int64          `gorm:"column:reply_to_message_id;type:bigint"`
	Text             *string         `gorm:"column:text;type:text"`
	RawPayload       json.RawMessage `gorm:"column:raw_payload;type:jsonb"`
	Language         string          `gorm:"column:language;type:text;not null;default:''"`
	Timestamp        time.Time       `gorm:"column:timestamp;type:timestamptz;not null"`
	Processed        bool            `gorm:"column:processed;not null;default:false"`
	CreatedAt        time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (RawGroupMessage) TableName() string { return "raw_group_messages" }

// RawUserReport maps raw_user_reports: reports sent directly to the bot.
type RawUserReport struct {
	ID         string          `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID     int64           `gorm:"column:user_id;type:bigint;not null;uniqueIndex:uq_raw_user_reports_user_message,priority:1"`
	MessageID  int64           `gorm:"column:message_id;type:bigint;not null;uniqueIndex:uq_raw_user_reports_user_message,priority:2"`
	Text       *string         `gorm:"column:text;type:text"`
	RawPayload json.RawMessage `gorm:"column:raw_payload;type:jsonb"`
	Language   string          `gorm:"column:language;type:text;not null;default:''"`
	Timestamp  time.Time       `gorm:"column:timestamp;type:timestamptz;not null"`
	Processed  bool            `gorm:"column:processed;not null;default:false"`
	CreatedAt  time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (RawUserReport) TableName() string { return "raw_user_reports" }

// Incident maps reports: verified, deduplicated incidents.
type Incident struct {
	ID                      string    `gorm:"column:id;type:uuid;primaryKey"`
	RepresentativeText      string    `gorm:"column:representative_text;type:text;not null"`
	LocationText            *string   `gorm:"column:location_text;type:text"`
	TimeText                *string   `gorm:"column:time_text;type:text"`
	EventType               *string   `gorm:"column:event_type;type:text"`
	ContributingReportCount int       `gorm:"column:contributing_report_count;type:integer;not null"`
	FirstReportAt           time.Time `gorm:"column:first_report_at;type:timestamptz;not null"`
	LastReportAt            time.Time `gorm:"column:last_report_at;type:timestamptz;not null"`
	DBCreatedAt             time.Time `gorm:"column:db_created_at;type:timestamptz;not null;default:now()"`
}

func (Incident) TableName() string { return "reports" }

// IncidentSource maps report_sources: one row per raw report that contributed to an incident.
type IncidentSource struct {
	ReportID    string `gorm:"column:report_id;type:uuid;primaryKey"`
	RawReportID string `gorm:"column:raw_report_id;type:uuid;primaryKey"`
	Origin      string `gorm:"column:origin;type:text;not null"`
}

func (IncidentSource) TableName() string { return "report_sources" }

func autoMigrateModels() []any {
	return []any{
		&RawGroupMessage{},
		&RawUserReport{},
		&Incident{},
		&IncidentSource{},
	}
}
