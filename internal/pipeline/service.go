// Package pipeline runs one verification pass over unprocessed raw reports.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"horse.fit/tariqi/internal/db"
	"horse.fit/tariqi/internal/dedup"
	"horse.fit/tariqi/internal/globaltime"
	"horse.fit/tariqi/internal/incident"
	"horse.fit/tariqi/internal/metrics"
)

const DefaultBatchSize = 100

// Store is the storage surface a run reads from and writes to.
type Store interface {
	FetchUnprocessedGroupReports(ctx context.Context, limit int) ([]db.RawReport, error)
	FetchUnprocessedUserReports(ctx context.Context, limit int) ([]db.RawReport, error)
	// MarkReportsProcessed flags both origins atomically.
	MarkReportsProcessed(ctx context.Context, groupIDs, userIDs []string) (db.MarkResult, error)
	InsertIncident(ctx context.Context, incident db.NewIncident) (time.Time, error)
}

type Extractor interface {
	ExtractAndClassify(ctx context.Context, text string) incident.Extracted
}

// Publisher receives every incident that was saved.
type Publisher interface {
	PublishIncident(ctx context.Context, verified incident.Verified, createdAt time.Time) error
}

type Options struct {
	BatchSize int
	Dedup     dedup.Options
}

type Service struct {
	store     Store
	extractor Extractor
	dedup     *dedup.Deduplicator
	publisher Publisher
	batchSize int
	logger    zerolog.Logger
}

// NewService wires a run. publisher may be nil.
func NewService(store Store, extractor Extractor, publisher Publisher, opts Options, logger zerolog.Logger) *Service {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Service{
		store:     store,
		extractor: extractor,
		dedup:     dedup.New(dedup.TFIDF{}, opts.Dedup, logger),
		publisher: publisher,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run executes FETCH, EXTRACT, FILTER_RELEVANT, DEDUP_AND_VERIFY, PERSIST and MARK_PROCESSED once.
//
// Only a failed fetch aborts the run before any state changes. Per-report and per-incident
// failures are recorded in the summary. A failed mark-processed update is returned as an
// error alongside the summary; incidents saved earlier in the run stay saved.
func (s *Service) Run(ctx context.Context) (summary RunSummary, err error) {
	if s == nil || s.store == nil || s.extractor == nil {
		return RunSummary{}, fmt.Errorf("pipeline service is not initialized")
	}

	started := globaltime.UTC()
	summary = RunSummary{RunID: uuid.NewString(), StartedAt: started}
	logger := s.logger.With().Str("run_id", summary.RunID).Logger()
	defer func() {
		summary.Duration = globaltime.Since(started)
		metrics.RunDurationSeconds.Observe(summary.Duration.Seconds())
	}()

	reports, err := s.fetch(ctx)
	if err != nil {
		return summary, err
	}
	summary.Fetched = len(reports)
	metrics.ReportsFetched.Add(float64(len(reports)))
	if len(reports) == 0 {
		logger.Debug().Msg("no unprocessed reports")
		return summary, nil
	}

	relevant := s.extract(ctx, reports, &summary, logger)
	summary.Relevant = len(relevant)
	metrics.ReportsRelevant.Add(float64(len(relevant)))

	if len(relevant) > 0 {
		result := s.dedup.Process(relevant)
		summary.Groups = len(result.Groups)
		summary.Verified = len(result.Incidents)
		metrics.IncidentsVerified.Add(float64(len(result.Incidents)))
		s.persist(ctx, result.Incidents, &summary, logger)
	}

	markErr := s.markProcessed(ctx, reports, &summary, logger)

	event := logger.Info()
	if markErr != nil {
		event = logger.Error().Err(markErr)
	}
	event.
		Int("fetched", summary.Fetched).
		Int("empty_text", summary.EmptyText).
		Int("extract_failed", summary.ExtractFailed).
		Int("relevant", summary.Relevant).
		Int("groups", summary.Groups).
		Int("verified", summary.Verified).
		Int("persisted", summary.Persisted).
		Int("persist_failed", summary.PersistFailed).
		Int("published", summary.Published).
		Int64("marked_group", summary.MarkedGroup).
		Int64("marked_user", summary.MarkedUser).
		Msg("pipeline run completed")

	return summary, markErr
}

func (s *Service) fetch(ctx context.Context) ([]db.RawReport, error) {
	groupLimit, userLimit := splitBatch(s.batchSize)

	groupReports, err := s.store.FetchUnprocessedGroupReports(ctx, groupLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch unprocessed group reports: %w", err)
	}
	userReports, err := s.store.FetchUnprocessedUserReports(ctx, userLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch unprocessed user reports: %w", err)
	}

	reports := make([]db.RawReport, 0, len(groupReports)+len(userReports))
	reports = append(reports, groupReports...)
	reports = append(reports, userReports...)
	return reports, nil
}

// splitBatch divides the cap between origins; the group origin takes the odd one.
func splitBatch(batchSize int) (int, int) {
	user := batchSize / 2
	return batchSize - user, user
}

func (s *Service) extract(ctx context.Context, reports []db.RawReport, summary *RunSummary, logger zerolog.Logger) []incident.Extracted {
	relevant := make([]incident.Extracted, 0, len(reports))
	for _, report := range reports {
		ref := incident.SourceRef{ID: report.ID, Origin: string(report.Origin)}

		if report.Text == nil || strings.TrimSpace(*report.Text) == "" {
			summary.EmptyText++
			summary.record(ref, StageExtract, StatusSkipped, "empty text")
			continue
		}

		extracted, err := s.safeExtract(ctx, *report.Text)
		if err != nil {
			summary.ExtractFailed++
			metrics.ExtractFailures.Inc()
			summary.record(ref, StageExtract, StatusFailed, err.Error())
			logger.Error().Err(err).Str("report_id", report.ID).Str("origin", string(report.Origin)).Msg("extraction failed")
			continue
		}
		if !extracted.IsRelevant {
			summary.record(ref, StageExtract, StatusSkipped, "not relevant")
			continue
		}

		extracted.Source = ref
		if !report.Timestamp.IsZero() {
			timestamp := report.Timestamp
			extracted.Timestamp = &timestamp
		}
		relevant = append(relevant, extracted)
		summary.record(ref, StageExtract, StatusSucceeded, "")
	}
	return relevant
}

func (s *Service) safeExtract(ctx context.Context, text string) (out incident.Extracted, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor panic: %v", r)
		}
	}()
	return s.extractor.ExtractAndClassify(ctx, text), nil
}

func (s *Service) persist(ctx context.Context, incidents []incident.Verified, summary *RunSummary, logger zerolog.Logger) {
	for _, verified := range incidents {
		ref := incident.SourceRef{ID: verified.ID, Origin: "incident"}
		createdAt, err := s.store.InsertIncident(ctx, toNewIncident(verified))
		if err != nil {
			summary.PersistFailed++
			metrics.IncidentPersistFailures.Inc()
			summary.record(ref, StagePersist, StatusFailed, err.Error())
			logger.Error().Err(err).Str("incident_id", verified.ID).Int("sources", len(verified.Sources)).Msg("persist incident failed")
			continue
		}
		summary.Persisted++
		metrics.IncidentsPersisted.Inc()
		summary.record(ref, StagePersist, StatusSucceeded, "")
		summary.IncidentIDs = append(summary.IncidentIDs, verified.ID)

		s.publish(ctx, verified, createdAt, summary, logger)
	}
}

func (s *Service) publish(ctx context.Context, verified incident.Verified, createdAt time.Time, summary *RunSummary, logger zerolog.Logger) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishIncident(ctx, verified, createdAt); err != nil {
		summary.PublishFailed++
		metrics.IncidentsPublished.WithLabelValues("failed").Inc()
		logger.Warn().Err(err).Str("incident_id", verified.ID).Msg("publish incident failed")
		return
	}
	summary.Published++
	metrics.IncidentsPublished.WithLabelValues("published").Inc()
}

func (s *Service) markProcessed(ctx context.Context, reports []db.RawReport, summary *RunSummary, logger zerolog.Logger) error {
	var groupIDs, userIDs []string
	for _, report := range reports {
		switch report.Origin {
		case db.OriginGroup:
			groupIDs = append(groupIDs, report.ID)
		case db.OriginUser:
			userIDs = append(userIDs, report.ID)
		}
	}

	marked, err := s.store.MarkReportsProcessed(ctx, groupIDs, userIDs)
	if err != nil {
		summary.Degraded = true
		metrics.MarkProcessedFailures.Inc()
		logger.Error().
			Err(err).
			Int("group_reports", len(groupIDs)).
			Int("user_reports", len(userIDs)).
			Msg("mark reports processed failed; nothing was marked")
		return fmt.Errorf("mark reports processed: %w", err)
	}
	summary.MarkedGroup = marked.Group
	summary.MarkedUser = marked.User
	return nil
}

func toNewIncident(verified incident.Verified) db.NewIncident {
	var eventType *string
	if verified.Category != nil {
		value := string(*verified.Category)
		eventType = &value
	}
	sources := make([]db.IncidentSourceRef, 0, len(verified.Sources))
	for _, source := range verified.Sources {
		sources = append(sources, db.IncidentSourceRef{RawReportID: source.ID, Origin: db.Origin(source.Origin)})
	}
	return db.NewIncident{
		ID:                      verified.ID,
		RepresentativeText:      verified.RepresentativeText,
		LocationText:            verified.Location,
		TimeText:                verified.Time,
		EventType:               eventType,
		ContributingReportCount: verified.ContributingReportCount,
		FirstReportAt:           verified.FirstReportAt,
		LastReportAt:            verified.LastReportAt,
		Sources:                 sources,
	}
}
