package dedup

import (
	"time"

	"github.com/rs/zerolog"

	"horse.fit/tariqi/internal/incident"
)

type Options struct {
	Threshold      float64
	Window         time.Duration
	MinClusterSize int
}

func DefaultOptions() Options {
	return Options{
		Threshold:      DefaultSimilarityThreshold,
		Window:         DefaultTimeWindow,
		MinClusterSize: DefaultMinClusterSize,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Threshold <= 0 {
		o.Threshold = def.Threshold
	}
	if o.Window <= 0 {
		o.Window = def.Window
	}
	if o.MinClusterSize <= 0 {
		o.MinClusterSize = def.MinClusterSize
	}
	return o
}

// Result describes one dedup pass over a batch of relevant reports.
type Result struct {
	Groups     [][]int
	Incidents  []incident.Verified
	Ungrouped  int
	Singletons int
}

type Deduplicator struct {
	scorer Scorer
	opts   Options
	logger zerolog.Logger
}

// New returns a Deduplicator. A nil scorer uses TFIDF.
func New(scorer Scorer, opts Options, logger zerolog.Logger) *Deduplicator {
	if scorer == nil {
		scorer = TFIDF{}
	}
	return &Deduplicator{
		scorer: scorer,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

func (d *Deduplicator) Options() Options {
	return d.opts
}

// Process scores, groups and verifies reports. Similarity uses the normalized text.
func (d *Deduplicator) Process(reports []incident.Extracted) Result {
	if len(reports) == 0 {
		return Result{Groups: [][]int{}, Incidents: []incident.Verified{}}
	}

	texts := make([]string, len(reports))
	ungrouped := 0
	for i, report := range reports {
		texts[i] = report.NormalizedText
		if texts[i] == "" {
			texts[i] = report.OriginalText
		}
		if report.Timestamp == nil {
			ungrouped++
			d.logger.Warn().
				Str("report_id", report.Source.ID).
				Str("origin", report.Source.Origin).
				Msg("report has no timestamp; excluded from grouping")
		}
	}

	similarity := d.scorer.SimilarityMatrix(texts)
	groups := Group(reports, similarity, d.opts.Threshold, d.opts.Window)
	incidents := Verify(groups, reports, d.opts.MinClusterSize)

	singletons := 0
	for _, group := range groups {
		if len(group) == 1 {
			singletons++
		}
	}

	d.logger.Info().
		Int("reports", len(reports)).
		Int("groups", len(groups)).
		Int("singletons", singletons).
		Int("ungrouped", ungrouped).
		Int("incidents", len(incidents)).
		Float64("threshold", d.opts.Threshold).
		Dur("window", d.opts.Window).
		Msg("dedup completed")

	return Result{
		Groups:     groups,
		Incidents:  incidents,
		Ungrouped:  ungrouped,
		Singletons: singletons,
	}
}
