package dedup

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/tariqi/internal/incident"
)

type fixedScorer [][]float64

func (f fixedScorer) SimilarityMatrix(texts []string) [][]float64 {
	return f
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func sampleReports(now time.Time) []incident.Extracted {
	return []incident.Extracted{
		{
			OriginalText: "ازدحام شديد في شارع صلاح الدين",
			IsRelevant:   true,
			Locations:    []string{"صلاح الدين"},
			Category:     incident.CategoryTraffic,
			Source:       incident.SourceRef{ID: "r0", Origin: "group"},
			Timestamp:    timePtr(now.Add(-10 * time.Minute)),
		},
		{
			OriginalText: "ازمة سير كبيرة شارع صلاح الدين",
			IsRelevant:   true,
			Locations:    []string{"صلاح الدين"},
			Category:     incident.CategoryTraffic,
			Source:       incident.SourceRef{ID: "r1", Origin: "user"},
			Timestamp:    timePtr(now.Add(-5 * time.Minute)),
		},
		{
			OriginalText: "شارع صلاح الدين مزدحم جدا",
			IsRelevant:   true,
			Locations:    []string{"صلاح الدين"},
			Category:     incident.CategoryTraffic,
			Source:       incident.SourceRef{ID: "r2", Origin: "group"},
			Timestamp:    timePtr(now.Add(-3 * time.Hour)),
		},
		{
			OriginalText: "حادث سير بسيط قرب دوار المنارة",
			IsRelevant:   true,
			Locations:    []string{"دوار المنارة"},
			Times:        []string{"قبل قليل"},
			Category:     incident.CategoryAccident,
			Source:       incident.SourceRef{ID: "r3", Origin: "group"},
			Timestamp:    timePtr(now.Add(-90 * time.Minute)),
		},
		{
			OriginalText: "سيارة انقلبت عند دوار المنارة",
			IsRelevant:   true,
			Locations:    []string{"دوار المنارة"},
			Category:     incident.CategoryAccident,
			Source:       incident.SourceRef{ID: "r4", Origin: "user"},
			Timestamp:    timePtr(now.Add(-85 * time.Minute)),
		},
		{
			OriginalText: "طقس جميل في فلسطين اليوم",
			Locations:    []string{"فلسطين"},
			Times:        []string{"اليوم"},
			Source:       incident.SourceRef{ID: "r5", Origin: "group"},
			Timestamp:    timePtr(now),
		},
	}
}

var sampleSimilarity = fixedScorer{
	{1.00, 0.90, 0.60, 0.10, 0.10, 0.00},
	{0.90, 1.00, 0.50, 0.10, 0.10, 0.00},
	{0.60, 0.50, 1.00, 0.20, 0.20, 0.00},
	{0.10, 0.10, 0.20, 1.00, 0.85, 0.00},
	{0.10, 0.10, 0.20, 0.85, 1.00, 0.00},
	{0.00, 0.00, 0.00, 0.00, 0.00, 1.00},
}

func TestGroupChronologicalGreedy(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reports := sampleReports(now)

	cases := []struct {
		name      string
		threshold float64
		window    time.Duration
	}{
		{name: "defaults", threshold: 0.8, window: 2 * time.Hour},
		{name: "lower threshold still respects window", threshold: 0.55, window: 2 * time.Hour},
		{name: "wider window still respects threshold", threshold: 0.8, window: 4 * time.Hour},
	}
	want := [][]int{{2}, {3, 4}, {0, 1}, {5}}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := Group(reports, sampleSimilarity, tc.threshold, tc.window)
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("groups = %v, want %v", got, want)
			}
		})
	}
}

func TestGroupComparesAgainstSeedOnly(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reports := []incident.Extracted{
		{Timestamp: timePtr(now)},
		{Timestamp: timePtr(now.Add(10 * time.Minute))},
		{Timestamp: timePtr(now.Add(20 * time.Minute))},
	}
	// 0~1 and 1~2 but not 0~2.
	similarity := [][]float64{
		{1, 0.9, 0.1},
		{0.9, 1, 0.9},
		{0.1, 0.9, 1},
	}
	got := Group(reports, similarity, 0.8, 2*time.Hour)
	want := [][]int{{0, 1}, {2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("groups = %v, want %v", got, want)
	}
}

func TestGroupWindowMeasuredFromSeed(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reports := []incident.Extracted{
		{Timestamp: timePtr(now)},
		{Timestamp: timePtr(now.Add(10 * time.Minute))},
		{Timestamp: timePtr(now.Add(3 * time.Hour))},
	}
	similarity := [][]float64{
		{1, 0.9, 0.9},
		{0.9, 1, 0.9},
		{0.9, 0.9, 1},
	}
	got := Group(reports, similarity, 0.8, 2*time.Hour)
	want := [][]int{{0, 1}, {2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("groups = %v, want %v", got, want)
	}
}

func TestGroupExcludesReportsWithoutTimestamp(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reports := []incident.Extracted{
		{Timestamp: timePtr(now)},
		{},
		{Timestamp: timePtr(now.Add(time.Minute))},
	}
	similarity := [][]float64{
		{1, 1, 1},
		{1, 1, 1},
		{1, 1, 1},
	}
	got := Group(reports, similarity, 0.8, 2*time.Hour)
	want := [][]int{{0, 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("groups = %v, want %v", got, want)
	}
}

func TestGroupEqualTimestampsKeepInputOrder(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reports := []incident.Extracted{
		{Timestamp: timePtr(now)},
		{Timestamp: timePtr(now)},
		{Timestamp: timePtr(now)},
	}
	similarity := [][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	got := Group(reports, similarity, 0.8, time.Hour)
	want := [][]int{{0}, {1}, {2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("groups = %v, want %v", got, want)
	}
}

func TestVerifyDropsSingletonsAndAggregates(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reports := sampleReports(now)
	incidents := Verify([][]int{{2}, {3, 4}, {0, 1}, {5}}, reports, 2)
	if len(incidents) != 2 {
		t.Fatalf("expected 2 incidents, got %d", len(incidents))
	}

	accident := incidents[0]
	if accident.RepresentativeText != reports[3].OriginalText {
		t.Fatalf("unexpected representative text: %q", accident.RepresentativeText)
	}
	if accident.Location == nil || *accident.Location != "دوار المنارة" {
		t.Fatalf("unexpected location: %v", accident.Location)
	}
	if accident.Time == nil || *accident.Time != "قبل قليل" {
		t.Fatalf("unexpected time: %v", accident.Time)
	}
	if accident.Category == nil || *accident.Category != incident.CategoryAccident {
		t.Fatalf("unexpected category: %v", accident.Category)
	}
	if accident.ContributingReportCount != 2 {
		t.Fatalf("unexpected count: %d", accident.ContributingReportCount)
	}
	if !accident.FirstReportAt.Equal(*reports[3].Timestamp) || !accident.LastReportAt.Equal(*reports[4].Timestamp) {
		t.Fatalf("unexpected window: %s..%s", accident.FirstReportAt, accident.LastReportAt)
	}
	wantSources := []incident.SourceRef{{ID: "r3", Origin: "group"}, {ID: "r4", Origin: "user"}}
	if !reflect.DeepEqual(accident.Sources, wantSources) {
		t.Fatalf("unexpected sources: %#v", accident.Sources)
	}

	traffic := incidents[1]
	if traffic.RepresentativeText != reports[0].OriginalText {
		t.Fatalf("unexpected representative text: %q", traffic.RepresentativeText)
	}
	if traffic.Time != nil {
		t.Fatalf("time must not be borrowed from a later member, got %q", *traffic.Time)
	}
	if traffic.ID == "" || traffic.ID == accident.ID {
		t.Fatalf("expected distinct incident ids, got %q and %q", traffic.ID, accident.ID)
	}
}

func TestVerifyConsensusTieBreaks(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	other := incident.CategoryOther
	cases := []struct {
		name         string
		members      []incident.Extracted
		wantLocation *string
		wantCategory *incident.Category
	}{
		{
			name: "location tie goes to first seen",
			members: []incident.Extracted{
				{Locations: []string{"بيتونيا", "رام الله"}, Category: incident.CategoryTraffic, Timestamp: timePtr(now)},
				{Locations: []string{"رام الله", "بيتونيا"}, Category: incident.CategoryTraffic, Timestamp: timePtr(now)},
			},
			wantLocation: strPtr("بيتونيا"),
			wantCategory: categoryPtr(incident.CategoryTraffic),
		},
		{
			name: "other loses to a specific category",
			members: []incident.Extracted{
				{Category: incident.CategoryOther, Timestamp: timePtr(now)},
				{Category: incident.CategoryOther, Timestamp: timePtr(now)},
				{Category: incident.CategoryBlockade, Timestamp: timePtr(now)},
			},
			wantCategory: categoryPtr(incident.CategoryBlockade),
		},
		{
			name: "all other falls back to other",
			members: []incident.Extracted{
				{Category: incident.CategoryOther, Timestamp: timePtr(now)},
				{Category: incident.CategoryOther, Timestamp: timePtr(now)},
			},
			wantCategory: &other,
		},
		{
			name: "category tie goes to first seen",
			members: []incident.Extracted{
				{Category: incident.CategoryBlockade, Timestamp: timePtr(now)},
				{Category: incident.CategoryAccident, Timestamp: timePtr(now)},
			},
			wantCategory: categoryPtr(incident.CategoryBlockade),
		},
		{
			name: "no categories and no locations",
			members: []incident.Extracted{
				{Timestamp: timePtr(now)},
				{Timestamp: timePtr(now)},
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := Verify([][]int{indexes(len(tc.members))}, tc.members, 2)
			if len(got) != 1 {
				t.Fatalf("expected one incident, got %d", len(got))
			}
			if !reflect.DeepEqual(got[0].Location, tc.wantLocation) {
				t.Fatalf("location = %v, want %v", deref(got[0].Location), deref(tc.wantLocation))
			}
			if !reflect.DeepEqual(got[0].Category, tc.wantCategory) {
				t.Fatalf("category = %v, want %v", got[0].Category, tc.wantCategory)
			}
		})
	}
}

func TestProcessEndToEnd(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := New(sampleSimilarity, DefaultOptions(), zerolog.Nop())
	result := d.Process(sampleReports(now))

	if len(result.Incidents) != 2 {
		t.Fatalf("expected 2 incidents, got %d", len(result.Incidents))
	}
	for _, inc := range result.Incidents {
		if inc.ContributingReportCount != 2 {
			t.Fatalf("unexpected count %d", inc.ContributingReportCount)
		}
		if inc.FirstReportAt.After(inc.LastReportAt) {
			t.Fatalf("first_report_at after last_report_at")
		}
	}
	if result.Singletons != 2 {
		t.Fatalf("expected 2 singletons, got %d", result.Singletons)
	}
}

func TestProcessEmptyBatch(t *testing.T) {
	t.Parallel()

	result := New(nil, Options{}, zerolog.Nop()).Process(nil)
	if len(result.Incidents) != 0 || len(result.Groups) != 0 {
		t.Fatalf("expected empty result, got %#v", result)
	}
}

func TestTFIDFSimilarityMatrix(t *testing.T) {
	t.Parallel()

	texts := []string{
		"ازدحام شديد في شارع صلاح الدين",
		"ازدحام شديد في شارع صلاح الدين جدا",
		"طقس جميل اليوم",
		"ازدحام شديد في شارع صلاح الدين",
		"و",
	}
	m := TFIDF{}.SimilarityMatrix(texts)
	if len(m) != len(texts) {
		t.Fatalf("unexpected size %d", len(m))
	}
	for i := range m {
		if m[i][i] != 1 {
			t.Fatalf("diagonal[%d] = %f", i, m[i][i])
		}
		for j := range m[i] {
			if m[i][j] != m[j][i] {
				t.Fatalf("matrix not symmetric at %d,%d", i, j)
			}
			if m[i][j] < 0 || m[i][j] > 1 {
				t.Fatalf("entry %d,%d out of range: %f", i, j, m[i][j])
			}
		}
	}
	if math.Abs(m[0][3]-1) > 1e-9 {
		t.Fatalf("identical texts should score 1, got %f", m[0][3])
	}
	if m[0][1] < 0.8 {
		t.Fatalf("near-identical texts should score high, got %f", m[0][1])
	}
	if m[0][2] != 0 {
		t.Fatalf("disjoint texts should score 0, got %f", m[0][2])
	}
	if m[0][4] != 0 {
		t.Fatalf("text with no terms should score 0, got %f", m[0][4])
	}
}

func TestTFIDFEmptyBatch(t *testing.T) {
	t.Parallel()

	if m := (TFIDF{}).SimilarityMatrix(nil); len(m) != 0 {
		t.Fatalf("expected 0x0 matrix, got %d rows", len(m))
	}
}

func TestTFIDFCaseInsensitive(t *testing.T) {
	t.Parallel()

	m := TFIDF{}.SimilarityMatrix([]string{"Road Closed", "road closed"})
	if math.Abs(m[0][1]-1) > 1e-9 {
		t.Fatalf("expected case-insensitive match, got %f", m[0][1])
	}
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func strPtr(v string) *string {
	return &v
}

func categoryPtr(v incident.Category) *incident.Category {
	return &v
}

func deref(v *string) string {
	if v == nil {
		return "<nil>"
	}
	return *v
}
