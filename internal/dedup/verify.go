package dedup

import (
	"github.com/google/uuid"

	"horse.fit/tariqi/internal/incident"
)

var newIncidentID = uuid.NewString

// Verify promotes every group with at least minSize members to an incident, keeping group order.
// Smaller groups are dropped. Members without a timestamp never appear in groups built by Group.
func Verify(groups [][]int, reports []incident.Extracted, minSize int) []incident.Verified {
	if minSize < 1 {
		minSize = 1
	}
	verified := make([]incident.Verified, 0, len(groups))
	for _, group := range groups {
		if len(group) < minSize {
			continue
		}
		members := make([]incident.Extracted, 0, len(group))
		for _, idx := range group {
			if idx < 0 || idx >= len(reports) {
				continue
			}
			members = append(members, reports[idx])
		}
		if len(members) < minSize {
			continue
		}
		verified = append(verified, aggregate(members))
	}
	return verified
}

func aggregate(members []incident.Extracted) incident.Verified {
	out := incident.Verified{
		ID:                      newIncidentID(),
		RepresentativeText:      members[0].OriginalText,
		ContributingReportCount: len(members),
		Sources:                 make([]incident.SourceRef, 0, len(members)),
	}

	var locations []string
	var categories []string
	var firstCategory *incident.Category
	earliest, latest := -1, -1
	for i, member := range members {
		out.Sources = append(out.Sources, member.Source)
		locations = append(locations, member.Locations...)

		if member.Category != "" {
			if firstCategory == nil {
				c := member.Category
				firstCategory = &c
			}
			if member.Category != incident.CategoryOther {
				categories = append(categories, string(member.Category))
			}
		}

		if member.Timestamp == nil {
			continue
		}
		if earliest < 0 || member.Timestamp.Before(*members[earliest].Timestamp) {
			earliest = i
		}
		if latest < 0 || member.Timestamp.After(*members[latest].Timestamp) {
			latest = i
		}
	}

	if location, ok := mode(locations); ok {
		out.Location = &location
	}
	if category, ok := mode(categories); ok {
		c := incident.Category(category)
		out.Category = &c
	} else {
		out.Category = firstCategory
	}
	if earliest >= 0 {
		out.FirstReportAt = members[earliest].Timestamp.UTC()
		out.LastReportAt = members[latest].Timestamp.UTC()
		if times := members[earliest].Times; len(times) > 0 {
			t := times[0]
			out.Time = &t
		}
	}
	return out
}

// mode returns the most frequent value; ties go to the value seen first.
func mode(values []string) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	counts := make(map[string]int, len(values))
	best, bestCount := "", 0
	for _, value := range values {
		counts[value]++
	}
	for _, value := range values {
		if counts[value] > bestCount {
			best, bestCount = value, counts[value]
		}
	}
	return best, true
}
