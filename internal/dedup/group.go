package dedup

import (
	"sort"
	"time"

	"horse.fit/tariqi/internal/incident"
)

const (
	DefaultSimilarityThreshold = 0.8
	DefaultTimeWindow          = 2 * time.Hour
	DefaultMinClusterSize      = 2
)

// Group partitions report indices greedily in chronological order.
//
// Each unclaimed report seeds a new group and claims every later unclaimed report
// whose timestamp is within window of the seed and whose similarity to the seed is
// at least threshold. Members are compared to the seed only. Reports without a
// timestamp are left out of every group. Groups are returned in the order they were
// opened and each group lists the seed first.
func Group(reports []incident.Extracted, similarity [][]float64, threshold float64, window time.Duration) [][]int {
	order := make([]int, 0, len(reports))
	for i, report := range reports {
		if report.Timestamp == nil {
			continue
		}
		order = append(order, i)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return reports[order[a]].Timestamp.Before(*reports[order[b]].Timestamp)
	})

	claimed := make([]bool, len(reports))
	groups := make([][]int, 0, len(order))
	for pos, seed := range order {
		if claimed[seed] {
			continue
		}
		claimed[seed] = true
		group := []int{seed}
		seedAt := *reports[seed].Timestamp

		for _, candidate := range order[pos+1:] {
			if claimed[candidate] {
				continue
			}
			if !withinWindow(seedAt, *reports[candidate].Timestamp, window) {
				continue
			}
			if score(similarity, seed, candidate) < threshold {
				continue
			}
			claimed[candidate] = true
			group = append(group, candidate)
		}
		groups = append(groups, group)
	}
	return groups
}

func withinWindow(left, right time.Time, window time.Duration) bool {
	diff := left.Sub(right)
	if diff < 0 {
		diff = -diff
	}
	return diff <= window
}

func score(similarity [][]float64, i, j int) float64 {
	if i >= len(similarity) || j >= len(similarity[i]) {
		return 0
	}
	return similarity[i][j]
}
