// Package dedup groups near-duplicate incident reports and promotes corroborated groups to incidents.
package dedup

import (
	"math"
	"strings"
	"unicode"
)

// Scorer computes pairwise similarity for a batch of texts.
// The result is N×N, symmetric, with 1.0 on the diagonal and every entry in [0,1].
type Scorer interface {
	SimilarityMatrix(texts []string) [][]float64
}

// TFIDF weights terms by smoothed inverse document frequency over the batch and
// compares the L2-normalized vectors by cosine.
type TFIDF struct {
	// MinTermLength drops shorter terms. Zero means 2.
	MinTermLength int
}

func (t TFIDF) minTermLength() int {
	if t.MinTermLength <= 0 {
		return 2
	}
	return t.MinTermLength
}

func (t TFIDF) SimilarityMatrix(texts []string) [][]float64 {
	n := len(texts)
	matrix := make([][]float64, n)
	if n == 0 {
		return matrix
	}

	counts := make([]map[string]float64, n)
	docFreq := map[string]int{}
	for i, text := range texts {
		counts[i] = termCounts(text, t.minTermLength())
		for term := range counts[i] {
			docFreq[term]++
		}
	}

	vectors := make([]map[string]float64, n)
	for i, tf := range counts {
		vector := make(map[string]float64, len(tf))
		var norm float64
		for term, count := range tf {
			weight := count * smoothIDF(n, docFreq[term])
			vector[term] = weight
			norm += weight * weight
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for term := range vector {
				vector[term] /= norm
			}
		}
		vectors[i] = vector
	}

	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			score := clampUnit(dot(vectors[i], vectors[j]))
			matrix[i][j] = score
			matrix[j][i] = score
		}
	}
	return matrix
}

func smoothIDF(docs, docFreq int) float64 {
	return math.Log(float64(1+docs)/float64(1+docFreq)) + 1
}

func dot(left, right map[string]float64) float64 {
	if len(left) > len(right) {
		left, right = right, left
	}
	var sum float64
	for term, weight := range left {
		sum += weight * right[term]
	}
	return sum
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// termCounts splits text into runs of letters, digits and underscores, lower-cased.
func termCounts(text string, minLength int) map[string]float64 {
	counts := map[string]float64{}
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	for _, field := range fields {
		if len([]rune(field)) < minLength {
			continue
		}
		counts[field]++
	}
	return counts
}
