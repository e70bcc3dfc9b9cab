// Package langdetect tags report text with an ISO 639-1 language code.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// Reports in the coverage area arrive in Arabic, English or Hebrew; anything else stays untagged.
var coverageLanguages = []lingua.Language{
	lingua.Arabic,
	lingua.English,
	lingua.Hebrew,
}

const (
	minLetters    = 4
	minConfidence = 0.5
)

// Guess is the most likely language of a text. Code is empty when nothing was confident enough.
type Guess struct {
	Code       string
	Confidence float64
}

var (
	buildOnce sync.Once
	shared    lingua.LanguageDetector
)

func detector() lingua.LanguageDetector {
	buildOnce.Do(func() {
		shared = lingua.NewLanguageDetectorBuilder().
			FromLanguages(coverageLanguages...).
			WithMinimumRelativeDistance(0.1).
			WithPreloadedLanguageModels().
			Build()
	})
	return shared
}

// Detect ranks the coverage languages for text and keeps the top one when it clears minConfidence.
func Detect(text string) Guess {
	sample := strings.TrimSpace(text)
	if countLetters(sample) < minLetters {
		return Guess{}
	}

	ranked := detector().ComputeLanguageConfidenceValues(sample)
	if len(ranked) == 0 {
		return Guess{}
	}
	top := ranked[0]
	if top.Value() < minConfidence {
		return Guess{Confidence: top.Value()}
	}
	code := strings.ToLower(top.Language().IsoCode639_1().String())
	if len(code) != 2 {
		return Guess{}
	}
	return Guess{Code: code, Confidence: top.Value()}
}

// DetectISO6391 returns only the code from Detect.
func DetectISO6391(text string) string {
	return Detect(text).Code
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
