package classify

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"horse.fit/tariqi/internal/incident"
	"horse.fit/tariqi/internal/textnorm"
)

//go:embed vocabulary.yaml
var defaultVocabularyYAML []byte

// CategoryRule is one entry of the ordered category list.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Vocabulary is the keyword configuration for relevance and category inference.
type Vocabulary struct {
	Relevant   []string       `yaml:"relevant"`
	Categories []CategoryRule `yaml:"categories"`
}

// compiledVocabulary holds normalized, lower-cased keyword sets ready for token lookup.
type compiledVocabulary struct {
	relevant   map[string]struct{}
	categories []compiledCategory
}

type compiledCategory struct {
	name     incident.Category
	keywords map[string]struct{}
}

// DefaultVocabulary returns the embedded keyword configuration.
func DefaultVocabulary() (Vocabulary, error) {
	return ParseVocabulary(defaultVocabularyYAML)
}

// LoadVocabulary reads a YAML keyword file. An empty path yields the embedded default.
func LoadVocabulary(path string) (Vocabulary, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return DefaultVocabulary()
	}
	raw, err := os.ReadFile(trimmed)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary %s: %w", trimmed, err)
	}
	vocab, err := ParseVocabulary(raw)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("vocabulary %s: %w", trimmed, err)
	}
	return vocab, nil
}

func ParseVocabulary(raw []byte) (Vocabulary, error) {
	var vocab Vocabulary
	if err := yaml.Unmarshal(raw, &vocab); err != nil {
		return Vocabulary{}, fmt.Errorf("decode vocabulary yaml: %w", err)
	}
	if len(vocab.Relevant) == 0 {
		return Vocabulary{}, fmt.Errorf("vocabulary has no relevant keywords")
	}
	return vocab, nil
}

func (v Vocabulary) compile(normalizer *textnorm.Normalizer) (compiledVocabulary, error) {
	out := compiledVocabulary{
		relevant:   make(map[string]struct{}, len(v.Relevant)),
		categories: make([]compiledCategory, 0, len(v.Categories)),
	}

	for _, keyword := range v.Relevant {
		key, err := compileKeyword(normalizer, keyword)
		if err != nil {
			return compiledVocabulary{}, fmt.Errorf("relevant keyword: %w", err)
		}
		out.relevant[key] = struct{}{}
	}

	owner := map[string]string{}
	seenNames := map[string]struct{}{}
	for _, rule := range v.Categories {
		name := strings.ToLower(strings.TrimSpace(rule.Name))
		if name == "" {
			return compiledVocabulary{}, fmt.Errorf("category name is required")
		}
		if name == string(incident.CategoryOther) {
			return compiledVocabulary{}, fmt.Errorf("category %q is reserved for the fallback", name)
		}
		if _, dup := seenNames[name]; dup {
			return compiledVocabulary{}, fmt.Errorf("category %q declared twice", name)
		}
		seenNames[name] = struct{}{}

		compiled := compiledCategory{
			name:     incident.Category(name),
			keywords: make(map[string]struct{}, len(rule.Keywords)),
		}
		for _, keyword := range rule.Keywords {
			key, err := compileKeyword(normalizer, keyword)
			if err != nil {
				return compiledVocabulary{}, fmt.Errorf("category %s: %w", name, err)
			}
			if prev, taken := owner[key]; taken && prev != name {
				return compiledVocabulary{}, fmt.Errorf("keyword %q appears in categories %s and %s", key, prev, name)
			}
			owner[key] = name
			compiled.keywords[key] = struct{}{}
		}
		out.categories = append(out.categories, compiled)
	}

	return out, nil
}

func compileKeyword(normalizer *textnorm.Normalizer, keyword string) (string, error) {
	tokens := textnorm.Tokenize(normalizer.Normalize(strings.TrimSpace(keyword)))
	if len(tokens) != 1 {
		return "", fmt.Errorf("keyword %q must be exactly one token", keyword)
	}
	return strings.ToLower(tokens[0]), nil
}
