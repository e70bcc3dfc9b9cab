// Package classify turns raw report text into relevance, entity and category information.
package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/tariqi/internal/incident"
	"horse.fit/tariqi/internal/ner"
	"horse.fit/tariqi/internal/textnorm"
)

// Classifier is stateless between calls apart from its injected tagger.
type Classifier struct {
	normalizer *textnorm.Normalizer
	tagger     ner.Tagger
	vocab      compiledVocabulary
	logger     zerolog.Logger
}

// New compiles vocab against the normalizer. A nil tagger is treated as unavailable.
func New(normalizer *textnorm.Normalizer, tagger ner.Tagger, vocab Vocabulary, logger zerolog.Logger) (*Classifier, error) {
	if normalizer == nil {
		normalizer = textnorm.New(logger)
	}
	if tagger == nil {
		tagger = ner.Unavailable{}
	}
	compiled, err := vocab.compile(normalizer)
	if err != nil {
		return nil, fmt.Errorf("compile vocabulary: %w", err)
	}
	return &Classifier{
		normalizer: normalizer,
		tagger:     tagger,
		vocab:      compiled,
		logger:     logger,
	}, nil
}

// ExtractAndClassify never fails: a broken tagger only empties the entity lists.
func (c *Classifier) ExtractAndClassify(ctx context.Context, text string) incident.Extracted {
	result := incident.Extracted{
		OriginalText: text,
		Locations:    []string{},
		Times:        []string{},
	}
	if strings.TrimSpace(text) == "" {
		return result
	}

	normalized, tokens := c.normalizer.NormalizeAndTokenize(text)
	result.NormalizedText = strings.Join(tokens, " ")

	result.Locations, result.Times = c.extractEntities(ctx, tokens)
	result.IsRelevant = c.IsRelevant(tokens, result.Locations)
	if result.IsRelevant {
		result.Category = c.InferCategory(tokens)
	}

	c.logger.Debug().
		Int("tokens", len(tokens)).
		Int("normalized_length", len(normalized)).
		Bool("relevant", result.IsRelevant).
		Str("category", string(result.Category)).
		Int("locations", len(result.Locations)).
		Int("times", len(result.Times)).
		Msg("report classified")
	return result
}

func (c *Classifier) extractEntities(ctx context.Context, tokens []string) ([]string, []string) {
	if len(tokens) == 0 {
		return []string{}, []string{}
	}

	tags, err := c.tagger.Tag(ctx, tokens)
	if err == nil && len(tags) != len(tokens) {
		err = fmt.Errorf("tagger returned %d tags for %d tokens", len(tags), len(tokens))
	}
	if err != nil {
		event := c.logger.Warn()
		if errors.Is(err, ner.ErrUnavailable) {
			event = c.logger.Debug()
		}
		event.Err(err).Str("tagger", c.tagger.Name()).Msg("entity tagging failed; using keyword rules only")
		return []string{}, []string{}
	}

	return ReconstructSpans(tokens, tags)
}

// IsRelevant is true when any token is a relevance keyword or at least one location was found.
func (c *Classifier) IsRelevant(tokens []string, locations []string) bool {
	for _, token := range tokens {
		if _, ok := c.vocab.relevant[strings.ToLower(token)]; ok {
			return true
		}
	}
	return len(locations) > 0
}

// InferCategory applies the category rules in priority order and falls back to other.
func (c *Classifier) InferCategory(tokens []string) incident.Category {
	for _, rule := range c.vocab.categories {
		for _, token := range tokens {
			if _, ok := rule.keywords[strings.ToLower(token)]; ok {
				return rule.name
			}
		}
	}
	return incident.CategoryOther
}

// ClassifyRelevance normalizes and tokenizes text before applying IsRelevant with no entities.
func (c *Classifier) ClassifyRelevance(text string) bool {
	_, tokens := c.normalizer.NormalizeAndTokenize(text)
	return c.IsRelevant(tokens, nil)
}
