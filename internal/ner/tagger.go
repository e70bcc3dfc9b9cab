// Package ner is the client side of the external token-labeling model.
package ner

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable means no labeling model is configured or reachable.
var ErrUnavailable = errors.New("ner tagger unavailable")

// Tagger labels each token with a BIO tag such as "B-LOC", "I-TIME" or "O".
type Tagger interface {
	Name() string
	Tag(ctx context.Context, tokens []string) ([]string, error)
}

// Prefix is the BIO position marker of a tag.
type Prefix byte

const (
	Outside Prefix = 'O'
	Begin   Prefix = 'B'
	Inside  Prefix = 'I'
)

// Tag is a parsed BIO label.
type Tag struct {
	Prefix Prefix
	Type   string
}

// ParseTag accepts "B-LOC", "I_TIME", "b-date" and "O". Anything unrecognized is Outside.
func ParseTag(raw string) Tag {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	if trimmed == "" || trimmed == "O" {
		return Tag{Prefix: Outside}
	}

	if len(trimmed) > 2 && (trimmed[1] == '-' || trimmed[1] == '_') {
		entityType := strings.TrimSpace(trimmed[2:])
		switch trimmed[0] {
		case 'B':
			return Tag{Prefix: Begin, Type: entityType}
		case 'I':
			return Tag{Prefix: Inside, Type: entityType}
		}
	}
	return Tag{Prefix: Outside}
}

// Unavailable is the tagger used when no model is configured.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Name() string {
	return "unavailable"
}

func (u Unavailable) Tag(_ context.Context, _ []string) ([]string, error) {
	if strings.TrimSpace(u.Reason) == "" {
		return nil, ErrUnavailable
	}
	return nil, errors.Join(ErrUnavailable, errors.New(u.Reason))
}
