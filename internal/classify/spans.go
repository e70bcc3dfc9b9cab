package classify

import (
	"strings"

	"horse.fit/tariqi/internal/ner"
)

type entityKind int

const (
	entityIgnored entityKind = iota
	entityLocation
	entityTime
)

func kindOf(entityType string) entityKind {
	switch strings.ToUpper(strings.TrimSpace(entityType)) {
	case "LOC", "LOCATION":
		return entityLocation
	case "TIME", "DATE":
		return entityTime
	default:
		return entityIgnored
	}
}

// spanAccumulator rebuilds entity spans from a BIO tag stream.
type spanAccumulator struct {
	openType string
	parts    []string

	locations []string
	times     []string
}

func (a *spanAccumulator) push(token string, tag ner.Tag) {
	switch {
	case tag.Prefix == ner.Begin:
		a.flush()
		a.openType = tag.Type
		a.parts = append(a.parts, token)
	case tag.Prefix == ner.Inside && a.openType != "" && tag.Type == a.openType:
		a.parts = append(a.parts, token)
	default:
		a.flush()
	}
}

func (a *spanAccumulator) flush() {
	if a.openType == "" {
		return
	}
	text := strings.TrimSpace(strings.Join(a.parts, " "))
	if text != "" {
		switch kindOf(a.openType) {
		case entityLocation:
			a.locations = append(a.locations, text)
		case entityTime:
			a.times = append(a.times, text)
		}
	}
	a.openType = ""
	a.parts = a.parts[:0]
}

// ReconstructSpans returns location and time mentions in order of appearance.
// Extra tags beyond len(tokens) are ignored; missing tags count as Outside.
func ReconstructSpans(tokens, tags []string) (locations, times []string) {
	acc := spanAccumulator{}
	for i, token := range tokens {
		tag := ner.Tag{Prefix: ner.Outside}
		if i < len(tags) {
			tag = ner.ParseTag(tags[i])
		}
		acc.push(token, tag)
	}
	acc.flush()

	if acc.locations == nil {
		acc.locations = []string{}
	}
	if acc.times == nil {
		acc.times = []string{}
	}
	return acc.locations, acc.times
}
