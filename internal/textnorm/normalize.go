// Package textnorm canonicalizes informal Arabic report text and splits it into tokens.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// arabicMarks are optional diacritics, Quranic annotation signs and tatweel.
var arabicMarks = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0610, Hi: 0x061A, Stride: 1},
		{Lo: 0x0640, Hi: 0x0640, Stride: 1},
		{Lo: 0x064B, Hi: 0x065F, Stride: 1},
		{Lo: 0x0670, Hi: 0x0670, Stride: 1},
		{Lo: 0x06D6, Hi: 0x06DC, Stride: 1},
		{Lo: 0x06DF, Hi: 0x06E4, Stride: 1},
		{Lo: 0x06E7, Hi: 0x06E8, Stride: 1},
		{Lo: 0x06EA, Hi: 0x06ED, Stride: 1},
	},
}

// arabicPresentationForms are contextual glyph codepoints that decompose to base letters.
var arabicPresentationForms = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0xFB50, Hi: 0xFDFF, Stride: 1},
		{Lo: 0xFE70, Hi: 0xFEFC, Stride: 1},
	},
}

var letterVariants = map[rune]rune{
	'أ': 'ا',
	'إ': 'ا',
	'آ': 'ا',
	'ٱ': 'ا',
	'ى': 'ي',
	'ی': 'ي',
	'ک': 'ك',
	'ة': 'ه',
}

// Normalizer is safe for concurrent use.
type Normalizer struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

func newChain() transform.Transformer {
	return transform.Chain(
		runes.If(runes.In(arabicPresentationForms), norm.NFKC, nil),
		norm.NFC,
		runes.Remove(runes.In(arabicMarks)),
		runes.Map(unifyLetter),
		norm.NFC,
	)
}

func unifyLetter(r rune) rune {
	if mapped, ok := letterVariants[r]; ok {
		return mapped
	}
	return r
}

// Normalize returns the canonical form of text. Invalid UTF-8 or a transform failure is logged and text is returned unchanged.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}
	if !utf8.ValidString(text) {
		if n != nil {
			n.logger.Warn().Int("length", len(text)).Msg("text is not valid UTF-8; using original text")
		}
		return text
	}
	out, _, err := transform.String(newChain(), text)
	if err != nil {
		if n != nil {
			n.logger.Warn().Err(err).Int("length", len(text)).Msg("text normalization failed; using original text")
		}
		return text
	}
	return out
}

// Tokenize splits on whitespace and emits every punctuation or symbol rune as its own token.
func Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}

	tokens := make([]string, 0, len(text)/4+1)
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// NormalizeAndTokenize is the classifier's entry point.
func (n *Normalizer) NormalizeAndTokenize(text string) (string, []string) {
	normalized := n.Normalize(text)
	return normalized, Tokenize(normalized)
}
