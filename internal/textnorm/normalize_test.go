package textnorm

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	n := New(zerolog.Nop())
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "alef variants", in: "أزمة إغلاق آمن", want: "ازمه اغلاق امن"},
		{name: "alef maksura", in: "على", want: "علي"},
		{name: "teh marbuta", in: "مدينة", want: "مدينه"},
		{name: "diacritics", in: "حَادِثٌ", want: "حادث"},
		{name: "tatweel", in: "شـــارع", want: "شارع"},
		{name: "decomposed hamza composes first", in: "\u064A\u0654", want: "\u0626"},
		{name: "presentation form ligature", in: "\uFEF5", want: "لا"},
		{name: "digits and punctuation", in: "حاجز 12، الساعة 7:30!", want: "حاجز 12، الساعه 7:30!"},
		{name: "foreign script unchanged", in: "Caf\u00e9 Road 60", want: "Caf\u00e9 Road 60"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := n.Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	n := New(zerolog.Nop())
	samples := []string{
		"",
		"أزمة خانقة على دوار المنارة",
		"إغلاق حاجز قلنديا بالكامل!!",
		"ﻵﺍآ",
		"حَادِثُ سَيْرٍ عِنْدَ مَدْخَلِ البِيرَة",
		"éً mixed",
		"Traffic JAM near Qalandia",
	}
	for _, sample := range samples {
		once := n.Normalize(sample)
		twice := n.Normalize(once)
		if once != twice {
			t.Fatalf("normalize not idempotent for %q: %q then %q", sample, once, twice)
		}
	}
}

func TestNilNormalizerStillNormalizes(t *testing.T) {
	t.Parallel()

	var n *Normalizer
	if got := n.Normalize("مدينة"); got != "مدينه" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestNormalizeKeepsInvalidUTF8Unchanged(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n := New(zerolog.New(&buf))
	input := "مدينة\xff"
	if got := n.Normalize(input); got != input {
		t.Fatalf("expected original bytes back, got %q", got)
	}
	if !strings.Contains(buf.String(), "not valid UTF-8") {
		t.Fatalf("expected a warning, got %q", buf.String())
	}
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want []string
	}{
		{in: "", want: []string{}},
		{in: "   \t\n", want: []string{}},
		{in: "ازمه خانقه", want: []string{"ازمه", "خانقه"}},
		{in: "حاجز عطاره، مغلق!", want: []string{"حاجز", "عطاره", "،", "مغلق", "!"}},
		{in: "الساعة 7:30", want: []string{"الساعة", "7", ":", "30"}},
		{in: "(دوار)", want: []string{"(", "دوار", ")"}},
	}

	for _, tc := range cases {
		if got := Tokenize(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("Tokenize(%q) = %#v, want %#v", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeAndTokenize(t *testing.T) {
	t.Parallel()

	normalized, tokens := New(zerolog.Nop()).NormalizeAndTokenize("أزمة على الجسر")
	if normalized != "ازمه علي الجسر" {
		t.Fatalf("unexpected normalized text: %q", normalized)
	}
	if !reflect.DeepEqual(tokens, []string{"ازمه", "علي", "الجسر"}) {
		t.Fatalf("unexpected tokens: %#v", tokens)
	}
}
