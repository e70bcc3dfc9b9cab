package langdetect

import "testing"

func TestDetectISO6391(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text string
		want string
	}{
		{text: "", want: ""},
		{text: "  ok ", want: ""},
		{text: "أزمة سير خانقة على حاجز قلنديا باتجاه رام الله", want: "ar"},
		{text: "Heavy traffic at the Qalandia checkpoint heading north", want: "en"},
	}
	for _, tc := range cases {
		if got := DetectISO6391(tc.text); got != tc.want {
			t.Fatalf("DetectISO6391(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestDetectReportsConfidence(t *testing.T) {
	t.Parallel()

	guess := Detect("הכביש סגור ליד המחסום בגלל תאונה")
	if guess.Code != "he" {
		t.Fatalf("expected he, got %+v", guess)
	}
	if guess.Confidence < minConfidence || guess.Confidence > 1 {
		t.Fatalf("confidence out of range: %+v", guess)
	}

	if short := Detect("ok!"); short != (Guess{}) {
		t.Fatalf("expected empty guess for short text, got %+v", short)
	}
}
