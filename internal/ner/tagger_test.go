package ner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestParseTag(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Tag
	}{
		{in: "O", want: Tag{Prefix: Outside}},
		{in: "", want: Tag{Prefix: Outside}},
		{in: "B-LOC", want: Tag{Prefix: Begin, Type: "LOC"}},
		{in: "i-time", want: Tag{Prefix: Inside, Type: "TIME"}},
		{in: "B_DATE", want: Tag{Prefix: Begin, Type: "DATE"}},
		{in: "E-LOC", want: Tag{Prefix: Outside}},
		{in: "LOC", want: Tag{Prefix: Outside}},
	}
	for _, tc := range cases {
		if got := ParseTag(tc.in); got != tc.want {
			t.Fatalf("ParseTag(%q) = %#v, want %#v", tc.in, got, tc.want)
		}
	}
}

func TestNewWithoutEndpointIsUnavailable(t *testing.T) {
	t.Parallel()

	tagger := New("", time.Second, 0)
	if tagger.Name() != "unavailable" {
		t.Fatalf("unexpected tagger: %s", tagger.Name())
	}
	if _, err := tagger.Tag(context.Background(), []string{"x"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestHTTPTaggerTag(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/tag" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req tagRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		tags := make([]string, len(req.Tokens))
		for i := range tags {
			tags[i] = "O"
		}
		tags[len(tags)-1] = "B-LOC"
		_ = json.NewEncoder(w).Encode(tagResponse{Tags: tags})
	}))
	defer srv.Close()

	tagger, err := NewHTTPTagger(srv.URL, time.Second, 0)
	if err != nil {
		t.Fatalf("new tagger: %v", err)
	}
	got, err := tagger.Tag(context.Background(), []string{"ازمه", "قلنديا"})
	if err != nil {
		t.Fatalf("tag: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"O", "B-LOC"}) {
		t.Fatalf("unexpected tags: %#v", got)
	}
}

func TestHTTPTaggerRejectsLengthMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"tags":["O"]}`))
	}))
	defer srv.Close()

	tagger, err := NewHTTPTagger(srv.URL+"/tag", time.Second, 0)
	if err != nil {
		t.Fatalf("new tagger: %v", err)
	}
	if _, err := tagger.Tag(context.Background(), []string{"a", "b"}); err == nil || !strings.Contains(err.Error(), "1 tags for 2 tokens") {
		t.Fatalf("expected length mismatch error, got %v", err)
	}
}

func TestHTTPTaggerServiceUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tagger, err := NewHTTPTagger(srv.URL, time.Second, 0)
	if err != nil {
		t.Fatalf("new tagger: %v", err)
	}
	if _, err := tagger.Tag(context.Background(), []string{"a"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestHTTPTaggerErrorPayload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer srv.Close()

	tagger, err := NewHTTPTagger(srv.URL, time.Second, 0)
	if err != nil {
		t.Fatalf("new tagger: %v", err)
	}
	if _, err := tagger.Tag(context.Background(), []string{"a"}); err == nil || !strings.Contains(err.Error(), "model not loaded") {
		t.Fatalf("expected endpoint error message, got %v", err)
	}
}

func TestHTTPTaggerEmptyTokensSkipsRequest(t *testing.T) {
	t.Parallel()

	tagger, err := NewHTTPTagger("127.0.0.1:1", time.Second, 0)
	if err != nil {
		t.Fatalf("new tagger: %v", err)
	}
	got, err := tagger.Tag(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result without request, got %#v %v", got, err)
	}
}
