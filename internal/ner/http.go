package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultTimeout       = 10 * time.Second
	DefaultRatePerSecond = 5.0
	maxResponseBytes     = 1 << 20
)

// HTTPTagger calls a JSON token-classification endpoint:
//
//	POST {endpoint}  {"tokens": ["..."]}  ->  {"tags": ["B-LOC", "O", ...]}
type HTTPTagger struct {
	endpointURL string
	client      *http.Client
	limiter     *rate.Limiter
}

// NewHTTPTagger builds a client. ratePerSecond <= 0 disables pacing.
func NewHTTPTagger(endpoint string, timeout time.Duration, ratePerSecond float64) (*HTTPTagger, error) {
	normalized, err := normalizeEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}

	return &HTTPTagger{
		endpointURL: normalized,
		client:      &http.Client{Timeout: timeout},
		limiter:     limiter,
	}, nil
}

// New returns an HTTPTagger when endpoint is set, otherwise an Unavailable tagger.
func New(endpoint string, timeout time.Duration, ratePerSecond float64) Tagger {
	if strings.TrimSpace(endpoint) == "" {
		return Unavailable{Reason: "NER_ENDPOINT is not configured"}
	}
	tagger, err := NewHTTPTagger(endpoint, timeout, ratePerSecond)
	if err != nil {
		return Unavailable{Reason: err.Error()}
	}
	return tagger
}

func (t *HTTPTagger) Name() string {
	return "http"
}

func (t *HTTPTagger) Tag(ctx context.Context, tokens []string) ([]string, error) {
	if t == nil {
		return nil, ErrUnavailable
	}
	if len(tokens) == 0 {
		return []string{}, nil
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for ner rate limiter: %w", err)
	}

	body, err := json.Marshal(tagRequest{Tokens: tokens})
	if err != nil {
		return nil, fmt.Errorf("marshal ner request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build ner request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send ner request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read ner response: %w", err)
	}
	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, fmt.Errorf("%w: endpoint status 503", ErrUnavailable)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errPayload tagErrorResponse
		if unmarshalErr := json.Unmarshal(respBody, &errPayload); unmarshalErr == nil {
			if msg := strings.TrimSpace(errPayload.Error); msg != "" {
				return nil, fmt.Errorf("ner endpoint status %d: %s", resp.StatusCode, msg)
			}
		}
		return nil, fmt.Errorf("ner endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed tagResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode ner response: %w", err)
	}
	if len(parsed.Tags) != len(tokens) {
		return nil, fmt.Errorf("ner response has %d tags for %d tokens", len(parsed.Tags), len(tokens))
	}
	return parsed.Tags, nil
}

type tagRequest struct {
	Tokens []string `json:"tokens"`
}

type tagResponse struct {
	Tags []string `json:"tags"`
}

type tagErrorResponse struct {
	Error string `json:"error"`
}

func normalizeEndpoint(raw string) (string, error) {
	endpoint := strings.TrimSpace(raw)
	if endpoint == "" {
		return "", fmt.Errorf("ner endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse ner endpoint: %w", err)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", fmt.Errorf("ner endpoint %q has no host", raw)
	}
	path := strings.TrimRight(parsed.Path, "/")
	if path == "" {
		path = "/v1/tag"
	}
	parsed.Path = path
	return parsed.String(), nil
}
