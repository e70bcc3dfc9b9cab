// Package scraper pulls messages from monitored groups and stores them as raw reports.
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"horse.fit/tariqi/internal/globaltime"
)

const (
	DefaultTimeout   = 30 * time.Second
	maxResponseBytes = 8 << 20
)

// GroupSource lists recent messages of one group as raw JSON objects, newest first.
type GroupSource interface {
	Messages(ctx context.Context, groupID string, limit int) ([]json.RawMessage, error)
}

// PermissionError means the account may not read the group.
type PermissionError struct {
	GroupID string
	Detail  string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("no permission to read group %s: %s", e.GroupID, e.Detail)
}

// RateLimitError asks the caller to wait before calling the source again.
type RateLimitError struct {
	GroupID string
	Wait    time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited reading group %s; retry after %s", e.GroupID, e.Wait)
}

// HTTPGroupSource reads a JSON relay:
//
//	GET {endpoint}/groups/{id}/messages?limit=N  ->  {"messages": [{...}, ...]}
type HTTPGroupSource struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPGroupSource builds a client. ratePerSecond <= 0 disables pacing.
func NewHTTPGroupSource(endpoint string, timeout time.Duration, ratePerSecond float64) (*HTTPGroupSource, error) {
	base := strings.TrimSpace(endpoint)
	if base == "" {
		return nil, fmt.Errorf("scraper endpoint is required")
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse scraper endpoint: %w", err)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return nil, fmt.Errorf("scraper endpoint %q has no host", endpoint)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}

	return &HTTPGroupSource{
		baseURL: parsed.String(),
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}, nil
}

func (s *HTTPGroupSource) Messages(ctx context.Context, groupID string, limit int) ([]json.RawMessage, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for scraper rate limiter: %w", err)
	}

	endpoint := fmt.Sprintf("%s/groups/%s/messages", s.baseURL, url.PathEscape(groupID))
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build scraper request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch group %s: %w", groupID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read group %s response: %w", groupID, err)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, &PermissionError{GroupID: groupID, Detail: strings.TrimSpace(string(body))}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{GroupID: groupID, Wait: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("group %s: relay status %d: %s", groupID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode group %s response: %w", groupID, err)
	}
	return parsed.Messages, nil
}

const defaultRetryAfter = 30 * time.Second

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(raw string) time.Duration {
	value := strings.TrimSpace(raw)
	if value == "" {
		return defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := at.Sub(globaltime.Now()); wait > 0 {
			return wait
		}
		return 0
	}
	return defaultRetryAfter
}
