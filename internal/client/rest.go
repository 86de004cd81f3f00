package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bustrack/internal/domain/geo"
)

// RetryPolicy bounds delivery retries for the REST fallback. A policy
// value, not ad hoc timers, so attempts and delay are testable in
// isolation.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Backoff multiplies the delay after each failed attempt; values
	// below 1 mean a fixed delay.
	Backoff float64
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Delay <= 0 {
		p.Delay = 2 * time.Second
	}
	if p.Backoff < 1 {
		p.Backoff = 1
	}
	return p
}

// Fallback delivers location updates over plain HTTP when the realtime
// channel may be suspended (backgrounded app, headless task).
type Fallback struct {
	baseURL string
	token   string
	policy  RetryPolicy
	httpc   *http.Client
	log     *slog.Logger
}

func NewFallback(baseURL, token string, policy RetryPolicy, log *slog.Logger) *Fallback {
	if log == nil {
		log = slog.Default()
	}
	return &Fallback{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		policy:  policy.withDefaults(),
		httpc:   &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

// Report POSTs one sample to /tracking/update, retrying per policy. The
// sample passes the same validity gate as the realtime path; garbage in,
// nothing out.
func (f *Fallback) Report(ctx context.Context, sample geo.Sample) error {
	if err := sample.Validate(); err != nil {
		f.log.Warn("fallback_rejected", "error", err)
		return err
	}

	body, err := json.Marshal(updatePayload(sample))
	if err != nil {
		return err
	}

	delay := f.policy.Delay
	var lastErr error
	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		lastErr = f.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		f.log.Warn("fallback_attempt_failed", "attempt", attempt, "error", lastErr)
		if attempt == f.policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * f.policy.Backoff)
	}
	return fmt.Errorf("tracking update not delivered after %d attempts: %w",
		f.policy.MaxAttempts, lastErr)
}

func (f *Fallback) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		f.baseURL+"/tracking/update", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token)

	resp, err := f.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("tracking update rejected: %s", resp.Status)
	}
	return nil
}
