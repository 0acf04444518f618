// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package influx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/relabs-tech/vibration_monitor/internal/config"
)

const (
	// DefaultBatchSize caps points per write request; this bounds both
	// request size and peak memory during an upload.
	DefaultBatchSize = 500

	// DefaultMaxRetries is attempts per batch before the run's upload is
	// aborted.
	DefaultMaxRetries = 3

	// DefaultBackoffBase doubles on every failed attempt.
	DefaultBackoffBase = 100 * time.Millisecond
)

// Client writes line-protocol batches to an InfluxDB 2.x endpoint.
type Client struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	HTTPClient  *http.Client
	BatchSize   int
	MaxRetries  int
	BackoffBase time.Duration

	// sleep is replaceable in tests.
	sleep func(time.Duration)
}

// NewClient builds a client from the configured connection parameters with
// default batching and retry settings.
func NewClient(cfg config.InfluxConfig) *Client {
	return &Client{
		URL:         strings.TrimRight(cfg.URL, "/"),
		Token:       cfg.Token,
		Org:         cfg.Org,
		Bucket:      cfg.Bucket,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
		BatchSize:   DefaultBatchSize,
		MaxRetries:  DefaultMaxRetries,
		BackoffBase: DefaultBackoffBase,
		sleep:       time.Sleep,
	}
}

// writeEndpoint returns the v2 write URL with nanosecond precision.
func (c *Client) writeEndpoint() string {
	q := url.Values{}
	q.Set("org", c.Org)
	q.Set("bucket", c.Bucket)
	q.Set("precision", "ns")
	return c.URL + "/api/v2/write?" + q.Encode()
}

// HealthCheck probes the server's /health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL+"/health", nil)
	if err != nil {
		return fmt.Errorf("influx: health request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("influx: health check: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("influx: health status %d", resp.StatusCode)
	}
	return nil
}

// WriteLines flushes the given line-protocol points in batches of at most
// BatchSize. A batch that fails all its retries aborts the remaining
// batches; points already sent are not retracted.
func (c *Client) WriteLines(ctx context.Context, lines []string) error {
	for start := 0; start < len(lines); start += c.BatchSize {
		end := start + c.BatchSize
		if end > len(lines) {
			end = len(lines)
		}
		if err := c.sendBatch(ctx, lines[start:end]); err != nil {
			return fmt.Errorf("influx: batch %d-%d of %d points: %w",
				start, end, len(lines), err)
		}
	}
	return nil
}

// sendBatch posts one batch, retrying with exponential backoff.
func (c *Client) sendBatch(ctx context.Context, lines []string) error {
	body := strings.Join(lines, "\n")

	var lastErr error
	for attempt := 0; attempt < c.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.BackoffBase << (attempt - 1)
			log.Printf("influx: retry %d/%d in %v", attempt+1, c.MaxRetries, delay)
			c.sleep(delay)
		}

		lastErr = c.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("after %d attempts: %w", c.MaxRetries, lastErr)
}

func (c *Client) post(ctx context.Context, body string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.writeEndpoint(),
		bytes.NewReader([]byte(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+c.Token)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// escapeTag makes a value safe for the tag section of a line-protocol
// record.
func escapeTag(v string) string {
	r := strings.NewReplacer(",", `\,`, "=", `\=`, " ", `\ `)
	return r.Replace(v)
}
