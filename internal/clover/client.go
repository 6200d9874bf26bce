// Package clover is a small client for the Clover merchant batches API.
package clover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"closeout/internal/core"
	"closeout/internal/log"
	"closeout/internal/metrics"
)

const (
	DefaultBaseURL  = "https://api.clover.com"
	DefaultPageSize = 100
	DefaultMaxPages = 200
	DefaultTimeout  = 30 * time.Second

	maxBodyBytes = 32 << 20
)

// RawBatch is one batch object exactly as the API returned it.
// Numbers are json.Number.
type RawBatch map[string]any

// Credentials identify the merchant and authorize requests.
type Credentials struct {
	AccessToken string
	MerchantID  string
	BaseURL     string
}

// Validate reports every empty field.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.AccessToken) == "" {
		missing = append(missing, "access token")
	}
	if strings.TrimSpace(c.MerchantID) == "" {
		missing = append(missing, "merchant id")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		missing = append(missing, "base url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", core.ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// Config holds everything a Client needs.
type Config struct {
	Credentials
	Timeout  time.Duration
	PageSize int
	MaxPages int
	Retry    RetryPolicy

	HTTPClient *http.Client
	Logger     *log.Logger
	Metrics    *metrics.Recorder
}

// Client fetches batches for one merchant.
type Client struct {
	baseURL    string
	merchantID string
	token      string
	pageSize   int
	maxPages   int
	retry      RetryPolicy
	http       *http.Client
	logger     *log.Logger
	metrics    *metrics.Recorder
	sleep      func(context.Context, time.Duration) error
}

// NewClient validates the credentials and applies defaults.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, err
	}
	u, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("clover: invalid base url %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 && retry.BaseDelay == 0 {
		retry = DefaultRetryPolicy()
	}

	return &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		merchantID: strings.TrimSpace(cfg.MerchantID),
		token:      strings.TrimSpace(cfg.AccessToken),
		pageSize:   pageSize,
		maxPages:   maxPages,
		retry:      retry,
		http:       httpClient,
		logger:     log.OrDefault(cfg.Logger, log.ComponentClover),
		metrics:    cfg.Metrics,
		sleep:      sleepContext,
	}, nil
}

type batchPage struct {
	Elements []RawBatch `json:"elements"`
}

// FetchBatches returns every batch created inside the interval, following
// the offset cursor until a short page. A page count above the configured
// cap is treated as a misbehaving endpoint.
func (c *Client) FetchBatches(ctx context.Context, mi core.MonthInterval) ([]RawBatch, error) {
	var out []RawBatch
	offset := 0
	for page := 0; ; page++ {
		if page >= c.maxPages {
			return nil, fmt.Errorf("%w: %s: pagination did not end after %d pages", core.ErrFetchFailed, mi.Label(), c.maxPages)
		}

		q := url.Values{}
		q.Add("filter", "createdTime>="+strconv.FormatInt(mi.Start.UnixMilli(), 10))
		q.Add("filter", "createdTime<"+strconv.FormatInt(mi.End.UnixMilli(), 10))
		q.Set("expand", "batchDetails")
		q.Set("limit", strconv.Itoa(c.pageSize))
		q.Set("offset", strconv.Itoa(offset))

		body, err := c.get(ctx, c.merchantPath("/batches")+"?"+q.Encode())
		if err != nil {
			return nil, fmt.Errorf("%s page %d: %w", mi.Label(), page, err)
		}
		var p batchPage
		if err := decode(body, &p); err != nil {
			return nil, fmt.Errorf("%w: %s page %d: decode: %w", core.ErrFetchFailed, mi.Label(), page, err)
		}
		out = append(out, p.Elements...)

		c.logger.DebugContext(ctx, "Fetched batch page",
			log.FieldLabel, mi.Label(),
			log.FieldPage, page,
			log.FieldOffset, offset,
			log.FieldRecords, len(p.Elements))

		if len(p.Elements) < c.pageSize {
			break
		}
		offset += len(p.Elements)
	}

	c.logger.InfoContext(ctx, "Fetched batches",
		log.FieldLabel, mi.Label(),
		log.FieldRecords, len(out))
	return out, nil
}

// GetBatch returns a single batch with its details.
func (c *Client) GetBatch(ctx context.Context, id string) (RawBatch, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("clover: empty batch id")
	}
	body, err := c.get(ctx, c.merchantPath("/batches/"+url.PathEscape(id))+"?expand=batchDetails")
	if err != nil {
		return nil, fmt.Errorf("batch %s: %w", id, err)
	}
	var b RawBatch
	if err := decode(body, &b); err != nil {
		return nil, fmt.Errorf("%w: batch %s: decode: %w", core.ErrFetchFailed, id, err)
	}
	return b, nil
}

func (c *Client) merchantPath(suffix string) string {
	return c.baseURL + "/v3/merchants/" + url.PathEscape(c.merchantID) + suffix
}

// get performs an idempotent GET with the retry policy.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	attempts := c.retry.attempts()
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.retry.Backoff(attempt - 1)
			var se *StatusError
			if errors.As(lastErr, &se) && se.RetryAfter > 0 {
				delay = se.RetryAfter
				if c.retry.MaxDelay > 0 && delay > c.retry.MaxDelay {
					delay = c.retry.MaxDelay
				}
			}
			c.metrics.IncRetry()
			c.logger.WarnContext(ctx, "Retrying batch request",
				log.FieldAttempt, attempt+1,
				log.FieldDelay, delay.String(),
				log.FieldError, lastErr)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%w: %w", core.ErrFetchFailed, err)
			}
		}

		start := time.Now()
		body, err := c.once(ctx, rawURL)
		if err == nil {
			c.metrics.ObserveFetch(metrics.ResultSuccess, time.Since(start))
			return body, nil
		}
		if ctx.Err() != nil {
			c.metrics.ObserveFetch(metrics.ResultError, time.Since(start))
			return nil, fmt.Errorf("%w: %w", core.ErrFetchFailed, ctx.Err())
		}

		switch classify(err) {
		case classAuth:
			c.metrics.ObserveFetch(metrics.ResultAuth, time.Since(start))
			return nil, fmt.Errorf("%w: %w", core.ErrAuthFailed, err)
		case classPermanent:
			c.metrics.ObserveFetch(metrics.ResultError, time.Since(start))
			return nil, fmt.Errorf("%w: %w", core.ErrFetchFailed, err)
		}
		c.metrics.ObserveFetch(metrics.ResultRetryable, time.Since(start))
		lastErr = err
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", core.ErrFetchFailed, attempts, lastErr)
}

func (c *Client) once(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{
			Code:       resp.StatusCode,
			Body:       snippet,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return body, nil
}

func decode(body []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(out)
}
