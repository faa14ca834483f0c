// Package splunk implements the remote search platform client: saved-search
// dispatch, bounded completion polling, and paginated result retrieval.
package splunk

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/seclens/termwatch/internal/domain"
	"github.com/seclens/termwatch/internal/metrics"
)

var sidPattern = regexp.MustCompile(`<sid>([^<]+)</sid>`)

// Config holds remote search platform settings.
type Config struct {
	BaseURL            string
	Username           string
	Password           string
	SavedSearch        string
	PollInterval       time.Duration
	MaxPollAttempts    int
	PageSize           int
	RequestTimeout     time.Duration
	InsecureSkipVerify bool
}

// Client talks to the remote search platform over its REST API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a search platform client. Zero-valued poll/page settings
// fall back to production defaults (2s interval, 120 attempts, 1000 rows).
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = 120
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	transport := http.DefaultTransport
	if cfg.InsecureSkipVerify {
		// Self-signed platform certificates are the norm in lab deployments.
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // opt-in via config
		}
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		logger: logger,
	}
}

// Dispatch starts the configured saved search and returns the job SID.
func (c *Client) Dispatch(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/services/saved/searches/%s/dispatch",
		c.cfg.BaseURL, url.PathEscape(c.cfg.SavedSearch))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build dispatch request: %w", domain.ErrDispatchFailed)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("dispatch %s: %w: %w", c.cfg.SavedSearch, err, domain.ErrDispatchFailed)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read dispatch response: %w: %w", err, domain.ErrDispatchFailed)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("dispatch %s: status %d: %w", c.cfg.SavedSearch, resp.StatusCode, domain.ErrDispatchFailed)
	}

	m := sidPattern.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("dispatch response has no sid: %w", domain.ErrDispatchFailed)
	}

	sid := string(m[1])
	c.logger.Info("Started search job", zap.String("sid", sid), zap.String("saved_search", c.cfg.SavedSearch))
	return sid, nil
}

// AwaitCompletion polls job status until isDone, sleeping PollInterval
// between attempts. Malformed or non-2xx status responses count as transient
// and are retried within the same attempt budget.
func (c *Client) AwaitCompletion(ctx context.Context, sid string) error {
	for attempt := 1; attempt <= c.cfg.MaxPollAttempts; attempt++ {
		done, err := c.jobDone(ctx, sid)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return fmt.Errorf("await job %s: %w", sid, ctx.Err())
			}
			c.logger.Warn("Job status check failed",
				zap.String("sid", sid), zap.Int("attempt", attempt), zap.Error(err))
		case done:
			c.logger.Info("Search job completed", zap.String("sid", sid), zap.Int("attempts", attempt))
			return nil
		default:
			c.logger.Debug("Waiting for search job",
				zap.String("sid", sid),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.cfg.MaxPollAttempts))
		}

		if attempt < c.cfg.MaxPollAttempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("await job %s: %w", sid, ctx.Err())
			case <-time.After(c.cfg.PollInterval):
			}
		}
	}
	return fmt.Errorf("job %s after %d attempts: %w", sid, c.cfg.MaxPollAttempts, domain.ErrJobTimeout)
}

// FetchResults retrieves the job's full result set in PageSize pages,
// preserving remote ordering. A failing page request ends pagination early;
// the rows already retrieved are returned.
func (c *Client) FetchResults(ctx context.Context, sid string) ([]domain.Record, error) {
	total, err := c.resultCount(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("count results for job %s: %w", sid, err)
	}
	c.logger.Info("Fetching search results", zap.String("sid", sid), zap.Int("total", total))

	var all []domain.Record
	for offset := 0; offset < total; offset += c.cfg.PageSize {
		page, err := c.resultsPage(ctx, sid, offset, c.cfg.PageSize)
		if err != nil {
			c.logger.Warn("Result page fetch failed, returning partial results",
				zap.String("sid", sid),
				zap.Int("offset", offset),
				zap.Int("retrieved", len(all)),
				zap.Error(err))
			break
		}
		all = append(all, page...)
	}

	metrics.RecordsFetchedTotal.Add(float64(len(all)))
	return all, nil
}

// jobDone checks the job status endpoint once.
func (c *Client) jobDone(ctx context.Context, sid string) (bool, error) {
	endpoint := fmt.Sprintf("%s/services/search/jobs/%s?output_mode=json", c.cfg.BaseURL, url.PathEscape(sid))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return false, err
	}

	var status struct {
		Entry []struct {
			Content struct {
				IsDone bool `json:"isDone"`
			} `json:"content"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return false, fmt.Errorf("parse status response: %w", err)
	}
	if len(status.Entry) == 0 {
		return false, fmt.Errorf("status response has no entries")
	}
	return status.Entry[0].Content.IsDone, nil
}

// resultCount issues a zero-count probe to learn the total result size.
func (c *Client) resultCount(ctx context.Context, sid string) (int, error) {
	body, err := c.get(ctx, c.resultsURL(sid, 0, 0))
	if err != nil {
		return 0, err
	}

	results, err := parseResults(body)
	if err != nil {
		return 0, err
	}
	return len(results), nil
}

func (c *Client) resultsPage(ctx context.Context, sid string, offset, count int) ([]domain.Record, error) {
	body, err := c.get(ctx, c.resultsURL(sid, offset, count))
	if err != nil {
		return nil, err
	}
	return parseResults(body)
}

func (c *Client) resultsURL(sid string, offset, count int) string {
	q := url.Values{}
	q.Set("output_mode", "json")
	q.Set("count", strconv.Itoa(count))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return fmt.Sprintf("%s/services/search/jobs/%s/results?%s", c.cfg.BaseURL, url.PathEscape(sid), q.Encode())
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return body, nil
}

func parseResults(body []byte) ([]domain.Record, error) {
	var parsed struct {
		Results []domain.Record `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse results response: %w", err)
	}
	return parsed.Results, nil
}
