// Package catalog provides access to the public book catalog search API.
package catalog

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shelfsyncapp/shelfsync-server/internal/config"
	"github.com/shelfsyncapp/shelfsync-server/internal/errors"
	"github.com/shelfsyncapp/shelfsync-server/internal/ratelimit"
)

const (
	coversBaseURL = "https://covers.openlibrary.org/b/id"
	defaultLimit  = 20
	maxLimit      = 100
)

// Client queries the catalog search API with rate limiting and bounded retry.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.KeyedRateLimiter

	retries   int
	baseDelay time.Duration
	logger    *slog.Logger
}

// NewClient creates a catalog client from configuration.
// Rate limited to 1 request per second with a small burst; the catalog API
// is a shared public service.
func NewClient(cfg config.CatalogConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiter:   ratelimit.New(1, 3),
		retries:   cfg.Retries,
		baseDelay: cfg.RetryBaseDelay,
		logger:    logger,
	}
}

// Search queries the catalog. limit is clamped to [1, 100]; offset pages
// through results. Server errors are retried a bounded number of times with
// exponential backoff and jitter; any non-5xx failure returns immediately.
func (c *Client) Search(ctx context.Context, query string, limit, offset int) (*SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.Validation("search query cannot be empty")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	searchURL := c.baseURL + "/search.json?" + params.Encode()

	body, err := c.doWithRetry(ctx, searchURL, "search")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp searchResponse
	if err := json.UnmarshalRead(body, &resp); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	result := &SearchResult{
		TotalCount: resp.NumFound,
		Records:    make([]Record, 0, len(resp.Docs)),
	}
	for i := range resp.Docs {
		d := &resp.Docs[i]
		rec := Record{
			ID:               strings.TrimPrefix(d.Key, "/works/"),
			Title:            d.Title,
			Authors:          d.AuthorName,
			FirstPublishYear: d.FirstPublishYear,
			CoverID:          d.CoverI,
		}
		if d.CoverI != 0 {
			rec.CoverURL = CoverURL(d.CoverI, CoverMedium)
		}
		result.Records = append(result.Records, rec)
	}

	c.logger.Debug("catalog search",
		"query", query,
		"total", result.TotalCount,
		"returned", len(result.Records),
	)
	return result, nil
}

// Subject fetches the curated list of works filed under a subject slug.
// Same rate-limit and retry policy as Search, on a separate limiter key so
// list browsing never starves interactive search.
func (c *Client) Subject(ctx context.Context, slug string, limit int) (*SubjectList, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, errors.Validation("subject slug cannot be empty")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	subjectURL := c.baseURL + "/subjects/" + url.PathEscape(slug) + ".json?" + params.Encode()

	body, err := c.doWithRetry(ctx, subjectURL, "subjects")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp subjectResponse
	if err := json.UnmarshalRead(body, &resp); err != nil {
		return nil, fmt.Errorf("parse subject response: %w", err)
	}

	list := &SubjectList{
		Name:       resp.Name,
		TotalCount: resp.WorkCount,
		Records:    make([]Record, 0, len(resp.Works)),
	}
	for i := range resp.Works {
		w := &resp.Works[i]
		rec := Record{
			ID:               strings.TrimPrefix(w.Key, "/works/"),
			Title:            w.Title,
			FirstPublishYear: w.FirstPublishYear,
			CoverID:          w.CoverID,
		}
		for _, a := range w.Authors {
			rec.Authors = append(rec.Authors, a.Name)
		}
		if w.CoverID != 0 {
			rec.CoverURL = CoverURL(w.CoverID, CoverMedium)
		}
		list.Records = append(list.Records, rec)
	}

	c.logger.Debug("catalog subject list",
		"subject", slug,
		"total", list.TotalCount,
		"returned", len(list.Records),
	)
	return list, nil
}

// CoverURL builds the cover image URL for a catalog cover ID.
func CoverURL(coverID int64, size CoverSize) string {
	return fmt.Sprintf("%s/%d-%s.jpg", coversBaseURL, coverID, size)
}

// doWithRetry performs a rate-limited GET, retrying 5xx responses up to the
// configured retry count. Each retry waits base*2^attempt with ±25% jitter.
// limitKey selects the endpoint class bucket in the keyed limiter.
func (c *Client) doWithRetry(ctx context.Context, fullURL, limitKey string) (io.ReadCloser, error) {
	var lastStatus int

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := jitter(c.baseDelay << (attempt - 1))
			c.logger.Debug("retrying catalog request",
				"attempt", attempt,
				"delay", delay,
				"last_status", lastStatus,
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx, limitKey); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("catalog request: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return resp.Body, nil
		}

		resp.Body.Close()
		if resp.StatusCode < 500 {
			// Client errors and redirects are never retried.
			return nil, statusError(resp.StatusCode)
		}
		lastStatus = resp.StatusCode
	}

	return nil, errors.Unavailable(fmt.Sprintf("catalog unavailable after %d attempts (status %d)", c.retries+1, lastStatus))
}

// jitter spreads a delay by ±25% so concurrent clients don't retry in step.
func jitter(d time.Duration) time.Duration {
	spread := float64(d) * 0.25
	return d + time.Duration((rand.Float64()*2-1)*spread)
}

func statusError(status int) error {
	msg := fmt.Sprintf("catalog search failed: status %d", status)
	switch status {
	case http.StatusNotFound:
		return errors.NotFound(msg)
	case http.StatusTooManyRequests:
		return errors.Unavailable(msg)
	default:
		return errors.Internal(msg)
	}
}
