package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// PagedClient fetches hosts with skip/limit pagination (Qualys, CrowdStrike).
//
// The stream advances skip by the page limit after every full page and
// terminates on: skip exceeding MaxSkip, an empty page, a constraint error,
// a transport error, or a drained shrink-retry.
type PagedClient struct {
	http     vendorHTTP
	maxLimit int
	maxSkip  int
	backoff  time.Duration

	// PageLimit and StartSkip override the defaults (MaxLimit, 0).
	PageLimit int
	StartSkip int
}

// NewPagedClient builds a skip/limit client for one vendor endpoint.
func NewPagedClient(name, baseURL, endpoint, token string, maxLimit, maxSkip int, backoff time.Duration) *PagedClient {
	return &PagedClient{
		http:     newVendorHTTP(name, baseURL, endpoint, token),
		maxLimit: maxLimit,
		maxSkip:  maxSkip,
		backoff:  backoff,
	}
}

// Name returns the vendor tag this client fetches for.
func (c *PagedClient) Name() string { return c.http.name }

// FetchHosts walks all pages and passes each raw host to fn. Pagination is
// strictly sequential; ctx cancellation is honored between pages.
func (c *PagedClient) FetchHosts(ctx context.Context, fn HostFunc) error {
	limit := c.PageLimit
	if limit == 0 {
		limit = c.maxLimit
	}
	if limit < 1 || limit > c.maxLimit {
		return &ConstraintError{Message: fmt.Sprintf(
			"requested page limit %d out of range [1, %d]", limit, c.maxLimit)}
	}

	skip := c.StartSkip
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if skip > c.maxSkip {
			slog.Info("reached maximum allowed skip, stopping",
				"source", c.http.name, "skip", skip, "max_skip", c.maxSkip)
			return nil
		}

		slog.Debug("fetching page",
			"source", c.http.name, "skip", skip, "limit", limit)
		page, err := c.fetchPage(ctx, skip, limit)

		switch {
		case errors.Is(err, ErrEndOfData):
			// Remaining data is smaller than one page; drain it with
			// progressively smaller limits, then terminate.
			return c.shrinkRetry(ctx, skip, limit, fn)
		case IsConstraint(err):
			slog.Warn("stopping fetch due to api constraint",
				"source", c.http.name, "error", err)
			return err
		case err != nil:
			return fmt.Errorf("%s page skip=%d limit=%d: %w", c.http.name, skip, limit, err)
		}

		if len(page) == 0 {
			return nil
		}

		for _, host := range page {
			if err := fn(host); err != nil {
				return err
			}
		}

		skip += limit
		time.Sleep(c.backoff)
	}
}

// shrinkRetry retries the same skip with limits from limit-1 down to 1 and
// emits the first non-empty page. Failed or empty retries keep shrinking.
// The stream always terminates afterwards.
func (c *PagedClient) shrinkRetry(ctx context.Context, skip, limit int, fn HostFunc) error {
	slog.Info("end of data signaled, retrying with smaller limits",
		"source", c.http.name, "skip", skip, "limit", limit)

	for retryLimit := limit - 1; retryLimit >= 1; retryLimit-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		slog.Debug("shrink retry",
			"source", c.http.name, "skip", skip, "limit", retryLimit)

		page, err := c.fetchPage(ctx, skip, retryLimit)
		if err != nil {
			slog.Debug("shrink retry failed",
				"source", c.http.name, "skip", skip, "limit", retryLimit, "error", err)
			continue
		}
		if len(page) == 0 {
			continue
		}

		for _, host := range page {
			if err := fn(host); err != nil {
				return err
			}
		}
		return nil
	}

	slog.Info("no smaller limit yielded data, stopping",
		"source", c.http.name, "skip", skip)
	return nil
}

// fetchPage requests a single page. Returns ErrEndOfData when the gateway
// signals that skip/limit points past the final host, a ConstraintError for
// structured validation failures, and the transport error otherwise.
func (c *PagedClient) fetchPage(ctx context.Context, skip, limit int) ([]gjson.Result, error) {
	if limit < 1 || limit > c.maxLimit {
		return nil, &ConstraintError{Message: fmt.Sprintf(
			"invalid limit %d: must be between 1 and %d", limit, c.maxLimit)}
	}

	params := url.Values{}
	params.Set("skip", strconv.Itoa(skip))
	params.Set("limit", strconv.Itoa(limit))

	status, body, err := c.http.post(ctx, params)
	if err != nil {
		return nil, err
	}

	if status >= 400 {
		if strings.Contains(string(body), endOfDataMessage) {
			return nil, ErrEndOfData
		}
		return nil, fmt.Errorf("http %d: %s", status, strings.TrimSpace(string(body)))
	}

	parsed := gjson.ParseBytes(body)
	if parsed.IsObject() {
		if err := checkErrorBody(parsed); err != nil {
			return nil, err
		}
	}
	if !parsed.IsArray() {
		slog.Warn("unexpected response structure, treating as empty page",
			"source", c.http.name, "skip", skip, "limit", limit)
		return nil, nil
	}

	return parsed.Array(), nil
}
