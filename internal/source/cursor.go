package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// CursorClient fetches hosts with opaque-cursor pagination (Tenable).
// Each request carries the cursor returned by the previous response; the
// stream ends on an empty hosts array or an "Invalid cursor" reply.
type CursorClient struct {
	http   vendorHTTP
	cursor string
}

// NewCursorClient builds a cursor-paginated client for one vendor endpoint.
func NewCursorClient(name, baseURL, endpoint, token string) *CursorClient {
	return &CursorClient{http: newVendorHTTP(name, baseURL, endpoint, token)}
}

// Name returns the vendor tag this client fetches for.
func (c *CursorClient) Name() string { return c.http.name }

// FetchHosts walks the cursor chain and passes each raw host to fn.
func (c *CursorClient) FetchHosts(ctx context.Context, fn HostFunc) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		slog.Debug("fetching page", "source", c.http.name, "cursor", c.cursor)
		hosts, next, err := c.fetchPage(ctx)
		if err != nil {
			return err
		}
		if len(hosts) == 0 {
			return nil
		}

		for _, host := range hosts {
			if err := fn(host); err != nil {
				return err
			}
		}
		c.cursor = next
	}
}

// fetchPage requests one page at the current cursor. A rejected cursor is a
// clean end of stream, not an error.
func (c *CursorClient) fetchPage(ctx context.Context) ([]gjson.Result, string, error) {
	params := url.Values{}
	params.Set("cursor", c.cursor)

	status, body, err := c.http.post(ctx, params)
	if err != nil {
		return nil, "", err
	}

	if status >= 400 {
		if strings.TrimSpace(string(body)) == "Invalid cursor" {
			slog.Info("cursor rejected, stopping",
				"source", c.http.name, "cursor", c.cursor)
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("http %d: %s", status, strings.TrimSpace(string(body)))
	}

	parsed := gjson.ParseBytes(body)
	hosts := parsed.Get("hosts")
	if !hosts.IsArray() {
		slog.Warn("unexpected response structure, treating as empty page",
			"source", c.http.name)
		return nil, "", nil
	}

	return hosts.Array(), parsed.Get("cursor").String(), nil
}
