// Package source implements the paginated vendor inventory clients. Each
// client produces a lazy finite sequence of raw host records; pagination is
// strictly sequential within a source.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const requestTimeout = 30 * time.Second

// HostFunc receives one raw host record. Returning an error stops the stream.
type HostFunc func(raw gjson.Result) error

// Fetcher is the contract the pipeline consumes: a lazy, finite, sequential
// visitation of raw vendor records.
type Fetcher interface {
	FetchHosts(ctx context.Context, fn HostFunc) error
}

// vendorHTTP is the shared HTTP core of both pagination strategies. Each
// source client owns its own session.
type vendorHTTP struct {
	client   *http.Client
	baseURL  string
	endpoint string
	token    string
	name     string
}

func newVendorHTTP(name, baseURL, endpoint, token string) vendorHTTP {
	return vendorHTTP{
		client:   &http.Client{Timeout: requestTimeout},
		baseURL:  baseURL,
		endpoint: endpoint,
		token:    token,
		name:     name,
	}
}

// post issues one page request and returns the raw response. Transport
// failures (connect, timeout) are returned as-is.
func (v *vendorHTTP) post(ctx context.Context, params url.Values) (int, []byte, error) {
	reqURL := v.baseURL + v.endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader([]byte("{}")))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("token", v.token)

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch %s: %w", reqURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response from %s: %w", reqURL, err)
	}

	return resp.StatusCode, body, nil
}

// checkErrorBody inspects a JSON object body for the gateway's structured
// error list and converts known entries into typed errors.
func checkErrorBody(body gjson.Result) error {
	errField := body.Get("error")
	if !errField.Exists() {
		return nil
	}

	var constraint error
	errField.ForEach(func(_, entry gjson.Result) bool {
		code := entry.Get("code").String()
		message := entry.Get("message").String()
		if strings.Contains(code, "too_big") && entry.Get("maximum").Exists() {
			constraint = &ConstraintError{Message: fmt.Sprintf(
				"limit too big: maximum is %s", entry.Get("maximum").String())}
			return false
		}
		if strings.Contains(message, "Number must be less than or equal to") {
			constraint = &ConstraintError{Message: message}
			return false
		}
		return true
	})
	if constraint != nil {
		return constraint
	}

	return &ConstraintError{Message: errField.Raw}
}
