// Package csvfeed reads the BIC datasets from CSV files published over HTTP,
// such as Google Drive export links or NYC Open Data endpoints.
package csvfeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	ports "bicdash/internal/sheets"
	"bicdash/internal/tabular"
)

var _ ports.Source = (*Client)(nil)

// maxBody caps a single download.
const maxBody = 256 << 20

type Client struct {
	http          *http.Client
	violationsURL string
	complaintsURL string
}

// New returns a feed client. A nil httpClient uses a pooled default.
func New(violationsURL, complaintsURL string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(violationsURL) == "" {
		return nil, errors.New("missing VIOLATIONS_CSV_URL")
	}
	if httpClient == nil {
		httpClient = newHTTPClientWithPooling()
	}
	return &Client{
		http:          httpClient,
		violationsURL: strings.TrimSpace(violationsURL),
		complaintsURL: strings.TrimSpace(complaintsURL),
	}, nil
}

// ListViolations downloads and parses the violations CSV.
func (c *Client) ListViolations(ctx context.Context) (tabular.Violations, error) {
	rows, err := c.fetch(ctx, c.violationsURL)
	if err != nil {
		return tabular.Violations{}, err
	}
	return tabular.ParseViolations(rows)
}

// ListComplaints downloads and parses the complaints CSV. Without a
// configured URL it returns an empty table.
func (c *Client) ListComplaints(ctx context.Context) (tabular.Complaints, error) {
	if c.complaintsURL == "" {
		return tabular.Complaints{}, nil
	}
	rows, err := c.fetch(ctx, c.complaintsURL)
	if err != nil {
		return tabular.Complaints{}, err
	}
	return tabular.ParseComplaints(rows)
}

func (c *Client) fetch(ctx context.Context, url string) ([][]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return tabular.ReadCSV(io.LimitReader(resp.Body, maxBody))
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling
// and bounded timeouts for large CSV downloads.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   2 * time.Minute,
	}
}
