package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/streamgate/internal/domain"
)

// ErrUnexpectedStatus is returned when the endpoint answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// Row is one decoded record. Numbers are kept as json.Number.
type Row map[string]any

// Client reads rows from a PostgREST-compatible endpoint (`/rest/v1/{table}`).
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient builds a client for baseURL. The API key is sent both as the `apikey`
// header and as a bearer token.
func NewClient(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  apiKey,
		http:    newHTTPClient(timeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// Fetch returns up to limit rows of table ordered oldest-first by its timestamp column.
func (c *Client) Fetch(ctx context.Context, table domain.SourceTable, limit, offset int) ([]Row, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	table = table.WithDefaults()

	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", table.TimestampColumn+".asc")
	q.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return c.get(ctx, table.Name, q)
}

// FetchByIDs returns the rows of table whose id column is one of ids.
func (c *Client) FetchByIDs(ctx context.Context, table domain.SourceTable, ids []string) ([]Row, error) {
	if len(ids) == 0 {
		return []Row{}, nil
	}
	table = table.WithDefaults()

	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = quoteFilterValue(id)
	}
	q := url.Values{}
	q.Set("select", "*")
	q.Set(table.IDColumn, "in.("+strings.Join(quoted, ",")+")")
	return c.get(ctx, table.Name, q)
}

func (c *Client) get(ctx context.Context, table string, q url.Values) ([]Row, error) {
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("table name is required")
	}
	endpoint := c.baseURL + "/rest/v1/" + url.PathEscape(table) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", table, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", table, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d: %s", ErrUnexpectedStatus, table, resp.StatusCode, snippet(body))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var rows []Row
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode %s rows: %w", table, err)
	}
	if rows == nil {
		rows = []Row{}
	}
	return rows, nil
}

// quoteFilterValue wraps a value in double quotes so commas and parentheses
// survive inside an `in.(...)` filter.
func quoteFilterValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}

func snippet(body []byte) string {
	const maxLen = 256
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}
