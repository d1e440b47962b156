package knack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/4sighteducation/vespa-activities-api/internal/observability"
)

// ErrAuth indicates the platform rejected the application credentials.
// Auth failures are reported, never retried.
var ErrAuth = errors.New("knack: credentials rejected")

// ErrNotFound indicates a record lookup by ID matched nothing.
var ErrNotFound = errors.New("knack: record not found")

// Record is a raw Knack record. Every field is exposed twice: a rendered
// display value under the field key and a structured variant under
// "<key>_raw". Consumers go through the recon package to read fields.
type Record map[string]any

// ID returns the record identifier assigned by the platform.
func (r Record) ID() string {
	if id, ok := r["id"].(string); ok {
		return id
	}

	return ""
}

// Rule is a single filter predicate in the platform's query format.
type Rule struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// RuleGroup combines rules with an or/and match.
type RuleGroup struct {
	Match string `json:"match"`
	Rules []Rule `json:"rules"`
}

// Query describes a record listing request.
type Query struct {
	Filters   []any
	Page      int
	RowsPer   int
	SortField string
	SortOrder string
}

// Page is one page of a record listing response.
type Page struct {
	Records      []Record `json:"records"`
	TotalPages   int      `json:"total_pages"`
	CurrentPage  int      `json:"current_page"`
	TotalRecords int      `json:"total_records"`
}

// Config carries the client credentials and limits.
type Config struct {
	AppID    string
	APIKey   string
	BaseURL  string
	PageSize int
	Timeout  time.Duration
}

// Client is a thin typed client for the Knack REST API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger zerolog.Logger
}

// NewClient builds a Knack API client.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.AppID == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("knack app id and api key are required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.knack.com/v1"
	}

	if cfg.PageSize <= 0 || cfg.PageSize > 1000 {
		cfg.PageSize = 1000
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "knack_client").Logger(),
	}, nil
}

// PageSize reports the configured rows-per-page limit.
func (c *Client) PageSize() int {
	return c.cfg.PageSize
}

// GetRecords fetches a single page of records for the given object.
func (c *Client) GetRecords(ctx context.Context, object string, q Query) (Page, error) {
	values := url.Values{}
	if len(q.Filters) > 0 {
		encoded, err := json.Marshal(q.Filters)
		if err != nil {
			return Page{}, fmt.Errorf("encode filters: %w", err)
		}
		values.Set("filters", string(encoded))
	}

	page := q.Page
	if page <= 0 {
		page = 1
	}
	values.Set("page", strconv.Itoa(page))

	rows := q.RowsPer
	if rows <= 0 {
		rows = c.cfg.PageSize
	}
	values.Set("rows_per_page", strconv.Itoa(rows))

	if q.SortField != "" {
		values.Set("sort_field", q.SortField)
		order := q.SortOrder
		if order == "" {
			order = "asc"
		}
		values.Set("sort_order", order)
	}

	endpoint := fmt.Sprintf("%s/objects/%s/records?%s", c.cfg.BaseURL, object, values.Encode())

	var result Page
	if err := c.do(ctx, http.MethodGet, endpoint, object, nil, &result); err != nil {
		return Page{}, err
	}

	return result, nil
}

// GetAllRecords walks every page of a listing until a short page signals the
// end. The loop is bounded by page length, not by total_pages, so a
// misreporting backend cannot make it spin forever.
func (c *Client) GetAllRecords(ctx context.Context, object string, q Query) ([]Record, error) {
	rows := q.RowsPer
	if rows <= 0 {
		rows = c.cfg.PageSize
	}
	q.RowsPer = rows

	var all []Record
	for page := 1; ; page++ {
		q.Page = page
		result, err := c.GetRecords(ctx, object, q)
		if err != nil {
			return nil, err
		}

		all = append(all, result.Records...)
		if len(result.Records) < rows {
			break
		}
	}

	return all, nil
}

// GetRecord fetches a single record by ID.
func (c *Client) GetRecord(ctx context.Context, object, id string) (Record, error) {
	endpoint := fmt.Sprintf("%s/objects/%s/records/%s", c.cfg.BaseURL, object, id)

	var record Record
	if err := c.do(ctx, http.MethodGet, endpoint, object, nil, &record); err != nil {
		return nil, err
	}

	return record, nil
}

// CreateRecord creates a record and returns the stored copy.
func (c *Client) CreateRecord(ctx context.Context, object string, fields map[string]any) (Record, error) {
	endpoint := fmt.Sprintf("%s/objects/%s/records", c.cfg.BaseURL, object)

	var record Record
	if err := c.do(ctx, http.MethodPost, endpoint, object, fields, &record); err != nil {
		return nil, err
	}

	return record, nil
}

// UpdateRecord updates the given fields on an existing record.
func (c *Client) UpdateRecord(ctx context.Context, object, id string, fields map[string]any) (Record, error) {
	endpoint := fmt.Sprintf("%s/objects/%s/records/%s", c.cfg.BaseURL, object, id)

	var record Record
	if err := c.do(ctx, http.MethodPut, endpoint, object, fields, &record); err != nil {
		return nil, err
	}

	return record, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, object string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("X-Knack-Application-Id", c.cfg.AppID)
	req.Header.Set("X-Knack-REST-API-Key", c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		observability.CRMRequests().WithLabelValues(object, method, "error").Inc()
		c.logger.Error().Err(err).Str("object", object).Str("method", method).Msg("knack request failed")
		return fmt.Errorf("knack %s %s: %w", method, object, err)
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	observability.CRMRequests().WithLabelValues(object, method, status).Inc()
	observability.CRMLatency().WithLabelValues(object, method).Observe(duration.Seconds())

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.Error().Str("object", object).Int("status", resp.StatusCode).Msg("knack rejected credentials")
		return fmt.Errorf("knack %s %s: %w", method, object, ErrAuth)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("knack %s %s: %w", method, object, ErrNotFound)
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("knack %s %s: unexpected status %d", method, object, resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode knack response: %w", err)
	}

	return nil
}
