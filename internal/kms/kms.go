// Package kms provides an HTTP client for the GCMD Keyword Management System.
package kms

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"casei/internal/logger"
	"casei/internal/metrics"
)

// DefaultBaseURL is the public KMS endpoint.
const DefaultBaseURL = "https://gcmd.earthdata.nasa.gov/kms"

// Keyword schemes that CASEI tracks.
const (
	SchemeInstruments     = "instruments"
	SchemeProjects        = "projects"
	SchemePlatforms       = "platforms"
	SchemeScienceKeywords = "sciencekeywords"
)

// Schemes returns every scheme that can be synced, in sync order.
func Schemes() []string {
	return []string{SchemeInstruments, SchemeProjects, SchemePlatforms, SchemeScienceKeywords}
}

// Keyword is one row of a KMS CSV keyword list, keyed by column header.
type Keyword map[string]string

// Client talks to KMS.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new KMS client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// FetchKeywordList downloads the CSV keyword list of a scheme. KMS prefixes
// the CSV with a line of metadata, which is dropped before the header row.
func (c *Client) FetchKeywordList(ctx context.Context, scheme string) ([]Keyword, error) {
	body, err := c.get(ctx, "/concepts/concept_scheme/"+url.PathEscape(scheme), url.Values{"format": {"csv"}})
	if err != nil {
		return nil, fmt.Errorf("fetching %s keywords: %w", scheme, err)
	}
	keywords, err := parseKeywordCSV(body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s keywords: %w", scheme, err)
	}
	return keywords, nil
}

// Lookup fetches one page of a JSON endpoint such as "concept_schemes" or
// "concept/<uuid>".
func (c *Client) Lookup(ctx context.Context, endpoint string, page int) (map[string]interface{}, error) {
	if page < 1 {
		page = 1
	}
	params := url.Values{"format": {"json"}, "page_num": {strconv.Itoa(page)}}
	body, err := c.get(ctx, "/"+strings.TrimLeft(endpoint, "/"), params)
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", endpoint, err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return out, nil
}

// ListConcepts returns the concepts of a scheme, optionally narrowed to
// those matching pattern.
func (c *Client) ListConcepts(ctx context.Context, scheme, pattern string, page int) (map[string]interface{}, error) {
	endpoint := "concepts/concept_scheme/" + url.PathEscape(scheme)
	if pattern != "" {
		endpoint += "/pattern/" + url.PathEscape(pattern)
	}
	return c.Lookup(ctx, endpoint, page)
}

// Concept returns a single concept by its UUID.
func (c *Client) Concept(ctx context.Context, uuid string) (map[string]interface{}, error) {
	return c.Lookup(ctx, "concept/"+url.PathEscape(uuid), 1)
}

// Status returns the KMS service status document.
func (c *Client) Status(ctx context.Context) (map[string]interface{}, error) {
	return c.Lookup(ctx, "status", 1)
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ExternalRequestDuration.WithLabelValues("kms", "error").Observe(time.Since(start).Seconds())
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.ExternalRequestDuration.WithLabelValues("kms", strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		logger.Named("kms").Errorw("KMS request failed", "path", path, "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}

func parseKeywordCSV(body []byte) ([]Keyword, error) {
	text := string(body)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	} else {
		return []Keyword{}, nil
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []Keyword{}, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	keywords := []Keyword{}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		kw := make(Keyword, len(header))
		for i, name := range header {
			if i < len(record) {
				kw[name] = record[i]
			} else {
				kw[name] = ""
			}
		}
		keywords = append(keywords, kw)
	}
	return keywords, nil
}
