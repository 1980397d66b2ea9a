// Package cmr queries NASA's Common Metadata Repository for the collections
// associated with a campaign, platform or instrument and flattens them into
// data product records.
package cmr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"casei/internal/logger"
	"casei/internal/metrics"
	"casei/internal/registry"
)

// DefaultBaseURL is the public CMR search endpoint.
const DefaultBaseURL = "https://cmr.earthdata.nasa.gov/search"

// DefaultPageSize is the number of collections requested per page.
const DefaultPageSize = 100

// ConceptIDParameter queries collections by their concept ids.
const ConceptIDParameter = "echo_collection_id[]"

// tableParameters maps the content types CMR can be searched by to the CMR
// query parameter.
var tableParameters = map[string]string{
	registry.Campaign:   "project",
	registry.Instrument: "instrument",
	registry.Platform:   "platform",
}

// ParameterFor returns the CMR query parameter for a content type.
func ParameterFor(contentType string) (string, error) {
	p, ok := tableParameters[strings.ToLower(contentType)]
	if !ok {
		return "", fmt.Errorf("content type must be campaign, instrument, or platform, got %q", contentType)
	}
	return p, nil
}

// ContentTypeFor returns the content type searched by a CMR query parameter.
func ContentTypeFor(parameter string) (string, error) {
	for ct, p := range tableParameters {
		if p == strings.ToLower(parameter) {
			return ct, nil
		}
	}
	return "", fmt.Errorf("cmr parameter must be project, instrument, or platform, got %q", parameter)
}

// Collection is one item of a collections.umm_json response.
type Collection struct {
	Meta struct {
		ConceptID string `json:"concept-id"`
	} `json:"meta"`
	UMM UMM `json:"umm"`
}

// UMM holds the parts of a UMM-C record that CASEI keeps.
type UMM struct {
	ShortName           string          `json:"ShortName"`
	EntryTitle          string          `json:"EntryTitle"`
	Abstract            string          `json:"Abstract"`
	DOI                 DOI             `json:"DOI"`
	Projects            json.RawMessage `json:"Projects"`
	TemporalExtents     json.RawMessage `json:"TemporalExtents"`
	Platforms           json.RawMessage `json:"Platforms"`
	ScienceKeywords     json.RawMessage `json:"ScienceKeywords"`
	CollectionCitations []struct {
		OtherCitationDetails string `json:"OtherCitationDetails"`
	} `json:"CollectionCitations"`
	ArchiveAndDistributionInformation struct {
		FileDistributionInformation []struct {
			Format string `json:"Format"`
		} `json:"FileDistributionInformation"`
	} `json:"ArchiveAndDistributionInformation"`
}

// DOI is the UMM-C DOI block.
type DOI struct {
	DOI string `json:"DOI"`
}

// Page is one page of a collections search.
type Page struct {
	Hits  int          `json:"hits"`
	Items []Collection `json:"items"`
}

// Client queries CMR.
type Client struct {
	baseURL    string
	httpClient *http.Client
	pageSize   int
}

// NewClient creates a new CMR client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		pageSize:   DefaultPageSize,
	}
}

// pageCounter tracks paging through a search. Another page is requested
// while the pages fetched so far cannot hold every hit.
type pageCounter struct {
	pageNum  int
	pageSize int
	finished bool
}

func (c *pageCounter) iterate(hits int) {
	if c.pageNum*c.pageSize < hits {
		c.pageNum++
	} else {
		c.finished = true
	}
}

// Query fetches every page of collections matching parameter=values.
func (c *Client) Query(ctx context.Context, parameter string, values []string) ([]Page, error) {
	counter := &pageCounter{pageNum: 1, pageSize: c.pageSize}
	var pages []Page
	for !counter.finished {
		params := url.Values{}
		for _, v := range values {
			params.Add(parameter, v)
		}
		params.Set("page_size", strconv.Itoa(counter.pageSize))
		params.Set("page_num", strconv.Itoa(counter.pageNum))

		page, err := c.fetch(ctx, params)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *page)
		counter.iterate(page.Hits)
	}
	return pages, nil
}

// ConceptIDs returns the distinct concept ids of the collections in pages.
func ConceptIDs(pages []Page) []string {
	seen := map[string]bool{}
	var ids []string
	for _, p := range pages {
		for _, item := range p.Items {
			id := item.Meta.ConceptID
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// AggregateConceptIDs queries each alias separately and returns the union of
// the concept ids found.
func (c *Client) AggregateConceptIDs(ctx context.Context, parameter string, aliases []string) ([]string, error) {
	var pages []Page
	for _, alias := range aliases {
		p, err := c.Query(ctx, parameter, []string{alias})
		if err != nil {
			return nil, fmt.Errorf("querying %s=%s: %w", parameter, alias, err)
		}
		pages = append(pages, p...)
	}
	return ConceptIDs(pages), nil
}

// BulkQuery finds the collections of every alias, then fetches their full
// metadata in one concept id query.
func (c *Client) BulkQuery(ctx context.Context, parameter string, aliases []string) ([]Collection, error) {
	ids, err := c.AggregateConceptIDs(ctx, parameter, aliases)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Collection{}, nil
	}
	pages, err := c.Query(ctx, ConceptIDParameter, ids)
	if err != nil {
		return nil, fmt.Errorf("querying concept ids: %w", err)
	}
	collections := []Collection{}
	for _, p := range pages {
		collections = append(collections, p.Items...)
	}
	return collections, nil
}

// DataProducts queries CMR for the aliases of a content type and flattens
// the results.
func (c *Client) DataProducts(ctx context.Context, contentType string, aliases []string) ([]DataProduct, error) {
	parameter, err := ParameterFor(contentType)
	if err != nil {
		return nil, err
	}
	collections, err := c.BulkQuery(ctx, parameter, aliases)
	if err != nil {
		return nil, err
	}
	return ProcessCollections(collections), nil
}

func (c *Client) fetch(ctx context.Context, params url.Values) (*Page, error) {
	endpoint := c.baseURL + "/collections.umm_json?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ExternalRequestDuration.WithLabelValues("cmr", "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("fetching collections: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.ExternalRequestDuration.WithLabelValues("cmr", strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.Named("cmr").Errorw("CMR request failed", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("fetching collections: unexpected status %d", resp.StatusCode)
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decoding collections response: %w", err)
	}
	return &page, nil
}
