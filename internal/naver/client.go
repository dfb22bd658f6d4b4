package naver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/daeho-lim/shopcollect/internal/domain"
	"github.com/daeho-lim/shopcollect/internal/logger"
	"github.com/go-resty/resty/v2"
)

const (
	// maxDisplay is the largest page size the search API accepts.
	maxDisplay = 100
	// maxStart is the largest page offset the search API accepts.
	maxStart = 1000
)

// ErrEmptyQuery is returned when a search is attempted with a blank keyword.
var ErrEmptyQuery = errors.New("search query must not be empty")

// Client calls the Naver Shopping search API.
type Client struct {
	http     *resty.Client
	apiURL   string
	pageSize int
}

// Config holds configuration for the search client.
type Config struct {
	ClientID       string
	ClientSecret   string
	APIURL         string
	RequestTimeout time.Duration
	RetryCount     int
	PageSize       int
}

// SearchOptions holds optional search parameters.
type SearchOptions struct {
	Sort    string // sim, date, asc, dsc
	Filter  string // e.g. naverpay
	Exclude string // colon-separated, e.g. used:rental:cbshop
}

// SearchPage is one page of raw search results with paging metadata.
type SearchPage struct {
	Total   int          `json:"total"`
	Start   int          `json:"start"`
	Display int          `json:"display"`
	Items   []SearchItem `json:"items"`
}

// SearchItem is one raw item as returned by the API. Numeric fields
// arrive as strings and are parsed during normalization.
type SearchItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Image       string `json:"image"`
	LPrice      string `json:"lprice"`
	HPrice      string `json:"hprice"`
	MallName    string `json:"mallName"`
	ProductID   string `json:"productId"`
	ProductType string `json:"productType"`
	Brand       string `json:"brand"`
	Maker       string `json:"maker"`
	Category1   string `json:"category1"`
	Category2   string `json:"category2"`
	Category3   string `json:"category3"`
	Category4   string `json:"category4"`
}

// apiError is the error body the API returns for rejected requests.
type apiError struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// NewClient creates a new search client.
// Parameters:
//   - cfg: client configuration including credentials and retry settings.
// Returns:
//   - *Client: initialized client.
func NewClient(cfg *Config) *Client {
	client := resty.New()
	client.SetHeader("X-Naver-Client-Id", cfg.ClientID)
	client.SetHeader("X-Naver-Client-Secret", cfg.ClientSecret)
	// Set timeout to prevent hanging requests
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)

	retryCount := cfg.RetryCount
	if retryCount == 0 {
		retryCount = 3
	}
	client.SetRetryCount(retryCount)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(10 * time.Second)
	// Retry only transient failures. Client errors other than 429 are final.
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
	})

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "https://openapi.naver.com/v1/search/shop.json"
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > maxDisplay {
		pageSize = maxDisplay
	}

	return &Client{
		http:     client,
		apiURL:   apiURL,
		pageSize: pageSize,
	}
}

// Search fetches a single page of shopping search results.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - query: search keyword; must not be blank.
//   - display: items per page, clamped to 1..100.
//   - start: 1-based offset of the first item, clamped to 1..1000.
//   - opts: optional sort and filter parameters; nil uses API defaults.
// Returns:
//   - *SearchPage: decoded page of results.
//   - error: non-nil if the request fails or the API rejects it.
func (c *Client) Search(ctx context.Context, query string, display, start int, opts *SearchOptions) (*SearchPage, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if display < 1 {
		display = 1
	}
	if display > maxDisplay {
		display = maxDisplay
	}
	if start < 1 {
		start = 1
	}
	if start > maxStart {
		start = maxStart
	}

	params := map[string]string{
		"query":   query,
		"display": strconv.Itoa(display),
		"start":   strconv.Itoa(start),
	}
	if opts != nil {
		if opts.Sort != "" {
			params["sort"] = opts.Sort
		}
		if opts.Filter != "" {
			params["filter"] = opts.Filter
		}
		if opts.Exclude != "" {
			params["exclude"] = opts.Exclude
		}
	}

	var page SearchPage
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&page).
		SetError(&apiErr).
		Get(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("naver search request failed: %w", err)
	}
	if resp.IsError() {
		if apiErr.ErrorCode != "" {
			return nil, fmt.Errorf("naver search rejected: %s (%s, HTTP %d)",
				apiErr.ErrorMessage, apiErr.ErrorCode, resp.StatusCode())
		}
		return nil, fmt.Errorf("naver search rejected: HTTP %d", resp.StatusCode())
	}

	return &page, nil
}

// Collect pages through search results for a keyword and normalizes them.
// Items that fail normalization are logged and skipped without aborting
// the pass.
// Parameters:
//   - ctx: context for cancellation and deadlines; bounds the whole pass.
//   - query: search keyword; must not be blank.
//   - maxResults: upper bound on collected items.
//   - opts: optional sort and filter parameters; nil uses API defaults.
// Returns:
//   - []domain.Product: normalized products in rank order.
//   - int: total result count reported by the API.
//   - error: non-nil if a page request fails.
func (c *Client) Collect(ctx context.Context, query string, maxResults int, opts *SearchOptions) ([]domain.Product, int, error) {
	if query == "" {
		return nil, 0, ErrEmptyQuery
	}
	if maxResults < 1 {
		maxResults = 1
	}

	products := make([]domain.Product, 0, maxResults)
	total := 0
	start := 1

	for len(products) < maxResults && start <= maxStart {
		display := c.pageSize
		if remaining := maxResults - len(products); remaining < display {
			display = remaining
		}

		page, err := c.Search(ctx, query, display, start, opts)
		if err != nil {
			return nil, 0, err
		}
		total = page.Total

		if len(page.Items) == 0 {
			break
		}

		for i := range page.Items {
			product, err := normalizeItem(&page.Items[i], query, start+i)
			if err != nil {
				logger.FromContext(ctx).WithError(err).WithFields(logger.Fields{
					logger.FieldKeyword: query,
					"rank":              start + i,
				}).Warn("Skipping item that failed normalization")
				continue
			}
			products = append(products, *product)
		}

		// A short page means the API has no further results
		if len(page.Items) < display {
			break
		}
		start += display
	}

	if len(products) > maxResults {
		products = products[:maxResults]
	}
	return products, total, nil
}
