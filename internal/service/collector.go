package service

import (
	"context"
	"time"

	"github.com/daeho-lim/shopcollect/internal/domain"
	"github.com/daeho-lim/shopcollect/internal/logger"
	"github.com/daeho-lim/shopcollect/internal/naver"
)

// Searcher fetches and normalizes shopping search results for a keyword.
// Implemented by the Naver client.
type Searcher interface {
	Collect(ctx context.Context, query string, maxResults int, opts *naver.SearchOptions) ([]domain.Product, int, error)
}

// Collector runs one collection pass for a keyword: dedup check, paginated
// fetch, and persistence.
type Collector struct {
	searcher   Searcher
	store      *ProductStore
	timeout    time.Duration
	maxResults int
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	// Timeout bounds one whole collection pass including all pages.
	Timeout time.Duration
	// MaxResults is the default target item count per keyword.
	MaxResults int
}

// CollectRequest describes one collection pass.
type CollectRequest struct {
	Query      string
	MaxResults int    // non-positive uses the configured default
	Sort       string // sim, date, asc, dsc; blank means sim
	Filter     string
	Exclude    string
	// Force collects even if the keyword has a ledger entry.
	Force bool
}

// CollectResult reports the outcome of one collection pass.
type CollectResult struct {
	Query           string     `json:"query"`
	Skipped         bool       `json:"skipped"`
	LastCollectedAt *time.Time `json:"last_collected_at,omitempty"`
	Collected       int        `json:"collected"`
	Total           int        `json:"total"`
	New             int        `json:"new_products"`
	Updated         int        `json:"updated_products"`
}

// NewCollector creates a new Collector.
// Parameters:
//   - searcher: search client used to fetch results.
//   - store: persistence gateway.
//   - cfg: collector configuration; nil uses defaults.
// Returns:
//   - *Collector: initialized collector.
func NewCollector(searcher Searcher, store *ProductStore, cfg *CollectorConfig) *Collector {
	timeout := 600 * time.Second
	maxResults := 1000
	if cfg != nil {
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout
		}
		if cfg.MaxResults > 0 {
			maxResults = cfg.MaxResults
		}
	}
	return &Collector{
		searcher:   searcher,
		store:      store,
		timeout:    timeout,
		maxResults: maxResults,
	}
}

// PreviouslyCollected reports whether a keyword already has a ledger entry.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - query: search keyword.
// Returns:
//   - bool: true if the keyword was collected before.
//   - error: non-nil if the lookup fails.
func (c *Collector) PreviouslyCollected(ctx context.Context, query string) (bool, error) {
	return c.store.HasCollected(ctx, query)
}

// CollectKeyword runs one collection pass for a keyword.
// Without Force, a keyword that already has a ledger entry is skipped and
// the result reports when it was last collected. The pass is bounded by
// the configured timeout.
// Parameters:
//   - ctx: context for cancellation; the collection timeout is added on top.
//   - req: collection parameters.
// Returns:
//   - *CollectResult: pass outcome, including the skipped case.
//   - error: non-nil if the fetch or persistence fails.
func (c *Collector) CollectKeyword(ctx context.Context, req *CollectRequest) (*CollectResult, error) {
	if req.Query == "" {
		return nil, naver.ErrEmptyQuery
	}

	if !req.Force {
		collected, err := c.store.HasCollected(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		if collected {
			last, err := c.store.LastCollectedAt(ctx, req.Query)
			if err != nil {
				return nil, err
			}
			logger.FromContext(ctx).WithField(logger.FieldKeyword, req.Query).
				Info("Keyword already collected, skipping")
			return &CollectResult{
				Query:           req.Query,
				Skipped:         true,
				LastCollectedAt: last,
			}, nil
		}
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = c.maxResults
	}
	sort := req.Sort
	if sort == "" {
		sort = "sim"
	}

	collectCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	products, total, err := c.searcher.Collect(collectCtx, req.Query, maxResults, &naver.SearchOptions{
		Sort:    sort,
		Filter:  req.Filter,
		Exclude: req.Exclude,
	})
	if err != nil {
		return nil, err
	}

	result, err := c.store.SaveCollected(ctx, req.Query, sort, total, products)
	if err != nil {
		return nil, err
	}

	logger.With(logger.Fields{
		logger.FieldKeyword:    req.Query,
		logger.FieldCount:      len(products),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info(ctx, "Collection pass finished")

	return &CollectResult{
		Query:     req.Query,
		Collected: len(products),
		Total:     total,
		New:       result.New,
		Updated:   result.Updated,
	}, nil
}
