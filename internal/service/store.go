package service

import (
	"context"
	"errors"
	"time"

	"github.com/daeho-lim/shopcollect/internal/domain"
	"github.com/daeho-lim/shopcollect/internal/logger"
	"github.com/daeho-lim/shopcollect/internal/repository"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// insertBatchSize is the number of rows per bulk INSERT statement.
const insertBatchSize = 100

// ProductStore is the persistence gateway for collected products and the
// collection ledger.
type ProductStore struct {
	products    *repository.ProductRepository
	history     *repository.SearchHistoryRepository
	updateChunk int
}

// StoreConfig holds configuration for the product store.
type StoreConfig struct {
	UpdateChunkSize int
}

// UpsertResult reports the outcome of persisting one collection pass.
type UpsertResult struct {
	New     int
	Updated int
}

// NewProductStore creates a new ProductStore.
// Parameters:
//   - products: product repository.
//   - history: search history repository.
//   - cfg: store configuration; nil uses defaults.
// Returns:
//   - *ProductStore: initialized store.
func NewProductStore(
	products *repository.ProductRepository,
	history *repository.SearchHistoryRepository,
	cfg *StoreConfig,
) *ProductStore {
	updateChunk := 50
	if cfg != nil && cfg.UpdateChunkSize > 0 {
		updateChunk = cfg.UpdateChunkSize
	}
	return &ProductStore{
		products:    products,
		history:     history,
		updateChunk: updateChunk,
	}
}

// SaveCollected persists one collection pass: new products are inserted,
// already-known products get only their price fields refreshed so the
// first-observed categorization and tags are preserved, and one ledger
// entry is written for the keyword.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - keyword: search keyword the products were collected under.
//   - sort: sort order used for the collection pass.
//   - total: total result count reported by the search API.
//   - items: normalized products to persist.
// Returns:
//   - *UpsertResult: inserted and updated record counts.
//   - error: non-nil if persistence fails.
func (s *ProductStore) SaveCollected(ctx context.Context, keyword, sort string, total int, items []domain.Product) (*UpsertResult, error) {
	start := time.Now()

	ids := make([]string, 0, len(items))
	for i := range items {
		ids = append(ids, items[i].ProductID)
	}

	existing, err := s.products.FindByProductIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	existingByID := make(map[string]*domain.Product, len(existing))
	for i := range existing {
		existingByID[existing[i].ProductID] = &existing[i]
	}

	var inserts []domain.Product
	var updates []domain.Product
	seen := make(map[string]struct{}, len(items))
	for i := range items {
		item := &items[i]
		// The same product can appear at multiple ranks in one pass
		if _, dup := seen[item.ProductID]; dup {
			continue
		}
		seen[item.ProductID] = struct{}{}

		if prev, ok := existingByID[item.ProductID]; ok {
			updated := *prev
			updated.LPrice = item.LPrice
			updated.HPrice = item.HPrice
			updated.PriceDiscountRate = item.PriceDiscountRate
			updated.PriceRange = item.PriceRange
			updates = append(updates, updated)
		} else {
			inserts = append(inserts, *item)
		}
	}

	if err := s.products.CreateInBatches(ctx, inserts, insertBatchSize); err != nil {
		return nil, err
	}

	if err := s.applyUpdates(ctx, updates); err != nil {
		return nil, err
	}

	entry := &domain.SearchHistory{
		SearchKeyword: keyword,
		TotalCount:    total,
		Display:       len(items),
		Start:         1,
		Sort:          sort,
		CollectedAt:   time.Now(),
	}
	if err := s.history.Create(ctx, entry); err != nil {
		return nil, err
	}

	logger.With(logger.Fields{
		logger.FieldKeyword:    keyword,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		"new":                  len(inserts),
		"updated":              len(updates),
	}).Info(ctx, "Persisted collection pass")

	return &UpsertResult{New: len(inserts), Updated: len(updates)}, nil
}

// applyUpdates writes update records in fixed-size chunks, chunks dispatched
// concurrently.
func (s *ProductStore) applyUpdates(ctx context.Context, updates []domain.Product) error {
	if len(updates) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for begin := 0; begin < len(updates); begin += s.updateChunk {
		end := begin + s.updateChunk
		if end > len(updates) {
			end = len(updates)
		}
		chunk := updates[begin:end]
		g.Go(func() error {
			for i := range chunk {
				if err := s.products.Update(gctx, &chunk[i]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// HasCollected reports whether a keyword has ever been collected.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - keyword: search keyword.
// Returns:
//   - bool: true if a ledger entry exists.
//   - error: non-nil if the lookup fails.
func (s *ProductStore) HasCollected(ctx context.Context, keyword string) (bool, error) {
	return s.history.HasCollected(ctx, keyword)
}

// LastCollectedAt returns when a keyword was most recently collected.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - keyword: search keyword.
// Returns:
//   - *time.Time: collection time, or nil if never collected.
//   - error: non-nil if the lookup fails.
func (s *ProductStore) LastCollectedAt(ctx context.Context, keyword string) (*time.Time, error) {
	entry, err := s.history.Latest(ctx, keyword)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry.CollectedAt, nil
}

// GetProduct retrieves a stored product by its product ID.
func (s *ProductStore) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	return s.products.GetByID(ctx, productID)
}

// ListProducts retrieves stored products with pagination.
func (s *ProductStore) ListProducts(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	return s.products.List(ctx, limit, offset)
}

// SearchProducts retrieves stored products matching a filter with a total count.
func (s *ProductStore) SearchProducts(ctx context.Context, filter *repository.ProductFilter) ([]domain.Product, int64, error) {
	return s.products.Search(ctx, filter)
}

// DeleteProduct removes a stored product by its product ID.
func (s *ProductStore) DeleteProduct(ctx context.Context, productID string) error {
	return s.products.Delete(ctx, productID)
}

// StatsSummary holds store-wide aggregates for the stats endpoint.
type StatsSummary struct {
	TotalProducts int64                   `json:"total_products"`
	TopMalls      []repository.FacetCount `json:"top_malls"`
	TopCategories []repository.FacetCount `json:"top_categories"`
}

// Stats aggregates store-wide product statistics.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - topN: number of buckets per aggregation.
// Returns:
//   - *StatsSummary: total count plus top malls and categories.
//   - error: non-nil if any query fails.
func (s *ProductStore) Stats(ctx context.Context, topN int) (*StatsSummary, error) {
	total, err := s.products.Count(ctx)
	if err != nil {
		return nil, err
	}
	malls, err := s.products.TopMalls(ctx, topN)
	if err != nil {
		return nil, err
	}
	categories, err := s.products.TopCategories(ctx, topN)
	if err != nil {
		return nil, err
	}
	return &StatsSummary{
		TotalProducts: total,
		TopMalls:      malls,
		TopCategories: categories,
	}, nil
}

// RecentHistory retrieves the most recent ledger entries across all keywords.
func (s *ProductStore) RecentHistory(ctx context.Context, limit int) ([]domain.SearchHistory, error) {
	return s.history.Recent(ctx, limit)
}

// HistoryByKeyword retrieves ledger entries for one keyword.
func (s *ProductStore) HistoryByKeyword(ctx context.Context, keyword string, limit int) ([]domain.SearchHistory, error) {
	return s.history.ByKeyword(ctx, keyword, limit)
}
