package repository

import (
	"context"
	"fmt"

	"github.com/daeho-lim/shopcollect/internal/domain"
	"gorm.io/gorm"
)

// ProductRepository handles product data operations.
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new ProductRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ProductRepository: repository instance bound to db.
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// ProductFilter holds optional filters for product searches.
type ProductFilter struct {
	Keyword   string
	ProductID string
	Category1 string
	MallName  string
	MinPrice  *int
	MaxPrice  *int
	Limit     int
	Skip      int
}

// FacetCount represents one group-by bucket in an aggregation result.
type FacetCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// FindByProductIDs retrieves products matching any of the given product IDs.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ids: list of product IDs.
// Returns:
//   - []domain.Product: matching product records.
//   - error: non-nil if the query fails.
func (r *ProductRepository) FindByProductIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}
	var products []domain.Product
	if err := r.db.WithContext(ctx).Where("product_id IN ?", ids).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to get products by IDs: %w", err)
	}
	return products, nil
}

// CreateInBatches bulk-inserts product records.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - products: product records to insert.
//   - batchSize: number of records per INSERT statement.
// Returns:
//   - error: non-nil if the insert fails.
func (r *ProductRepository) CreateInBatches(ctx context.Context, products []domain.Product, batchSize int) error {
	if len(products) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(products, batchSize).Error
}

// Update updates an existing product record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - product: product record with updated fields.
// Returns:
//   - error: non-nil if the update fails.
func (r *ProductRepository) Update(ctx context.Context, product *domain.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// GetByID retrieves a product by its Naver product ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - productID: product ID.
// Returns:
//   - *domain.Product: product record if found.
//   - error: non-nil if lookup fails.
func (r *ProductRepository) GetByID(ctx context.Context, productID string) (*domain.Product, error) {
	var product domain.Product
	if err := r.db.WithContext(ctx).First(&product, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// List retrieves products with pagination, newest updates first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.Product: product records.
//   - error: non-nil if the query fails.
func (r *ProductRepository) List(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	var products []domain.Product
	if err := r.db.WithContext(ctx).
		Limit(limit).
		Offset(offset).
		Order("updated_at DESC").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// Search retrieves products matching the filter with a total count.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - filter: search filters and pagination.
// Returns:
//   - []domain.Product: matching page of product records.
//   - int64: total number of matching records.
//   - error: non-nil if the query fails.
func (r *ProductRepository) Search(ctx context.Context, filter *ProductFilter) ([]domain.Product, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Product{})

	if filter.Keyword != "" {
		like := "%" + filter.Keyword + "%"
		query = query.Where(
			"title LIKE ? OR brand LIKE ? OR maker LIKE ? OR tags LIKE ?",
			like, like, like, like,
		)
	}
	if filter.ProductID != "" {
		query = query.Where("product_id = ?", filter.ProductID)
	}
	if filter.Category1 != "" {
		query = query.Where("category1 = ?", filter.Category1)
	}
	if filter.MallName != "" {
		query = query.Where("mall_name = ?", filter.MallName)
	}
	if filter.MinPrice != nil {
		query = query.Where("l_price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("l_price <= ?", *filter.MaxPrice)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []domain.Product
	if err := query.
		Limit(filter.Limit).
		Offset(filter.Skip).
		Order("updated_at DESC").
		Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// Count counts all stored products.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - int64: number of product records.
//   - error: non-nil if the query fails.
func (r *ProductRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Product{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// TopMalls aggregates product counts per mall, largest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of buckets to return.
// Returns:
//   - []FacetCount: mall name and product count pairs.
//   - error: non-nil if the query fails.
func (r *ProductRepository) TopMalls(ctx context.Context, limit int) ([]FacetCount, error) {
	var facets []FacetCount
	if err := r.db.WithContext(ctx).
		Model(&domain.Product{}).
		Select("mall_name AS name, COUNT(*) AS count").
		Where("mall_name <> ''").
		Group("mall_name").
		Order("count DESC").
		Limit(limit).
		Scan(&facets).Error; err != nil {
		return nil, err
	}
	return facets, nil
}

// TopCategories aggregates product counts per top-level category, largest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of buckets to return.
// Returns:
//   - []FacetCount: category name and product count pairs.
//   - error: non-nil if the query fails.
func (r *ProductRepository) TopCategories(ctx context.Context, limit int) ([]FacetCount, error) {
	var facets []FacetCount
	if err := r.db.WithContext(ctx).
		Model(&domain.Product{}).
		Select("category1 AS name, COUNT(*) AS count").
		Where("category1 <> ''").
		Group("category1").
		Order("count DESC").
		Limit(limit).
		Scan(&facets).Error; err != nil {
		return nil, err
	}
	return facets, nil
}

// Delete removes a product by its product ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - productID: product ID to delete.
// Returns:
//   - error: non-nil if the delete fails.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	return r.db.WithContext(ctx).Delete(&domain.Product{}, "product_id = ?", productID).Error
}
