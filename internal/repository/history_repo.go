package repository

import (
	"context"

	"github.com/daeho-lim/shopcollect/internal/domain"
	"gorm.io/gorm"
)

// SearchHistoryRepository handles the collection ledger.
type SearchHistoryRepository struct {
	db *gorm.DB
}

// NewSearchHistoryRepository creates a new SearchHistoryRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *SearchHistoryRepository: repository instance bound to db.
func NewSearchHistoryRepository(db *gorm.DB) *SearchHistoryRepository {
	return &SearchHistoryRepository{db: db}
}

// Create inserts a new history entry.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - entry: history entry to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *SearchHistoryRepository) Create(ctx context.Context, entry *domain.SearchHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// HasCollected checks if a keyword has ever been collected.
// Entries never expire, so any match counts regardless of age.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - keyword: search keyword to check.
// Returns:
//   - bool: true if at least one entry exists.
//   - error: non-nil if the lookup fails.
func (r *SearchHistoryRepository) HasCollected(ctx context.Context, keyword string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.SearchHistory{}).
		Where("search_keyword = ?", keyword).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Latest retrieves the most recent history entry for a keyword.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - keyword: search keyword.
// Returns:
//   - *domain.SearchHistory: most recent entry if found.
//   - error: non-nil if lookup fails.
func (r *SearchHistoryRepository) Latest(ctx context.Context, keyword string) (*domain.SearchHistory, error) {
	var entry domain.SearchHistory
	if err := r.db.WithContext(ctx).
		Where("search_keyword = ?", keyword).
		Order("collected_at DESC").
		First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// Recent retrieves the most recent history entries across all keywords.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of entries to return.
// Returns:
//   - []domain.SearchHistory: history entries, newest first.
//   - error: non-nil if the query fails.
func (r *SearchHistoryRepository) Recent(ctx context.Context, limit int) ([]domain.SearchHistory, error) {
	var entries []domain.SearchHistory
	if err := r.db.WithContext(ctx).
		Order("collected_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ByKeyword retrieves history entries for one keyword, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - keyword: search keyword.
//   - limit: maximum number of entries to return.
// Returns:
//   - []domain.SearchHistory: history entries for the keyword.
//   - error: non-nil if the query fails.
func (r *SearchHistoryRepository) ByKeyword(ctx context.Context, keyword string, limit int) ([]domain.SearchHistory, error) {
	var entries []domain.SearchHistory
	if err := r.db.WithContext(ctx).
		Where("search_keyword = ?", keyword).
		Order("collected_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
