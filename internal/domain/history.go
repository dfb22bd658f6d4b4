package domain

import "time"

// SearchHistory records one completed collection pass for a keyword.
// Its existence is what marks a keyword as already collected; entries never expire.
type SearchHistory struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	SearchKeyword string    `gorm:"type:text;not null;index:idx_search_history_keyword" json:"search_keyword"`
	TotalCount    int       `gorm:"default:0" json:"total_count"`
	Display       int       `gorm:"default:0" json:"display"`
	Start         int       `gorm:"default:0" json:"start"`
	Sort          string    `gorm:"type:text" json:"sort"`
	CollectedAt   time.Time `json:"collected_at"`
}

// TableName returns the database table name for SearchHistory.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (SearchHistory) TableName() string {
	return "search_history"
}
