package domain

import "time"

// BatchStatus represents the status of a batch collection job.
// Values include BatchStatusPending, BatchStatusRunning, BatchStatusPaused,
// BatchStatusCompleted, BatchStatusFailed, and BatchStatusCancelled.
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusPaused    BatchStatus = "paused"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
	BatchStatusCancelled BatchStatus = "cancelled"
)

// IsTerminal reports whether the status allows no further transitions.
// Parameters: none.
// Returns:
//   - bool: true for completed, failed, and cancelled.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed || s == BatchStatusCancelled
}

// KeywordStatus represents the status of a single keyword task within a batch.
// Values include KeywordStatusPending, KeywordStatusRunning, KeywordStatusCompleted,
// KeywordStatusFailed, and KeywordStatusSkipped.
type KeywordStatus string

const (
	KeywordStatusPending   KeywordStatus = "pending"
	KeywordStatusRunning   KeywordStatus = "running"
	KeywordStatusCompleted KeywordStatus = "completed"
	KeywordStatusFailed    KeywordStatus = "failed"
	KeywordStatusSkipped   KeywordStatus = "skipped"
)

// BatchJob represents a CSV-driven batch collection run and its progress counters.
type BatchJob struct {
	BatchID          string      `gorm:"type:text;primaryKey" json:"batch_id"`
	CSVFilename      string      `gorm:"type:text" json:"csv_filename"`
	TotalKeywords    int         `gorm:"default:0" json:"total_keywords"`
	CompletedCount   int         `gorm:"default:0" json:"completed_keywords"`
	FailedCount      int         `gorm:"default:0" json:"failed_keywords"`
	SkippedCount     int         `gorm:"default:0" json:"skipped_keywords"`
	Status           BatchStatus `gorm:"type:text;index:idx_batch_jobs_status;default:pending" json:"status"`
	CurrentIndex     int         `gorm:"default:0" json:"current_keyword_index"`
	RateLimitSeconds int         `gorm:"default:60" json:"rate_limit_seconds"`
	CreatedAt        time.Time   `json:"created_at"`
	StartedAt        *time.Time  `json:"started_at,omitempty"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty"`
}

// TableName returns the database table name for BatchJob.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (BatchJob) TableName() string {
	return "batch_jobs"
}

// KeywordTask represents one keyword inside a batch job and its per-keyword outcome.
type KeywordTask struct {
	ID                  uint          `gorm:"primaryKey;autoIncrement" json:"-"`
	BatchID             string        `gorm:"type:text;not null;index:idx_batch_keywords_batch_pos,unique" json:"batch_id"`
	Keyword             string        `gorm:"type:text;not null" json:"keyword"`
	Position            int           `gorm:"column:position;index:idx_batch_keywords_batch_pos,unique" json:"order"`
	Status              KeywordStatus `gorm:"type:text;default:pending" json:"status"`
	TotalCollected      int           `gorm:"default:0" json:"total_collected"`
	NewProducts         int           `gorm:"default:0" json:"new_products"`
	UpdatedProducts     int           `gorm:"default:0" json:"updated_products"`
	PreviouslyCollected bool          `gorm:"default:false" json:"previously_collected"`
	StartedAt           *time.Time    `json:"started_at,omitempty"`
	CompletedAt         *time.Time    `json:"completed_at,omitempty"`
	ErrorMessage        string        `gorm:"type:text" json:"error_message,omitempty"`
}

// TableName returns the database table name for KeywordTask.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (KeywordTask) TableName() string {
	return "batch_keywords"
}
