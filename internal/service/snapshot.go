package service

import (
	"math"

	"github.com/daeho-lim/shopcollect/internal/domain"
)

// Progress holds the keyword counters of a batch at one point in time.
type Progress struct {
	Total        int     `json:"total"`
	Completed    int     `json:"completed"`
	Failed       int     `json:"failed"`
	Skipped      int     `json:"skipped"`
	CurrentIndex int     `json:"current_index"`
	Percentage   float64 `json:"percentage"`
}

// CurrentKeyword identifies the keyword task being processed.
type CurrentKeyword struct {
	Keyword string               `json:"keyword"`
	Status  domain.KeywordStatus `json:"status"`
}

// CollectionStats aggregates per-keyword product counters across a batch.
type CollectionStats struct {
	TotalProducts   int `json:"total_products"`
	NewProducts     int `json:"new_products"`
	UpdatedProducts int `json:"updated_products"`
}

// Snapshot is a point-in-time view of a batch, published to subscribers
// and returned by the status endpoint.
type Snapshot struct {
	BatchID        string             `json:"batch_id"`
	Status         domain.BatchStatus `json:"status"`
	Progress       Progress           `json:"progress"`
	CurrentKeyword *CurrentKeyword    `json:"current_keyword,omitempty"`
	Stats          CollectionStats    `json:"stats"`
}

// NewSnapshot builds a snapshot from a job and its keyword tasks.
// Parameters:
//   - job: batch job record.
//   - tasks: all keyword tasks of the job.
// Returns:
//   - *Snapshot: assembled snapshot.
func NewSnapshot(job *domain.BatchJob, tasks []domain.KeywordTask) *Snapshot {
	snap := &Snapshot{
		BatchID: job.BatchID,
		Status:  job.Status,
		Progress: Progress{
			Total:        job.TotalKeywords,
			Completed:    job.CompletedCount,
			Failed:       job.FailedCount,
			Skipped:      job.SkippedCount,
			CurrentIndex: job.CurrentIndex,
		},
	}

	if job.TotalKeywords > 0 {
		done := float64(job.CompletedCount + job.FailedCount + job.SkippedCount)
		pct := done / float64(job.TotalKeywords) * 100
		snap.Progress.Percentage = math.Round(pct*100) / 100
	}

	for i := range tasks {
		task := &tasks[i]
		snap.Stats.TotalProducts += task.TotalCollected
		snap.Stats.NewProducts += task.NewProducts
		snap.Stats.UpdatedProducts += task.UpdatedProducts
		if task.Status == domain.KeywordStatusRunning && snap.CurrentKeyword == nil {
			snap.CurrentKeyword = &CurrentKeyword{
				Keyword: task.Keyword,
				Status:  task.Status,
			}
		}
	}

	return snap
}
