package repository

import (
	"context"
	"time"

	"github.com/daeho-lim/shopcollect/internal/domain"
	"gorm.io/gorm"
)

// BatchRepository handles batch job and keyword task persistence.
type BatchRepository struct {
	db *gorm.DB
}

// NewBatchRepository creates a new BatchRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *BatchRepository: repository instance bound to db.
func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// CreateJob inserts a batch job together with its keyword tasks.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: batch job to persist.
//   - tasks: keyword tasks belonging to the job.
// Returns:
//   - error: non-nil if the transaction fails.
func (r *BatchRepository) CreateJob(ctx context.Context, job *domain.BatchJob, tasks []domain.KeywordTask) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		if len(tasks) == 0 {
			return nil
		}
		return tx.CreateInBatches(tasks, 200).Error
	})
}

// GetJob retrieves a batch job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batchID: batch job ID.
// Returns:
//   - *domain.BatchJob: job record if found.
//   - error: non-nil if lookup fails.
func (r *BatchRepository) GetJob(ctx context.Context, batchID string) (*domain.BatchJob, error) {
	var job domain.BatchJob
	if err := r.db.WithContext(ctx).First(&job, "batch_id = ?", batchID).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJobStatus retrieves only the status column of a batch job.
// Used by the run loop for its per-task and per-second status polls.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batchID: batch job ID.
// Returns:
//   - domain.BatchStatus: current status.
//   - error: non-nil if lookup fails.
func (r *BatchRepository) GetJobStatus(ctx context.Context, batchID string) (domain.BatchStatus, error) {
	var job domain.BatchJob
	if err := r.db.WithContext(ctx).
		Select("status").
		First(&job, "batch_id = ?", batchID).Error; err != nil {
		return "", err
	}
	return job.Status, nil
}

// UpdateJobStatus sets only the status column of a batch job.
// Control operations use this so they never clobber counters the run loop
// is writing concurrently.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batchID: batch job ID.
//   - status: new status value.
// Returns:
//   - error: non-nil if the update fails.
func (r *BatchRepository) UpdateJobStatus(ctx context.Context, batchID string, status domain.BatchStatus) error {
	return r.db.WithContext(ctx).
		Model(&domain.BatchJob{}).
		Where("batch_id = ?", batchID).
		UpdateColumn("status", status).Error
}

// FinishJob sets a terminal status and stamps the completion time.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batchID: batch job ID.
//   - status: terminal status value.
//   - completedAt: completion timestamp.
// Returns:
//   - error: non-nil if the update fails.
func (r *BatchRepository) FinishJob(ctx context.Context, batchID string, status domain.BatchStatus, completedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.BatchJob{}).
		Where("batch_id = ?", batchID).
		UpdateColumns(map[string]interface{}{
			"status":       status,
			"completed_at": completedAt,
		}).Error
}

// SetJobStartedAt stamps the first-start time of a batch job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batchID: batch job ID.
//   - startedAt: start timestamp.
// Returns:
//   - error: non-nil if the update fails.
func (r *BatchRepository) SetJobStartedAt(ctx context.Context, batchID string, startedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.BatchJob{}).
		Where("batch_id = ?", batchID).
		UpdateColumn("started_at", startedAt).Error
}

// SetJobCursor sets the current keyword index of a batch job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batchID: batch job ID.
//   - index: position of the keyword being processed.
// Returns:
//   - error: non-nil if the update fails.
func (r *BatchRepository) SetJobCursor(ctx context.Context, batchID string, index int) error {
	return r.db.WithContext(ctx).
		Model(&domain.BatchJob{}).
		Where("batch_id = ?", batchID).
		UpdateColumn("current_index", index).Error
}

// IncrementJobCounter increments one of the keyword outcome counters.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batchID: batch job ID.
//   - column: counter column name (completed_count, failed_count, skipped_count).
// Returns:
//   - error: non-nil if the update fails.
func (r *BatchRepository) IncrementJobCounter(ctx context.Context, batchID, column string) error {
	return r.db.WithContext(ctx).
		Model(&domain.BatchJob{}).
		Where("batch_id = ?", batchID).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error
}

// ListJobs retrieves batch jobs with pagination, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of jobs to return.
//   - offset: number of jobs to skip.
// Returns:
//   - []domain.BatchJob: job records.
//   - error: non-nil if the query fails.
func (r *BatchRepository) ListJobs(ctx context.Context, limit, offset int) ([]domain.BatchJob, error) {
	var jobs []domain.BatchJob
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// DeleteJob removes a batch job and its keyword tasks.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batchID: batch job ID to delete.
// Returns:
//   - error: non-nil if the transaction fails.
func (r *BatchRepository) DeleteJob(ctx context.Context, batchID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.KeywordTask{}, "batch_id = ?", batchID).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.BatchJob{}, "batch_id = ?", batchID).Error
	})
}

// ListTasks retrieves all keyword tasks of a job in position order.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batchID: batch job ID.
// Returns:
//   - []domain.KeywordTask: ordered keyword tasks.
//   - error: non-nil if the query fails.
func (r *BatchRepository) ListTasks(ctx context.Context, batchID string) ([]domain.KeywordTask, error) {
	var tasks []domain.KeywordTask
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("position ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListRunnableTasks retrieves pending and failed tasks of a job in position order.
// Failed tasks are included so resumed and restarted runs retry them.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batchID: batch job ID.
// Returns:
//   - []domain.KeywordTask: ordered tasks still needing work.
//   - error: non-nil if the query fails.
func (r *BatchRepository) ListRunnableTasks(ctx context.Context, batchID string) ([]domain.KeywordTask, error) {
	var tasks []domain.KeywordTask
	if err := r.db.WithContext(ctx).
		Where("batch_id = ? AND status IN ?", batchID,
			[]domain.KeywordStatus{domain.KeywordStatusPending, domain.KeywordStatusFailed}).
		Order("position ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetRunningTask retrieves the keyword task currently marked running, if any.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batchID: batch job ID.
// Returns:
//   - *domain.KeywordTask: running task, or nil if none.
//   - error: non-nil if the query fails.
func (r *BatchRepository) GetRunningTask(ctx context.Context, batchID string) (*domain.KeywordTask, error) {
	var tasks []domain.KeywordTask
	if err := r.db.WithContext(ctx).
		Where("batch_id = ? AND status = ?", batchID, domain.KeywordStatusRunning).
		Limit(1).
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return &tasks[0], nil
}

// SaveTask persists all fields of a keyword task.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - task: task record with updated fields.
// Returns:
//   - error: non-nil if the update fails.
func (r *BatchRepository) SaveTask(ctx context.Context, task *domain.KeywordTask) error {
	return r.db.WithContext(ctx).Save(task).Error
}
