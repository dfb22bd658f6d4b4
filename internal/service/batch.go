package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/daeho-lim/shopcollect/internal/domain"
	"github.com/daeho-lim/shopcollect/internal/logger"
	"github.com/daeho-lim/shopcollect/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// defaultRateLimitSeconds is the inter-keyword delay applied when a batch
// is created without an explicit value.
const defaultRateLimitSeconds = 60

// BatchService orchestrates batch collection runs. At most one batch runs
// per process; the run slot is guarded by a mutex and released when the
// run loop exits for any reason.
type BatchService struct {
	batches          *repository.BatchRepository
	collector        *Collector
	broadcaster      *Broadcaster
	pollInterval     time.Duration
	defaultRateLimit int

	mu             sync.Mutex
	running        bool
	currentBatchID string
}

// BatchServiceConfig holds configuration for the batch service.
type BatchServiceConfig struct {
	// PollInterval is the granularity of pause/cancel checks during waits.
	PollInterval time.Duration
	// RateLimitSeconds is the inter-keyword delay for batches created
	// without an explicit value.
	RateLimitSeconds int
}

// NewBatchService creates a new BatchService.
// Parameters:
//   - batches: batch repository.
//   - collector: per-keyword collector.
//   - broadcaster: progress broadcaster.
//   - cfg: service configuration; nil uses defaults.
// Returns:
//   - *BatchService: initialized service.
func NewBatchService(
	batches *repository.BatchRepository,
	collector *Collector,
	broadcaster *Broadcaster,
	cfg *BatchServiceConfig,
) *BatchService {
	pollInterval := time.Second
	defaultRateLimit := defaultRateLimitSeconds
	if cfg != nil {
		if cfg.PollInterval > 0 {
			pollInterval = cfg.PollInterval
		}
		if cfg.RateLimitSeconds > 0 {
			defaultRateLimit = cfg.RateLimitSeconds
		}
	}
	return &BatchService{
		batches:          batches,
		collector:        collector,
		broadcaster:      broadcaster,
		pollInterval:     pollInterval,
		defaultRateLimit: defaultRateLimit,
	}
}

// Broadcaster returns the progress broadcaster for stream subscriptions.
func (s *BatchService) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// ActiveBatch reports whether a batch run is in progress and which one.
// Parameters: none.
// Returns:
//   - bool: true if a run loop is active.
//   - string: batch ID holding the run slot, empty if none.
func (s *BatchService) ActiveBatch() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running, s.currentBatchID
}

// CreateFromKeywords creates a new batch job with one task per keyword.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - filename: originating CSV filename, kept for display.
//   - keywords: ordered keywords to collect.
//   - rateLimitSeconds: inter-keyword delay; non-positive uses the default.
// Returns:
//   - *domain.BatchJob: created job in pending state.
//   - error: non-nil if there are no keywords or persistence fails.
func (s *BatchService) CreateFromKeywords(ctx context.Context, filename string, keywords []string, rateLimitSeconds int) (*domain.BatchJob, error) {
	if len(keywords) == 0 {
		return nil, ErrNoKeywords
	}
	if rateLimitSeconds <= 0 {
		rateLimitSeconds = s.defaultRateLimit
	}

	job := &domain.BatchJob{
		BatchID:          uuid.New().String(),
		CSVFilename:      filename,
		TotalKeywords:    len(keywords),
		Status:           domain.BatchStatusPending,
		RateLimitSeconds: rateLimitSeconds,
		CreatedAt:        time.Now(),
	}

	tasks := make([]domain.KeywordTask, 0, len(keywords))
	for i, keyword := range keywords {
		tasks = append(tasks, domain.KeywordTask{
			BatchID:  job.BatchID,
			Keyword:  keyword,
			Position: i,
			Status:   domain.KeywordStatusPending,
		})
	}

	if err := s.batches.CreateJob(ctx, job, tasks); err != nil {
		return nil, err
	}

	logger.With(logger.Fields{
		logger.FieldBatchID: job.BatchID,
		logger.FieldCount:   len(keywords),
	}).Info(ctx, "Batch job created")

	return job, nil
}

// Start launches the run loop for a pending or previously failed batch.
// The run slot is claimed synchronously so a busy process is reported to
// the caller; the loop itself runs on its own goroutine.
// Parameters:
//   - ctx: context for the validation reads.
//   - batchID: batch to start.
// Returns:
//   - error: ErrBatchNotFound, InvalidTransitionError, AlreadyRunningError,
//     or a storage error.
func (s *BatchService) Start(ctx context.Context, batchID string) error {
	job, err := s.getJob(ctx, batchID)
	if err != nil {
		return err
	}
	if job.Status != domain.BatchStatusPending && job.Status != domain.BatchStatusFailed {
		return &InvalidTransitionError{
			Op:       "start",
			Current:  string(job.Status),
			Required: "pending or failed",
		}
	}
	if err := s.acquireRun(batchID); err != nil {
		return err
	}
	go s.run(batchID)
	return nil
}

// Pause requests that the running batch stop after the current keyword.
// The run loop observes the new status within one poll interval.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batchID: batch to pause.
// Returns:
//   - error: ErrBatchNotFound, InvalidTransitionError, or a storage error.
func (s *BatchService) Pause(ctx context.Context, batchID string) error {
	job, err := s.getJob(ctx, batchID)
	if err != nil {
		return err
	}
	if job.Status != domain.BatchStatusRunning {
		return &InvalidTransitionError{
			Op:       "pause",
			Current:  string(job.Status),
			Required: "running",
		}
	}
	if err := s.batches.UpdateJobStatus(ctx, batchID, domain.BatchStatusPaused); err != nil {
		return err
	}
	logger.CtxInfo(ctx, "Batch %s paused", batchID)
	s.publish(ctx, batchID)
	return nil
}

// Resume relaunches the run loop for a paused batch.
// Parameters:
//   - ctx: context for the validation reads.
//   - batchID: batch to resume.
// Returns:
//   - error: ErrBatchNotFound, InvalidTransitionError, AlreadyRunningError,
//     or a storage error.
func (s *BatchService) Resume(ctx context.Context, batchID string) error {
	job, err := s.getJob(ctx, batchID)
	if err != nil {
		return err
	}
	if job.Status != domain.BatchStatusPaused {
		return &InvalidTransitionError{
			Op:       "resume",
			Current:  string(job.Status),
			Required: "paused",
		}
	}
	if err := s.acquireRun(batchID); err != nil {
		return err
	}
	logger.CtxInfo(ctx, "Batch %s resuming", batchID)
	go s.run(batchID)
	return nil
}

// Cancel terminates a batch permanently. A live run loop observes the new
// status within one poll interval; remaining keywords are never processed.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batchID: batch to cancel.
// Returns:
//   - error: ErrBatchNotFound, InvalidTransitionError, or a storage error.
func (s *BatchService) Cancel(ctx context.Context, batchID string) error {
	job, err := s.getJob(ctx, batchID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return &InvalidTransitionError{
			Op:       "cancel",
			Current:  string(job.Status),
			Required: "pending, running or paused",
		}
	}
	if err := s.batches.FinishJob(ctx, batchID, domain.BatchStatusCancelled, time.Now()); err != nil {
		return err
	}
	logger.CtxInfo(ctx, "Batch %s cancelled", batchID)
	s.publish(ctx, batchID)
	return nil
}

// Delete removes a terminal batch and its keyword tasks.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batchID: batch to delete.
// Returns:
//   - error: ErrBatchNotFound, InvalidTransitionError, or a storage error.
func (s *BatchService) Delete(ctx context.Context, batchID string) error {
	job, err := s.getJob(ctx, batchID)
	if err != nil {
		return err
	}
	if !job.Status.IsTerminal() {
		return &InvalidTransitionError{
			Op:       "delete",
			Current:  string(job.Status),
			Required: "completed, failed or cancelled",
		}
	}
	return s.batches.DeleteJob(ctx, batchID)
}

// Status builds the current progress snapshot of a batch.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batchID: batch to inspect.
// Returns:
//   - *Snapshot: current snapshot.
//   - error: ErrBatchNotFound or a storage error.
func (s *BatchService) Status(ctx context.Context, batchID string) (*Snapshot, error) {
	job, err := s.getJob(ctx, batchID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.batches.ListTasks(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(job, tasks), nil
}

// Keywords retrieves a batch and its keyword tasks in position order.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batchID: batch to inspect.
// Returns:
//   - *domain.BatchJob: job record.
//   - []domain.KeywordTask: ordered keyword tasks.
//   - error: ErrBatchNotFound or a storage error.
func (s *BatchService) Keywords(ctx context.Context, batchID string) (*domain.BatchJob, []domain.KeywordTask, error) {
	job, err := s.getJob(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := s.batches.ListTasks(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	return job, tasks, nil
}

// List retrieves batch jobs with pagination, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of jobs to return.
//   - offset: number of jobs to skip.
// Returns:
//   - []domain.BatchJob: job records.
//   - error: non-nil if the query fails.
func (s *BatchService) List(ctx context.Context, limit, offset int) ([]domain.BatchJob, error) {
	return s.batches.ListJobs(ctx, limit, offset)
}

// acquireRun claims the process-wide run slot.
func (s *BatchService) acquireRun(batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return &AlreadyRunningError{BatchID: s.currentBatchID}
	}
	s.running = true
	s.currentBatchID = batchID
	return nil
}

// releaseRun frees the process-wide run slot.
func (s *BatchService) releaseRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.currentBatchID = ""
}

// run owns one batch run. It releases the run slot on exit and converts
// panics and unhandled errors into a failed batch.
func (s *BatchService) run(batchID string) {
	ctx := logger.SetComponent(logger.SetBatchID(context.Background(), batchID), "batch")

	defer s.releaseRun()
	defer func() {
		if r := recover(); r != nil {
			logger.CtxError(ctx, "Batch run panicked: %v", r)
			s.markFailed(ctx, batchID)
		}
	}()

	if err := s.runLoop(ctx, batchID); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Batch run failed")
		s.markFailed(ctx, batchID)
	}
}

// runLoop processes the runnable keywords of a batch sequentially.
func (s *BatchService) runLoop(ctx context.Context, batchID string) error {
	job, err := s.getJob(ctx, batchID)
	if err != nil {
		return err
	}

	if err := s.batches.UpdateJobStatus(ctx, batchID, domain.BatchStatusRunning); err != nil {
		return err
	}
	// started_at marks the first start only; resumes keep the original
	if job.StartedAt == nil {
		if err := s.batches.SetJobStartedAt(ctx, batchID, time.Now()); err != nil {
			return err
		}
	}
	s.publish(ctx, batchID)

	// A crash or interrupted run can leave a task stuck in running state;
	// reset it so this run picks it up again
	stuck, err := s.batches.GetRunningTask(ctx, batchID)
	if err != nil {
		return err
	}
	if stuck != nil {
		stuck.Status = domain.KeywordStatusPending
		if err := s.batches.SaveTask(ctx, stuck); err != nil {
			return err
		}
	}

	tasks, err := s.batches.ListRunnableTasks(ctx, batchID)
	if err != nil {
		return err
	}

	logger.With(logger.Fields{
		logger.FieldBatchID: batchID,
		logger.FieldCount:   len(tasks),
	}).Info(ctx, "Batch run starting")

	for i := range tasks {
		task := &tasks[i]

		status, err := s.batches.GetJobStatus(ctx, batchID)
		if err != nil {
			return err
		}
		if status == domain.BatchStatusPaused || status == domain.BatchStatusCancelled {
			logger.CtxInfo(ctx, "Batch run stopping: status is %s", status)
			s.publish(ctx, batchID)
			return nil
		}

		if err := s.runTask(ctx, batchID, task); err != nil {
			return err
		}

		if i < len(tasks)-1 {
			interrupted, err := s.waitBetweenKeywords(ctx, batchID, job.RateLimitSeconds)
			if err != nil {
				return err
			}
			if interrupted {
				s.publish(ctx, batchID)
				return nil
			}
		}
	}

	// Stamp completion only if nothing intervened during the last keyword
	status, err := s.batches.GetJobStatus(ctx, batchID)
	if err != nil {
		return err
	}
	if status == domain.BatchStatusRunning {
		if err := s.batches.FinishJob(ctx, batchID, domain.BatchStatusCompleted, time.Now()); err != nil {
			return err
		}
		logger.CtxInfo(ctx, "Batch run completed")
	}
	s.publish(ctx, batchID)
	return nil
}

// runTask collects one keyword and records its outcome. A keyword the
// ledger already knows is marked skipped directly and never transitions
// through running.
func (s *BatchService) runTask(ctx context.Context, batchID string, task *domain.KeywordTask) error {
	taskCtx := logger.SetKeyword(ctx, task.Keyword)

	collected, err := s.collector.PreviouslyCollected(taskCtx, task.Keyword)
	if err != nil {
		return err
	}
	if collected {
		now := time.Now()
		task.Status = domain.KeywordStatusSkipped
		task.PreviouslyCollected = true
		task.StartedAt = &now
		task.CompletedAt = &now
		logger.CtxInfo(taskCtx, "Keyword already collected, skipping")
		return s.finishTask(taskCtx, batchID, task, "skipped_count")
	}

	now := time.Now()
	task.Status = domain.KeywordStatusRunning
	task.StartedAt = &now
	if err := s.batches.SaveTask(taskCtx, task); err != nil {
		return err
	}
	if err := s.batches.SetJobCursor(taskCtx, batchID, task.Position); err != nil {
		return err
	}
	s.publish(taskCtx, batchID)

	result, err := s.collector.CollectKeyword(taskCtx, &CollectRequest{Query: task.Keyword})

	finished := time.Now()
	task.CompletedAt = &finished
	var counter string
	switch {
	case err != nil:
		task.Status = domain.KeywordStatusFailed
		task.ErrorMessage = err.Error()
		counter = "failed_count"
		logger.FromContext(taskCtx).WithError(err).Warn("Keyword collection failed")
	case result.Skipped:
		task.Status = domain.KeywordStatusSkipped
		task.PreviouslyCollected = true
		counter = "skipped_count"
	default:
		task.Status = domain.KeywordStatusCompleted
		task.TotalCollected = result.Collected
		task.NewProducts = result.New
		task.UpdatedProducts = result.Updated
		counter = "completed_count"
	}

	return s.finishTask(taskCtx, batchID, task, counter)
}

// finishTask records a task outcome, bumps the matching counter, and moves
// the cursor to the next keyword. After the last task the cursor equals the
// keyword count.
func (s *BatchService) finishTask(ctx context.Context, batchID string, task *domain.KeywordTask, counter string) error {
	if err := s.batches.SaveTask(ctx, task); err != nil {
		return err
	}
	if err := s.batches.IncrementJobCounter(ctx, batchID, counter); err != nil {
		return err
	}
	if err := s.batches.SetJobCursor(ctx, batchID, task.Position+1); err != nil {
		return err
	}
	s.publish(ctx, batchID)
	return nil
}

// waitBetweenKeywords sleeps the configured delay in poll-sized slices,
// checking for pause or cancel before each slice.
// Returns true if the wait was interrupted by a status change.
func (s *BatchService) waitBetweenKeywords(ctx context.Context, batchID string, seconds int) (bool, error) {
	deadline := time.Now().Add(time.Duration(seconds) * time.Second)
	for time.Now().Before(deadline) {
		status, err := s.batches.GetJobStatus(ctx, batchID)
		if err != nil {
			return false, err
		}
		if status == domain.BatchStatusPaused || status == domain.BatchStatusCancelled {
			logger.CtxInfo(ctx, "Delay interrupted: status is %s", status)
			return true, nil
		}

		interval := s.pollInterval
		if remaining := time.Until(deadline); remaining < interval {
			interval = remaining
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(interval):
		}
	}
	return false, nil
}

// markFailed moves a batch to failed state, best-effort.
func (s *BatchService) markFailed(ctx context.Context, batchID string) {
	if err := s.batches.FinishJob(ctx, batchID, domain.BatchStatusFailed, time.Now()); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to persist failed batch status")
	}
	s.publish(ctx, batchID)
}

// publish pushes the current snapshot to subscribers, best-effort.
func (s *BatchService) publish(ctx context.Context, batchID string) {
	snap, err := s.Status(ctx, batchID)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Debug("Skipping progress publish")
		return
	}
	s.broadcaster.Publish(batchID, snap)
}

// getJob loads a job, translating the missing-row case.
func (s *BatchService) getJob(ctx context.Context, batchID string) (*domain.BatchJob, error) {
	job, err := s.batches.GetJob(ctx, batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
		}
		return nil, err
	}
	return job, nil
}
