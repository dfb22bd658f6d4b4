package service

import (
	"testing"

	"github.com/daeho-lim/shopcollect/internal/domain"
)

func TestNewSnapshot(t *testing.T) {
	job := &domain.BatchJob{
		BatchID:        "batch-1",
		Status:         domain.BatchStatusRunning,
		TotalKeywords:  3,
		CompletedCount: 1,
		SkippedCount:   1,
		CurrentIndex:   2,
	}
	tasks := []domain.KeywordTask{
		{Keyword: "노트북", Status: domain.KeywordStatusCompleted, TotalCollected: 10, NewProducts: 8, UpdatedProducts: 2},
		{Keyword: "노트북", Status: domain.KeywordStatusSkipped},
		{Keyword: "마우스", Status: domain.KeywordStatusRunning},
	}

	snap := NewSnapshot(job, tasks)

	if snap.BatchID != "batch-1" || snap.Status != domain.BatchStatusRunning {
		t.Errorf("identity = (%s, %s)", snap.BatchID, snap.Status)
	}
	if snap.Progress.Total != 3 || snap.Progress.Completed != 1 || snap.Progress.Skipped != 1 {
		t.Errorf("progress = %+v", snap.Progress)
	}
	if snap.Progress.Percentage != 66.67 {
		t.Errorf("percentage = %v, want 66.67", snap.Progress.Percentage)
	}
	if snap.Progress.CurrentIndex != 2 {
		t.Errorf("current index = %d, want 2", snap.Progress.CurrentIndex)
	}
	if snap.Stats.TotalProducts != 10 || snap.Stats.NewProducts != 8 || snap.Stats.UpdatedProducts != 2 {
		t.Errorf("stats = %+v", snap.Stats)
	}
	if snap.CurrentKeyword == nil || snap.CurrentKeyword.Keyword != "마우스" {
		t.Errorf("current keyword = %+v, want 마우스", snap.CurrentKeyword)
	}
}

func TestNewSnapshotEmptyBatch(t *testing.T) {
	job := &domain.BatchJob{BatchID: "batch-1", Status: domain.BatchStatusPending}

	snap := NewSnapshot(job, nil)

	if snap.Progress.Percentage != 0 {
		t.Errorf("percentage = %v, want 0", snap.Progress.Percentage)
	}
	if snap.CurrentKeyword != nil {
		t.Errorf("current keyword = %+v, want nil", snap.CurrentKeyword)
	}
}

func TestNewSnapshotFullyDone(t *testing.T) {
	job := &domain.BatchJob{
		BatchID:        "batch-1",
		Status:         domain.BatchStatusCompleted,
		TotalKeywords:  4,
		CompletedCount: 2,
		FailedCount:    1,
		SkippedCount:   1,
	}

	snap := NewSnapshot(job, nil)

	if snap.Progress.Percentage != 100 {
		t.Errorf("percentage = %v, want 100", snap.Progress.Percentage)
	}
}
