package service

import (
	"context"
	"fmt"
	"time"

	"github.com/paycollect/loan-notifier/internal/domain"
	"github.com/paycollect/loan-notifier/internal/observability"
	"github.com/paycollect/loan-notifier/internal/repository"
	"go.uber.org/zap"
)

// Rescheduler moves a record's fire time and swaps its queued task.
type Rescheduler struct {
	records    repository.RecordRepository
	dispatcher *Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

func NewRescheduler(
	records repository.RecordRepository,
	dispatcher *Dispatcher,
	logger *zap.Logger,
) *Rescheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Rescheduler{
		records:    records,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

func (r *Rescheduler) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

// Reschedule points a record at a new time and enqueues a fresh task for
// it. The old task is removed best-effort. If the new task cannot be
// enqueued the record is rolled back to its previous schedule, so the
// operation is all-or-nothing from the record's perspective.
func (r *Rescheduler) Reschedule(ctx context.Context, recordID string, newTime time.Time) (string, error) {
	if newTime.IsZero() {
		return "", fmt.Errorf("%w: reschedule time is required", domain.ErrValidation)
	}

	record, err := r.records.GetByID(ctx, recordID)
	if err != nil {
		return "", err
	}

	switch record.Status {
	case domain.RecordStatusSent, domain.RecordStatusCancelled:
		return "", fmt.Errorf("%w: record %s is %s and cannot be rescheduled",
			domain.ErrConflict, record.ID, record.Status)
	}

	if record.TaskID != "" {
		if _, err := r.dispatcher.RemoveTask(ctx, record.TaskID); err != nil {
			// The task may already have fired; the scheduled-status
			// guard stops it from taking effect after this point.
			r.logger.Warn("failed to remove queued task during reschedule",
				zap.String("recordId", record.ID),
				zap.String("taskId", record.TaskID),
				zap.Error(err),
			)
		}
	}

	prevTime := record.ScheduledFor
	prevStatus := record.Status

	if err := r.records.Reschedule(ctx, record.ID, newTime); err != nil {
		return "", fmt.Errorf("failed to update record schedule: %w", err)
	}

	moved := *record
	moved.ScheduledFor = newTime
	moved.Status = domain.RecordStatusScheduled

	taskID, err := r.dispatcher.Dispatch(ctx, &moved)
	if err != nil {
		if restoreErr := r.records.RestoreSchedule(ctx, record.ID, prevTime, prevStatus); restoreErr != nil {
			r.logger.Error("failed to roll back reschedule",
				zap.String("recordId", record.ID),
				zap.Error(restoreErr),
			)
		}
		if r.metrics != nil {
			r.metrics.IncReschedule("rolled_back")
		}
		return "", fmt.Errorf("failed to dispatch rescheduled task: %w", err)
	}

	if r.metrics != nil {
		r.metrics.IncReschedule("manual")
	}
	r.logger.Info("notification rescheduled",
		zap.String("recordId", record.ID),
		zap.Time("from", prevTime),
		zap.Time("to", newTime),
		zap.String("taskId", taskID),
	)

	return taskID, nil
}
