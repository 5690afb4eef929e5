package service

import (
	"context"
	"fmt"
	"time"

	"github.com/paycollect/loan-notifier/internal/domain"
	"github.com/paycollect/loan-notifier/internal/queue"
	"github.com/paycollect/loan-notifier/internal/repository"
	"go.uber.org/zap"
)

// Dispatcher turns a scheduled record into a delayed task in the task
// store and records task ownership on the record.
type Dispatcher struct {
	records repository.RecordRepository
	store   queue.TaskStore
	logger  *zap.Logger
	now     func() time.Time
}

func NewDispatcher(
	records repository.RecordRepository,
	store queue.TaskStore,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		records: records,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// Dispatch enqueues the task for a record's scheduled time. The task id is
// derived from the record and its time, so dispatching the same pair twice
// leaves a single queued task.
func (d *Dispatcher) Dispatch(ctx context.Context, record *domain.NotificationRecord) (string, error) {
	taskID := queue.TaskID(record.ID, record.ScheduledFor)
	return d.dispatch(ctx, record, taskID)
}

// DispatchTest enqueues a task under the record's test identity so a test
// sweep can later be located and replaced as a unit.
func (d *Dispatcher) DispatchTest(ctx context.Context, record *domain.NotificationRecord) (string, error) {
	return d.dispatch(ctx, record, queue.TestRunTaskID(record.ID))
}

func (d *Dispatcher) dispatch(ctx context.Context, record *domain.NotificationRecord, taskID string) (string, error) {
	if record == nil {
		return "", fmt.Errorf("%w: record is required", domain.ErrValidation)
	}

	task := queue.Task{
		ID:       taskID,
		RecordID: record.ID,
		Channel:  record.Channel,
		RunAt:    record.ScheduledFor,
	}

	added, err := d.store.Enqueue(ctx, task, d.now())
	if err != nil {
		return "", fmt.Errorf("%w: failed to enqueue task %q: %v", domain.ErrQueue, taskID, err)
	}
	if !added {
		d.logger.Debug("task already queued",
			zap.String("taskId", taskID),
			zap.String("recordId", record.ID),
		)
	}

	if err := d.records.SetTaskID(ctx, record.ID, taskID); err != nil {
		return "", fmt.Errorf("failed to record task ownership: %w", err)
	}
	record.TaskID = taskID

	return taskID, nil
}

// RemoveTask best-effort deletes a queued task. The task may already have
// fired, so a missing task is not an error.
func (d *Dispatcher) RemoveTask(ctx context.Context, taskID string) (bool, error) {
	if taskID == "" {
		return false, nil
	}

	removed, err := d.store.Remove(ctx, taskID)
	if err != nil {
		return false, fmt.Errorf("%w: failed to remove task %q: %v", domain.ErrQueue, taskID, err)
	}
	return removed, nil
}
