package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paycollect/loan-notifier/internal/observability"
	"github.com/paycollect/loan-notifier/internal/queue"
	"go.uber.org/zap"
)

const (
	defaultScannerInterval = time.Second
	defaultScannerLimit    = 100
)

// TaskScanner moves due tasks from the delayed store to the broker's
// per-channel work queues.
type TaskScanner struct {
	store     queue.TaskStore
	publisher queue.Publisher
	interval  time.Duration
	limit     int
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewTaskScanner(
	store queue.TaskStore,
	publisher queue.Publisher,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) *TaskScanner {
	if interval <= 0 {
		interval = defaultScannerInterval
	}
	if limit <= 0 {
		limit = defaultScannerLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TaskScanner{
		store:     store,
		publisher: publisher,
		interval:  interval,
		limit:     limit,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *TaskScanner) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *TaskScanner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.scanDue(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("task scanner initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.scanDue(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("task scanner scan failed", zap.Error(err))
			}
		}
	}
}

// scanDue claims due tasks atomically and publishes each to its channel's
// work queue. A publish failure re-enqueues the task so it is retried on a
// later pass instead of being lost.
func (s *TaskScanner) scanDue(ctx context.Context) error {
	tasks, err := s.store.PopDue(ctx, s.now(), s.limit)
	if err != nil {
		return fmt.Errorf("failed to pop due tasks: %w", err)
	}

	for _, task := range tasks {
		msg := queue.TaskMessage{
			TaskID:   task.ID,
			RecordID: task.RecordID,
			Channel:  task.Channel,
			Attempt:  task.Attempt,
		}

		queueName := queue.QueueName(task.Channel)
		if err := s.publisher.Publish(ctx, queueName, msg); err != nil {
			s.logger.Error("failed to publish due task",
				zap.String("taskId", task.ID),
				zap.String("queue", queueName),
				zap.Error(err),
			)

			if _, requeueErr := s.store.Enqueue(ctx, task, s.now()); requeueErr != nil {
				s.logger.Error("failed to re-enqueue task after publish failure",
					zap.String("taskId", task.ID),
					zap.Error(requeueErr),
				)
			}
			continue
		}

		if s.metrics != nil {
			s.metrics.IncTaskDispatched(strings.ToLower(task.Channel.String()))
		}
	}

	return nil
}
