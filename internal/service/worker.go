package service

import (
	"context"
	"fmt"

	"github.com/paycollect/loan-notifier/internal/domain"
	"github.com/paycollect/loan-notifier/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// Consumer is the broker consumption port used by the worker pool.
type Consumer interface {
	Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error
}

// WorkerService runs bounded per-channel consumers feeding the executor.
// Each channel gets its own workers, so a slow gateway cannot starve the
// other channels.
type WorkerService struct {
	consumer    Consumer
	executor    *Executor
	concurrency int
	logger      *zap.Logger
}

func NewWorkerService(
	consumer Consumer,
	executor *Executor,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		consumer:    consumer,
		executor:    executor,
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

// Start consumes every channel queue until context cancellation. The
// concurrency budget is spread across channels round-robin and is raised
// to the channel count when it is lower, so no queue sits unserved.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	queueNames := make([]string, 0, len(domain.Channels))
	for _, channel := range domain.Channels {
		queueNames = append(queueNames, queue.QueueName(channel))
	}

	workers := s.concurrency
	if workers < len(queueNames) {
		workers = len(queueNames)
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		queueName := queueNames[i%len(queueNames)]
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)

			err := s.consumer.Consume(groupCtx, queueName, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", queueName),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) processMessage(ctx context.Context, msg queue.TaskMessage) error {
	return s.executor.Execute(ctx, msg.RecordID, msg.TaskID)
}
