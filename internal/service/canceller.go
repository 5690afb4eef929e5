package service

import (
	"context"
	"fmt"

	"github.com/paycollect/loan-notifier/internal/domain"
	"github.com/paycollect/loan-notifier/internal/observability"
	"github.com/paycollect/loan-notifier/internal/repository"
	"go.uber.org/zap"
)

// CancelDetail reports the outcome for one record of a cancellation sweep.
type CancelDetail struct {
	RecordID  string         `json:"recordId"`
	Channel   domain.Channel `json:"channel"`
	Cancelled bool           `json:"cancelled"`
	Error     string         `json:"error,omitempty"`
}

// CancelResult aggregates a cancellation sweep over one credit.
type CancelResult struct {
	TotalCancelled int            `json:"totalCancelled"`
	TotalFailed    int            `json:"totalFailed"`
	Details        []CancelDetail `json:"details"`
}

// Canceller bulk-cancels a credit's scheduled notifications and recalls
// their queued tasks.
type Canceller struct {
	records    repository.RecordRepository
	dispatcher *Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

func NewCanceller(
	records repository.RecordRepository,
	dispatcher *Dispatcher,
	logger *zap.Logger,
) *Canceller {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Canceller{
		records:    records,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (c *Canceller) SetMetrics(metrics *observability.Metrics) {
	if c == nil {
		return
	}
	c.metrics = metrics
}

// CancelScheduled transitions every scheduled record of a credit to
// cancelled. Task removal is best-effort and never blocks the status
// transition. Idempotent: a second invocation matches zero records.
func (c *Canceller) CancelScheduled(ctx context.Context, creditID string) (*CancelResult, error) {
	if creditID == "" {
		return nil, fmt.Errorf("%w: credit id is required", domain.ErrValidation)
	}

	records, err := c.records.GetScheduledByCredit(ctx, creditID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduled records: %w", err)
	}

	result := &CancelResult{Details: make([]CancelDetail, 0, len(records))}

	for i := range records {
		record := &records[i]
		detail := CancelDetail{RecordID: record.ID, Channel: record.Channel}

		if record.TaskID != "" {
			if _, err := c.dispatcher.RemoveTask(ctx, record.TaskID); err != nil {
				c.logger.Warn("failed to remove queued task during cancel",
					zap.String("recordId", record.ID),
					zap.String("taskId", record.TaskID),
					zap.Error(err),
				)
			}
		}

		cancelled, err := c.records.CancelIfScheduled(ctx, record.ID)
		switch {
		case err != nil:
			detail.Error = err.Error()
			result.TotalFailed++
			c.logger.Error("failed to cancel record",
				zap.String("recordId", record.ID),
				zap.Error(err),
			)
		case cancelled:
			detail.Cancelled = true
			result.TotalCancelled++
			if c.metrics != nil {
				c.metrics.IncCancellation()
			}
		default:
			// Raced into a terminal status between the fetch and the
			// conditional update; nothing left to cancel.
		}

		result.Details = append(result.Details, detail)
	}

	c.logger.Info("cancellation sweep finished",
		zap.String("creditId", creditID),
		zap.Int("cancelled", result.TotalCancelled),
		zap.Int("failed", result.TotalFailed),
	)

	return result, nil
}
