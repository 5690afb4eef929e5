package service

import (
	"context"
	"fmt"
	"time"

	"github.com/paycollect/loan-notifier/internal/client"
	"github.com/paycollect/loan-notifier/internal/domain"
	"github.com/paycollect/loan-notifier/internal/observability"
	"github.com/paycollect/loan-notifier/internal/repository"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	defaultPollerBatchSize = 50
	defaultPollerInterval  = time.Hour
	defaultPollerCron      = "0 * * * *"
)

// StatusCheckResult is the outcome of re-checking one credit.
type StatusCheckResult struct {
	CreditID               string              `json:"creditId"`
	Status                 domain.CreditStatus `json:"status"`
	Updated                bool                `json:"updated"`
	NotificationsCancelled *int                `json:"notificationsCancelled,omitempty"`
}

// StatusPoller periodically re-checks active plans against the upstream
// credit service and cascades cancellation when collection ends.
type StatusPoller struct {
	plans     repository.PlanRepository
	credits   client.CreditClient
	canceller *Canceller
	batchSize int
	interval  time.Duration
	cronSpec  string
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewStatusPoller(
	plans repository.PlanRepository,
	credits client.CreditClient,
	canceller *Canceller,
	batchSize int,
	interval time.Duration,
	cronSpec string,
	logger *zap.Logger,
) (*StatusPoller, error) {
	if batchSize < 1 {
		batchSize = defaultPollerBatchSize
	}
	if interval <= 0 {
		interval = defaultPollerInterval
	}
	if cronSpec == "" {
		cronSpec = defaultPollerCron
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := cron.ParseStandard(cronSpec); err != nil {
		return nil, fmt.Errorf("%w: invalid poller cron %q: %v", domain.ErrConfiguration, cronSpec, err)
	}

	return &StatusPoller{
		plans:     plans,
		credits:   credits,
		canceller: canceller,
		batchSize: batchSize,
		interval:  interval,
		cronSpec:  cronSpec,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (p *StatusPoller) SetMetrics(metrics *observability.Metrics) {
	if p == nil {
		return
	}
	p.metrics = metrics
}

// Start runs sweeps on the configured cron schedule until the context is
// cancelled.
func (p *StatusPoller) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c := cron.New()
	_, err := c.AddFunc(p.cronSpec, func() {
		if err := p.Sweep(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("status sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule status poller: %w", err)
	}

	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()

	return nil
}

// Sweep examines a batch of active plans whose last check is older than
// the configured interval, oldest first. Per-plan failures are isolated.
func (p *StatusPoller) Sweep(ctx context.Context) error {
	cutoff := p.now().Add(-p.interval)

	plans, err := p.plans.GetDueForStatusCheck(ctx, cutoff, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to load plans for status check: %w", err)
	}

	if p.metrics != nil {
		p.metrics.IncStatusSweep()
	}

	for i := range plans {
		plan := &plans[i]
		if _, err := p.checkPlan(ctx, plan); err != nil {
			p.logger.Error("status check failed",
				zap.String("creditId", plan.CreditID),
				zap.Error(err),
			)
		}
	}

	p.logger.Debug("status sweep finished", zap.Int("plansChecked", len(plans)))
	return nil
}

// CheckCredit re-checks one credit by id, outside the sweep cadence.
func (p *StatusPoller) CheckCredit(ctx context.Context, creditID string) (*StatusCheckResult, error) {
	if creditID == "" {
		return nil, fmt.Errorf("%w: credit id is required", domain.ErrValidation)
	}

	plan, err := p.plans.GetByCreditID(ctx, creditID)
	if err != nil {
		return nil, err
	}

	return p.checkPlan(ctx, plan)
}

func (p *StatusPoller) checkPlan(ctx context.Context, plan *domain.Plan) (*StatusCheckResult, error) {
	status, err := p.credits.FetchCreditStatus(ctx, plan.CreditID)
	if err != nil {
		return nil, err
	}

	result := &StatusCheckResult{
		CreditID: plan.CreditID,
		Status:   status,
		Updated:  status != plan.CreditStatus,
	}

	if err := p.plans.UpdateCreditStatus(ctx, plan.ID, status, p.now()); err != nil {
		return nil, fmt.Errorf("failed to update credit status: %w", err)
	}

	if !status.TerminatesCollection() {
		return result, nil
	}

	cancelResult, err := p.canceller.CancelScheduled(ctx, plan.CreditID)
	if err != nil {
		return nil, fmt.Errorf("failed to cascade cancellation: %w", err)
	}
	result.NotificationsCancelled = &cancelResult.TotalCancelled

	// Collection is over for this credit; the plan no longer needs
	// sweeping.
	if err := p.plans.UpdateStatus(ctx, plan.ID, domain.PlanStatusCompleted); err != nil {
		return nil, fmt.Errorf("failed to close plan: %w", err)
	}

	if p.metrics != nil {
		p.metrics.IncPlanDeactivated(status.String())
	}
	p.logger.Info("collection ended, plan closed",
		zap.String("creditId", plan.CreditID),
		zap.String("creditStatus", status.String()),
		zap.Int("notificationsCancelled", cancelResult.TotalCancelled),
	)

	return result, nil
}
