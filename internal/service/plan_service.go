package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paycollect/loan-notifier/internal/domain"
	"github.com/paycollect/loan-notifier/internal/repository"
	"go.uber.org/zap"
)

// PlanInput is the external payload for creating a plan.
type PlanInput struct {
	CreditID   string
	BorrowerID string
	DueDate    time.Time
	Amount     float64
	Currency   string
}

// PlanUpdate carries optional field changes. A non-nil DueDate triggers
// full re-planning.
type PlanUpdate struct {
	DueDate  *time.Time
	Amount   *float64
	Currency *string
}

// PlanService owns the plan lifecycle: creation with initial planning,
// due-date driven re-planning, and cancellation.
type PlanService struct {
	plans     repository.PlanRepository
	records   repository.RecordRepository
	planner   *Planner
	canceller *Canceller
	logger    *zap.Logger
	now       func() time.Time
}

func NewPlanService(
	plans repository.PlanRepository,
	records repository.RecordRepository,
	planner *Planner,
	canceller *Canceller,
	logger *zap.Logger,
) *PlanService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PlanService{
		plans:     plans,
		records:   records,
		planner:   planner,
		canceller: canceller,
		logger:    logger,
		now:       time.Now,
	}
}

// Create persists a new plan and expands its notification timeline. A
// credit may own at most one non-cancelled plan.
func (s *PlanService) Create(ctx context.Context, input PlanInput) (*domain.Plan, []domain.NotificationRecord, error) {
	now := s.now()
	plan := &domain.Plan{
		ID:            uuid.NewString(),
		CreditID:      input.CreditID,
		BorrowerID:    input.BorrowerID,
		DueDate:       input.DueDate,
		Amount:        input.Amount,
		Currency:      input.Currency,
		Status:        domain.PlanStatusActive,
		CreditStatus:  domain.CreditStatusActive,
		LastCheckDate: now,
	}
	if err := plan.Validate(); err != nil {
		return nil, nil, err
	}

	existing, err := s.plans.GetByCreditID(ctx, input.CreditID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, fmt.Errorf("failed to check existing plan: %w", err)
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("%w: credit %q already has plan %s",
			domain.ErrConflict, input.CreditID, existing.ID)
	}

	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, nil, fmt.Errorf("failed to persist plan: %w", err)
	}

	records, err := s.planner.Schedule(ctx, plan)
	if err != nil {
		return nil, nil, err
	}

	return plan, records, nil
}

// Update applies field changes. When the due date moves, every scheduled
// record is cancelled and the timeline is expanded again against the new
// date; past slots are never resurrected.
func (s *PlanService) Update(ctx context.Context, planID string, update PlanUpdate) (*domain.Plan, []domain.NotificationRecord, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, nil, err
	}
	if plan.Status == domain.PlanStatusCancelled {
		return nil, nil, fmt.Errorf("%w: plan %s is cancelled", domain.ErrConflict, plan.ID)
	}

	replan := update.DueDate != nil && !update.DueDate.Equal(plan.DueDate)

	if update.DueDate != nil {
		plan.DueDate = *update.DueDate
	}
	if update.Amount != nil {
		plan.Amount = *update.Amount
	}
	if update.Currency != nil {
		plan.Currency = *update.Currency
	}
	if err := plan.Validate(); err != nil {
		return nil, nil, err
	}

	if err := s.plans.Update(ctx, plan); err != nil {
		return nil, nil, fmt.Errorf("failed to update plan: %w", err)
	}

	if !replan {
		return plan, nil, nil
	}

	if _, err := s.canceller.CancelScheduled(ctx, plan.CreditID); err != nil {
		return nil, nil, fmt.Errorf("failed to cancel outdated notifications: %w", err)
	}

	records, err := s.planner.Schedule(ctx, plan)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("plan re-planned after due date change",
		zap.String("planId", plan.ID),
		zap.Time("dueDate", plan.DueDate),
		zap.Int("recordsCreated", len(records)),
	)

	return plan, records, nil
}

// Cancel marks the plan cancelled and cascades over its scheduled records.
func (s *PlanService) Cancel(ctx context.Context, planID string) (*CancelResult, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}

	if err := s.plans.UpdateStatus(ctx, plan.ID, domain.PlanStatusCancelled); err != nil {
		return nil, fmt.Errorf("failed to cancel plan: %w", err)
	}

	return s.canceller.CancelScheduled(ctx, plan.CreditID)
}

func (s *PlanService) Get(ctx context.Context, planID string) (*domain.Plan, error) {
	return s.plans.GetByID(ctx, planID)
}

func (s *PlanService) GetByCreditID(ctx context.Context, creditID string) (*domain.Plan, error) {
	return s.plans.GetByCreditID(ctx, creditID)
}

func (s *PlanService) List(ctx context.Context, params repository.PlanListParams) ([]domain.Plan, int64, error) {
	return s.plans.List(ctx, params)
}

func (s *PlanService) ListNotifications(ctx context.Context, creditID string, params repository.RecordListParams) ([]domain.NotificationRecord, int64, error) {
	return s.records.ListByCredit(ctx, creditID, params)
}
