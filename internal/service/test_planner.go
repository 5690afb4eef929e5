package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paycollect/loan-notifier/internal/domain"
	"github.com/paycollect/loan-notifier/internal/repository"
	"github.com/paycollect/loan-notifier/internal/strategy"
	"github.com/paycollect/loan-notifier/internal/template"
	"go.uber.org/zap"
)

const defaultTestSpacing = time.Minute

// TestPlanner expands the catalog into records spaced a few minutes apart
// from now, ignoring the plan's due date. Used to rehearse the full
// timeline against staging gateways without waiting out real offsets.
type TestPlanner struct {
	records    repository.RecordRepository
	dispatcher *Dispatcher
	timetable  strategy.Timetable
	catalog    *strategy.Catalog
	company    string
	logger     *zap.Logger
	now        func() time.Time
}

// TestScheduleParams narrows the rehearsal to a subset of the timetable.
type TestScheduleParams struct {
	Stage    *domain.Stage
	Channels []domain.Channel
	Spacing  time.Duration
}

func (p TestScheduleParams) allowsChannel(channel domain.Channel) bool {
	if len(p.Channels) == 0 {
		return true
	}
	for _, c := range p.Channels {
		if c == channel {
			return true
		}
	}
	return false
}

func NewTestPlanner(
	records repository.RecordRepository,
	dispatcher *Dispatcher,
	timetable strategy.Timetable,
	catalog *strategy.Catalog,
	company string,
	logger *zap.Logger,
) *TestPlanner {
	if catalog == nil {
		catalog = strategy.DefaultCatalog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TestPlanner{
		records:    records,
		dispatcher: dispatcher,
		timetable:  timetable,
		catalog:    catalog,
		company:    company,
		logger:     logger,
		now:        time.Now,
	}
}

// Schedule creates one record per matching timetable entry, the first one
// due after one spacing interval and each subsequent entry one interval
// later. Tasks are enqueued under test identities.
func (p *TestPlanner) Schedule(ctx context.Context, plan *domain.Plan, params TestScheduleParams) ([]domain.NotificationRecord, error) {
	if plan == nil {
		return nil, fmt.Errorf("%w: plan is required", domain.ErrValidation)
	}

	spacing := params.Spacing
	if spacing <= 0 {
		spacing = defaultTestSpacing
	}

	next := p.now().Add(spacing)
	created := make([]domain.NotificationRecord, 0)

	for _, entry := range p.timetable.Entries() {
		if params.Stage != nil && entry.Stage != *params.Stage {
			continue
		}
		if !params.allowsChannel(entry.Channel) {
			continue
		}

		tmpl, ok := p.catalog.Lookup(entry.Stage, entry.Day, entry.Channel)
		if !ok {
			continue
		}

		vars := template.Vars{
			CreditNumber: plan.CreditID,
			Amount:       plan.Amount,
			Currency:     plan.Currency,
			CompanyName:  p.company,
		}
		if entry.Stage == domain.StageLateDelay {
			remaining := lateDelayHorizonDays - entry.Day
			auction := plan.DueDate.AddDate(0, 0, lateDelayHorizonDays)
			vars.RemainingDays = &remaining
			vars.AuctionDate = &auction
		}

		record := &domain.NotificationRecord{
			ID:              uuid.NewString(),
			PlanID:          plan.ID,
			CreditID:        plan.CreditID,
			BorrowerID:      plan.BorrowerID,
			Stage:           entry.Stage,
			Day:             entry.Day,
			Channel:         entry.Channel,
			MessageTemplate: strategy.TemplateKey(entry.Stage, entry.Day),
			MessageContent:  template.Render(tmpl, vars),
			ScheduledFor:    next,
			Status:          domain.RecordStatusScheduled,
			Metadata:        domain.Metadata{"test": true},
		}

		if err := p.records.Create(ctx, record); err != nil {
			p.logger.Error("failed to persist test notification",
				zap.String("creditId", plan.CreditID),
				zap.Error(err),
			)
			continue
		}

		if _, err := p.dispatcher.DispatchTest(ctx, record); err != nil {
			p.logger.Error("failed to dispatch test notification",
				zap.String("recordId", record.ID),
				zap.Error(err),
			)
			continue
		}

		created = append(created, *record)
		next = next.Add(spacing)
	}

	return created, nil
}
