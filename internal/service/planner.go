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

// lateDelayHorizonDays is the length of the delinquency timeline. The last
// late-delay day closes the collection window and fixes the auction date.
const lateDelayHorizonDays = 30

// Planner expands a plan's due date against the phase timetable into
// scheduled notification records and hands each to the dispatcher.
type Planner struct {
	records    repository.RecordRepository
	dispatcher *Dispatcher
	timetable  strategy.Timetable
	catalog    *strategy.Catalog
	company    string
	logger     *zap.Logger
	now        func() time.Time
}

func NewPlanner(
	records repository.RecordRepository,
	dispatcher *Dispatcher,
	timetable strategy.Timetable,
	catalog *strategy.Catalog,
	company string,
	logger *zap.Logger,
) *Planner {
	if catalog == nil {
		catalog = strategy.DefaultCatalog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Planner{
		records:    records,
		dispatcher: dispatcher,
		timetable:  timetable,
		catalog:    catalog,
		company:    company,
		logger:     logger,
		now:        time.Now,
	}
}

// Schedule creates one record per configured (phase, day, channel) triple
// whose fire time is still in the future and whose template exists.
// Per-triple failures are logged and skipped; they never abort the rest of
// the expansion.
func (p *Planner) Schedule(ctx context.Context, plan *domain.Plan) ([]domain.NotificationRecord, error) {
	if plan == nil {
		return nil, fmt.Errorf("%w: plan is required", domain.ErrValidation)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	now := p.now()
	created := make([]domain.NotificationRecord, 0)

	for _, entry := range p.timetable.Entries() {
		scheduledFor := plan.DueDate.AddDate(0, 0, entry.Day)
		if scheduledFor.Before(now) {
			continue
		}

		tmpl, ok := p.catalog.Lookup(entry.Stage, entry.Day, entry.Channel)
		if !ok {
			continue
		}

		record := p.buildRecord(plan, entry, tmpl, scheduledFor)

		if err := p.records.Create(ctx, record); err != nil {
			p.logger.Error("failed to persist planned notification",
				zap.String("creditId", plan.CreditID),
				zap.String("stage", entry.Stage.String()),
				zap.Int("day", entry.Day),
				zap.String("channel", entry.Channel.String()),
				zap.Error(err),
			)
			continue
		}

		if _, err := p.dispatcher.Dispatch(ctx, record); err != nil {
			p.logger.Error("failed to dispatch planned notification",
				zap.String("recordId", record.ID),
				zap.Error(err),
			)
			continue
		}

		created = append(created, *record)
	}

	p.logger.Info("plan expanded",
		zap.String("creditId", plan.CreditID),
		zap.Time("dueDate", plan.DueDate),
		zap.Int("recordsCreated", len(created)),
	)

	return created, nil
}

func (p *Planner) buildRecord(plan *domain.Plan, entry strategy.Entry, tmpl string, scheduledFor time.Time) *domain.NotificationRecord {
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

	return &domain.NotificationRecord{
		ID:              uuid.NewString(),
		PlanID:          plan.ID,
		CreditID:        plan.CreditID,
		BorrowerID:      plan.BorrowerID,
		Stage:           entry.Stage,
		Day:             entry.Day,
		Channel:         entry.Channel,
		MessageTemplate: strategy.TemplateKey(entry.Stage, entry.Day),
		MessageContent:  template.Render(tmpl, vars),
		ScheduledFor:    scheduledFor,
		Status:          domain.RecordStatusScheduled,
	}
}
