package service

import (
	"context"
	"time"

	"github.com/paycollect/loan-notifier/internal/client"
	"github.com/paycollect/loan-notifier/internal/domain"
	"github.com/paycollect/loan-notifier/internal/queue"
	"github.com/paycollect/loan-notifier/internal/repository"
	"github.com/paycollect/loan-notifier/internal/sender"
)

type fakeRecordRepo struct {
	createFn           func(ctx context.Context, r *domain.NotificationRecord) error
	getByIDFn          func(ctx context.Context, id string) (*domain.NotificationRecord, error)
	listByCreditFn     func(ctx context.Context, creditID string, params repository.RecordListParams) ([]domain.NotificationRecord, int64, error)
	getScheduledFn     func(ctx context.Context, creditID string) ([]domain.NotificationRecord, error)
	lockScheduledFn    func(ctx context.Context, id string) (*domain.NotificationRecord, error)
	setTaskIDFn        func(ctx context.Context, id string, taskID string) error
	markSentFn         func(ctx context.Context, id string, sentAt time.Time, metadata domain.Metadata) error
	markFailedFn       func(ctx context.Context, id string, failReason string, metadata domain.Metadata) error
	rescheduleFn       func(ctx context.Context, id string, scheduledFor time.Time) error
	restoreScheduleFn  func(ctx context.Context, id string, scheduledFor time.Time, status domain.RecordStatus) error
	cancelIfScheduled  func(ctx context.Context, id string) (bool, error)
	countSentBetweenFn func(ctx context.Context, borrowerID string, from, to time.Time) (int64, error)
}

func (f *fakeRecordRepo) Create(ctx context.Context, r *domain.NotificationRecord) error {
	if f.createFn != nil {
		return f.createFn(ctx, r)
	}
	return nil
}

func (f *fakeRecordRepo) GetByID(ctx context.Context, id string) (*domain.NotificationRecord, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRecordRepo) ListByCredit(ctx context.Context, creditID string, params repository.RecordListParams) ([]domain.NotificationRecord, int64, error) {
	if f.listByCreditFn != nil {
		return f.listByCreditFn(ctx, creditID, params)
	}
	return nil, 0, nil
}

func (f *fakeRecordRepo) GetScheduledByCredit(ctx context.Context, creditID string) ([]domain.NotificationRecord, error) {
	if f.getScheduledFn != nil {
		return f.getScheduledFn(ctx, creditID)
	}
	return nil, nil
}

func (f *fakeRecordRepo) LockScheduled(ctx context.Context, id string) (*domain.NotificationRecord, error) {
	if f.lockScheduledFn != nil {
		return f.lockScheduledFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRecordRepo) SetTaskID(ctx context.Context, id string, taskID string) error {
	if f.setTaskIDFn != nil {
		return f.setTaskIDFn(ctx, id, taskID)
	}
	return nil
}

func (f *fakeRecordRepo) MarkSent(ctx context.Context, id string, sentAt time.Time, metadata domain.Metadata) error {
	if f.markSentFn != nil {
		return f.markSentFn(ctx, id, sentAt, metadata)
	}
	return nil
}

func (f *fakeRecordRepo) MarkFailed(ctx context.Context, id string, failReason string, metadata domain.Metadata) error {
	if f.markFailedFn != nil {
		return f.markFailedFn(ctx, id, failReason, metadata)
	}
	return nil
}

func (f *fakeRecordRepo) Reschedule(ctx context.Context, id string, scheduledFor time.Time) error {
	if f.rescheduleFn != nil {
		return f.rescheduleFn(ctx, id, scheduledFor)
	}
	return nil
}

func (f *fakeRecordRepo) RestoreSchedule(ctx context.Context, id string, scheduledFor time.Time, status domain.RecordStatus) error {
	if f.restoreScheduleFn != nil {
		return f.restoreScheduleFn(ctx, id, scheduledFor, status)
	}
	return nil
}

func (f *fakeRecordRepo) CancelIfScheduled(ctx context.Context, id string) (bool, error) {
	if f.cancelIfScheduled != nil {
		return f.cancelIfScheduled(ctx, id)
	}
	return false, nil
}

func (f *fakeRecordRepo) CountSentForBorrowerBetween(ctx context.Context, borrowerID string, from, to time.Time) (int64, error) {
	if f.countSentBetweenFn != nil {
		return f.countSentBetweenFn(ctx, borrowerID, from, to)
	}
	return 0, nil
}

type fakePlanRepo struct {
	createFn               func(ctx context.Context, p *domain.Plan) error
	getByIDFn              func(ctx context.Context, id string) (*domain.Plan, error)
	getByCreditIDFn        func(ctx context.Context, creditID string) (*domain.Plan, error)
	listFn                 func(ctx context.Context, params repository.PlanListParams) ([]domain.Plan, int64, error)
	updateFn               func(ctx context.Context, p *domain.Plan) error
	updateStatusFn         func(ctx context.Context, id string, status domain.PlanStatus) error
	updateCreditStatusFn   func(ctx context.Context, id string, status domain.CreditStatus, checkedAt time.Time) error
	getDueForStatusCheckFn func(ctx context.Context, checkedBefore time.Time, limit int) ([]domain.Plan, error)
}

func (f *fakePlanRepo) Create(ctx context.Context, p *domain.Plan) error {
	if f.createFn != nil {
		return f.createFn(ctx, p)
	}
	return nil
}

func (f *fakePlanRepo) GetByID(ctx context.Context, id string) (*domain.Plan, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakePlanRepo) GetByCreditID(ctx context.Context, creditID string) (*domain.Plan, error) {
	if f.getByCreditIDFn != nil {
		return f.getByCreditIDFn(ctx, creditID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakePlanRepo) List(ctx context.Context, params repository.PlanListParams) ([]domain.Plan, int64, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, 0, nil
}

func (f *fakePlanRepo) Update(ctx context.Context, p *domain.Plan) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, p)
	}
	return nil
}

func (f *fakePlanRepo) UpdateStatus(ctx context.Context, id string, status domain.PlanStatus) error {
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (f *fakePlanRepo) UpdateCreditStatus(ctx context.Context, id string, status domain.CreditStatus, checkedAt time.Time) error {
	if f.updateCreditStatusFn != nil {
		return f.updateCreditStatusFn(ctx, id, status, checkedAt)
	}
	return nil
}

func (f *fakePlanRepo) GetDueForStatusCheck(ctx context.Context, checkedBefore time.Time, limit int) ([]domain.Plan, error) {
	if f.getDueForStatusCheckFn != nil {
		return f.getDueForStatusCheckFn(ctx, checkedBefore, limit)
	}
	return nil, nil
}

type fakeAttemptRepo struct {
	createFn        func(ctx context.Context, a *domain.DeliveryAttempt) error
	getByRecordIDFn func(ctx context.Context, recordID string) ([]domain.DeliveryAttempt, error)
}

func (f *fakeAttemptRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	if f.createFn != nil {
		return f.createFn(ctx, a)
	}
	return nil
}

func (f *fakeAttemptRepo) GetByRecordID(ctx context.Context, recordID string) ([]domain.DeliveryAttempt, error) {
	if f.getByRecordIDFn != nil {
		return f.getByRecordIDFn(ctx, recordID)
	}
	return nil, nil
}

type fakeTaskStore struct {
	enqueueFn func(ctx context.Context, task queue.Task, now time.Time) (bool, error)
	popDueFn  func(ctx context.Context, now time.Time, limit int) ([]queue.Task, error)
	removeFn  func(ctx context.Context, taskID string) (bool, error)
	existsFn  func(ctx context.Context, taskID string) (bool, error)
}

func (f *fakeTaskStore) Enqueue(ctx context.Context, task queue.Task, now time.Time) (bool, error) {
	if f.enqueueFn != nil {
		return f.enqueueFn(ctx, task, now)
	}
	return true, nil
}

func (f *fakeTaskStore) PopDue(ctx context.Context, now time.Time, limit int) ([]queue.Task, error) {
	if f.popDueFn != nil {
		return f.popDueFn(ctx, now, limit)
	}
	return nil, nil
}

func (f *fakeTaskStore) Remove(ctx context.Context, taskID string) (bool, error) {
	if f.removeFn != nil {
		return f.removeFn(ctx, taskID)
	}
	return true, nil
}

func (f *fakeTaskStore) Exists(ctx context.Context, taskID string) (bool, error) {
	if f.existsFn != nil {
		return f.existsFn(ctx, taskID)
	}
	return false, nil
}

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.TaskMessage) error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.TaskMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	return nil
}

type fakeCreditClient struct {
	fetchCreditFn       func(ctx context.Context, creditID string) (*client.Credit, error)
	fetchCreditStatusFn func(ctx context.Context, creditID string) (domain.CreditStatus, error)
}

func (f *fakeCreditClient) FetchCredit(ctx context.Context, creditID string) (*client.Credit, error) {
	if f.fetchCreditFn != nil {
		return f.fetchCreditFn(ctx, creditID)
	}
	return &client.Credit{
		ID:         creditID,
		Number:     creditID,
		Status:     domain.CreditStatusActive,
		BorrowerID: "B1",
		Phone:      "+905551112233",
		Email:      "borrower@example.com",
		PushToken:  "push-token",
		Company:    "acme",
		Currency:   "EUR",
	}, nil
}

func (f *fakeCreditClient) FetchCreditStatus(ctx context.Context, creditID string) (domain.CreditStatus, error) {
	if f.fetchCreditStatusFn != nil {
		return f.fetchCreditStatusFn(ctx, creditID)
	}
	return domain.CreditStatusActive, nil
}

type fakeSender struct {
	sendFn func(ctx context.Context, msg sender.Message) (*sender.SendResult, error)
}

func (f *fakeSender) Send(ctx context.Context, msg sender.Message) (*sender.SendResult, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return &sender.SendResult{Provider: "fake", StatusCode: 200, MessageID: "msg-1"}, nil
}

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, channel string) (bool, error)
	waitFn  func(ctx context.Context, channel string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, channel string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, channel)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, channel string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, channel)
	}
	return nil
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	<-ctx.Done()
	return nil
}

// memoryTaskStore is an in-memory TaskStore for flows that need real
// lookup semantics rather than canned responses.
type memoryTaskStore struct {
	tasks map[string]queue.Task
}

func newMemoryTaskStore() *memoryTaskStore {
	return &memoryTaskStore{tasks: map[string]queue.Task{}}
}

func (m *memoryTaskStore) Enqueue(ctx context.Context, task queue.Task, now time.Time) (bool, error) {
	if _, ok := m.tasks[task.ID]; ok {
		return false, nil
	}
	m.tasks[task.ID] = task
	return true, nil
}

func (m *memoryTaskStore) PopDue(ctx context.Context, now time.Time, limit int) ([]queue.Task, error) {
	due := make([]queue.Task, 0)
	for id, task := range m.tasks {
		if !task.RunAt.After(now) && len(due) < limit {
			due = append(due, task)
			delete(m.tasks, id)
		}
	}
	return due, nil
}

func (m *memoryTaskStore) Remove(ctx context.Context, taskID string) (bool, error) {
	if _, ok := m.tasks[taskID]; !ok {
		return false, nil
	}
	delete(m.tasks, taskID)
	return true, nil
}

func (m *memoryTaskStore) Exists(ctx context.Context, taskID string) (bool, error) {
	_, ok := m.tasks[taskID]
	return ok, nil
}
