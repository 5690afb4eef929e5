package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paycollect/loan-notifier/internal/client"
	"github.com/paycollect/loan-notifier/internal/domain"
	"github.com/paycollect/loan-notifier/internal/policy"
	"github.com/paycollect/loan-notifier/internal/queue"
	"github.com/paycollect/loan-notifier/internal/sender"
)

type executorFixture struct {
	executor *Executor
	records  *fakeRecordRepo
	attempts *fakeAttemptRepo
	store    *memoryTaskStore
}

func scheduledRecord() *domain.NotificationRecord {
	return &domain.NotificationRecord{
		ID:              "rec-1",
		PlanID:          "plan-1",
		CreditID:        "C123",
		BorrowerID:      "B42",
		Stage:           domain.StagePreventive,
		Day:             -3,
		Channel:         domain.ChannelSMS,
		MessageTemplate: "PREVENTIVE_-3",
		MessageContent:  "Payment of 500 EUR due soon for C123",
		ScheduledFor:    time.Date(2024, 6, 7, 9, 0, 0, 0, time.UTC),
		Status:          domain.RecordStatusScheduled,
		TaskID:          queue.TaskID("rec-1", time.Date(2024, 6, 7, 9, 0, 0, 0, time.UTC)),
	}
}

func newExecutorFixture(t *testing.T, records *fakeRecordRepo, snd sender.Sender, credits *fakeCreditClient) *executorFixture {
	t.Helper()

	if records == nil {
		records = &fakeRecordRepo{}
	}
	if credits == nil {
		credits = &fakeCreditClient{}
	}

	attempts := &fakeAttemptRepo{}
	store := newMemoryTaskStore()
	dispatcher := NewDispatcher(records, store, nil)

	registry := sender.NewRegistry()
	if snd == nil {
		snd = &fakeSender{}
	}
	for _, channel := range domain.Channels {
		registry.Register(channel, snd)
	}

	window := policy.Window{StartHour: 9, EndHour: 21, Location: time.UTC}

	executor, err := NewExecutor(records, attempts, registry, credits, dispatcher, &fakeRateLimiter{}, window, 3, 3, nil)
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}

	return &executorFixture{
		executor: executor,
		records:  records,
		attempts: attempts,
		store:    store,
	}
}

func TestExecutorSendsAndMarksSent(t *testing.T) {
	t.Parallel()

	record := scheduledRecord()
	markedSent := false
	records := &fakeRecordRepo{
		lockScheduledFn: func(ctx context.Context, id string) (*domain.NotificationRecord, error) {
			copied := *record
			return &copied, nil
		},
		markSentFn: func(ctx context.Context, id string, sentAt time.Time, metadata domain.Metadata) error {
			markedSent = true
			if metadata["messageId"] != "msg-1" {
				t.Fatalf("metadata messageId = %v, want msg-1", metadata["messageId"])
			}
			return nil
		},
	}

	var gotMessage sender.Message
	snd := &fakeSender{
		sendFn: func(ctx context.Context, msg sender.Message) (*sender.SendResult, error) {
			gotMessage = msg
			return &sender.SendResult{Provider: "sms-gateway", StatusCode: 202, MessageID: "msg-1"}, nil
		},
	}

	attemptRecorded := false
	fixture := newExecutorFixture(t, records, snd, nil)
	fixture.executor.attempts = &fakeAttemptRepo{
		createFn: func(ctx context.Context, a *domain.DeliveryAttempt) error {
			attemptRecorded = true
			if a.AttemptNumber != 1 {
				t.Fatalf("attempt number = %d, want 1", a.AttemptNumber)
			}
			return nil
		},
	}
	// Tuesday inside the window.
	fixture.executor.now = func() time.Time { return time.Date(2024, 6, 11, 10, 0, 0, 0, time.UTC) }

	if err := fixture.executor.Execute(context.Background(), record.ID, record.TaskID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !markedSent {
		t.Fatal("record should be marked sent")
	}
	if !attemptRecorded {
		t.Fatal("delivery attempt should be recorded")
	}
	if gotMessage.Recipient != "+905551112233" {
		t.Fatalf("recipient = %q, want borrower phone", gotMessage.Recipient)
	}
	if gotMessage.Content != record.MessageContent {
		t.Fatalf("content = %q, want rendered message", gotMessage.Content)
	}
}

func TestExecutorSkipsNonScheduledRecord(t *testing.T) {
	t.Parallel()

	sendCalled := false
	records := &fakeRecordRepo{
		lockScheduledFn: func(ctx context.Context, id string) (*domain.NotificationRecord, error) {
			// Guard: terminal status surfaces as nil from the lock.
			return nil, nil
		},
	}
	snd := &fakeSender{
		sendFn: func(ctx context.Context, msg sender.Message) (*sender.SendResult, error) {
			sendCalled = true
			return nil, nil
		},
	}

	fixture := newExecutorFixture(t, records, snd, nil)

	if err := fixture.executor.Execute(context.Background(), "rec-1", ""); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if sendCalled {
		t.Fatal("sender must not be invoked for a non-scheduled record")
	}
}

func TestExecutorMissingRecordIsSkipped(t *testing.T) {
	t.Parallel()

	fixture := newExecutorFixture(t, &fakeRecordRepo{}, nil, nil)

	if err := fixture.executor.Execute(context.Background(), "missing", ""); err != nil {
		t.Fatalf("Execute() error = %v, want nil for a missing record", err)
	}
}

func TestExecutorReschedulesOutsideWindow(t *testing.T) {
	t.Parallel()

	record := scheduledRecord()
	var rescheduledTo time.Time
	records := &fakeRecordRepo{
		lockScheduledFn: func(ctx context.Context, id string) (*domain.NotificationRecord, error) {
			copied := *record
			return &copied, nil
		},
		rescheduleFn: func(ctx context.Context, id string, scheduledFor time.Time) error {
			rescheduledTo = scheduledFor
			return nil
		},
	}
	snd := &fakeSender{
		sendFn: func(ctx context.Context, msg sender.Message) (*sender.SendResult, error) {
			t.Fatal("sender must not be invoked outside the window")
			return nil, nil
		},
	}

	fixture := newExecutorFixture(t, records, snd, nil)
	// Friday 23:00: past end hour, so the next slot is Monday 09:00.
	fixture.executor.now = func() time.Time { return time.Date(2024, 6, 14, 23, 0, 0, 0, time.UTC) }

	if err := fixture.executor.Execute(context.Background(), record.ID, record.TaskID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := time.Date(2024, 6, 17, 9, 0, 0, 0, time.UTC)
	if !rescheduledTo.Equal(want) {
		t.Fatalf("rescheduled to %v, want %v", rescheduledTo, want)
	}
	if len(fixture.store.tasks) != 1 {
		t.Fatalf("store holds %d tasks, want 1 for the rescheduled slot", len(fixture.store.tasks))
	}
}

func TestExecutorDailyCapReschedulesToNextDayStart(t *testing.T) {
	t.Parallel()

	record := scheduledRecord()
	var rescheduledTo time.Time
	sentAtStamped := false
	records := &fakeRecordRepo{
		lockScheduledFn: func(ctx context.Context, id string) (*domain.NotificationRecord, error) {
			copied := *record
			return &copied, nil
		},
		countSentBetweenFn: func(ctx context.Context, borrowerID string, from, to time.Time) (int64, error) {
			if borrowerID != "B42" {
				t.Fatalf("borrowerId = %q, want B42", borrowerID)
			}
			return 3, nil
		},
		rescheduleFn: func(ctx context.Context, id string, scheduledFor time.Time) error {
			rescheduledTo = scheduledFor
			return nil
		},
		markSentFn: func(ctx context.Context, id string, sentAt time.Time, metadata domain.Metadata) error {
			sentAtStamped = true
			return nil
		},
	}

	fixture := newExecutorFixture(t, records, nil, nil)
	// Tuesday 10:00 inside the window, cap already spent.
	fixture.executor.now = func() time.Time { return time.Date(2024, 6, 11, 10, 0, 0, 0, time.UTC) }

	if err := fixture.executor.Execute(context.Background(), record.ID, record.TaskID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)
	if !rescheduledTo.Equal(want) {
		t.Fatalf("rescheduled to %v, want next day window start %v", rescheduledTo, want)
	}
	if sentAtStamped {
		t.Fatal("sentAt must stay unset when the cap defers delivery")
	}
}

func TestExecutorRetriesFailedDeliveryWithinBudget(t *testing.T) {
	t.Parallel()

	record := scheduledRecord()
	record.RetryCount = 1

	markedFailed := false
	var retryAt time.Time
	records := &fakeRecordRepo{
		lockScheduledFn: func(ctx context.Context, id string) (*domain.NotificationRecord, error) {
			copied := *record
			return &copied, nil
		},
		markFailedFn: func(ctx context.Context, id string, failReason string, metadata domain.Metadata) error {
			markedFailed = true
			return nil
		},
		rescheduleFn: func(ctx context.Context, id string, scheduledFor time.Time) error {
			retryAt = scheduledFor
			return nil
		},
	}
	snd := &fakeSender{
		sendFn: func(ctx context.Context, msg sender.Message) (*sender.SendResult, error) {
			return nil, &sender.DeliveryError{StatusCode: 500, Message: "gateway exploded", Transient: true}
		},
	}

	fixture := newExecutorFixture(t, records, snd, nil)
	now := time.Date(2024, 6, 11, 10, 0, 0, 0, time.UTC)
	fixture.executor.now = func() time.Time { return now }

	if err := fixture.executor.Execute(context.Background(), record.ID, record.TaskID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !markedFailed {
		t.Fatal("record should pass through failed before the retry")
	}
	want := now.Add(time.Hour)
	if !retryAt.Equal(want) {
		t.Fatalf("retry scheduled at %v, want %v", retryAt, want)
	}
	if len(fixture.store.tasks) != 1 {
		t.Fatalf("store holds %d tasks, want 1 retry task", len(fixture.store.tasks))
	}
}

func TestExecutorFailureAtBudgetIsTerminal(t *testing.T) {
	t.Parallel()

	record := scheduledRecord()
	record.RetryCount = 2 // third attempt exhausts the budget of 3

	markedFailed := false
	records := &fakeRecordRepo{
		lockScheduledFn: func(ctx context.Context, id string) (*domain.NotificationRecord, error) {
			copied := *record
			return &copied, nil
		},
		markFailedFn: func(ctx context.Context, id string, failReason string, metadata domain.Metadata) error {
			markedFailed = true
			return nil
		},
		rescheduleFn: func(ctx context.Context, id string, scheduledFor time.Time) error {
			t.Fatal("no retry may be scheduled past the budget")
			return nil
		},
	}
	snd := &fakeSender{
		sendFn: func(ctx context.Context, msg sender.Message) (*sender.SendResult, error) {
			return nil, &sender.DeliveryError{StatusCode: 400, Message: "bad number"}
		},
	}

	fixture := newExecutorFixture(t, records, snd, nil)
	fixture.executor.now = func() time.Time { return time.Date(2024, 6, 11, 10, 0, 0, 0, time.UTC) }

	if err := fixture.executor.Execute(context.Background(), record.ID, record.TaskID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !markedFailed {
		t.Fatal("record should be terminally failed")
	}
	if len(fixture.store.tasks) != 0 {
		t.Fatalf("store holds %d tasks, want none after terminal failure", len(fixture.store.tasks))
	}
}

func TestExecutorSkipsTaskThatLostOwnership(t *testing.T) {
	t.Parallel()

	// The record was rescheduled to the next day after its original task
	// had already been claimed by the scanner. The stale task still fires,
	// but the record now names the replacement task.
	record := scheduledRecord()
	staleTaskID := record.TaskID
	record.ScheduledFor = time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)
	record.TaskID = queue.TaskID(record.ID, record.ScheduledFor)

	records := &fakeRecordRepo{
		lockScheduledFn: func(ctx context.Context, id string) (*domain.NotificationRecord, error) {
			copied := *record
			return &copied, nil
		},
		markSentFn: func(ctx context.Context, id string, sentAt time.Time, metadata domain.Metadata) error {
			t.Fatal("a disowned task must not mark the record sent")
			return nil
		},
	}
	snd := &fakeSender{
		sendFn: func(ctx context.Context, msg sender.Message) (*sender.SendResult, error) {
			t.Fatal("a disowned task must not deliver")
			return nil, nil
		},
	}

	fixture := newExecutorFixture(t, records, snd, nil)
	fixture.executor.now = func() time.Time { return time.Date(2024, 6, 11, 10, 0, 0, 0, time.UTC) }

	if err := fixture.executor.Execute(context.Background(), record.ID, staleTaskID); err != nil {
		t.Fatalf("Execute() error = %v, want nil so the stale message is acked", err)
	}
}

func TestExecutorUpstreamFailureConsumesRetryBudget(t *testing.T) {
	t.Parallel()

	record := scheduledRecord()
	markedFailed := false
	records := &fakeRecordRepo{
		lockScheduledFn: func(ctx context.Context, id string) (*domain.NotificationRecord, error) {
			copied := *record
			return &copied, nil
		},
		markFailedFn: func(ctx context.Context, id string, failReason string, metadata domain.Metadata) error {
			markedFailed = true
			return nil
		},
	}
	credits := &fakeCreditClient{
		fetchCreditFn: func(ctx context.Context, creditID string) (*client.Credit, error) {
			return nil, errors.New("credit service down")
		},
	}

	fixture := newExecutorFixture(t, records, nil, credits)
	fixture.executor.now = func() time.Time { return time.Date(2024, 6, 11, 10, 0, 0, 0, time.UTC) }

	if err := fixture.executor.Execute(context.Background(), record.ID, record.TaskID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !markedFailed {
		t.Fatal("upstream lookup failure should mark the record failed")
	}
}
