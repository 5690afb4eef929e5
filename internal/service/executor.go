package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paycollect/loan-notifier/internal/client"
	"github.com/paycollect/loan-notifier/internal/domain"
	"github.com/paycollect/loan-notifier/internal/observability"
	"github.com/paycollect/loan-notifier/internal/policy"
	"github.com/paycollect/loan-notifier/internal/ratelimit"
	"github.com/paycollect/loan-notifier/internal/repository"
	"github.com/paycollect/loan-notifier/internal/sender"
	"github.com/paycollect/loan-notifier/internal/template"
	"go.uber.org/zap"
)

// retryRescheduleDelay is how far a failed delivery with remaining budget
// is pushed into the future.
const retryRescheduleDelay = time.Hour

// Executor carries one due record through policy checks and delivery.
type Executor struct {
	records     repository.RecordRepository
	attempts    repository.AttemptRepository
	senders     *sender.Registry
	credits     client.CreditClient
	dispatcher  *Dispatcher
	rateLimiter ratelimit.RateLimiter
	window      policy.Window
	dailyCap    int
	maxAttempts int
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

func NewExecutor(
	records repository.RecordRepository,
	attempts repository.AttemptRepository,
	senders *sender.Registry,
	credits client.CreditClient,
	dispatcher *Dispatcher,
	rateLimiter ratelimit.RateLimiter,
	window policy.Window,
	dailyCap int,
	maxAttempts int,
	logger *zap.Logger,
) (*Executor, error) {
	if dailyCap < 1 {
		return nil, fmt.Errorf("%w: daily cap must be >= 1", domain.ErrConfiguration)
	}
	if maxAttempts < 1 {
		return nil, fmt.Errorf("%w: max attempts must be >= 1", domain.ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Executor{
		records:     records,
		attempts:    attempts,
		senders:     senders,
		credits:     credits,
		dispatcher:  dispatcher,
		rateLimiter: rateLimiter,
		window:      window,
		dailyCap:    dailyCap,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         time.Now,
	}, nil
}

func (e *Executor) SetMetrics(metrics *observability.Metrics) {
	if e == nil {
		return
	}
	e.metrics = metrics
}

// Execute processes one due record end to end. Records that are no longer
// scheduled, or whose current task id is not the one that fired, are
// skipped, which is the last defense against a task that was recalled too
// late. A returned error means the outcome could not be persisted and the
// message should be redelivered.
func (e *Executor) Execute(ctx context.Context, recordID, taskID string) error {
	logger := observability.WithContextLogger(e.logger, ctx)

	record, err := e.records.LockScheduled(ctx, recordID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("record not found during lock, skipping",
				zap.String("recordId", recordID),
			)
			return nil
		}
		return fmt.Errorf("failed to lock record for sending: %w", err)
	}
	// Nil means the record is no longer scheduled; ack and skip.
	if record == nil {
		return nil
	}

	// The record names the one task allowed to deliver it. A task that was
	// already popped when the record moved keeps firing with the old id,
	// so an id mismatch means this task lost ownership.
	if taskID != "" && record.TaskID != taskID {
		logger.Warn("task no longer owns record, skipping",
			zap.String("recordId", record.ID),
			zap.String("taskId", taskID),
			zap.String("ownerTaskId", record.TaskID),
		)
		return nil
	}

	channelName := strings.ToLower(record.Channel.String())
	if e.metrics != nil {
		e.metrics.IncWorkerInFlight(channelName)
		defer e.metrics.DecWorkerInFlight(channelName)
	}

	now := e.now()

	if !e.window.Allows(now) {
		next := e.window.NextValidTime(now)
		logger.Info("outside delivery window, rescheduling",
			zap.String("recordId", record.ID),
			zap.Time("next", next),
		)
		return e.rescheduleTo(ctx, record, next, "window")
	}

	from, to := e.window.DayBounds(now)
	sentToday, err := e.records.CountSentForBorrowerBetween(ctx, record.BorrowerID, from, to)
	if err != nil {
		return fmt.Errorf("failed to count today's notifications: %w", err)
	}
	if sentToday >= int64(e.dailyCap) {
		next := e.window.NextDayStart(now)
		logger.Info("daily cap reached, rescheduling to next day",
			zap.String("recordId", record.ID),
			zap.String("borrowerId", record.BorrowerID),
			zap.Int64("sentToday", sentToday),
			zap.Time("next", next),
		)
		return e.rescheduleTo(ctx, record, next, "daily_cap")
	}

	credit, err := e.credits.FetchCredit(ctx, record.CreditID)
	if err != nil {
		return e.handleFailure(ctx, record, channelName, nil, err)
	}

	channelSender, err := e.senders.For(record.Channel)
	if err != nil {
		// Unknown channel is a deployment fault, not a delivery fault.
		// Mark terminally failed and surface it.
		if failErr := e.records.MarkFailed(ctx, record.ID, err.Error(), record.Metadata); failErr != nil {
			return fmt.Errorf("failed to mark record failed: %w", failErr)
		}
		if e.metrics != nil {
			e.metrics.IncNotificationFailed(channelName, "configuration")
		}
		return err
	}

	recipient := credit.Contact(record.Channel)
	if recipient == "" {
		noContact := fmt.Errorf("%w: borrower has no %s contact", domain.ErrValidation, channelName)
		return e.handleFailure(ctx, record, channelName, nil, noContact)
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.Wait(ctx, channelName); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	msg := sender.Message{
		RecordID:    record.ID,
		Channel:     record.Channel,
		Recipient:   recipient,
		Content:     record.MessageContent,
		TemplateKey: record.MessageTemplate,
		Company:     credit.Company,
		Variables: map[string]string{
			"creditNumber": credit.Number,
			"amount":       template.FormatAmount(credit.RemainingDue),
			"currency":     credit.Currency,
			"company":      credit.Company,
		},
	}

	sendStart := e.now()
	result, sendErr := channelSender.Send(ctx, msg)
	if e.metrics != nil {
		e.metrics.ObserveNotificationSendDuration(channelName, e.now().Sub(sendStart))
	}

	if err := e.recordAttempt(ctx, record.ID, record.RetryCount+1, result, sendErr); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	if sendErr != nil {
		return e.handleFailure(ctx, record, channelName, result, sendErr)
	}

	metadata := mergeMetadata(record.Metadata, domain.Metadata{
		"provider":   result.Provider,
		"statusCode": result.StatusCode,
		"messageId":  result.MessageID,
	})
	if err := e.records.MarkSent(ctx, record.ID, e.now(), metadata); err != nil {
		return fmt.Errorf("failed to mark record sent: %w", err)
	}

	if e.metrics != nil {
		e.metrics.IncNotificationSent(channelName)
	}
	logger.Info("notification sent",
		zap.String("recordId", record.ID),
		zap.String("channel", channelName),
		zap.String("messageId", result.MessageID),
	)

	return nil
}

// rescheduleTo pushes a policy-blocked record to a later slot without
// touching its retry budget.
func (e *Executor) rescheduleTo(ctx context.Context, record *domain.NotificationRecord, at time.Time, reason string) error {
	if err := e.records.Reschedule(ctx, record.ID, at); err != nil {
		return fmt.Errorf("failed to reschedule record: %w", err)
	}

	moved := *record
	moved.ScheduledFor = at
	if _, err := e.dispatcher.Dispatch(ctx, &moved); err != nil {
		return fmt.Errorf("failed to dispatch rescheduled task: %w", err)
	}

	if e.metrics != nil {
		e.metrics.IncReschedule(reason)
	}

	return nil
}

// handleFailure marks the record failed and, when the retry budget allows,
// flips it back to scheduled one hour out. Retry exhaustion is terminal:
// the outcome lives in the record and metrics, the message is not redelivered.
func (e *Executor) handleFailure(ctx context.Context, record *domain.NotificationRecord, channelName string, result *sender.SendResult, sendErr error) error {
	logger := observability.WithContextLogger(e.logger, ctx)

	metadata := mergeMetadata(record.Metadata, domain.Metadata{
		"lastError":   sendErr.Error(),
		"lastErrorAt": e.now().UTC().Format(time.RFC3339),
	})
	if result != nil {
		metadata["statusCode"] = result.StatusCode
	}

	if err := e.records.MarkFailed(ctx, record.ID, sendErr.Error(), metadata); err != nil {
		return fmt.Errorf("failed to mark record failed: %w", err)
	}

	attemptsUsed := record.RetryCount + 1
	if attemptsUsed < e.maxAttempts {
		retryAt := e.now().Add(retryRescheduleDelay)
		if err := e.records.Reschedule(ctx, record.ID, retryAt); err != nil {
			return fmt.Errorf("failed to schedule retry: %w", err)
		}

		retried := *record
		retried.RetryCount = attemptsUsed
		retried.ScheduledFor = retryAt
		if _, err := e.dispatcher.Dispatch(ctx, &retried); err != nil {
			return fmt.Errorf("failed to dispatch retry task: %w", err)
		}

		if e.metrics != nil {
			e.metrics.IncRetryScheduled(channelName)
		}
		logger.Warn("delivery failed, retry scheduled",
			zap.String("recordId", record.ID),
			zap.Int("attempt", attemptsUsed),
			zap.Time("retryAt", retryAt),
			zap.Error(sendErr),
		)
		return nil
	}

	if e.metrics != nil {
		reason := "permanent_error"
		if sender.IsTransient(sendErr) {
			reason = "retry_exhausted"
		}
		e.metrics.IncNotificationFailed(channelName, reason)
	}
	logger.Error("delivery failed terminally",
		zap.String("recordId", record.ID),
		zap.Int("attempts", attemptsUsed),
		zap.Error(sendErr),
	)

	return nil
}

func (e *Executor) recordAttempt(
	ctx context.Context,
	recordID string,
	attemptNumber int,
	result *sender.SendResult,
	sendErr error,
) error {
	var providerName *string
	var messageID *string
	var responseBody *string
	var attemptErr *string

	if result != nil {
		if name := strings.TrimSpace(result.Provider); name != "" {
			providerName = &name
		}
		if id := strings.TrimSpace(result.MessageID); id != "" {
			messageID = &id
		}
		if body := strings.TrimSpace(result.Body); body != "" {
			responseBody = &body
		}
	}

	if sendErr != nil {
		value := sendErr.Error()
		attemptErr = &value

		var deliveryErr *sender.DeliveryError
		if errors.As(sendErr, &deliveryErr) && deliveryErr.StatusCode > 0 && responseBody == nil {
			value := strconv.Itoa(deliveryErr.StatusCode)
			responseBody = &value
		}
	}

	attempt := &domain.DeliveryAttempt{
		ID:            uuid.NewString(),
		RecordID:      recordID,
		AttemptNumber: attemptNumber,
		Provider:      providerName,
		MessageID:     messageID,
		ResponseBody:  responseBody,
		Error:         attemptErr,
		CreatedAt:     e.now().UTC(),
	}

	return e.attempts.Create(ctx, attempt)
}

func mergeMetadata(existing, extra domain.Metadata) domain.Metadata {
	merged := domain.Metadata{}
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
