package repository

import (
	"context"
	"errors"
	"time"

	"github.com/paycollect/loan-notifier/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RecordListParams struct {
	Status   *domain.RecordStatus
	Channel  *domain.Channel
	Stage    *domain.Stage
	Page     int
	PageSize int
}

type RecordRepository interface {
	Create(ctx context.Context, r *domain.NotificationRecord) error
	GetByID(ctx context.Context, id string) (*domain.NotificationRecord, error)
	ListByCredit(ctx context.Context, creditID string, params RecordListParams) ([]domain.NotificationRecord, int64, error)
	GetScheduledByCredit(ctx context.Context, creditID string) ([]domain.NotificationRecord, error)
	LockScheduled(ctx context.Context, id string) (*domain.NotificationRecord, error)
	SetTaskID(ctx context.Context, id string, taskID string) error
	MarkSent(ctx context.Context, id string, sentAt time.Time, metadata domain.Metadata) error
	MarkFailed(ctx context.Context, id string, failReason string, metadata domain.Metadata) error
	Reschedule(ctx context.Context, id string, scheduledFor time.Time) error
	RestoreSchedule(ctx context.Context, id string, scheduledFor time.Time, status domain.RecordStatus) error
	CancelIfScheduled(ctx context.Context, id string) (bool, error)
	CountSentForBorrowerBetween(ctx context.Context, borrowerID string, from, to time.Time) (int64, error)
}

type GormRecordRepo struct {
	db *gorm.DB
}

func NewGormRecordRepo(db *gorm.DB) *GormRecordRepo {
	return &GormRecordRepo{db: db}
}

func (r *GormRecordRepo) Create(ctx context.Context, rec *domain.NotificationRecord) error {
	model := recordModelFromDomain(rec)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if rec != nil {
		*rec = *recordModelToDomain(model)
	}
	return nil
}

func (r *GormRecordRepo) GetByID(ctx context.Context, id string) (*domain.NotificationRecord, error) {
	var model RecordModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return recordModelToDomain(&model), nil
}

func (r *GormRecordRepo) ListByCredit(ctx context.Context, creditID string, params RecordListParams) ([]domain.NotificationRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&RecordModel{}).Where("credit_id = ?", creditID)

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Channel != nil {
		query = query.Where("channel = ?", *params.Channel)
	}
	if params.Stage != nil {
		query = query.Where("stage = ?", *params.Stage)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []RecordModel
	err := query.
		Order("scheduled_for ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	records := make([]domain.NotificationRecord, 0, len(models))
	for i := range models {
		records = append(records, *recordModelToDomain(&models[i]))
	}

	return records, total, nil
}

func (r *GormRecordRepo) GetScheduledByCredit(ctx context.Context, creditID string) ([]domain.NotificationRecord, error) {
	var models []RecordModel
	err := r.db.WithContext(ctx).
		Where("credit_id = ? AND status = ?", creditID, domain.RecordStatusScheduled).
		Order("scheduled_for ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	records := make([]domain.NotificationRecord, 0, len(models))
	for i := range models {
		records = append(records, *recordModelToDomain(&models[i]))
	}

	return records, nil
}

// LockScheduled loads a record under a row lock and returns it only while
// its status is still scheduled; any other status yields (nil, nil) so the
// caller can ack-and-skip. This narrows, but does not eliminate, the window
// for duplicate processing.
func (r *GormRecordRepo) LockScheduled(ctx context.Context, id string) (*domain.NotificationRecord, error) {
	var model RecordModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if model.Status != domain.RecordStatusScheduled {
		return nil, nil
	}

	return recordModelToDomain(&model), nil
}

func (r *GormRecordRepo) SetTaskID(ctx context.Context, id string, taskID string) error {
	result := r.db.WithContext(ctx).
		Model(&RecordModel{}).
		Where("id = ?", id).
		Update("task_id", taskID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormRecordRepo) MarkSent(ctx context.Context, id string, sentAt time.Time, metadata domain.Metadata) error {
	result := r.db.WithContext(ctx).
		Model(&RecordModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":   domain.RecordStatusSent,
			"sent_at":  sentAt,
			"metadata": metadata,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkFailed flips the record to failed, stores the reason, and counts the
// attempt.
func (r *GormRecordRepo) MarkFailed(ctx context.Context, id string, failReason string, metadata domain.Metadata) error {
	result := r.db.WithContext(ctx).
		Model(&RecordModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      domain.RecordStatusFailed,
			"fail_reason": failReason,
			"metadata":    metadata,
			"retry_count": gorm.Expr("retry_count + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormRecordRepo) Reschedule(ctx context.Context, id string, scheduledFor time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&RecordModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"scheduled_for": scheduledFor,
			"status":        domain.RecordStatusScheduled,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RestoreSchedule rolls a record back to a previous schedule and status
// after a failed reschedule attempt.
func (r *GormRecordRepo) RestoreSchedule(ctx context.Context, id string, scheduledFor time.Time, status domain.RecordStatus) error {
	result := r.db.WithContext(ctx).
		Model(&RecordModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"scheduled_for": scheduledFor,
			"status":        status,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CancelIfScheduled transitions a record to cancelled only from scheduled,
// reporting whether the transition happened. Terminal records are left
// untouched, which makes cancellation idempotent.
func (r *GormRecordRepo) CancelIfScheduled(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&RecordModel{}).
		Where("id = ? AND status = ?", id, domain.RecordStatusScheduled).
		Update("status", domain.RecordStatusCancelled)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountSentForBorrowerBetween counts notifications sent to a borrower in
// [from, to) across all channels and plans. Backs the daily-cap policy.
func (r *GormRecordRepo) CountSentForBorrowerBetween(ctx context.Context, borrowerID string, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&RecordModel{}).
		Where("borrower_id = ? AND status = ? AND sent_at >= ? AND sent_at < ?",
			borrowerID, domain.RecordStatusSent, from, to).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
