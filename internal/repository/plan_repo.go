package repository

import (
	"context"
	"errors"
	"time"

	"github.com/paycollect/loan-notifier/internal/domain"
	"gorm.io/gorm"
)

type PlanListParams struct {
	Status   *domain.PlanStatus
	Page     int
	PageSize int
}

type PlanRepository interface {
	Create(ctx context.Context, p *domain.Plan) error
	GetByID(ctx context.Context, id string) (*domain.Plan, error)
	GetByCreditID(ctx context.Context, creditID string) (*domain.Plan, error)
	List(ctx context.Context, params PlanListParams) ([]domain.Plan, int64, error)
	Update(ctx context.Context, p *domain.Plan) error
	UpdateStatus(ctx context.Context, id string, status domain.PlanStatus) error
	UpdateCreditStatus(ctx context.Context, id string, status domain.CreditStatus, checkedAt time.Time) error
	GetDueForStatusCheck(ctx context.Context, checkedBefore time.Time, limit int) ([]domain.Plan, error)
}

type GormPlanRepo struct {
	db *gorm.DB
}

func NewGormPlanRepo(db *gorm.DB) *GormPlanRepo {
	return &GormPlanRepo{db: db}
}

func (r *GormPlanRepo) Create(ctx context.Context, p *domain.Plan) error {
	model := planModelFromDomain(p)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if p != nil {
		*p = *planModelToDomain(model)
	}
	return nil
}

func (r *GormPlanRepo) GetByID(ctx context.Context, id string) (*domain.Plan, error) {
	var model PlanModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return planModelToDomain(&model), nil
}

// GetByCreditID returns the single non-cancelled plan for a credit.
func (r *GormPlanRepo) GetByCreditID(ctx context.Context, creditID string) (*domain.Plan, error) {
	var model PlanModel
	err := r.db.WithContext(ctx).
		Where("credit_id = ? AND status <> ?", creditID, domain.PlanStatusCancelled).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return planModelToDomain(&model), nil
}

func (r *GormPlanRepo) List(ctx context.Context, params PlanListParams) ([]domain.Plan, int64, error) {
	query := r.db.WithContext(ctx).Model(&PlanModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	pageSize = min(pageSize, 100)

	var models []PlanModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	plans := make([]domain.Plan, 0, len(models))
	for i := range models {
		plans = append(plans, *planModelToDomain(&models[i]))
	}

	return plans, total, nil
}

func (r *GormPlanRepo) Update(ctx context.Context, p *domain.Plan) error {
	model := planModelFromDomain(p)
	result := r.db.WithContext(ctx).
		Model(&PlanModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"due_date":      model.DueDate,
			"amount":        model.Amount,
			"currency":      model.Currency,
			"status":        model.Status,
			"credit_status": model.CreditStatus,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormPlanRepo) UpdateStatus(ctx context.Context, id string, status domain.PlanStatus) error {
	result := r.db.WithContext(ctx).
		Model(&PlanModel{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormPlanRepo) UpdateCreditStatus(ctx context.Context, id string, status domain.CreditStatus, checkedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&PlanModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"credit_status":   status,
			"last_check_date": checkedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetDueForStatusCheck selects active plans whose last status check is older
// than the cutoff, oldest-checked first so no plan starves.
func (r *GormPlanRepo) GetDueForStatusCheck(ctx context.Context, checkedBefore time.Time, limit int) ([]domain.Plan, error) {
	var models []PlanModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND last_check_date < ?", domain.PlanStatusActive, checkedBefore).
		Order("last_check_date ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	plans := make([]domain.Plan, 0, len(models))
	for i := range models {
		plans = append(plans, *planModelToDomain(&models[i]))
	}

	return plans, nil
}
