package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/paycollect/loan-notifier/internal/domain"
	"github.com/paycollect/loan-notifier/internal/repository"
	"github.com/paycollect/loan-notifier/internal/service"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type PlanService interface {
	Create(ctx context.Context, input service.PlanInput) (*domain.Plan, []domain.NotificationRecord, error)
	Update(ctx context.Context, planID string, update service.PlanUpdate) (*domain.Plan, []domain.NotificationRecord, error)
	Cancel(ctx context.Context, planID string) (*service.CancelResult, error)
	Get(ctx context.Context, planID string) (*domain.Plan, error)
	GetByCreditID(ctx context.Context, creditID string) (*domain.Plan, error)
	List(ctx context.Context, params repository.PlanListParams) ([]domain.Plan, int64, error)
	ListNotifications(ctx context.Context, creditID string, params repository.RecordListParams) ([]domain.NotificationRecord, int64, error)
}

type PlanHandler struct {
	service PlanService
}

func NewPlanHandler(service PlanService) (*PlanHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("plan service is required")
	}
	return &PlanHandler{service: service}, nil
}

func RegisterPlanRoutes(router fiber.Router, service PlanService) error {
	h, err := NewPlanHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/plans", h.CreatePlan)
	v1.Get("/plans", h.ListPlans)
	v1.Get("/plans/:planId", h.GetPlan)
	v1.Patch("/plans/:planId", h.UpdatePlan)
	v1.Delete("/plans/:planId", h.CancelPlan)
	v1.Get("/plans/:creditId/notifications", h.ListPlanNotifications)

	return nil
}

type createPlanRequest struct {
	CreditID   string    `json:"creditId"`
	BorrowerID string    `json:"borrowerId"`
	DueDate    time.Time `json:"dueDate"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
}

type updatePlanRequest struct {
	DueDate  *time.Time `json:"dueDate"`
	Amount   *float64   `json:"amount"`
	Currency *string    `json:"currency"`
}

type planResponse struct {
	ID            string    `json:"id"`
	CreditID      string    `json:"creditId"`
	BorrowerID    string    `json:"borrowerId"`
	DueDate       time.Time `json:"dueDate"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	CreditStatus  string    `json:"creditStatus"`
	LastCheckDate time.Time `json:"lastCheckDate"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type recordResponse struct {
	ID           string          `json:"id"`
	PlanID       string          `json:"planId"`
	CreditID     string          `json:"creditId"`
	Stage        string          `json:"stage"`
	Day          int             `json:"day"`
	Channel      string          `json:"channel"`
	Content      string          `json:"content"`
	ScheduledFor time.Time       `json:"scheduledFor"`
	SentAt       *time.Time      `json:"sentAt,omitempty"`
	Status       string          `json:"status"`
	FailReason   string          `json:"failReason,omitempty"`
	RetryCount   int             `json:"retryCount"`
	Metadata     domain.Metadata `json:"metadata,omitempty"`
}

type planWithRecordsResponse struct {
	Plan          planResponse     `json:"plan"`
	Notifications []recordResponse `json:"notifications"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

type listPlansResponse struct {
	Data []planResponse `json:"data"`
	Meta listMeta       `json:"meta"`
}

type listRecordsResponse struct {
	Data []recordResponse `json:"data"`
	Meta listMeta         `json:"meta"`
}

func (h *PlanHandler) CreatePlan(c *fiber.Ctx) error {
	var req createPlanRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	plan, records, err := h.service.Create(c.Context(), service.PlanInput{
		CreditID:   strings.TrimSpace(req.CreditID),
		BorrowerID: strings.TrimSpace(req.BorrowerID),
		DueDate:    req.DueDate,
		Amount:     req.Amount,
		Currency:   strings.TrimSpace(req.Currency),
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(planWithRecordsResponse{
		Plan:          toPlanResponse(plan),
		Notifications: toRecordResponses(records),
	})
}

func (h *PlanHandler) GetPlan(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("planId"))
	plan, err := h.service.Get(c.Context(), id)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(toPlanResponse(plan))
}

func (h *PlanHandler) UpdatePlan(c *fiber.Ctx) error {
	var req updatePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	id := strings.TrimSpace(c.Params("planId"))
	plan, records, err := h.service.Update(c.Context(), id, service.PlanUpdate{
		DueDate:  req.DueDate,
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(planWithRecordsResponse{
		Plan:          toPlanResponse(plan),
		Notifications: toRecordResponses(records),
	})
}

func (h *PlanHandler) CancelPlan(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("planId"))
	result, err := h.service.Cancel(c.Context(), id)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"planId": id,
		"status": domain.PlanStatusCancelled.String(),
		"result": result,
	})
}

func (h *PlanHandler) ListPlans(c *fiber.Ctx) error {
	params := repository.PlanListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}
	if err := validatePaging(params.Page, params.PageSize); err != nil {
		return err
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParsePlanStatusFromString(rawStatus)
		if err != nil {
			return err
		}
		params.Status = &status
	}

	plans, total, err := h.service.List(c.Context(), params)
	if err != nil {
		return err
	}

	data := make([]planResponse, 0, len(plans))
	for i := range plans {
		data = append(data, toPlanResponse(&plans[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listPlansResponse{
		Data: data,
		Meta: listMeta{Page: params.Page, PageSize: params.PageSize, Total: total},
	})
}

func (h *PlanHandler) ListPlanNotifications(c *fiber.Ctx) error {
	creditID := strings.TrimSpace(c.Params("creditId"))

	params, err := parseRecordListParams(c)
	if err != nil {
		return err
	}

	records, total, err := h.service.ListNotifications(c.Context(), creditID, params)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(listRecordsResponse{
		Data: toRecordResponses(records),
		Meta: listMeta{Page: params.Page, PageSize: params.PageSize, Total: total},
	})
}

func parseRecordListParams(c *fiber.Ctx) (repository.RecordListParams, error) {
	params := repository.RecordListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}
	if err := validatePaging(params.Page, params.PageSize); err != nil {
		return repository.RecordListParams{}, err
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseRecordStatusFromString(rawStatus)
		if err != nil {
			return repository.RecordListParams{}, err
		}
		params.Status = &status
	}
	if rawChannel := strings.TrimSpace(c.Query("channel")); rawChannel != "" {
		channel, err := domain.ParseChannelFromString(rawChannel)
		if err != nil {
			return repository.RecordListParams{}, err
		}
		params.Channel = &channel
	}
	if rawStage := strings.TrimSpace(c.Query("stage")); rawStage != "" {
		stage, err := domain.ParseStageFromString(rawStage)
		if err != nil {
			return repository.RecordListParams{}, err
		}
		params.Stage = &stage
	}

	return params, nil
}

func validatePaging(page, pageSize int) error {
	if page < 1 {
		return fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}
	return nil
}

func toPlanResponse(p *domain.Plan) planResponse {
	if p == nil {
		return planResponse{}
	}
	return planResponse{
		ID:            p.ID,
		CreditID:      p.CreditID,
		BorrowerID:    p.BorrowerID,
		DueDate:       p.DueDate,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        p.Status.String(),
		CreditStatus:  p.CreditStatus.String(),
		LastCheckDate: p.LastCheckDate,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toRecordResponse(r *domain.NotificationRecord) recordResponse {
	if r == nil {
		return recordResponse{}
	}
	return recordResponse{
		ID:           r.ID,
		PlanID:       r.PlanID,
		CreditID:     r.CreditID,
		Stage:        r.Stage.String(),
		Day:          r.Day,
		Channel:      r.Channel.String(),
		Content:      r.MessageContent,
		ScheduledFor: r.ScheduledFor,
		SentAt:       r.SentAt,
		Status:       r.Status.String(),
		FailReason:   r.FailReason,
		RetryCount:   r.RetryCount,
		Metadata:     r.Metadata,
	}
}

func toRecordResponses(records []domain.NotificationRecord) []recordResponse {
	responses := make([]recordResponse, 0, len(records))
	for i := range records {
		responses = append(responses, toRecordResponse(&records[i]))
	}
	return responses
}
