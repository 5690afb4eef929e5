package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/paycollect/loan-notifier/internal/domain"
	"github.com/paycollect/loan-notifier/internal/service"
)

type Rescheduler interface {
	Reschedule(ctx context.Context, recordID string, newTime time.Time) (string, error)
}

type Canceller interface {
	CancelScheduled(ctx context.Context, creditID string) (*service.CancelResult, error)
}

type StatusChecker interface {
	CheckCredit(ctx context.Context, creditID string) (*service.StatusCheckResult, error)
}

type TestScheduler interface {
	Schedule(ctx context.Context, plan *domain.Plan, params service.TestScheduleParams) ([]domain.NotificationRecord, error)
}

// NotificationHandler exposes the operational endpoints that act on an
// existing timeline: manual reschedule, bulk cancel, on-demand status
// check and test rehearsals.
type NotificationHandler struct {
	rescheduler Rescheduler
	canceller   Canceller
	checker     StatusChecker
	plans       PlanService
	testPlanner TestScheduler
}

func NewNotificationHandler(
	rescheduler Rescheduler,
	canceller Canceller,
	checker StatusChecker,
	plans PlanService,
	testPlanner TestScheduler,
) (*NotificationHandler, error) {
	if rescheduler == nil {
		return nil, fmt.Errorf("rescheduler is required")
	}
	if canceller == nil {
		return nil, fmt.Errorf("canceller is required")
	}
	if checker == nil {
		return nil, fmt.Errorf("status checker is required")
	}
	if plans == nil {
		return nil, fmt.Errorf("plan service is required")
	}
	if testPlanner == nil {
		return nil, fmt.Errorf("test planner is required")
	}

	return &NotificationHandler{
		rescheduler: rescheduler,
		canceller:   canceller,
		checker:     checker,
		plans:       plans,
		testPlanner: testPlanner,
	}, nil
}

func RegisterNotificationRoutes(
	router fiber.Router,
	rescheduler Rescheduler,
	canceller Canceller,
	checker StatusChecker,
	plans PlanService,
	testPlanner TestScheduler,
) error {
	h, err := NewNotificationHandler(rescheduler, canceller, checker, plans, testPlanner)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/notifications/:id/reschedule", h.RescheduleNotification)
	v1.Post("/plans/:creditId/cancel-notifications", h.CancelNotifications)
	v1.Post("/plans/:creditId/check-status", h.CheckStatus)
	v1.Post("/test/plans/:creditId/schedule", h.TestSchedule)

	return nil
}

type rescheduleRequest struct {
	ScheduledFor time.Time `json:"scheduledFor"`
}

func (h *NotificationHandler) RescheduleNotification(c *fiber.Ctx) error {
	var req rescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	id := strings.TrimSpace(c.Params("id"))
	taskID, err := h.rescheduler.Reschedule(c.Context(), id, req.ScheduledFor)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"recordId":     id,
		"scheduledFor": req.ScheduledFor,
		"taskId":       taskID,
	})
}

func (h *NotificationHandler) CancelNotifications(c *fiber.Ctx) error {
	creditID := strings.TrimSpace(c.Params("creditId"))
	result, err := h.canceller.CancelScheduled(c.Context(), creditID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *NotificationHandler) CheckStatus(c *fiber.Ctx) error {
	creditID := strings.TrimSpace(c.Params("creditId"))
	result, err := h.checker.CheckCredit(c.Context(), creditID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

type testScheduleRequest struct {
	Stage          string   `json:"stage"`
	Channels       []string `json:"channels"`
	SpacingSeconds int      `json:"spacingSeconds"`
}

func (h *NotificationHandler) TestSchedule(c *fiber.Ctx) error {
	var req testScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	params := service.TestScheduleParams{
		Spacing: time.Duration(req.SpacingSeconds) * time.Second,
	}
	if raw := strings.TrimSpace(req.Stage); raw != "" {
		stage, err := domain.ParseStageFromString(raw)
		if err != nil {
			return err
		}
		params.Stage = &stage
	}
	for _, raw := range req.Channels {
		channel, err := domain.ParseChannelFromString(raw)
		if err != nil {
			return err
		}
		params.Channels = append(params.Channels, channel)
	}

	creditID := strings.TrimSpace(c.Params("creditId"))
	plan, err := h.plans.GetByCreditID(c.Context(), creditID)
	if err != nil {
		return err
	}

	records, err := h.testPlanner.Schedule(c.Context(), plan, params)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(listRecordsResponse{
		Data: toRecordResponses(records),
		Meta: listMeta{Page: 1, PageSize: len(records), Total: int64(len(records))},
	})
}
