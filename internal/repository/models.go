package repository

import (
	"time"

	"github.com/paycollect/loan-notifier/internal/domain"
)

// PlanModel is the persistence model for the notification_plans table.
type PlanModel struct {
	ID            string              `gorm:"type:uuid;primaryKey"`
	CreditID      string              `gorm:"type:varchar(64);not null;index"`
	BorrowerID    string              `gorm:"type:varchar(64);not null;index"`
	DueDate       time.Time           `gorm:"type:timestamptz;not null"`
	Amount        float64             `gorm:"not null"`
	Currency      string              `gorm:"type:varchar(8);not null;default:EUR"`
	Status        domain.PlanStatus   `gorm:"type:varchar(20);not null"`
	CreditStatus  domain.CreditStatus `gorm:"type:varchar(20);not null"`
	LastCheckDate time.Time           `gorm:"type:timestamptz;not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (PlanModel) TableName() string {
	return "notification_plans"
}

// RecordModel is the persistence model for the notification_records table.
type RecordModel struct {
	ID              string              `gorm:"type:uuid;primaryKey"`
	PlanID          string              `gorm:"type:uuid;not null;index"`
	CreditID        string              `gorm:"type:varchar(64);not null"`
	BorrowerID      string              `gorm:"type:varchar(64);not null"`
	Stage           domain.Stage        `gorm:"type:varchar(20);not null"`
	Day             int                 `gorm:"not null"`
	Channel         domain.Channel      `gorm:"type:varchar(10);not null"`
	MessageTemplate string              `gorm:"type:varchar(40);not null"`
	MessageContent  string              `gorm:"type:text;not null"`
	ScheduledFor    time.Time           `gorm:"type:timestamptz;not null"`
	SentAt          *time.Time          `gorm:"type:timestamptz"`
	Status          domain.RecordStatus `gorm:"type:varchar(20);not null"`
	FailReason      string              `gorm:"type:text"`
	RetryCount      int                 `gorm:"not null;default:0"`
	Metadata        domain.Metadata     `gorm:"type:jsonb;serializer:json"`
	TaskID          string              `gorm:"type:varchar(80)"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (RecordModel) TableName() string {
	return "notification_records"
}

// AttemptModel is the persistence model for delivery_attempts.
type AttemptModel struct {
	ID            string  `gorm:"type:uuid;primaryKey"`
	RecordID      string  `gorm:"type:uuid;not null"`
	AttemptNumber int     `gorm:"not null"`
	Provider      *string `gorm:"type:varchar(64)"`
	MessageID     *string `gorm:"type:varchar(255)"`
	ResponseBody  *string `gorm:"type:text"`
	Error         *string `gorm:"type:text"`
	CreatedAt     time.Time
}

func (AttemptModel) TableName() string {
	return "delivery_attempts"
}

func planModelFromDomain(p *domain.Plan) *PlanModel {
	if p == nil {
		return nil
	}

	return &PlanModel{
		ID:            p.ID,
		CreditID:      p.CreditID,
		BorrowerID:    p.BorrowerID,
		DueDate:       p.DueDate,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        p.Status,
		CreditStatus:  p.CreditStatus,
		LastCheckDate: p.LastCheckDate,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func planModelToDomain(m *PlanModel) *domain.Plan {
	if m == nil {
		return nil
	}

	return &domain.Plan{
		ID:            m.ID,
		CreditID:      m.CreditID,
		BorrowerID:    m.BorrowerID,
		DueDate:       m.DueDate,
		Amount:        m.Amount,
		Currency:      m.Currency,
		Status:        m.Status,
		CreditStatus:  m.CreditStatus,
		LastCheckDate: m.LastCheckDate,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func recordModelFromDomain(r *domain.NotificationRecord) *RecordModel {
	if r == nil {
		return nil
	}

	return &RecordModel{
		ID:              r.ID,
		PlanID:          r.PlanID,
		CreditID:        r.CreditID,
		BorrowerID:      r.BorrowerID,
		Stage:           r.Stage,
		Day:             r.Day,
		Channel:         r.Channel,
		MessageTemplate: r.MessageTemplate,
		MessageContent:  r.MessageContent,
		ScheduledFor:    r.ScheduledFor,
		SentAt:          r.SentAt,
		Status:          r.Status,
		FailReason:      r.FailReason,
		RetryCount:      r.RetryCount,
		Metadata:        r.Metadata,
		TaskID:          r.TaskID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func recordModelToDomain(m *RecordModel) *domain.NotificationRecord {
	if m == nil {
		return nil
	}

	return &domain.NotificationRecord{
		ID:              m.ID,
		PlanID:          m.PlanID,
		CreditID:        m.CreditID,
		BorrowerID:      m.BorrowerID,
		Stage:           m.Stage,
		Day:             m.Day,
		Channel:         m.Channel,
		MessageTemplate: m.MessageTemplate,
		MessageContent:  m.MessageContent,
		ScheduledFor:    m.ScheduledFor,
		SentAt:          m.SentAt,
		Status:          m.Status,
		FailReason:      m.FailReason,
		RetryCount:      m.RetryCount,
		Metadata:        m.Metadata,
		TaskID:          m.TaskID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *AttemptModel {
	if a == nil {
		return nil
	}

	return &AttemptModel{
		ID:            a.ID,
		RecordID:      a.RecordID,
		AttemptNumber: a.AttemptNumber,
		Provider:      a.Provider,
		MessageID:     a.MessageID,
		ResponseBody:  a.ResponseBody,
		Error:         a.Error,
		CreatedAt:     a.CreatedAt,
	}
}

func attemptModelToDomain(m *AttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:            m.ID,
		RecordID:      m.RecordID,
		AttemptNumber: m.AttemptNumber,
		Provider:      m.Provider,
		MessageID:     m.MessageID,
		ResponseBody:  m.ResponseBody,
		Error:         m.Error,
		CreatedAt:     m.CreatedAt,
	}
}
