package domain

import (
	"fmt"
	"strings"
	"time"
)

// PlanStatus represents the lifecycle state of a notification plan.
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "active"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusCancelled PlanStatus = "cancelled"
)

func (s PlanStatus) String() string { return string(s) }

func (s PlanStatus) IsValid() bool {
	switch s {
	case PlanStatusActive, PlanStatusCompleted, PlanStatusCancelled:
		return true
	}
	return false
}

func ParsePlanStatusFromString(s string) (PlanStatus, error) {
	st := PlanStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid plan status %q", ErrValidation, s)
	}
	return st, nil
}

// CreditStatus is the externally sourced state of the underlying loan.
type CreditStatus string

const (
	CreditStatusActive       CreditStatus = "active"
	CreditStatusOverdue      CreditStatus = "overdue"
	CreditStatusClosed       CreditStatus = "closed"
	CreditStatusCancelled    CreditStatus = "cancelled"
	CreditStatusRestructured CreditStatus = "restructured"
)

func (s CreditStatus) String() string { return string(s) }

func (s CreditStatus) IsValid() bool {
	switch s {
	case CreditStatusActive, CreditStatusOverdue, CreditStatusClosed,
		CreditStatusCancelled, CreditStatusRestructured:
		return true
	}
	return false
}

// TerminatesCollection reports whether a credit status makes further
// collection notifications pointless, triggering cascading cancellation.
func (s CreditStatus) TerminatesCollection() bool {
	switch s {
	case CreditStatusClosed, CreditStatusCancelled, CreditStatusRestructured:
		return true
	}
	return false
}

// Plan drives notification scheduling for one loan. At most one
// non-cancelled plan may exist per credit id.
type Plan struct {
	ID            string
	CreditID      string
	BorrowerID    string
	DueDate       time.Time
	Amount        float64
	Currency      string
	Status        PlanStatus
	CreditStatus  CreditStatus
	LastCheckDate time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p *Plan) Validate() error {
	if strings.TrimSpace(p.CreditID) == "" {
		return fmt.Errorf("%w: credit id is required", ErrValidation)
	}
	if strings.TrimSpace(p.BorrowerID) == "" {
		return fmt.Errorf("%w: borrower id is required", ErrValidation)
	}
	if p.DueDate.IsZero() {
		return fmt.Errorf("%w: due date is required", ErrValidation)
	}
	if p.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("%w: invalid plan status %q", ErrValidation, p.Status)
	}
	if !p.CreditStatus.IsValid() {
		return fmt.Errorf("%w: invalid credit status %q", ErrValidation, p.CreditStatus)
	}
	return nil
}
