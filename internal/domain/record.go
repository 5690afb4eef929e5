package domain

import (
	"fmt"
	"strings"
	"time"
)

// RecordStatus represents the lifecycle state of a notification record.
// Allowed transitions: scheduled -> {sent, failed, cancelled};
// failed -> scheduled (automatic retry). sent and cancelled are terminal.
type RecordStatus string

const (
	RecordStatusScheduled RecordStatus = "scheduled"
	RecordStatusSent      RecordStatus = "sent"
	RecordStatusFailed    RecordStatus = "failed"
	RecordStatusCancelled RecordStatus = "cancelled"
)

func (s RecordStatus) String() string { return string(s) }

func (s RecordStatus) IsValid() bool {
	switch s {
	case RecordStatusScheduled, RecordStatusSent, RecordStatusFailed, RecordStatusCancelled:
		return true
	}
	return false
}

func ParseRecordStatusFromString(s string) (RecordStatus, error) {
	st := RecordStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid record status %q", ErrValidation, s)
	}
	return st, nil
}

// Stage is a named phase of the due-date timeline.
type Stage string

const (
	StagePreventive  Stage = "preventive"
	StageEarlyDelay  Stage = "early_delay"
	StageMediumDelay Stage = "medium_delay"
	StageLateDelay   Stage = "late_delay"
)

// Stages lists every phase in timeline order.
var Stages = []Stage{StagePreventive, StageEarlyDelay, StageMediumDelay, StageLateDelay}

func (s Stage) String() string { return string(s) }

func (s Stage) IsValid() bool {
	switch s {
	case StagePreventive, StageEarlyDelay, StageMediumDelay, StageLateDelay:
		return true
	}
	return false
}

// TemplateKeyPrefix returns the upper-case prefix used in template keys,
// e.g. "PREVENTIVE" for the preventive stage.
func (s Stage) TemplateKeyPrefix() string {
	return strings.ToUpper(string(s))
}

func ParseStageFromString(s string) (Stage, error) {
	st := Stage(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid stage %q", ErrValidation, s)
	}
	return st, nil
}

// Channel represents the delivery channel.
type Channel string

const (
	ChannelSMS    Channel = "sms"
	ChannelEmail  Channel = "email"
	ChannelPush   Channel = "push"
	ChannelAICall Channel = "ai_call"
)

// Channels lists every supported delivery channel.
var Channels = []Channel{ChannelSMS, ChannelEmail, ChannelPush, ChannelAICall}

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelSMS, ChannelEmail, ChannelPush, ChannelAICall:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Metadata is a free-form diagnostic map attached to a record.
type Metadata map[string]any

// NotificationRecord is one planned phase/day/channel notification instance.
type NotificationRecord struct {
	ID              string
	PlanID          string
	CreditID        string
	BorrowerID      string
	Stage           Stage
	Day             int
	Channel         Channel
	MessageTemplate string
	MessageContent  string
	ScheduledFor    time.Time
	SentAt          *time.Time
	Status          RecordStatus
	FailReason      string
	RetryCount      int
	Metadata        Metadata
	// TaskID references the currently-owned queued task; it is authoritative
	// for which task, if any, may still fire for this record.
	TaskID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *NotificationRecord) Validate() error {
	if strings.TrimSpace(r.PlanID) == "" {
		return fmt.Errorf("%w: plan id is required", ErrValidation)
	}
	if strings.TrimSpace(r.CreditID) == "" {
		return fmt.Errorf("%w: credit id is required", ErrValidation)
	}
	if strings.TrimSpace(r.BorrowerID) == "" {
		return fmt.Errorf("%w: borrower id is required", ErrValidation)
	}
	if !r.Stage.IsValid() {
		return fmt.Errorf("%w: invalid stage %q", ErrValidation, r.Stage)
	}
	if !r.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, r.Channel)
	}
	if strings.TrimSpace(r.MessageContent) == "" {
		return fmt.Errorf("%w: message content is required", ErrValidation)
	}
	if r.ScheduledFor.IsZero() {
		return fmt.Errorf("%w: scheduled time is required", ErrValidation)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("%w: invalid record status %q", ErrValidation, r.Status)
	}
	return nil
}

// DeliveryAttempt records a single delivery attempt for a notification record.
type DeliveryAttempt struct {
	ID            string
	RecordID      string
	AttemptNumber int
	Provider      *string
	MessageID     *string
	ResponseBody  *string
	Error         *string
	CreatedAt     time.Time
}
