package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/paycollect/loan-notifier/internal/domain"
)

// TaskMessage is the broker payload for a due delivery task.
type TaskMessage struct {
	TaskID   string         `json:"taskId"`
	RecordID string         `json:"recordId"`
	Channel  domain.Channel `json:"channel"`
	// Attempt counts broker redeliveries of this task, not delivery
	// attempts against the provider. Starts at 0.
	Attempt int `json:"attempt"`
}

func (m TaskMessage) Validate() error {
	if strings.TrimSpace(m.TaskID) == "" {
		return fmt.Errorf("taskId is required")
	}
	if strings.TrimSpace(m.RecordID) == "" {
		return fmt.Errorf("recordId is required")
	}
	if !m.Channel.IsValid() {
		return fmt.Errorf("invalid channel %q", m.Channel)
	}
	if m.Attempt < 0 {
		return fmt.Errorf("attempt must not be negative")
	}
	return nil
}

// MessageHandler processes one task message. A nil return acknowledges the
// message; an error triggers requeue-or-dead-letter handling.
type MessageHandler func(ctx context.Context, msg TaskMessage) error
