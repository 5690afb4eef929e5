package sender

import (
	"context"
	"fmt"
	"strings"

	"github.com/paycollect/loan-notifier/internal/domain"
)

// Message is one outbound notification, rendered and addressed.
type Message struct {
	RecordID    string
	Channel     domain.Channel
	Recipient   string
	Content     string
	TemplateKey string
	Company     string
	// Variables carries the rendered token values for gateways that do
	// their own templating, such as the email provider.
	Variables map[string]string
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.RecordID) == "" {
		return fmt.Errorf("recordId is required")
	}
	if !m.Channel.IsValid() {
		return fmt.Errorf("invalid channel %q", m.Channel)
	}
	if strings.TrimSpace(m.Recipient) == "" {
		return fmt.Errorf("recipient is required")
	}
	if strings.TrimSpace(m.Content) == "" && m.Channel != domain.ChannelEmail {
		return fmt.Errorf("content is required")
	}
	return nil
}

// Sender is the outbound delivery port for one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) (*SendResult, error)
}

// SendResult stores gateway call metadata for audit and persistence.
type SendResult struct {
	Provider   string
	StatusCode int
	Body       string
	MessageID  string
}
