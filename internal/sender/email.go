package sender

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/paycollect/loan-notifier/internal/domain"
)

type emailRequest struct {
	To         string            `json:"to"`
	TemplateID string            `json:"templateId"`
	Variables  map[string]string `json:"variables,omitempty"`
}

// EmailSender delivers through a template based email gateway. The gateway
// template is resolved from the message's template key and the borrower's
// collection company, falling back to a company independent template.
type EmailSender struct {
	client    *resty.Client
	endpoint  string
	templates map[string]string
}

// TemplateMapKey builds a lookup key for a template and company pair.
func TemplateMapKey(templateKey, company string) string {
	company = strings.ToLower(strings.TrimSpace(company))
	if company == "" {
		return templateKey
	}
	return fmt.Sprintf("%s:%s", templateKey, company)
}

func NewEmailSender(endpoint string, templates map[string]string) (*EmailSender, error) {
	client := resty.New()
	client.SetTimeout(defaultGatewayTimeout)
	client.SetRetryCount(0)

	return NewEmailSenderWithClient(endpoint, templates, client)
}

func NewEmailSenderWithClient(endpoint string, templates map[string]string, client *resty.Client) (*EmailSender, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("email gateway endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid email gateway endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultGatewayTimeout)
	}
	client.SetRetryCount(0)

	if templates == nil {
		templates = map[string]string{}
	}

	return &EmailSender{
		client:    client,
		endpoint:  trimmedEndpoint,
		templates: templates,
	}, nil
}

// resolveTemplateID looks up the gateway template for a message. A missing
// mapping is a configuration fault, not a delivery fault, and is never
// retried.
func (s *EmailSender) resolveTemplateID(msg Message) (string, error) {
	if id, ok := s.templates[TemplateMapKey(msg.TemplateKey, msg.Company)]; ok {
		return id, nil
	}
	if id, ok := s.templates[msg.TemplateKey]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: no email template for key %q company %q",
		domain.ErrConfiguration, msg.TemplateKey, msg.Company)
}

func (s *EmailSender) Send(ctx context.Context, msg Message) (*SendResult, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("sender is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	templateID, err := s.resolveTemplateID(msg)
	if err != nil {
		return nil, err
	}

	reqBody := emailRequest{
		To:         msg.Recipient,
		TemplateID: templateID,
		Variables:  msg.Variables,
	}

	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(s.endpoint)
	if err != nil {
		return nil, &DeliveryError{
			Message:   "email gateway request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &DeliveryError{
			Message:   "email gateway returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &SendResult{
			Provider:   "email",
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  gatewayMessageID(response),
		}, nil
	}

	return nil, &DeliveryError{
		StatusCode: statusCode,
		Message:    gatewayErrorMessage("email gateway", statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}
