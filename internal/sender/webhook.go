package sender

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultGatewayTimeout = 10 * time.Second

type webhookRequest struct {
	To      string `json:"to"`
	Channel string `json:"channel"`
	Content string `json:"content"`
}

// WebhookSender delivers through a JSON webhook gateway. The SMS, push and
// voice call providers all expose this shape, so one sender type covers
// them with different endpoints.
type WebhookSender struct {
	client   *resty.Client
	endpoint string
	name     string
}

func NewWebhookSender(name, endpoint string) (*WebhookSender, error) {
	client := resty.New()
	client.SetTimeout(defaultGatewayTimeout)
	client.SetRetryCount(0)

	return NewWebhookSenderWithClient(name, endpoint, client)
}

func NewWebhookSenderWithClient(name, endpoint string, client *resty.Client) (*WebhookSender, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("gateway endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid gateway endpoint: %w", err)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("gateway name is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultGatewayTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookSender{
		client:   client,
		endpoint: trimmedEndpoint,
		name:     name,
	}, nil
}

func (s *WebhookSender) Send(ctx context.Context, msg Message) (*SendResult, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("sender is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	reqBody := webhookRequest{
		To:      msg.Recipient,
		Channel: strings.ToLower(msg.Channel.String()),
		Content: msg.Content,
	}

	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(s.endpoint)
	if err != nil {
		return nil, &DeliveryError{
			Message:   fmt.Sprintf("%s request failed", s.name),
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &DeliveryError{
			Message:   fmt.Sprintf("%s returned empty response", s.name),
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &SendResult{
			Provider:   s.name,
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  gatewayMessageID(response),
		}, nil
	}

	return nil, &DeliveryError{
		StatusCode: statusCode,
		Message:    gatewayErrorMessage(s.name, statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func gatewayErrorMessage(name string, statusCode int, body string) string {
	base := fmt.Sprintf("%s returned status %d", name, statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func gatewayMessageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Request-ID", "X-Request-Id", "X-Correlation-ID", "X-Correlation-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
