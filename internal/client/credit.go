package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/paycollect/loan-notifier/internal/domain"
)

const defaultCreditTimeout = 10 * time.Second

// CreditClient reads credit state and borrower contacts from the upstream
// credit service.
type CreditClient interface {
	FetchCredit(ctx context.Context, creditID string) (*Credit, error)
	FetchCreditStatus(ctx context.Context, creditID string) (domain.CreditStatus, error)
}

// Credit is the upstream view of a loan used for addressing and templating.
type Credit struct {
	ID           string              `json:"id"`
	Number       string              `json:"number"`
	Status       domain.CreditStatus `json:"status"`
	BorrowerID   string              `json:"borrowerId"`
	Phone        string              `json:"phone"`
	Email        string              `json:"email"`
	PushToken    string              `json:"pushToken"`
	Company      string              `json:"company"`
	RemainingDue float64             `json:"remainingDue"`
	Currency     string              `json:"currency"`
}

// Contact returns the delivery address for a channel, or an empty string
// when the borrower has none for it.
func (c *Credit) Contact(channel domain.Channel) string {
	if c == nil {
		return ""
	}
	switch channel {
	case domain.ChannelSMS, domain.ChannelAICall:
		return c.Phone
	case domain.ChannelEmail:
		return c.Email
	case domain.ChannelPush:
		return c.PushToken
	default:
		return ""
	}
}

type HTTPCreditClient struct {
	client  *resty.Client
	baseURL string
}

func NewHTTPCreditClient(baseURL string) (*HTTPCreditClient, error) {
	client := resty.New()
	client.SetTimeout(defaultCreditTimeout)
	client.SetRetryCount(0)

	return NewHTTPCreditClientWithClient(baseURL, client)
}

func NewHTTPCreditClientWithClient(baseURL string, client *resty.Client) (*HTTPCreditClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("credit service url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid credit service url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultCreditTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPCreditClient{
		client:  client,
		baseURL: trimmed,
	}, nil
}

func (c *HTTPCreditClient) FetchCredit(ctx context.Context, creditID string) (*Credit, error) {
	if strings.TrimSpace(creditID) == "" {
		return nil, fmt.Errorf("%w: credit id is required", domain.ErrValidation)
	}

	response, err := c.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/credits/%s", c.baseURL, url.PathEscape(creditID)))
	if err != nil {
		return nil, fmt.Errorf("%w: credit service request failed: %v", domain.ErrUpstream, err)
	}

	switch {
	case response.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("%w: credit %q", domain.ErrNotFound, creditID)
	case response.StatusCode() != http.StatusOK:
		return nil, fmt.Errorf("%w: credit service returned status %d", domain.ErrUpstream, response.StatusCode())
	}

	var credit Credit
	if err := json.Unmarshal(response.Body(), &credit); err != nil {
		return nil, fmt.Errorf("%w: invalid credit payload: %v", domain.ErrUpstream, err)
	}

	return &credit, nil
}

func (c *HTTPCreditClient) FetchCreditStatus(ctx context.Context, creditID string) (domain.CreditStatus, error) {
	credit, err := c.FetchCredit(ctx, creditID)
	if err != nil {
		return "", err
	}
	if !credit.Status.IsValid() {
		return "", fmt.Errorf("%w: unknown credit status %q", domain.ErrUpstream, credit.Status)
	}
	return credit.Status, nil
}
