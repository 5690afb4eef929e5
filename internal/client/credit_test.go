package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paycollect/loan-notifier/internal/domain"
)

func TestHTTPCreditClientFetchCredit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/credits/C123" {
			t.Errorf("path = %q, want /credits/C123", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "C123",
			"number": "C123",
			"status": "overdue",
			"borrowerId": "B42",
			"phone": "+905551112233",
			"email": "borrower@example.com",
			"company": "acme-collections",
			"remainingDue": 500,
			"currency": "EUR"
		}`))
	}))
	defer server.Close()

	c, err := NewHTTPCreditClient(server.URL)
	if err != nil {
		t.Fatalf("NewHTTPCreditClient() error = %v", err)
	}

	credit, err := c.FetchCredit(context.Background(), "C123")
	if err != nil {
		t.Fatalf("FetchCredit() error = %v", err)
	}

	if credit.Status != domain.CreditStatusOverdue {
		t.Fatalf("Status = %q, want overdue", credit.Status)
	}
	if credit.Contact(domain.ChannelSMS) != "+905551112233" {
		t.Fatalf("Contact(sms) = %q", credit.Contact(domain.ChannelSMS))
	}
	if credit.Contact(domain.ChannelEmail) != "borrower@example.com" {
		t.Fatalf("Contact(email) = %q", credit.Contact(domain.ChannelEmail))
	}
}

func TestHTTPCreditClientNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c, err := NewHTTPCreditClient(server.URL)
	if err != nil {
		t.Fatalf("NewHTTPCreditClient() error = %v", err)
	}

	_, err = c.FetchCredit(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("FetchCredit() error = %v, want ErrNotFound", err)
	}
}

func TestHTTPCreditClientUpstreamFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c, err := NewHTTPCreditClient(server.URL)
	if err != nil {
		t.Fatalf("NewHTTPCreditClient() error = %v", err)
	}

	_, err = c.FetchCreditStatus(context.Background(), "C123")
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("FetchCreditStatus() error = %v, want ErrUpstream", err)
	}
}
