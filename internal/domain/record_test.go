package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseChannelFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Channel
		wantErr bool
	}{
		{"sms", ChannelSMS, false},
		{" EMAIL ", ChannelEmail, false},
		{"push", ChannelPush, false},
		{"ai_call", ChannelAICall, false},
		{"fax", "", true},
		{"", "", true},
	}

	for _, tc := range tests {
		got, err := ParseChannelFromString(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseChannelFromString(%q) expected error", tc.input)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("ParseChannelFromString(%q) error = %v, want ErrValidation", tc.input, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseChannelFromString(%q) error = %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("ParseChannelFromString(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestRecordValidate(t *testing.T) {
	t.Parallel()

	valid := NotificationRecord{
		PlanID:          "p1",
		CreditID:        "C123",
		BorrowerID:      "B1",
		Stage:           StagePreventive,
		Day:             -3,
		Channel:         ChannelSMS,
		MessageTemplate: "PREVENTIVE_-3",
		MessageContent:  "Payment of 500 EUR due soon for C123",
		ScheduledFor:    time.Date(2024, 6, 7, 9, 0, 0, 0, time.UTC),
		Status:          RecordStatusScheduled,
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	missingContent := valid
	missingContent.MessageContent = ""
	if err := missingContent.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() without content = %v, want ErrValidation", err)
	}

	badChannel := valid
	badChannel.Channel = Channel("carrier_pigeon")
	if err := badChannel.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() with bad channel = %v, want ErrValidation", err)
	}
}

func TestCreditStatusTerminatesCollection(t *testing.T) {
	t.Parallel()

	terminal := []CreditStatus{CreditStatusClosed, CreditStatusCancelled, CreditStatusRestructured}
	for _, s := range terminal {
		if !s.TerminatesCollection() {
			t.Fatalf("%s.TerminatesCollection() = false, want true", s)
		}
	}
	for _, s := range []CreditStatus{CreditStatusActive, CreditStatusOverdue} {
		if s.TerminatesCollection() {
			t.Fatalf("%s.TerminatesCollection() = true, want false", s)
		}
	}
}
