package queue

import (
	"fmt"
	"time"

	"github.com/paycollect/loan-notifier/internal/domain"
)

// DelayFloor is the minimum delay applied to any task. Due times in the
// past still travel through the delayed store rather than bypassing it.
const DelayFloor = time.Second

// Task is a delayed delivery task waiting in the store until its record's
// scheduled time arrives.
type Task struct {
	ID       string         `json:"id"`
	RecordID string         `json:"recordId"`
	Channel  domain.Channel `json:"channel"`
	RunAt    time.Time      `json:"runAt"`
	// Attempt carries the broker attempt counter across backoff
	// re-enqueues so a retried task keeps its history.
	Attempt int `json:"attempt,omitempty"`
}

// TaskID derives the deterministic task identity for a record and its
// scheduled time. Dispatching the same record for the same time twice
// produces the same id, which is what makes enqueueing idempotent.
func TaskID(recordID string, scheduledFor time.Time) string {
	return fmt.Sprintf("%s-%d", recordID, scheduledFor.UnixMilli())
}

// TestRunTaskID is the identity used for manually triggered test runs, so a
// test sweep for a record can be found and replaced as a unit.
func TestRunTaskID(recordID string) string {
	return fmt.Sprintf("test-%s", recordID)
}
