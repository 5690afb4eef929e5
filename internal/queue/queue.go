package queue

import (
	"fmt"
	"strings"

	"github.com/paycollect/loan-notifier/internal/domain"
)

var supportedChannels = domain.Channels

// QueueName returns the work queue for a delivery channel.
func QueueName(channel domain.Channel) string {
	return fmt.Sprintf("notifications.%s", strings.ToLower(channel.String()))
}

// DLQName returns the dead-letter queue paired with a channel's work queue.
// Messages land here after delivery gives up and are retained for inspection.
func DLQName(channel domain.Channel) string {
	return fmt.Sprintf("notifications.%s.dlq", strings.ToLower(channel.String()))
}
