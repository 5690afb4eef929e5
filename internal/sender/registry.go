package sender

import (
	"fmt"

	"github.com/paycollect/loan-notifier/internal/domain"
)

// Registry resolves the sender for a delivery channel.
type Registry struct {
	senders map[domain.Channel]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: map[domain.Channel]Sender{}}
}

func (r *Registry) Register(channel domain.Channel, s Sender) {
	r.senders[channel] = s
}

func (r *Registry) For(channel domain.Channel) (Sender, error) {
	s, ok := r.senders[channel]
	if !ok || s == nil {
		return nil, fmt.Errorf("%w: no sender registered for channel %q", domain.ErrConfiguration, channel)
	}
	return s, nil
}
