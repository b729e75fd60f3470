package provider

import (
	"context"
	"fmt"

	"github.com/ricirt/chatpulse/internal/domain"
)

// SendResponse carries the backend's receipt for an accepted push.
type SendResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status,omitempty"`
}

// Provider abstracts delivery to a push-messaging backend.
//
// Send returns a *domain.TransportError for a per-message rejection (the job
// fails and is never retried) or an error wrapping
// domain.ErrTransportUnavailable when the backend could not be reached.
type Provider interface {
	Send(ctx context.Context, msg *domain.PushMessage) (*SendResponse, error)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrTransportUnavailable, err)
}
