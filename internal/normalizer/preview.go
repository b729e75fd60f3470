package normalizer

import (
	"github.com/ricirt/chatpulse/internal/domain"
)

// Preview lengths in runes, by container kind.
const (
	DirectPreviewLimit = 100
	GroupPreviewLimit  = 80
)

const (
	ellipsis             = "..."
	encryptedPlaceholder = "Encrypted message"
	// FallbackBody is used when a job would otherwise carry an empty body.
	FallbackBody = "New message"
)

var mediaPreviews = map[domain.MessageType]string{
	domain.MessageImage:    "Sent a photo",
	domain.MessageVideo:    "Sent a video",
	domain.MessageAudio:    "Sent a voice message",
	domain.MessageFile:     "Sent a file",
	domain.MessageLocation: "Shared a location",
}

// Preview renders the short notification text for ev inside a container of
// the given kind. The encrypted flag overrides every other rule.
func Preview(ev *domain.Event, kind domain.ContainerKind) string {
	if ev.Kind == domain.EventCall {
		if ev.CallMedia == domain.CallVideo {
			return "Incoming video call"
		}
		return "Incoming voice call"
	}
	if ev.Encrypted {
		return encryptedPlaceholder
	}
	if p, ok := mediaPreviews[ev.Type]; ok {
		return p
	}

	limit := DirectPreviewLimit
	if kind == domain.ContainerGroup {
		limit = GroupPreviewLimit
	}
	return Truncate(ev.Body, limit)
}

// Truncate cuts s to limit runes and appends an ellipsis when it had to cut.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + ellipsis
}
