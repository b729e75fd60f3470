package domain

import "time"

// MessageType is the content kind of a chat message.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageVideo    MessageType = "video"
	MessageAudio    MessageType = "audio"
	MessageFile     MessageType = "file"
	MessageLocation MessageType = "location"
)

func (t MessageType) IsValid() bool {
	switch t {
	case MessageText, MessageImage, MessageVideo, MessageAudio, MessageFile, MessageLocation:
		return true
	}
	return false
}

// Message belongs to exactly one container and is immutable once created.
type Message struct {
	ID          string      `json:"id"`
	ContainerID string      `json:"container_id"`
	SenderID    string      `json:"sender_id"`
	CreatedAt   time.Time   `json:"created_at"`
	Type        MessageType `json:"type"`
	Body        string      `json:"body,omitempty"`
	Encrypted   bool        `json:"encrypted"`
}

// User is owned by the profile store; the core reads it and may clear the token.
type User struct {
	ID                   string  `json:"id"`
	DisplayName          string  `json:"display_name"`
	DeliveryToken        *string `json:"-"`
	NotificationsEnabled bool    `json:"notifications_enabled"`
}

// Reachable reports whether a push notification can be addressed to u.
func (u *User) Reachable() bool {
	return u.NotificationsEnabled && u.DeliveryToken != nil && *u.DeliveryToken != ""
}
