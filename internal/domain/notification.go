package domain

import "time"

// Priority controls queue ordering and transport delivery hints.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityNormal:
		return true
	}
	return false
}

// Status tracks the lifecycle of a notification job.
// Transitions are monotone: pending -> sent | failed.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// JobError is the last delivery error recorded on a job.
type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NotificationJob is one durable push delivery to one recipient.
type NotificationJob struct {
	ID            string            `json:"id"`
	EventKey      string            `json:"event_key"`
	TargetUserID  string            `json:"target_user_id"`
	SenderID      string            `json:"sender_id"`
	Token         string            `json:"-"`
	Title         string            `json:"title"`
	Body          string            `json:"body"`
	Payload       map[string]string `json:"payload"`
	Priority      Priority          `json:"priority"`
	Status        Status            `json:"status"`
	Attempts      int               `json:"attempts"`
	NextAttemptAt time.Time         `json:"next_attempt_at"`
	ClaimedUntil  *time.Time        `json:"-"`
	ProviderMsgID *string           `json:"provider_message_id,omitempty"`
	LastError     *JobError         `json:"last_error,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Terminal reports whether the job has reached sent or failed.
func (j *NotificationJob) Terminal() bool {
	return j.Status == StatusSent || j.Status == StatusFailed
}

// DeliveryHints are platform-specific knobs passed through to the transport.
type DeliveryHints struct {
	Priority       Priority `json:"priority"`
	AndroidChannel string   `json:"android_channel,omitempty"`
	Sound          string   `json:"sound,omitempty"`
	BadgeIncrement int      `json:"badge_increment,omitempty"`
}

// PushMessage is what the dispatcher hands to the transport.
type PushMessage struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
	Hints DeliveryHints
}
