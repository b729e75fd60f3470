package domain

import "strings"

// ContainerKind distinguishes a two-party chat from a named group.
type ContainerKind string

const (
	ContainerDirect ContainerKind = "direct"
	ContainerGroup  ContainerKind = "group"
)

func (k ContainerKind) IsValid() bool {
	switch k {
	case ContainerDirect, ContainerGroup:
		return true
	}
	return false
}

// RetentionPolicy controls automatic message expiry for a container.
type RetentionPolicy struct {
	Enabled         bool `json:"enabled"`
	DurationMinutes int  `json:"duration_minutes"`
}

// Active reports whether the sweeper should touch the container at all.
func (p RetentionPolicy) Active() bool {
	return p.Enabled && p.DurationMinutes > 0
}

// Container is a conversation scope owning messages.
type Container struct {
	ID                 string          `json:"id"`
	Kind               ContainerKind   `json:"kind"`
	Name               string          `json:"name,omitempty"`
	Members            []string        `json:"members"`
	Retention          RetentionPolicy `json:"retention"`
	LastMessagePreview string          `json:"last_message_preview"`
	LastMessageType    MessageType     `json:"last_message_type"`
}

// Participants returns the explicit member list. Direct containers created
// before members were stored fall back to the legacy "<uidA>_<uidB>" id.
func (c *Container) Participants() []string {
	if len(c.Members) > 0 || c.Kind != ContainerDirect {
		return c.Members
	}
	parts := strings.Split(c.ID, "_")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
