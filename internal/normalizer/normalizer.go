// Package normalizer turns loosely-typed create-event documents into the
// canonical domain.Event used by the fan-out pipeline.
package normalizer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ricirt/chatpulse/internal/domain"
)

// Field aliases seen in message and call documents. The first non-empty
// value wins, so older clients keep working alongside newer ones.
var (
	senderIDKeys   = []string{"senderId", "senderUid", "sender_id", "callerId", "callerUid", "from"}
	senderNameKeys = []string{"senderName", "sendBy", "callerName"}
	bodyKeys       = []string{"message", "body", "text"}
	typeKeys       = []string{"type", "messageType", "msgType"}
	encryptedKeys  = []string{"encrypted", "isEncrypted"}
	timestampKeys  = []string{"timeStamp", "timestamp", "createdAt"}
	callMediaKeys  = []string{"callType", "mediaType"}
)

var typeAliases = map[string]domain.MessageType{
	"text":     domain.MessageText,
	"image":    domain.MessageImage,
	"img":      domain.MessageImage,
	"photo":    domain.MessageImage,
	"video":    domain.MessageVideo,
	"audio":    domain.MessageAudio,
	"voice":    domain.MessageAudio,
	"file":     domain.MessageFile,
	"document": domain.MessageFile,
	"location": domain.MessageLocation,
	"loc":      domain.MessageLocation,
}

// Normalize extracts sender, type, body and metadata from raw.
// It fails with domain.ErrMalformedEvent only when no sender id is present.
func Normalize(raw domain.RawEvent, now time.Time) (*domain.Event, error) {
	senderID := firstString(raw.Fields, senderIDKeys)
	if senderID == "" {
		return nil, fmt.Errorf("event %q in %q: %w", raw.ID, raw.ContainerID, domain.ErrMalformedEvent)
	}

	kind := raw.Kind
	if kind == "" {
		kind = domain.EventMessage
	}

	ev := &domain.Event{
		ID:          raw.ID,
		Kind:        kind,
		ContainerID: raw.ContainerID,
		SenderID:    senderID,
		SenderName:  firstString(raw.Fields, senderNameKeys),
		Type:        parseType(firstString(raw.Fields, typeKeys)),
		Encrypted:   firstBool(raw.Fields, encryptedKeys),
		CreatedAt:   firstTime(raw.Fields, timestampKeys, now),
		Metadata:    map[string]string{},
	}

	if ev.Type == domain.MessageText {
		ev.Body = firstString(raw.Fields, bodyKeys)
	}

	if kind == domain.EventCall {
		ev.CallMedia = domain.CallVoice
		if strings.EqualFold(firstString(raw.Fields, callMediaKeys), "video") {
			ev.CallMedia = domain.CallVideo
		}
		ev.Metadata["callMedia"] = string(ev.CallMedia)
		if callID := firstString(raw.Fields, []string{"callId", "call_id"}); callID != "" {
			ev.Metadata["callId"] = callID
		}
	}

	return ev, nil
}

func parseType(s string) domain.MessageType {
	if t, ok := typeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t
	}
	return domain.MessageText
}

func firstString(fields map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch tv := v.(type) {
		case string:
			s = tv
		case fmt.Stringer:
			s = tv.String()
		case float64:
			s = strconv.FormatFloat(tv, 'f', -1, 64)
		case int:
			s = strconv.Itoa(tv)
		case int64:
			s = strconv.FormatInt(tv, 10)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func firstBool(fields map[string]any, keys []string) bool {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case bool:
			return v
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
	}
	return false
}

// firstTime accepts RFC3339 strings and unix timestamps in seconds or
// milliseconds. Anything else falls back to now.
func firstTime(fields map[string]any, keys []string, now time.Time) time.Time {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case time.Time:
			return v.UTC()
		case string:
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				return t.UTC()
			}
		case float64:
			return unixToTime(v)
		case int64:
			return unixToTime(float64(v))
		case int:
			return unixToTime(float64(v))
		}
	}
	return now.UTC()
}

func unixToTime(v float64) time.Time {
	// Anything past 1e11 cannot be seconds (year 5138); treat it as millis.
	if math.Abs(v) >= 1e11 {
		return time.UnixMilli(int64(v)).UTC()
	}
	return time.Unix(int64(v), 0).UTC()
}
