package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"task-notifications/internal/models"
)

// Envelope is the wire frame of every push message and command.
type Envelope struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	SentAt  time.Time       `json:"sentAt,omitzero"`
}

// Message is a parsed inbound frame.
type Message struct {
	ID     string
	SentAt time.Time
	Event  Event
}

// MalformedEventError reports a push frame that could not be decoded into a
// known event. Callers log and drop it.
type MalformedEventError struct {
	Type   string
	Reason string
	Err    error
}

func (e *MalformedEventError) Error() string {
	msg := "malformed event"
	if e.Type != "" {
		msg += " " + e.Type
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

// IsMalformed reports whether err is a MalformedEventError.
func IsMalformed(err error) bool {
	var me *MalformedEventError
	return errors.As(err, &me)
}

// Encode wraps ev in a fresh envelope with a unique id.
func Encode(ev Event) ([]byte, error) {
	var body any
	switch e := ev.(type) {
	case NewNotification:
		body = e.Notification
	case StatsUpdated:
		body = e.Stats
	case NewComment:
		body = e.Comment
	default:
		body = ev
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", ev.Kind(), err)
	}
	return json.Marshal(Envelope{
		ID:      uuid.NewString(),
		Type:    ev.Kind().String(),
		Payload: payload,
		SentAt:  time.Now().UTC(),
	})
}

// Parse decodes one inbound frame into its typed event.
func Parse(raw []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, &MalformedEventError{Reason: "invalid envelope", Err: err}
	}
	kind, ok := KindOf(env.Type)
	if !ok {
		return Message{}, &MalformedEventError{Type: env.Type, Reason: "unknown event type"}
	}
	if len(env.Payload) == 0 {
		return Message{}, &MalformedEventError{Type: env.Type, Reason: "missing payload"}
	}

	ev, err := decodePayload(kind, env.Payload)
	if err != nil {
		return Message{}, &MalformedEventError{Type: env.Type, Reason: "invalid payload", Err: err}
	}
	return Message{ID: env.ID, SentAt: env.SentAt, Event: ev}, nil
}

func decodePayload(kind Kind, payload json.RawMessage) (Event, error) {
	switch kind {
	case KindNewNotification:
		var n models.Notification
		if err := json.Unmarshal(payload, &n); err != nil {
			return nil, err
		}
		if n.ID == "" || n.CreatedAt.IsZero() {
			return nil, errors.New("notification requires id and createdAt")
		}
		return NewNotification{Notification: n}, nil

	case KindNotificationRead:
		var e NotificationRead
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		if e.NotificationID == "" {
			return nil, errors.New("notificationId is required")
		}
		return e, nil

	case KindAllNotificationsRead:
		var e AllNotificationsRead
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		if e.ReadAt.IsZero() {
			return nil, errors.New("readAt is required")
		}
		return e, nil

	case KindStatsUpdated:
		var s models.NotificationStats
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, err
		}
		if s.Total < 0 || s.Unread < 0 || s.Unread > s.Total {
			return nil, fmt.Errorf("inconsistent stats total=%d unread=%d", s.Total, s.Unread)
		}
		return StatsUpdated{Stats: s}, nil

	case KindNewComment:
		var c models.Comment
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		if c.ID == "" || c.TaskID == "" {
			return nil, errors.New("comment requires id and taskId")
		}
		return NewComment{Comment: c}, nil
	}
	return nil, fmt.Errorf("no decoder for %s", kind)
}

// EncodeCommand builds an outbound room command frame.
func EncodeCommand(cmd Command, taskID string) ([]byte, error) {
	payload, err := json.Marshal(RoomPayload{TaskID: taskID})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: string(cmd), Payload: payload})
}

// ParseCommand decodes a client command frame on the server side.
func ParseCommand(raw []byte) (Command, RoomPayload, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", RoomPayload{}, fmt.Errorf("decode command: %w", err)
	}
	cmd := Command(env.Type)
	if cmd != CommandJoinTaskRoom && cmd != CommandLeaveTaskRoom {
		return "", RoomPayload{}, fmt.Errorf("unknown command %q", env.Type)
	}
	var p RoomPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return "", RoomPayload{}, fmt.Errorf("decode %s payload: %w", cmd, err)
	}
	if p.TaskID == "" {
		return "", RoomPayload{}, fmt.Errorf("%s requires taskId", cmd)
	}
	return cmd, p, nil
}
