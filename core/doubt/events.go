package doubt

import "time"

// Relay event names.
const (
	EventNewDoubtSession = "newDoubtSession"
	EventNewMessage      = "newMessage"
	EventNewNotification = "newNotification"
	EventSessionClosed   = "doubtSessionClosed"
)

const excerptLen = 80

type (
	// SessionEvent announces a new trainer-type session on the trainer's personal room.
	SessionEvent struct {
		SessionID   string `json:"session_id"`
		StudentName string `json:"student_name"`
		Excerpt     string `json:"excerpt"`
		SchoolName  string `json:"school_name"`
		Grade       int    `json:"grade"`
	}

	// MessageEvent carries a persisted message, with the sender resolved, to the session room.
	MessageEvent struct {
		Message
		SenderName string `json:"sender_name"`
	}

	// NotificationEvent lands on the student's personal room when a trainer replies.
	NotificationEvent struct {
		ID        string    `json:"id"`
		Type      string    `json:"type"` // "doubt_reply"
		Text      string    `json:"message"`
		Excerpt   string    `json:"excerpt"`
		Timestamp time.Time `json:"timestamp"`
		Read      bool      `json:"read"`
		SessionID string    `json:"session_id"`
	}

	// ClosedEvent announces session closure on the session room.
	ClosedEvent struct {
		SessionID    string `json:"session_id"`
		ClosedByName string `json:"closed_by_name"`
		Status       Status `json:"status"` // "closed"
	}
)

// Excerpt shortens message text for notification payloads.
func Excerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= excerptLen {
		return s
	}
	return string(runes[:excerptLen]) + "…"
}
