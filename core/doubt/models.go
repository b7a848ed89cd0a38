package doubt

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Session types
type Type string

const (
	TypeTrainer Type = "trainer"
	TypeAI      Type = "ai"
)

// Session statuses
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
	StatusCancelled  Status = "cancelled"
)

// Message sender roles
type SenderRole string

const (
	SenderStudent SenderRole = "student"
	SenderTrainer SenderRole = "trainer"
	SenderAI      SenderRole = "ai"
	SenderSystem  SenderRole = "system"
)

// Session is a single help-request thread between a student and either a
// trainer or the simulated AI responder. The student reference is immutable
// after creation; sessions are never physically deleted (audit/history).
type Session struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"student_id"`
	TrainerID     string    `json:"trainer_id,omitempty"` // empty for ai sessions
	TopicID       string    `json:"topic_id,omitempty"`   // required for trainer sessions
	SchoolID      string    `json:"school_id"`
	Grade         int       `json:"grade"`
	Type          Type      `json:"doubt_type"`
	Status        Status    `json:"status"`
	DoubtText     string    `json:"doubt_text"`
	LastMessageAt time.Time `json:"last_message_at"` // UTC
	AIHelpful     *bool     `json:"ai_helpful,omitempty"`
	AIFeedback    string    `json:"ai_feedback,omitempty"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

// IsTerminal reports whether no further transitions are permitted.
// A resolved ai session is reopenable, not terminal.
func (s *Session) IsTerminal() bool {
	return s.Status == StatusClosed || s.Status == StatusCancelled
}

func (s *Session) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return s.StudentID == userID || (s.TrainerID != "" && s.TrainerID == userID)
}

// Message is one chat entry in a Session; immutable once created.
// Exactly one of Text / AttachmentURL is set.
type Message struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"session_id"`
	SenderID      string     `json:"sender_id,omitempty"` // empty for ai/system senders
	SenderRole    SenderRole `json:"sender_role"`
	Text          string     `json:"message_text,omitempty"`
	AttachmentURL string     `json:"attachment_url,omitempty"`
	CreatedAt     time.Time  `json:"created_at"` // UTC; replay order
}

// NewTrainerDoubt contains information needed to initiate a trainer-type session.
type NewTrainerDoubt struct {
	TrainerID     string `json:"trainer_id" validate:"required"`
	TopicID       string `json:"topic_id" validate:"required"`
	Text          string `json:"message_text"`
	AttachmentURL string `json:"attachment_url" validate:"omitempty,url"`
}

func (nd *NewTrainerDoubt) Validate(validate *validator.Validate) error {
	nd.Text = core.CleanString(nd.Text)
	nd.AttachmentURL = core.CleanString(nd.AttachmentURL)
	return validate.Struct(nd)
}

// NewAIDoubt contains information needed to initiate an ai-type session.
type NewAIDoubt struct {
	Text          string `json:"message_text"`
	AttachmentURL string `json:"attachment_url" validate:"omitempty,url"`
}

func (nd *NewAIDoubt) Validate(validate *validator.Validate) error {
	nd.Text = core.CleanString(nd.Text)
	nd.AttachmentURL = core.CleanString(nd.AttachmentURL)
	return validate.Struct(nd)
}

// NewMessage is a follow-up message on an existing session.
type NewMessage struct {
	Text          string `json:"message_text"`
	AttachmentURL string `json:"attachment_url" validate:"omitempty,url"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Text = core.CleanString(nm.Text)
	nm.AttachmentURL = core.CleanString(nm.AttachmentURL)
	return validate.Struct(nm)
}

// AIFeedback is the student's helpfulness verdict on an ai session.
type AIFeedback struct {
	Helpful *bool  `json:"helpful" validate:"required"`
	Comment string `json:"comment"`
}

func (fb *AIFeedback) Validate(validate *validator.Validate) error {
	fb.Comment = core.CleanString(fb.Comment)
	return validate.Struct(fb)
}

type QueryFilter struct {
	StudentID string `query:"student"`
	TrainerID string `query:"trainer"`
	SchoolID  string `query:"school"`
	Grade     int    `query:"grade"`
	Type      Type   `query:"doubt_type"`
	Status    Status `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.TrainerID == "" && qf.SchoolID == "" &&
		qf.Grade == 0 && qf.Type == "" && qf.Status == ""
}
