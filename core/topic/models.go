package topic

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Topic is a curriculum entry a trainer-type doubt session is anchored to.
type Topic struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Subject   string    `json:"subject"`
	Grade     int       `json:"grade"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewTopic contains information needed to create a new Topic.
type NewTopic struct {
	Title   string `json:"title" validate:"required"`
	Subject string `json:"subject" validate:"required"`
	Grade   int    `json:"grade" validate:"required,min=1,max=12"`
}

func (nt *NewTopic) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Subject = core.CleanString(nt.Subject)
	return validate.Struct(nt)
}
