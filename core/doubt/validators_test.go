package doubt_test

import (
	"strings"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/doubt"
)

func newTestValidator(t *testing.T) *validator.Validate {
	t.Helper()

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	doubt.InitValidators(validate, translator)
	return validate
}

func TestMessageContentValidation(t *testing.T) {
	validate := newTestValidator(t)

	tests := []struct {
		name    string
		text    string
		attach  string
		wantErr bool
	}{
		{name: "both empty", wantErr: true},
		{name: "both set", text: "what is 2+2?", attach: "https://cdn.test.cd/doubts/sum.png", wantErr: true},
		{name: "text only", text: "what is 2+2?"},
		{name: "attachment only", attach: "https://cdn.test.cd/doubts/sum.png"},
		{name: "whitespace text counts as empty", text: "   ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nm := doubt.NewMessage{Text: tt.text, AttachmentURL: tt.attach}
			err := nm.Validate(validate)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Validate() = nil; want content error")
				}
				if !strings.Contains(err.Error(), "message_text") {
					t.Errorf("Validate() = %v; want message_text content error", err)
				}
			} else if err != nil {
				t.Errorf("Validate() = %v; want nil", err)
			}
		})
	}

	// the same exclusivity rule guards session initiation payloads
	t.Run("trainer doubt with both fields", func(t *testing.T) {
		nd := doubt.NewTrainerDoubt{
			TrainerID:     "t1",
			TopicID:       "top1",
			Text:          "see attached",
			AttachmentURL: "https://cdn.test.cd/doubts/sum.png",
		}
		if err := nd.Validate(validate); err == nil {
			t.Fatal("Validate() = nil; want content error")
		}
	})
	t.Run("ai doubt with neither field", func(t *testing.T) {
		nd := doubt.NewAIDoubt{}
		if err := nd.Validate(validate); err == nil {
			t.Fatal("Validate() = nil; want content error")
		}
	})
}
