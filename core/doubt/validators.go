package doubt

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

var (
	textOrAttachmentTag  = "text_or_attachment"
	textOrAttachmentText = "exactly one of message_text or attachment_url is required"
)

// InitValidators registers package validators on the shared validator instance.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(contentStructValidation, NewTrainerDoubt{}, NewAIDoubt{}, NewMessage{})
	core.RegisterCustomTranslation(validate, translator, textOrAttachmentTag, textOrAttachmentText)
}

// contentStructValidation enforces the message-content invariant:
// exactly one of Text / AttachmentURL must be populated.
func contentStructValidation(sl validator.StructLevel) {
	var text, attachment string
	switch v := sl.Current().Interface().(type) {
	case NewTrainerDoubt:
		text, attachment = v.Text, v.AttachmentURL
	case NewAIDoubt:
		text, attachment = v.Text, v.AttachmentURL
	case NewMessage:
		text, attachment = v.Text, v.AttachmentURL
	default:
		return
	}
	if (text == "") == (attachment == "") {
		sl.ReportError(text, "message_text", "Text", textOrAttachmentTag, "")
	}
}
