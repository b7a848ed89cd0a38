package core_test

import (
	"strings"
	"testing"

	"github.com/trezcool/darasa/core"
)

func TestEmailMessage_Render(t *testing.T) {
	if core.Conf == nil {
		core.NewConfig()
	}

	t.Run("welcome template", func(t *testing.T) {
		msg := &core.EmailMessage{
			Subject:      "Welcome",
			TemplateName: "welcome",
			TemplateData: struct{ Name, AppName string }{"Imani", "Darasa"},
		}
		if err := msg.Render(); err != nil {
			t.Fatalf("Render(): %v", err)
		}
		for _, want := range []string{"Imani", "Darasa", core.Conf.FrontendBaseURL} {
			if !strings.Contains(msg.TextContent, want) {
				t.Errorf("TextContent missing %q:\n%s", want, msg.TextContent)
			}
			if !strings.Contains(msg.HTMLContent, want) {
				t.Errorf("HTMLContent missing %q:\n%s", want, msg.HTMLContent)
			}
		}
		if !strings.Contains(msg.HTMLContent, "<a href=") {
			t.Errorf("HTMLContent is not hypertext:\n%s", msg.HTMLContent)
		}
	})

	t.Run("new doubt template", func(t *testing.T) {
		msg := &core.EmailMessage{
			Subject:      "New doubt assigned",
			TemplateName: "new_doubt",
			TemplateData: struct {
				TrainerName, StudentName, SchoolName, Question string
				Grade                                          int
			}{"Mr. Kato", "Imani", "Lycée Mobutu", "How do fractions work?", 7},
		}
		if err := msg.Render(); err != nil {
			t.Fatalf("Render(): %v", err)
		}
		for _, want := range []string{"Mr. Kato", "Imani", "Lycée Mobutu", "How do fractions work?", "grade 7"} {
			if !strings.Contains(msg.TextContent, want) {
				t.Errorf("TextContent missing %q:\n%s", want, msg.TextContent)
			}
		}
		if !msg.HasContent() {
			t.Error("HasContent() = false")
		}
	})

	t.Run("plain body bypasses templates", func(t *testing.T) {
		msg := &core.EmailMessage{Subject: "Reset", BodyStr: "Follow this link."}
		if err := msg.Render(); err != nil {
			t.Fatalf("Render(): %v", err)
		}
		if msg.TextContent != "Follow this link." {
			t.Errorf("TextContent = %q", msg.TextContent)
		}
		if msg.HTMLContent != "" {
			t.Errorf("HTMLContent = %q; want empty", msg.HTMLContent)
		}
	})

	t.Run("unknown template renders nothing", func(t *testing.T) {
		msg := &core.EmailMessage{Subject: "?", TemplateName: "does_not_exist"}
		if err := msg.Render(); err != nil {
			t.Fatalf("Render(): %v", err)
		}
		if msg.HasContent() {
			t.Errorf("HasContent() = true: %q / %q", msg.TextContent, msg.HTMLContent)
		}
	})
}
