package mailx

import (
	"fmt"
	"strings"
	"text/template"
)

// Template renders a Message from a subject and body template pair.
type Template struct {
	subject *template.Template
	body    *template.Template
}

// MustTemplate parses subject and body, panicking on syntax errors. Use it
// for package-level templates only.
func MustTemplate(name, subject, body string) *Template {
	return &Template{
		subject: template.Must(template.New(name + ".subject").Option("missingkey=error").Parse(subject)),
		body:    template.Must(template.New(name + ".body").Option("missingkey=error").Parse(body)),
	}
}

// Render produces a message addressed to to.
func (t *Template) Render(to string, data any) (Message, error) {
	var subject, body strings.Builder
	if err := t.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("mailx: render subject: %w", err)
	}
	if err := t.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("mailx: render body: %w", err)
	}
	return Message{To: to, Subject: subject.String(), Body: body.String()}, nil
}
