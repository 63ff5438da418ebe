package delivery

import (
	"bytes"
	"errors"
	"strings"
	"text/template"
)

const (
	DefaultSubjectTemplate = `[Report] {{.Title}}{{ if .Window }} ({{.Window}}){{ end }}`

	DefaultBodyTemplate = `{{.Title}}
Meters: {{.Meters}}
Window: {{.Window}}
Generated: {{.GeneratedAt}}
File: {{.Filename}}
{{- if .Issues }}
Incomplete data: {{.Issues}} issue(s) recorded for this run.
{{- end }}
{{- if .Link }}
Download: {{.Link}}
{{- end }}
`
)

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	ScheduleID  string
	Title       string
	Meters      string
	Window      string
	GeneratedAt string
	Filename    string
	Format      string
	Link        string
	Issues      int
}

// Template renders notification subject and body.
type Template struct {
	subject *template.Template
	body    *template.Template
}

// NewTemplate parses templates, falling back to the defaults for empty input.
func NewTemplate(subject, body string) (*Template, error) {
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubjectTemplate
	}
	if strings.TrimSpace(body) == "" {
		body = DefaultBodyTemplate
	}
	subjectTpl, err := template.New("report-subject").Parse(subject)
	if err != nil {
		return nil, err
	}
	bodyTpl, err := template.New("report-body").Parse(body)
	if err != nil {
		return nil, err
	}
	return &Template{subject: subjectTpl, body: bodyTpl}, nil
}

// Render builds the message. The link also becomes the message link.
func (t *Template) Render(data TemplateData) (Message, error) {
	if t == nil || t.subject == nil || t.body == nil {
		return Message{}, errors.New("report template: nil")
	}
	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return Message{}, err
	}
	if err := t.body.Execute(&body, data); err != nil {
		return Message{}, err
	}
	return Message{
		Subject: strings.TrimSpace(subject.String()),
		Body:    body.String(),
		Link:    data.Link,
	}, nil
}
