package service

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/garyjia/f07-workflow/internal/domain/entity"
)

// MessageData is the data available to notification templates
type MessageData struct {
	RecipientName string
	DocumentNo    string
	Title         string
	Status        string
	Action        string
	Comment       string
	ApprovalURL   string
}

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

var messageTemplates = map[string]messageTemplate{
	entity.TemplateApprovalRequired: mustTemplate(
		"[F07] {{.DocumentNo}} awaits your approval",
		`Hello {{.RecipientName}},

Change request {{.DocumentNo}} "{{.Title}}" is {{.Status}} and needs your decision.
{{- if .ApprovalURL}}
Act on it here: {{.ApprovalURL}}
{{- end}}`),
	entity.TemplateStatusChanged: mustTemplate(
		"[F07] {{.DocumentNo}} is now {{.Status}}",
		`Hello {{.RecipientName}},

Your change request {{.DocumentNo}} "{{.Title}}" moved to {{.Status}}{{if .Action}} after {{.Action}}{{end}}.
{{- if .Comment}}
Comment: {{.Comment}}
{{- end}}`),
	entity.TemplateRequestRejected: mustTemplate(
		"[F07] {{.DocumentNo}} was rejected",
		`Hello {{.RecipientName}},

Your change request {{.DocumentNo}} "{{.Title}}" was rejected.
{{- if .Comment}}
Reason: {{.Comment}}
{{- end}}`),
	entity.TemplateRequestClosed: mustTemplate(
		"[F07] {{.DocumentNo}} is closed",
		`Hello {{.RecipientName}},

Your change request {{.DocumentNo}} "{{.Title}}" has been completed and closed.`),
}

func mustTemplate(subject, body string) messageTemplate {
	return messageTemplate{
		subject: template.Must(template.New("subject").Parse(subject)),
		body:    template.Must(template.New("body").Parse(body)),
	}
}

// RenderMessage renders the subject and body for a template kind
func RenderMessage(kind string, data MessageData) (string, string, error) {
	tmpl, ok := messageTemplates[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown notification template %q", kind)
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return subject.String(), body.String(), nil
}
