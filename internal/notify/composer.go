package notify

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"
)

// Composer renders a payload into message text
type Composer interface {
	Compose(ctx context.Context, p Payload) (Message, error)
}

var (
	upcomingTmpl = template.Must(template.New("upcoming").Parse(
		"Reminder: take {{.Dosage}} of {{.MedicationName}} at {{.At}}."))
	overdueTmpl = template.Must(template.New("overdue").Parse(
		"{{.MedicationName}} ({{.Dosage}}) was due at {{.At}}{{if .Late}}, {{.Late}} minutes ago{{end}}. Log it once you have taken it."))
)

type templateData struct {
	MedicationName string
	Dosage         string
	At             string
	Late           int
}

// TemplateComposer renders fixed text templates
type TemplateComposer struct{}

func NewTemplateComposer() *TemplateComposer {
	return &TemplateComposer{}
}

func (TemplateComposer) Compose(_ context.Context, p Payload) (Message, error) {
	data := templateData{
		MedicationName: p.MedicationName,
		Dosage:         p.Dosage.String(),
		At:             p.ScheduledTime.Format("15:04"),
	}
	if p.MinutesLate != nil {
		data.Late = *p.MinutesLate
	}

	tmpl, subject := upcomingTmpl, fmt.Sprintf("Upcoming dose: %s", p.MedicationName)
	if p.Kind == KindOverdue {
		tmpl, subject = overdueTmpl, fmt.Sprintf("Missed dose: %s", p.MedicationName)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("failed to render %s template: %w", p.Kind, err)
	}
	return Message{Subject: subject, Body: buf.String()}, nil
}

// ChatClient is the part of the Azure OpenAI client the composer needs
type ChatClient interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

const reminderSystemPrompt = `You write short, friendly medication reminders.
Reply with one or two sentences of plain text. Never give medical advice and never change the dose.`

// AIComposer asks a chat model for the wording and falls back to the template on any error
type AIComposer struct {
	client   ChatClient
	fallback Composer
	timeout  time.Duration
	logger   *zap.Logger
}

func NewAIComposer(client ChatClient, fallback Composer, timeout time.Duration, logger *zap.Logger) *AIComposer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AIComposer{client: client, fallback: fallback, timeout: timeout, logger: logger}
}

func (c *AIComposer) Compose(ctx context.Context, p Payload) (Message, error) {
	base, err := c.fallback.Compose(ctx, p)
	if err != nil {
		return Message{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := fmt.Sprintf("Rewrite this %s reminder: %s", p.Kind, base.Body)
	text, err := c.client.Chat(ctx, reminderSystemPrompt, prompt)
	if err != nil {
		c.logger.Warn("reminder wording unavailable, using template",
			zap.String("user_id", p.UserID),
			zap.String("regimen_id", p.RegimenID),
			zap.Error(err),
		)
		return base, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return base, nil
	}
	return Message{Subject: base.Subject, Body: text}, nil
}
