// Package mailer sends the site's transactional email through Resend.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

// Message is one outgoing email
type Message struct {
	To      []string
	Subject string
	HTML    string
	ReplyTo string
}

// Sender delivers email
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// ResendSender sends email via the Resend API
type ResendSender struct {
	client *resend.Client
	from   string
	logger zerolog.Logger
}

// NewResendSender creates a sender using apiKey and the default from address
func NewResendSender(apiKey, from string, logger zerolog.Logger) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
		logger: logger.With().Str("component", "mailer").Logger(),
	}
}

// Send sends msg and returns the provider message ID
func (s *ResendSender) Send(ctx context.Context, msg Message) (string, error) {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	if msg.ReplyTo != "" {
		params.ReplyTo = msg.ReplyTo
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", fmt.Errorf("resend send failed: %w", err)
	}

	s.logger.Info().Str("message_id", sent.Id).Strs("to", msg.To).Str("subject", msg.Subject).Msg("Email sent")
	return sent.Id, nil
}

// LogSender logs messages instead of sending them. Used when no API key is configured.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a sender that only logs
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "mailer").Logger()}
}

// Send logs msg
func (s *LogSender) Send(ctx context.Context, msg Message) (string, error) {
	s.logger.Info().Strs("to", msg.To).Str("subject", msg.Subject).Msg("Email delivery disabled, message dropped")
	return "", nil
}

// New returns a Resend sender, or a LogSender when apiKey is empty
func New(apiKey, from string, logger zerolog.Logger) Sender {
	if apiKey == "" {
		return NewLogSender(logger)
	}
	return NewResendSender(apiKey, from, logger)
}

// Inquiry is the data rendered into an inquiry notification
type Inquiry struct {
	Name      string
	Email     string
	Phone     string
	Subject   string
	Message   string
	CreatedAt time.Time
}

var inquiryTemplate = template.Must(template.New("inquiry").Parse(`<h2>New contact inquiry</h2>
<p><strong>From:</strong> {{.Name}} &lt;{{.Email}}&gt;</p>
{{if .Phone}}<p><strong>Phone:</strong> {{.Phone}}</p>{{end}}
{{if .Subject}}<p><strong>Subject:</strong> {{.Subject}}</p>{{end}}
<p><strong>Received:</strong> {{.CreatedAt.Format "2006-01-02 15:04"}}</p>
<p style="white-space: pre-wrap">{{.Message}}</p>
`))

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<h2>Thank you for subscribing</h2>
<p>You will now receive school news and event announcements at {{.}}.</p>
`))

// InquiryNotification builds the email sent to the school office for a new inquiry
func InquiryNotification(officeEmail string, in Inquiry) (Message, error) {
	var buf bytes.Buffer
	if err := inquiryTemplate.Execute(&buf, in); err != nil {
		return Message{}, fmt.Errorf("failed to render inquiry email: %w", err)
	}
	subject := "New contact inquiry from " + in.Name
	if in.Subject != "" {
		subject += ": " + in.Subject
	}
	return Message{
		To:      []string{officeEmail},
		Subject: subject,
		HTML:    buf.String(),
		ReplyTo: in.Email,
	}, nil
}

// NewsletterWelcome builds the welcome email for a new subscriber
func NewsletterWelcome(email string) (Message, error) {
	var buf bytes.Buffer
	if err := welcomeTemplate.Execute(&buf, email); err != nil {
		return Message{}, fmt.Errorf("failed to render welcome email: %w", err)
	}
	return Message{
		To:      []string{email},
		Subject: "Welcome to our school newsletter",
		HTML:    buf.String(),
	}, nil
}
