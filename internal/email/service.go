// Package email forwards daily summaries to a user's superior over SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewService creates a new email service
func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SummaryMail is the content of a forwarded daily summary.
type SummaryMail struct {
	To            string
	RecipientName string
	AuthorName    string
	Date          string
	// BodyHTML is the summary already rendered from Markdown.
	BodyHTML template.HTML
}

// SendSummary mails a daily summary to the author's superior.
func (s *Service) SendSummary(mail SummaryMail) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}
	if strings.TrimSpace(mail.To) == "" {
		return fmt.Errorf("summary recipient has no email address")
	}

	html, err := renderTemplate(summaryEmailTemplate, mail)
	if err != nil {
		return fmt.Errorf("render summary template: %w", err)
	}
	subject := fmt.Sprintf("Daily summary from %s (%s)", mail.AuthorName, mail.Date)
	return s.sendHTML([]string{mail.To}, subject, html)
}

func (s *Service) sendHTML(to []string, subject, htmlBody string) error {
	msg := s.buildMessage(to, subject, htmlBody)
	return s.send(s.server, s.auth, s.config.From, to, msg)
}

func (s *Service) buildMessage(to []string, subject, htmlBody string) []byte {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.config.FromName), s.config.From)
	}

	boundary := "boundary-workhub"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)
	return msg.Bytes()
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const summaryEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Daily summary from {{.AuthorName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 680px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Workhub</h1>
    </div>

    <p>Hi {{.RecipientName}},</p>
    <p>{{.AuthorName}} sent you their daily summary for {{.Date}}.</p>

    <div class="summary">{{.BodyHTML}}</div>

    <div class="footer">
        <p>You receive this because you are listed as {{.AuthorName}}'s superior in Workhub.</p>
    </div>
</body>
</html>`
