// Package email is the email provider boundary of spec.md §6,
// adapted from notification/cmd/main.go's sendEmail: TLS-first SMTP
// with a plaintext fallback, extended here with a MIME multipart
// body so InvoiceDispatcher can attach a rendered PDF.
package email

import (
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"strings"
)

// Attachment is a single MIME part, e.g. a rendered invoice PDF.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Sender is the contract core sees: send_mail(to, subject, html_body,
// attachments), per spec.md §6.
type Sender interface {
	Send(to, subject, htmlBody string, attachments []Attachment) error
}

type Config struct {
	SMTPHost  string
	SMTPPort  string
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

func (c Config) enabled() bool {
	return c.SMTPHost != "" && c.Username != "" && c.Password != ""
}

// SMTPSender is the default Sender.
type SMTPSender struct {
	config Config
}

func NewSMTPSender(config Config) *SMTPSender {
	return &SMTPSender{config: config}
}

func (s *SMTPSender) Send(to, subject, htmlBody string, attachments []Attachment) error {
	if !s.config.enabled() {
		return fmt.Errorf("email: smtp not configured")
	}
	if to == "" {
		return fmt.Errorf("email: recipient is empty")
	}

	message, err := buildMessage(s.config, to, subject, htmlBody, attachments)
	if err != nil {
		return fmt.Errorf("email: build message: %w", err)
	}

	addr := fmt.Sprintf("%s:%s", s.config.SMTPHost, s.config.SMTPPort)
	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.SMTPHost)

	tlsConfig := &tls.Config{ServerName: s.config.SMTPHost}
	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		// Fall back to regular SMTP, mirroring notification's own
		// TLS-first-then-plain strategy.
		return smtp.SendMail(addr, auth, s.config.FromEmail, []string{to}, message)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return err
	}
	if err := client.Mail(s.config.FromEmail); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(message); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildMessage(config Config, to, subject, htmlBody string, attachments []Attachment) ([]byte, error) {
	var body strings.Builder
	writer := multipart.NewWriter(&body)

	from := fmt.Sprintf("%s <%s>", config.FromName, config.FromEmail)
	var header strings.Builder
	header.WriteString("From: " + from + "\r\n")
	header.WriteString("To: " + to + "\r\n")
	header.WriteString("Subject: " + subject + "\r\n")
	header.WriteString("MIME-Version: 1.0\r\n")
	header.WriteString("Content-Type: multipart/mixed; boundary=" + writer.Boundary() + "\r\n\r\n")

	htmlPart, err := writer.CreatePart(map[string][]string{"Content-Type": {"text/html; charset=UTF-8"}})
	if err != nil {
		return nil, err
	}
	if _, err := htmlPart.Write([]byte(htmlBody)); err != nil {
		return nil, err
	}

	for _, a := range attachments {
		part, err := writer.CreatePart(map[string][]string{
			"Content-Type":              {a.ContentType},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", a.Filename)},
			"Content-Transfer-Encoding": {"base64"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := part.Write([]byte(base64.StdEncoding.EncodeToString(a.Data))); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	return []byte(header.String() + body.String()), nil
}
