package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	masterdata "metering-dashboard/internal/masterdata/domain"
	reports "metering-dashboard/internal/reports/domain"
)

// Attachment is an optional binary part of an email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// EmailTransport sends one email.
type EmailTransport interface {
	SendMail(ctx context.Context, to, subject, body string, attachment *Attachment) error
}

// EmailChannel delivers artifacts as email attachments.
type EmailChannel struct {
	transport EmailTransport
}

// NewEmailChannel constructs an email channel.
func NewEmailChannel(transport EmailTransport) (*EmailChannel, error) {
	if transport == nil {
		return nil, errors.New("email channel: nil transport")
	}
	return &EmailChannel{transport: transport}, nil
}

// Kind implements Channel.
func (c *EmailChannel) Kind() Kind {
	return KindEmail
}

// Address implements Channel.
func (c *EmailChannel) Address(recipient masterdata.Recipient) (string, bool) {
	if !recipient.HasEmail() {
		return "", false
	}
	return strings.TrimSpace(recipient.Email), true
}

// Send implements Channel.
func (c *EmailChannel) Send(ctx context.Context, address string, artifact reports.Artifact, msg Message) error {
	var attachment *Attachment
	if len(artifact.Data) > 0 {
		attachment = &Attachment{Filename: artifact.Filename, ContentType: artifact.ContentType, Data: artifact.Data}
	}
	return c.transport.SendMail(ctx, address, msg.Subject, msg.Body, attachment)
}

// SMTPConfig holds SMTP server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPTransport sends mail through an SMTP relay.
type SMTPTransport struct {
	cfg     SMTPConfig
	timeout time.Duration
	now     func() time.Time
}

// NewSMTPTransport constructs a transport.
func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp transport: empty host")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp transport: empty from")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPTransport{cfg: cfg, timeout: 30 * time.Second, now: time.Now}, nil
}

// SendMail implements EmailTransport.
func (t *SMTPTransport) SendMail(ctx context.Context, to, subject, body string, attachment *Attachment) error {
	msg, err := buildMessage(t.cfg.From, to, subject, body, attachment, t.now())
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
	dialer := net.Dialer{Timeout: t.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp transport: dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(t.timeout))
	}
	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp transport: handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: t.cfg.Host}); err != nil {
			return fmt.Errorf("smtp transport: starttls: %w", err)
		}
	}
	if t.cfg.Username != "" {
		auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp transport: auth: %w", err)
		}
	}
	if err := client.Mail(t.cfg.From); err != nil {
		return fmt.Errorf("smtp transport: mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp transport: rcpt: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp transport: data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("smtp transport: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp transport: close data: %w", err)
	}
	return client.Quit()
}

func buildMessage(from, to, subject, body string, attachment *Attachment, at time.Time) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", at.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	textPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := textPart.Write([]byte(strings.ReplaceAll(body, "\n", "\r\n"))); err != nil {
		return nil, err
	}

	if attachment != nil {
		contentType := attachment.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {contentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": attachment.Filename})},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64Lines(part, attachment.Data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeBase64Lines(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	const lineLen = 76
	for len(encoded) > 0 {
		n := lineLen
		if len(encoded) < n {
			n = len(encoded)
		}
		if _, err := w.Write([]byte(encoded[:n] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}
