package mailer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/arkan-dev/bootcamp-api/pkg/config"
)

// Attachment is an optional file shipped with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message describes a single outbound email.
type Message struct {
	To         []string
	Subject    string
	HTMLBody   string
	Attachment *Attachment
}

// Mailer delivers messages over SMTP.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	enabled  bool
}

// New constructs a Mailer from configuration.
func New(cfg config.MailConfig) *Mailer {
	return &Mailer{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		fromName: cfg.FromName,
		enabled:  cfg.Enabled,
	}
}

// Enabled reports whether outbound mail is configured.
func (m *Mailer) Enabled() bool {
	return m != nil && m.enabled && m.host != ""
}

// Send delivers the message. When mail is disabled the send is a no-op.
func (m *Mailer) Send(msg Message) error {
	if !m.Enabled() {
		return nil
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("mailer: no recipients")
	}

	payload, err := m.build(msg)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	if err := smtp.SendMail(addr, auth, m.from, msg.To, payload); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (m *Mailer) build(msg Message) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", m.fromName), m.from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ","))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if msg.Attachment == nil {
		buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
		buf.WriteString(msg.HTMLBody)
		return buf.Bytes(), nil
	}

	const boundary = "bootcamp-mail-boundary"
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	buf.WriteString(msg.HTMLBody)
	buf.WriteString("\r\n")

	contentType := msg.Attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: %s\r\n", contentType)
	buf.WriteString("Content-Transfer-Encoding: base64\r\n")
	fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=%q\r\n\r\n", msg.Attachment.Filename)

	encoded := base64.StdEncoding.EncodeToString(msg.Attachment.Content)
	for len(encoded) > 76 {
		buf.WriteString(encoded[:76])
		buf.WriteString("\r\n")
		encoded = encoded[76:]
	}
	buf.WriteString(encoded)
	buf.WriteString("\r\n")
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes(), nil
}
