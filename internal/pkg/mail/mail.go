package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/config"
)

// Message is a single email to send.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	Enabled() bool
}

// New picks the transport from cfg: Resend when an API key is set, SMTP when
// a host is set, otherwise a disabled mailer.
func New(cfg config.MailConfig) Mailer {
	if !cfg.Enable {
		return Disabled{}
	}
	if cfg.Resend.APIKey != "" {
		return &ResendMailer{cfg: cfg, client: &http.Client{Timeout: 15 * time.Second}}
	}
	if cfg.SMTP.Host != "" {
		return &SMTPMailer{cfg: cfg}
	}
	return Disabled{}
}

// Disabled drops every message.
type Disabled struct{}

func (Disabled) Send(context.Context, Message) error { return nil }
func (Disabled) Enabled() bool                       { return false }

func sender(cfg config.MailConfig) string {
	if cfg.From != "" {
		return cfg.From
	}
	return cfg.SMTP.User
}

// SMTPMailer sends through an SMTP relay. Port 465 uses implicit TLS, other
// ports upgrade with STARTTLS when the server offers it.
type SMTPMailer struct {
	cfg config.MailConfig
}

func (s *SMTPMailer) Enabled() bool { return true }

func (s *SMTPMailer) Send(ctx context.Context, msg Message) error {
	host := s.cfg.SMTP.Host
	port := s.cfg.SMTP.Port
	if port == 0 {
		port = config.DefaultSMTPPort
	}
	addr := net.JoinHostPort(host, fmt.Sprint(port))

	from := sender(s.cfg)
	envelopeFrom := from
	if parsed, err := mail.ParseAddress(from); err == nil {
		envelopeFrom = parsed.Address
	}

	body, err := buildMessage(s.cfg, from, msg, time.Now())
	if err != nil {
		return err
	}

	conn, err := s.dial(ctx, addr, port)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if port != 465 {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}
	if s.cfg.SMTP.User != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.SMTP.User, s.cfg.SMTP.Pass, host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(envelopeFrom); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range msg.To {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt: %w", err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return c.Quit()
}

func (s *SMTPMailer) dial(ctx context.Context, addr string, port int) (net.Conn, error) {
	d := &net.Dialer{Timeout: 15 * time.Second}
	if port == 465 {
		td := &tls.Dialer{NetDialer: d, Config: &tls.Config{ServerName: s.cfg.SMTP.Host}}
		return td.DialContext(ctx, "tcp", addr)
	}
	return d.DialContext(ctx, "tcp", addr)
}

// buildMessage renders a multipart/alternative MIME message.
func buildMessage(cfg config.MailConfig, from string, msg Message, now time.Time) ([]byte, error) {
	if len(msg.To) == 0 {
		return nil, errors.New("mail: no recipients")
	}
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 {
		domain = strings.TrimRight(from[at+1:], "> ")
	}
	boundary := "silksong-" + strings.ReplaceAll(uuid.NewString(), "-", "")

	var b bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }
	header("MIME-Version", "1.0")
	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), domain))
	header("From", from)
	header("To", strings.Join(msg.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	if cfg.ReplyTo != "" {
		header("Reply-To", cfg.ReplyTo)
	}
	header("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", boundary))
	b.WriteString("\r\n")

	part := func(contentType, content string) {
		fmt.Fprintf(&b, "--%s\r\nContent-Type: %s; charset=UTF-8\r\nContent-Transfer-Encoding: 8bit\r\n\r\n", boundary, contentType)
		b.WriteString(content)
		b.WriteString("\r\n")
	}
	if msg.Text != "" {
		part("text/plain", msg.Text)
	}
	part("text/html", msg.HTML)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.Bytes(), nil
}

// ResendMailer sends through the Resend HTTP API.
type ResendMailer struct {
	cfg    config.MailConfig
	client *http.Client
}

func (r *ResendMailer) Enabled() bool { return true }

func (r *ResendMailer) Send(ctx context.Context, msg Message) error {
	payload := map[string]interface{}{
		"from":    sender(r.cfg),
		"to":      msg.To,
		"subject": msg.Subject,
		"html":    msg.HTML,
	}
	if msg.Text != "" {
		payload["text"] = msg.Text
	}
	if r.cfg.ReplyTo != "" {
		payload["reply_to"] = r.cfg.ReplyTo
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := r.cfg.Resend.Endpoint
	if endpoint == "" {
		endpoint = config.DefaultResendEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.Resend.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&errResp)
		return fmt.Errorf("resend error %d: %s", resp.StatusCode, errResp.Message)
	}
	return nil
}
