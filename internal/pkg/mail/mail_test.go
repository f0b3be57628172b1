package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	sent []Message
}

func (r *recordingMailer) Send(_ context.Context, msg Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingMailer) Enabled() bool { return true }

func TestNewPicksTransport(t *testing.T) {
	assert.IsType(t, Disabled{}, New(config.MailConfig{}))
	assert.IsType(t, Disabled{}, New(config.MailConfig{Enable: true}))
	assert.IsType(t, &SMTPMailer{}, New(config.MailConfig{Enable: true, SMTP: config.SMTPConfig{Host: "smtp.example"}}))
	assert.IsType(t, &ResendMailer{}, New(config.MailConfig{Enable: true, Resend: config.ResendConfig{APIKey: "re_x"}}))
	assert.False(t, New(config.MailConfig{}).Enabled())
}

func TestResendSend(t *testing.T) {
	var got map[string]interface{}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"1"}`))
	}))
	defer srv.Close()

	m := New(config.MailConfig{
		Enable:  true,
		From:    "Silksong <news@silksong.example>",
		ReplyTo: "hi@silksong.example",
		Resend:  config.ResendConfig{APIKey: "re_key", Endpoint: srv.URL},
	})
	err := m.Send(context.Background(), Message{To: []string{"a@b.com"}, Subject: "hello", HTML: "<p>x</p>"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer re_key", auth)
	assert.Equal(t, "Silksong <news@silksong.example>", got["from"])
	assert.Equal(t, []interface{}{"a@b.com"}, got["to"])
	assert.Equal(t, "hi@silksong.example", got["reply_to"])
}

func TestResendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer srv.Close()

	m := New(config.MailConfig{Enable: true, Resend: config.ResendConfig{APIKey: "k", Endpoint: srv.URL}})
	err := m.Send(context.Background(), Message{To: []string{"a@b.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "invalid from")
}

func TestBuildMessage(t *testing.T) {
	now := time.Date(2025, 9, 4, 12, 0, 0, 0, time.UTC)
	raw, err := buildMessage(config.MailConfig{ReplyTo: "r@silksong.example"}, "news@silksong.example",
		Message{To: []string{"a@b.com"}, Subject: "Hi", HTML: "<b>x</b>", Text: "x"}, now)
	require.NoError(t, err)
	s := string(raw)

	assert.Contains(t, s, "To: a@b.com\r\n")
	assert.Contains(t, s, "Reply-To: r@silksong.example\r\n")
	assert.Contains(t, s, "@silksong.example>\r\n", "message id uses sender domain")
	assert.Contains(t, s, "Content-Type: text/plain; charset=UTF-8")
	assert.Contains(t, s, "Content-Type: text/html; charset=UTF-8")
	assert.True(t, strings.HasSuffix(s, "--\r\n"))

	_, err = buildMessage(config.MailConfig{}, "x@y", Message{}, now)
	assert.Error(t, err)
}

func TestSendConfirmation(t *testing.T) {
	rec := &recordingMailer{}
	err := SendConfirmation(context.Background(), rec, "a@b.com", ConfirmationData{
		ConfirmURL: "https://silksong.example/api/v1/newsletter/confirm?token=0123456789abcdef0123456789abcdef",
		TTL:        48 * time.Hour,
	})
	require.NoError(t, err)
	require.Len(t, rec.sent, 1)

	msg := rec.sent[0]
	assert.Equal(t, []string{"a@b.com"}, msg.To)
	assert.Equal(t, "[Silksong Countdown] Confirm your subscription", msg.Subject)
	assert.Contains(t, msg.HTML, "token=0123456789abcdef0123456789abcdef")
	assert.Contains(t, msg.HTML, "48 hours")
	assert.Contains(t, msg.Text, "token=0123456789abcdef0123456789abcdef")
}

func TestSendWelcome(t *testing.T) {
	rec := &recordingMailer{}
	require.NoError(t, SendWelcome(context.Background(), rec, "a@b.com", WelcomeData{SiteName: "Pharloom Watch", SiteURL: "https://silksong.example"}))
	require.Len(t, rec.sent, 1)
	assert.Contains(t, rec.sent[0].Subject, "Pharloom Watch")
	assert.Contains(t, rec.sent[0].HTML, "https://silksong.example")
}

func TestHumanTTL(t *testing.T) {
	assert.Equal(t, "48 hours", humanTTL(48*time.Hour))
	assert.Equal(t, "1 hour", humanTTL(time.Hour))
	assert.Equal(t, "1h30m0s", humanTTL(90*time.Minute))
}
