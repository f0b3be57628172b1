package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"
)

const confirmationTpl = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
</head>
<body style="background-color:#0b0b10;margin:0 auto;font-family:Georgia,'Times New Roman',serif;padding:.5rem;color:#e8e0d0">
  <table align="center" width="100%" role="presentation" cellspacing="0" cellpadding="0" border="0" style="max-width:100%;border:1px solid #8c1c2b;border-radius:.25rem;margin:40px auto;padding:24px;width:550px;background-color:#15141c">
    <tbody><tr><td>
      <h1 style="font-size:20px;font-weight:400;text-align:center;margin:24px 0;color:#f2e6d0">A thread binds you to {{.SiteName}}</h1>
      <p style="font-size:14px;line-height:24px;margin:16px 0">Someone, hopefully you, asked to hear when Hornet's journey through Pharloom draws near. Pull the thread below to confirm your subscription.</p>
      <table align="center" width="100%" role="presentation" border="0" cellpadding="0" cellspacing="0" style="text-align:center;margin:32px 0">
        <tbody><tr><td>
          <a href="{{.ConfirmURL}}" target="_blank" style="line-height:100%;text-decoration:none;display:inline-block;padding:12px 20px;background-color:#8c1c2b;border-radius:.25rem;color:#fff;font-size:13px;font-weight:600">Confirm subscription</a>
        </td></tr></tbody>
      </table>
      <p style="font-size:12px;line-height:20px;margin:16px 0;color:#a89f91">The link fades in {{.ExpiresIn}}. If you did not ask for this, ignore this letter and nothing will happen.</p>
      <hr style="width:100%;border:none;border-top:1px solid #2a2833;margin:26px 0" />
      <p style="font-size:10px;line-height:20px;margin:16px 0;text-align:center;color:#6f6a78">Sent automatically by {{.SiteName}}. ©{{year}}</p>
    </td></tr></tbody>
  </table>
</body>
</html>`

const confirmationText = `A thread binds you to {{.SiteName}}.

Confirm your subscription: {{.ConfirmURL}}

The link fades in {{.ExpiresIn}}. If you did not ask for this, ignore this letter.
`

const welcomeTpl = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
</head>
<body style="background-color:#0b0b10;margin:0 auto;font-family:Georgia,'Times New Roman',serif;padding:.5rem;color:#e8e0d0">
  <table align="center" width="100%" role="presentation" cellspacing="0" cellpadding="0" border="0" style="max-width:100%;border:1px solid #8c1c2b;border-radius:.25rem;margin:40px auto;padding:24px;width:550px;background-color:#15141c">
    <tbody><tr><td>
      <h1 style="font-size:20px;font-weight:400;text-align:center;margin:24px 0;color:#f2e6d0">Welcome to the Citadel's choir</h1>
      <p style="font-size:14px;line-height:24px;margin:16px 0">Your subscription to {{.SiteName}} is confirmed. We will ring the bell when there is news of Silksong: release dates, trailers and the countdown's final hours.</p>
      {{if .SiteURL}}
      <table align="center" width="100%" role="presentation" border="0" cellpadding="0" cellspacing="0" style="text-align:center;margin:32px 0">
        <tbody><tr><td>
          <a href="{{.SiteURL}}" target="_blank" style="line-height:100%;text-decoration:none;display:inline-block;padding:12px 20px;background-color:#8c1c2b;border-radius:.25rem;color:#fff;font-size:13px;font-weight:600">Visit the countdown</a>
        </td></tr></tbody>
      </table>
      {{end}}
      <hr style="width:100%;border:none;border-top:1px solid #2a2833;margin:26px 0" />
      <p style="font-size:10px;line-height:20px;margin:16px 0;text-align:center;color:#6f6a78">Sent automatically by {{.SiteName}}. ©{{year}}</p>
    </td></tr></tbody>
  </table>
</body>
</html>`

// ConfirmationData fills the double opt-in mail.
type ConfirmationData struct {
	SiteName   string
	ConfirmURL string
	TTL        time.Duration
}

// WelcomeData fills the mail sent after a confirmation.
type WelcomeData struct {
	SiteName string
	SiteURL  string
}

func renderTemplate(tpl string, data interface{}) (string, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"year": func() int {
			return time.Now().Year()
		},
	}).Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// humanTTL renders whole hours ("48 hours") and falls back to Duration.String.
func humanTTL(d time.Duration) string {
	if d <= 0 {
		return "a while"
	}
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}

func siteName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Silksong Countdown"
	}
	return name
}

// SendConfirmation sends the double opt-in mail carrying the confirm link.
func SendConfirmation(ctx context.Context, m Mailer, to string, data ConfirmationData) error {
	view := struct {
		SiteName   string
		ConfirmURL string
		ExpiresIn  string
	}{siteName(data.SiteName), data.ConfirmURL, humanTTL(data.TTL)}

	html, err := renderTemplate(confirmationTpl, view)
	if err != nil {
		return err
	}
	text, err := renderTemplate(confirmationText, view)
	if err != nil {
		return err
	}
	return m.Send(ctx, Message{
		To:      []string{to},
		Subject: fmt.Sprintf("[%s] Confirm your subscription", view.SiteName),
		HTML:    html,
		Text:    text,
	})
}

// SendWelcome greets a freshly confirmed subscriber.
func SendWelcome(ctx context.Context, m Mailer, to string, data WelcomeData) error {
	data.SiteName = siteName(data.SiteName)
	html, err := renderTemplate(welcomeTpl, data)
	if err != nil {
		return err
	}
	return m.Send(ctx, Message{
		To:      []string{to},
		Subject: fmt.Sprintf("[%s] You're on the list", data.SiteName),
		HTML:    html,
	})
}
