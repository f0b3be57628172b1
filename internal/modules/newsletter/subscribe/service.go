package subscribe

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/modules/newsletter/optin"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/logsafe"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/mail"
	"go.uber.org/zap"
)

// ConfirmPath is where confirmation links point, relative to the public URL.
const ConfirmPath = "/api/v1/newsletter/confirm"

// Deps wires a Service.
type Deps struct {
	Pending   *optin.PendingStore
	Confirmer *optin.Confirmer
	List      optin.SubscriberList
	Mailer    mail.Mailer
	PublicURL string
	SiteName  string
	Logger    *zap.Logger
}

// Service runs the double opt-in flow on top of the optin primitives.
type Service struct {
	pending   *optin.PendingStore
	confirmer *optin.Confirmer
	list      optin.SubscriberList
	mailer    mail.Mailer
	publicURL string
	siteName  string
	log       *zap.Logger
}

func NewService(d Deps) *Service {
	if d.Mailer == nil {
		d.Mailer = mail.Disabled{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{
		pending:   d.Pending,
		confirmer: d.Confirmer,
		list:      d.List,
		mailer:    d.Mailer,
		publicURL: strings.TrimRight(d.PublicURL, "/"),
		siteName:  d.SiteName,
		log:       d.Logger.Named("NewsletterService"),
	}
}

// SubscribeResult is what a visitor gets back after requesting a subscription.
type SubscribeResult struct {
	Token string
	Email string
}

// Stats summarizes list and pending sizes.
type Stats struct {
	Subscribers int `json:"subscribers"`
	Pending     int `json:"pending"`
}

// PendingView is a pending record with the address hashed.
type PendingView struct {
	Token     string    `json:"token"`
	EmailHash string    `json:"email_hash"`
	Created   time.Time `json:"created"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Service) MailEnabled() bool { return s.mailer.Enabled() }

func (s *Service) TTL() time.Duration { return s.pending.TTL() }

// ConfirmURL builds the link mailed to the visitor.
func (s *Service) ConfirmURL(token string) string {
	return s.publicURL + ConfirmPath + "?token=" + url.QueryEscape(token)
}

// Subscribe issues a pending token and mails the confirmation link. When the
// mail cannot be sent the token is withdrawn so the visitor can retry.
func (s *Service) Subscribe(ctx context.Context, rawEmail string) (SubscribeResult, error) {
	token, err := s.pending.Create(ctx, rawEmail)
	if err != nil {
		return SubscribeResult{}, err
	}
	email := optin.NormalizeEmail(rawEmail)
	log := s.log.With(zap.String("op", "subscribe"), logsafe.Email(email))

	err = mail.SendConfirmation(ctx, s.mailer, email, mail.ConfirmationData{
		SiteName:   s.siteName,
		ConfirmURL: s.ConfirmURL(token),
		TTL:        s.pending.TTL(),
	})
	if err != nil {
		log.Error("failed to send confirmation email", logsafe.Err(err, email))
		if rmErr := s.pending.Remove(ctx, token); rmErr != nil {
			log.Warn("failed to withdraw pending token", zap.Error(rmErr))
		}
		return SubscribeResult{}, optin.NewError(optin.KindEmailSendFailed, err)
	}
	log.Info("confirmation email sent", zap.Bool("mail_enabled", s.mailer.Enabled()))
	return SubscribeResult{Token: token, Email: email}, nil
}

// Confirm consumes a token; a fresh subscriber also gets a welcome mail.
func (s *Service) Confirm(ctx context.Context, token string) (optin.ConfirmResult, error) {
	res, err := s.confirmer.Confirm(ctx, token)
	if err != nil || !res.Created {
		return res, err
	}
	if err := mail.SendWelcome(ctx, s.mailer, res.Email, mail.WelcomeData{
		SiteName: s.siteName,
		SiteURL:  s.publicURL,
	}); err != nil {
		s.log.Warn("failed to send welcome email", zap.String("op", "confirm"),
			logsafe.Email(res.Email), logsafe.Err(err, res.Email))
	}
	return res, nil
}

// Sweep removes expired pending tokens and returns how many went.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	return s.confirmer.Sweep(ctx)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	n, err := s.list.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	pending, err := s.pending.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Subscribers: n, Pending: len(pending)}, nil
}

func (s *Service) SubscriberCount(ctx context.Context) (int, error) {
	return s.list.Count(ctx)
}

func (s *Service) Subscribers(ctx context.Context) ([]optin.Subscriber, error) {
	return s.list.All(ctx)
}

func (s *Service) Pending(ctx context.Context) ([]PendingView, error) {
	recs, err := s.pending.List(ctx)
	if err != nil {
		return nil, err
	}
	ttl := s.pending.TTL()
	out := make([]PendingView, 0, len(recs))
	for _, r := range recs {
		out = append(out, PendingView{
			Token:     r.Token,
			EmailHash: logsafe.Hash(r.Email),
			Created:   r.Created,
			ExpiresAt: r.ExpiresAt(ttl),
		})
	}
	return out, nil
}

// RemovePending withdraws a pending token.
func (s *Service) RemovePending(ctx context.Context, token string) error {
	return s.pending.Remove(ctx, token)
}
