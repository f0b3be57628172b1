package config

import (
	"errors"
	"fmt"
	neturl "net/url"

	"github.com/go-sql-driver/mysql"
)

// ErrInsecureSecret is returned in production when the token secret is empty
// or still the shipped placeholder.
var ErrInsecureSecret = errors.New("newsletter.secret is unset or the placeholder value")

// Validate checks ranges and enumerations.
func (c *AppConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
	}

	switch c.Database.Driver {
	case DriverSQLite:
	case DriverMySQL:
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
		}
		if _, err := mysql.ParseDSN(c.DSN); err != nil {
			return fmt.Errorf("invalid database dsn: %w", err)
		}
	default:
		return fmt.Errorf("unknown database.driver %q, expected sqlite or mysql", c.Database.Driver)
	}

	n := c.Newsletter
	switch n.PendingStore {
	case StorePendingFile, StorePendingRedis:
	default:
		return fmt.Errorf("unknown newsletter.pending_store %q, expected file or redis", n.PendingStore)
	}
	switch n.SubscriberStore {
	case StoreListCSV, StoreListSQL:
	default:
		return fmt.Errorf("unknown newsletter.subscriber_store %q, expected csv or sql", n.SubscriberStore)
	}
	for key, v := range map[string]string{"corrupt_on_read": n.CorruptOnRead, "corrupt_on_sweep": n.CorruptOnSweep} {
		if v != "skip" && v != "purge" {
			return fmt.Errorf("invalid newsletter.%s %q, expected skip or purge", key, v)
		}
	}
	if n.TokenTTL <= 0 {
		return fmt.Errorf("invalid newsletter.token_ttl %s", n.TokenTTL)
	}
	if n.MaxEmailLength <= 0 {
		return fmt.Errorf("invalid newsletter.max_email_length %d", n.MaxEmailLength)
	}
	if u, err := neturl.Parse(n.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid newsletter.public_url %q", n.PublicURL)
	}
	if n.ConfirmRedirectURL != "" {
		if u, err := neturl.Parse(n.ConfirmRedirectURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid newsletter.confirm_redirect_url %q", n.ConfirmRedirectURL)
		}
	}
	if c.RateLimit.Max < 0 {
		return fmt.Errorf("invalid rate_limit.max %d", c.RateLimit.Max)
	}
	if c.Backup.Keep < 1 {
		return fmt.Errorf("invalid backup.keep %d", c.Backup.Keep)
	}

	if !c.IsDev() && c.InsecureSecret() {
		return ErrInsecureSecret
	}
	return nil
}

// InsecureSecret reports whether the token secret is empty or the placeholder.
func (c *AppConfig) InsecureSecret() bool {
	return c.Newsletter.Secret == "" || c.Newsletter.Secret == PlaceholderSecret
}
