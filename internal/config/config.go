package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production"
	Timezone       string                `yaml:"timezone"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	Paths          RuntimePathsConfig    `yaml:"paths"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Newsletter     NewsletterConfig      `yaml:"newsletter"`
	RateLimit      RateLimitConfig       `yaml:"rate_limit"`
	Mail           MailConfig            `yaml:"mail"`
	Backup         BackupConfig          `yaml:"backup"`

	// Derived connection strings.
	DSN      string `yaml:"-"`
	RedisURL string `yaml:"-"`
}

type RuntimePathsConfig struct {
	Logs    string `yaml:"logs"`
	Data    string `yaml:"data"`
	Backups string `yaml:"backups"`
}

type RedisRuntimeConfig struct {
	Enable    bool              `yaml:"enable"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	DB        int               `yaml:"db"`
	TLS       bool              `yaml:"tls"`
	Scheme    string            `yaml:"scheme"`
	KeyPrefix string            `yaml:"key_prefix"`
	Params    map[string]string `yaml:"params"`
}

type DatabaseRuntimeConfig struct {
	Driver    string            `yaml:"driver"` // "sqlite" | "mysql"
	Path      string            `yaml:"path"`   // sqlite file
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type NewsletterConfig struct {
	Enable             bool          `yaml:"enable"`
	Secret             string        `yaml:"secret"`
	TokenTTL           time.Duration `yaml:"token_ttl"`
	PendingStore       string        `yaml:"pending_store"`    // "file" | "redis"
	SubscriberStore    string        `yaml:"subscriber_store"` // "csv" | "sql"
	CorruptOnRead      string        `yaml:"corrupt_on_read"`
	CorruptOnSweep     string        `yaml:"corrupt_on_sweep"`
	ExposeToken        bool          `yaml:"expose_token"`
	PublicURL          string        `yaml:"public_url"`
	ConfirmRedirectURL string        `yaml:"confirm_redirect_url"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
	AdminToken         string        `yaml:"admin_token"`
	MaxEmailLength     int           `yaml:"max_email_length"`
}

type RateLimitConfig struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

type MailConfig struct {
	Enable   bool         `yaml:"enable"`
	From     string       `yaml:"from"`
	ReplyTo  string       `yaml:"reply_to"`
	SiteName string       `yaml:"site_name"`
	SMTP     SMTPConfig   `yaml:"smtp"`
	Resend   ResendConfig `yaml:"resend"`
}

type SMTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

type ResendConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

type BackupConfig struct {
	Enable   bool          `yaml:"enable"`
	Interval time.Duration `yaml:"interval"`
	Keep     int           `yaml:"keep"`
	S3       S3Config      `yaml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
}

// Enabled reports whether uploads are configured.
func (s S3Config) Enabled() bool {
	return s.Bucket != "" && s.AccessKeyID != "" && s.SecretAccessKey != ""
}

type rawAppConfig struct {
	Port               int               `yaml:"port"`
	Env                string            `yaml:"env"`
	NodeEnv            string            `yaml:"node_env"`
	Timezone           string            `yaml:"timezone"`
	TZ                 string            `yaml:"tz"`
	AllowedOrigins     []string          `yaml:"allowed_origins"`
	CORSAllowedOrigins []string          `yaml:"cors_allowed_origins"`
	Paths              rawPathsConfig    `yaml:"paths"`
	LogDir             string            `yaml:"log_dir"`
	DataDir            string            `yaml:"data_dir"`
	BackupDir          string            `yaml:"backup_dir"`
	RedisURL           string            `yaml:"redis_url"`
	Redis              rawRedisConfig    `yaml:"redis"`
	DSN                string            `yaml:"dsn"`
	Database           rawDatabaseConfig `yaml:"database"`
	Newsletter         rawNewsletter     `yaml:"newsletter"`
	RateLimit          rawRateLimit      `yaml:"rate_limit"`
	Mail               rawMailConfig     `yaml:"mail"`
	Backup             rawBackupConfig   `yaml:"backup"`
}

type rawPathsConfig struct {
	Logs    string `yaml:"logs"`
	Data    string `yaml:"data"`
	Backups string `yaml:"backups"`
}

type rawRedisConfig struct {
	Enable    *bool             `yaml:"enable"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	DB        *int              `yaml:"db"`
	TLS       *bool             `yaml:"tls"`
	Scheme    string            `yaml:"scheme"`
	KeyPrefix string            `yaml:"key_prefix"`
	Params    map[string]string `yaml:"params"`
}

type rawDatabaseConfig struct {
	Driver    string            `yaml:"driver"`
	Path      string            `yaml:"path"`
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawNewsletter struct {
	Enable             *bool          `yaml:"enable"`
	Secret             string         `yaml:"secret"`
	TokenTTL           time.Duration  `yaml:"token_ttl"`
	PendingStore       string         `yaml:"pending_store"`
	SubscriberStore    string         `yaml:"subscriber_store"`
	CorruptOnRead      string         `yaml:"corrupt_on_read"`
	CorruptOnSweep     string         `yaml:"corrupt_on_sweep"`
	ExposeToken        *bool          `yaml:"expose_token"`
	PublicURL          string         `yaml:"public_url"`
	ConfirmRedirectURL string         `yaml:"confirm_redirect_url"`
	SweepInterval      *time.Duration `yaml:"sweep_interval"`
	AdminToken         string         `yaml:"admin_token"`
	MaxEmailLength     int            `yaml:"max_email_length"`
}

type rawRateLimit struct {
	Max    *int          `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

type rawMailConfig struct {
	Enable   *bool        `yaml:"enable"`
	From     string       `yaml:"from"`
	ReplyTo  string       `yaml:"reply_to"`
	SiteName string       `yaml:"site_name"`
	SMTP     SMTPConfig   `yaml:"smtp"`
	Resend   ResendConfig `yaml:"resend"`
}

type rawBackupConfig struct {
	Enable   *bool         `yaml:"enable"`
	Interval time.Duration `yaml:"interval"`
	Keep     int           `yaml:"keep"`
	S3       S3Config      `yaml:"s3"`
}

// Load reads the YAML file at configPath, applies environment overrides and
// validates the result.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg, err := Parse(content, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML content. lookupEnv supplies overrides; nil disables them.
func Parse(content []byte, lookupEnv func(string) (string, bool)) (*AppConfig, error) {
	cfg := defaultAppConfig()
	raw := rawAppConfig{}
	if len(bytes.TrimSpace(content)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
	}

	applyRawAppConfig(&cfg, raw)
	if lookupEnv != nil {
		applyEnv(&cfg, lookupEnv)
	}
	finalize(&cfg, raw)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	cfg := defaultAppConfig()
	finalize(&cfg, rawAppConfig{})
	return &cfg
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Driver:    defaultDBDriver,
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host:      defaultRedisHost,
			Port:      defaultRedisPort,
			DB:        defaultRedisDB,
			KeyPrefix: defaultRedisKey,
		},
		Newsletter: NewsletterConfig{
			Enable:          true,
			Secret:          PlaceholderSecret,
			TokenTTL:        defaultTokenTTL,
			PendingStore:    StorePendingFile,
			SubscriberStore: StoreListCSV,
			CorruptOnRead:   "skip",
			CorruptOnSweep:  "purge",
			PublicURL:       defaultPublicURL,
			SweepInterval:   defaultSweepInterval,
			MaxEmailLength:  defaultMaxEmailLength,
		},
		RateLimit: RateLimitConfig{
			Max:    defaultRateLimitMax,
			Window: defaultRateLimitWindow,
		},
		Mail: MailConfig{
			SiteName: defaultSiteName,
			SMTP:     SMTPConfig{Port: DefaultSMTPPort},
			Resend:   ResendConfig{Endpoint: DefaultResendEndpoint},
		},
		Backup: BackupConfig{
			Interval: defaultBackupInterval,
			Keep:     defaultBackupKeep,
			S3:       S3Config{Region: defaultS3Region},
		},
	}
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.NodeEnv); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.TZ); v != "" {
		cfg.Timezone = v
	}

	switch {
	case raw.AllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	case raw.CORSAllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.CORSAllowedOrigins)
	}

	cfg.Paths = applyRawPaths(cfg.Paths, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)
	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw)
	cfg.Newsletter = applyRawNewsletter(cfg.Newsletter, raw.Newsletter)
	cfg.RateLimit = applyRawRateLimit(cfg.RateLimit, raw.RateLimit)
	cfg.Mail = applyRawMail(cfg.Mail, raw.Mail)
	cfg.Backup = applyRawBackup(cfg.Backup, raw.Backup)
}

func applyRawPaths(paths RuntimePathsConfig, raw rawAppConfig) RuntimePathsConfig {
	if v := strings.TrimSpace(raw.Paths.Logs); v != "" {
		paths.Logs = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		paths.Logs = v
	}
	if v := strings.TrimSpace(raw.Paths.Data); v != "" {
		paths.Data = v
	}
	if v := strings.TrimSpace(raw.DataDir); v != "" {
		paths.Data = v
	}
	if v := strings.TrimSpace(raw.Paths.Backups); v != "" {
		paths.Backups = v
	}
	if v := strings.TrimSpace(raw.BackupDir); v != "" {
		paths.Backups = v
	}
	return paths
}

func applyRawRedisConfig(cfg RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	r := raw.Redis
	if r.Enable != nil {
		cfg.Enable = *r.Enable
	}
	if v := strings.TrimSpace(r.URL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.RedisURL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(r.Host); v != "" {
		cfg.Host = v
	}
	if r.Port != 0 {
		cfg.Port = r.Port
	}
	if v := strings.TrimSpace(r.Username); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(r.Password); v != "" {
		cfg.Password = v
	}
	if r.DB != nil {
		cfg.DB = *r.DB
	}
	if r.TLS != nil {
		cfg.TLS = *r.TLS
	}
	if v := strings.TrimSpace(r.Scheme); v != "" {
		cfg.Scheme = v
	}
	if v := strings.TrimSpace(r.KeyPrefix); v != "" {
		cfg.KeyPrefix = v
	}
	if r.Params != nil {
		cfg.Params = copyStringMap(r.Params)
	}
	return cfg
}

func applyRawDatabaseConfig(cfg DatabaseRuntimeConfig, raw rawAppConfig) DatabaseRuntimeConfig {
	d := raw.Database
	if v := strings.TrimSpace(d.Driver); v != "" {
		cfg.Driver = v
	}
	if v := strings.TrimSpace(d.Path); v != "" {
		cfg.Path = v
	}
	if v := strings.TrimSpace(d.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(d.URL); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(d.Host); v != "" {
		cfg.Host = v
	}
	if d.Port != 0 {
		cfg.Port = d.Port
	}
	if v := strings.TrimSpace(d.User); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(d.Username); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(d.Password); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(d.Name); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(d.DBName); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(d.Charset); v != "" {
		cfg.Charset = v
	}
	if d.ParseTime != nil {
		cfg.ParseTime = *d.ParseTime
	}
	if v := strings.TrimSpace(d.Loc); v != "" {
		cfg.Loc = v
	}
	if d.Params != nil {
		cfg.Params = copyStringMap(d.Params)
	}
	return cfg
}

func applyRawNewsletter(cfg NewsletterConfig, raw rawNewsletter) NewsletterConfig {
	if raw.Enable != nil {
		cfg.Enable = *raw.Enable
	}
	if v := strings.TrimSpace(raw.Secret); v != "" {
		cfg.Secret = v
	}
	if raw.TokenTTL > 0 {
		cfg.TokenTTL = raw.TokenTTL
	}
	if v := strings.TrimSpace(raw.PendingStore); v != "" {
		cfg.PendingStore = v
	}
	if v := strings.TrimSpace(raw.SubscriberStore); v != "" {
		cfg.SubscriberStore = v
	}
	if v := strings.TrimSpace(raw.CorruptOnRead); v != "" {
		cfg.CorruptOnRead = v
	}
	if v := strings.TrimSpace(raw.CorruptOnSweep); v != "" {
		cfg.CorruptOnSweep = v
	}
	if raw.ExposeToken != nil {
		cfg.ExposeToken = *raw.ExposeToken
	}
	if v := strings.TrimSpace(raw.PublicURL); v != "" {
		cfg.PublicURL = v
	}
	if v := strings.TrimSpace(raw.ConfirmRedirectURL); v != "" {
		cfg.ConfirmRedirectURL = v
	}
	if raw.SweepInterval != nil {
		cfg.SweepInterval = *raw.SweepInterval
	}
	if v := strings.TrimSpace(raw.AdminToken); v != "" {
		cfg.AdminToken = v
	}
	if raw.MaxEmailLength > 0 {
		cfg.MaxEmailLength = raw.MaxEmailLength
	}
	return cfg
}

func applyRawRateLimit(cfg RateLimitConfig, raw rawRateLimit) RateLimitConfig {
	if raw.Max != nil {
		cfg.Max = *raw.Max
	}
	if raw.Window > 0 {
		cfg.Window = raw.Window
	}
	return cfg
}

func applyRawMail(cfg MailConfig, raw rawMailConfig) MailConfig {
	if raw.Enable != nil {
		cfg.Enable = *raw.Enable
	}
	if v := strings.TrimSpace(raw.From); v != "" {
		cfg.From = v
	}
	if v := strings.TrimSpace(raw.ReplyTo); v != "" {
		cfg.ReplyTo = v
	}
	if v := strings.TrimSpace(raw.SiteName); v != "" {
		cfg.SiteName = v
	}
	if v := strings.TrimSpace(raw.SMTP.Host); v != "" {
		cfg.SMTP.Host = v
	}
	if raw.SMTP.Port != 0 {
		cfg.SMTP.Port = raw.SMTP.Port
	}
	if v := strings.TrimSpace(raw.SMTP.User); v != "" {
		cfg.SMTP.User = v
	}
	if v := strings.TrimSpace(raw.SMTP.Pass); v != "" {
		cfg.SMTP.Pass = v
	}
	if v := strings.TrimSpace(raw.Resend.APIKey); v != "" {
		cfg.Resend.APIKey = v
	}
	if v := strings.TrimSpace(raw.Resend.Endpoint); v != "" {
		cfg.Resend.Endpoint = v
	}
	return cfg
}

func applyRawBackup(cfg BackupConfig, raw rawBackupConfig) BackupConfig {
	if raw.Enable != nil {
		cfg.Enable = *raw.Enable
	}
	if raw.Interval > 0 {
		cfg.Interval = raw.Interval
	}
	if raw.Keep > 0 {
		cfg.Keep = raw.Keep
	}
	s3 := raw.S3
	if v := strings.TrimSpace(s3.Bucket); v != "" {
		cfg.S3.Bucket = v
	}
	if v := strings.TrimSpace(s3.Region); v != "" {
		cfg.S3.Region = v
	}
	if v := strings.TrimSpace(s3.Endpoint); v != "" {
		cfg.S3.Endpoint = v
	}
	if v := strings.TrimSpace(s3.AccessKeyID); v != "" {
		cfg.S3.AccessKeyID = v
	}
	if v := strings.TrimSpace(s3.SecretAccessKey); v != "" {
		cfg.S3.SecretAccessKey = v
	}
	if s3.PathStyle {
		cfg.S3.PathStyle = true
	}
	if v := strings.Trim(strings.TrimSpace(s3.Prefix), "/"); v != "" {
		cfg.S3.Prefix = v
	}
	return cfg
}

// finalize normalizes values and derives the connection strings.
func finalize(cfg *AppConfig, raw rawAppConfig) {
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.Paths = normalizeRuntimePaths(cfg.Paths)
	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	cfg.Newsletter = normalizeNewsletter(cfg.Newsletter)

	// expose_token follows the environment unless set explicitly.
	if raw.Newsletter.ExposeToken == nil {
		cfg.Newsletter.ExposeToken = cfg.IsDev()
	}
	if cfg.Newsletter.PendingStore == StorePendingRedis {
		cfg.Redis.Enable = true
	}

	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
}
