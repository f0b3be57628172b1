package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	// PlaceholderSecret ships in the sample config and must be replaced.
	PlaceholderSecret = "change-me-silksong-secret"

	defaultPort       = 3000
	defaultEnv        = "development"
	defaultPublicURL  = "http://localhost:3000"
	defaultSiteName   = "Silksong Countdown"
	defaultDBDriver   = "sqlite"
	defaultSQLiteFile = "newsletter.db"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "silksong"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0
	defaultRedisKey   = "silksong:optin:"

	defaultTokenTTL        = 48 * time.Hour
	defaultSweepInterval   = time.Hour
	defaultMaxEmailLength  = 254
	defaultRateLimitMax    = 5
	defaultRateLimitWindow = time.Minute
	DefaultSMTPPort        = 587
	DefaultResendEndpoint  = "https://api.resend.com/emails"
	defaultBackupInterval  = 24 * time.Hour
	defaultBackupKeep      = 7
	defaultS3Region        = "us-east-1"

	StorePendingFile  = "file"
	StorePendingRedis = "redis"
	StoreListCSV      = "csv"
	StoreListSQL      = "sql"
	DriverSQLite      = "sqlite"
	DriverMySQL       = "mysql"
)
