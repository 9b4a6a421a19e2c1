package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jewelbox/backoffice/internal/auth/service"
	"github.com/jewelbox/backoffice/pkg/jwtx"
	"github.com/jewelbox/backoffice/pkg/mailx"
)

var ErrMissingSigningSecret = errors.New("AUTH_JWT_SECRET is not set")

const (
	MailModeSMTP = "smtp"
	MailModeLog  = "log"
)

type Config struct {
	JWTSecret       string        `toml:"jwt_secret"`        // Required: HS256 signing secret, at least 32 bytes
	Issuer          string        `toml:"issuer"`            // issuer claim for tokens (default: backoffice-auth)
	TokenTTL        time.Duration `toml:"token_ttl"`         // session token lifetime (default: 168h)
	PendingTokenTTL time.Duration `toml:"pending_token_ttl"` // temporary token lifetime (default: 10m)
	OTPTTL          time.Duration `toml:"otp_ttl"`           // emailed code lifetime (default: 10m)

	LockoutThreshold int           `toml:"lockout_threshold"` // failed passwords before lock (default: 5)
	LockoutDuration  time.Duration `toml:"lockout_duration"`  // lock length (default: 2h)

	DatabaseFile   string `toml:"database_file"`   // path to SQLite database file (default: ./backoffice.db)
	PepperFile     string `toml:"pepper_file"`     // path to password pepper file (default: ./pepper)
	BootstrapToken string `toml:"bootstrap_token"` // Optional: token required to create the first superadmin
	RedisURL       string `toml:"redis_url"`       // Optional: session denylist in Redis instead of memory

	Mail MailConfig `toml:"mail"`

	Env                  string        `toml:"env"`                   // dev, staging, prod (default: dev)
	LogLevel             string        `toml:"log_level"`             // debug, info, warn, error (default: info)
	LogFormat            string        `toml:"log_format"`            // json, text (default: json)
	Port                 int           `toml:"port"`                  // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration `toml:"shutdown_grace_period"` // graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration `toml:"housekeeping_interval"` // denylist pruning interval (default: 1h)
}

// MailConfig selects how verification codes are delivered.
type MailConfig struct {
	Mode       string        `toml:"mode"` // smtp or log (default: log)
	Host       string        `toml:"host"`
	Port       int           `toml:"port"` // default: 587
	Username   string        `toml:"username"`
	Password   string        `toml:"password"`
	From       string        `toml:"from"`
	FromName   string        `toml:"from_name"`  // default: Back Office
	Encryption string        `toml:"encryption"` // starttls, ssl, none (default: starttls)
	Timeout    time.Duration `toml:"timeout"`    // bound on one delivery (default: 15s)
}

func defaultConfig() Config {
	return Config{
		Issuer:          "backoffice-auth",
		TokenTTL:        service.DefaultSessionTokenTTL,
		PendingTokenTTL: service.DefaultPendingTokenTTL,
		OTPTTL:          service.DefaultOTPTTL,

		LockoutThreshold: service.DefaultLockoutThreshold,
		LockoutDuration:  service.DefaultLockoutDuration,

		DatabaseFile: "backoffice.db",
		PepperFile:   "pepper",

		Mail: MailConfig{
			Mode:       MailModeLog,
			Port:       587,
			FromName:   "Back Office",
			Encryption: string(mailx.EncryptionStartTLS),
			Timeout:    service.DefaultNotifyTimeout,
		},

		Env:                  "dev",
		LogLevel:             "info",
		LogFormat:            "json",
		Port:                 8080,
		ShutdownGracePeriod:  10 * time.Second,
		HousekeepingInterval: time.Hour,
	}
}

// LoadConfig builds the configuration once at start-up. Defaults are
// overlaid by the TOML file named in CONFIG_FILE, if any, and then by
// environment variables.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	cfg.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.JWTSecret)
	cfg.Issuer = getEnvOrDefault("AUTH_ISSUER", cfg.Issuer)
	cfg.TokenTTL = getEnvDurationOrDefault("AUTH_TOKEN_TTL", cfg.TokenTTL)
	cfg.PendingTokenTTL = getEnvDurationOrDefault("AUTH_PENDING_TOKEN_TTL", cfg.PendingTokenTTL)
	cfg.OTPTTL = getEnvDurationOrDefault("AUTH_OTP_TTL", cfg.OTPTTL)
	cfg.LockoutThreshold = getEnvIntOrDefault("AUTH_LOCKOUT_THRESHOLD", cfg.LockoutThreshold)
	cfg.LockoutDuration = getEnvDurationOrDefault("AUTH_LOCKOUT_DURATION", cfg.LockoutDuration)

	cfg.DatabaseFile = getEnvOrDefault("AUTH_DATABASE_FILE", cfg.DatabaseFile)
	cfg.PepperFile = getEnvOrDefault("AUTH_PEPPER_FILE", cfg.PepperFile)
	cfg.BootstrapToken = getEnvOrDefault("BOOTSTRAP_TOKEN", cfg.BootstrapToken)
	cfg.RedisURL = getEnvOrDefault("REDIS_URL", cfg.RedisURL)

	cfg.Mail.Mode = getEnvOrDefault("MAIL_MODE", cfg.Mail.Mode)
	cfg.Mail.Host = getEnvOrDefault("SMTP_HOST", cfg.Mail.Host)
	cfg.Mail.Port = getEnvIntOrDefault("SMTP_PORT", cfg.Mail.Port)
	cfg.Mail.Username = getEnvOrDefault("SMTP_USERNAME", cfg.Mail.Username)
	cfg.Mail.Password = getEnvOrDefault("SMTP_PASSWORD", cfg.Mail.Password)
	cfg.Mail.From = getEnvOrDefault("SMTP_FROM", cfg.Mail.From)
	cfg.Mail.FromName = getEnvOrDefault("SMTP_FROM_NAME", cfg.Mail.FromName)
	cfg.Mail.Encryption = getEnvOrDefault("SMTP_ENCRYPTION", cfg.Mail.Encryption)
	cfg.Mail.Timeout = getEnvDurationOrDefault("MAIL_TIMEOUT", cfg.Mail.Timeout)

	cfg.Env = getEnvOrDefault("ENV", cfg.Env)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.Port = getEnvIntOrDefault("PORT", cfg.Port)
	cfg.ShutdownGracePeriod = getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod)
	cfg.HousekeepingInterval = getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", cfg.HousekeepingInterval)

	return cfg, nil
}

// Validate reports configuration the service cannot start with.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingSigningSecret
	}
	if len(c.JWTSecret) < jwtx.MinSecretLength {
		return fmt.Errorf("AUTH_JWT_SECRET: %w (need %d bytes)", jwtx.ErrSecretTooShort, jwtx.MinSecretLength)
	}
	if c.LockoutThreshold <= 0 {
		return fmt.Errorf("lockout threshold must be positive, got %d", c.LockoutThreshold)
	}
	if c.LockoutDuration <= 0 {
		return fmt.Errorf("lockout duration must be positive, got %s", c.LockoutDuration)
	}

	switch strings.ToLower(c.Mail.Mode) {
	case MailModeLog:
	case MailModeSMTP:
		if c.Mail.Host == "" || c.Mail.From == "" {
			return errors.New("smtp mail mode requires SMTP_HOST and SMTP_FROM")
		}
		if _, err := mailx.ParseEncryption(c.Mail.Encryption); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown MAIL_MODE %q (want smtp or log)", c.Mail.Mode)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
