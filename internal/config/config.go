package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const day = 24 * time.Hour

type Config struct {
	AppEnv     string
	Production bool
	Port       int
	LogLevel   string

	DBDriver    string
	DatabaseURL string
	RedisURL    string

	AccessSecret     []byte
	RefreshSecret    []byte
	ActivationSecret []byte

	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	SessionTTL     time.Duration
	ActivationTTL  time.Duration
	ResetCodeTTL   time.Duration
	ResetGrantTTL  time.Duration
	CourseCacheTTL time.Duration

	// CodeMaxAttempts bounds wrong activation and reset codes.
	CodeMaxAttempts int
	ResetLockout    time.Duration

	KafkaBrokers []string
	MailTopic    string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	StripeSecretKey      string
	StripePublishableKey string
	StripeAPIURL         string

	CORSOrigins    []string
	AuthRateLimit  int
	CSRFProtection bool

	CleanupInterval       time.Duration
	NotificationRetention time.Duration
}

// Load reads .env (if present) and then the process environment.
// Access TTL is expressed in minutes, refresh and session TTLs in days.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found: %v, using system environment variables", err)
	}

	appEnv := EnvDefault("APP_ENV", "development")

	return Config{
		AppEnv:     appEnv,
		Production: appEnv == "production",
		Port:       EnvIntDefault("PORT", 8000),
		LogLevel:   EnvDefault("LOG_LEVEL", "info"),

		DBDriver:    EnvDefault("DB_DRIVER", "postgres"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    EnvDefault("REDIS_URL", "redis://localhost:6379/0"),

		AccessSecret:     []byte(os.Getenv("ACCESS_TOKEN_SECRET")),
		RefreshSecret:    []byte(os.Getenv("REFRESH_TOKEN_SECRET")),
		ActivationSecret: []byte(os.Getenv("ACTIVATION_SECRET")),

		AccessTTL:      EnvDurationDefault("ACCESS_TOKEN_TTL_MINUTES", 5, time.Minute),
		RefreshTTL:     EnvDurationDefault("REFRESH_TOKEN_TTL_DAYS", 3, day),
		SessionTTL:     EnvDurationDefault("SESSION_TTL_DAYS", 7, day),
		ActivationTTL:  5 * time.Minute,
		ResetCodeTTL:   EnvDurationDefault("RESET_CODE_TTL_MINUTES", 5, time.Minute),
		ResetGrantTTL:  EnvDurationDefault("RESET_GRANT_TTL_MINUTES", 10, time.Minute),
		CourseCacheTTL: 7 * day,

		CodeMaxAttempts: EnvIntDefault("CODE_MAX_ATTEMPTS", 5),
		ResetLockout:    EnvDurationDefault("RESET_LOCKOUT_MINUTES", 15, time.Minute),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		MailTopic:    EnvDefault("MAIL_TOPIC", "mail_events"),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    EnvDefault("ES_INDEX", "courses"),

		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		StripePublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
		StripeAPIURL:         EnvDefault("STRIPE_API_URL", "https://api.stripe.com"),

		CORSOrigins:    CSV(os.Getenv("CORS_ORIGINS")),
		AuthRateLimit:  EnvIntDefault("AUTH_RATE_LIMIT", 10),
		CSRFProtection: EnvDefault("CSRF_PROTECTION", "false") == "true",

		CleanupInterval:       EnvDurationDefault("CLEANUP_INTERVAL_HOURS", 24, time.Hour),
		NotificationRetention: EnvDurationDefault("NOTIFICATION_RETENTION_DAYS", 30, day),
	}
}

func (c Config) Validate() error {
	var errs []error
	if len(c.AccessSecret) == 0 {
		errs = append(errs, errors.New("missing required env ACCESS_TOKEN_SECRET"))
	}
	if len(c.RefreshSecret) == 0 {
		errs = append(errs, errors.New("missing required env REFRESH_TOKEN_SECRET"))
	}
	if len(c.ActivationSecret) == 0 {
		errs = append(errs, errors.New("missing required env ACTIVATION_SECRET"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("missing required env DATABASE_URL"))
	}
	if c.CodeMaxAttempts < 1 {
		errs = append(errs, errors.New("CODE_MAX_ATTEMPTS must be at least 1"))
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.SessionTTL <= 0 {
		errs = append(errs, errors.New("token and session ttl must be positive"))
	}
	return errors.Join(errs...)
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EnvDurationDefault reads an integer count of unit, the unit being part of
// the variable name (SESSION_TTL_DAYS and the like).
func EnvDurationDefault(key string, def int, unit time.Duration) time.Duration {
	return time.Duration(EnvIntDefault(key, def)) * unit
}
