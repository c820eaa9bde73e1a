package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// MinBcryptCost is the lowest work factor the server will start with.
const MinBcryptCost = 12

type Config struct {
	Port       string `env:"PORT,       default=8080"`
	Env        string `env:"ENV,        default=development"`
	LogLevel   string `env:"LOG_LEVEL,  default=info"`
	AppBaseURL string `env:"APP_BASE_URL, default=http://localhost:3000"`

	Auth   AuthConfig
	Mongo  MongoConfig
	Redis  RedisConfig
	Mail   MailConfig
	Google GoogleConfig
}

type AuthConfig struct {
	JWTSecret      string        `env:"JWT_SECRET, required"`
	SessionTTL     time.Duration `env:"SESSION_TTL,         default=168h"`
	BcryptCost     int           `env:"BCRYPT_COST,         default=12"`
	OTPTTL         time.Duration `env:"OTP_TTL,             default=10m"`
	ResetTokenTTL  time.Duration `env:"RESET_TOKEN_TTL,     default=1h"`
	InviteTTLHours int           `env:"INVITE_TTL_HOURS,    default=72"`
	ResendCooldown time.Duration `env:"OTP_RESEND_COOLDOWN, default=60s"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=hotel_system"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	DB       int    `env:"REDIS_DB,       default=0"`
	Username string `env:"REDIS_USERNAME"`
	Password string `env:"REDIS_PASSWORD"`
	TLS      bool   `env:"REDIS_TLS,      default=false"`
}

type MailConfig struct {
	ResendAPIKey string `env:"RESEND_API_KEY"`
	From         string `env:"MAIL_FROM,      default=no-reply@localhost"`
	FromName     string `env:"MAIL_FROM_NAME, default=Hotel"`
	Workers      int    `env:"NOTIFY_WORKERS, default=4"`
}

type GoogleConfig struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `env:"GOOGLE_REDIRECT_URL"`
}

// InviteTTL returns the default invitation lifetime.
func (c AuthConfig) InviteTTL() time.Duration {
	return time.Duration(c.InviteTTLHours) * time.Hour
}

// Enabled reports whether Google sign-in has client credentials.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RedirectURL != ""
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// Validate rejects settings the server must not start with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Auth.JWTSecret) < 32 && c.IsProduction() {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes in production"))
	}
	if c.Auth.BcryptCost < MinBcryptCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be >= %d, got %d", MinBcryptCost, c.Auth.BcryptCost))
	}
	if c.Auth.SessionTTL <= 0 || c.Auth.OTPTTL <= 0 || c.Auth.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL, OTP_TTL and RESET_TOKEN_TTL must be positive"))
	}
	if c.Auth.InviteTTLHours <= 0 {
		errs = append(errs, errors.New("INVITE_TTL_HOURS must be positive"))
	}
	if c.Auth.ResendCooldown < 0 {
		errs = append(errs, errors.New("OTP_RESEND_COOLDOWN must not be negative"))
	}
	if u, err := url.Parse(c.AppBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("APP_BASE_URL must be an absolute URL, got %q", c.AppBaseURL))
	}
	if c.Mail.Workers <= 0 {
		errs = append(errs, errors.New("NOTIFY_WORKERS must be positive"))
	}
	return errors.Join(errs...)
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadWith processes and validates configuration from an arbitrary lookuper.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
