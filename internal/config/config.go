package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Postgres PostgresConfig
	Session  SessionConfig
	Mail     MailConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port            string   `env:"PORT" envDefault:"5000"`
	PublicURL       string   `env:"PUBLIC_URL"`
	GraphQLEndpoint string   `env:"GRAPHQL_ENDPOINT"`
	AllowedOrigins  []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	GinMode         string   `env:"GIN_MODE" envDefault:"release"`
}

type AuthConfig struct {
	AccessSecret         string        `env:"JWT_ACCESS_SECRET"`
	RefreshSecret        string        `env:"JWT_REFRESH_SECRET"`
	AccessTTL            time.Duration `env:"JWT_ACCESS_EXPIRY" envDefault:"15m"`
	RefreshTTL           time.Duration `env:"JWT_REFRESH_EXPIRY" envDefault:"168h"`
	AutoVerify           bool          `env:"AUTH_AUTO_VERIFY" envDefault:"false"`
	ResetTTL             time.Duration `env:"PASSWORD_RESET_EXPIRY" envDefault:"1h"`
	RefreshPurgeInterval time.Duration `env:"REFRESH_TOKEN_PURGE_INTERVAL" envDefault:"1h"`
}

type PostgresConfig struct {
	Driver      string        `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string        `env:"DATABASE_URL"`
	Host        string        `env:"PGHOST" envDefault:"localhost"`
	Port        string        `env:"PGPORT" envDefault:"5432"`
	User        string        `env:"PGUSER"`
	Password    string        `env:"PGPASSWORD"`
	Database    string        `env:"PGDATABASE"`
	SSLMode     string        `env:"PGSSLMODE" envDefault:"disable"`
	RetryDelay  time.Duration `env:"DB_CONNECT_RETRY_DELAY" envDefault:"5s"`
}

type SessionConfig struct {
	Secret       string        `env:"SESSION_SECRET" envDefault:"todo-secret"`
	TTL          time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
}

type MailConfig struct {
	Host       string `env:"EMAIL_HOST"`
	Port       string `env:"EMAIL_PORT" envDefault:"587"`
	User       string `env:"EMAIL_USER"`
	Password   string `env:"EMAIL_PASS"`
	From       string `env:"EMAIL_FROM"`
	WebhookURL string `env:"MAIL_WEBHOOK_URL"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return parse(env.Options{})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Auth.AccessSecret) == "" {
		return fmt.Errorf("%w: JWT_ACCESS_SECRET is required", ErrInvalid)
	}
	if strings.TrimSpace(c.Auth.RefreshSecret) == "" {
		return fmt.Errorf("%w: JWT_REFRESH_SECRET is required", ErrInvalid)
	}
	if c.Auth.AccessTTL <= 0 {
		return fmt.Errorf("%w: JWT_ACCESS_EXPIRY must be positive", ErrInvalid)
	}
	if c.Auth.RefreshTTL <= 0 {
		return fmt.Errorf("%w: JWT_REFRESH_EXPIRY must be positive", ErrInvalid)
	}
	switch c.Postgres.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("%w: STORE_DRIVER must be postgres or memory", ErrInvalid)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("%w: LOG_FORMAT must be json or text", ErrInvalid)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "http://localhost:" + c.Server.Port
	}
	if c.Server.GraphQLEndpoint == "" {
		c.Server.GraphQLEndpoint = "http://localhost:" + c.Server.Port + "/graphql"
	}
	c.Server.PublicURL = strings.TrimRight(c.Server.PublicURL, "/")
	if c.Mail.From == "" {
		c.Mail.From = c.Mail.User
	}
}
