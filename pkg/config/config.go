package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full application configuration, loaded from the environment.
type Config struct {
	App       AppConfig       `envPrefix:"APP_"`
	Database  DatabaseConfig  `envPrefix:"DB_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	JWT       JWTConfig       `envPrefix:"JWT_"`
	WebAuthn  WebAuthnConfig  `envPrefix:"WEBAUTHN_"`
	Google    GoogleConfig    `envPrefix:"GOOGLE_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"iam-service"`
	Port int    `env:"PORT" envDefault:"8080"`
	Env  string `env:"ENV"  envDefault:"development"`
}

type DatabaseConfig struct {
	Host            string        `env:"HOST"              envDefault:"localhost"`
	Port            int           `env:"PORT"              envDefault:"5432"`
	User            string        `env:"USER"              envDefault:"iam"`
	Password        string        `env:"PASSWORD"          envDefault:""`
	Name            string        `env:"NAME"              envDefault:"iam"`
	SSLMode         string        `env:"SSL_MODE"          envDefault:"disable"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"    envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
}

// Address returns the host:port pair for go-redis.
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	// PEM-encoded RSA key pair. The private key signs access tokens, the
	// public key validates them.
	PrivateKeyPEM   string        `env:"PRIVATE_KEY_PEM,required"`
	PublicKeyPEM    string        `env:"PUBLIC_KEY_PEM,required"`
	Issuer          string        `env:"ISSUER"            envDefault:"iam-service"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`
}

type WebAuthnConfig struct {
	RPID         string        `env:"RP_ID"         envDefault:"localhost"`
	RPName       string        `env:"RP_NAME"       envDefault:"IAM Service"`
	RPOrigins    []string      `env:"RP_ORIGINS"    envSeparator:"," envDefault:"http://localhost:8080"`
	ChallengeTTL time.Duration `env:"CHALLENGE_TTL" envDefault:"5m"`
}

type GoogleConfig struct {
	Enabled      bool          `env:"ENABLED"       envDefault:"false"`
	ClientID     string        `env:"CLIENT_ID"     envDefault:""`
	ClientSecret string        `env:"CLIENT_SECRET" envDefault:""`
	RedirectURL  string        `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/api/v1/auth/google/callback"`
	StateTTL     time.Duration `env:"STATE_TTL"     envDefault:"10m"`
}

type RateLimitConfig struct {
	Enabled           bool     `env:"ENABLED"             envDefault:"true"`
	RequestsPerMinute int      `env:"REQUESTS_PER_MINUTE" envDefault:"100"`
	TrustedProxies    []string `env:"TRUSTED_PROXIES"     envSeparator:"," envDefault:""`
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
