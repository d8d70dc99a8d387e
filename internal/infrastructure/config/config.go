package config

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Rate limit stores selectable with RATE_LIMIT_STORE.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Auth      AuthConfig
	OAuth     OAuthConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig

	AuditWorkers int `env:"AUDIT_WORKERS, default=4"`

	// TrustedProxies lists the proxy addresses (CIDR or bare IP) whose
	// X-Forwarded-For header is believed. Empty means the peer address is
	// the client address.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

type AuthConfig struct {
	JWTSecret  string        `env:"JWT_SECRET, required"`
	TokenTTL   time.Duration `env:"TOKEN_TTL,   default=168h"`
	BcryptCost int           `env:"BCRYPT_COST, default=12"`
}

// OAuthConfig enables Google sign-in when ClientID is set.
type OAuthConfig struct {
	ClientID string `env:"GOOGLE_CLIENT_ID"`
	Issuer   string `env:"OAUTH_ISSUER"`
	JWKSURL  string `env:"OAUTH_JWKS_URL"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=taskflow"`
}

// RedisConfig is optional; an empty Addr disables Redis entirely.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

type RateLimitConfig struct {
	Store      string        `env:"RATE_LIMIT_STORE,       default=memory"`
	AuthMax    int           `env:"AUTH_RATE_LIMIT_MAX,    default=5"`
	AuthWindow time.Duration `env:"AUTH_RATE_LIMIT_WINDOW, default=15m"`
	APIMax     int           `env:"API_RATE_LIMIT_MAX,     default=100"`
	APIWindow  time.Duration `env:"API_RATE_LIMIT_WINDOW,  default=15m"`
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// TrustedProxyRanges parses TrustedProxies. A bare IP becomes a single-host
// range.
func (c *Config) TrustedProxyRanges() ([]*net.IPNet, error) {
	ranges := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: invalid address %q", raw)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			ranges = append(ranges, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, ipNet, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: invalid range %q", raw)
		}
		ranges = append(ranges, ipNet)
	}
	return ranges, nil
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration through l and validates it.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.RateLimit.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("RATE_LIMIT_STORE=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_STORE must be %q or %q, got %q", StoreMemory, StoreRedis, c.RateLimit.Store)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.RateLimit.AuthMax <= 0 || c.RateLimit.APIMax <= 0 {
		return fmt.Errorf("rate limit maximums must be positive")
	}
	if c.RateLimit.AuthWindow <= 0 || c.RateLimit.APIWindow <= 0 {
		return fmt.Errorf("rate limit windows must be positive")
	}
	if _, err := c.TrustedProxyRanges(); err != nil {
		return err
	}
	return nil
}
