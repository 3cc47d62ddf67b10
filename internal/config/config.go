package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/boostgw/boostgw/internal/models"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Redis    RedisConfig    `json:"redis"`
	Upstream UpstreamConfig `json:"upstream"`
	Limits   LimitsConfig   `json:"limits"`
	Pricing  PricingConfig  `json:"pricing"`
	Auth     AuthConfig     `json:"auth"`
	Webhook  WebhookConfig  `json:"webhook"`
	Catalog  models.Catalog `json:"catalog"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type UpstreamConfig struct {
	Endpoint       string         `json:"endpoint"`
	Key            string         `json:"-"` // env: UPSTREAM_API_KEY
	TimeoutSecs    int            `json:"timeout_seconds"`
	MaxRetries     int            `json:"max_retries"`
	BackoffMillis  int            `json:"backoff_ms"`
	CacheTTLSecs   int            `json:"cache_ttl_seconds"`
	AllowSimulated bool           `json:"allow_simulated"`
	Fallback       FallbackConfig `json:"fallback"`
}

func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSecs) * time.Second
}

func (u UpstreamConfig) Backoff() time.Duration {
	return time.Duration(u.BackoffMillis) * time.Millisecond
}

func (u UpstreamConfig) CacheTTL() time.Duration {
	return time.Duration(u.CacheTTLSecs) * time.Second
}

// FallbackConfig describes the optional secondary provider. ServiceIDs maps
// platform to that provider's service id.
type FallbackConfig struct {
	Enabled    bool              `json:"enabled"`
	Endpoint   string            `json:"endpoint"`
	Key        string            `json:"-"` // env: FALLBACK_API_KEY
	ServiceIDs map[string]string `json:"service_ids"`
}

type LimitsConfig struct {
	PurchaseCooldownSecs int     `json:"purchase_cooldown_seconds"`
	FreeCooldownSecs     int     `json:"free_cooldown_seconds"`
	FreeQuantity         int     `json:"free_quantity"`
	BlockThreshold       int     `json:"block_threshold"`
	BlockDurationSecs    int     `json:"block_duration_seconds"`
	ThrottleRPS          float64 `json:"throttle_rps"`
	ThrottleBurst        int     `json:"throttle_burst"`
}

func (l LimitsConfig) PurchaseCooldown() time.Duration {
	return time.Duration(l.PurchaseCooldownSecs) * time.Second
}

func (l LimitsConfig) FreeCooldown() time.Duration {
	return time.Duration(l.FreeCooldownSecs) * time.Second
}

func (l LimitsConfig) BlockDuration() time.Duration {
	return time.Duration(l.BlockDurationSecs) * time.Second
}

// Pricing modes
const (
	PricingDirect = "direct"
	PricingPoints = "points"
)

type PricingConfig struct {
	Mode            string  `json:"mode"`
	StartingBalance float64 `json:"starting_balance"`
}

type AuthConfig struct {
	JWTSecret            string `json:"-"` // env: JWT_SECRET
	TokenExpiryHours     int    `json:"token_expiry_hours"`
	OperatorEmail        string `json:"-"` // env: OPERATOR_EMAIL
	OperatorPasswordHash string `json:"-"` // env: OPERATOR_PASSWORD_HASH (bcrypt)
}

type WebhookConfig struct {
	Secret string `json:"-"` // env: GUMROAD_SECRET
}

// Load reads the JSON config file, falling back to defaults when the file
// does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Server.Environment = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Enabled = true
		if i := strings.LastIndex(v, ":"); i > 0 {
			c.Redis.Host = v[:i]
			c.Redis.Port = v[i+1:]
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("UPSTREAM_API_KEY"); v != "" {
		c.Upstream.Key = v
	}
	if v := os.Getenv("FALLBACK_API_KEY"); v != "" {
		c.Upstream.Fallback.Key = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("OPERATOR_EMAIL"); v != "" {
		c.Auth.OperatorEmail = v
	}
	if v := os.Getenv("OPERATOR_PASSWORD_HASH"); v != "" {
		c.Auth.OperatorPasswordHash = v
	}
	if v := os.Getenv("GUMROAD_SECRET"); v != "" {
		c.Webhook.Secret = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Upstream.Endpoint == "" {
		return fmt.Errorf("upstream endpoint is required")
	}
	if c.Pricing.Mode != PricingDirect && c.Pricing.Mode != PricingPoints {
		return fmt.Errorf("unknown pricing mode: %s", c.Pricing.Mode)
	}
	if c.Limits.FreeQuantity < 1 {
		return fmt.Errorf("free quantity must be at least 1")
	}
	return c.Catalog.Validate()
}
