package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPPort                 string        `yaml:"http_port"`
	RedisAddr                string        `yaml:"redis_addr"`
	JWTSecret                string        `yaml:"jwt_secret"`
	RecommendationServiceURL string        `yaml:"recommendation_service_url"`
	SQLitePath               string        `yaml:"sqlite_path"`
	GraphQL                  GraphQLConfig `yaml:"graphql"`
	CacheTTL                 time.Duration `yaml:"cache_ttl"`
	CartTTL                  time.Duration `yaml:"cart_ttl"`
	RateLimit                int           `yaml:"rate_limit"`
	RateWindow               time.Duration `yaml:"rate_window"`
}

// GraphQLConfig locates the backend. A non-empty URL disables discovery.
type GraphQLConfig struct {
	URL          string        `yaml:"url"`
	Host         string        `yaml:"host"`
	Path         string        `yaml:"path"`
	Ports        []int         `yaml:"ports"`
	DefaultPort  int           `yaml:"default_port"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

var defaultPorts = []int{4000, 4001, 4002, 4003, 5000, 8000}

func defaults() *Config {
	return &Config{
		HTTPPort:   "8080",
		RedisAddr:  "localhost:6379",
		JWTSecret:  "dev-secret",
		SQLitePath: "",
		GraphQL: GraphQLConfig{
			Host:         "localhost",
			Path:         "/graphql",
			Ports:        append([]int(nil), defaultPorts...),
			DefaultPort:  4000,
			ProbeTimeout: 1500 * time.Millisecond,
		},
		CacheTTL:   60 * time.Second,
		CartTTL:    7 * 24 * time.Hour,
		RateLimit:  10,
		RateWindow: 60 * time.Second,
	}
}

// NewConfig builds the configuration from defaults, the optional YAML file
// named by BFF_CONFIG, and the environment (a .env file is loaded first if
// present). Environment values win.
func NewConfig() *Config {
	cfg, err := Load(os.Getenv("BFF_CONFIG"))
	if err != nil {
		slog.Warn("Config file ignored", "error", err)
		cfg = defaults()
		cfg.applyEnv()
	}
	return cfg
}

// Load reads path (if non-empty) over the defaults and applies environment
// overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPPort = getEnv("HTTP_PORT", c.HTTPPort)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.RecommendationServiceURL = getEnv("RECOMMENDATION_SERVICE_URL", c.RecommendationServiceURL)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)

	c.GraphQL.URL = getEnv("GRAPHQL_URL", c.GraphQL.URL)
	c.GraphQL.Host = getEnv("GRAPHQL_HOST", c.GraphQL.Host)
	c.GraphQL.Path = getEnv("GRAPHQL_PATH", c.GraphQL.Path)
	c.GraphQL.Ports = getEnvInts("GRAPHQL_PORTS", c.GraphQL.Ports)
	c.GraphQL.DefaultPort = getEnvInt("GRAPHQL_DEFAULT_PORT", c.GraphQL.DefaultPort)
	c.GraphQL.ProbeTimeout = getEnvDuration("PROBE_TIMEOUT", c.GraphQL.ProbeTimeout)

	c.CacheTTL = getEnvDuration("CACHE_TTL", c.CacheTTL)
	c.CartTTL = getEnvDuration("CART_TTL", c.CartTTL)
	c.RateLimit = getEnvInt("RATE_LIMIT", c.RateLimit)
	c.RateWindow = getEnvDuration("RATE_WINDOW", c.RateWindow)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		slog.Warn("Ignoring invalid integer", "key", key, "value", v)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		slog.Warn("Ignoring invalid duration", "key", key, "value", v)
		return fallback
	}
	return d
}

func getEnvInts(key string, fallback []int) []int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			slog.Warn("Ignoring invalid port list", "key", key, "value", v)
			return fallback
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
