// Package config loads canvas-graph settings from defaults, an optional
// YAML file and environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	DBPath      string `yaml:"db_path"`
	Addr        string `yaml:"addr"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`

	// Authentication
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`

	// Frame locks. An empty RedisURL keeps locks in process.
	RedisURL      string        `yaml:"redis_url"`
	FrameLockTTL  time.Duration `yaml:"frame_lock_ttl"`
	FrameLockWait time.Duration `yaml:"frame_lock_wait"`

	CORSOrigins       []string      `yaml:"cors_origins"`
	MovementListLimit int           `yaml:"movement_list_limit"`
	MetadataTTL       time.Duration `yaml:"metadata_ttl"`
	EnableMetrics     bool          `yaml:"enable_metrics"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DBPath:            filepath.Join(home, ".canvas-graph", "canvas.db"),
		Addr:              ":8080",
		Environment:       "development",
		LogLevel:          "info",
		JWTIssuer:         "canvas-graph",
		FrameLockTTL:      10 * time.Second,
		FrameLockWait:     5 * time.Second,
		CORSOrigins:       []string{"*"},
		MovementListLimit: 500,
		MetadataTTL:       30 * 24 * time.Hour,
		EnableMetrics:     true,
	}
}

// Load builds the configuration. When CANVAS_CONFIG names a YAML file it is
// applied over the defaults; environment variables win over both.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CANVAS_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() {
	c.DBPath = getEnv("CANVAS_DB", c.DBPath)
	c.Addr = getEnv("CANVAS_ADDR", c.Addr)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)

	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.FrameLockTTL = getEnvDuration("FRAME_LOCK_TTL", c.FrameLockTTL)
	c.FrameLockWait = getEnvDuration("FRAME_LOCK_WAIT", c.FrameLockWait)

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	c.MovementListLimit = getEnvInt("MOVEMENT_LIST_LIMIT", c.MovementListLimit)
	c.MetadataTTL = getEnvDuration("METADATA_TTL", c.MetadataTTL)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.IsProduction() && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	if c.FrameLockTTL <= 0 {
		return fmt.Errorf("FRAME_LOCK_TTL must be positive, got %s", c.FrameLockTTL)
	}
	if c.FrameLockWait < 0 {
		return fmt.Errorf("FRAME_LOCK_WAIT must not be negative, got %s", c.FrameLockWait)
	}
	if c.MovementListLimit < 0 {
		return fmt.Errorf("MOVEMENT_LIST_LIMIT must not be negative, got %d", c.MovementListLimit)
	}
	return nil
}

// IsProduction checks if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
