package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/racetime/go/internal/auth"
	"github.com/mcdev12/racetime/go/internal/gateway"
	"github.com/mcdev12/racetime/go/internal/timing"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "config.yaml"

type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"server"`

	Auth struct {
		Secret     string        `yaml:"secret"`
		Issuer     string        `yaml:"issuer"`
		AccessTTL  time.Duration `yaml:"access_ttl"`
		RefreshTTL time.Duration `yaml:"refresh_ttl"`
	} `yaml:"auth"`

	Gateway struct {
		SendTimeout    time.Duration `yaml:"send_timeout"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		MaxMessageSize int64         `yaml:"max_message_size"`
		SendBuffer     int           `yaml:"send_buffer"`
	} `yaml:"gateway"`

	Timing struct {
		MaxRecordsPerTeam int `yaml:"max_records_per_team"`
		MaxBatchEntries   int `yaml:"max_batch_entries"`
	} `yaml:"timing"`

	// Redis is optional; without an address snapshots are read from Postgres.
	Redis struct {
		Addr        string        `yaml:"addr"`
		Password    string        `yaml:"password"`
		DB          int           `yaml:"db"`
		SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
	} `yaml:"redis"`

	// NATS is optional; without a URL transitions are broadcast in-process only.
	NATS struct {
		URL           string `yaml:"url"`
		Stream        string `yaml:"stream"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	Admin struct {
		Key string `yaml:"key"`
		// External disables the admin transition routes and watches the
		// database for transitions committed by another tool.
		External bool `yaml:"external"`
	} `yaml:"admin"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

func defaultConfig() *Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Server.AllowedOrigins = []string{"*"}

	tokens := auth.DefaultTokenConfig()
	cfg.Auth.Issuer = tokens.Issuer
	cfg.Auth.AccessTTL = tokens.AccessTTL
	cfg.Auth.RefreshTTL = tokens.RefreshTTL

	gw := gateway.DefaultConfig()
	cfg.Gateway.SendTimeout = gw.SendTimeout
	cfg.Gateway.ReadTimeout = gw.ReadTimeout
	cfg.Gateway.WriteTimeout = gw.WriteTimeout
	cfg.Gateway.PingInterval = gw.PingInterval
	cfg.Gateway.MaxMessageSize = gw.MaxMessageSize
	cfg.Gateway.SendBuffer = gw.SendBuffer

	cfg.Timing.MaxRecordsPerTeam = timing.DefaultMaxRecordsPerTeam
	cfg.Timing.MaxBatchEntries = timing.DefaultMaxBatchEntries

	cfg.Redis.SnapshotTTL = 10 * time.Minute

	cfg.Log.Level = "info"
	return &cfg
}

// loadConfig reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	c.Auth.Secret = getEnv("JWT_SECRET", c.Auth.Secret)
	c.Auth.AccessTTL = getEnvAsDuration("JWT_ACCESS_TTL", c.Auth.AccessTTL)
	c.Auth.RefreshTTL = getEnvAsDuration("JWT_REFRESH_TTL", c.Auth.RefreshTTL)

	c.Gateway.SendTimeout = getEnvAsDuration("WS_SEND_TIMEOUT", c.Gateway.SendTimeout)
	c.Gateway.PingInterval = getEnvAsDuration("WS_PING_INTERVAL", c.Gateway.PingInterval)

	c.Timing.MaxRecordsPerTeam = getEnvAsInt("MAX_RECORDS_PER_TEAM", c.Timing.MaxRecordsPerTeam)
	c.Timing.MaxBatchEntries = getEnvAsInt("MAX_BATCH_ENTRIES", c.Timing.MaxBatchEntries)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)

	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)

	c.Admin.Key = getEnv("ADMIN_KEY", c.Admin.Key)
	c.Admin.External = getEnvAsBool("ADMIN_EXTERNAL", c.Admin.External)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Pretty = getEnvAsBool("LOG_PRETTY", c.Log.Pretty)
}

func (c *Config) validate() error {
	if c.Auth.Secret == "" {
		return errors.New("auth secret is required (set JWT_SECRET)")
	}
	if c.Timing.MaxRecordsPerTeam < 0 {
		return fmt.Errorf("timing.max_records_per_team must not be negative, got %d", c.Timing.MaxRecordsPerTeam)
	}
	return nil
}

func (c *Config) tokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		Secret:     c.Auth.Secret,
		Issuer:     c.Auth.Issuer,
		AccessTTL:  c.Auth.AccessTTL,
		RefreshTTL: c.Auth.RefreshTTL,
	}
}

func (c *Config) gatewayConfig() gateway.Config {
	gw := gateway.DefaultConfig()
	gw.SendTimeout = c.Gateway.SendTimeout
	gw.ReadTimeout = c.Gateway.ReadTimeout
	gw.WriteTimeout = c.Gateway.WriteTimeout
	gw.PingInterval = c.Gateway.PingInterval
	gw.MaxMessageSize = c.Gateway.MaxMessageSize
	gw.SendBuffer = c.Gateway.SendBuffer
	gw.AllowedOrigins = c.Server.AllowedOrigins
	return gw
}

func (c *Config) timingConfig() timing.Config {
	return timing.Config{
		MaxRecordsPerTeam: c.Timing.MaxRecordsPerTeam,
		MaxBatchEntries:   c.Timing.MaxBatchEntries,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
