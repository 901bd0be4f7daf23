// Package config holds the application configuration layered on top of the core bot config.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/sessionbot/core/config"
	coredatabase "github.com/m3rciful/sessionbot/core/database"
)

// MTProtoConfig carries the API credentials used by transient login sessions.
type MTProtoConfig struct {
	AppID   int    `yaml:"app_id" envconfig:"MTPROTO_APP_ID"`
	AppHash string `yaml:"app_hash" envconfig:"MTPROTO_APP_HASH"`
	// ConnectTimeout bounds the initial handshake with Telegram.
	ConnectTimeout time.Duration `yaml:"connect_timeout" envconfig:"MTPROTO_CONNECT_TIMEOUT"`
}

// LoginConfig tunes the login conversation.
type LoginConfig struct {
	IdleTimeout      time.Duration `yaml:"idle_timeout" envconfig:"LOGIN_IDLE_TIMEOUT"`
	DisableAnimation bool          `yaml:"disable_animation" envconfig:"LOGIN_DISABLE_ANIMATION"`
	FrameInterval    time.Duration `yaml:"frame_interval" envconfig:"LOGIN_FRAME_INTERVAL"`
	MaxRetries       int           `yaml:"max_retries" envconfig:"LOGIN_MAX_RETRIES"`
	MaxFloodWait     time.Duration `yaml:"max_flood_wait" envconfig:"LOGIN_MAX_FLOOD_WAIT"`
	// ExposeErrors shows sanitized library error text to users on generic failures.
	ExposeErrors bool `yaml:"expose_errors" envconfig:"LOGIN_EXPOSE_ERRORS"`
	MaxSessions  int  `yaml:"max_sessions" envconfig:"LOGIN_MAX_SESSIONS"`
}

// LimitsConfig describes the free tier.
type LimitsConfig struct {
	FreeDaily int `yaml:"free_daily" envconfig:"LIMITS_FREE_DAILY"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database     coredatabase.Config `yaml:"database"`
	MTProto      MTProtoConfig       `yaml:"mtproto"`
	Login        LoginConfig         `yaml:"login"`
	Limits       LimitsConfig        `yaml:"limits"`
	PremiumUsers []int64             `yaml:"premium_users" envconfig:"PREMIUM_USERS"`
}

// CoreConfig exposes the embedded core configuration to the shared runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads YAML, .env and environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return err
	}

	if cfg.MTProto.AppID <= 0 {
		return fmt.Errorf("mtproto.app_id is required")
	}
	cfg.MTProto.AppHash = strings.TrimSpace(cfg.MTProto.AppHash)
	if cfg.MTProto.AppHash == "" {
		return fmt.Errorf("mtproto.app_hash is required")
	}
	if cfg.MTProto.ConnectTimeout <= 0 {
		cfg.MTProto.ConnectTimeout = 30 * time.Second
	}

	l := &cfg.Login
	if l.IdleTimeout <= 0 {
		l.IdleTimeout = 10 * time.Minute
	}
	if l.FrameInterval <= 0 {
		l.FrameInterval = 300 * time.Millisecond
	}
	if l.MaxRetries < 0 {
		return fmt.Errorf("login.max_retries must be >= 0")
	}
	if l.MaxRetries == 0 {
		l.MaxRetries = 1
	}
	if l.MaxFloodWait <= 0 {
		l.MaxFloodWait = 5 * time.Minute
	}
	if l.MaxSessions <= 0 {
		l.MaxSessions = 10_000
	}

	if cfg.Limits.FreeDaily <= 0 {
		cfg.Limits.FreeDaily = 10
	}
	return nil
}
