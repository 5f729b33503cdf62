package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode string `mapstructure:"mode"`
	Port int    `mapstructure:"port"`

	RedisURL string `mapstructure:"redis_url"`

	AuthSecret   string `mapstructure:"auth_secret"`
	AuthDisabled bool   `mapstructure:"auth_disabled"`

	LiveKitAPIKey    string `mapstructure:"livekit_api_key"`
	LiveKitAPISecret string `mapstructure:"livekit_api_secret"`
	LiveKitURL       string `mapstructure:"livekit_url"`

	ChatHistoryLimit int           `mapstructure:"chat_history_limit"`
	ChatTTL          time.Duration `mapstructure:"-"`
	VoteThrottle     time.Duration `mapstructure:"-"`

	LogLevel string `mapstructure:"log_level"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("QS")
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 4000)
	v.SetDefault("redis_url", "redis://localhost:6379")
	v.SetDefault("auth_secret", "")
	v.SetDefault("auth_disabled", false)
	v.SetDefault("livekit_api_key", "")
	v.SetDefault("livekit_api_secret", "")
	v.SetDefault("livekit_url", "")
	v.SetDefault("chat_history_limit", 200)
	v.SetDefault("chat_ttl", "10m")
	v.SetDefault("vote_throttle", "2s")
	v.SetDefault("log_level", "info")

	// The deployment already sets these unprefixed names, keep honoring them.
	for key, envs := range map[string][]string{
		"port":               {"PORT"},
		"redis_url":          {"REDIS_URL"},
		"auth_secret":        {"AUTH_SECRET"},
		"auth_disabled":      {"WS_AUTH_DISABLED"},
		"livekit_api_key":    {"LIVEKIT_API_KEY"},
		"livekit_api_secret": {"LIVEKIT_API_SECRET"},
		"livekit_url":        {"LIVEKIT_URL"},
		"chat_history_limit": {"CHAT_HISTORY_LIMIT"},
		"chat_ttl":           {"CHAT_TTL"},
		"vote_throttle":      {"VOTE_THROTTLE_WINDOW_MS", "VOTE_THROTTLE_WINDOW"},
		"log_level":          {"LOG_LEVEL"},
	} {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.ChatHistoryLimit <= 0 {
		cfg.ChatHistoryLimit = 200
	}
	cfg.ChatTTL = parseWindow(v.GetString("chat_ttl"), 10*time.Minute)
	cfg.VoteThrottle = parseWindow(v.GetString("vote_throttle"), 2*time.Second)
	return &cfg, nil
}

// LiveKitConfigured reports whether all LiveKit credentials are set.
func (c *Config) LiveKitConfigured() bool {
	return c.LiveKitAPIKey != "" && c.LiveKitAPISecret != "" && c.LiveKitURL != ""
}

// parseWindow accepts Go duration syntax or a bare integer, which the
// deployment's env files express in milliseconds. Unparseable or
// non-positive values fall back to the default.
func parseWindow(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		if ms <= 0 {
			return fallback
		}
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return fallback
}
