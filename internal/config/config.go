// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	BaseURL           string
	SessionCookie     string
	SessionCookieName string
	Namespace         string
	SocketIOPath      string
	RequestTimeout    time.Duration
	AckTimeout        time.Duration
	ReconnectMin      time.Duration
	ReconnectMax      time.Duration
	TimeFormat        string
	Log               LogConfig

	MetricsAddr           string   // empty disables the debug server
	MetricsAllowedOrigins []string // CORS origins of the debug server
}

// LogConfig controls where and how much the client logs. The terminal
// belongs to the UI, so logs always go to a file.
type LogConfig struct {
	File  string
	Level slog.Level
	JSON  bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		BaseURL:           getEnv("CHAT_BASE_URL", "http://localhost:5000"),
		SessionCookie:     getEnv("CHAT_SESSION_COOKIE", ""),
		SessionCookieName: getEnv("CHAT_SESSION_COOKIE_NAME", "session"),
		Namespace:         getEnv("CHAT_NAMESPACE", "/chats/going"),
		SocketIOPath:      getEnv("CHAT_SOCKETIO_PATH", "/socket.io/"),
		RequestTimeout:    getEnvDuration("CHAT_REQUEST_TIMEOUT", 15*time.Second),
		AckTimeout:        getEnvDuration("CHAT_ACK_TIMEOUT", 5*time.Second),
		ReconnectMin:      getEnvDuration("CHAT_RECONNECT_MIN", time.Second),
		ReconnectMax:      getEnvDuration("CHAT_RECONNECT_MAX", 30*time.Second),
		TimeFormat:        getEnv("CHAT_TIME_FORMAT", "15:04:05"),
		Log: LogConfig{
			File:  getEnv("LOG_FILE", "./data/logs/chatclient.log"),
			Level: getEnvLevel("LOG_LEVEL", slog.LevelInfo),
			JSON:  getEnvBool("LOG_JSON", true),
		},
		MetricsAddr:           getEnv("METRICS_ADDR", ""),
		MetricsAllowedOrigins: getEnvList("METRICS_CORS_ORIGINS"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("CHAT_BASE_URL cannot be empty")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("CHAT_BASE_URL must be an http(s) URL, got %q", c.BaseURL)
	}
	if !strings.HasPrefix(c.Namespace, "/") {
		return fmt.Errorf("CHAT_NAMESPACE must start with /")
	}
	if !strings.HasPrefix(c.SocketIOPath, "/") {
		return fmt.Errorf("CHAT_SOCKETIO_PATH must start with /")
	}
	if c.SessionCookie != "" && c.SessionCookieName == "" {
		return fmt.Errorf("CHAT_SESSION_COOKIE_NAME cannot be empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("CHAT_REQUEST_TIMEOUT must be > 0")
	}
	if c.AckTimeout <= 0 {
		return fmt.Errorf("CHAT_ACK_TIMEOUT must be > 0")
	}
	if c.ReconnectMin <= 0 {
		return fmt.Errorf("CHAT_RECONNECT_MIN must be > 0")
	}
	if c.ReconnectMax < c.ReconnectMin {
		return fmt.Errorf("CHAT_RECONNECT_MAX must be >= CHAT_RECONNECT_MIN")
	}
	if c.TimeFormat == "" {
		return fmt.Errorf("CHAT_TIME_FORMAT cannot be empty")
	}
	if c.Log.File == "" {
		return fmt.Errorf("LOG_FILE cannot be empty")
	}
	return nil
}

// MetricsEnabled returns true if the debug server should be started.
func (c *Config) MetricsEnabled() bool {
	return c.MetricsAddr != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("5s") and plain integers as seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n := getEnvInt(key, -1); n >= 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}

// getEnvList splits a comma-separated value, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
