package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/drawdeck/drawdeck/internal/envutil"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `yaml:"port"`
	Interface    string        `yaml:"interface"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// Addr returns the listen address in host:port form
func (s ServerConfig) Addr() string {
	return s.Interface + ":" + s.Port
}

// WebSocketConfig holds websocket tuning configuration
type WebSocketConfig struct {
	// ReadLimit is the maximum inbound message size in bytes
	ReadLimit int64 `yaml:"read_limit"`
	// SendBufferSize is the per-connection outbound queue length; messages
	// beyond it are dropped rather than blocking the room
	SendBufferSize int `yaml:"send_buffer_size"`
	// PingInterval is how often the server pings idle connections
	PingInterval time.Duration `yaml:"ping_interval"`
	// PongWait is how long to wait for a pong before dropping the connection
	PongWait time.Duration `yaml:"pong_wait"`
	// WriteWait is the per-message write deadline
	WriteWait time.Duration `yaml:"write_wait"`
	// CleanupInterval is how often idle sessions are swept
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	// SessionTimeout is how long an inactive session is kept before sweeping
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level"`
	IsDev            bool   `yaml:"is_dev"`
	Dir              string `yaml:"dir"`
	MaxAgeDays       int    `yaml:"max_age_days"`
	MaxSizeMB        int    `yaml:"max_size_mb"`
	MaxBackups       int    `yaml:"max_backups"`
	AlsoLogToConsole bool   `yaml:"also_log_to_console"`
}

// Default returns the built-in configuration defaults
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:         "8080",
			Interface:    "0.0.0.0",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		WebSocket: WebSocketConfig{
			ReadLimit:       256 * 1024,
			SendBufferSize:  256,
			PingInterval:    30 * time.Second,
			PongWait:        60 * time.Second,
			WriteWait:       10 * time.Second,
			CleanupInterval: 5 * time.Minute,
			SessionTimeout:  15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:            "info",
			IsDev:            false,
			Dir:              "logs",
			MaxAgeDays:       7,
			MaxSizeMB:        100,
			MaxBackups:       10,
			AlsoLogToConsole: true,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment overrides, in that order of increasing precedence.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 - path comes from the operator's own flag
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	cfg.Server.Port = envutil.Get("SERVER_PORT", cfg.Server.Port)
	cfg.Server.Interface = envutil.Get("SERVER_INTERFACE", cfg.Server.Interface)

	var err error
	if cfg.Server.ReadTimeout, err = envDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout); err != nil {
		return err
	}
	if cfg.Server.WriteTimeout, err = envDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout); err != nil {
		return err
	}
	if cfg.Server.IdleTimeout, err = envDuration("SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout); err != nil {
		return err
	}

	if cfg.WebSocket.ReadLimit, err = envInt64("WEBSOCKET_READ_LIMIT", cfg.WebSocket.ReadLimit); err != nil {
		return err
	}
	if cfg.WebSocket.SendBufferSize, err = envInt("WEBSOCKET_SEND_BUFFER_SIZE", cfg.WebSocket.SendBufferSize); err != nil {
		return err
	}
	if cfg.WebSocket.PingInterval, err = envDuration("WEBSOCKET_PING_INTERVAL", cfg.WebSocket.PingInterval); err != nil {
		return err
	}
	if cfg.WebSocket.PongWait, err = envDuration("WEBSOCKET_PONG_WAIT", cfg.WebSocket.PongWait); err != nil {
		return err
	}
	if cfg.WebSocket.WriteWait, err = envDuration("WEBSOCKET_WRITE_WAIT", cfg.WebSocket.WriteWait); err != nil {
		return err
	}
	if cfg.WebSocket.CleanupInterval, err = envDuration("WEBSOCKET_CLEANUP_INTERVAL", cfg.WebSocket.CleanupInterval); err != nil {
		return err
	}
	if cfg.WebSocket.SessionTimeout, err = envDuration("WEBSOCKET_SESSION_TIMEOUT", cfg.WebSocket.SessionTimeout); err != nil {
		return err
	}

	cfg.Logging.Level = envutil.Get("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Dir = envutil.Get("LOG_DIR", cfg.Logging.Dir)
	if cfg.Logging.IsDev, err = envBool("LOG_IS_DEV", cfg.Logging.IsDev); err != nil {
		return err
	}
	if cfg.Logging.AlsoLogToConsole, err = envBool("LOG_ALSO_TO_CONSOLE", cfg.Logging.AlsoLogToConsole); err != nil {
		return err
	}
	if cfg.Logging.MaxAgeDays, err = envInt("LOG_MAX_AGE_DAYS", cfg.Logging.MaxAgeDays); err != nil {
		return err
	}
	if cfg.Logging.MaxSizeMB, err = envInt("LOG_MAX_SIZE_MB", cfg.Logging.MaxSizeMB); err != nil {
		return err
	}
	if cfg.Logging.MaxBackups, err = envInt("LOG_MAX_BACKUPS", cfg.Logging.MaxBackups); err != nil {
		return err
	}

	return nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := envutil.Get(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	raw := envutil.Get(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return n, nil
}

func envInt64(key string, fallback int64) (int64, error) {
	raw := envutil.Get(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	raw := envutil.Get(key, "")
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback, fmt.Errorf("invalid boolean for %s: %w", key, err)
	}
	return b, nil
}
