package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every tunable of the service.
type Config struct {
	Server ServerConfig
	Upload UploadConfig
	Chat   ChatConfig
	Log    LogConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	upload, err := loadUploadConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Upload: upload,
		Chat:   chat,
		Log:    loadLogConfig(),
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value %q: %w", port, err)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// UploadConfig describes the file ingestion pipeline.
type UploadConfig struct {
	// Dir is the storage root every upload lands in, relative to the
	// working directory unless absolute. Created at startup if absent.
	Dir string
	// MaxBytes caps a single request body. Enforced at the transport
	// boundary, not inside the sink.
	MaxBytes int64
}

const defaultMaxUploadBytes = 2 << 30 // 2 GiB

func loadUploadConfig() (UploadConfig, error) {
	maxBytes, err := parseOptionalInt64Env("MAX_UPLOAD_BYTES")
	if err != nil {
		return UploadConfig{}, err
	}

	limit := int64(defaultMaxUploadBytes)
	if maxBytes != nil {
		if *maxBytes <= 0 {
			return UploadConfig{}, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", *maxBytes)
		}
		limit = *maxBytes
	}

	return UploadConfig{
		Dir:      getEnvOrDefault("UPLOAD_DIR", "uploads"),
		MaxBytes: limit,
	}, nil
}

// ChatConfig describes the broadcast channel and per-session limits.
type ChatConfig struct {
	// BusCapacity bounds each subscriber's buffer; a reader that lags
	// further than this loses its oldest undelivered messages.
	BusCapacity int
	// IdleTimeout closes sessions whose peer stops answering pings.
	IdleTimeout time.Duration
	// MessagesPerSec throttles a single participant. Zero disables it.
	MessagesPerSec int
}

func loadChatConfig() (ChatConfig, error) {
	capacity := 100
	if override, err := parseOptionalIntEnv("BUS_CAPACITY"); err != nil {
		return ChatConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ChatConfig{}, fmt.Errorf("BUS_CAPACITY must be at least 1, got %d", *override)
		}
		capacity = *override
	}

	idleSeconds := 300
	if override, err := parseOptionalIntEnv("CHAT_IDLE_TIMEOUT"); err != nil {
		return ChatConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ChatConfig{}, fmt.Errorf("CHAT_IDLE_TIMEOUT must be at least 1 second, got %d", *override)
		}
		idleSeconds = *override
	}

	perSec := 10
	if override, err := parseOptionalIntEnv("CHAT_MSGS_PER_SEC"); err != nil {
		return ChatConfig{}, err
	} else if override != nil {
		if *override < 0 {
			return ChatConfig{}, fmt.Errorf("CHAT_MSGS_PER_SEC must not be negative, got %d", *override)
		}
		perSec = *override
	}

	return ChatConfig{
		BusCapacity:    capacity,
		IdleTimeout:    time.Duration(idleSeconds) * time.Second,
		MessagesPerSec: perSec,
	}, nil
}

// LogConfig describes log verbosity and output shape.
type LogConfig struct {
	Level string
	JSON  bool
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level: getEnvOrDefault("LOG_LEVEL", "info"),
		JSON:  strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_JSON")), "true"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalInt64Env(key string) (*int64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
