package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/BrownNPC/CallRelay/signaling"
)

type Config struct {
	Host     string `envconfig:"HOST"`
	Port     int    `envconfig:"PORT" default:"5000" validate:"min=1,max=65535"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"2s" validate:"gt=0"`
	PingInterval      time.Duration `envconfig:"PING_INTERVAL" default:"10s" validate:"gt=0"`
	MessagesPerSecond float64       `envconfig:"MESSAGES_PER_SECOND" default:"10" validate:"gt=0"`
	MessageBurst      int           `envconfig:"MESSAGE_BURST" default:"20" validate:"min=1"`
	SendQueueSize     int           `envconfig:"SEND_QUEUE_SIZE" default:"32" validate:"min=1"`
	ReadLimitBytes    int64         `envconfig:"READ_LIMIT_BYTES" default:"65536" validate:"min=1024"`
	// Origins allowed to open a websocket, as path.Match patterns. Empty means same host only.
	OriginPatterns  []string      `envconfig:"ORIGIN_PATTERNS" default:"*"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s" validate:"gt=0"`
}

var validate = validator.New()

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config.Validate: %w", err)
	}
	return nil
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func (c Config) Server() signaling.ServerConfig {
	return signaling.ServerConfig{
		WriteTimeout:      c.WriteTimeout,
		PingInterval:      c.PingInterval,
		MessagesPerSecond: c.MessagesPerSecond,
		MessageBurst:      c.MessageBurst,
		SendQueueSize:     c.SendQueueSize,
		ReadLimit:         c.ReadLimitBytes,
	}
}
