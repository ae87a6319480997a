package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "relay"

type Config struct {
	ServerAddr     string   `envconfig:"ADDR" default:"localhost:8000"`
	UploadDir      string   `envconfig:"UPLOAD_DIR" default:"uploads"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
	SendQueueSize  int      `envconfig:"SEND_QUEUE_SIZE" default:"256"`
}

// FromEnv builds a Config from RELAY_* environment variables.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("upload directory cannot be empty")
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("send queue size must be positive")
	}

	return nil
}
