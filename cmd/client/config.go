package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `envconfig:"CHAT_SERVER_URL" default:"http://localhost:8080"`
	Email     string `envconfig:"CHAT_EMAIL" required:"true"`
	Password  string `envconfig:"CHAT_PASSWORD" required:"true"`
	// CHAT_NAME registers the account first when set
	Name          string        `envconfig:"CHAT_NAME"`
	TypingTimeout time.Duration `envconfig:"CHAT_TYPING_TIMEOUT" default:"3s"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"WARN"`
	Colours       bool          `envconfig:"CHAT_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
