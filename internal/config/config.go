// Package config loads the yaml configuration file. Every field has a
// default except the bot token, which has no sensible one.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Pudxe/todolist/internal/db"
)

// ErrMissingToken is returned by RequireBotToken when no token is configured.
var ErrMissingToken = errors.New("bot token is not configured (set bot.token or TODOLIST_BOT_TOKEN)")

type Config struct {
	Bot    BotConfig `yaml:"bot"`
	DB     DBConfig  `yaml:"db"`
	Listen string    `yaml:"listen"`
}

type BotConfig struct {
	Token       string `yaml:"token"`
	PollTimeout int    `yaml:"poll_timeout"` // seconds
}

type DBConfig struct {
	Path string `yaml:"path"`
}

// DefaultPath returns the default config location (~/.todolist/config.yaml)
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".todolist", "config.yaml")
}

func defaults() *Config {
	return &Config{
		Bot:    BotConfig{PollTimeout: 30},
		DB:     DBConfig{Path: db.DefaultPath()},
		Listen: "0.0.0.0:8080",
	}
}

// Load reads the config file at path. A missing file is not an error: the
// defaults apply, and the bot token may still come from the environment.
// TODOLIST_BOT_TOKEN always wins over the file so deployments can keep the
// credential out of it.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// fall through to env
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if token := os.Getenv("TODOLIST_BOT_TOKEN"); token != "" {
		cfg.Bot.Token = token
	}
	if cfg.Bot.PollTimeout <= 0 {
		cfg.Bot.PollTimeout = 30
	}
	if cfg.DB.Path == "" {
		cfg.DB.Path = db.DefaultPath()
	}
	if cfg.Listen == "" {
		cfg.Listen = "0.0.0.0:8080"
	}
	return cfg, nil
}

// RequireBotToken returns the configured token or ErrMissingToken.
func (c *Config) RequireBotToken() (string, error) {
	if c.Bot.Token == "" {
		return "", ErrMissingToken
	}
	return c.Bot.Token, nil
}
