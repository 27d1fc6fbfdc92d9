package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Config is the bot's YAML configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`
	DBPath   string `yaml:"db_path"`

	Bot struct {
		Prefix  string `yaml:"prefix"`
		OwnerID string `yaml:"owner_id"`
	} `yaml:"bot"`

	Render struct {
		PoolSize   int           `yaml:"pool_size"`
		Deadline   time.Duration `yaml:"deadline"`
		WorkerArgv []string      `yaml:"worker_argv"`
	} `yaml:"render"`

	API struct {
		Listen string `yaml:"listen"`
		APIKey string `yaml:"api_key"`
	} `yaml:"api"`

	Delivery struct {
		URL   string `yaml:"url"`
		Token string `yaml:"token"`
	} `yaml:"delivery"`

	// path the config was loaded from, for integrity checks.
	sourcePath string
}

// Defaults returns a Config with every field at its default.
func Defaults() *Config {
	cfg := &Config{}
	cfg.LogLevel = "INFO"
	cfg.DBPath = "data/tsukumo.db"
	cfg.Bot.Prefix = "j!"
	cfg.Render.PoolSize = 4
	cfg.Render.Deadline = 5 * time.Second
	cfg.API.Listen = "127.0.0.1:8196"
	return cfg
}

// Load reads, env-expands, and validates configuration from path.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", path, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	expanded := envVarPattern.ReplaceAllStringFunc(string(data), func(m string) string {
		name := envVarPattern.FindStringSubmatch(m)[1]
		return os.Getenv(name)
	})

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.sourcePath = absPath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot start
// with.
func (c *Config) Validate() error {
	if c.Bot.Prefix == "" {
		return fmt.Errorf("bot.prefix must not be empty")
	}
	if c.Render.PoolSize <= 0 {
		return fmt.Errorf("render.pool_size must be positive, got %d", c.Render.PoolSize)
	}
	if c.Render.Deadline <= 0 {
		return fmt.Errorf("render.deadline must be positive, got %s", c.Render.Deadline)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	return nil
}

// SourcePath returns the file the config was loaded from, or "" if built
// in memory.
func (c *Config) SourcePath() string {
	return c.sourcePath
}
