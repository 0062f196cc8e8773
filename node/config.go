package node

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/pelletier/go-toml"
)

const (
	defPollInterval = 2 * time.Second
	defRetryBase    = 200 * time.Millisecond
	defMaxRetries   = 5
	defDataQuality  = 1.0
)

type Config struct {
	Node        NodeConfig        `toml:"node"`
	Coordinator CoordinatorConfig `toml:"coordinator"`
}

type NodeConfig struct {
	ID          string  `toml:"id"`
	Region      string  `toml:"region"`
	DataQuality float64 `toml:"data_quality"`
	Dimension   int     `toml:"dimension"`
	Seed        int64   `toml:"seed"`
}

type CoordinatorConfig struct {
	URL             string `toml:"url"`
	PollInterval    string `toml:"poll_interval"`
	RetryBase       string `toml:"retry_base"`
	MaxRetries      uint64 `toml:"max_retries"`
	TLSVerification bool   `toml:"tls_verification"`
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes a TOML document, fills defaults and validates it. An
// empty node id is replaced by a generated name.
func ParseConfig(data []byte) (Config, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return Config{}, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Node.ID == "" {
		cfg.Node.ID = namegenerator.NewGenerator().Generate()
	}
	if cfg.Node.DataQuality == 0 {
		cfg.Node.DataQuality = defDataQuality
	}
	if cfg.Coordinator.MaxRetries == 0 {
		cfg.Coordinator.MaxRetries = defMaxRetries
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.Node.Dimension <= 0 {
		return errors.New("node.dimension must be positive")
	}
	if !(c.Node.DataQuality > 0 && c.Node.DataQuality <= 1) {
		return errors.New("node.data_quality must be in (0, 1]")
	}
	if c.Coordinator.URL == "" {
		return errors.New("coordinator.url is required")
	}
	if _, err := url.ParseRequestURI(c.Coordinator.URL); err != nil {
		return fmt.Errorf("coordinator.url is not a valid URL: %w", err)
	}
	if _, err := parseDuration(c.Coordinator.PollInterval, defPollInterval); err != nil {
		return fmt.Errorf("coordinator.poll_interval: %w", err)
	}
	if _, err := parseDuration(c.Coordinator.RetryBase, defRetryBase); err != nil {
		return fmt.Errorf("coordinator.retry_base: %w", err)
	}

	return nil
}

func (c Config) AgentConfig() AgentConfig {
	poll, _ := parseDuration(c.Coordinator.PollInterval, defPollInterval)
	base, _ := parseDuration(c.Coordinator.RetryBase, defRetryBase)

	return AgentConfig{
		DataQuality:  c.Node.DataQuality,
		PollInterval: poll,
		RetryBase:    base,
		MaxRetries:   c.Coordinator.MaxRetries,
	}
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}

	return d, nil
}
