package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultAPIBase             = "https://rest.cosmos.directory/symphony"
	DefaultIntervalSeconds     = 300
	DefaultLowBalanceThreshold = 1_000_000
	DefaultDenom               = "note"
	DefaultRetryCooldownSecs   = 60
	DefaultRequestPauseMillis  = 100
	DefaultRequestTimeoutSecs  = 15
	DefaultDataDir             = "data"
	DefaultHealthAddr          = "127.0.0.1:9090"
	DefaultHistoryLimit        = 100
)

// Config holds the monitor configuration, loaded once at startup
type Config struct {
	Discord DiscordConfig `yaml:"discord"`
	Log     LogConfig     `yaml:"log"`

	APIBase             string `yaml:"api_base"`
	IntervalSeconds     int    `yaml:"interval"`
	LowBalanceThreshold uint64 `yaml:"low_balance_threshold"`
	Denom               string `yaml:"denom"`
	RetryCooldownSecs   int    `yaml:"retry_cooldown"`
	RequestPauseMillis  int    `yaml:"request_pause"`
	RequestTimeoutSecs  int    `yaml:"request_timeout"`
	DataDir             string `yaml:"data_dir"`
	HealthAddr          string `yaml:"health_addr"`
	HistoryLimit        int    `yaml:"history_limit"`
	DryRun              bool   `yaml:"dry_run"`
}

// DiscordConfig identifies the bot and the channel reports are posted to
type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

// LogConfig controls log output
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a configuration with every optional field set
func Default() *Config {
	return &Config{
		Log:                 LogConfig{Level: "info"},
		APIBase:             DefaultAPIBase,
		IntervalSeconds:     DefaultIntervalSeconds,
		LowBalanceThreshold: DefaultLowBalanceThreshold,
		Denom:               DefaultDenom,
		RetryCooldownSecs:   DefaultRetryCooldownSecs,
		RequestPauseMillis:  DefaultRequestPauseMillis,
		RequestTimeoutSecs:  DefaultRequestTimeoutSecs,
		DataDir:             DefaultDataDir,
		HealthAddr:          DefaultHealthAddr,
		HistoryLimit:        DefaultHistoryLimit,
	}
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and the process environment, in that order
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if envFile != "" {
		// godotenv.Load never overrides variables already set in the environment
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a boolean", key, v))
				return
			}
			*dst = b
		}
	}

	str("DISCORD_BOT_TOKEN", &c.Discord.Token)
	str("DISCORD_CHANNEL_ID", &c.Discord.ChannelID)
	str("SYMPHONY_API_BASE", &c.APIBase)
	integer("MONITORING_INTERVAL", &c.IntervalSeconds)
	str("FEEDER_DENOM", &c.Denom)
	integer("RETRY_COOLDOWN", &c.RetryCooldownSecs)
	integer("REQUEST_PAUSE_MS", &c.RequestPauseMillis)
	integer("REQUEST_TIMEOUT", &c.RequestTimeoutSecs)
	str("DATA_DIR", &c.DataDir)
	if v, ok := lookup("HEALTH_ADDR"); ok {
		// An explicitly empty HEALTH_ADDR disables the health server
		c.HealthAddr = v
	}
	integer("HISTORY_LIMIT", &c.HistoryLimit)
	str("LOG_LEVEL", &c.Log.Level)
	boolean("LOG_JSON", &c.Log.JSON)
	boolean("DRY_RUN", &c.DryRun)

	if v, ok := lookup("LOW_BALANCE_THRESHOLD"); ok && v != "" {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("LOW_BALANCE_THRESHOLD: %q is not a non-negative integer", v))
		} else {
			c.LowBalanceThreshold = n
		}
	}

	return errors.Join(errs...)
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var errs []error

	if !c.DryRun {
		if c.Discord.Token == "" {
			errs = append(errs, errors.New("discord bot token is required (DISCORD_BOT_TOKEN)"))
		}
		if c.Discord.ChannelID == "" {
			errs = append(errs, errors.New("discord channel id is required (DISCORD_CHANNEL_ID)"))
		} else if _, err := strconv.ParseUint(c.Discord.ChannelID, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("discord channel id %q must be numeric", c.Discord.ChannelID))
		}
	}

	if u, err := url.Parse(c.APIBase); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api base %q is not an absolute URL", c.APIBase))
	}
	if c.IntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %d", c.IntervalSeconds))
	}
	if c.RetryCooldownSecs <= 0 {
		errs = append(errs, fmt.Errorf("retry cooldown must be positive, got %d", c.RetryCooldownSecs))
	}
	if c.RequestPauseMillis < 0 {
		errs = append(errs, fmt.Errorf("request pause must not be negative, got %d", c.RequestPauseMillis))
	}
	if c.RequestTimeoutSecs <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %d", c.RequestTimeoutSecs))
	}
	if c.Denom == "" {
		errs = append(errs, errors.New("feeder denom is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data dir is required"))
	}
	if c.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("history limit must not be negative, got %d", c.HistoryLimit))
	}

	return errors.Join(errs...)
}

// Interval returns the polling interval
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// RetryCooldown returns the sleep after a failed cycle
func (c *Config) RetryCooldown() time.Duration {
	return time.Duration(c.RetryCooldownSecs) * time.Second
}

// RequestPause returns the pause between chain API requests
func (c *Config) RequestPause() time.Duration {
	return time.Duration(c.RequestPauseMillis) * time.Millisecond
}

// RequestTimeout returns the per-request HTTP timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}
