package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Queue       QueueConfig     `toml:"queue"`
	Logging     LoggingConfig   `toml:"logging"`
	Scraper     ScraperConfig   `toml:"scraper"`
	Campaigns   CampaignsConfig `toml:"campaigns"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
	Host string `toml:"host" validate:"required"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g., "1s" - how often workers poll for messages
	Concurrency       int    `toml:"concurrency"`        // Number of concurrent workers
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g., "35m" - message visibility timeout for redelivery
	MaxReceive        int    `toml:"max_receive"`        // Max times a message can be received before dead-letter
	QueueName         string `toml:"queue_name"`         // Queue name prefix in Badger
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// ScraperConfig tunes the browser-driven extraction layer
type ScraperConfig struct {
	UserAgent        string        `toml:"user_agent"`
	Headless         bool          `toml:"headless"`
	MaxBrowsers      int           `toml:"max_browsers" validate:"gte=1,lte=20"`
	PageLoadTimeout  time.Duration `toml:"page_load_timeout"`
	DetailTimeout    time.Duration `toml:"detail_timeout"`    // Per-card detail extraction timeout
	ScrollSettle     time.Duration `toml:"scroll_settle"`     // Wait after each feed scroll
	MinDelay         time.Duration `toml:"min_delay"`         // Random inter-action delay lower bound
	MaxDelay         time.Duration `toml:"max_delay"`         // Random inter-action delay upper bound
	MaxStalledScrolls int          `toml:"max_stalled_scrolls"` // Consecutive scrolls without new items before stopping
	MaxRunDuration   time.Duration `toml:"max_run_duration"`  // Wall ceiling for a single extraction run
	RequestTimeout   time.Duration `toml:"request_timeout"`   // HTTP timeout for contact enrichment fetches
}

// CampaignsConfig tunes the continuous campaign scheduler
type CampaignsConfig struct {
	BatchLimit      int           `toml:"batch_limit"`      // Max leads admitted per batch run
	RunInterval     time.Duration `toml:"run_interval"`     // Delay between consecutive batch runs
	JobWallCeiling  time.Duration `toml:"job_wall_ceiling"` // Max duration of a single batch run
	DefaultLocation string        `toml:"default_location"` // Fallback when a campaign has no location
	StaleAfter      time.Duration `toml:"stale_after"`      // Running jobs without heartbeat are reset after this
}

// WebSocketConfig contains configuration for the realtime hub
type WebSocketConfig struct {
	PingInterval      time.Duration     `toml:"ping_interval"`      // Server ping after this much silence
	WriteTimeout      time.Duration     `toml:"write_timeout"`      // Per-message write deadline
	ThrottleIntervals map[string]string `toml:"throttle_intervals"` // Per event type, e.g. {"scraping_progress": "1s"}
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Queue: QueueConfig{
			PollInterval:      "1s",
			Concurrency:       4,
			VisibilityTimeout: "35m", // Longer than the 30m job wall ceiling so running batches are not redelivered
			MaxReceive:        3,
			QueueName:         "capto_jobs",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Scraper: ScraperConfig{
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Headless:          true,
			MaxBrowsers:       3,
			PageLoadTimeout:   30 * time.Second,
			DetailTimeout:     8 * time.Second,
			ScrollSettle:      1500 * time.Millisecond,
			MinDelay:          1 * time.Second,
			MaxDelay:          3 * time.Second,
			MaxStalledScrolls: 5,
			MaxRunDuration:    10 * time.Minute,
			RequestTimeout:    30 * time.Second,
		},
		Campaigns: CampaignsConfig{
			BatchLimit:      50,
			RunInterval:     30 * time.Minute,
			JobWallCeiling:  30 * time.Minute,
			DefaultLocation: "São Paulo, SP",
			StaleAfter:      45 * time.Minute,
		},
		WebSocket: WebSocketConfig{
			PingInterval: 30 * time.Second,
			WriteTimeout: 10 * time.Second,
			ThrottleIntervals: map[string]string{
				"scraping_progress": "1s",
			},
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files. Later files
// override earlier files; env vars override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks structural invariants of the configuration
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Scraper.MinDelay > c.Scraper.MaxDelay {
		return fmt.Errorf("invalid configuration: scraper min_delay exceeds max_delay")
	}
	if c.Campaigns.BatchLimit <= 0 {
		return fmt.Errorf("invalid configuration: campaigns batch_limit must be positive")
	}
	return nil
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CAPTO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("CAPTO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("CAPTO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("CAPTO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Queue configuration
	if pollInterval := os.Getenv("CAPTO_QUEUE_POLL_INTERVAL"); pollInterval != "" {
		config.Queue.PollInterval = pollInterval
	}
	if concurrency := os.Getenv("CAPTO_QUEUE_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Queue.Concurrency = c
		}
	}
	if visibilityTimeout := os.Getenv("CAPTO_QUEUE_VISIBILITY_TIMEOUT"); visibilityTimeout != "" {
		config.Queue.VisibilityTimeout = visibilityTimeout
	}

	// Logging configuration
	if level := os.Getenv("CAPTO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("CAPTO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Scraper configuration
	if userAgent := os.Getenv("CAPTO_SCRAPER_USER_AGENT"); userAgent != "" {
		config.Scraper.UserAgent = userAgent
	}
	if headless := os.Getenv("CAPTO_SCRAPER_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Scraper.Headless = h
		}
	}

	// Campaign configuration
	if location := os.Getenv("CAPTO_DEFAULT_LOCATION"); location != "" {
		config.Campaigns.DefaultLocation = location
	}
}

// PollIntervalDuration parses the queue poll interval with a safe fallback
func (q *QueueConfig) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(q.PollInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// VisibilityTimeoutDuration parses the visibility timeout with a safe fallback
func (q *QueueConfig) VisibilityTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(q.VisibilityTimeout)
	if err != nil || d <= 0 {
		return 35 * time.Minute
	}
	return d
}
