package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"igrelay/pkg/logger"
)

// Config holds all configuration options for the relay
type Config struct {
	// Telegram delivery settings
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`

	// Accounts maps tracked Instagram accounts to Telegram destinations
	Accounts []AccountConfig `yaml:"accounts" json:"accounts"`

	// Caption formatting settings
	Caption CaptionConfig `yaml:"caption" json:"caption"`

	// External scraper settings
	Scraper ScraperConfig `yaml:"scraper" json:"scraper"`

	// Proxy discovery settings
	Proxy ProxyConfig `yaml:"proxy" json:"proxy"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// TelegramConfig holds Bot API settings
type TelegramConfig struct {
	Token             string        `yaml:"token" json:"token"`
	APIBaseURL        string        `yaml:"api_base_url" json:"api_base_url"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`
	SendDelay         time.Duration `yaml:"send_delay" json:"send_delay"`
	MessagesPerMinute int           `yaml:"messages_per_minute" json:"messages_per_minute"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
}

// AccountConfig routes one tracked account to its destination chats
type AccountConfig struct {
	Username string   `yaml:"username" json:"username"`
	ChatIDs  []string `yaml:"chat_ids" json:"chat_ids"`
}

// CaptionConfig holds caption formatting settings
type CaptionConfig struct {
	MaxLength   int    `yaml:"max_length" json:"max_length"`
	Tail        string `yaml:"tail" json:"tail"`
	IncludeLink bool   `yaml:"include_link" json:"include_link"`
}

// ScraperConfig describes the external scraper collaborator and the cycle loop
type ScraperConfig struct {
	Command string        `yaml:"command" json:"command"`
	Args    []string      `yaml:"args" json:"args"`
	TempDir string        `yaml:"temp_dir" json:"temp_dir"`
	Limit   int           `yaml:"limit" json:"limit"`
	Period  time.Duration `yaml:"period" json:"period"`
}

// ProxyConfig holds proxy discovery settings
type ProxyConfig struct {
	ListingURL string        `yaml:"listing_url" json:"listing_url"`
	ProbeURL   string        `yaml:"probe_url" json:"probe_url"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	MaxTries   int           `yaml:"max_tries" json:"max_tries"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// LoggerConfig converts the section into the logger package's config value
func (c *LoggingConfig) LoggerConfig() *logger.Config {
	return &logger.Config{
		Level:      c.Level,
		File:       c.File,
		MaxSizeMB:  c.MaxSize,
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
	}
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			APIBaseURL:        "https://api.telegram.org",
			RequestTimeout:    30 * time.Second,
			SendDelay:         2 * time.Second,
			MessagesPerMinute: 20,
			MaxRetries:        3,
		},
		Caption: CaptionConfig{
			MaxLength:   1024,
			Tail:        "...",
			IncludeLink: false,
		},
		Scraper: ScraperConfig{
			Command: "instagram-scraper",
			TempDir: "tmp",
			Limit:   5,
			Period:  time.Hour,
		},
		Proxy: ProxyConfig{
			ListingURL: "https://free-proxy-list.net",
			ProbeURL:   "https://httpbin.org/ip",
			Timeout:    5 * time.Second,
			MaxTries:   10,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       filepath.Join("logs", "igrelay.log"),
			MaxSize:    2,
			MaxBackups: 2,
			Compress:   false,
		},
	}
}

// Usernames returns the tracked account names in configuration order
func (c *Config) Usernames() []string {
	names := make([]string, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		names = append(names, a.Username)
	}
	return names
}

// ChatIDsFor returns the destination chats for a tracked account
func (c *Config) ChatIDsFor(username string) []string {
	for _, a := range c.Accounts {
		if a.Username == username {
			return a.ChatIDs
		}
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if token := os.Getenv("IGRELAY_BOT_TOKEN"); token != "" {
		c.Telegram.Token = token
	}
	if tempDir := os.Getenv("IGRELAY_TEMP_DIR"); tempDir != "" {
		c.Scraper.TempDir = tempDir
	}
	if period := os.Getenv("IGRELAY_SCRAPE_PERIOD"); period != "" {
		if d, err := time.ParseDuration(period); err == nil && d > 0 {
			c.Scraper.Period = d
		}
	}
	if limit := os.Getenv("IGRELAY_SCRAPE_LIMIT"); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil && val > 0 {
			c.Scraper.Limit = val
		}
	}
	if includeLink := os.Getenv("IGRELAY_INCLUDE_LINK"); includeLink != "" {
		c.Caption.IncludeLink = strings.ToLower(includeLink) == "true"
	}
	if logLevel := os.Getenv("IGRELAY_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".igrelay.yaml",
		".igrelay.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "igrelay", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "igrelay", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".igrelay.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// The bot token is checked at startup instead; it may come from the
	// credential manager rather than the config sources.
	if c.Telegram.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Telegram.SendDelay < 0 {
		errs = append(errs, errors.New("send delay cannot be negative"))
	}
	if c.Telegram.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if len(c.Accounts) == 0 {
		errs = append(errs, errors.New("at least one tracked account is required"))
	}
	for _, a := range c.Accounts {
		if a.Username == "" {
			errs = append(errs, errors.New("account username cannot be empty"))
		}
		if len(a.ChatIDs) == 0 {
			errs = append(errs, fmt.Errorf("account %q has no destination chats", a.Username))
		}
	}

	if c.Caption.MaxLength <= utf8.RuneCountInString(c.Caption.Tail) {
		errs = append(errs, errors.New("caption max length must exceed the tail length"))
	}

	if c.Scraper.Command == "" {
		errs = append(errs, errors.New("scraper command is required"))
	}
	if c.Scraper.TempDir == "" {
		errs = append(errs, errors.New("temp directory is required"))
	}
	if c.Scraper.Limit <= 0 {
		errs = append(errs, errors.New("scrape limit must be positive"))
	}
	if c.Scraper.Period <= 0 {
		errs = append(errs, errors.New("scrape period must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if token, ok := flags["token"].(string); ok && token != "" {
		c.Telegram.Token = token
	}
	if tempDir, ok := flags["temp-dir"].(string); ok && tempDir != "" {
		c.Scraper.TempDir = tempDir
	}
	if period, ok := flags["period"].(time.Duration); ok && period > 0 {
		c.Scraper.Period = period
	}
	if limit, ok := flags["limit"].(int); ok && limit > 0 {
		c.Scraper.Limit = limit
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igrelay.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
