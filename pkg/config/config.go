package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv
const EnvPrefix = "PROFILEGRAB_"

// Config holds all configuration options for profilegrab
type Config struct {
	Browser   BrowserConfig   `yaml:"browser" json:"browser"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Session   SessionConfig   `yaml:"session" json:"session"`
	Download  DownloadConfig  `yaml:"download" json:"download"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Watch     []WatchTarget   `yaml:"watch" json:"watch"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// BrowserConfig controls the automated browser and the waits around it
type BrowserConfig struct {
	Headless  bool   `yaml:"headless" json:"headless"`
	ExecPath  string `yaml:"exec_path" json:"exec_path"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	Width     int    `yaml:"window_width" json:"window_width"`
	Height    int    `yaml:"window_height" json:"window_height"`

	// SettleDelay is waited after every navigation before traffic is read.
	SettleDelay time.Duration `yaml:"settle_delay" json:"settle_delay"`
	// ScrollDelay is waited after every scroll-to-bottom.
	ScrollDelay time.Duration `yaml:"scroll_delay" json:"scroll_delay"`
	// NotLoadedDelay is waited before pagination restarts on a page that never became ready.
	NotLoadedDelay time.Duration `yaml:"not_loaded_delay" json:"not_loaded_delay"`

	MaxDriveAttempts int  `yaml:"max_drive_attempts" json:"max_drive_attempts"`
	ProfileAttempts  int  `yaml:"profile_attempts" json:"profile_attempts"`
	DOMFallback      bool `yaml:"dom_fallback" json:"dom_fallback"`
}

// OutputConfig holds the working root under which per-user folders live
type OutputConfig struct {
	WorkingRoot string `yaml:"working_root" json:"working_root"`
}

// SessionConfig selects where saved cookies are kept
type SessionConfig struct {
	Dir        string `yaml:"dir" json:"dir"`
	Backend    string `yaml:"backend" json:"backend"`
	Passphrase string `yaml:"-" json:"-"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`
	RetryAttempts       int           `yaml:"retry_attempts" json:"retry_attempts"`
	UserAgent           string        `yaml:"user_agent" json:"user_agent"`
}

// RateLimitConfig bounds how fast media is fetched from CDNs
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// ServerConfig configures the HTTP event stream
type ServerConfig struct {
	Address   string        `yaml:"address" json:"address"`
	Heartbeat time.Duration `yaml:"heartbeat" json:"heartbeat"`
}

// WatchTarget is a profile re-scraped on a cron schedule
type WatchTarget struct {
	Platform string `yaml:"platform" json:"platform"`
	Username string `yaml:"username" json:"username"`
	Schedule string `yaml:"schedule" json:"schedule"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:         true,
			UserAgent:        defaultUserAgent,
			Width:            1280,
			Height:           900,
			SettleDelay:      5 * time.Second,
			ScrollDelay:      2 * time.Second,
			NotLoadedDelay:   20 * time.Second,
			MaxDriveAttempts: 3,
			ProfileAttempts:  3,
			DOMFallback:      true,
		},
		Output: OutputConfig{
			WorkingRoot: "CloudStorage",
		},
		Session: SessionConfig{
			Dir:     "cookies",
			Backend: "file",
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 10,
			Timeout:             30 * time.Second,
			RetryAttempts:       3,
			UserAgent:           defaultUserAgent,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             10,
		},
		Server: ServerConfig{
			Address:   "127.0.0.1:5000",
			Heartbeat: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv overrides fields from PROFILEGRAB_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	boolean("HEADLESS", &c.Browser.Headless)
	str("CHROME_PATH", &c.Browser.ExecPath)
	duration("SETTLE_DELAY", &c.Browser.SettleDelay)
	duration("SCROLL_DELAY", &c.Browser.ScrollDelay)
	integer("MAX_DRIVE_ATTEMPTS", &c.Browser.MaxDriveAttempts)
	boolean("DOM_FALLBACK", &c.Browser.DOMFallback)
	str("WORKING_ROOT", &c.Output.WorkingRoot)
	str("SESSION_DIR", &c.Session.Dir)
	str("SESSION_BACKEND", &c.Session.Backend)
	str("PASSPHRASE", &c.Session.Passphrase)
	integer("CONCURRENT_DOWNLOADS", &c.Download.ConcurrentDownloads)
	duration("DOWNLOAD_TIMEOUT", &c.Download.Timeout)
	str("SERVER_ADDRESS", &c.Server.Address)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the default locations; finding nothing there is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
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

func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".profilegrab.yaml",
		".profilegrab.yml",
		filepath.Join(home, ".config", "profilegrab", "config.yaml"),
		filepath.Join(home, ".profilegrab.yaml"),
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

	if c.Browser.SettleDelay < 0 || c.Browser.ScrollDelay < 0 || c.Browser.NotLoadedDelay < 0 {
		errs = append(errs, errors.New("browser delays cannot be negative"))
	}
	if c.Browser.MaxDriveAttempts <= 0 {
		errs = append(errs, errors.New("max drive attempts must be positive"))
	}
	if c.Browser.ProfileAttempts <= 0 {
		errs = append(errs, errors.New("profile attempts must be positive"))
	}

	if c.Output.WorkingRoot == "" {
		errs = append(errs, errors.New("working root is required"))
	}

	if c.Session.Dir == "" {
		errs = append(errs, errors.New("session directory is required"))
	}
	switch strings.ToLower(c.Session.Backend) {
	case "file", "keyring", "auto":
	default:
		errs = append(errs, fmt.Errorf("invalid session backend %q", c.Session.Backend))
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 32 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 32"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.RetryAttempts < 0 {
		errs = append(errs, errors.New("retry attempts cannot be negative"))
	}

	if c.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("requests per second must be positive"))
	}
	if c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("burst must be positive"))
	}

	for i, w := range c.Watch {
		if w.Platform == "" || w.Username == "" || w.Schedule == "" {
			errs = append(errs, fmt.Errorf("watch[%d]: platform, username and schedule are required", i))
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags applies values collected from cobra flags.
// Zero values are ignored so unset flags never clobber other sources.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.WorkingRoot = v
	}
	if v, ok := flags["cookies-dir"].(string); ok && v != "" {
		c.Session.Dir = v
	}
	if v, ok := flags["session-backend"].(string); ok && v != "" {
		c.Session.Backend = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Download.ConcurrentDownloads = v
	}
	if v, ok := flags["headed"].(bool); ok && v {
		c.Browser.Headless = false
	}
	if v, ok := flags["no-dom-fallback"].(bool); ok && v {
		c.Browser.DOMFallback = false
	}
	if v, ok := flags["addr"].(string); ok && v != "" {
		c.Server.Address = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence:
// flags > environment > .env files > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".profilegrab.env"))

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
