package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"closeout/internal/clover"
)

// EnvConfigFile names the variable holding the YAML config path.
const EnvConfigFile = "CLOSEOUT_CONFIG"

type Config struct {
	Clover CloverConfig `yaml:"clover"`
	Fetch  FetchConfig  `yaml:"fetch"`
	Output OutputConfig `yaml:"output"`

	BusinessName string `yaml:"business_name"`
	AllowPartial bool   `yaml:"allow_partial"`

	// Run ledger
	SQLiteDBPath string `yaml:"sqlite_db_path"`

	AMQP   AMQPConfig   `yaml:"amqp"`
	Google GoogleConfig `yaml:"google"`

	MetricsTextfile string `yaml:"metrics_textfile"`
	// OpsAddr enables the worker's health and metrics endpoints.
	OpsAddr  string `yaml:"ops_addr"`
	LogLevel string `yaml:"log_level"`
}

type CloverConfig struct {
	AccessToken string `yaml:"access_token"`
	MerchantID  string `yaml:"merchant_id"`
	BaseURL     string `yaml:"base_url"`
	Timezone    string `yaml:"timezone"`
}

type FetchConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	MaxAttempts      int           `yaml:"max_attempts"`
	BaseDelay        time.Duration `yaml:"base_delay"`
	MaxDelay         time.Duration `yaml:"max_delay"`
	PageSize         int           `yaml:"page_size"`
	MaxPages         int           `yaml:"max_pages"`
	MonthConcurrency int           `yaml:"month_concurrency"`
}

type OutputConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
}

type AMQPConfig struct {
	URL          string `yaml:"url"`
	Exchange     string `yaml:"exchange"`
	Queue        string `yaml:"queue"`
	CompletedKey string `yaml:"completed_key"`
}

type GoogleConfig struct {
	SpreadsheetID      string `yaml:"spreadsheet_id"`
	ServiceAccountJSON string `yaml:"service_account_json"`
	ServiceAccountFile string `yaml:"service_account_file"`
}

// Options controls where Load looks.
type Options struct {
	// EnvFile is loaded with godotenv when present. Defaults to ".env".
	EnvFile string
	// File overrides CLOSEOUT_CONFIG.
	File string
	// SkipFile ignores the YAML file entirely.
	SkipFile bool
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	retry := clover.DefaultRetryPolicy()
	return &Config{
		Clover: CloverConfig{
			BaseURL:  clover.DefaultBaseURL,
			Timezone: "UTC",
		},
		Fetch: FetchConfig{
			Timeout:          clover.DefaultTimeout,
			MaxAttempts:      retry.MaxAttempts,
			BaseDelay:        retry.BaseDelay,
			MaxDelay:         retry.MaxDelay,
			PageSize:         clover.DefaultPageSize,
			MaxPages:         clover.DefaultMaxPages,
			MonthConcurrency: 4,
		},
		Output: OutputConfig{
			Dir:    ".",
			Format: "csv",
		},
		BusinessName: "Belle Nails and Spa",
		AMQP: AMQPConfig{
			Exchange:     "closeout",
			Queue:        "report_requests",
			CompletedKey: "report_completed",
		},
		LogLevel: "info",
	}
}

// Load builds the configuration: defaults, then the YAML file, then the
// environment (including a .env file).
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Defaults()
	if !opts.SkipFile {
		path := opts.File
		if path == "" {
			path = os.Getenv(EnvConfigFile)
		}
		if path != "" {
			if err := cfg.LoadFile(path); err != nil {
				return nil, err
			}
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Clover.AccessToken = getEnv("CLOVER_ACCESS_TOKEN", c.Clover.AccessToken)
	c.Clover.MerchantID = getEnv("CLOVER_MERCHANT_ID", c.Clover.MerchantID)
	c.Clover.BaseURL = getEnv("CLOVER_BASE_URL", c.Clover.BaseURL)
	c.Clover.Timezone = getEnv("CLOVER_TIMEZONE", c.Clover.Timezone)

	c.BusinessName = getEnv("BUSINESS_NAME", c.BusinessName)
	c.Output.Dir = getEnv("OUTPUT_DIR", c.Output.Dir)
	c.Output.Format = getEnv("OUTPUT_FORMAT", c.Output.Format)

	c.Fetch.Timeout = getEnvDuration("HTTP_TIMEOUT", c.Fetch.Timeout)
	c.Fetch.MaxAttempts = getEnvInt("FETCH_MAX_ATTEMPTS", c.Fetch.MaxAttempts)
	c.Fetch.BaseDelay = getEnvDuration("FETCH_BASE_DELAY", c.Fetch.BaseDelay)
	c.Fetch.MaxDelay = getEnvDuration("FETCH_MAX_DELAY", c.Fetch.MaxDelay)
	c.Fetch.PageSize = getEnvInt("FETCH_PAGE_SIZE", c.Fetch.PageSize)
	c.Fetch.MaxPages = getEnvInt("FETCH_MAX_PAGES", c.Fetch.MaxPages)
	c.Fetch.MonthConcurrency = getEnvInt("MONTH_CONCURRENCY", c.Fetch.MonthConcurrency)
	c.AllowPartial = getEnvBool("ALLOW_PARTIAL", c.AllowPartial)

	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)

	c.AMQP.URL = getEnv("AMQP_URL", c.AMQP.URL)
	c.AMQP.Exchange = getEnv("AMQP_EXCHANGE", c.AMQP.Exchange)
	c.AMQP.Queue = getEnv("AMQP_QUEUE", c.AMQP.Queue)
	c.AMQP.CompletedKey = getEnv("AMQP_COMPLETED_KEY", c.AMQP.CompletedKey)

	c.Google.SpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.Google.SpreadsheetID)
	c.Google.ServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", c.Google.ServiceAccountJSON)
	c.Google.ServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", c.Google.ServiceAccountFile)

	c.MetricsTextfile = getEnv("METRICS_TEXTFILE", c.MetricsTextfile)
	c.OpsAddr = getEnv("OPS_ADDR", c.OpsAddr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate validates the configuration and returns an error if invalid.
// Clover credentials are checked by the client when a fetch is needed.
func (c *Config) Validate() error {
	var errors []string

	if _, err := time.LoadLocation(c.Clover.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Clover.Timezone, err))
	}
	if u, err := url.Parse(c.Clover.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid Clover base URL '%s'", c.Clover.BaseURL))
	}

	switch strings.ToLower(c.Output.Format) {
	case "csv", "xlsx", "pdf":
	default:
		errors = append(errors, fmt.Sprintf("invalid output format '%s': must be one of [csv xlsx pdf]", c.Output.Format))
	}
	if strings.TrimSpace(c.BusinessName) == "" {
		errors = append(errors, "business name cannot be empty")
	}

	if c.Fetch.Timeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be at least 1 second", c.Fetch.Timeout))
	}
	if c.Fetch.MaxAttempts < 1 || c.Fetch.MaxAttempts > 10 {
		errors = append(errors, fmt.Sprintf("invalid max attempts %d: must be between 1 and 10", c.Fetch.MaxAttempts))
	}
	if c.Fetch.BaseDelay <= 0 {
		errors = append(errors, fmt.Sprintf("invalid base delay %v: must be positive", c.Fetch.BaseDelay))
	}
	if c.Fetch.MaxDelay < c.Fetch.BaseDelay {
		errors = append(errors, fmt.Sprintf("invalid max delay %v: must be at least the base delay %v", c.Fetch.MaxDelay, c.Fetch.BaseDelay))
	}
	if c.Fetch.PageSize < 1 || c.Fetch.PageSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid page size %d: must be between 1 and 1000", c.Fetch.PageSize))
	}
	if c.Fetch.MaxPages < 1 {
		errors = append(errors, fmt.Sprintf("invalid max pages %d: must be at least 1", c.Fetch.MaxPages))
	}
	if c.Fetch.MonthConcurrency < 1 || c.Fetch.MonthConcurrency > 12 {
		errors = append(errors, fmt.Sprintf("invalid month concurrency %d: must be between 1 and 12", c.Fetch.MonthConcurrency))
	}

	// Validate AMQP URL if provided
	if c.AMQP.URL != "" {
		if parsedURL, err := url.Parse(c.AMQP.URL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQP.URL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQP.Exchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQP.Queue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQP.CompletedKey == "" {
			errors = append(errors, "AMQP completed routing key cannot be empty when AMQP URL is provided")
		}
	}

	if c.Google.ServiceAccountFile != "" {
		if _, err := os.Stat(c.Google.ServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.Google.ServiceAccountFile))
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Location returns the merchant time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Clover.Timezone)
}

// Credentials returns the Clover credentials.
func (c *Config) Credentials() clover.Credentials {
	return clover.Credentials{
		AccessToken: c.Clover.AccessToken,
		MerchantID:  c.Clover.MerchantID,
		BaseURL:     c.Clover.BaseURL,
	}
}

// ClientConfig returns the Clover client settings without credentials.
func (c *Config) ClientConfig() clover.Config {
	return clover.Config{
		Timeout:  c.Fetch.Timeout,
		PageSize: c.Fetch.PageSize,
		MaxPages: c.Fetch.MaxPages,
		Retry: clover.RetryPolicy{
			MaxAttempts: c.Fetch.MaxAttempts,
			BaseDelay:   c.Fetch.BaseDelay,
			MaxDelay:    c.Fetch.MaxDelay,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
