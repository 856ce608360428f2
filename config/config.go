package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	scrapeerrors "sjsage522/postscraper/pkg/errors"
)

// Renderer kinds
const (
	RendererBrowser = "browser"
	RendererHTTP    = "http"
)

// Config represents the application configuration
type Config struct {
	// Browser configuration
	DriverPath      string
	BrowserPath     string
	ProxyURL        string
	Renderer        string
	ReadySelector   string
	NoiseSelectors  []string
	PageLoadTimeout time.Duration

	// Pipeline configuration
	Workers       int
	FetchRetries  int
	ProgressEvery int

	// Artifacts
	InputPath    string
	OutputPath   string
	ErrorLogFile string

	// Memcache configuration
	MemcacheAddr   string
	RenderCacheTTL time.Duration

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Environment
	Environment string
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Renderer:             RendererBrowser,
		ReadySelector:        "#content_container",
		NoiseSelectors:       []string{"div#u_0_d"},
		PageLoadTimeout:      30 * time.Second,
		Workers:              4,
		ProgressEvery:        5,
		InputPath:            "input.xlsx",
		OutputPath:           "output.xlsx",
		RenderCacheTTL:       time.Hour,
		RedisStream:          "postscraper",
		RedisStreamCount:     1,
		RedisStreamMaxLength: 1000,
		Environment:          "development",
	}
}

// LoadConfig builds the configuration from defaults, the optional settings file
// and environment variables, in that order
func LoadConfig(settingsPath string) (*Config, error) {
	cfg := Default()

	if settingsPath != "" {
		if err := cfg.loadSettingsFile(settingsPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration can drive a run
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return scrapeerrors.NewConfiguration(fmt.Sprintf("workers must be positive, got %d", c.Workers), nil)
	}
	if c.PageLoadTimeout <= 0 {
		return scrapeerrors.NewConfiguration(fmt.Sprintf("page_load_timeout must be positive, got %v", c.PageLoadTimeout), nil)
	}
	if c.Renderer != RendererBrowser && c.Renderer != RendererHTTP {
		return scrapeerrors.NewConfiguration(fmt.Sprintf("unknown renderer %q", c.Renderer), nil)
	}
	if c.ReadySelector == "" {
		return scrapeerrors.NewConfiguration("ready_selector is required", nil)
	}
	if c.InputPath == "" || c.OutputPath == "" {
		return scrapeerrors.NewConfiguration("input and output paths are required", nil)
	}
	if c.FetchRetries < 0 {
		return scrapeerrors.NewConfiguration("fetch_retries must not be negative", nil)
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = 5
	}
	if c.RedisStreamCount <= 0 {
		c.RedisStreamCount = 1
	}
	return nil
}

// loadSettingsFile reads a YAML or JSON settings file. A missing file is not an error.
// Each key holds either a scalar or an object with a "value" field.
func (c *Config) loadSettingsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return scrapeerrors.NewConfiguration("read settings file", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &raw); err != nil {
		return scrapeerrors.NewConfiguration("parse settings file", err)
	}

	for key, value := range raw {
		if wrapped, ok := value.(map[string]interface{}); ok {
			if inner, ok := wrapped["value"]; ok {
				value = inner
			}
		}
		if err := c.apply(strings.ToLower(key), value); err != nil {
			return scrapeerrors.NewConfiguration(fmt.Sprintf("setting %q", key), err)
		}
	}
	return nil
}

// apply sets one settings-file key; unknown keys are ignored
func (c *Config) apply(key string, value interface{}) error {
	var err error
	switch key {
	case "driver_path":
		c.DriverPath = toString(value)
	case "browser_path":
		c.BrowserPath = toString(value)
	case "proxy_url":
		c.ProxyURL = toString(value)
	case "renderer":
		c.Renderer = strings.ToLower(toString(value))
	case "ready_selector":
		c.ReadySelector = toString(value)
	case "noise_selectors":
		c.NoiseSelectors = toStringList(value)
	case "page_load_timeout":
		c.PageLoadTimeout, err = toSeconds(value)
	case "workers":
		c.Workers, err = toInt(value)
	case "fetch_retries":
		c.FetchRetries, err = toInt(value)
	case "progress_every":
		c.ProgressEvery, err = toInt(value)
	case "input_path":
		c.InputPath = toString(value)
	case "output_path":
		c.OutputPath = toString(value)
	case "error_log_file":
		c.ErrorLogFile = toString(value)
	case "memcache_addr":
		c.MemcacheAddr = toString(value)
	case "render_cache_ttl":
		c.RenderCacheTTL, err = toSeconds(value)
	case "redis_addr":
		c.RedisAddr = toString(value)
	case "redis_db":
		c.RedisDB, err = toInt(value)
	case "redis_stream":
		c.RedisStream = toString(value)
	case "redis_stream_count":
		c.RedisStreamCount, err = toInt(value)
	case "redis_stream_max_length":
		c.RedisStreamMaxLength, err = toInt(value)
	case "environment":
		c.Environment = toString(value)
	}
	return err
}

// envKeys maps environment variables onto settings keys
var envKeys = []struct {
	env string
	key string
}{
	{"DRIVER_PATH", "driver_path"},
	{"BROWSER_PATH", "browser_path"},
	{"PROXY_URL", "proxy_url"},
	{"RENDERER", "renderer"},
	{"READY_SELECTOR", "ready_selector"},
	{"NOISE_SELECTORS", "noise_selectors"},
	{"PAGE_LOAD_TIMEOUT", "page_load_timeout"},
	{"WORKERS", "workers"},
	{"FETCH_RETRIES", "fetch_retries"},
	{"PROGRESS_EVERY", "progress_every"},
	{"INPUT_PATH", "input_path"},
	{"OUTPUT_PATH", "output_path"},
	{"ERROR_LOG_FILE", "error_log_file"},
	{"MEMCACHE_ADDR", "memcache_addr"},
	{"RENDER_CACHE_TTL", "render_cache_ttl"},
	{"REDIS_ADDR", "redis_addr"},
	{"REDIS_DB", "redis_db"},
	{"REDIS_STREAM", "redis_stream"},
	{"REDIS_STREAM_COUNT", "redis_stream_count"},
	{"REDIS_STREAM_MAX_LENGTH", "redis_stream_max_length"},
	{"SCRAPER_ENVIRONMENT", "environment"},
}

func (c *Config) loadEnv() error {
	for _, k := range envKeys {
		value := getEnv(k.env, "")
		if value == "" {
			continue
		}
		if err := c.apply(k.key, value); err != nil {
			return scrapeerrors.NewConfiguration(fmt.Sprintf("environment variable %s", k.env), err)
		}
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toStringList(v interface{}) []string {
	var out []string
	switch t := v.(type) {
	case []interface{}:
		for _, item := range t {
			if s := toString(item); s != "" {
				out = append(out, s)
			}
		}
	default:
		for _, part := range strings.Split(toString(v), ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func toInt(v interface{}) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case float64:
		return int(t), nil
	default:
		return strconv.Atoi(toString(v))
	}
}

// toSeconds reads a number of seconds, fractional values allowed
func toSeconds(v interface{}) (time.Duration, error) {
	var secs float64
	switch t := v.(type) {
	case int:
		secs = float64(t)
	case float64:
		secs = t
	default:
		parsed, err := strconv.ParseFloat(toString(v), 64)
		if err != nil {
			return 0, err
		}
		secs = parsed
	}
	return time.Duration(secs * float64(time.Second)), nil
}
