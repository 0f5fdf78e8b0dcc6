package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides (JURIS_REVIEW_BATCHSIZE, ...).
const EnvPrefix = "JURIS"

// Config represents the juris configuration.
type Config struct {
	Provider ProviderConfig `json:"provider" mapstructure:"provider"`
	Review   ReviewConfig   `json:"review" mapstructure:"review"`
	Prompts  PromptsConfig  `json:"prompts" mapstructure:"prompts"`
	Cache    CacheConfig    `json:"cache" mapstructure:"cache"`
	Privacy  PrivacyConfig  `json:"privacy" mapstructure:"privacy"`
	Store    StoreConfig    `json:"store" mapstructure:"store"`
	Server   ServerConfig   `json:"server" mapstructure:"server"`
	Log      LogConfig      `json:"log" mapstructure:"log"`
}

// ProviderConfig describes the chat-completions endpoint.
type ProviderConfig struct {
	BaseURL               string  `json:"baseURL" mapstructure:"baseURL"`
	APIKey                string  `json:"apiKey,omitempty" mapstructure:"apiKey"`
	Model                 string  `json:"model" mapstructure:"model"`
	Temperature           float64 `json:"temperature" mapstructure:"temperature"`
	RequestTimeoutSeconds int     `json:"requestTimeoutSeconds" mapstructure:"requestTimeoutSeconds"`
}

// ReviewConfig controls batching, retries and filtering.
type ReviewConfig struct {
	BatchSize                  int `json:"batchSize" mapstructure:"batchSize"`
	MaxConcurrency             int `json:"maxConcurrency" mapstructure:"maxConcurrency"`
	TimeoutSeconds             int `json:"timeoutSeconds" mapstructure:"timeoutSeconds"`
	RiskThreshold              int `json:"riskThreshold" mapstructure:"riskThreshold"`
	MaxRetries                 int `json:"maxRetries" mapstructure:"maxRetries"`
	RetryDelayMs               int `json:"retryDelayMs" mapstructure:"retryDelayMs"`
	TransportMaxTries          int `json:"transportMaxTries" mapstructure:"transportMaxTries"`
	TransportMaxElapsedSeconds int `json:"transportMaxElapsedSeconds" mapstructure:"transportMaxElapsedSeconds"`
}

// PromptsConfig points at an optional YAML prompt catalog.
type PromptsConfig struct {
	File string `json:"file,omitempty" mapstructure:"file"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Dir        string `json:"dir,omitempty" mapstructure:"dir"`
	TTLSeconds int    `json:"ttlSeconds" mapstructure:"ttlSeconds"`
}

// PrivacyConfig controls privacy/redaction behavior.
type PrivacyConfig struct {
	RedactSecrets bool `json:"redactSecrets" mapstructure:"redactSecrets"`
}

// StoreConfig locates the sqlite review store.
type StoreConfig struct {
	Path string `json:"path,omitempty" mapstructure:"path"`
}

// ServerConfig configures `juris serve`.
type ServerConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Provider: ProviderConfig{
			BaseURL:               "https://api.openai.com/v1/chat/completions",
			Model:                 "gpt-3.5-turbo",
			Temperature:           0.3,
			RequestTimeoutSeconds: 60,
		},
		Review: ReviewConfig{
			BatchSize:                  25,
			MaxConcurrency:             5,
			TimeoutSeconds:             60,
			RiskThreshold:              1,
			MaxRetries:                 3,
			RetryDelayMs:               2000,
			TransportMaxTries:          3,
			TransportMaxElapsedSeconds: 10,
		},
		Cache: CacheConfig{
			Enabled:    false,
			TTLSeconds: 86400,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// RequestTimeout is the per-call HTTP timeout.
func (p ProviderConfig) RequestTimeout() time.Duration {
	return time.Duration(p.RequestTimeoutSeconds) * time.Second
}

// Timeout is the global deadline for one review's batch phase.
func (r ReviewConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// RetryDelay is the base of the linear batch-level retry delay.
func (r ReviewConfig) RetryDelay() time.Duration {
	return time.Duration(r.RetryDelayMs) * time.Millisecond
}

// TransportMaxElapsed caps the total time spent on transport-level retries.
func (r ReviewConfig) TransportMaxElapsed() time.Duration {
	return time.Duration(r.TransportMaxElapsedSeconds) * time.Second
}

// ConfigDir returns the platform-appropriate config directory for juris.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "juris"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "juris"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "juris"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "juris"), nil
	default:
		return filepath.Join(home, ".config", "juris"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DefaultStorePath returns the sqlite path used when store.path is unset.
func DefaultStorePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "reviews.db"), nil
}

// LoadFile loads config from the config file only. Returns zero Config and nil error if file doesn't exist.
func LoadFile() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Save writes the config to the config file.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// Override keys are dotted viper keys such as "review.batchSize"; empty values are ignored.
func Load(overrides map[string]string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, Default())

	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("provider.apiKey", EnvPrefix+"_PROVIDER_APIKEY", "OPENAI_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("binding api key: %w", err)
	}

	for key, value := range overrides {
		if value != "" {
			v.Set(key, value)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("provider.baseURL", d.Provider.BaseURL)
	v.SetDefault("provider.apiKey", d.Provider.APIKey)
	v.SetDefault("provider.model", d.Provider.Model)
	v.SetDefault("provider.temperature", d.Provider.Temperature)
	v.SetDefault("provider.requestTimeoutSeconds", d.Provider.RequestTimeoutSeconds)

	v.SetDefault("review.batchSize", d.Review.BatchSize)
	v.SetDefault("review.maxConcurrency", d.Review.MaxConcurrency)
	v.SetDefault("review.timeoutSeconds", d.Review.TimeoutSeconds)
	v.SetDefault("review.riskThreshold", d.Review.RiskThreshold)
	v.SetDefault("review.maxRetries", d.Review.MaxRetries)
	v.SetDefault("review.retryDelayMs", d.Review.RetryDelayMs)
	v.SetDefault("review.transportMaxTries", d.Review.TransportMaxTries)
	v.SetDefault("review.transportMaxElapsedSeconds", d.Review.TransportMaxElapsedSeconds)

	v.SetDefault("prompts.file", d.Prompts.File)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.ttlSeconds", d.Cache.TTLSeconds)

	v.SetDefault("privacy.redactSecrets", d.Privacy.RedactSecrets)

	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("server.addr", d.Server.Addr)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate checks the effective configuration for values the engine cannot run with.
func (c Config) Validate() error {
	if c.Provider.Model == "" {
		return errors.New("provider.model cannot be empty")
	}
	if u, err := url.Parse(c.Provider.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid provider.baseURL: %q", c.Provider.BaseURL)
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		return fmt.Errorf("provider.temperature must be within [0, 2], got %g", c.Provider.Temperature)
	}
	if c.Provider.RequestTimeoutSeconds <= 0 {
		return errors.New("provider.requestTimeoutSeconds must be positive")
	}
	if c.Review.BatchSize <= 0 {
		return errors.New("review.batchSize must be positive")
	}
	if c.Review.MaxConcurrency <= 0 {
		return errors.New("review.maxConcurrency must be positive")
	}
	if c.Review.TimeoutSeconds <= 0 {
		return errors.New("review.timeoutSeconds must be positive")
	}
	if c.Review.RiskThreshold < 0 || c.Review.RiskThreshold > 3 {
		return fmt.Errorf("review.riskThreshold must be within [0, 3], got %d", c.Review.RiskThreshold)
	}
	if c.Review.MaxRetries < 1 {
		return errors.New("review.maxRetries must be at least 1")
	}
	if c.Review.RetryDelayMs < 0 {
		return errors.New("review.retryDelayMs cannot be negative")
	}
	if c.Review.TransportMaxTries < 1 {
		return errors.New("review.transportMaxTries must be at least 1")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// SetField sets a single config field by key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "provider.baseURL":
		cfg.Provider.BaseURL = value
	case "provider.model":
		cfg.Provider.Model = value
	case "provider.temperature":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("provider.temperature must be a number: %w", err)
		}
		cfg.Provider.Temperature = f
	case "provider.requestTimeoutSeconds":
		return setInt(&cfg.Provider.RequestTimeoutSeconds, key, value)
	case "review.batchSize":
		return setInt(&cfg.Review.BatchSize, key, value)
	case "review.maxConcurrency":
		return setInt(&cfg.Review.MaxConcurrency, key, value)
	case "review.timeoutSeconds":
		return setInt(&cfg.Review.TimeoutSeconds, key, value)
	case "review.riskThreshold":
		return setInt(&cfg.Review.RiskThreshold, key, value)
	case "review.maxRetries":
		return setInt(&cfg.Review.MaxRetries, key, value)
	case "review.retryDelayMs":
		return setInt(&cfg.Review.RetryDelayMs, key, value)
	case "prompts.file":
		cfg.Prompts.File = value
	case "cache.enabled":
		return setBool(&cfg.Cache.Enabled, key, value)
	case "cache.dir":
		cfg.Cache.Dir = value
	case "cache.ttlSeconds":
		return setInt(&cfg.Cache.TTLSeconds, key, value)
	case "privacy.redactSecrets":
		return setBool(&cfg.Privacy.RedactSecrets, key, value)
	case "store.path":
		cfg.Store.Path = value
	case "server.addr":
		cfg.Server.Addr = value
	case "log.level":
		cfg.Log.Level = value
	case "log.format":
		cfg.Log.Format = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	*dst = b
	return nil
}
