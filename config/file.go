package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StorageConfig represents storage configuration from config file.
type StorageConfig struct {
	Type string `yaml:"type"`
	DSN  string `yaml:"dsn"`
}

// WatchConfig represents sampling configuration from config file.
type WatchConfig struct {
	Period       string `yaml:"period"`
	FetchTimeout string `yaml:"fetch_timeout"`
}

// FetchConfig represents document acquisition configuration from config
// file.
type FetchConfig struct {
	UserAgent          string   `yaml:"user_agent"`
	ProductURLTemplate string   `yaml:"product_url_template"`
	RatePerSecond      *float64 `yaml:"rate_per_second"`
	PagesDir           string   `yaml:"pages_dir"`
}

// NotifyConfig represents change notification configuration from config
// file.
type NotifyConfig struct {
	Log  *bool  `yaml:"log"`
	File string `yaml:"file"`
}

// APIConfig represents HTTP API configuration from config file.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// LocatorsConfig points at a locator catalog override.
type LocatorsConfig struct {
	File string `yaml:"file"`
}

// LogConfig represents logging configuration from config file.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FileConfig represents the structure of ~/.shelfwatch/config.yaml.
type FileConfig struct {
	Storage  StorageConfig  `yaml:"storage"`
	Watch    WatchConfig    `yaml:"watch"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Notify   NotifyConfig   `yaml:"notify"`
	API      APIConfig      `yaml:"api"`
	Locators LocatorsConfig `yaml:"locators"`
	Log      LogConfig      `yaml:"log"`
}

// ConfigDir returns ~/.shelfwatch.
func ConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".shelfwatch"), nil
}

// ConfigFilePath returns the path of the config file.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadConfigFile loads configuration from ~/.shelfwatch/config.yaml. Returns
// nil if the file doesn't exist (not an error). Returns error if the file
// exists but cannot be parsed.
func LoadConfigFile() (*FileConfig, error) {
	configPath, err := ConfigFilePath()
	if err != nil {
		return nil, err
	}

	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil // File doesn't exist -- not an error
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// WriteDefaultConfigFile writes a config file whose storage and notification
// paths live under ~/.shelfwatch. It reports whether a file was written; an
// existing file is kept unless force is set.
func WriteDefaultConfigFile(force bool) (bool, error) {
	dir, err := ConfigDir()
	if err != nil {
		return false, err
	}
	configPath := filepath.Join(dir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil && !force {
		return false, nil
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	defaults := Default()
	logChanges := defaults.Notify.Log
	rate := defaults.Fetch.RatePerSecond
	cfg := FileConfig{
		Storage: StorageConfig{
			Type: defaults.Storage.Type,
			DSN:  filepath.Join(dir, "shelfwatch.db"),
		},
		Watch: WatchConfig{
			Period:       defaults.Watch.Period.String(),
			FetchTimeout: defaults.Watch.FetchTimeout.String(),
		},
		Fetch: FetchConfig{
			UserAgent:          defaults.Fetch.UserAgent,
			ProductURLTemplate: defaults.Fetch.ProductURLTemplate,
			RatePerSecond:      &rate,
		},
		Notify: NotifyConfig{
			Log:  &logChanges,
			File: filepath.Join(dir, "changes.jsonl"),
		},
		API: APIConfig{Addr: defaults.API.Addr},
		Log: LogConfig{Level: defaults.Log.Level, Format: defaults.Log.Format},
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("failed to encode config file: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}
