package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppName names the config directory, keyring service and env prefix.
const AppName = "tempmail"

// APIConfig holds the remote mailbox API endpoints.
type APIConfig struct {
	// BaseURL is the root of the mailbox REST API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// MercureURL is the push hub. Empty disables push delivery.
	MercureURL string `mapstructure:"mercure_url" yaml:"mercure_url"`

	// TimeoutSec bounds a single HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// SyncConfig controls inbox polling, push reconnects and account refresh.
type SyncConfig struct {
	PollIntervalSec      int  `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	AccountRefreshSec    int  `mapstructure:"account_refresh_sec" yaml:"account_refresh_sec"`
	PushEnabled          bool `mapstructure:"push_enabled" yaml:"push_enabled"`
	ReconnectInitialSec  int  `mapstructure:"reconnect_initial_sec" yaml:"reconnect_initial_sec"`
	ReconnectMaxSec      int  `mapstructure:"reconnect_max_sec" yaml:"reconnect_max_sec"`
	ReconnectMaxAttempts int  `mapstructure:"reconnect_max_attempts" yaml:"reconnect_max_attempts"`
}

// StorageConfig controls where session state is persisted.
type StorageConfig struct {
	DBPath     string `mapstructure:"db_path" yaml:"db_path"`
	UseKeyring bool   `mapstructure:"use_keyring" yaml:"use_keyring"`
}

// LogConfig controls the log file and verbosity.
type LogConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// PollInterval returns the inbox polling interval.
func (c SyncConfig) PollInterval() time.Duration {
	return secondsOr(c.PollIntervalSec, 5)
}

// AccountRefreshInterval returns how often account quota info is refreshed.
func (c SyncConfig) AccountRefreshInterval() time.Duration {
	return secondsOr(c.AccountRefreshSec, 30)
}

// ReconnectInitial returns the first push reconnect delay.
func (c SyncConfig) ReconnectInitial() time.Duration {
	return secondsOr(c.ReconnectInitialSec, 5)
}

// ReconnectMax returns the cap on push reconnect delays.
func (c SyncConfig) ReconnectMax() time.Duration {
	return secondsOr(c.ReconnectMaxSec, 60)
}

// Timeout returns the per-request HTTP timeout.
func (c APIConfig) Timeout() time.Duration {
	return secondsOr(c.TimeoutSec, 30)
}

func secondsOr(sec, fallback int) time.Duration {
	if sec <= 0 {
		sec = fallback
	}
	return time.Duration(sec) * time.Second
}

// ConfigDir returns ~/.config/tempmail, falling back to the working
// directory when the home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", AppName)
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/tempmail/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "https://api.mail.tm",
			MercureURL: "https://mercure.mail.tm/.well-known/mercure",
			TimeoutSec: 30,
		},
		Sync: SyncConfig{
			PollIntervalSec:      5,
			AccountRefreshSec:    30,
			PushEnabled:          true,
			ReconnectInitialSec:  5,
			ReconnectMaxSec:      60,
			ReconnectMaxAttempts: 0,
		},
		Storage: StorageConfig{
			DBPath:     filepath.Join(dir, "session.db"),
			UseKeyring: true,
		},
		Log: LogConfig{
			Path:  filepath.Join(dir, "tempmail.log"),
			Level: "info",
		},
	}
}

func setDefaults(v *viper.Viper, cfg *AppConfig) {
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.mercure_url", cfg.API.MercureURL)
	v.SetDefault("api.timeout_sec", cfg.API.TimeoutSec)

	v.SetDefault("sync.poll_interval_sec", cfg.Sync.PollIntervalSec)
	v.SetDefault("sync.account_refresh_sec", cfg.Sync.AccountRefreshSec)
	v.SetDefault("sync.push_enabled", cfg.Sync.PushEnabled)
	v.SetDefault("sync.reconnect_initial_sec", cfg.Sync.ReconnectInitialSec)
	v.SetDefault("sync.reconnect_max_sec", cfg.Sync.ReconnectMaxSec)
	v.SetDefault("sync.reconnect_max_attempts", cfg.Sync.ReconnectMaxAttempts)

	v.SetDefault("storage.db_path", cfg.Storage.DBPath)
	v.SetDefault("storage.use_keyring", cfg.Storage.UseKeyring)

	v.SetDefault("log.path", cfg.Log.Path)
	v.SetDefault("log.level", cfg.Log.Level)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// TEMPMAIL_* environment variables override file values (for example
// TEMPMAIL_SYNC_POLL_INTERVAL_SEC). A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	cfg := DefaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("sync", cfg.Sync)
	v.Set("storage", cfg.Storage)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
