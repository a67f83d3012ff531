package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// LogConfig controls the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`

	// Development switches to the console encoder.
	Development bool `mapstructure:"development" yaml:"development"`

	// File receives the logs of the terminal UI, which owns the screen.
	File string `mapstructure:"file" yaml:"file"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables it.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// StoreConfig controls the local database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ShutdownConfig controls the final outbox flush on exit.
type ShutdownConfig struct {
	// TimeoutSec bounds how long shutdown waits for the queue to drain.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Accounts []AccountConfig `mapstructure:"accounts" yaml:"accounts"`
	Log      LogConfig       `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Store    StoreConfig     `mapstructure:"store" yaml:"store"`
	Shutdown ShutdownConfig  `mapstructure:"shutdown" yaml:"shutdown"`
	Display  DisplayConfig   `mapstructure:"display" yaml:"display"`
}

const (
	defaultUpdateIntervalSec = 300
	defaultShutdownTimeout   = 30
)

// DefaultConfigDir returns ~/.config/modest.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "modest")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/modest/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Accounts: []AccountConfig{},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(DefaultConfigDir(), "modest.log"),
		},
		Store: StoreConfig{
			Path: filepath.Join(DefaultConfigDir(), "modest.db"),
		},
		Shutdown: ShutdownConfig{
			TimeoutSec: defaultShutdownTimeout,
		},
		Display: DisplayConfig{
			Theme: "default",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
// MODEST_* environment variables override file values (MODEST_LOG_LEVEL
// for log.level and so on).
func LoadConfig(path string) (*AppConfig, error) {
	return LoadConfigWithFlags(path, nil)
}

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"metrics-addr": "metrics.addr",
	"db":           "store.path",
}

// LoadConfigWithFlags is LoadConfig with flags bound over the file and
// environment. Flags not present in the set are ignored.
func LoadConfigWithFlags(path string, flags *pflag.FlagSet) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("modest")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values.
	def := defaultAppConfig()
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("shutdown.timeout_sec", def.Shutdown.TimeoutSec)
	v.SetDefault("display.theme", def.Display.Theme)

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Apply defaults for each account entry.
	for i := range cfg.Accounts {
		a := &cfg.Accounts[i]
		if a.UpdateIntervalSec == 0 {
			a.UpdateIntervalSec = defaultUpdateIntervalSec
		}
		if a.IMAPPort == "" {
			a.IMAPPort = "993"
		}
		if a.SMTPPort == "" {
			a.SMTPPort = "465"
		}
		if a.Username == "" {
			a.Username = a.Email
		}
		if !a.Enabled && !accountKeySet(v, i, "enabled") {
			// Viper unmarshals missing bools as false; treat unset as true.
			a.Enabled = true
		}
	}

	return cfg, nil
}

// accountKeySet reports whether the i-th raw account entry sets key.
// Viper cannot address slice elements by path, so the raw list is inspected.
func accountKeySet(v *viper.Viper, i int, key string) bool {
	raw, ok := v.Get("accounts").([]interface{})
	if !ok || i >= len(raw) {
		return false
	}
	entry, ok := raw[i].(map[string]interface{})
	if !ok {
		return false
	}
	_, set := entry[key]
	return set
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("accounts", cfg.Accounts)
	v.Set("log", cfg.Log)
	v.Set("metrics", cfg.Metrics)
	v.Set("store", cfg.Store)
	v.Set("shutdown", cfg.Shutdown)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
