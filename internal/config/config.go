package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"

	"github.com/FyshOS/appcache"
)

// Config holds all appcache configuration.
type Config struct {
	Cache CacheConfig `toml:"cache"`
	Icons IconConfig  `toml:"icons"`
	Apps  AppsConfig  `toml:"apps"`
	Log   LogConfig   `toml:"log"`
}

// CacheConfig says where the cache lives.
type CacheConfig struct {
	Dir       string `toml:"dir" envconfig:"APPCACHE_DIR"` // overrides the derived location
	Namespace string `toml:"namespace" envconfig:"APPCACHE_NAMESPACE"`
}

// IconConfig controls icon resolution.
type IconConfig struct {
	Size    int    `toml:"size" envconfig:"APPCACHE_ICON_SIZE"`
	Theme   string `toml:"theme" envconfig:"APPCACHE_ICON_THEME"`
	Workers int    `toml:"workers" envconfig:"APPCACHE_ICON_WORKERS"`
}

// AppsConfig lists extra application directories, searched before the system ones.
type AppsConfig struct {
	Dirs []string `toml:"dirs" envconfig:"APPCACHE_APP_DIRS"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `toml:"level" envconfig:"APPCACHE_LOG_LEVEL"`
	Development bool   `toml:"development" envconfig:"APPCACHE_LOG_DEV"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Namespace: appcache.Namespace,
		},
		Icons: IconConfig{
			Size:    appcache.DefaultIconSize,
			Theme:   "hicolor",
			Workers: 4,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Path returns the location of the configuration file.
func Path() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appcache.Namespace, "config.toml")
}

// Load reads the configuration file at Path, if any, and then the environment.
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads the configuration file at path, if it exists, and then the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if len(cfg.Apps.Dirs) == 1 && strings.Contains(cfg.Apps.Dirs[0], string(os.PathListSeparator)) {
		cfg.Apps.Dirs = filepath.SplitList(cfg.Apps.Dirs[0])
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail later in confusing ways.
func (c *Config) Validate() error {
	if c.Cache.Namespace == "" {
		return errors.New("cache namespace must not be empty")
	}
	if strings.ContainsRune(c.Cache.Namespace, filepath.Separator) {
		return fmt.Errorf("cache namespace %q must not contain a path separator", c.Cache.Namespace)
	}
	if c.Icons.Size <= 0 {
		return fmt.Errorf("icon size must be positive, got %d", c.Icons.Size)
	}
	if c.Icons.Workers <= 0 {
		return fmt.Errorf("icon workers must be positive, got %d", c.Icons.Workers)
	}
	return nil
}

// CacheDir returns the configured cache directory, or the versioned default for the namespace.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	return appcache.DefaultDir(c.Cache.Namespace)
}
