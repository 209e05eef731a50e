package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "THREADSTORE_CONFIG"

// Config represents ~/.threadstore/config.toml.
type Config struct {
	DatabasePath string `toml:"database_path"`
	LogPath      string `toml:"log_path"`
	LogLevel     string `toml:"log_level"`
	// LocalAddresses are the serialized addresses of the local user. Lookups
	// scoped to "our own" messages match any of them.
	LocalAddresses []string `toml:"local_addresses"`
}

// BaseDir returns ~/.threadstore.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".threadstore")
}

// DefaultPath returns the config file path, honoring THREADSTORE_CONFIG.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return filepath.Join(BaseDir(), "config.toml")
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DatabasePath: filepath.Join(BaseDir(), "threadstore.db"),
		LogPath:      filepath.Join(BaseDir(), "logs", "threadstore.log"),
		LogLevel:     "info",
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Resolve loads the config at path (DefaultPath when empty). A missing file
// yields Default(); fields left empty in the file take their default values.
func Resolve(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	def := Default()
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = def.DatabasePath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// EnsureDirs creates the directories holding the database and log file.
func (c *Config) EnsureDirs() error {
	for _, p := range []string{c.DatabasePath, c.LogPath} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return err
		}
	}
	return nil
}
