package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileConfig is the optional ~/.config/slackscan/config.yml. It only holds
// tuning; the token is never read from disk.
type FileConfig struct {
	Workers     int     `yaml:"workers,omitempty"`
	CallTimeout string  `yaml:"call_timeout,omitempty"` // Go duration, e.g. "15s"
	RateLimit   float64 `yaml:"rate_limit,omitempty"`   // requests per second, 0 = unpaced
	LogLevel    string  `yaml:"log_level,omitempty"`
	APIURL      string  `yaml:"api_url,omitempty"`
	NoJoin      bool    `yaml:"no_join,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "slackscan"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// GlobalConfigPath returns the default config file path.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/slackscan/config.yml.
func GlobalConfigPath(getenv func(string) string) string {
	configHome := getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadFile reads a config file. A missing file is an empty config, not an
// error.
func LoadFile(path string) (*FileConfig, error) {
	if path == "" {
		return &FileConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &fc, nil
}
