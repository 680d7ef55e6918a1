// Package config provides configuration management for heapsnap.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	apperrors "github.com/heap-snapshot/pkg/errors"
)

// EnvPrefix prefixes environment overrides, e.g. HEAPSNAP_SNAPSHOT_CACHE_POLICY.
const EnvPrefix = "HEAPSNAP"

// Config holds all configuration for the application.
type Config struct {
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// SnapshotConfig controls how dumps are loaded and resolved.
type SnapshotConfig struct {
	CallStack     bool        `mapstructure:"call_stack"`
	CalculateRefs bool        `mapstructure:"calculate_refs"`
	UnresolvedOK  bool        `mapstructure:"unresolved_ok"`
	Buffer        string      `mapstructure:"buffer"` // mmap, file or memory
	Cache         CacheConfig `mapstructure:"cache"`
	ExcludesFile  string      `mapstructure:"excludes_file"`
	// BusinessPrefixes are package prefixes histograms report as business
	// classes.
	BusinessPrefixes []string `mapstructure:"business_prefixes"`
}

// CacheConfig selects the decoded payload cache.
type CacheConfig struct {
	Policy string `mapstructure:"policy"` // none, lru or unbounded
	Size   int    `mapstructure:"size"`   // entries, lru only
}

// StorageConfig holds dump storage configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`     // e.g., "myqcloud.com"
	Scheme    string `mapstructure:"scheme"`     // e.g., "https" or "http"
	LocalPath string `mapstructure:"local_path"` // for local storage
	DataDir   string `mapstructure:"data_dir"`   // where remote dumps are downloaded
}

// DatabaseConfig holds the summary database configuration.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Type     string `mapstructure:"type"` // sqlite, postgres or mysql
	Path     string `mapstructure:"path"` // sqlite file
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"` // empty means stderr
}

// Load reads configuration from the specified file path. Without a path the
// standard locations are searched; a missing file means defaults.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("heapsnap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/heapsnap")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to read config file", err)
		}
	}

	return unmarshal(v)
}

// LoadFromReader loads configuration from bytes (useful for testing).
// Environment overrides apply here too.
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to read config", err)
	}
	return unmarshal(v)
}

// Default returns the default configuration.
func Default() *Config {
	cfg, err := unmarshal(newViper())
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to unmarshal config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Snapshot defaults
	v.SetDefault("snapshot.call_stack", true)
	v.SetDefault("snapshot.calculate_refs", true)
	v.SetDefault("snapshot.unresolved_ok", false)
	v.SetDefault("snapshot.buffer", "mmap")
	v.SetDefault("snapshot.cache.policy", "lru")
	v.SetDefault("snapshot.cache.size", 4096)
	v.SetDefault("snapshot.excludes_file", "")
	v.SetDefault("snapshot.business_prefixes", []string{})

	// Storage defaults
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", ".")
	v.SetDefault("storage.scheme", "https")
	v.SetDefault("storage.domain", "myqcloud.com")
	v.SetDefault("storage.data_dir", "./data")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "./heapsnap.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_conns", 10)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output_path", "")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Snapshot.Buffer {
	case "mmap", "file", "memory":
	default:
		return apperrors.Newf(apperrors.CodeConfigError, "unsupported buffer kind: %s", c.Snapshot.Buffer)
	}
	switch c.Snapshot.Cache.Policy {
	case "none", "unbounded":
	case "lru":
		if c.Snapshot.Cache.Size < 1 {
			return apperrors.New(apperrors.CodeConfigError, "lru cache size must be at least 1")
		}
	default:
		return apperrors.Newf(apperrors.CodeConfigError, "unsupported cache policy: %s", c.Snapshot.Cache.Policy)
	}

	// Storage config validation is delegated to storage package

	if c.Database.Enabled {
		switch c.Database.Type {
		case "sqlite":
			if c.Database.Path == "" {
				return apperrors.New(apperrors.CodeConfigError, "sqlite path is required")
			}
		case "postgres", "mysql":
			if c.Database.Host == "" {
				return apperrors.New(apperrors.CodeConfigError, "database host is required")
			}
		default:
			return apperrors.Newf(apperrors.CodeConfigError, "unsupported database type: %s", c.Database.Type)
		}
	}

	return nil
}

// EnsureDataDir creates the download directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	if c.Storage.DataDir == "" {
		return nil
	}
	return os.MkdirAll(c.Storage.DataDir, 0755)
}

// DumpPath returns where a remote dump named key is downloaded.
func (c *Config) DumpPath(key string) string {
	return filepath.Join(c.Storage.DataDir, filepath.Base(key))
}
