package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for acl.
type Config struct {
	BaseDir     string            `toml:"base_dir"`
	LogDir      string            `toml:"log_dir"`
	Database    DatabaseConfig    `toml:"database"`
	Store       StoreConfig       `toml:"store"`
	Propagation PropagationConfig `toml:"propagation"`
	Cleanup     CleanupConfig     `toml:"cleanup"`
	Archive     ArchiveConfig     `toml:"archive"`
	Membership  MembershipConfig  `toml:"membership"`
}

// DatabaseConfig represents configuration for the grant database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// StoreConfig bounds individual store calls.
type StoreConfig struct {
	TimeoutMS int `toml:"timeout_ms"` // per call; defaults to 10s
}

func (c StoreConfig) Timeout() time.Duration { return time.Duration(c.TimeoutMS) * time.Millisecond }

// PropagationConfig tunes recursive share and unshare.
type PropagationConfig struct {
	Workers       int `toml:"workers"`         // concurrent per-item applications
	ItemTimeoutMS int `toml:"item_timeout_ms"` // per item; a timeout is a per-item failure
	MaxRetries    int `toml:"max_retries"`     // retries of a write that lost a race
}

func (c PropagationConfig) ItemTimeout() time.Duration {
	return time.Duration(c.ItemTimeoutMS) * time.Millisecond
}

// ArchiveConfig represents configuration for the audit archive.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ArchiveConfig struct {
	Type string `toml:"type"` // "none", "memory", "filesystem" or "s3"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // for S3-compatible stores such as MinIO

	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// MembershipConfig selects how group membership is looked up.
type MembershipConfig struct {
	Cache      string `toml:"cache"`                 // "none" (default) or "redis"
	RedisURL   string `toml:"redis_url,omitempty"`   // only used for cache=redis
	TTLSeconds int    `toml:"ttl_seconds,omitempty"` // defaults to 60
}

func (c MembershipConfig) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

// NewConfig creates a new Config with defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Store: StoreConfig{TimeoutMS: 10000},
		Propagation: PropagationConfig{
			Workers:       4,
			ItemTimeoutMS: 5000,
			MaxRetries:    3,
		},
		Cleanup: CleanupConfig{Environment: "production", IntervalMinutes: 60},
		Archive: ArchiveConfig{
			Type:   "filesystem",
			Name:   "local",
			FSRoot: filepath.Join(baseDir, "archive"),
		},
		Membership: MembershipConfig{Cache: "none"},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
