package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Config represents the main configuration for sn.
type Config struct {
	BaseDir     string            `toml:"base_dir" validate:"required"`
	LogDir      string            `toml:"log_dir" validate:"required"`
	CallTimeout string            `toml:"call_timeout,omitempty"` // Go duration, defaults to 10s
	Database    DatabaseConfig    `toml:"database"`
	Media       MediaConfig       `toml:"media"`
	Cache       CacheConfig       `toml:"cache"`
	Events      EventsConfig      `toml:"events"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
}

// DatabaseConfig represents configuration for the document store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type" validate:"required,oneof=sqlite memory mongo"`
	DataDir string `toml:"data_dir,omitempty" validate:"required_if=Type sqlite"` // only used for type=sqlite

	// MongoDB-specific fields (only used when Type == "mongo")
	MongoURI      string `toml:"mongo_uri,omitempty" validate:"required_if=Type mongo"`
	MongoDatabase string `toml:"mongo_database,omitempty" validate:"required_if=Type mongo"`
}

// MediaConfig represents configuration for the media object store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type MediaConfig struct {
	Type string `toml:"type" validate:"required,oneof=memory filesystem s3 cloudinary"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot    string `toml:"fs_root,omitempty" validate:"required_if=Type filesystem"`
	FSBaseURL string `toml:"fs_base_url,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket        string `toml:"s3_bucket,omitempty" validate:"required_if=Type s3"`
	S3Prefix        string `toml:"s3_prefix,omitempty"`
	S3Region        string `toml:"s3_region,omitempty"`
	S3Endpoint      string `toml:"s3_endpoint,omitempty"`
	S3PublicBaseURL string `toml:"s3_public_base_url,omitempty"`
	S3AccessKeyID   string `toml:"s3_access_key_id,omitempty" validate:"required_with=S3SecretKey"` // empty uses the default AWS credential chain
	S3SecretKey     string `toml:"s3_secret_key,omitempty" validate:"required_with=S3AccessKeyID"`

	// Cloudinary-specific fields (only used when Type == "cloudinary")
	CloudinaryURL    string `toml:"cloudinary_url,omitempty" validate:"required_if=Type cloudinary"`
	CloudinaryFolder string `toml:"cloudinary_folder,omitempty"`
}

// CacheConfig represents configuration for the follow-list cache.
type CacheConfig struct {
	Type          string `toml:"type" validate:"omitempty,oneof=none redis"` // "none" (default) or "redis"
	RedisAddr     string `toml:"redis_addr,omitempty" validate:"required_if=Type redis"`
	RedisPassword string `toml:"redis_password,omitempty"`
	RedisDB       int    `toml:"redis_db,omitempty" validate:"gte=0"`
	TTL           string `toml:"ttl,omitempty"` // Go duration, defaults to 10m
}

// EventsConfig represents configuration for where reconciliation findings go.
type EventsConfig struct {
	Type     string `toml:"type" validate:"omitempty,oneof=log amqp"` // "log" (default) or "amqp"
	AMQPURL  string `toml:"amqp_url,omitempty" validate:"required_if=Type amqp"`
	Exchange string `toml:"exchange,omitempty"`
	Queue    string `toml:"queue,omitempty"`
}

// MaintenanceConfig holds the schedule for background reconciliation.
type MaintenanceConfig struct {
	Schedule string `toml:"schedule,omitempty"` // cron spec, e.g. "@every 1h"
}

// NewConfig creates a new Config rooted at baseDir with local defaults:
// a SQLite store and filesystem media under baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:     baseDir,
		LogDir:      filepath.Join(baseDir, "log"),
		CallTimeout: "10s",
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Media: MediaConfig{
			Type:      "filesystem",
			FSRoot:    filepath.Join(baseDir, "media"),
			FSBaseURL: "file://" + filepath.Join(baseDir, "media"),
		},
		Cache:       CacheConfig{Type: "none"},
		Events:      EventsConfig{Type: "log"},
		Maintenance: MaintenanceConfig{Schedule: "@every 1h"},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the duration fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	if _, err := c.Cache.Expiry(); err != nil {
		return err
	}
	return nil
}

// Timeout returns the per-call deadline, or zero if unset.
func (c *Config) Timeout() (time.Duration, error) {
	return parseDuration("call_timeout", c.CallTimeout)
}

// Expiry returns the cache TTL, defaulting to ten minutes.
func (c CacheConfig) Expiry() (time.Duration, error) {
	d, err := parseDuration("cache.ttl", c.TTL)
	if err == nil && d == 0 {
		d = 10 * time.Minute
	}
	return d, err
}

func parseDuration(field, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", field, v)
	}
	return d, nil
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

// ReadFromFile reads and validates a Config from the specified file path.
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
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may carry store and broker credentials.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
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

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
