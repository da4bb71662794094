package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for taxarchive.
type Config struct {
	ArchiveID  string           `toml:"archive_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Archive    ArchiveConfig    `toml:"archive"`
	Sync       SyncConfig       `toml:"sync"`
	Database   DatabaseConfig   `toml:"database"`
	Vaults     []VaultConfig    `toml:"vaults"`
	Encryption EncryptionConfig `toml:"encryption"`
	Log        LogConfig        `toml:"log"`
	Watch      WatchConfig      `toml:"watch"`
}

// ArchiveConfig describes the archive tree and how it is scanned.
// Empty lists select the built-in defaults.
type ArchiveConfig struct {
	Root             string   `toml:"root"`
	ExcludeDirs      []string `toml:"exclude_dirs,omitempty"`      // top-level only
	Ignore           []string `toml:"ignore,omitempty"`            // basename or path globs
	Categories       []string `toml:"categories,omitempty"`        // known category folders
	OrphanExceptions []string `toml:"orphan_exceptions,omitempty"` // top-level names allowed to be unclassified
	HashCacheSize    int      `toml:"hash_cache_size,omitempty"`   // 0 = default, negative disables
}

// SyncConfig holds the duplicate handling defaults of `taxarchive sync`.
type SyncConfig struct {
	DeleteDuplicates     bool    `toml:"delete_duplicates"`
	QuarantineDuplicates bool    `toml:"quarantine_duplicates"`
	QuarantineDir        string  `toml:"quarantine_dir,omitempty"`
	MinConfidence        float64 `toml:"min_confidence"`
}

// DatabaseConfig represents configuration for the metadata database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// VaultConfig represents configuration for a vault backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // S3-compatible services

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used to encrypt stashes.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// LogConfig controls the level and rotation of the log file.
type LogConfig struct {
	Level      string `toml:"level"` // debug, info, warn, error
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// WatchConfig configures the inbox watcher.
type WatchConfig struct {
	Inbox    string `toml:"inbox"`
	Debounce string `toml:"debounce"` // time.ParseDuration syntax
}

// DebounceDuration parses Debounce, defaulting to two seconds.
func (w WatchConfig) DebounceDuration() (time.Duration, error) {
	if w.Debounce == "" {
		return 2 * time.Second, nil
	}
	d, err := time.ParseDuration(w.Debounce)
	if err != nil {
		return 0, fmt.Errorf("parsing watch debounce: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("watch debounce must be positive, got %s", d)
	}
	return d, nil
}

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(archiveID, baseDir, root string) *Config {
	return &Config{
		ArchiveID: archiveID,
		BaseDir:   baseDir,
		LogDir:    filepath.Join(baseDir, "log"),
		Archive: ArchiveConfig{
			Root: root,
		},
		Sync: SyncConfig{
			QuarantineDir: "_duplicates",
			MinConfidence: 0.5,
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Vaults: []VaultConfig{
			{Type: "filesystem", Name: "local", FSVaultRoot: filepath.Join(baseDir, "vault")},
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "taxarchive.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "taxarchive.key"),
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 90,
		},
		Watch: WatchConfig{
			Inbox:    filepath.Join(root, "inbox"),
			Debounce: "2s",
		},
	}
}

// Validate reports every missing or malformed required value.
func (c *Config) Validate() error {
	var errs []error
	if c.ArchiveID == "" {
		errs = append(errs, errors.New("archive_id is required"))
	}
	if c.Archive.Root == "" {
		errs = append(errs, errors.New("archive.root is required"))
	}
	if c.LogDir == "" {
		errs = append(errs, errors.New("log_dir is required"))
	}
	if c.Sync.MinConfidence < 0 || c.Sync.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("sync.min_confidence must be in [0,1], got %v", c.Sync.MinConfidence))
	}
	switch c.Database.Type {
	case "sqlite":
		if c.Database.DataDir == "" {
			errs = append(errs, errors.New("database.data_dir is required for sqlite"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown database type: %q", c.Database.Type))
	}
	for i, v := range c.Vaults {
		switch v.Type {
		case "memory":
		case "filesystem":
			if v.FSVaultRoot == "" {
				errs = append(errs, fmt.Errorf("vaults[%d]: fs_vault_root is required", i))
			}
		case "s3":
			if v.S3Bucket == "" {
				errs = append(errs, fmt.Errorf("vaults[%d]: s3_bucket is required", i))
			}
		default:
			errs = append(errs, fmt.Errorf("vaults[%d]: unknown vault type: %q", i, v.Type))
		}
	}
	switch c.Encryption.Type {
	case "", "none", "test":
	case "age":
		if c.Encryption.PublicKeyPath == "" || c.Encryption.PrivateKeyPath == "" {
			errs = append(errs, errors.New("encryption key paths are required for age"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown encryption type: %q", c.Encryption.Type))
	}
	if _, err := c.Watch.DebounceDuration(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
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
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
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

// Init writes a new config file and refuses to overwrite an existing one.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
