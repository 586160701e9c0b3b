package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied by Validate when a field is left empty.
const (
	DefaultBaseURL            = "http://localhost:8080"
	DefaultTimeoutSeconds     = 10
	DefaultPlannedMinutes     = 25
	DefaultCelebrationSeconds = 3
	DefaultPollSeconds        = 30
	DefaultListenAddr         = "127.0.0.1:8080"
)

// Config represents the main configuration for ht.
type Config struct {
	ClientID   string           `toml:"client_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	API        APIConfig        `toml:"api"`
	Focus      FocusConfig      `toml:"focus"`
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Vault      VaultConfig      `toml:"vault"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// APIConfig locates the backend the CLI talks to.
type APIConfig struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token,omitempty"` // overridden by HT_API_TOKEN
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// FocusConfig holds timer settings.
type FocusConfig struct {
	DefaultPlannedMinutes int `toml:"default_planned_minutes"` // used when neither the command nor the habit sets one
	CelebrationSeconds    int `toml:"celebration_seconds"`
	PollIntervalSeconds   int `toml:"poll_interval_seconds"` // how often "focus watch" re-reads the backend
}

// ServerConfig configures "ht serve".
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
	Token      string `toml:"token,omitempty"` // when set, /api requests must carry it
}

// DatabaseConfig represents configuration for the local backend's database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// VaultConfig says where "ht backup" keeps encrypted database snapshots.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "filesystem", "s3" or "memory"

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"` // S3-compatible stores; enables path-style addressing
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// EncryptionConfig holds paths to the age key pair backups are encrypted with.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// NewConfig creates a new Config with the provided values and default settings.
func NewConfig(clientID, baseDir string) *Config {
	return &Config{
		ClientID: clientID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		API: APIConfig{
			BaseURL:        DefaultBaseURL,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Focus: FocusConfig{
			DefaultPlannedMinutes: DefaultPlannedMinutes,
			CelebrationSeconds:    DefaultCelebrationSeconds,
			PollIntervalSeconds:   DefaultPollSeconds,
		},
		Server: ServerConfig{ListenAddr: DefaultListenAddr},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Vault: VaultConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "backups"),
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "ht.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "ht.key"),
		},
	}
}

// Validate fills zero values with defaults and rejects settings that cannot work.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Focus.DefaultPlannedMinutes == 0 {
		c.Focus.DefaultPlannedMinutes = DefaultPlannedMinutes
	}
	if c.Focus.CelebrationSeconds == 0 {
		c.Focus.CelebrationSeconds = DefaultCelebrationSeconds
	}
	if c.Focus.PollIntervalSeconds == 0 {
		c.Focus.PollIntervalSeconds = DefaultPollSeconds
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type == "sqlite" && c.Database.DataDir == "" && c.BaseDir != "" {
		c.Database.DataDir = filepath.Join(c.BaseDir, "db")
	}
	if c.Vault.Type == "" {
		c.Vault.Type = "filesystem"
	}
	if c.Vault.Type == "filesystem" && c.Vault.FSRoot == "" && c.BaseDir != "" {
		c.Vault.FSRoot = filepath.Join(c.BaseDir, "backups")
	}
	if c.Encryption.Type == "" {
		c.Encryption.Type = "age"
	}
	if c.BaseDir != "" {
		if c.Encryption.PublicKeyPath == "" {
			c.Encryption.PublicKeyPath = filepath.Join(c.BaseDir, "keys", "ht.pub")
		}
		if c.Encryption.PrivateKeyPath == "" {
			c.Encryption.PrivateKeyPath = filepath.Join(c.BaseDir, "keys", "ht.key")
		}
	}

	var errs []error
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL))
	}
	if c.API.TimeoutSeconds < 0 {
		errs = append(errs, errors.New("api.timeout_seconds must not be negative"))
	}
	if c.Focus.DefaultPlannedMinutes < 0 {
		errs = append(errs, errors.New("focus.default_planned_minutes must not be negative"))
	}
	if c.Focus.CelebrationSeconds < 0 {
		errs = append(errs, errors.New("focus.celebration_seconds must not be negative"))
	}
	if c.Focus.PollIntervalSeconds < 0 {
		errs = append(errs, errors.New("focus.poll_interval_seconds must not be negative"))
	}
	switch c.Database.Type {
	case "memory":
	case "sqlite":
		if c.Database.DataDir == "" {
			errs = append(errs, errors.New("database.data_dir required for sqlite database"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database type: %s", c.Database.Type))
	}
	switch c.Vault.Type {
	case "memory":
	case "filesystem":
		if c.Vault.FSRoot == "" {
			errs = append(errs, errors.New("vault.fs_root required for filesystem vault"))
		}
	case "s3":
		if c.Vault.S3Bucket == "" {
			errs = append(errs, errors.New("vault.s3_bucket required for s3 vault"))
		}
		if (c.Vault.S3AccessKeyID == "") != (c.Vault.S3SecretAccessKey == "") {
			errs = append(errs, errors.New("vault.s3_access_key_id and vault.s3_secret_access_key must be set together"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown vault type: %s", c.Vault.Type))
	}
	switch c.Encryption.Type {
	case "age":
		if c.Encryption.PublicKeyPath == "" || c.Encryption.PrivateKeyPath == "" {
			errs = append(errs, errors.New("encryption.public_key_path and encryption.private_key_path are required"))
		}
	case "test":
	default:
		errs = append(errs, fmt.Errorf("unknown encryption type: %s", c.Encryption.Type))
	}
	return errors.Join(errs...)
}

// Timeout returns the API request timeout.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CelebrationDuration returns how long the expiry celebration stays up.
func (c FocusConfig) CelebrationDuration() time.Duration {
	return time.Duration(c.CelebrationSeconds) * time.Second
}

// PollInterval returns how often watchers refresh from the backend.
func (c FocusConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
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
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold API tokens.
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

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
