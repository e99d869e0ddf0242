// Package config loads TableDB settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nickyhof/TableDB/core"
	"github.com/nickyhof/TableDB/ps"
)

type Config struct {
	// DataDir holds the git archive. Empty keeps the archive in memory.
	DataDir  string        `yaml:"data_dir"`
	GitURL   string        `yaml:"git_url"`
	Identity core.Identity `yaml:"identity"`

	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Backup BackupConfig `yaml:"backup"`
	Remote RemoteConfig `yaml:"remote"`
	S3     ps.S3Config  `yaml:"s3"`
	Auth   AuthConfig   `yaml:"auth"`
}

type ServerConfig struct {
	Address string `yaml:"address"`
	// TLSCert and TLSKey enable TLS when both are set.
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
	// RestoreOnStart loads the latest archived revision at startup.
	RestoreOnStart bool `yaml:"restore_on_start"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

type BackupConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Dir      string        `yaml:"dir"`
	Interval time.Duration `yaml:"interval"`
	Keep     int           `yaml:"keep"`
	// Archive also commits every backup to the git archive.
	Archive   bool   `yaml:"archive"`
	UploadURL string `yaml:"upload_url"`
}

type RemoteConfig struct {
	Name string        `yaml:"name"`
	URL  string        `yaml:"url"`
	Auth ps.RemoteAuth `yaml:"auth"`
}

// AuthConfig enables the JWT handshake of the TCP server.
type AuthConfig struct {
	Enabled    bool   `yaml:"enabled"`
	JWTSecret  string `yaml:"jwt_secret"`
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
	NameClaim  string `yaml:"name_claim"`
	EmailClaim string `yaml:"email_claim"`
}

func Default() *Config {
	return &Config{
		Identity: core.Identity{Name: "TableDB", Email: "tabledb@localhost"},
		Server:   ServerConfig{Address: "127.0.0.1:3307"},
		Log: LogConfig{
			Level:  envOr("TABLEDB_LOG_LEVEL", "info"),
			Format: "console",
		},
		Backup: BackupConfig{
			Dir:      "backups",
			Interval: ps.DefaultBackupInterval,
			Keep:     ps.DefaultBackupKeep,
		},
		Remote: RemoteConfig{Name: "origin"},
		Auth:   AuthConfig{NameClaim: "name", EmailClaim: "email"},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads a YAML file over Default. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Identity.Name == "" || c.Identity.Email == "" {
		return errors.New("identity name and email are required")
	}
	if c.Server.Address == "" {
		return errors.New("server address is required")
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return errors.New("tls_cert and tls_key must be set together")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Backup.Enabled {
		if c.Backup.Interval <= 0 {
			return errors.New("backup interval must be positive")
		}
		if c.Backup.Keep <= 0 {
			return errors.New("backup keep must be positive")
		}
		if c.Backup.Dir == "" && !c.Backup.Archive && c.Backup.UploadURL == "" {
			return errors.New("backup needs a dir, the archive or an upload url")
		}
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return errors.New("auth requires jwt_secret")
	}
	return nil
}

// GitURLPtr returns GitURL for ps.NewFilePersistence, nil when unset.
func (c *Config) GitURLPtr() *string {
	if c.GitURL == "" {
		return nil
	}
	url := c.GitURL
	return &url
}
