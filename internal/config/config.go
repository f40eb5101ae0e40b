package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// DefaultConfigPath is where the system configuration lives unless
// WORKSPACES_CONFIG_PATH overrides it.
const DefaultConfigPath = "/etc/workspaces/workspaces.toml"

var (
	// ErrNoFilesystem: no filesystem given, no default configured, and more
	// than one candidate exists.
	ErrNoFilesystem = errors.New("please specify a filesystem with `-f <FILESYSTEM>`")

	// ErrUnknownFilesystem: the named filesystem has no [filesystems.*] entry.
	ErrUnknownFilesystem = errors.New("invalid filesystem name")
)

// Config is the system configuration for workspaces.
type Config struct {
	// DBPath is the workspace database location; empty means the default
	// (see DefaultDBPath).
	DBPath string `toml:"db_path"`

	// DefaultFilesystem is used when the CLI gets no -f flag.
	DefaultFilesystem string `toml:"default_filesystem"`

	// LogDir, when set, receives the structured operation log in addition
	// to stderr.
	LogDir string `toml:"log_dir"`

	// VolumeManager selects the volume backend: "zfs" (default) or "memory"
	// for dry runs and tests.
	VolumeManager string `toml:"volume_manager"`

	SMTP *SMTPConfig `toml:"smtp"`

	// Filesystems maps filesystem names to their workspace policy.
	Filesystems map[string]Filesystem `toml:"filesystems"`
}

// Filesystem is one filesystem workspaces can be created in. Durations are
// given in whole days.
type Filesystem struct {
	// Root is the ZFS filesystem acting as the parent for workspace volumes.
	Root string `toml:"root"`

	// MaxDurationDays caps how long an unprivileged workspace may live.
	MaxDurationDays int `toml:"max_duration"`

	// ExpiredRetentionDays is the grace period between expiry and deletion.
	ExpiredRetentionDays int `toml:"expired_retention"`

	// NotifyDays are the reminder points in days relative to expiry.
	// Negative values fall after expiry but before deletion. Sorted
	// ascending on load.
	NotifyDays []int `toml:"expiry_notifications_on_days"`

	// Snapshot requests a recursive snapshot of Root on every maintenance run.
	Snapshot bool `toml:"snapshot"`

	// Disabled blocks unprivileged creation and extension.
	Disabled bool `toml:"disabled"`
}

// SMTPConfig configures the mail relay used for notifications.
type SMTPConfig struct {
	// Relay is "host", "host:port", or "[IPv6]:port".
	Relay    string `toml:"relay"`
	Username string `toml:"username"`
	Password string `toml:"password"`

	// From is the sender address; falls back to Username when empty.
	From string `toml:"from"`

	// TLS is "starttls" (default) or "wrapper" for implicit TLS.
	TLS string `toml:"tls"`

	// Auth optionally pins the mechanism: "plain" or "login".
	Auth string `toml:"auth"`
}

// UserConfig is the per-user contact file at ~/.config/workspaces.toml.
type UserConfig struct {
	Email string `toml:"email"`
}

// Read decodes a Config from the provided reader and normalizes it.
func Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	for name, fs := range cfg.Filesystems {
		sort.Ints(fs.NotifyDays)
		cfg.Filesystems[name] = fs
	}
	return &cfg, nil
}

// ReadFromFile reads a Config from path. When the config carries SMTP
// credentials, group- or other-accessible permissions are rejected.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	if cfg.SMTP != nil {
		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat config file: %w", err)
		}
		if info.Mode().Perm()&0o077 != 0 {
			return nil, fmt.Errorf("config file %s holds SMTP credentials but its permissions are too liberal: should be 600", path)
		}
	}

	return cfg, nil
}

// ReadUserConfigFile reads a user's contact file.
func ReadUserConfigFile(path string) (*UserConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var uc UserConfig
	if err := toml.Unmarshal(data, &uc); err != nil {
		return nil, fmt.Errorf("parsing user config %s: %w", path, err)
	}
	if uc.Email == "" {
		return nil, fmt.Errorf("user config %s has no email address", path)
	}
	return &uc, nil
}

// ResolveFilesystem picks the filesystem to operate on, preferring the
// explicit name, then the configured default, then the sole configured
// filesystem.
func (c *Config) ResolveFilesystem(name string) (string, error) {
	resolved := name
	if resolved == "" {
		resolved = c.DefaultFilesystem
	}
	if resolved == "" && len(c.Filesystems) == 1 {
		for only := range c.Filesystems {
			resolved = only
		}
	}
	if resolved == "" {
		return "", ErrNoFilesystem
	}

	if _, ok := c.Filesystems[resolved]; !ok {
		names := make([]string, 0, len(c.Filesystems))
		for n := range c.Filesystems {
			names = append(names, n)
		}
		sort.Strings(names)
		return "", fmt.Errorf("%w %q, use one of: %v", ErrUnknownFilesystem, resolved, names)
	}
	return resolved, nil
}

// DefaultDBPath returns the database location to use when db_path is unset.
// The pre-v0.3 location is honored with a deprecation warning so existing
// installations keep working after an upgrade.
func DefaultDBPath() (path string, warning string) {
	current := "/usr/local/lib/workspaces/workspaces.db"
	if _, err := os.Stat(current); err == nil {
		return current, ""
	}

	legacy := "/usr/local/share/workspaces/workspaces.db"
	if _, err := os.Stat(legacy); err == nil {
		return legacy, fmt.Sprintf(
			"DEPRECATION WARNING: the workspaces default database location has moved from %s to %s. "+
				"Please either move your database to the new location, or set db_path in %s",
			legacy, current, DefaultConfigPath)
	}

	return current, ""
}

// DatabasePath resolves the configured or default database location,
// creating the parent directory when needed.
func (c *Config) DatabasePath() (string, string, error) {
	path := c.DBPath
	warning := ""
	if path == "" {
		path, warning = DefaultDBPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", "", fmt.Errorf("creating database directory: %w", err)
	}
	return path, warning, nil
}
