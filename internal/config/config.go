// Package config loads masc-mcp's daemon configuration from a layered
// source: defaults, an optional masc.yaml (an explicit path, or else
// searched in the current directory and $HOME/.masc), and MASC_-prefixed
// environment variables, the way beads layers config.yaml
// under its viper singleton.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StoreBackend selects which Store implementation the daemon opens.
type StoreBackend string

const (
	StoreMemory     StoreBackend = "memory"
	StoreFilesystem StoreBackend = "filesystem"
	StoreSQL        StoreBackend = "sql"
)

// Config is the daemon's resolved configuration.
type Config struct {
	// Addr is the HTTP listen address for the MCP surface, e.g. ":8420".
	Addr string `mapstructure:"addr"`

	// RoomsDir is the filesystem root under which per-room directories
	// live; a room's filesystem/SQL store is rooted at <RoomsDir>/<room>.
	RoomsDir string `mapstructure:"rooms_dir"`

	// DefaultRoom is the room name used when a tool call omits one.
	DefaultRoom string `mapstructure:"default_room"`

	// Store selects the durable backend new rooms are opened with.
	Store StoreBackend `mapstructure:"store"`

	// HeartbeatThreshold is how long an agent may go unseen before it is
	// a zombie eligible for reclamation.
	HeartbeatThreshold time.Duration `mapstructure:"heartbeat_threshold"`

	// LockWarnThreshold is how long a file lock may be held before the
	// room emits a diagnostic.
	LockWarnThreshold time.Duration `mapstructure:"lock_warn_threshold"`

	// RelayThreshold is the usage ratio past which should_relay_smart
	// recommends a handoff.
	RelayThreshold float64 `mapstructure:"relay_threshold"`

	// NATSURL, when non-empty, is used as the SQL backend's notify
	// side-channel; an empty value falls back to queue-table polling only.
	NATSURL string `mapstructure:"nats_url"`

	// MaxRetries and backoff bound the retry layer described in the
	// error-handling design for recoverable errors.
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`

	// CheckpointTimeout is the age past which an InProgress checkpoint is
	// reaped into Interrupted by the daemon's periodic sweep.
	CheckpointTimeout time.Duration `mapstructure:"checkpoint_timeout"`

	// ReapInterval is how often the daemon sweeps every open room for
	// timed-out checkpoints.
	ReapInterval time.Duration `mapstructure:"reap_interval"`
}

// Defaults returns the configuration used when no file or environment
// variable overrides a field.
func Defaults() Config {
	return Config{
		Addr:               ":8420",
		RoomsDir:            ".masc-rooms",
		DefaultRoom:         "default",
		Store:               StoreFilesystem,
		HeartbeatThreshold:  300 * time.Second,
		LockWarnThreshold:   30 * time.Minute,
		RelayThreshold:      0.8,
		MaxRetries:          5,
		BaseDelay:           100 * time.Millisecond,
		MaxDelay:            10 * time.Second,
		CheckpointTimeout:   30 * time.Minute,
		ReapInterval:        5 * time.Minute,
	}
}

// Load resolves a Config from defaults, an optional config file at path
// (searched as "masc" in the current directory and $HOME/.masc if path is
// empty), and MASC_-prefixed environment variables, which take precedence
// over the file.
func Load(path string) (Config, error) {
	v := viper.New()
	def := Defaults()

	v.SetDefault("addr", def.Addr)
	v.SetDefault("rooms_dir", def.RoomsDir)
	v.SetDefault("default_room", def.DefaultRoom)
	v.SetDefault("store", string(def.Store))
	v.SetDefault("heartbeat_threshold", def.HeartbeatThreshold)
	v.SetDefault("lock_warn_threshold", def.LockWarnThreshold)
	v.SetDefault("relay_threshold", def.RelayThreshold)
	v.SetDefault("nats_url", "")
	v.SetDefault("max_retries", def.MaxRetries)
	v.SetDefault("base_delay", def.BaseDelay)
	v.SetDefault("max_delay", def.MaxDelay)
	v.SetDefault("checkpoint_timeout", def.CheckpointTimeout)
	v.SetDefault("reap_interval", def.ReapInterval)

	v.SetEnvPrefix("MASC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("masc")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.masc")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && path != "" {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store {
	case StoreMemory, StoreFilesystem, StoreSQL:
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store)
	}
	if c.Addr == "" {
		return fmt.Errorf("config: addr must not be empty")
	}
	if c.RelayThreshold <= 0 || c.RelayThreshold > 1 {
		return fmt.Errorf("config: relay_threshold must be in (0, 1], got %v", c.RelayThreshold)
	}
	return nil
}
