package config

import (
	"fmt"
	"time"

	"cattleherd/internal/logger"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Role identifies which binary a config is validated for. Cattle never runs
// Poll mode and the herder never runs Push mode; the mismatch is fatal at
// startup, not a protocol-level check.
type Role int

const (
	RoleCattle Role = iota
	RoleHerder
)

// String returns the role name
func (r Role) String() string {
	if r == RoleHerder {
		return "herder"
	}
	return "cattle"
}

// Mode names the three mutually exclusive connection modes.
const (
	ModePush = "push"
	ModePull = "pull"
	ModePoll = "poll"
)

// Config represents process configuration loaded from a TOML file
type Config struct {
	Mode     ModeConfig     `mapstructure:"mode"`
	Identity IdentityConfig `mapstructure:"identity"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Web      WebConfig      `mapstructure:"web"`
	Log      logger.Config  `mapstructure:"log"`
}

// ModeConfig selects exactly one connection mode and its parameters
type ModeConfig struct {
	Type string     `mapstructure:"type" validate:"required,oneof=push pull poll"`
	Push PushConfig `mapstructure:"push"`
	Pull PullConfig `mapstructure:"pull"`
	Poll PollConfig `mapstructure:"poll"`
}

// PushConfig configures the agent-initiated push role
type PushConfig struct {
	Server          string `mapstructure:"server" validate:"required"`
	Port            uint16 `mapstructure:"port" validate:"required"`
	IntervalSeconds uint32 `mapstructure:"interval_seconds" validate:"required,min=1"`
}

// Interval returns the push reporting interval
func (c PushConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Address returns the collector dial address
func (c PushConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Server, c.Port)
}

// PullConfig configures the listening role
type PullConfig struct {
	ListenPort uint16 `mapstructure:"listen_port" validate:"required"`
}

// Address returns the listen address
func (c PullConfig) Address() string {
	return fmt.Sprintf(":%d", c.ListenPort)
}

// PollConfig configures the collector-initiated poll role
type PollConfig struct {
	Targets         []string `mapstructure:"targets" validate:"required,min=1,dive,required"`
	IntervalSeconds uint32   `mapstructure:"interval_seconds" validate:"required,min=1"`
	TimeoutSeconds  uint32   `mapstructure:"timeout_seconds" validate:"min=1"`
}

// Interval returns the poll cycle interval
func (c PollConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Timeout returns the per-target request timeout
func (c PollConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// IdentityConfig configures device identity persistence
type IdentityConfig struct {
	Path string `mapstructure:"path"`
}

// SnapshotConfig configures the snapshot engine
type SnapshotConfig struct {
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// WebConfig configures the herder status API
type WebConfig struct {
	Port uint16 `mapstructure:"port"`
}

// Address returns the status API listen address
func (c WebConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load reads and parses the TOML configuration file at path
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaults(&cfg)
	return &cfg, nil
}

// setDefaults fills unset fields with defaults
func setDefaults(cfg *Config) {
	if cfg.Identity.Path == "" {
		cfg.Identity.Path = DefaultIdentityPath()
	}
	if cfg.Snapshot.SettleDelay == 0 {
		cfg.Snapshot.SettleDelay = 200 * time.Millisecond
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8900
	}
	if cfg.Mode.Type == ModePush && cfg.Mode.Push.IntervalSeconds == 0 {
		cfg.Mode.Push.IntervalSeconds = 60
	}
	if cfg.Mode.Type == ModePoll {
		if cfg.Mode.Poll.IntervalSeconds == 0 {
			cfg.Mode.Poll.IntervalSeconds = 60
		}
		if cfg.Mode.Poll.TimeoutSeconds == 0 {
			cfg.Mode.Poll.TimeoutSeconds = 10
		}
	}
	cfg.Log.SetDefaults()
}

// Validate checks the configuration for the given role. Exactly one mode
// must be selected, its parameters must be sane, and the mode must be
// acceptable for the role.
func (cfg *Config) Validate(role Role) error {
	validate := validator.New()

	if err := validate.StructPartial(&cfg.Mode, "Type"); err != nil {
		return fmt.Errorf("invalid mode: %w", err)
	}

	switch cfg.Mode.Type {
	case ModePush:
		if role == RoleHerder {
			return fmt.Errorf("mode %q is not acceptable for the herder", cfg.Mode.Type)
		}
		if err := validate.Struct(cfg.Mode.Push); err != nil {
			return fmt.Errorf("invalid push config: %w", err)
		}
	case ModePull:
		if err := validate.Struct(cfg.Mode.Pull); err != nil {
			return fmt.Errorf("invalid pull config: %w", err)
		}
	case ModePoll:
		if role == RoleCattle {
			return fmt.Errorf("mode %q is not acceptable for cattle", cfg.Mode.Type)
		}
		if err := validate.Struct(cfg.Mode.Poll); err != nil {
			return fmt.Errorf("invalid poll config: %w", err)
		}
	}

	if err := cfg.Log.Validate(); err != nil {
		return fmt.Errorf("invalid log config: %w", err)
	}

	return nil
}
