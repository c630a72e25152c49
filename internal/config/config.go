package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/dshills/coled/internal/config/loader"
)

// Config is the resolved configuration.
type Config struct {
	Network NetworkConfig `yaml:"network"`
	Session SessionConfig `yaml:"session"`
	Editor  EditorConfig  `yaml:"editor"`
	Logging LoggingConfig `yaml:"logging"`
	Relay   RelayConfig   `yaml:"relay"`
}

// NetworkConfig locates the relay.
type NetworkConfig struct {
	ServerAddress string `yaml:"serverAddress"`
	ServerPort    int    `yaml:"serverPort"`

	// ReconnectIntervalSeconds is the minimum spacing between connect
	// attempts while disconnected.
	ReconnectIntervalSeconds int `yaml:"reconnectIntervalSeconds"`
}

// SessionConfig bounds user-supplied handshake fields.
type SessionConfig struct {
	MaxPasswordLength int `yaml:"maxPasswordLength"`
	SessionIDLength   int `yaml:"sessionIdLength"`
}

// EditorConfig holds terminal editor settings.
type EditorConfig struct {
	TabStop              int `yaml:"tabStop"`
	StatusMessageSeconds int `yaml:"statusMessageSeconds"`
	// QuitTimes is how many Ctrl-Q presses quit with unsaved changes.
	QuitTimes int `yaml:"quitTimes"`
}

// LoggingConfig selects log verbosity and destination.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// File is where logs go. Empty disables logging in the editor and means
	// stderr for the relay.
	File     string `yaml:"file"`
	Encoding string `yaml:"encoding"`
}

// RelayConfig configures the relay server.
type RelayConfig struct {
	ListenAddress string `yaml:"listenAddress"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Network: NetworkConfig{
			ServerAddress:            "127.0.0.1",
			ServerPort:               3018,
			ReconnectIntervalSeconds: 25,
		},
		Session: SessionConfig{
			MaxPasswordLength: 32,
			SessionIDLength:   20,
		},
		Editor: EditorConfig{
			TabStop:              8,
			StatusMessageSeconds: 5,
			QuitTimes:            3,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		Relay: RelayConfig{
			ListenAddress: "localhost:3018",
		},
	}
}

// Address returns the relay address as host:port.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Network.ServerAddress, strconv.Itoa(c.Network.ServerPort))
}

// ReconnectInterval returns the reconnect spacing.
func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.Network.ReconnectIntervalSeconds) * time.Second
}

// StatusMessageTTL returns how long a status message stays visible.
func (c *Config) StatusMessageTTL() time.Duration {
	return time.Duration(c.Editor.StatusMessageSeconds) * time.Second
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs error
	add := func(path, msg string, v any) {
		errs = multierr.Append(errs, &ValidationError{Path: path, Message: msg, Value: v})
	}
	atLeast := func(path string, v, min int) {
		if v < min {
			add(path, fmt.Sprintf("must be at least %d", min), v)
		}
	}

	if c.Network.ServerAddress == "" {
		add("network.serverAddress", "must not be empty", c.Network.ServerAddress)
	}
	if c.Network.ServerPort < 1 || c.Network.ServerPort > 65535 {
		add("network.serverPort", "must be between 1 and 65535", c.Network.ServerPort)
	}
	atLeast("network.reconnectIntervalSeconds", c.Network.ReconnectIntervalSeconds, 1)
	atLeast("session.maxPasswordLength", c.Session.MaxPasswordLength, 1)
	atLeast("session.sessionIdLength", c.Session.SessionIDLength, 1)
	if c.Editor.TabStop < 1 || c.Editor.TabStop > 32 {
		add("editor.tabStop", "must be between 1 and 32", c.Editor.TabStop)
	}
	atLeast("editor.statusMessageSeconds", c.Editor.StatusMessageSeconds, 1)
	atLeast("editor.quitTimes", c.Editor.QuitTimes, 1)
	if _, err := zapcore.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil && !strings.EqualFold(c.Logging.Level, "warning") {
		add("logging.level", "must be debug, info, warn or error", c.Logging.Level)
	}
	if c.Logging.Encoding != "console" && c.Logging.Encoding != "json" {
		add("logging.encoding", "must be console or json", c.Logging.Encoding)
	}
	if _, _, err := net.SplitHostPort(c.Relay.ListenAddress); err != nil {
		add("relay.listenAddress", "must be host:port", c.Relay.ListenAddress)
	}
	return errs
}

// Decode overlays the settings in m onto the defaults.
func Decode(m map[string]any) (*Config, error) {
	cfg := Default()
	if len(m) == 0 {
		return cfg, nil
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, nil
}

// DefaultPath returns the per-user config file location, or "" when the
// user config directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "coled", "config.toml")
}

type loadOptions struct {
	fs        loader.FileSystem
	path      string
	required  bool
	envPrefix string
	overrides map[string]any
}

// Option configures Load.
type Option func(*loadOptions)

// WithFile loads path, which must exist.
func WithFile(path string) Option {
	return func(o *loadOptions) {
		o.path, o.required = path, true
	}
}

// WithOptionalFile loads path if it exists.
func WithOptionalFile(path string) Option {
	return func(o *loadOptions) {
		o.path, o.required = path, false
	}
}

// WithFS reads files through fs.
func WithFS(fs loader.FileSystem) Option {
	return func(o *loadOptions) {
		o.fs = fs
	}
}

// WithEnvPrefix changes the environment prefix. An empty prefix disables
// the environment layer.
func WithEnvPrefix(prefix string) Option {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// WithOverrides sets the highest layer, typically built from flags.
func WithOverrides(m map[string]any) Option {
	return func(o *loadOptions) {
		o.overrides = m
	}
}

// Load resolves the configuration layers and validates the result.
func Load(opts ...Option) (*Config, error) {
	o := loadOptions{
		fs:        loader.DefaultFS(),
		envPrefix: loader.DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(&o)
	}

	merged := make(map[string]any)
	if o.path != "" {
		m, err := loadFile(o.fs, o.path, o.required)
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, m)
	}
	if o.envPrefix != "" {
		m, err := loader.NewEnvLoader(o.envPrefix).Load()
		if err != nil {
			return nil, fmt.Errorf("loading environment: %w", err)
		}
		merged = loader.DeepMerge(merged, m)
	}
	merged = loader.DeepMerge(merged, o.overrides)

	cfg, err := Decode(merged)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(fs loader.FileSystem, path string, required bool) (map[string]any, error) {
	if _, err := fs.Stat(path); err != nil {
		if os.IsNotExist(err) {
			if required {
				return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("checking config file %s: %w", path, err)
	}
	l, err := loader.ForPath(fs, path)
	if err != nil {
		return nil, err
	}
	return l.Load()
}
