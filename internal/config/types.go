// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/embedcli/embedcli/pkg/types"
)

const (
	// TransportStdio runs one console session on the process's stdin/stdout.
	TransportStdio TransportKind = "stdio"
	// TransportDevice runs one console session on a serial line or tty.
	TransportDevice TransportKind = "device"
	// TransportSSH serves console sessions over SSH.
	TransportSSH TransportKind = "ssh"

	// StorageNone disables the save built-in.
	StorageNone StorageBackend = "none"
	// StorageTOML saves network settings to a TOML file.
	StorageTOML StorageBackend = "toml"
	// StorageBolt saves network settings to a bbolt database.
	StorageBolt StorageBackend = "bolt"

	// LogLevelDebug enables debug logging.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default log level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs warnings and errors only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs errors only.
	LogLevelError LogLevel = "error"

	buildTimeLayout = "2006-01-02 15:04:05"
)

var (
	// ErrInvalidTransportKind is returned when a TransportKind value is not recognized.
	ErrInvalidTransportKind = errors.New("invalid transport kind")
	// ErrInvalidStorageBackend is returned when a StorageBackend value is not recognized.
	ErrInvalidStorageBackend = errors.New("invalid storage backend")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidBuildTime is returned when identity.build_time cannot be parsed.
	ErrInvalidBuildTime = errors.New("invalid build time")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// TransportKind selects what the serve command binds the console to.
	TransportKind string

	// StorageBackend selects where the save built-in writes.
	StorageBackend string

	// LogLevel is the minimum level of host log output.
	LogLevel string

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sections.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Identity holds the banner and version strings.
		Identity IdentityConfig `json:"identity" mapstructure:"identity"`
		// Console sizes the line buffer and command tables.
		Console ConsoleConfig `json:"console" mapstructure:"console"`
		// Transport selects the channel the console runs over.
		Transport TransportConfig `json:"transport" mapstructure:"transport"`
		// SSH configures the SSH transport.
		SSH SSHConfig `json:"ssh" mapstructure:"ssh"`
		// Storage configures the save built-in.
		Storage StorageConfig `json:"storage" mapstructure:"storage"`
		// Log configures host logging.
		Log LogConfig `json:"log" mapstructure:"log"`
	}

	// IdentityConfig holds the static product strings.
	IdentityConfig struct {
		ProductName     string `json:"product_name" mapstructure:"product_name"`
		Copyright       string `json:"copyright" mapstructure:"copyright"`
		BoardVersion    string `json:"board_version" mapstructure:"board_version"`
		FirmwareVersion string `json:"firmware_version" mapstructure:"firmware_version"`
		// BuildTime is RFC 3339 or "2006-01-02 15:04:05" (UTC). Empty means unknown.
		BuildTime string `json:"build_time" mapstructure:"build_time"`
	}

	// ConsoleConfig sizes the interpreter.
	ConsoleConfig struct {
		LineCapacity int           `json:"line_capacity" mapstructure:"line_capacity"`
		MaxTokens    int           `json:"max_tokens" mapstructure:"max_tokens"`
		MaxCommands  int           `json:"max_commands" mapstructure:"max_commands"`
		MaxModules   int           `json:"max_modules" mapstructure:"max_modules"`
		Echo         bool          `json:"echo" mapstructure:"echo"`
		PollInterval time.Duration `json:"poll_interval" mapstructure:"poll_interval"`
		// ConfigMode is the configuration mode at start-up.
		ConfigMode bool `json:"config_mode" mapstructure:"config_mode"`
	}

	// TransportConfig selects the console channel.
	TransportConfig struct {
		Kind TransportKind `json:"kind" mapstructure:"kind"`
		// Device is the serial line or tty path used with TransportDevice.
		Device string `json:"device" mapstructure:"device"`
	}

	// SSHConfig configures the SSH transport.
	SSHConfig struct {
		Host        string           `json:"host" mapstructure:"host"`
		Port        types.ListenPort `json:"port" mapstructure:"port"`
		Password    string           `json:"password" mapstructure:"password"`
		HostKeyPath string           `json:"host_key_path" mapstructure:"host_key_path"`
		RequirePTY  bool             `json:"require_pty" mapstructure:"require_pty"`
		MaxSessions int              `json:"max_sessions" mapstructure:"max_sessions"`
		IdleTimeout time.Duration    `json:"idle_timeout" mapstructure:"idle_timeout"`
	}

	// StorageConfig configures persistence of network settings.
	StorageConfig struct {
		Backend StorageBackend `json:"backend" mapstructure:"backend"`
		// Path is the settings file; empty means a file in the config directory.
		Path string `json:"path" mapstructure:"path"`
	}

	// LogConfig configures host logging.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Identity: IdentityConfig{
			ProductName:     "embedcli",
			BoardVersion:    "unknown",
			FirmwareVersion: "dev",
		},
		Console: ConsoleConfig{
			LineCapacity: 50,
			MaxTokens:    10,
			MaxCommands:  20,
			MaxModules:   20,
			Echo:         true,
			PollInterval: 5 * time.Millisecond,
		},
		Transport: TransportConfig{Kind: TransportStdio},
		SSH: SSHConfig{
			Host:       "127.0.0.1",
			Port:       2222,
			RequirePTY: true,
		},
		Storage: StorageConfig{Backend: StorageNone},
		Log:     LogConfig{Level: LogLevelInfo},
	}
}

// String returns the string representation of the TransportKind.
func (k TransportKind) String() string { return string(k) }

// Validate returns an error wrapping ErrInvalidTransportKind for unknown kinds.
func (k TransportKind) Validate() error {
	switch k {
	case TransportStdio, TransportDevice, TransportSSH:
		return nil
	default:
		return fmt.Errorf("%w %q (valid: stdio, device, ssh)", ErrInvalidTransportKind, string(k))
	}
}

// String returns the string representation of the StorageBackend.
func (b StorageBackend) String() string { return string(b) }

// Validate returns an error wrapping ErrInvalidStorageBackend for unknown backends.
func (b StorageBackend) Validate() error {
	switch b {
	case StorageNone, StorageTOML, StorageBolt:
		return nil
	default:
		return fmt.Errorf("%w %q (valid: none, toml, bolt)", ErrInvalidStorageBackend, string(b))
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// Validate returns an error wrapping ErrInvalidLogLevel for unknown levels.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return fmt.Errorf("%w %q (valid: debug, info, warn, error)", ErrInvalidLogLevel, string(l))
	}
}

// BuildTimestamp parses BuildTime. An empty value yields the zero time.
func (id IdentityConfig) BuildTimestamp() (time.Time, error) {
	s := strings.TrimSpace(id.BuildTime)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(buildTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: use RFC 3339 or %q", ErrInvalidBuildTime, s, buildTimeLayout)
	}
	return t, nil
}

// Validate checks what the CUE schema cannot: cross-field rules and the
// values that may also arrive through environment variables.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Identity.BuildTimestamp(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Transport.Kind.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Transport.Kind == TransportDevice {
		if err := types.FilesystemPath(c.Transport.Device).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("transport.device is required for the device transport: %w", err))
		}
	}
	if err := c.SSH.Port.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Storage.Backend.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Log.Level.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Console.LineCapacity < 8 {
		errs = append(errs, fmt.Errorf("console.line_capacity %d is below the minimum of 8", c.Console.LineCapacity))
	}
	if c.Console.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("console.max_tokens %d must be at least 1", c.Console.MaxTokens))
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns the field errors and ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
