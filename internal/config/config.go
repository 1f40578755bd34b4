// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/embedcli/embedcli/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "embedcli"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides (EMBEDCLI_SSH_PORT).
	EnvPrefix = "EMBEDCLI"

	// netconfigBase names the default settings file in the config directory.
	netconfigBase = "netconfig"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the embedcli configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// StoragePath returns where the save built-in writes. An explicit
// storage.path wins; otherwise the file sits in the config directory with
// an extension matching the backend.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}

	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	switch c.Storage.Backend {
	case StorageBolt:
		return filepath.Join(dir, netconfigBase+".db"), nil
	case StorageTOML:
		return filepath.Join(dir, netconfigBase+".toml"), nil
	default:
		return "", nil
	}
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()
	resolvedPath := ""

	if opts.ConfigFilePath != "" {
		path := string(opts.ConfigFilePath)
		if !fileExists(path) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'embedcli config init' to write a default configuration").
				Wrap(fmt.Errorf("config file not found: %s", path)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", invalidFileError(path, err)
		}
		resolvedPath = path
	} else {
		cfgDir, err := configDirWithOverride(string(opts.ConfigDirPath))
		if err != nil {
			return nil, "", err
		}

		for _, candidate := range []string{
			filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt),
			ConfigFileName + "." + ConfigFileExt,
		} {
			if !fileExists(candidate) {
				continue
			}
			if err := loadCUEIntoViper(v, candidate); err != nil {
				return nil, "", invalidFileError(candidate, err)
			}
			resolvedPath = candidate
			break
		}
		// No config file means defaults plus environment.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check values set through " + EnvPrefix + "_* environment variables").
			WithSuggestion("Run 'embedcli config show' to see the effective configuration").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func invalidFileError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		WithSuggestion("See 'embedcli config --help' for configuration options").
		Wrap(err).
		BuildError()
}

// newViper returns a Viper instance holding every default and reading
// EMBEDCLI_* overrides. Every key needs a default so AutomaticEnv applies
// to it during Unmarshal.
func newViper() *viper.Viper {
	v := viper.New()

	d := DefaultConfig()
	v.SetDefault("identity.product_name", d.Identity.ProductName)
	v.SetDefault("identity.copyright", d.Identity.Copyright)
	v.SetDefault("identity.board_version", d.Identity.BoardVersion)
	v.SetDefault("identity.firmware_version", d.Identity.FirmwareVersion)
	v.SetDefault("identity.build_time", d.Identity.BuildTime)
	v.SetDefault("console.line_capacity", d.Console.LineCapacity)
	v.SetDefault("console.max_tokens", d.Console.MaxTokens)
	v.SetDefault("console.max_commands", d.Console.MaxCommands)
	v.SetDefault("console.max_modules", d.Console.MaxModules)
	v.SetDefault("console.echo", d.Console.Echo)
	v.SetDefault("console.poll_interval", d.Console.PollInterval)
	v.SetDefault("console.config_mode", d.Console.ConfigMode)
	v.SetDefault("transport.kind", string(d.Transport.Kind))
	v.SetDefault("transport.device", d.Transport.Device)
	v.SetDefault("ssh.host", d.SSH.Host)
	v.SetDefault("ssh.port", int(d.SSH.Port))
	v.SetDefault("ssh.password", d.SSH.Password)
	v.SetDefault("ssh.host_key_path", d.SSH.HostKeyPath)
	v.SetDefault("ssh.require_pty", d.SSH.RequirePTY)
	v.SetDefault("ssh.max_sessions", d.SSH.MaxSessions)
	v.SetDefault("ssh.idle_timeout", d.SSH.IdleTimeout)
	v.SetDefault("storage.backend", string(d.Storage.Backend))
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("log.level", string(d.Log.Level))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// Config decodes to map[string]any rather than a struct so that Viper keeps
// its defaults and environment overrides, and validation uses
// Concrete(false) because every field is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := checkFileSize(data, maxConfigFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default configuration to path, or to the
// config directory when path is empty. An existing file is left alone and
// reported through created=false.
func CreateDefaultConfig(path string) (written string, created bool, err error) {
	if path == "" {
		cfgDir, dirErr := ConfigDir()
		if dirErr != nil {
			return "", false, dirErr
		}
		path = filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	}

	if _, statErr := os.Stat(path); statErr == nil {
		return path, false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}

	return path, true, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// embedcli configuration file\n")
	sb.WriteString("// Every field is optional; omitted fields keep their defaults.\n\n")

	sb.WriteString("identity: {\n")
	sb.WriteString(fmt.Sprintf("\tproduct_name: %q\n", cfg.Identity.ProductName))
	if cfg.Identity.Copyright != "" {
		sb.WriteString(fmt.Sprintf("\tcopyright: %q\n", cfg.Identity.Copyright))
	}
	sb.WriteString(fmt.Sprintf("\tboard_version: %q\n", cfg.Identity.BoardVersion))
	sb.WriteString(fmt.Sprintf("\tfirmware_version: %q\n", cfg.Identity.FirmwareVersion))
	if cfg.Identity.BuildTime != "" {
		sb.WriteString(fmt.Sprintf("\tbuild_time: %q\n", cfg.Identity.BuildTime))
	}
	sb.WriteString("}\n")

	sb.WriteString("\nconsole: {\n")
	sb.WriteString(fmt.Sprintf("\tline_capacity: %d\n", cfg.Console.LineCapacity))
	sb.WriteString(fmt.Sprintf("\tmax_tokens: %d\n", cfg.Console.MaxTokens))
	sb.WriteString(fmt.Sprintf("\tmax_commands: %d\n", cfg.Console.MaxCommands))
	sb.WriteString(fmt.Sprintf("\tmax_modules: %d\n", cfg.Console.MaxModules))
	sb.WriteString(fmt.Sprintf("\techo: %v\n", cfg.Console.Echo))
	sb.WriteString(fmt.Sprintf("\tpoll_interval: %q\n", cfg.Console.PollInterval.String()))
	sb.WriteString(fmt.Sprintf("\tconfig_mode: %v\n", cfg.Console.ConfigMode))
	sb.WriteString("}\n")

	sb.WriteString("\ntransport: {\n")
	sb.WriteString(fmt.Sprintf("\tkind: %q\n", cfg.Transport.Kind))
	if cfg.Transport.Device != "" {
		sb.WriteString(fmt.Sprintf("\tdevice: %q\n", cfg.Transport.Device))
	}
	sb.WriteString("}\n")

	sb.WriteString("\nssh: {\n")
	sb.WriteString(fmt.Sprintf("\thost: %q\n", cfg.SSH.Host))
	sb.WriteString(fmt.Sprintf("\tport: %d\n", cfg.SSH.Port))
	if cfg.SSH.Password != "" {
		sb.WriteString(fmt.Sprintf("\tpassword: %q\n", cfg.SSH.Password))
	}
	if cfg.SSH.HostKeyPath != "" {
		sb.WriteString(fmt.Sprintf("\thost_key_path: %q\n", cfg.SSH.HostKeyPath))
	}
	sb.WriteString(fmt.Sprintf("\trequire_pty: %v\n", cfg.SSH.RequirePTY))
	sb.WriteString(fmt.Sprintf("\tmax_sessions: %d\n", cfg.SSH.MaxSessions))
	if cfg.SSH.IdleTimeout > 0 {
		sb.WriteString(fmt.Sprintf("\tidle_timeout: %q\n", cfg.SSH.IdleTimeout.String()))
	}
	sb.WriteString("}\n")

	sb.WriteString("\nstorage: {\n")
	sb.WriteString(fmt.Sprintf("\tbackend: %q\n", cfg.Storage.Backend))
	if cfg.Storage.Path != "" {
		sb.WriteString(fmt.Sprintf("\tpath: %q\n", cfg.Storage.Path))
	}
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	sb.WriteString(fmt.Sprintf("\tlevel: %q\n", cfg.Log.Level))
	sb.WriteString("}\n")

	return sb.String()
}
