// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/embedcli/embedcli/internal/issue"
	"github.com/embedcli/embedcli/internal/testutil"
	"github.com/embedcli/embedcli/pkg/types"
)

func load(t *testing.T, opts LoadOptions) (*Config, string, error) {
	t.Helper()
	return NewProvider().Resolve(context.Background(), opts)
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	if cfg.Console.LineCapacity != 50 || cfg.Console.MaxTokens != 10 {
		t.Errorf("console sizes = %d/%d, want 50/10", cfg.Console.LineCapacity, cfg.Console.MaxTokens)
	}
	if cfg.Transport.Kind != TransportStdio {
		t.Errorf("transport = %s, want stdio", cfg.Transport.Kind)
	}
	if cfg.SSH.Host != "127.0.0.1" || !cfg.SSH.RequirePTY {
		t.Errorf("ssh defaults = %+v", cfg.SSH)
	}
	if cfg.Storage.Backend != StorageNone {
		t.Errorf("storage = %s, want none", cfg.Storage.Backend)
	}
}

func TestLoad_DefaultsWhenNoConfigFile(t *testing.T) {
	t.Parallel()

	cfg, path, err := load(t, LoadOptions{ConfigDirPath: types.FilesystemPath(t.TempDir())})
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if path != "" {
		t.Errorf("resolved path = %q, want empty", path)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_ConfigDirFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := testutil.MustWriteFile(t, dir, "config.cue", `
identity: {
	product_name: "Gateway"
	build_time:   "2024-03-01 12:30:00"
}
console: {
	line_capacity: 64
	poll_interval: "10ms"
	config_mode:   true
}
ssh: {
	port:         2200
	idle_timeout: "5m"
}
storage: backend: "bolt"
`)

	cfg, path, err := load(t, LoadOptions{ConfigDirPath: types.FilesystemPath(dir)})
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if path != want {
		t.Errorf("resolved path = %q, want %q", path, want)
	}

	expected := DefaultConfig()
	expected.Identity.ProductName = "Gateway"
	expected.Identity.BuildTime = "2024-03-01 12:30:00"
	expected.Console.LineCapacity = 64
	expected.Console.PollInterval = 10 * time.Millisecond
	expected.Console.ConfigMode = true
	expected.SSH.Port = 2200
	expected.SSH.IdleTimeout = 5 * time.Minute
	expected.Storage.Backend = StorageBolt
	if diff := cmp.Diff(expected, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	ts, err := cfg.Identity.BuildTimestamp()
	if err != nil {
		t.Fatalf("BuildTimestamp() = %v", err)
	}
	if !ts.Equal(time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)) {
		t.Errorf("BuildTimestamp() = %v", ts)
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Parallel()

	path := testutil.MustWriteFile(t, t.TempDir(), "board.cue", `transport: {kind: "device", device: "/dev/ttyUSB0"}`)

	cfg, resolved, err := load(t, LoadOptions{ConfigFilePath: types.FilesystemPath(path)})
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if resolved != path {
		t.Errorf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Transport.Kind != TransportDevice || cfg.Transport.Device != "/dev/ttyUSB0" {
		t.Errorf("transport = %+v", cfg.Transport)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantMsg []string
	}{
		{
			name:    "out of range",
			content: `console: line_capacity: 300`,
			wantMsg: []string{"console.line_capacity"},
		},
		{
			name:    "unknown field",
			content: `console: colour: "red"`,
			wantMsg: []string{"colour"},
		},
		{
			name:    "bad enum",
			content: `transport: kind: "usb"`,
			wantMsg: []string{"transport.kind"},
		},
		{
			name:    "bad duration",
			content: `console: poll_interval: "soon"`,
			wantMsg: []string{"console.poll_interval"},
		},
		{
			name:    "syntax error",
			content: `console: {`,
			wantMsg: []string{"board.cue"},
		},
		{
			name:    "device transport without path",
			content: `transport: kind: "device"`,
			wantMsg: []string{"validate configuration", "transport.device"},
		},
		{
			name:    "unparsable build time",
			content: `identity: build_time: "yesterday"`,
			wantMsg: []string{"invalid build time"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := testutil.MustWriteFile(t, t.TempDir(), "board.cue", tt.content)
			_, _, err := load(t, LoadOptions{ConfigFilePath: types.FilesystemPath(path)})
			if err == nil {
				t.Fatal("Resolve() should fail")
			}

			var actionable *issue.ActionableError
			if !errors.As(err, &actionable) {
				t.Fatalf("error should be *issue.ActionableError, got %T: %v", err, err)
			}
			for _, want := range tt.wantMsg {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q should mention %q", err, want)
				}
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope.cue")
	_, _, err := load(t, LoadOptions{ConfigFilePath: types.FilesystemPath(missing)})
	if err == nil {
		t.Fatal("Resolve() should fail for a missing file")
	}

	var actionable *issue.ActionableError
	if !errors.As(err, &actionable) {
		t.Fatalf("error should be *issue.ActionableError, got %T", err)
	}
	if !actionable.HasSuggestions() {
		t.Error("missing-file error should carry suggestions")
	}
	if !strings.Contains(err.Error(), missing) {
		t.Errorf("error should name the file, got %q", err)
	}
}

func TestLoad_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() = %v, want context.Canceled", err)
	}
}

func TestLoadOptions_Validate(t *testing.T) {
	t.Parallel()

	if err := (LoadOptions{}).Validate(); err != nil {
		t.Errorf("empty LoadOptions should be valid, got %v", err)
	}

	err := LoadOptions{ConfigFilePath: "   ", ConfigDirPath: "\t"}.Validate()
	if !errors.Is(err, ErrInvalidLoadOptions) {
		t.Fatalf("Validate() = %v, want ErrInvalidLoadOptions", err)
	}
	var loadErr *InvalidLoadOptionsError
	if !errors.As(err, &loadErr) || len(loadErr.FieldErrors) != 2 {
		t.Fatalf("want two field errors, got %v", err)
	}
	if !errors.Is(loadErr.FieldErrors[0], types.ErrInvalidFilesystemPath) {
		t.Errorf("field error should wrap ErrInvalidFilesystemPath, got %v", loadErr.FieldErrors[0])
	}

	if _, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: " "}); !errors.Is(err, ErrInvalidLoadOptions) {
		t.Errorf("Load() = %v, want ErrInvalidLoadOptions", err)
	}
}

// Environment tests mutate process state and cannot run in parallel.
func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Cleanup(testutil.MustSetenv(t, "EMBEDCLI_SSH_PORT", "2022"))
	t.Cleanup(testutil.MustSetenv(t, "EMBEDCLI_TRANSPORT_KIND", "ssh"))
	t.Cleanup(testutil.MustSetenv(t, "EMBEDCLI_CONSOLE_ECHO", "false"))

	dir := t.TempDir()
	testutil.MustWriteFile(t, dir, "config.cue", `ssh: port: 2200`)

	cfg, _, err := load(t, LoadOptions{ConfigDirPath: types.FilesystemPath(dir)})
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if cfg.SSH.Port != 2022 {
		t.Errorf("ssh.port = %d, want the environment value 2022", cfg.SSH.Port)
	}
	if cfg.Transport.Kind != TransportSSH {
		t.Errorf("transport.kind = %s, want ssh", cfg.Transport.Kind)
	}
	if cfg.Console.Echo {
		t.Error("console.echo should be false")
	}
}

func TestLoad_InvalidEnvironmentValue(t *testing.T) {
	t.Cleanup(testutil.MustSetenv(t, "EMBEDCLI_STORAGE_BACKEND", "sqlite"))

	_, _, err := load(t, LoadOptions{ConfigDirPath: types.FilesystemPath(t.TempDir())})
	if !errors.Is(err, ErrInvalidStorageBackend) {
		t.Errorf("Resolve() = %v, want ErrInvalidStorageBackend", err)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Resolve() = %v, want ErrInvalidConfig", err)
	}
}

func TestLoad_WorkingDirectoryFallback(t *testing.T) {
	wd := t.TempDir()
	testutil.MustWriteFile(t, wd, "config.cue", `log: level: "debug"`)
	t.Cleanup(testutil.MustChdir(t, wd))

	cfg, path, err := load(t, LoadOptions{ConfigDirPath: types.FilesystemPath(t.TempDir())})
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if path != "config.cue" {
		t.Errorf("resolved path = %q, want config.cue", path)
	}
	if cfg.Log.Level != LogLevelDebug {
		t.Errorf("log.level = %s, want debug", cfg.Log.Level)
	}
}

func TestConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout is Linux-specific")
	}

	root := t.TempDir()
	t.Cleanup(testutil.SetConfigHome(t, root))

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() = %v", err)
	}
	if want := filepath.Join(root, AppName); dir != want {
		t.Errorf("ConfigDir() = %q, want %q", dir, want)
	}

	SetConfigDirOverride("/srv/embedcli")
	t.Cleanup(Reset)
	if dir, _ := ConfigDir(); dir != "/srv/embedcli" {
		t.Errorf("ConfigDir() with override = %q", dir)
	}
}

func TestStoragePath(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)

	tests := []struct {
		backend StorageBackend
		path    string
		want    string
	}{
		{StorageNone, "", ""},
		{StorageTOML, "", filepath.Join(dir, "netconfig.toml")},
		{StorageBolt, "", filepath.Join(dir, "netconfig.db")},
		{StorageBolt, "/var/lib/board.db", "/var/lib/board.db"},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Storage = StorageConfig{Backend: tt.backend, Path: tt.path}
		got, err := cfg.StoragePath()
		if err != nil {
			t.Fatalf("StoragePath() = %v", err)
		}
		if got != tt.want {
			t.Errorf("StoragePath(%s, %q) = %q, want %q", tt.backend, tt.path, got, tt.want)
		}
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "etc", "config.cue")
	written, created, err := CreateDefaultConfig(path)
	if err != nil {
		t.Fatalf("CreateDefaultConfig() = %v", err)
	}
	if written != path || !created {
		t.Errorf("CreateDefaultConfig() = %q, %v", written, created)
	}

	// The generated file must load back to the defaults.
	cfg, _, err := load(t, LoadOptions{ConfigFilePath: types.FilesystemPath(path)})
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("generated config mismatch (-want +got):\n%s", diff)
	}

	if err := os.WriteFile(path, []byte("log: level: \"warn\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, created, err := CreateDefaultConfig(path); err != nil || created {
		t.Errorf("second CreateDefaultConfig() = %v, %v; want existing file kept", created, err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "warn") {
		t.Error("existing config was overwritten")
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Identity.Copyright = "(c) Example Ltd"
	cfg.Identity.BuildTime = "2024-01-02T03:04:05Z"
	cfg.Transport = TransportConfig{Kind: TransportDevice, Device: "/dev/ttyS1"}
	cfg.SSH.Password = "hunter2"
	cfg.SSH.IdleTimeout = 90 * time.Second
	cfg.Storage = StorageConfig{Backend: StorageTOML, Path: "/tmp/net.toml"}

	path := testutil.MustWriteFile(t, t.TempDir(), "config.cue", GenerateCUE(cfg))
	got, _, err := load(t, LoadOptions{ConfigFilePath: types.FilesystemPath(path)})
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults", func(*Config) {}, nil},
		{"bad transport", func(c *Config) { c.Transport.Kind = "usb" }, ErrInvalidTransportKind},
		{"device without path", func(c *Config) { c.Transport.Kind = TransportDevice }, types.ErrInvalidFilesystemPath},
		{"bad port", func(c *Config) { c.SSH.Port = -1 }, types.ErrInvalidListenPort},
		{"bad backend", func(c *Config) { c.Storage.Backend = "sqlite" }, ErrInvalidStorageBackend},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, ErrInvalidLogLevel},
		{"bad build time", func(c *Config) { c.Identity.BuildTime = "01/02/2024" }, ErrInvalidBuildTime},
		{"tiny line", func(c *Config) { c.Console.LineCapacity = 4 }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, should wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"#Config"}, ""},
		{[]string{"#Config", "ssh", "port"}, "ssh.port"},
		{[]string{"console", "line_capacity"}, "console.line_capacity"},
		{[]string{"items", "0", "name"}, "items[0].name"},
		{[]string{"0"}, "0"},
	}
	for _, tt := range tests {
		if got := formatPath(tt.in); got != tt.want {
			t.Errorf("formatPath(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	if err := checkFileSize(make([]byte, 10), 10, "ok.cue"); err != nil {
		t.Errorf("checkFileSize at the limit = %v", err)
	}
	err := checkFileSize(make([]byte, 11), 10, "big.cue")
	if err == nil || !strings.Contains(err.Error(), "big.cue") {
		t.Errorf("checkFileSize over the limit = %v", err)
	}
}
