// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/embedcli/embedcli/internal/config"
	"github.com/embedcli/embedcli/internal/console"
	"github.com/embedcli/embedcli/internal/issue"
	"github.com/embedcli/embedcli/internal/modules"
	"github.com/embedcli/embedcli/internal/store"
)

// board is the embedding application: it owns the address arrays edited by
// "netconfig", the settings store behind "save" and the reset behaviour of
// "reboot".
type board struct {
	console *console.Console
	net     *console.NetStore
	logger  *log.Logger

	cfg atomic.Pointer[config.Config]

	storeMu   sync.Mutex
	store     store.Store
	storePath string
	// lastSaved is what "save" last wrote, so the watcher can tell the
	// console's own writes from edits made by hand.
	lastSaved *store.Snapshot

	ip      [4]byte
	gateway [4]byte
	mask    [4]byte
	mac     [6]byte
}

func newBoard(cfg *config.Config, logger *log.Logger) (*board, error) {
	id, err := identityFrom(cfg.Identity)
	if err != nil {
		return nil, err
	}

	b := &board{
		console: console.New(id, consoleOptions(cfg.Console)),
		logger:  logger,
	}
	b.cfg.Store(cfg)
	b.console.SetConfigMode(cfg.Console.ConfigMode)
	b.net = b.console.RegisterNetStore(&b.ip, &b.gateway, &b.mask, &b.mac)
	b.console.SetResetHook(b.reset)

	if err := modules.Register(b.console, &modules.Sys{Logger: logger}); err != nil {
		return nil, err
	}
	if err := b.openStore(cfg); err != nil {
		return nil, err
	}
	return b, nil
}

func identityFrom(id config.IdentityConfig) (console.Identity, error) {
	built, err := id.BuildTimestamp()
	if err != nil {
		return console.Identity{}, err
	}
	return console.Identity{
		ProductName:     id.ProductName,
		Copyright:       id.Copyright,
		BoardVersion:    id.BoardVersion,
		FirmwareVersion: id.FirmwareVersion,
		BuildTime:       built,
	}, nil
}

func consoleOptions(cc config.ConsoleConfig) console.Options {
	return console.Options{
		LineCapacity: cc.LineCapacity,
		MaxTokens:    cc.MaxTokens,
		Limits: console.Limits{
			Builtin:  console.DefaultBuiltinCapacity,
			Commands: cc.MaxCommands,
			Modules:  cc.MaxModules,
		},
		Echo: cc.Echo,
	}
}

// openStore opens the configured backend, restores saved settings and
// installs the save hook. With backend "none" the console keeps its
// "Save not available" warning.
func (b *board) openStore(cfg *config.Config) error {
	path, err := cfg.StoragePath()
	if err != nil {
		return err
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return storageError(path, err)
		}
	}

	st, err := store.Open(store.Backend(cfg.Storage.Backend), path)
	if err != nil {
		return storageError(path, err)
	}
	if st == nil {
		return nil
	}

	b.storeMu.Lock()
	b.store = st
	b.storePath = path
	b.storeMu.Unlock()

	b.restore()
	b.console.SetSaveHook(store.Hook(st, b.net, b.recordSaved))
	return nil
}

func (b *board) recordSaved(snap store.Snapshot) {
	b.storeMu.Lock()
	b.lastSaved = &snap
	b.storeMu.Unlock()
}

// savedByConsole reports whether the settings store holds exactly what
// "save" last wrote.
func (b *board) savedByConsole() bool {
	b.storeMu.Lock()
	st, last := b.store, b.lastSaved
	b.storeMu.Unlock()
	if st == nil || last == nil {
		return false
	}
	snap, err := st.Load()
	return err == nil && snap == *last
}

func storageError(path string, err error) error {
	id := issue.StorageOpenFailedId
	if errors.Is(err, fs.ErrPermission) {
		id = issue.PermissionDeniedId
	}
	return issue.NewErrorContext().
		WithOperation("open settings store").
		WithResource(path).
		WithIssue(id).
		WithSuggestion("Set storage.backend to \"none\" to run without persistence").
		Wrap(err).
		BuildError()
}

// restore loads the saved settings into the address arrays. Invalid saved
// settings are logged and leave the arrays untouched.
func (b *board) restore() {
	b.storeMu.Lock()
	st, path := b.store, b.storePath
	b.storeMu.Unlock()
	if st == nil {
		return
	}

	restored, err := store.Restore(st, b.net)
	switch {
	case err != nil:
		b.logger.Warn("saved network settings ignored", "path", path, "error", err,
			"issue", int(issue.StorageRestoreFailedId))
	case restored:
		b.logger.Debug("network settings restored", "path", path)
	}
}

// reset simulates a board restart: unsaved network changes are dropped and
// configuration mode returns to its configured start-up value.
func (b *board) reset() {
	b.logger.Info("reboot requested")
	b.net.Apply(console.NetSnapshot{})
	b.restore()
	b.console.SetConfigMode(b.cfg.Load().Console.ConfigMode)
}

// applyConfig takes over the reloadable parts of cfg: identity strings,
// configuration mode and log level. Buffer sizes and the transport need a
// restart.
func (b *board) applyConfig(cfg *config.Config) error {
	id, err := identityFrom(cfg.Identity)
	if err != nil {
		return err
	}
	b.console.SetIdentity(id)
	b.console.SetConfigMode(cfg.Console.ConfigMode)
	if lvl, err := log.ParseLevel(string(cfg.Log.Level)); err == nil {
		b.logger.SetLevel(lvl)
	}
	b.cfg.Store(cfg)
	return nil
}

// onFilesChanged is the watcher callback. cfgPath is the configuration file
// the board was started from ("" when running on defaults).
func (b *board) onFilesChanged(ctx context.Context, provider config.Provider, opts config.LoadOptions, cfgPath string, changed []string) error {
	for _, path := range changed {
		switch path {
		case cfgPath:
			cfg, err := provider.Load(ctx, opts)
			if err != nil {
				b.logger.Warn("configuration reload failed", "path", path, "error", formatErrorForDisplay(err, false))
				continue
			}
			if err := b.applyConfig(cfg); err != nil {
				b.logger.Warn("configuration reload failed", "path", path, "error", err)
				continue
			}
			b.logger.Info("configuration reloaded", "path", path)
		case b.tomlPath():
			if b.savedByConsole() {
				b.logger.Debug("settings file matches the last save, not reloaded", "path", path)
				continue
			}
			b.restore()
			b.logger.Info("network settings reloaded", "path", path)
		}
	}
	return nil
}

// tomlPath returns the absolute settings file path when the store is
// hand-editable TOML.
func (b *board) tomlPath() string {
	b.storeMu.Lock()
	defer b.storeMu.Unlock()
	file, ok := b.store.(*store.FileStore)
	if !ok {
		return ""
	}
	return absPath(file.Path())
}

func absPath(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}

// watchPaths lists the files whose changes the board reacts to.
func (b *board) watchPaths(cfgPath string) []string {
	var paths []string
	if cfgPath != "" {
		paths = append(paths, cfgPath)
	}
	if p := b.tomlPath(); p != "" {
		paths = append(paths, p)
	}
	return paths
}

func (b *board) Close() error {
	b.storeMu.Lock()
	defer b.storeMu.Unlock()
	if b.store == nil {
		return nil
	}
	err := b.store.Close()
	b.store = nil
	if err != nil {
		return fmt.Errorf("close settings store: %w", err)
	}
	return nil
}
