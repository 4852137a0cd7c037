// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/nova-telemetry/nova/internal/log"
)

// Holder holds configuration with atomic hot-reload, the same watcher-driven
// shape as the teacher's config.ConfigHolder: a file change debounces into a
// Load + Validate + Diff + swap, and fields outside the hot-reload allowlist
// are logged as requiring a restart rather than silently applied.
type Holder struct {
	reloadOpMu sync.Mutex
	epoch      atomic.Uint64
	snapshot   atomic.Pointer[Snapshot]
	loader     *Loader
	configPath string
	configDir  string
	configFile string
	watcher    *fsnotify.Watcher
	logger     zerolog.Logger

	listenersMu sync.RWMutex
	listeners   []chan<- AppConfig
}

// NewHolder wraps an already-loaded AppConfig for atomic access and reload.
func NewHolder(initial AppConfig, loader *Loader, configPath string) *Holder {
	h := &Holder{loader: loader, configPath: configPath, logger: xglog.WithComponent("config")}
	h.swap(&Snapshot{App: initial})
	return h
}

// Get returns the current configuration.
func (h *Holder) Get() AppConfig { return h.Snapshot().App }

// Snapshot returns a copy of the current immutable snapshot.
func (h *Holder) Snapshot() Snapshot {
	snap := h.snapshot.Load()
	if snap == nil {
		return Snapshot{}
	}
	return *snap
}

func (h *Holder) swap(next *Snapshot) {
	next.Epoch = h.epoch.Add(1)
	h.snapshot.Store(next)
}

// Reload re-runs the Loader and, if the result validates, swaps it in.
// A failed reload keeps the previous configuration in effect.
func (h *Holder) Reload(_ context.Context) error {
	h.reloadOpMu.Lock()
	defer h.reloadOpMu.Unlock()

	oldCfg := h.Get()
	newCfg, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Msg("config reload failed")
		return fmt.Errorf("load config: %w", err)
	}

	summary := Diff(oldCfg, newCfg)
	if summary.RestartRequired {
		h.logger.Warn().
			Strs("changedFields", summary.ChangedFields).
			Msg("config file changed fields outside the hot-reload allowlist; restart the node to apply them")
	}

	h.swap(&Snapshot{App: newCfg})
	h.notifyListeners(newCfg)
	h.logger.Info().Strs("changedFields", summary.ChangedFields).Msg("config reloaded")
	return nil
}

// StartWatcher watches configPath's directory for writes and debounces them
// into a Reload, the same atomic-replace-tolerant pattern as the teacher's
// config.ConfigHolder.StartWatcher (watch the dir, not the file, so editors
// that write via temp-file-then-rename are still caught).
func (h *Holder) StartWatcher(ctx context.Context) error {
	if h.configPath == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher
	h.configDir = filepath.Dir(h.configPath)
	h.configFile = filepath.Base(h.configPath)

	if err := watcher.Add(h.configDir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	go h.watchLoop(ctx)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context) {
	const debounceDuration = 500 * time.Millisecond
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			_ = h.watcher.Close()
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != h.configFile {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDuration, func() {
				if err := h.Reload(ctx); err != nil {
					h.logger.Error().Err(err).Msg("automatic config reload failed")
				}
			})
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("config watcher error")
		}
	}
}

// Stop closes the file watcher, if one is running.
func (h *Holder) Stop() {
	if h.watcher != nil {
		_ = h.watcher.Close()
	}
}

// RegisterListener registers a channel to receive the new AppConfig on
// every successful reload. The caller owns the channel's lifecycle.
func (h *Holder) RegisterListener(ch chan<- AppConfig) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *Holder) notifyListeners(cfg AppConfig) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
		}
	}
}
