package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RulesReloadDebounce is how long WatchRules waits after the last change
// event before reloading.
const RulesReloadDebounce = 200 * time.Millisecond

// WatchRules reloads the rules file at path whenever it changes and hands
// every successfully validated result to onReload. Rules that fail to load
// are logged and the previous ones stay in force. It blocks until ctx is
// cancelled.
//
// The parent directory is watched rather than the file so that editors
// which save by rename are picked up.
func WatchRules(ctx context.Context, path string, onReload func(*Rules)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch rules: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch rules: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch rules: %w", err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(RulesReloadDebounce)
			} else {
				timer.Reset(RulesReloadDebounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("rules watcher", slog.Any("error", err))

		case <-fire:
			fire = nil
			rules, err := LoadRules(abs)
			if err != nil {
				slog.Error("rules reload failed, keeping previous rules", slog.String("path", abs), slog.Any("error", err))
				continue
			}
			slog.Info("rules reloaded", slog.String("path", abs))
			onReload(rules)
		}
	}
}
