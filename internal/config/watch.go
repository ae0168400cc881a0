package config

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchSettle is how long the file must stay quiet before it is reloaded.
// Editors and os.WriteFile emit several events per save.
const watchSettle = 150 * time.Millisecond

// Watch monitors path and calls onChange with the newly loaded Config after
// each save that changes its content. It runs until ctx is cancelled.
//
// The parent directory is watched so that atomic saves (write to a temp file,
// rename over path) are seen. A save that fails to load is logged and the
// previous config stays active.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	return watch(ctx, path, watchSettle, onChange, nil)
}

// watch is Watch with the settle delay exposed and a ready callback invoked
// once the directory watch is in place.
func watch(ctx context.Context, path string, settle time.Duration, onChange func(*Config), ready func()) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	// The bytes last handed to onChange; identical saves are ignored.
	applied, err := os.ReadFile(target)
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}
	slog.Info("config: watching for changes", "path", target)
	if ready != nil {
		ready()
	}

	timer := time.NewTimer(settle)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if pending != nil && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(settle)
			pending = timer.C

		case <-pending:
			pending = nil
			data, err := os.ReadFile(target)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config", "path", target, "err", err)
				continue
			}
			if bytes.Equal(data, applied) {
				continue
			}
			cfg, err := Parse(data)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config", "path", target, "err", err)
				continue
			}
			applied = data
			slog.Info("config: reloaded", "path", target, "nodes", len(cfg.Nodes))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
