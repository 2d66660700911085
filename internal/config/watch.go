package config

import (
	"context"
	"os"
	"time"
)

// WatchBranches reloads branches.yaml on change and calls handler with the
// latest config. It performs an initial load before entering the watch loop.
func WatchBranches(ctx context.Context, path string, interval time.Duration, onUpdate func(*BranchesConfig)) error {
	if path == "" {
		path = "configs/branches.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	cfg, err := LoadBranches(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		// Built-in defaults in use; nothing on disk to watch.
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				cfg, err := LoadBranches(path)
				if err != nil {
					continue
				}
				lastMod = info.ModTime()
				if onUpdate != nil {
					onUpdate(cfg)
				}
			}
		}
	}()

	return nil
}
