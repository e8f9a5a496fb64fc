package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/jhump/dimacros"
	"github.com/jhump/dimacros/macro"
)

// fileChangeDebounceDelay batches the events of one save or checkout.
const fileChangeDebounceDelay = 200 * time.Millisecond

// ignoredDirs contains directories that are not watched.
var ignoredDirs = map[string]bool{
	"vendor":       true,
	"testdata":     true,
	"node_modules": true,
}

func newWatchCmd(a *app) *cobra.Command {
	var opts generateOpts
	cmd := &cobra.Command{
		Use:   "watch [packages]",
		Short: "Regenerate whenever Go sources change",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			regenerate := func() {
				err := a.generate(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), args, opts)
				switch {
				case err == nil:
				case errors.Is(err, dimacros.ErrMacroExpansionFailed):
					a.log.Warn("expansion failed; waiting for changes", "error", err)
				default:
					a.log.Error("generate failed", "error", err)
				}
			}
			regenerate()

			watcher, err := setupWatcher(ctx, a)
			if err != nil {
				return err
			}
			defer watcher.Close()
			return watch(ctx, a, watcher, regenerate)
		},
	}
	cmd.Flags().BoolVar(&opts.keepStale, "keep-stale", false, "keep generated files whose source has no annotations left")
	return cmd
}

func setupWatcher(ctx context.Context, a *app) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = watcher.Close()
	}()

	dirs := 0
	err = filepath.WalkDir(a.baseDir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != a.baseDir() && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			a.log.Warn("failed to watch directory", "path", path, "error", err)
			return nil
		}
		dirs++
		return nil
	})
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to walk %s: %w", a.dir, err)
	}
	a.log.Info("watching for changes", "dir", a.dir, "directories", dirs)
	return watcher, nil
}

func skipDir(name string) bool {
	return ignoredDirs[name] || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

// isSourceChange reports whether an event should trigger regeneration. Our
// own output does not.
func isSourceChange(event fsnotify.Event) bool {
	if !strings.HasSuffix(event.Name, ".go") || macro.IsOutputFile(event.Name) {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

func watch(ctx context.Context, a *app, watcher *fsnotify.Watcher, regenerate func()) error {
	var mu sync.Mutex
	var timer *time.Timer
	// runs serializes regenerations
	runs := make(chan struct{}, 1)
	trigger := func() {
		select {
		case runs <- struct{}{}:
		default:
		}
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-runs:
				regenerate()
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if d, err := os.Stat(event.Name); err == nil && d.IsDir() && !skipDir(filepath.Base(event.Name)) {
					if err := watcher.Add(event.Name); err != nil {
						a.log.Warn("failed to watch directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if !isSourceChange(event) {
				continue
			}
			a.log.Debug("detected change, debouncing", "file", event.Name, "op", event.Op.String())
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(fileChangeDebounceDelay, trigger)
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.log.Error("watcher error", "error", err)
		}
	}
}
