package commands

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapquery/pkg/compiler"
	"github.com/leapstack-labs/leapquery/pkg/manifest"
)

// watchDebounce groups bursts of file events into one recompile.
const watchDebounce = 150 * time.Millisecond

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Recompile the manifest whenever a source file changes",
		Long: `Compile once, then watch the source and migration directories and
recompile after every change to a .sq or .sqm file.

Diagnostics are printed on each run; the manifest is only rewritten when the
compile is clean. Stop with Ctrl+C.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd)
		},
	}
}

func runWatch(cmd *cobra.Command) error {
	cc := NewCommandContext(cmd)
	if err := cc.Cfg.ValidateDirectories(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range cc.Cfg.Dirs() {
		if err := watchDir(watcher, dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	g, ctx := errgroup.WithContext(ctx)
	changes := make(chan struct{}, 1)

	g.Go(func() error {
		return watchLoop(ctx, cc, watcher, changes)
	})
	g.Go(func() error {
		recompile(ctx, cc)
		cc.Renderer.Muted("Watching for changes, press Ctrl+C to stop")
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-changes:
				recompile(ctx, cc)
			}
		}
	})
	return g.Wait()
}

// watchDir adds dir and its subdirectories, skipping hidden ones.
func watchDir(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && len(d.Name()) > 0 && d.Name()[0] == '.' {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// watchLoop forwards debounced source changes to changes. New directories
// are added to the watcher as they appear.
func watchLoop(ctx context.Context, cc *CommandContext, watcher *fsnotify.Watcher, changes chan<- struct{}) error {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchDir(watcher, event.Name); err != nil {
						cc.Logger.Warn("failed to watch directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			switch filepath.Ext(event.Name) {
			case compiler.QueriesExt, compiler.MigrationExt:
			default:
				continue
			}
			cc.Logger.Debug("source changed", "path", event.Name, "op", event.Op.String())
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case changes <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cc.Logger.Warn("watcher error", "error", err)
		}
	}
}

// recompile compiles the project and rewrites the manifest on success.
// Failures are reported, never returned, so watching continues.
func recompile(ctx context.Context, cc *CommandContext) {
	r := cc.Renderer
	start := time.Now()
	res, err := compileProject(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		r.Error(err.Error())
		return
	}
	if len(res.Diagnostics) > 0 {
		renderDiagnostics(r, res.Diagnostics)
		return
	}
	m := manifest.FromProgram(res.Program)
	if err := writeManifest(m, cc.Cfg.Manifest.Path, cc.Cfg.ManifestFormat()); err != nil {
		r.Error(err.Error())
		return
	}
	r.Success(fmt.Sprintf("Compiled %d statements into %s in %s",
		len(m.Statements), relPath(cc.Cfg, cc.Cfg.Manifest.Path), time.Since(start).Round(time.Millisecond)))
}
