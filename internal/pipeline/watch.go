package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/agentic-research/mapmaker/api"
)

// watchDebounce collapses the burst of events an editor save produces.
var watchDebounce = 250 * time.Millisecond

// Watch builds req once, then rebuilds it with Force set every time the spec
// file changes, until ctx is done. Every outcome, including failures, goes
// to onBuild; a failed rebuild does not stop the watch.
func (b *Builder) Watch(ctx context.Context, req Request, onBuild func(*Result, error)) error {
	if req.SpecFile == "" {
		return api.Errorf(api.KindConfig, "watch needs a spec file")
	}
	path := req.SpecFile
	if !filepath.IsAbs(path) && b.workdir != "" {
		path = filepath.Join(b.workdir, path)
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", req.SpecFile, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	// Watch the directory: editors often replace the file instead of
	// writing it in place.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	b.log.Info("Watching spec", zap.String("path", path))

	req.Force = true
	onBuild(b.Build(ctx, req))

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			b.log.Debug("Spec changed", zap.String("op", ev.Op.String()))
			fire = time.After(watchDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			b.log.Warn("Watcher error", zap.Error(err))
		case <-fire:
			fire = nil
			onBuild(b.Build(ctx, req))
		}
	}
}
