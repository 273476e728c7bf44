package main

import (
	"context"
	"time"

	"github.com/lexandro/assetpipe/discovery"
	"github.com/lexandro/assetpipe/ignore"
	"github.com/lexandro/assetpipe/pipeline"
	"github.com/lexandro/assetpipe/watcher"
)

// sourceFilter reports tracked images and the ignore rule files at the
// source root.
type sourceFilter struct {
	scope   *discovery.Scope
	matcher *ignore.Matcher
}

func (f sourceFilter) ShouldIgnoreDir(path string) bool {
	return f.scope.ShouldIgnoreDir(path)
}

func (f sourceFilter) ShouldIgnore(path string) bool {
	return !f.matcher.IsRuleFile(path) && f.scope.ShouldIgnore(path)
}

// startWatching runs the event trigger and, with a positive pollInterval, the
// polling trigger until ctx is done. The returned func releases the watcher.
func (a *app) startWatching(ctx context.Context, pollInterval time.Duration) func() {
	a.session.SetWatching(true)

	scope := discovery.NewScope(a.cfg.Images.SrcDir, a.cfg.Images.Extensions, discovery.WithIgnore(a.matcher))
	stop := func() {}

	fileWatcher, err := watcher.NewWatcher(scope.Root(), sourceFilter{scope: scope, matcher: a.matcher}, watcher.DefaultInterval, a.logger)
	if err != nil {
		a.logger.Warn("failed to start file watcher, continuing without live updates", "error", err)
	} else {
		go fileWatcher.Start()
		go a.handleWatcherEvents(ctx, fileWatcher)
		stop = func() { fileWatcher.Close() }
		a.logger.Info("watching source images", "root", scope.Root(), "pattern", scope.Pattern())
	}

	if pollInterval > 0 {
		go pipeline.RunPoller(ctx, a.session, pollInterval)
	}
	return stop
}

// handleWatcherEvents turns debounced batches into forced runs. Rule file
// changes reload the ignore matcher first.
func (a *app) handleWatcherEvents(ctx context.Context, fileWatcher *watcher.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-fileWatcher.Events():
			trigger := false
			for _, event := range batch {
				if a.matcher.IsRuleFile(event.Path) {
					a.matcher.Reload()
					a.logger.Info("reloaded ignore rules", "trigger", event.Path)
					trigger = true
				}
			}
			if changed := batch.Changed(); len(changed) > 0 {
				a.logger.Info("source images changed", "count", len(changed), "first", changed[0])
				trigger = true
			}
			if trigger {
				go a.session.Trigger(ctx)
			}
		}
	}
}
