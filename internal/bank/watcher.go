package bank

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// Watcher re-imports an agent's memory bank whenever one of its .md
// files changes. Only directories that exist at watch-start are
// watched; directories created later need a restart to be picked up.
type Watcher struct {
	engine     *Engine
	fsWatcher  *fsnotify.Watcher
	window     time.Duration
	ignore     []string
	dirs       map[string]AgentConfig
	debouncers map[string]*debouncer
	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
}

// StartWatching begins watching every existing agent directory. It is
// a no-op if watching is already active.
func (e *Engine) StartWatching(ctx context.Context, window time.Duration, ignorePatterns []string) error {
	if e.watcher != nil {
		return nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	w := &Watcher{
		engine:     e,
		fsWatcher:  fsWatcher,
		window:     window,
		ignore:     ignorePatterns,
		dirs:       make(map[string]AgentConfig),
		debouncers: make(map[string]*debouncer),
	}

	for _, agent := range e.agents {
		dir := filepath.Join(e.workspace, agent.Dir)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := fsWatcher.Add(dir); err != nil {
			log.Warn("cannot watch agent directory", "agent", agent.Name, "dir", dir, "error", err)
			continue
		}
		w.dirs[dir] = agent
		log.Info("watching agent directory", "agent", agent.Name, "dir", dir)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	go w.run(watchCtx)

	e.watcher = w
	return nil
}

// StopWatching stops the watcher and flushes nothing: pending debounce
// timers are cancelled.
func (e *Engine) StopWatching() error {
	if e.watcher == nil {
		return nil
	}
	w := e.watcher
	e.watcher = nil
	return w.stop()
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !strings.EqualFold(filepath.Ext(event.Name), ".md") {
		return
	}
	if w.shouldIgnore(event.Name) {
		return
	}

	dir := filepath.Dir(event.Name)

	w.mu.Lock()
	agent, ok := w.dirs[dir]
	if !ok {
		w.mu.Unlock()
		return
	}

	d, ok := w.debouncers[dir]
	if !ok {
		d = newDebouncer(w.window, func() {
			n, err := w.engine.ImportFromAgent(ctx, agent)
			if err != nil {
				// Import failures never stop the watcher.
				log.Warn("re-import failed", "agent", agent.Name, "error", err)
				return
			}
			log.Info("re-imported agent memory bank", "agent", agent.Name, "records", n)
		})
		w.debouncers[dir] = d
	}
	w.mu.Unlock()

	d.Trigger()
}

func (w *Watcher) shouldIgnore(path string) bool {
	for _, pattern := range w.ignore {
		if match, _ := doublestar.Match(pattern, filepath.ToSlash(path)); match {
			return true
		}
	}
	return false
}

func (w *Watcher) stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false

	w.cancel()
	for _, d := range w.debouncers {
		d.Stop()
	}
	return w.fsWatcher.Close()
}
