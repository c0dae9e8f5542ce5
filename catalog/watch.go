package catalog

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/batchatco/go-netcdf-discovery/config"
	"github.com/batchatco/go-netcdf-discovery/internal"
	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a file must stay quiet before it is scanned.
const DefaultSettle = 500 * time.Millisecond

// Watcher scans files as they appear in a directory. Each new or rewritten
// file matching a configured file type is scanned once it has stopped
// changing for Settle, against the catalog's current entries, and the result
// is merged back into the catalog.
type Watcher struct {
	Settle time.Duration

	cfg     *config.Config
	dir     string
	cat     *Catalog
	opts    ScanOptions
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
	stopCh  chan struct{}
	done    chan struct{}
}

// NewWatcher prepares a watcher on dir. opts.OnFile receives every report;
// opts.Workers is ignored since files are scanned one at a time.
func NewWatcher(cfg *config.Config, dir string, cat *Catalog, opts ScanOptions) *Watcher {
	return &Watcher{
		Settle:  DefaultSettle,
		cfg:     cfg,
		dir:     dir,
		cat:     cat,
		opts:    opts,
		pending: map[string]*time.Timer{},
		ready:   make(chan string),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins watching.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	w.watcher = watcher
	go w.watchLoop()
	logger.Event(internal.LevelInfo).Str("dir", w.dir).Msg("watching for new files")
	return nil
}

// Stop stops watching and waits for a scan in progress. It must be called
// at most once, after a successful Start.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
	<-w.done
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) watchLoop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if _, _, match := w.cfg.MatchFileType(filepath.Base(event.Name)); !match {
				continue
			}
			logger.Event(internal.LevelInfo).Str("event", event.Op.String()).
				Str("file", event.Name).Msg("file changed")
			w.schedule(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Event(internal.LevelError).Err(err).Msg("file watcher error")

		case path := <-w.ready:
			w.mu.Lock()
			delete(w.pending, path)
			w.mu.Unlock()
			w.scan(path)

		case <-w.stopCh:
			return
		}
	}
}

// schedule (re)starts the settle timer of path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, has := w.pending[path]; has {
		t.Reset(w.Settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.Settle, func() {
		select {
		case w.ready <- path:
		case <-w.stopCh:
		}
	})
}

func (w *Watcher) scan(path string) {
	r := ScanFile(w.cfg, path, w.cat.Known(), w.opts.Recorder)
	logReport(r)
	if r.Err == nil {
		w.cat.Merge(r.Results)
	}
	if w.opts.OnFile != nil {
		w.opts.OnFile(r)
	}
}
