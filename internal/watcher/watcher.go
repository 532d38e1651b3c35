// Package watcher turns file system notifications under a pod directory into
// debounced batches of pod path changes.
package watcher

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/logging"
	"github.com/conneroisu/grow/internal/podpath"
)

// FileWatcher watches a pod directory with debouncing
type FileWatcher struct {
	root      string
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	handlers  []ChangeHandler
	logger    logging.Logger
	mutex     sync.RWMutex
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type EventType
	// PodPath is the changed file relative to the pod root, "/"-prefixed.
	PodPath string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter reports whether a pod path should be watched
type FileFilter func(podPath string) bool

// ChangeHandler handles a debounced batch of changes
type ChangeHandler func(ctx context.Context, events []ChangeEvent) error

// Debouncer groups rapid file changes together
type Debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	mutex   sync.Mutex
}

// NewDebouncer creates a debouncer emitting a batch once delay has passed
// without new events.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:  delay,
		events: make(chan ChangeEvent, 256),
		output: make(chan []ChangeEvent, 16),
	}
}

// NewFileWatcher creates a watcher for the pod directory root. The control
// directory is always ignored.
func NewFileWatcher(root string, debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeWatcher, "resolve pod root")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeWatcher, "create watcher")
	}

	fw := &FileWatcher{
		root:      abs,
		watcher:   watcher,
		debouncer: NewDebouncer(debounceDelay),
		logger:    logger.WithComponent("watcher"),
	}
	fw.AddFilter(NoControlDirFilter)
	return fw, nil
}

// AddFilter adds a file filter
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// PodPath converts a file system path under the root to a pod path.
func (fw *FileWatcher) PodPath(name string) (string, bool) {
	rel, err := filepath.Rel(fw.root, name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return podpath.Clean("/" + filepath.ToSlash(rel)), true
}

func (fw *FileWatcher) accept(podPath string) bool {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()
	for _, filter := range fw.filters {
		if !filter(podPath) {
			return false
		}
	}
	return true
}

// AddRecursive watches the root and every directory below it that passes
// the filters.
func (fw *FileWatcher) AddRecursive() error {
	return fw.addTree(fw.root)
}

func (fw *FileWatcher) addTree(dir string) error {
	return filepath.Walk(dir, func(name string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if podPath, ok := fw.PodPath(name); ok && podPath != "/" && !fw.accept(podPath) {
			return filepath.SkipDir
		}
		return fw.watcher.Add(name)
	})
}

// Start starts the file watcher
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.debouncer.start(ctx)
	go fw.processEvents(ctx)
	go fw.watchLoop(ctx)
	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	fw.debouncer.stop()
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	podPath, ok := fw.PodPath(event.Name)
	if !ok || !fw.accept(podPath) {
		return
	}

	var modTime time.Time
	var size int64
	info, err := os.Stat(event.Name)
	if err == nil {
		modTime = info.ModTime()
		size = info.Size()
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventTypeCreated
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventTypeModified
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventTypeDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventTypeRenamed
	default:
		eventType = EventTypeModified
	}

	// New directories are watched as they appear; their files are reported
	// by the events that follow.
	if err == nil && info.IsDir() {
		if eventType == EventTypeCreated {
			if err := fw.addTree(event.Name); err != nil {
				fw.logger.Warn(ctx, err, "Unable to watch new directory", "pod_path", podPath)
			}
		}
		return
	}

	select {
	case fw.debouncer.events <- ChangeEvent{Type: eventType, PodPath: podPath, ModTime: modTime, Size: size}:
	default:
		fw.logger.Warn(ctx, nil, "Dropping file event, queue full", "pod_path", podPath)
	}
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.debouncer.output:
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(ctx, events); err != nil {
					fw.logger.Error(ctx, err, "File watcher handler failed", "events", len(events))
				}
			}
		}
	}
}

func (d *Debouncer) start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.stop()
			return
		case event := <-d.events:
			d.addEvent(event)
		}
	}
}

func (d *Debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) addEvent(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = append(d.pending, event)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	events := Coalesce(d.pending)
	if len(events) == 0 {
		return
	}
	select {
	case d.output <- events:
	default:
	}
	d.pending = d.pending[:0]
}

// Coalesce keeps the last event per pod path and orders the batch by path.
func Coalesce(pending []ChangeEvent) []ChangeEvent {
	latest := make(map[string]ChangeEvent, len(pending))
	for _, event := range pending {
		latest[event.PodPath] = event
	}
	events := make([]ChangeEvent, 0, len(latest))
	for _, event := range latest {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].PodPath < events[j].PodPath })
	return events
}

// NoControlDirFilter skips the pod control directory.
func NoControlDirFilter(podPath string) bool {
	return !podpath.HasPrefix(podPath, podpath.ControlDir)
}

// IgnoreFilter skips pod paths having a segment that matches one of the
// glob patterns, such as ".git" or "*.swp".
func IgnoreFilter(patterns []string) FileFilter {
	return func(podPath string) bool {
		for _, segment := range strings.Split(strings.Trim(podPath, "/"), "/") {
			for _, pattern := range patterns {
				if ok, _ := path.Match(pattern, segment); ok {
					return false
				}
			}
		}
		return true
	}
}

// NoEditorFilter skips editor swap and backup files.
func NoEditorFilter(podPath string) bool {
	base := path.Base(podPath)
	return !strings.HasSuffix(base, "~") && !strings.HasSuffix(base, ".swp") && !strings.HasPrefix(base, ".#")
}
