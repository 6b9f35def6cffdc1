// Package watcher reports changes to configuration files.
//
// Files are watched through their parent directory with fsnotify, so
// editors that save by renaming a temporary file are seen as changes.
// Events for one file are held until the file has been quiet for the
// debounce interval and then delivered as one.
package watcher

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrClosed is returned when watching after Stop.
var ErrClosed = errors.New("watcher closed")

// DefaultDebounce is the quiet period before an event is delivered.
const DefaultDebounce = 100 * time.Millisecond

// Event is a change to a watched file.
type Event struct {
	// Path is the absolute path of the file.
	Path string
	Op   Operation
	Time time.Time
}

// Operation is the kind of change.
type Operation int

// Operations, from weakest to strongest when events are merged.
const (
	OpWrite Operation = iota
	OpCreate
	OpRemove
	OpRename
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// merge folds next into a pending operation. A write never hides the
// create or remove it follows; anything else replaces what was pending.
func merge(pending, next Operation) Operation {
	if next == OpWrite {
		return pending
	}
	return next
}

// Handler receives delivered events.
type Handler func(event Event)

// ErrorHandler receives errors reported by the file system.
type ErrorHandler func(err error)

type pending struct {
	op    Operation
	timer *time.Timer
}

// Watcher monitors files for changes.
type Watcher struct {
	mu sync.Mutex

	fsw   *fsnotify.Watcher
	files map[string]struct{}
	dirs  map[string]int // watched files per directory

	handlers []Handler
	onError  ErrorHandler

	debounce time.Duration
	pending  map[string]*pending

	done    chan struct{}
	wg      sync.WaitGroup
	running bool
	closed  bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Zero delivers every event at once.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithErrorHandler sets the function receiving file system errors.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// New creates a watcher. Nothing is delivered until Start.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		files:    make(map[string]struct{}),
		dirs:     make(map[string]int),
		debounce: DefaultDebounce,
		pending:  make(map[string]*pending),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch adds a file. The file need not exist yet, but its directory must.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if _, ok := w.files[abs]; ok {
		return nil
	}
	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	w.files[abs] = struct{}{}
	return nil
}

// Unwatch removes a file.
func (w *Watcher) Unwatch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[abs]; !ok {
		return nil
	}
	delete(w.files, abs)
	if p := w.pending[abs]; p != nil {
		p.timer.Stop()
		delete(w.pending, abs)
	}

	dir := filepath.Dir(abs)
	if w.dirs[dir]--; w.dirs[dir] > 0 {
		return nil
	}
	delete(w.dirs, dir)
	if w.closed {
		return nil
	}
	return w.fsw.Remove(dir)
}

// WatchedFiles returns the watched paths.
func (w *Watcher) WatchedFiles() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	files := make([]string, 0, len(w.files))
	for path := range w.files {
		files = append(files, path)
	}
	return files
}

// OnChange registers a handler.
func (w *Watcher) OnChange(h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// Start begins delivering events. Starting twice is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.closed {
		return
	}
	w.running = true
	w.wg.Add(1)
	go w.loop()
}

// Stop stops watching and releases the file system watcher. Pending
// events are dropped. A stopped watcher cannot be restarted.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.running = false
	close(w.done)
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
	return w.fsw.Close()
}

// IsRunning reports whether events are being delivered.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case e, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.receive(e)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// opOf maps an fsnotify operation. Chmod alone is not a change.
func opOf(op fsnotify.Op) (Operation, bool) {
	switch {
	case op.Has(fsnotify.Remove):
		return OpRemove, true
	case op.Has(fsnotify.Rename):
		return OpRename, true
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpWrite, true
	}
	return 0, false
}

func (w *Watcher) receive(e fsnotify.Event) {
	path, err := filepath.Abs(e.Name)
	if err != nil {
		return
	}
	op, ok := opOf(e.Op)
	if !ok {
		return
	}

	w.mu.Lock()
	if _, watched := w.files[path]; !watched || w.closed {
		w.mu.Unlock()
		return
	}
	if w.debounce == 0 {
		w.mu.Unlock()
		w.deliver(Event{Path: path, Op: op, Time: time.Now()})
		return
	}
	w.hold(path, op)
	w.mu.Unlock()
}

// hold records op for path and restarts its quiet period. w.mu is held.
func (w *Watcher) hold(path string, op Operation) {
	if p, ok := w.pending[path]; ok {
		p.op = merge(p.op, op)
		p.timer.Reset(w.debounce)
		return
	}
	w.pending[path] = &pending{
		op:    op,
		timer: time.AfterFunc(w.debounce, func() { w.flush(path) }),
	}
}

func (w *Watcher) flush(path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if !ok || w.closed {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	w.deliver(Event{Path: path, Op: p.op, Time: time.Now()})
}

func (w *Watcher) deliver(e Event) {
	w.mu.Lock()
	handlers := append([]Handler(nil), w.handlers...)
	w.mu.Unlock()

	for _, h := range handlers {
		call(h, e)
	}
}

// call runs h, keeping the watcher alive if it panics.
func call(h Handler, e Event) {
	defer func() { _ = recover() }()
	h(e)
}
