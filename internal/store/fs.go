package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Filesystem is a Store backed by one JSON file per document under a room
// directory. atomic_update writes to a sibling temp file and renames it
// into place; a per-document mutex serializes writers within this process.
// An fsnotify watch is kept on the directory, but Load always reads through
// to disk, so there is no read cache for it to invalidate.
type Filesystem struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	watcher *fsnotify.Watcher

	// fanout is the in-process pub/sub layer; cross-process publish is not
	// supported by this backend (a single filesystem room is expected to
	// be driven by one process at a time, per the daemon model).
	fanout *Memory
}

// NewFilesystem opens (creating if absent) a filesystem Store rooted at
// dir, typically <room>/.masc.
func NewFilesystem(dir string) (*Filesystem, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &Error{Kind: Unavailable, Doc: dir, Err: fmt.Errorf("create store dir: %w", err)}
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &Error{Kind: Unavailable, Doc: dir, Err: fmt.Errorf("create watcher: %w", err)}
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, &Error{Kind: Unavailable, Doc: dir, Err: fmt.Errorf("watch store dir: %w", err)}
	}
	fs := &Filesystem{
		root:    dir,
		locks:   make(map[string]*sync.Mutex),
		watcher: w,
		fanout:  NewMemory(),
	}
	go fs.drainEvents()
	return fs, nil
}

func (fs *Filesystem) drainEvents() {
	for {
		select {
		case _, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			// Cross-process writes invalidate nothing cached here today —
			// Load always reads through to disk — this loop exists so the
			// watcher's event channel never blocks a writer.
		case _, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (fs *Filesystem) path(doc string) string {
	return filepath.Join(fs.root, doc+".json")
}

func (fs *Filesystem) lockFor(doc string) *sync.Mutex {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	l, ok := fs.locks[doc]
	if !ok {
		l = &sync.Mutex{}
		fs.locks[doc] = l
	}
	return l
}

func (fs *Filesystem) Load(_ context.Context, doc string) (json.RawMessage, error) {
	data, err := os.ReadFile(fs.path(doc))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Kind: Unavailable, Doc: doc, Err: err}
	}
	return json.RawMessage(data), nil
}

func (fs *Filesystem) AtomicUpdate(_ context.Context, doc string, f UpdateFunc) (json.RawMessage, error) {
	l := fs.lockFor(doc)
	l.Lock()
	defer l.Unlock()

	current, err := fs.Load(context.Background(), doc)
	if err != nil {
		return nil, err
	}
	next, err := f(current)
	if err != nil {
		return nil, err
	}

	path := fs.path(doc)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, next, 0o644); err != nil {
		return nil, &Error{Kind: Unavailable, Doc: doc, Err: fmt.Errorf("write temp file: %w", err)}
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, &Error{Kind: Unavailable, Doc: doc, Err: fmt.Errorf("rename into place: %w", err)}
	}
	return next, nil
}

func (fs *Filesystem) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(fs.root)
	if err != nil {
		return nil, &Error{Kind: Unavailable, Doc: fs.root, Err: err}
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		if name == e.Name() {
			continue // not a .json document
		}
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (fs *Filesystem) Publish(ctx context.Context, channel string, payload json.RawMessage) error {
	return fs.fanout.Publish(ctx, channel, payload)
}

func (fs *Filesystem) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	return fs.fanout.Subscribe(ctx, channel)
}

func (fs *Filesystem) Close() error {
	return fs.watcher.Close()
}
