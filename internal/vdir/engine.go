package vdir

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starford/bucketpress/internal/apperr"
	"github.com/starford/bucketpress/internal/objstore"
	"github.com/starford/bucketpress/internal/pathkey"
)

const (
	// PageSize bounds every adapter listing.
	PageSize = 100
	// MaxUploadSize is the largest accepted upload.
	MaxUploadSize = 50 << 20
	// enumerateParallelism bounds concurrent sibling listings per level
	// during recursive deletion.
	enumerateParallelism = 8
)

// ChangeFunc is called after a mutation has been applied and the affected
// listing refreshed. kind is one of "created", "updated", "deleted".
type ChangeFunc func(kind string, key string)

// Engine is the virtual directory engine. The object keys in the store are
// the source of truth; cached listings are a derived index rebuilt on demand.
type Engine struct {
	store  objstore.Store
	logger *slog.Logger
	notify ChangeFunc

	mu      sync.RWMutex
	cache   map[string]Listing
	version uint64

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithChangeFunc registers a mutation observer.
func WithChangeFunc(fn ChangeFunc) Option {
	return func(e *Engine) { e.notify = fn }
}

// New creates an engine over store.
func New(store objstore.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: slog.Default(),
		cache:  make(map[string]Listing),
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the underlying adapter.
func (e *Engine) Store() objstore.Store { return e.store }

// List fetches one bounded page of path, partitions it and caches it.
func (e *Engine) List(ctx context.Context, path string) (Listing, error) {
	if err := pathkey.Validate(path); err != nil {
		return Listing{}, err
	}
	objs, err := e.store.List(ctx, path, objstore.ListOptions{
		Limit:  PageSize,
		SortBy: objstore.SortByName,
	})
	if err != nil {
		return Listing{}, apperr.FromStore(apperr.OpList, err)
	}
	l := partition(path, objs)
	sortEntries(l.Files)
	sortEntries(l.Folders)

	e.mu.Lock()
	e.version++
	l.Version = e.version
	e.cache[path] = l
	e.mu.Unlock()
	return l, nil
}

// Cached returns the cached listing of path without I/O.
func (e *Engine) Cached(path string) (Listing, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	l, ok := e.cache[path]
	return l, ok
}

// Listing returns the cached listing of path, fetching it on a miss.
func (e *Engine) Listing(ctx context.Context, path string) (Listing, error) {
	if l, ok := e.Cached(path); ok {
		return l, nil
	}
	return e.List(ctx, path)
}

// Download reads the object at key.
func (e *Engine) Download(ctx context.Context, key string) ([]byte, error) {
	if err := pathkey.Validate(key); err != nil {
		return nil, err
	}
	data, err := e.store.Download(ctx, key)
	if err != nil {
		return nil, apperr.FromStore(apperr.OpDownload, err)
	}
	return data, nil
}

// CreateFolder anchors the folder path/name with a sentinel object.
func (e *Engine) CreateFolder(ctx context.Context, path, name string) error {
	return e.mutate(ctx, path, name, "created", func(key string) error {
		err := e.store.Upload(ctx, pathkey.Join(key, Sentinel), nil, objstore.UploadOptions{
			Overwrite:    true,
			CacheControl: objstore.DefaultCacheControl,
		})
		return apperr.FromStore(apperr.OpCreate, err)
	})
}

// Upload stores data as path/name, replacing any existing object.
func (e *Engine) Upload(ctx context.Context, path, name string, data []byte) error {
	if len(data) > MaxUploadSize {
		return apperr.Validation("file size must be less than %dMB", MaxUploadSize>>20)
	}
	return e.mutate(ctx, path, name, "updated", func(key string) error {
		err := e.store.Upload(ctx, key, data, objstore.UploadOptions{
			Overwrite:    true,
			CacheControl: objstore.DefaultCacheControl,
		})
		return apperr.FromStore(apperr.OpUpload, err)
	})
}

// Put writes data at a full file key. It is the save path for documents.
func (e *Engine) Put(ctx context.Context, key string, data []byte) error {
	if err := pathkey.Validate(key); err != nil {
		return err
	}
	if key == "" {
		return apperr.Validation("file path is required")
	}
	return e.Upload(ctx, pathkey.Parent(key), pathkey.Base(key), data)
}

// DeleteFile removes the single object path/name.
func (e *Engine) DeleteFile(ctx context.Context, path, name string) error {
	return e.mutate(ctx, path, name, "deleted", func(key string) error {
		return apperr.FromStore(apperr.OpDelete, e.store.Remove(ctx, []string{key}))
	})
}

// DeleteFolder removes every object under path/name. It first enumerates
// the complete set of leaf keys and only then issues one bulk removal; an
// enumeration failure at any depth aborts before anything is deleted. It
// returns the number of keys removed.
func (e *Engine) DeleteFolder(ctx context.Context, path, name string) (int, error) {
	var removed int
	err := e.mutate(ctx, path, name, "deleted", func(key string) error {
		keys, err := e.Walk(ctx, key)
		if err != nil {
			return apperr.FromStore(apperr.OpDelete, fmt.Errorf("enumerate %s: %w", key, err))
		}
		if len(keys) == 0 {
			return nil
		}
		if err := e.store.Remove(ctx, keys); err != nil {
			return apperr.FromStore(apperr.OpDelete, err)
		}
		removed = len(keys)
		e.logger.Info("folder deleted", slog.String("key", key), slog.Int("objects", removed))
		return nil
	})
	return removed, err
}

// Walk returns every leaf object key under prefix, sentinels included,
// sorted. Each folder level is listed page by page; sibling folders are
// walked concurrently.
func (e *Engine) Walk(ctx context.Context, prefix string) ([]string, error) {
	objs, err := e.listAll(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var (
		mu   sync.Mutex
		keys []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enumerateParallelism)
	for _, o := range objs {
		child := pathkey.Join(prefix, o.Name)
		if classify(o).Kind == KindFile {
			mu.Lock()
			keys = append(keys, child)
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			sub, err := e.Walk(gctx, child)
			if err != nil {
				return err
			}
			mu.Lock()
			keys = append(keys, sub...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (e *Engine) listAll(ctx context.Context, prefix string) ([]objstore.Object, error) {
	var out []objstore.Object
	for offset := 0; ; offset += PageSize {
		page, err := e.store.List(ctx, prefix, objstore.ListOptions{
			Limit:  PageSize,
			Offset: offset,
			SortBy: objstore.SortByName,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < PageSize {
			return out, nil
		}
	}
}

// Refresh drops every cached listing and re-fetches path.
func (e *Engine) Refresh(ctx context.Context, path string) (Listing, error) {
	e.mu.Lock()
	e.cache = make(map[string]Listing)
	e.mu.Unlock()
	return e.List(ctx, path)
}

// InvalidateKey drops cached listings that an external change to key could
// have made stale: every ancestor folder and anything at or beneath key.
func (e *Engine) InvalidateKey(key string) {
	e.invalidate(pathkey.Parent(key), key)
}

func (e *Engine) invalidate(path, key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.cache, path)
	for _, a := range pathkey.Ancestors(path) {
		delete(e.cache, a)
	}
	for p := range e.cache {
		if pathkey.IsWithin(p, key) {
			delete(e.cache, p)
		}
	}
}

// mutate runs fn for path/name while holding the lock of path, then
// invalidates and refreshes the affected listings before releasing it.
func (e *Engine) mutate(ctx context.Context, path, name, kind string, fn func(key string) error) error {
	if err := pathkey.Validate(path); err != nil {
		return err
	}
	if err := pathkey.ValidateName(name); err != nil {
		return err
	}
	key := pathkey.Join(path, name)

	unlock := e.lockPath(path)
	defer unlock()

	if err := fn(key); err != nil {
		e.logger.Warn("mutation failed",
			slog.String("kind", kind),
			slog.String("key", key),
			slog.String("error", err.Error()))
		return err
	}

	e.invalidate(path, key)
	if _, err := e.List(ctx, path); err != nil {
		e.logger.Warn("refresh after mutation failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	if e.notify != nil {
		e.notify(kind, key)
	}
	return nil
}

func (e *Engine) lockPath(path string) func() {
	e.locksMu.Lock()
	m, ok := e.locks[path]
	if !ok {
		m = &sync.Mutex{}
		e.locks[path] = m
	}
	e.locksMu.Unlock()
	m.Lock()
	return m.Unlock
}

func sortEntries(es []Entry) {
	sort.SliceStable(es, func(i, j int) bool { return es[i].Name < es[j].Name })
}
