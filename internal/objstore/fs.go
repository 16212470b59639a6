package objstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const (
	lockFileName = ".bucketpress.lock"
	tmpPrefix    = ".bucketpress-tmp-"
)

// FS implements Store on a local directory. Object keys map onto relative
// file paths; directories exist only while they contain objects.
type FS struct {
	root      string // absolute path to the bucket directory
	publicURL string
	lock      *flock.Flock
}

// NewFS creates a store rooted at the given directory.
// The directory must already exist.
func NewFS(root, publicBase string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("objstore: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("objstore: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("objstore: root is not a directory: %s", abs)
	}
	return &FS{
		root:      abs,
		publicURL: strings.TrimSuffix(publicBase, "/"),
		lock:      flock.New(filepath.Join(abs, lockFileName)),
	}, nil
}

// Root returns the absolute bucket directory.
func (f *FS) Root() string { return f.root }

// KeyOf converts an absolute file path under the root into an object key.
func (f *FS) KeyOf(abs string) (string, bool) {
	rel, err := filepath.Rel(f.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	key := filepath.ToSlash(rel)
	if internalName(filepath.Base(abs)) {
		return "", false
	}
	return key, true
}

// safePath resolves a key against the root and rejects any result that
// escapes it.
func (f *FS) safePath(key string) (string, error) {
	if key == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("objstore: absolute keys not allowed: %s", key)
	}
	abs := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("objstore: key escapes bucket root: %s", key)
	}
	return abs, nil
}

func internalName(name string) bool {
	return name == lockFileName || strings.HasPrefix(name, tmpPrefix)
}

// List implements Store.
func (f *FS) List(ctx context.Context, prefix string, opts ListOptions) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix = strings.Trim(prefix, "/")
	dir, err := f.safePath(prefix)
	if err != nil {
		return nil, err
	}
	dirents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Object{}, nil
		}
		return nil, fmt.Errorf("objstore: list %s: %w", prefix, err)
	}

	out := make([]Object, 0, len(dirents))
	for _, d := range dirents {
		if internalName(d.Name()) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			return nil, fmt.Errorf("objstore: stat %s: %w", d.Name(), err)
		}
		if d.IsDir() {
			out = append(out, Object{Name: d.Name(), UpdatedAt: info.ModTime()})
			continue
		}
		key := d.Name()
		if prefix != "" {
			key = prefix + "/" + key
		}
		out = append(out, Object{
			Name:      d.Name(),
			ID:        objectID(key),
			CreatedAt: info.ModTime(),
			UpdatedAt: info.ModTime(),
			Metadata: map[string]any{
				"size":     uint64(info.Size()),
				"mimetype": contentType(key, UploadOptions{}),
			},
		})
	}
	sortObjects(out, opts)
	return page(out, opts), nil
}

// Upload atomically writes content: tmp file → fsync → rename.
func (f *FS) Upload(ctx context.Context, key string, data []byte, opts UploadOptions) error {
	abs, err := f.safePath(key)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("objstore: empty key")
	}
	unlock, err := f.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if !opts.Overwrite {
		if _, err := os.Stat(abs); err == nil {
			return ErrExists
		}
	}

	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("objstore: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("objstore: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("objstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("objstore: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("objstore: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("objstore: rename: %w", err)
	}
	success = true
	return nil
}

// Download implements Store.
func (f *FS) Download(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := f.safePath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("objstore: read %s: %w", key, err)
	}
	return data, nil
}

// Remove deletes each key and prunes directories left empty.
func (f *FS) Remove(ctx context.Context, keys []string) error {
	paths := make([]string, 0, len(keys))
	for _, k := range keys {
		abs, err := f.safePath(k)
		if err != nil {
			return err
		}
		if abs == f.root {
			return fmt.Errorf("objstore: refusing to remove bucket root")
		}
		paths = append(paths, abs)
	}

	unlock, err := f.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	for _, abs := range paths {
		if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("objstore: delete %s: %w", abs, err)
		}
		f.prune(filepath.Dir(abs))
	}
	return nil
}

// prune removes empty directories from dir up to, excluding, the root.
func (f *FS) prune(dir string) {
	for dir != f.root && strings.HasPrefix(dir, f.root+string(os.PathSeparator)) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// PublicURL implements Store.
func (f *FS) PublicURL(key string) (string, bool) {
	return publicURL(f.publicURL, key)
}

// acquire takes the cross-process mutation lock.
func (f *FS) acquire(ctx context.Context) (func(), error) {
	ok, err := f.lock.TryLockContext(ctx, 20*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("objstore: lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("objstore: lock not acquired")
	}
	return func() { _ = f.lock.Unlock() }, nil
}

func objectID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}
