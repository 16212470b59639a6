package objstore

import (
	"context"
	"mime"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store used for development and tests.
type Memory struct {
	mu        sync.RWMutex
	objects   map[string]memObject
	publicURL string
	now       func() time.Time
}

type memObject struct {
	entry
	data []byte
}

// NewMemory creates an empty store. publicBase, when non-empty, is the URL
// prefix that PublicURL joins escaped keys onto.
func NewMemory(publicBase string) *Memory {
	return &Memory{
		objects:   make(map[string]memObject),
		publicURL: strings.TrimSuffix(publicBase, "/"),
		now:       time.Now,
	}
}

// List implements Store.
func (m *Memory) List(ctx context.Context, prefix string, opts ListOptions) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	entries := make([]entry, 0, len(m.objects))
	for _, o := range m.objects {
		entries = append(entries, o.entry)
	}
	m.mu.RUnlock()
	return childrenOf(entries, strings.Trim(prefix, "/"), opts), nil
}

// Upload implements Store.
func (m *Memory) Upload(ctx context.Context, key string, data []byte, opts UploadOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	existing, ok := m.objects[key]
	if ok && !opts.Overwrite {
		return ErrExists
	}
	e := entry{
		key:       key,
		id:        uuid.NewString(),
		size:      uint64(len(data)),
		mimetype:  contentType(key, opts),
		cache:     cacheControl(opts),
		createdAt: now,
		updatedAt: now,
	}
	if ok {
		e.id = existing.id
		e.createdAt = existing.createdAt
	}
	m.objects[key] = memObject{entry: e, data: append([]byte(nil), data...)}
	return nil
}

// Download implements Store.
func (m *Memory) Download(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), o.data...), nil
}

// Remove implements Store.
func (m *Memory) Remove(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.objects, k)
	}
	return nil
}

// PublicURL implements Store.
func (m *Memory) PublicURL(key string) (string, bool) {
	return publicURL(m.publicURL, key)
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func contentType(key string, opts UploadOptions) string {
	if opts.ContentType != "" {
		return opts.ContentType
	}
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	if strings.HasSuffix(key, ".md") {
		return "text/markdown"
	}
	return "application/octet-stream"
}

func publicURL(base, key string) (string, bool) {
	if base == "" || key == "" {
		return "", false
	}
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return base + "/" + strings.Join(segs, "/"), true
}
