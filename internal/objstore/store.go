// Package objstore defines the flat object store abstraction and its drivers.
//
// Keys are slash-joined strings; the store has no directory primitive. List
// returns the immediate children of a prefix: objects directly under it carry
// a metadata map with a "size" key, deeper keys are folded into one entry per
// first segment with nil metadata.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/starford/bucketpress/internal/apperr"
)

// DefaultCacheControl is applied to uploads that do not set one.
const DefaultCacheControl = "3600"

// ErrNotFound is returned by Download for a missing key.
var ErrNotFound = fmt.Errorf("object %w", apperr.ErrNotFound)

// ErrExists is returned by Upload when the key exists and overwrite is off.
var ErrExists = fmt.Errorf("object %w", apperr.ErrAlreadyExists)

// Object is one entry of a prefix listing.
type Object struct {
	Name      string         `json:"name"`
	ID        string         `json:"id,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata"`
}

// Size returns the object size and whether the metadata carries one.
func (o Object) Size() (uint64, bool) {
	if o.Metadata == nil {
		return 0, false
	}
	v, ok := o.Metadata["size"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return uint64(n), true
	case int64:
		return uint64(n), true
	case uint64:
		return n, true
	case float64:
		return uint64(n), true
	}
	return 0, true
}

// SortColumn names the listing sort key.
type SortColumn string

const (
	SortByName      SortColumn = "name"
	SortByUpdatedAt SortColumn = "updated_at"
)

// ListOptions bounds and orders a listing.
type ListOptions struct {
	Limit  int
	Offset int
	SortBy SortColumn
	Desc   bool
}

// UploadOptions controls an upload.
type UploadOptions struct {
	Overwrite    bool
	CacheControl string
	ContentType  string
}

// Store is the object store adapter.
type Store interface {
	// List returns the immediate children of prefix ("" is the root).
	List(ctx context.Context, prefix string, opts ListOptions) ([]Object, error)
	// Upload writes data at key.
	Upload(ctx context.Context, key string, data []byte, opts UploadOptions) error
	// Download returns the bytes stored at key.
	Download(ctx context.Context, key string) ([]byte, error)
	// Remove deletes exactly the given keys. Missing keys are ignored.
	Remove(ctx context.Context, keys []string) error
	// PublicURL returns a resolvable URL for key, if the store can build one.
	PublicURL(key string) (string, bool)
}

// IsNotFound reports whether err signals a missing object.
func IsNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}

// entry is the internal record shared by the memory and fs drivers.
type entry struct {
	key       string
	id        string
	size      uint64
	mimetype  string
	cache     string
	createdAt time.Time
	updatedAt time.Time
}

// childrenOf folds flat entries into the one-level listing of prefix and
// applies opts. Entries must be keyed by their full object key.
func childrenOf(entries []entry, prefix string, opts ListOptions) []Object {
	base := prefix
	if base != "" {
		base += "/"
	}
	files := make(map[string]Object)
	folders := make(map[string]Object)
	for _, e := range entries {
		if !strings.HasPrefix(e.key, base) {
			continue
		}
		rest := e.key[len(base):]
		if rest == "" {
			continue
		}
		if i := strings.Index(rest, "/"); i >= 0 {
			name := rest[:i]
			f, ok := folders[name]
			if !ok || e.updatedAt.After(f.UpdatedAt) {
				folders[name] = Object{Name: name, UpdatedAt: e.updatedAt}
			}
			continue
		}
		files[rest] = Object{
			Name:      rest,
			ID:        e.id,
			CreatedAt: e.createdAt,
			UpdatedAt: e.updatedAt,
			Metadata: map[string]any{
				"size":         e.size,
				"mimetype":     e.mimetype,
				"cacheControl": "max-age=" + e.cache,
			},
		}
	}

	out := make([]Object, 0, len(files)+len(folders))
	for _, o := range folders {
		out = append(out, o)
	}
	for name, o := range files {
		if _, clash := folders[name]; clash {
			continue
		}
		out = append(out, o)
	}
	sortObjects(out, opts)
	return page(out, opts)
}

func sortObjects(objs []Object, opts ListOptions) {
	less := func(i, j int) bool { return objs[i].Name < objs[j].Name }
	if opts.SortBy == SortByUpdatedAt {
		less = func(i, j int) bool {
			if objs[i].UpdatedAt.Equal(objs[j].UpdatedAt) {
				return objs[i].Name < objs[j].Name
			}
			return objs[i].UpdatedAt.Before(objs[j].UpdatedAt)
		}
	}
	if opts.Desc {
		asc := less
		less = func(i, j int) bool { return asc(j, i) }
	}
	sort.SliceStable(objs, less)
}

func page(objs []Object, opts ListOptions) []Object {
	if opts.Offset > 0 {
		if opts.Offset >= len(objs) {
			return []Object{}
		}
		objs = objs[opts.Offset:]
	}
	if opts.Limit > 0 && len(objs) > opts.Limit {
		objs = objs[:opts.Limit]
	}
	return objs
}

func cacheControl(opts UploadOptions) string {
	if opts.CacheControl == "" {
		return DefaultCacheControl
	}
	return opts.CacheControl
}
