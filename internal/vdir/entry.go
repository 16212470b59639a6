// Package vdir simulates folders over a flat object store: it classifies
// prefix listings into files and folders, caches them per path and performs
// folder creation and recursive deletion.
package vdir

import (
	"time"

	"github.com/starford/bucketpress/internal/objstore"
)

// Sentinel is the zero-byte object that keeps an otherwise empty folder
// listable. It is never surfaced.
const Sentinel = ".empty"

// Kind tells files from folders.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// Entry is one classified child of a listing.
type Entry struct {
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Size      *uint64   `json:"size,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id,omitempty"`
}

// Listing is the partitioned content of one folder, sorted by name.
type Listing struct {
	Path    string  `json:"path"`
	Files   []Entry `json:"files"`
	Folders []Entry `json:"folders"`
	Version uint64  `json:"version"`
}

// classify turns an adapter object into an entry. An object is a file iff
// its metadata carries a size.
func classify(o objstore.Object) Entry {
	e := Entry{Name: o.Name, Kind: KindFolder, UpdatedAt: o.UpdatedAt, ID: o.ID}
	if size, ok := o.Size(); ok {
		e.Kind = KindFile
		e.Size = &size
	}
	return e
}

// partition splits objects into files and folders, dropping the sentinel.
func partition(path string, objs []objstore.Object) Listing {
	l := Listing{Path: path, Files: []Entry{}, Folders: []Entry{}}
	for _, o := range objs {
		if o.Name == Sentinel {
			continue
		}
		e := classify(o)
		if e.Kind == KindFile {
			l.Files = append(l.Files, e)
		} else {
			l.Folders = append(l.Folders, e)
		}
	}
	return l
}
