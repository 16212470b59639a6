package vdir

import (
	"context"

	"github.com/starford/bucketpress/internal/pathkey"
)

// Session is the browsing state of one user: the folder being shown and the
// file selected in it. Transitions return a new value and never touch I/O;
// the caller re-renders from the result.
type Session struct {
	Path     string `json:"path"`
	Selected string `json:"selected,omitempty"`
}

// Enter descends into the child folder name.
func (s Session) Enter(name string) (Session, error) {
	if err := pathkey.ValidateName(name); err != nil {
		return s, err
	}
	return Session{Path: pathkey.Join(s.Path, name)}, nil
}

// Up moves to the parent folder.
func (s Session) Up() Session {
	return Session{Path: pathkey.Parent(s.Path)}
}

// JumpTo navigates to the i-th breadcrumb. Out-of-range indexes go to the
// root.
func (s Session) JumpTo(i int) Session {
	crumbs := pathkey.Breadcrumbs(s.Path)
	if i < 0 || i >= len(crumbs) {
		return Session{}
	}
	return Session{Path: crumbs[i].Path}
}

// Select marks a file of the current folder as selected.
func (s Session) Select(name string) (Session, error) {
	if err := pathkey.ValidateName(name); err != nil {
		return s, err
	}
	return Session{Path: s.Path, Selected: name}, nil
}

// AfterFolderDeleted returns the session to show once path/name has been
// deleted: if the session was inside the deleted folder it moves to path.
func (s Session) AfterFolderDeleted(path, name string) Session {
	if pathkey.IsWithin(s.Path, pathkey.Join(path, name)) {
		return Session{Path: path}
	}
	return s
}

// Crumbs returns the breadcrumb trail of the session path.
func (s Session) Crumbs() []pathkey.Crumb {
	return pathkey.Breadcrumbs(s.Path)
}

// View is what a browser renders for one path: its breadcrumbs and one
// listing per level from the root down to the path itself.
type View struct {
	Path    string          `json:"path"`
	Parent  string          `json:"parent"`
	Crumbs  []pathkey.Crumb `json:"crumbs"`
	Columns []Listing       `json:"columns"`
}

// Current returns the listing of the viewed path.
func (v View) Current() Listing {
	return v.Columns[len(v.Columns)-1]
}

// View builds the column view of path. Ancestor levels come from the cache
// when present; the viewed path itself is always fetched.
func (e *Engine) View(ctx context.Context, path string) (View, error) {
	if err := pathkey.Validate(path); err != nil {
		return View{}, err
	}
	v := View{
		Path:   path,
		Parent: pathkey.Parent(path),
		Crumbs: pathkey.Breadcrumbs(path),
	}
	for _, a := range pathkey.Ancestors(path) {
		l, err := e.Listing(ctx, a)
		if err != nil {
			return View{}, err
		}
		v.Columns = append(v.Columns, l)
	}
	l, err := e.List(ctx, path)
	if err != nil {
		return View{}, err
	}
	v.Columns = append(v.Columns, l)
	return v, nil
}
