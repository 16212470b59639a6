// Package pathkey validates slash-joined object key paths and derives
// navigation state from them. Every function is pure.
package pathkey

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/bucketpress/internal/apperr"
)

// Sep joins path segments.
const Sep = "/"

var segmentRe = regexp.MustCompile(`^[A-Za-z0-9\-_. ]+$`)

// ValidateName checks a single path segment such as a file or folder name.
func ValidateName(name string) error {
	err := validation.Validate(name,
		validation.Required.Error("name is required"),
		validation.Match(segmentRe).Error("name can only contain letters, numbers, spaces, dashes, underscores and dots"),
		validation.NotIn(".", "..").Error("name cannot be a relative path segment"),
	)
	if err != nil {
		return apperr.Validation("invalid name %q: %s", name, err.Error())
	}
	return nil
}

// Validate checks a full path key. The empty key denotes the root.
func Validate(p string) error {
	if p == "" {
		return nil
	}
	if strings.HasPrefix(p, Sep) || strings.HasSuffix(p, Sep) {
		return apperr.Validation("invalid path %q: leading or trailing slash", p)
	}
	for _, seg := range strings.Split(p, Sep) {
		if err := ValidateName(seg); err != nil {
			return apperr.Validation("invalid path %q: bad segment %q", p, seg)
		}
	}
	return nil
}

// Join appends name to the folder path p.
func Join(p, name string) string {
	if p == "" {
		return name
	}
	if name == "" {
		return p
	}
	return p + Sep + name
}

// Segments splits p into its segments. The root has none.
func Segments(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, Sep)
}

// Parent drops the last segment of p. The parent of the root is the root.
func Parent(p string) string {
	i := strings.LastIndex(p, Sep)
	if i < 0 {
		return ""
	}
	return p[:i]
}

// Base returns the last segment of p.
func Base(p string) string {
	return p[strings.LastIndex(p, Sep)+1:]
}

// Dir returns the containing folder of a file key.
func Dir(key string) string {
	return Parent(key)
}

// Ancestors returns every proper ancestor of p from the root down,
// the root included.
func Ancestors(p string) []string {
	if p == "" {
		return nil
	}
	segs := Segments(p)
	out := make([]string, 0, len(segs))
	out = append(out, "")
	for i := 1; i < len(segs); i++ {
		out = append(out, strings.Join(segs[:i], Sep))
	}
	return out
}

// IsWithin reports whether key equals p or lies beneath it.
func IsWithin(key, p string) bool {
	if p == "" {
		return true
	}
	return key == p || strings.HasPrefix(key, p+Sep)
}

// Crumb is one breadcrumb segment and the path it resolves to.
type Crumb struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Breadcrumbs derives the breadcrumb trail of p. Clicking the i-th crumb
// navigates to the join of segments 0..i.
func Breadcrumbs(p string) []Crumb {
	segs := Segments(p)
	out := make([]Crumb, len(segs))
	for i, s := range segs {
		out[i] = Crumb{Name: s, Path: strings.Join(segs[:i+1], Sep)}
	}
	return out
}
