package markdown

import (
	"path"
	"regexp"
	"strings"
)

var (
	relImageRe = regexp.MustCompile(`!\[([^\]]*)\]\(\./([^)]+)\)`)
	titleRe    = regexp.MustCompile(`^(.*?)(\s+"[^"]*")$`)
)

// URLResolver maps an object key to a publicly resolvable URL.
type URLResolver interface {
	PublicURL(key string) (string, bool)
}

// ResolverFunc adapts a function to URLResolver.
type ResolverFunc func(key string) (string, bool)

// PublicURL implements URLResolver.
func (f ResolverFunc) PublicURL(key string) (string, bool) { return f(key) }

// ResolveRelativeImages rewrites every image reference whose target starts
// with "./" into the public URL of the key it denotes relative to the folder
// of docPath. A quoted title after the target is kept. References that would
// leave the bucket root, or for which r has no URL, are left as written.
func ResolveRelativeImages(body, docPath string, r URLResolver) string {
	if r == nil {
		return body
	}
	dir := path.Dir(docPath)
	if dir == "." || dir == "/" {
		dir = ""
	}
	return relImageRe.ReplaceAllStringFunc(body, func(match string) string {
		m := relImageRe.FindStringSubmatch(match)
		alt, target, title := m[1], m[2], ""
		if t := titleRe.FindStringSubmatch(target); t != nil {
			target, title = t[1], t[2]
		}
		key, ok := resolveKey(dir, target)
		if !ok {
			return match
		}
		u, ok := r.PublicURL(key)
		if !ok || u == "" {
			return match
		}
		return "![" + alt + "](" + u + title + ")"
	})
}

func resolveKey(dir, rel string) (string, bool) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", false
	}
	key := path.Clean(path.Join(dir, rel))
	if key == "." || key == ".." || strings.HasPrefix(key, "../") || strings.HasPrefix(key, "/") {
		return "", false
	}
	return key, true
}
