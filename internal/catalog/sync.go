package catalog

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/bucketpress/internal/checksum"
	"github.com/starford/bucketpress/internal/markdown"
)

// Source enumerates and reads objects of the bucket.
type Source interface {
	Walk(ctx context.Context, prefix string) ([]string, error)
	Download(ctx context.Context, key string) ([]byte, error)
}

// IsDocument reports whether key names a markdown document.
func IsDocument(key string) bool {
	switch strings.ToLower(path.Ext(key)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// Sync brings the catalog up to date with the bucket:
//   - new/changed documents are parsed and upserted
//   - documents gone from the bucket are deleted from the catalog
func Sync(ctx context.Context, c Catalog, src Source, logger *slog.Logger) error {
	keys, err := src.Walk(ctx, "")
	if err != nil {
		return err
	}
	checksums, err := c.AllChecksums()
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if !IsDocument(key) {
			continue
		}
		seen[key] = struct{}{}

		data, err := src.Download(ctx, key)
		if err != nil {
			logger.Warn("sync: download failed", slog.String("path", key), slog.String("error", err.Error()))
			continue
		}
		if checksums[key] == checksum.Sum(data) {
			continue
		}
		if err := Index(c, key, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", key), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", key))
		}
	}

	for p := range checksums {
		if _, ok := seen[p]; ok {
			continue
		}
		if err := c.Delete(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("path", p))
		}
	}
	return nil
}

// Index parses a raw document and upserts it under key.
func Index(c Catalog, key string, data []byte) error {
	fm, body := markdown.SplitFrontmatter(string(data))
	d := Document{
		Path:     key,
		Title:    markdown.Title(fm, body),
		Tags:     markdown.Tags(fm, body),
		Checksum: checksum.Sum(data),
	}
	if d.Title == "" {
		d.Title = strings.TrimSuffix(path.Base(key), path.Ext(key))
	}
	if fm != nil {
		d.Author = fm.Author
		d.Category = fm.Category
		d.Date = fm.Date
		d.Description = fm.Description
	}
	return c.Upsert(d, body)
}
