// Package docservice coordinates the directory engine, the markdown
// processor, the catalog and the publish coordinator behind one API used by
// the HTTP handlers, the MCP server and the CLI.
package docservice

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/bucketpress/internal/apperr"
	"github.com/starford/bucketpress/internal/catalog"
	"github.com/starford/bucketpress/internal/checksum"
	"github.com/starford/bucketpress/internal/markdown"
	"github.com/starford/bucketpress/internal/pathkey"
	"github.com/starford/bucketpress/internal/publish"
	"github.com/starford/bucketpress/internal/vdir"
)

// Publisher is the publish coordinator as seen by the service.
type Publisher interface {
	RequestPublish(ctx context.Context) (publish.Result, error)
	Snapshot() publish.Snapshot
}

// DocumentDetail is an opened document: the raw text the editor works on
// and the processed form shown in the preview.
type DocumentDetail struct {
	Path        string                `json:"path"`
	Raw         string                `json:"raw"`
	Checksum    string                `json:"checksum"`
	Title       string                `json:"title"`
	Tags        []string              `json:"tags"`
	Frontmatter *markdown.Frontmatter `json:"frontmatter"`
	Body        string                `json:"body"`
	HTML        string                `json:"html"`
}

// SaveResult reports a save and the optional publish that followed it.
type SaveResult struct {
	Document     *DocumentDetail `json:"document"`
	Publish      *publish.Result `json:"publish,omitempty"`
	PublishError string          `json:"publish_error,omitempty"`
}

// Service is the application service.
type Service struct {
	engine    *vdir.Engine
	catalog   catalog.Catalog
	publisher Publisher
	resolver  markdown.URLResolver
	logger    *slog.Logger
}

// New creates a service. publisher may be nil, in which case publishing
// reports a configuration error.
func New(engine *vdir.Engine, cat catalog.Catalog, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		engine:    engine,
		catalog:   cat,
		publisher: publisher,
		resolver:  engine.Store(),
		logger:    logger,
	}
}

// Engine returns the directory engine.
func (s *Service) Engine() *vdir.Engine { return s.engine }

// List returns the listing of path.
func (s *Service) List(ctx context.Context, path string) (vdir.Listing, error) {
	return s.engine.List(ctx, path)
}

// View returns the column view of path.
func (s *Service) View(ctx context.Context, path string) (vdir.View, error) {
	return s.engine.View(ctx, path)
}

// Open downloads the document at key and prepares it for display.
func (s *Service) Open(ctx context.Context, key string) (*DocumentDetail, error) {
	if key == "" {
		return nil, apperr.Validation("file path is required")
	}
	data, err := s.engine.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.detail(key, data)
}

func (s *Service) detail(key string, data []byte) (*DocumentDetail, error) {
	raw := string(data)
	doc := markdown.Process(raw, key, s.resolver)
	html, err := markdown.Render(doc.Body)
	if err != nil {
		return nil, err
	}
	tags := markdown.Tags(doc.Frontmatter, doc.Body)
	if tags == nil {
		tags = []string{}
	}
	return &DocumentDetail{
		Path:        key,
		Raw:         raw,
		Checksum:    checksum.Sum(data),
		Title:       markdown.Title(doc.Frontmatter, doc.Body),
		Tags:        tags,
		Frontmatter: doc.Frontmatter,
		Body:        doc.Body,
		HTML:        html,
	}, nil
}

// Save writes content verbatim at key and indexes it. A non-empty ifMatch
// must equal the checksum of the stored document, otherwise the save is
// refused with a conflict. With doPublish set, a publish is requested after
// a successful save; its failure does not undo the save.
func (s *Service) Save(ctx context.Context, key string, content []byte, ifMatch string, doPublish bool) (*SaveResult, error) {
	if err := pathkey.Validate(key); err != nil {
		return nil, err
	}
	if ifMatch != "" {
		existing, err := s.engine.Download(ctx, key)
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		if err == nil && checksum.Sum(existing) != ifMatch {
			return nil, &apperr.Error{Kind: apperr.KindConflict, Op: apperr.OpUpload,
				Msg: "document changed since it was opened", Err: apperr.ErrConflict}
		}
	}
	if err := s.engine.Put(ctx, key, content); err != nil {
		return nil, err
	}
	s.index(key, content)

	detail, err := s.detail(key, content)
	if err != nil {
		return nil, err
	}
	res := &SaveResult{Document: detail}
	if doPublish {
		pr, err := s.Publish(ctx)
		res.Publish = &pr
		if err != nil {
			res.PublishError = apperr.Message(err, err.Error())
		}
	}
	return res, nil
}

// Upload stores a file in the folder path and indexes it when it is a
// document.
func (s *Service) Upload(ctx context.Context, path, name string, data []byte) error {
	if err := s.engine.Upload(ctx, path, name, data); err != nil {
		return err
	}
	s.index(pathkey.Join(path, name), data)
	return nil
}

// CreateFolder creates the folder path/name.
func (s *Service) CreateFolder(ctx context.Context, path, name string) error {
	return s.engine.CreateFolder(ctx, path, name)
}

// DeleteFile removes path/name and its catalog entry.
func (s *Service) DeleteFile(ctx context.Context, path, name string) error {
	if err := s.engine.DeleteFile(ctx, path, name); err != nil {
		return err
	}
	key := pathkey.Join(path, name)
	if err := s.catalog.Delete(key); err != nil {
		s.logger.Warn("catalog delete failed", slog.String("path", key), slog.String("error", err.Error()))
	}
	return nil
}

// DeleteFolder removes path/name recursively and drops the catalog entries
// beneath it. It returns the number of objects removed.
func (s *Service) DeleteFolder(ctx context.Context, path, name string) (int, error) {
	n, err := s.engine.DeleteFolder(ctx, path, name)
	if err != nil {
		return 0, err
	}
	key := pathkey.Join(path, name)
	if _, err := s.catalog.DeletePrefix(key); err != nil {
		s.logger.Warn("catalog delete prefix failed", slog.String("path", key), slog.String("error", err.Error()))
	}
	return n, nil
}

// Search queries the catalog.
func (s *Service) Search(_ context.Context, query string, limit int) ([]catalog.SearchResult, error) {
	return s.catalog.Search(query, limit)
}

// Publish asks the coordinator for a publish.
func (s *Service) Publish(ctx context.Context) (publish.Result, error) {
	if s.publisher == nil {
		return publish.Result{Snapshot: publish.Snapshot{Phase: publish.PhaseIdle}},
			apperr.Configuration(apperr.OpPublish, "publishing is not configured")
	}
	return s.publisher.RequestPublish(ctx)
}

// PublishState returns the coordinator snapshot.
func (s *Service) PublishState() publish.Snapshot {
	if s.publisher == nil {
		return publish.Snapshot{Phase: publish.PhaseIdle}
	}
	return s.publisher.Snapshot()
}

// Reindex rebuilds the catalog from the bucket.
func (s *Service) Reindex(ctx context.Context) error {
	return catalog.Sync(ctx, s.catalog, s.engine, s.logger)
}

func (s *Service) index(key string, data []byte) {
	if !catalog.IsDocument(key) {
		return
	}
	if err := catalog.Index(s.catalog, key, data); err != nil {
		s.logger.Warn("catalog index failed", slog.String("path", key), slog.String("error", err.Error()))
	}
}

// IsNotFound reports whether err means the document does not exist.
func IsNotFound(err error) bool {
	return apperr.Is(err, apperr.KindNotFound) || errors.Is(err, apperr.ErrNotFound)
}
