package api

import (
	"github.com/starford/bucketpress/internal/catalog"
	"github.com/starford/bucketpress/internal/docservice"
	"github.com/starford/bucketpress/internal/pathkey"
	"github.com/starford/bucketpress/internal/publish"
	"github.com/starford/bucketpress/internal/vdir"
)

// CreateFolderRequest is the request body for creating a folder.
type CreateFolderRequest struct {
	Path string `json:"path" example:"blog"`
	Name string `json:"name" example:"drafts" validate:"required"`
}

// SaveDocumentRequest is the request body for saving a document.
type SaveDocumentRequest struct {
	Content string `json:"content" example:"---\ntitle: Hello\n---\nWorld" validate:"required"`
	Publish bool   `json:"publish" example:"false"`
}

// TreeResponse is one folder with its breadcrumb trail.
type TreeResponse struct {
	Path        string          `json:"path" example:"blog/2024"`
	Parent      string          `json:"parent" example:"blog"`
	Breadcrumbs []pathkey.Crumb `json:"breadcrumbs" validate:"required"`
	Files       []vdir.Entry    `json:"files" validate:"required"`
	Folders     []vdir.Entry    `json:"folders" validate:"required"`
}

// DocumentDetail is the full document response type (aliased from the domain layer).
type DocumentDetail = docservice.DocumentDetail

// SaveResult is the response of a save (aliased from the domain layer).
type SaveResult = docservice.SaveResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []catalog.SearchResult `json:"results" validate:"required"`
}

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	Key  string `json:"key" example:"blog/images/photo.png" validate:"required"`
	Size int64  `json:"size" example:"12345" validate:"required"`
	URL  string `json:"url,omitempty" example:"https://cdn.example.com/blog/images/photo.png"`
}

// PublishResponse is returned by POST /api/publish.
type PublishResponse struct {
	Success   bool             `json:"success"`
	Triggered bool             `json:"triggered"`
	Message   string           `json:"message"`
	State     publish.Snapshot `json:"state"`
}
