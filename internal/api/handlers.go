package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/bucketpress/internal/apperr"
	"github.com/starford/bucketpress/internal/docservice"
	"github.com/starford/bucketpress/internal/pathkey"
	"github.com/starford/bucketpress/internal/publish"
	"github.com/starford/bucketpress/internal/vdir"
)

const maxDocumentBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

// wildcardPath extracts the object key from the URL wildcard. Encoded
// slashes from OpenAPI clients (e.g. blog%2Fpost.md) are accepted.
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}

// Tree handles GET /api/tree.
//
//	@Summary		List one folder
//	@Tags			tree
//	@Produce		json
//	@Param			path	query		string	false	"Folder path (empty for the root)"
//	@Param			refresh	query		bool	false	"Bypass the listing cache"
//	@Success		200		{object}	TreeResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree [get]
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	var (
		listing vdir.Listing
		err     error
	)
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		listing, err = h.svc.Engine().Refresh(r.Context(), path)
	} else {
		listing, err = h.svc.List(r.Context(), path)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TreeResponse{
		Path:        path,
		Parent:      pathkey.Parent(path),
		Breadcrumbs: pathkey.Breadcrumbs(path),
		Files:       listing.Files,
		Folders:     listing.Folders,
	})
}

// View handles GET /api/view.
//
//	@Summary		Column view from the root down to a folder
//	@Tags			tree
//	@Produce		json
//	@Param			path	query		string	false	"Folder path"
//	@Success		200		{object}	vdir.View
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/view [get]
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.View(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// CreateFolder handles POST /api/folders.
//
//	@Summary		Create an empty folder
//	@Tags			folders
//	@Accept			json
//	@Param			body	body	CreateFolderRequest	true	"Folder to create"
//	@Success		201
//	@Failure		400		{object}	errResponse
//	@Failure		403		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders [post]
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req CreateFolderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.svc.CreateFolder(r.Context(), req.Path, req.Name); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": pathkey.Join(req.Path, req.Name)})
}

// DeleteFolder handles DELETE /api/folders.
//
//	@Summary		Delete a folder and everything beneath it
//	@Tags			folders
//	@Param			path	query	string	false	"Parent folder"
//	@Param			name	query	string	true	"Folder name"
//	@Param			confirm	query	bool	true	"Must be true"
//	@Success		204		"Folder deleted"
//	@Failure		428		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders [delete]
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		writeJSON(w, http.StatusPreconditionRequired, errorBody("confirm=true is required to delete a folder"))
		return
	}
	q := r.URL.Query()
	if _, err := h.svc.DeleteFolder(r.Context(), q.Get("path"), q.Get("name")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteFile handles DELETE /api/files.
//
//	@Summary		Delete a single file
//	@Tags			files
//	@Param			path	query	string	false	"Folder"
//	@Param			name	query	string	true	"File name"
//	@Param			confirm	query	bool	true	"Must be true"
//	@Success		204		"File deleted"
//	@Failure		428		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files [delete]
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		writeJSON(w, http.StatusPreconditionRequired, errorBody("confirm=true is required to delete a file"))
		return
	}
	q := r.URL.Query()
	if err := h.svc.DeleteFile(r.Context(), q.Get("path"), q.Get("name")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadFile handles POST /api/files (multipart/form-data, fields "path"
// and "file").
//
//	@Summary		Upload a file into a folder
//	@Tags			files
//	@Accept			mpfd
//	@Produce		json
//	@Param			path	formData	string	false	"Target folder"
//	@Param			file	formData	file	true	"File"
//	@Success		201		{object}	UploadResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files [post]
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, vdir.MaxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	folder := r.FormValue("path")
	if err := h.svc.Upload(r.Context(), folder, header.Filename, data); err != nil {
		writeError(w, r, err)
		return
	}

	key := pathkey.Join(folder, header.Filename)
	resp := UploadResponse{Key: key, Size: int64(len(data))}
	if u, ok := h.svc.Engine().Store().PublicURL(key); ok {
		resp.URL = u
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GetDocument handles GET /api/documents/*.
//
//	@Summary		Open a document
//	@Tags			documents
//	@Produce		json
//	@Param			path	path		string	true	"Document key"
//	@Success		200		{object}	DocumentDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	doc, err := h.svc.Open(r.Context(), path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("ETag", `"`+doc.Checksum+`"`)
	writeJSON(w, http.StatusOK, doc)
}

// SaveDocument handles PUT /api/documents/*.
//
//	@Summary		Save a document verbatim
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			path		path	string				true	"Document key"
//	@Param			If-Match	header	string				false	"Checksum for optimistic concurrency"
//	@Param			body		body	SaveDocumentRequest	true	"Document text"
//	@Success		200		{object}	SaveResult
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [put]
func (h *Handler) SaveDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	var req SaveDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	res, err := h.svc.Save(r.Context(), path, []byte(req.Content), ifMatch, req.Publish)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("ETag", `"`+res.Document.Checksum+`"`)
	writeJSON(w, http.StatusOK, res)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across documents
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Publish handles POST /api/publish.
//
//	@Summary		Trigger the publish webhook
//	@Tags			publish
//	@Produce		json
//	@Success		200		{object}	PublishResponse
//	@Failure		429		{object}	PublishResponse
//	@Failure		500		{object}	PublishResponse
//	@Security		BearerAuth
//	@Router			/publish [post]
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Publish(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, PublishResponse{
			Triggered: res.Triggered,
			Message:   apperr.Message(err, "failed to publish"),
			State:     res.Snapshot,
		})
		return
	}
	if !res.Triggered {
		msg := res.Snapshot.Message
		if res.Snapshot.Phase == publish.PhasePublishing || msg == "" {
			msg = "a publish is already in progress"
		}
		writeJSON(w, http.StatusTooManyRequests, PublishResponse{Message: msg, State: res.Snapshot})
		return
	}
	writeJSON(w, http.StatusOK, PublishResponse{
		Success:   true,
		Triggered: true,
		Message:   res.Snapshot.Message,
		State:     res.Snapshot,
	})
}

// PublishState handles GET /api/publish.
//
//	@Summary		Current publish state
//	@Tags			publish
//	@Produce		json
//	@Success		200		{object}	publish.Snapshot
//	@Security		BearerAuth
//	@Router			/publish [get]
func (h *Handler) PublishState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.PublishState())
}
