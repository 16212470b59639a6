package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/bucketpress/internal/docservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Virtual directory.
	r.Get("/tree", h.Tree)
	r.Get("/view", h.View)
	r.Post("/folders", h.CreateFolder)
	r.Delete("/folders", h.DeleteFolder)
	r.Post("/files", h.UploadFile)
	r.Delete("/files", h.DeleteFile)

	// Documents.
	r.Get("/documents/*", h.GetDocument)
	r.Put("/documents/*", h.SaveDocument)

	// Search.
	r.Get("/search", h.Search)

	// Publish.
	r.Get("/publish", h.PublishState)
	r.Post("/publish", h.Publish)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
