package api

import (
	"mime"
	"net/http"
	"path"

	"github.com/starford/bucketpress/internal/apperr"
	"github.com/starford/bucketpress/internal/checksum"
	"github.com/starford/bucketpress/internal/objstore"
	"github.com/starford/bucketpress/internal/vdir"
)

// StorageHandler serves bucket objects for drivers without a native public
// URL. It answers GET /storage/v1/object/public/{key...}.
type StorageHandler struct {
	engine *vdir.Engine
}

// NewStorageHandler creates a handler reading through engine.
func NewStorageHandler(engine *vdir.Engine) *StorageHandler {
	return &StorageHandler{engine: engine}
}

// ServeFile handles GET /storage/v1/object/public/*.
func (h *StorageHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	key := wildcardPath(r)
	if key == "" {
		http.NotFound(w, r)
		return
	}
	data, err := h.engine.Download(r.Context(), key)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindNotFound:
			http.NotFound(w, r)
		case apperr.KindValidation:
			http.Error(w, apperr.Message(err, "invalid path"), http.StatusBadRequest)
		default:
			writeError(w, r, err)
		}
		return
	}

	etag := checksum.ETag(data)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age="+objstore.DefaultCacheControl)
	if checksum.Matches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	ct := mime.TypeByExtension(path.Ext(key))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
