package objstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/bucketpress/internal/apperr"
)

func TestSupabase_List(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storage/v1/object/list/docs", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, "key", r.Header.Get("apikey"))

		var req listRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "guides", req.Prefix)
		assert.Equal(t, 100, req.Limit)
		assert.Equal(t, "name", req.SortBy.Column)
		assert.Equal(t, "asc", req.SortBy.Order)

		_, _ = io.WriteString(w, `[
			{"name":"a.md","id":"1","updated_at":"2024-01-02T03:04:05Z","metadata":{"size":12,"mimetype":"text/markdown"}},
			{"name":"sub","id":null,"updated_at":null,"metadata":null}
		]`)
	}))
	defer srv.Close()

	s := NewSupabase(srv.URL, "key", "docs", srv.Client())
	objs, err := s.List(context.Background(), "guides", ListOptions{Limit: 100, SortBy: SortByName})
	require.NoError(t, err)
	require.Len(t, objs, 2)

	size, isFile := objs[0].Size()
	assert.True(t, isFile)
	assert.Equal(t, uint64(12), size)
	assert.Equal(t, "1", objs[0].ID)

	_, isFile = objs[1].Size()
	assert.False(t, isFile)
}

func TestSupabase_UploadSendsUpsert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/v1/object/docs/guides/My%20Doc.md", r.URL.EscapedPath())
		assert.Equal(t, "true", r.Header.Get("x-upsert"))
		assert.Equal(t, "max-age=3600", r.Header.Get("Cache-Control"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "# hi", string(body))
		_, _ = io.WriteString(w, `{"Key":"docs/guides/My Doc.md"}`)
	}))
	defer srv.Close()

	s := NewSupabase(srv.URL, "key", "docs", srv.Client())
	require.NoError(t, s.Upload(context.Background(), "guides/My Doc.md", []byte("# hi"), UploadOptions{Overwrite: true}))
}

func TestSupabase_RemoveSendsPrefixes(t *testing.T) {
	var got map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/storage/v1/object/docs", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	s := NewSupabase(srv.URL, "key", "docs", srv.Client())
	require.NoError(t, s.Remove(context.Background(), []string{"a/b.md", "a/.empty"}))
	assert.Equal(t, []string{"a/b.md", "a/.empty"}, got["prefixes"])
}

func TestSupabase_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"statusCode":"404","error":"not_found","message":"Object not found"}`)
		default:
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"statusCode":"403","error":"Unauthorized","message":"permission denied for table objects"}`)
		}
	}))
	defer srv.Close()

	s := NewSupabase(srv.URL, "key", "docs", srv.Client())

	_, err := s.Download(context.Background(), "missing.md")
	assert.True(t, IsNotFound(err))

	err = s.Upload(context.Background(), "a.md", nil, UploadOptions{})
	require.Error(t, err)
	assert.True(t, apperr.IsPermissionDenied(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestSupabase_PublicURL(t *testing.T) {
	s := NewSupabase("https://proj.supabase.co/", "key", "docs", nil)
	u, ok := s.PublicURL("guides/b.png")
	require.True(t, ok)
	assert.Equal(t, "https://proj.supabase.co/storage/v1/object/public/docs/guides/b.png", u)
}
