package objstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxErrorBody = 4 << 10

// Supabase implements Store against the Supabase Storage REST API.
type Supabase struct {
	baseURL string // e.g. https://xyz.supabase.co/storage/v1
	bucket  string
	key     string
	client  *http.Client
}

// NewSupabase creates a client for bucket. projectURL is the project root
// URL; apiKey is sent both as bearer token and apikey header.
func NewSupabase(projectURL, apiKey, bucket string, client *http.Client) *Supabase {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Supabase{
		baseURL: strings.TrimSuffix(projectURL, "/") + "/storage/v1",
		bucket:  bucket,
		key:     apiKey,
		client:  client,
	}
}

// APIError is a non-2xx storage API response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase storage: status %d: %s", e.Status, e.Message)
}

type listRequest struct {
	Prefix string     `json:"prefix"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
	SortBy listSortBy `json:"sortBy"`
}

type listSortBy struct {
	Column string `json:"column"`
	Order  string `json:"order"`
}

type apiObject struct {
	Name      string         `json:"name"`
	ID        *string        `json:"id"`
	UpdatedAt *time.Time     `json:"updated_at"`
	CreatedAt *time.Time     `json:"created_at"`
	Metadata  map[string]any `json:"metadata"`
}

// List implements Store.
func (s *Supabase) List(ctx context.Context, prefix string, opts ListOptions) ([]Object, error) {
	column := string(opts.SortBy)
	if column == "" {
		column = string(SortByName)
	}
	order := "asc"
	if opts.Desc {
		order = "desc"
	}
	body, err := json.Marshal(listRequest{
		Prefix: strings.Trim(prefix, "/"),
		Limit:  opts.Limit,
		Offset: opts.Offset,
		SortBy: listSortBy{Column: column, Order: order},
	})
	if err != nil {
		return nil, fmt.Errorf("objstore: encode list request: %w", err)
	}

	var raw []apiObject
	if err := s.do(ctx, http.MethodPost, "/object/list/"+s.bucket, bytes.NewReader(body), jsonHeaders, &raw); err != nil {
		return nil, err
	}
	out := make([]Object, 0, len(raw))
	for _, r := range raw {
		o := Object{Name: r.Name, Metadata: r.Metadata}
		if r.ID != nil {
			o.ID = *r.ID
		}
		if r.UpdatedAt != nil {
			o.UpdatedAt = *r.UpdatedAt
		}
		if r.CreatedAt != nil {
			o.CreatedAt = *r.CreatedAt
		}
		out = append(out, o)
	}
	return out, nil
}

// Upload implements Store.
func (s *Supabase) Upload(ctx context.Context, key string, data []byte, opts UploadOptions) error {
	headers := map[string]string{
		"Content-Type":  contentType(key, opts),
		"Cache-Control": "max-age=" + cacheControl(opts),
		"x-upsert":      fmt.Sprintf("%t", opts.Overwrite),
	}
	return s.do(ctx, http.MethodPost, s.objectPath(key), bytes.NewReader(data), headers, nil)
}

// Download implements Store.
func (s *Supabase) Download(ctx context.Context, key string) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.do(ctx, http.MethodGet, s.objectPath(key), nil, nil, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Remove implements Store.
func (s *Supabase) Remove(ctx context.Context, keys []string) error {
	body, err := json.Marshal(map[string][]string{"prefixes": keys})
	if err != nil {
		return fmt.Errorf("objstore: encode remove request: %w", err)
	}
	return s.do(ctx, http.MethodDelete, "/object/"+s.bucket, bytes.NewReader(body), jsonHeaders, nil)
}

// PublicURL implements Store.
func (s *Supabase) PublicURL(key string) (string, bool) {
	return publicURL(s.baseURL+"/object/public/"+s.bucket, key)
}

func (s *Supabase) objectPath(key string) string {
	u, _ := publicURL("/object/"+s.bucket, key)
	return u
}

var jsonHeaders = map[string]string{"Content-Type": "application/json"}

// do executes a request. out may be a *bytes.Buffer for raw bodies or any
// JSON target; nil discards the body.
func (s *Supabase) do(ctx context.Context, method, path string, body io.Reader, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("objstore: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("apikey", s.key)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("objstore: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	switch dst := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case *bytes.Buffer:
		if _, err := io.Copy(dst, resp.Body); err != nil {
			return fmt.Errorf("objstore: read body: %w", err)
		}
		return nil
	default:
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("objstore: decode response: %w", err)
		}
		return nil
	}
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		StatusCode string `json:"statusCode"`
		Error      string `json:"error"`
		Message    string `json:"message"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil && payload.Message != "" {
		msg = payload.Message
	}
	apiErr := &APIError{Status: resp.StatusCode, Message: msg}

	// The API reports missing objects and duplicates in the body as well as
	// through the status.
	switch {
	case resp.StatusCode == http.StatusNotFound || payload.StatusCode == "404":
		return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
	case resp.StatusCode == http.StatusConflict || payload.StatusCode == "409":
		return fmt.Errorf("%w: %w", ErrExists, apiErr)
	}
	return apiErr
}
