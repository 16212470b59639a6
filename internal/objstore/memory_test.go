package objstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s Store, keys ...string) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, s.Upload(context.Background(), k, []byte("data:"+k), UploadOptions{Overwrite: true}))
	}
}

func names(objs []Object) []string {
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.Name
	}
	return out
}

func TestMemory_ListFoldsDeeperKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("")
	seed(t, m, "b.md", "a.md", "docs/x.md", "docs/sub/y.md", "assets/.empty")

	root, err := m.List(ctx, "", ListOptions{SortBy: SortByName})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "assets", "b.md", "docs"}, names(root))

	for _, o := range root {
		_, isFile := o.Size()
		switch o.Name {
		case "assets", "docs":
			assert.False(t, isFile, "%s should be a folder", o.Name)
			assert.Nil(t, o.Metadata)
		default:
			assert.True(t, isFile, "%s should be a file", o.Name)
		}
	}

	docs, err := m.List(ctx, "docs", ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"sub", "x.md"}, names(docs))
}

func TestMemory_ListPaging(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("")
	seed(t, m, "d/1", "d/2", "d/3", "d/4", "d/5")

	first, err := m.List(ctx, "d", ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, names(first))

	last, err := m.List(ctx, "d", ListOptions{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, names(last))

	none, err := m.List(ctx, "d", ListOptions{Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemory_UploadOverwrite(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("")
	require.NoError(t, m.Upload(ctx, "a.md", []byte("one"), UploadOptions{}))
	err := m.Upload(ctx, "a.md", []byte("two"), UploadOptions{})
	assert.ErrorIs(t, err, ErrExists)

	require.NoError(t, m.Upload(ctx, "a.md", []byte("two"), UploadOptions{Overwrite: true}))
	got, err := m.Download(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))
}

func TestMemory_RemoveIgnoresMissing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("")
	seed(t, m, "a", "b")
	require.NoError(t, m.Remove(ctx, []string{"a", "missing"}))
	assert.Equal(t, 1, m.Len())

	_, err := m.Download(ctx, "a")
	assert.True(t, IsNotFound(err))
}

func TestMemory_PublicURL(t *testing.T) {
	m := NewMemory("http://cdn.test/public/")
	u, ok := m.PublicURL("docs/My Image.png")
	require.True(t, ok)
	assert.Equal(t, "http://cdn.test/public/docs/My%20Image.png", u)

	_, ok = NewMemory("").PublicURL("docs/a.png")
	assert.False(t, ok)
}
