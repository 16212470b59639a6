package pathkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/bucketpress/internal/apperr"
)

func TestValidateName(t *testing.T) {
	for _, bad := range []string{"../etc", "a/b", "weird*name", "", ".", "..", "tab\tname"} {
		err := ValidateName(bad)
		require.Error(t, err, "expected %q to be rejected", bad)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	}
	for _, good := range []string{"My File-1.md", "a", "draft_2.txt", ".empty", "v1.2.3"} {
		assert.NoError(t, ValidateName(good), "expected %q to be accepted", good)
	}
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, Validate(""))
	assert.NoError(t, Validate("docs/guides/My Guide.md"))
	assert.Error(t, Validate("/docs"))
	assert.Error(t, Validate("docs/"))
	assert.Error(t, Validate("docs//guides"))
	assert.Error(t, Validate("docs/../etc"))
}

func TestJoinAndParent(t *testing.T) {
	assert.Equal(t, "a", Join("", "a"))
	assert.Equal(t, "a/b", Join("a", "b"))
	assert.Equal(t, "a", Parent("a/b"))
	assert.Equal(t, "", Parent("a"))
	assert.Equal(t, "", Parent(""))
	assert.Equal(t, "b", Base("a/b"))
	assert.Equal(t, "docs", Dir("docs/readme.md"))
	assert.Equal(t, "", Dir("readme.md"))
}

func TestBreadcrumbs(t *testing.T) {
	assert.Empty(t, Breadcrumbs(""))
	assert.Equal(t, []Crumb{
		{Name: "a", Path: "a"},
		{Name: "b", Path: "a/b"},
		{Name: "c", Path: "a/b/c"},
	}, Breadcrumbs("a/b/c"))
}

func TestAncestorsAndWithin(t *testing.T) {
	assert.Nil(t, Ancestors(""))
	assert.Equal(t, []string{""}, Ancestors("a"))
	assert.Equal(t, []string{"", "a", "a/b"}, Ancestors("a/b/c"))

	assert.True(t, IsWithin("a/b/c.md", "a/b"))
	assert.True(t, IsWithin("a/b", "a/b"))
	assert.False(t, IsWithin("a/bc", "a/b"))
	assert.True(t, IsWithin("anything", ""))
}
