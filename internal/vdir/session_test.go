package vdir

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Navigation(t *testing.T) {
	s := Session{}
	s, err := s.Enter("docs")
	require.NoError(t, err)
	s, err = s.Enter("guides")
	require.NoError(t, err)
	assert.Equal(t, "docs/guides", s.Path)

	_, err = s.Enter("../etc")
	assert.Error(t, err)

	s, err = s.Select("intro.md")
	require.NoError(t, err)
	assert.Equal(t, "intro.md", s.Selected)

	up := s.Up()
	assert.Equal(t, Session{Path: "docs"}, up)
	assert.Equal(t, Session{}, up.Up())
	assert.Equal(t, Session{}, Session{}.Up())

	assert.Equal(t, Session{Path: "docs"}, s.JumpTo(0))
	assert.Equal(t, Session{Path: "docs/guides"}, s.JumpTo(1))
	assert.Equal(t, Session{}, s.JumpTo(7))
}

func TestSession_AfterFolderDeleted(t *testing.T) {
	s := Session{Path: "docs/guides/old"}
	assert.Equal(t, Session{Path: "docs"}, s.AfterFolderDeleted("docs", "guides"))
	assert.Equal(t, s, s.AfterFolderDeleted("docs", "other"))
}

func TestView(t *testing.T) {
	e, spy := newEngine(t, "a/b/c.md", "a/x.md", "top.md")
	ctx := context.Background()

	v, err := e.View(ctx, "a/b")
	require.NoError(t, err)
	assert.Equal(t, "a", v.Parent)
	require.Len(t, v.Columns, 3)
	assert.Equal(t, []string{"top.md"}, entryNames(v.Columns[0].Files))
	assert.Equal(t, []string{"x.md"}, entryNames(v.Columns[1].Files))
	assert.Equal(t, []string{"c.md"}, entryNames(v.Current().Files))

	before := spy.lists
	_, err = e.View(ctx, "a/b")
	require.NoError(t, err)
	assert.Equal(t, before+1, spy.lists, "ancestors served from cache")
}
