package story

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeStoryFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestFileSystemRepository_LoadsStructures(t *testing.T) {
	dir := t.TempDir()
	writeStoryFile(t, dir, "lighthouse.yaml", `
story_id: story-1
title: The Lighthouse Keeper
endings:
  - ending-bitter
  - ending-sweet
  - ending-true
`)
	writeStoryFile(t, dir, "orchard.yml", `
story_id: story-2
endings:
  - ending-home
`)
	writeStoryFile(t, dir, "notes.txt", "not a story")

	repo, err := NewFileSystemRepository(dir)
	require.NoError(t, err)

	s, err := repo.Structure(context.Background(), "story-1")
	require.NoError(t, err)
	require.Equal(t, "The Lighthouse Keeper", s.Title)
	require.Equal(t, 3, s.TotalEndings())
	require.True(t, s.KnownEnding("ending-sweet"))
	require.False(t, s.KnownEnding("ending-secret"))

	s, err = repo.Structure(context.Background(), "story-2")
	require.NoError(t, err)
	require.Equal(t, 1, s.TotalEndings())
}

func TestFileSystemRepository_UnknownStory(t *testing.T) {
	repo, err := NewFileSystemRepository(t.TempDir())
	require.NoError(t, err)

	_, err = repo.Structure(context.Background(), "story-missing")
	require.ErrorIs(t, err, ErrUnknownStory)
}

func TestFileSystemRepository_MissingDirIsEmpty(t *testing.T) {
	repo, err := NewFileSystemRepository(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)

	_, err = repo.Structure(context.Background(), "story-1")
	require.ErrorIs(t, err, ErrUnknownStory)
}

func TestFileSystemRepository_RejectsDuplicateEndings(t *testing.T) {
	dir := t.TempDir()
	writeStoryFile(t, dir, "bad.yaml", `
story_id: story-1
endings:
  - ending-a
  - ending-a
`)

	_, err := NewFileSystemRepository(dir)
	require.Error(t, err)
	require.ErrorContains(t, err, "duplicate ending")
}

func TestFileSystemRepository_RejectsEmptyEndingID(t *testing.T) {
	dir := t.TempDir()
	writeStoryFile(t, dir, "bad.yaml", `
story_id: story-1
endings:
  - ending-a
  - ""
`)

	_, err := NewFileSystemRepository(dir)
	require.Error(t, err)
	require.ErrorContains(t, err, "must not be empty")
}

func TestFileSystemRepository_RejectsDuplicateStoryID(t *testing.T) {
	dir := t.TempDir()
	writeStoryFile(t, dir, "one.yaml", "story_id: story-1\nendings: [ending-a]\n")
	writeStoryFile(t, dir, "two.yaml", "story_id: story-1\nendings: [ending-b]\n")

	_, err := NewFileSystemRepository(dir)
	require.Error(t, err)
	require.ErrorContains(t, err, "duplicate story ID")
}

func TestFileSystemRepository_RejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeStoryFile(t, dir, "bad.yaml", "story_id: [unclosed\n")

	_, err := NewFileSystemRepository(dir)
	require.Error(t, err)
}
