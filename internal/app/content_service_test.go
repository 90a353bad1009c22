package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabrag/internal/ai"
	"collabrag/internal/model"
	"collabrag/internal/storage"
)

type failingScopeIndex struct {
	brokenIndex
}

func (f failingScopeIndex) DeleteByScope(context.Context, string) error {
	return f.err
}

func TestDeleteScopeRemovesEverything(t *testing.T) {
	e := newEnv(t)
	ingest := e.ingestService(t, nil, false)
	ctx := context.Background()
	scope := model.CollabScope("c1")
	for _, body := range []string{"alpha release notes", "beta release notes", "gamma release notes"} {
		_, err := ingest.Ingest(ctx, textInput(scope, body+".txt", body))
		require.NoError(t, err)
	}
	_, err := ingest.Ingest(ctx, textInput(model.CollabScope("c2"), "keep.txt", "release notes to keep"))
	require.NoError(t, err)

	content := NewContentService(e.files, e.blobs, e.index, nil, nil)
	result := content.DeleteScope(ctx, scope)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, int64(3), result.Files)
	assert.Equal(t, 3, result.Objects)

	answer, err := e.queryService(nil).Ask(ctx, "c1", []Turn{{Role: ai.RoleUser, Content: "release notes"}})
	require.NoError(t, err)
	assert.Empty(t, answer.Passages)

	answer, err = e.queryService(nil).Ask(ctx, "c2", []Turn{{Role: ai.RoleUser, Content: "release notes"}})
	require.NoError(t, err)
	assert.Len(t, answer.Passages, 1)

	assert.Equal(t, int64(1), e.countRows(t, &model.SourceFile{}))
	assert.Equal(t, int64(1), e.countRows(t, &model.ContentChunk{}))
}

func TestDeleteScopeReportsWarningsAndContinues(t *testing.T) {
	e := newEnv(t)
	ingest := e.ingestService(t, nil, false)
	ctx := context.Background()
	scope := model.CollabScope("c1")
	_, err := ingest.Ingest(ctx, textInput(scope, "a.txt", "some text"))
	require.NoError(t, err)

	index := failingScopeIndex{brokenIndex{Index: e.index, err: errors.New("index offline")}}
	result := NewContentService(e.files, e.blobs, index, nil, nil).DeleteScope(ctx, scope)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "vectors")
	assert.Equal(t, int64(1), result.Files)
	assert.Zero(t, e.countRows(t, &model.SourceFile{}))
}

func TestDeleteFile(t *testing.T) {
	e := newEnv(t)
	ingest := e.ingestService(t, nil, false)
	ctx := context.Background()
	scope := model.CollabScope("c1")
	res, err := ingest.Ingest(ctx, textInput(scope, "a.txt", "some text"))
	require.NoError(t, err)
	content := NewContentService(e.files, e.blobs, e.index, nil, nil)

	err = content.DeleteFile(ctx, model.CollabScope("c2"), res.File.ID)
	require.ErrorIs(t, err, ErrFileNotFound)

	require.NoError(t, content.DeleteFile(ctx, scope, res.File.ID))
	assert.Zero(t, e.index.Count())
	_, err = e.blobs.Get(ctx, res.File.Path)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	files, err := content.ListFiles(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDeleteScopeRejectsDotAndSlashIDs(t *testing.T) {
	e := newEnv(t)
	ingest := e.ingestService(t, nil, false)
	ctx := context.Background()
	kept, err := ingest.Ingest(ctx, textInput(model.CollabScope("c1"), "a.txt", "some text"))
	require.NoError(t, err)
	neighbour, err := ingest.Ingest(ctx, textInput(model.CollabScope("a_b"), "b.txt", "other text"))
	require.NoError(t, err)

	_, err = ingest.Ingest(ctx, textInput(model.CollabScope("a/b"), "c.txt", "text"))
	require.ErrorIs(t, err, ErrInvalidInput)

	content := NewContentService(e.files, e.blobs, e.index, nil, nil)
	for _, id := range []string{".", "..", "a/b"} {
		result := content.DeleteScope(ctx, model.CollabScope(id))
		assert.NotEmpty(t, result.Warnings, "id %q", id)
		assert.Zero(t, result.Objects, "id %q", id)
	}

	for _, path := range []string{kept.File.Path, neighbour.File.Path} {
		_, err := e.blobs.Get(ctx, path)
		assert.NoError(t, err, path)
	}
	assert.Equal(t, int64(2), e.countRows(t, &model.SourceFile{}))
	assert.Equal(t, 2, e.index.Count())
}
