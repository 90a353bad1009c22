package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"collabrag/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func seedFile(t *testing.T, db *gorm.DB, scope model.Scope, withContent bool) model.SourceFile {
	t.Helper()
	ctx := context.Background()
	file := model.SourceFile{
		ID:               uuid.NewString(),
		UserID:           7,
		RelatedModelName: scope.Name,
		RelatedModelID:   scope.ID,
		MimeType:         "text/plain",
		OriginalName:     "notes.txt",
		Path:             scope.Name + "/" + scope.ID + "/x.txt",
		Size:             12,
	}
	require.NoError(t, NewFileRepository(db).Create(ctx, &file))
	if withContent {
		require.NoError(t, NewContentRepository(db).Create(ctx, &model.ExtractedContent{FileID: file.ID, Content: "hello world"}))
		require.NoError(t, NewChunkRepository(db).ReplaceForFile(ctx, file.ID, []model.ContentChunk{
			{ID: uuid.NewString(), FileID: file.ID, Sequence: 0, Content: "hello world"},
		}))
	}
	return file
}

func TestFileRepositoryScopeQueries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewFileRepository(db)
	a := model.CollabScope("a")
	b := model.CollabScope("b")

	fa := seedFile(t, db, a, true)
	seedFile(t, db, b, true)

	files, err := repo.ListByScope(ctx, a)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, fa.ID, files[0].ID)

	got, err := repo.GetByIDInScope(ctx, b, fa.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileRepositoryDeleteCascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewFileRepository(db)
	file := seedFile(t, db, model.CollabScope("a"), true)

	require.NoError(t, repo.Delete(ctx, file.ID))

	content, err := NewContentRepository(db).GetByFileID(ctx, file.ID)
	require.NoError(t, err)
	assert.Nil(t, content)
	chunks, err := NewChunkRepository(db).ListByFileID(ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestFileRepositoryDeleteByScope(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewFileRepository(db)
	scope := model.CollabScope("team")
	for i := 0; i < 3; i++ {
		seedFile(t, db, scope, true)
	}
	other := seedFile(t, db, model.CollabScope("other"), true)

	deleted, err := repo.DeleteByScope(ctx, scope)
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	remaining, err := repo.ListByScope(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	kept, err := repo.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)

	deleted, err = repo.DeleteByScope(ctx, scope)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestFileRepositoryPendingIndex(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewFileRepository(db)
	scope := model.CollabScope("a")

	pending := seedFile(t, db, scope, true)
	seedFile(t, db, scope, false)
	indexed := seedFile(t, db, scope, true)
	require.NoError(t, repo.MarkIndexed(ctx, indexed.ID, time.Now()))

	files, err := repo.ListPendingIndex(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, pending.ID, files[0].ID)

	require.NoError(t, repo.ClearIndexed(ctx, indexed.ID))
	files, err = repo.ListPendingIndex(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestChunkRepositoryReplace(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewChunkRepository(db)
	file := seedFile(t, db, model.CollabScope("a"), true)

	replacement := []model.ContentChunk{
		{ID: uuid.NewString(), FileID: file.ID, Sequence: 1, Content: "second"},
		{ID: uuid.NewString(), FileID: file.ID, Sequence: 0, Content: "first"},
	}
	require.NoError(t, repo.ReplaceForFile(ctx, file.ID, replacement))

	chunks, err := repo.ListByFileID(ctx, file.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "first", chunks[0].Content)
	assert.Equal(t, "second", chunks[1].Content)
}
