package app

import (
	"context"
	"time"

	"collabrag/internal/model"
)

type FileStore interface {
	Create(ctx context.Context, file *model.SourceFile) error
	GetByID(ctx context.Context, id string) (*model.SourceFile, error)
	GetByIDInScope(ctx context.Context, scope model.Scope, id string) (*model.SourceFile, error)
	ListByScope(ctx context.Context, scope model.Scope) ([]model.SourceFile, error)
	ListPendingIndex(ctx context.Context, createdBefore time.Time, limit int) ([]model.SourceFile, error)
	MarkIndexed(ctx context.Context, id string, at time.Time) error
	ClearIndexed(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	DeleteByScope(ctx context.Context, scope model.Scope) (int64, error)
}

type ContentStore interface {
	Create(ctx context.Context, content *model.ExtractedContent) error
	GetByFileID(ctx context.Context, fileID string) (*model.ExtractedContent, error)
}

type ChunkStore interface {
	ReplaceForFile(ctx context.Context, fileID string, chunks []model.ContentChunk) error
	ListByFileID(ctx context.Context, fileID string) ([]model.ContentChunk, error)
}

type TextExtractor interface {
	Supports(mediaType string) bool
	MediaTypes() []string
	Extract(ctx context.Context, mediaType string, data []byte) (string, error)
}

type ReindexPublisher interface {
	Publish(ctx context.Context, job model.ReindexJob) error
}
