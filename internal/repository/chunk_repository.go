package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"collabrag/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ReplaceForFile swaps the file's chunk rows for the given set.
func (r *ChunkRepository) ReplaceForFile(ctx context.Context, fileID string, chunks []model.ContentChunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ?", fileID).Delete(&model.ContentChunk{}).Error; err != nil {
			return fmt.Errorf("delete content chunks failed: %w", err)
		}
		if len(chunks) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(chunks, 100).Error; err != nil {
			return fmt.Errorf("create content chunks batch failed: %w", err)
		}
		return nil
	})
}

func (r *ChunkRepository) ListByFileID(ctx context.Context, fileID string) ([]model.ContentChunk, error) {
	var chunks []model.ContentChunk
	if err := r.db.WithContext(ctx).Where("file_id = ?", fileID).Order("sequence ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list content chunks failed: %w", err)
	}
	return chunks, nil
}
