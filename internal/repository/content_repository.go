package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"collabrag/internal/model"
)

type ContentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) Create(ctx context.Context, content *model.ExtractedContent) error {
	if err := r.db.WithContext(ctx).Create(content).Error; err != nil {
		return fmt.Errorf("create file content failed: %w", err)
	}
	return nil
}

func (r *ContentRepository) GetByFileID(ctx context.Context, fileID string) (*model.ExtractedContent, error) {
	var content model.ExtractedContent
	if err := r.db.WithContext(ctx).Where("file_id = ?", fileID).First(&content).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get file content failed: %w", err)
	}
	return &content, nil
}
