package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"collabrag/internal/model"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, file *model.SourceFile) error {
	if err := r.db.WithContext(ctx).Create(file).Error; err != nil {
		return fmt.Errorf("create file failed: %w", err)
	}
	return nil
}

// GetByID returns nil, nil when the file does not exist.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*model.SourceFile, error) {
	var file model.SourceFile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get file failed: %w", err)
	}
	return &file, nil
}

func (r *FileRepository) GetByIDInScope(ctx context.Context, scope model.Scope, id string) (*model.SourceFile, error) {
	var file model.SourceFile
	err := r.db.WithContext(ctx).
		Where("id = ? AND related_model_name = ? AND related_model_id = ?", id, scope.Name, scope.ID).
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get file in scope failed: %w", err)
	}
	return &file, nil
}

func (r *FileRepository) ListByScope(ctx context.Context, scope model.Scope) ([]model.SourceFile, error) {
	var files []model.SourceFile
	err := r.db.WithContext(ctx).
		Where("related_model_name = ? AND related_model_id = ?", scope.Name, scope.ID).
		Order("created_at DESC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("list files by scope failed: %w", err)
	}
	return files, nil
}

// ListPendingIndex returns files that have extracted content but no
// successful indexing, created before the cutoff.
func (r *FileRepository) ListPendingIndex(ctx context.Context, createdBefore time.Time, limit int) ([]model.SourceFile, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var files []model.SourceFile
	err := r.db.WithContext(ctx).
		Where("indexed_at IS NULL AND created_at < ?", createdBefore).
		Where("id IN (?)", r.db.Model(&model.ExtractedContent{}).Select("file_id")).
		Order("created_at ASC").
		Limit(limit).
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("list pending files failed: %w", err)
	}
	return files, nil
}

func (r *FileRepository) MarkIndexed(ctx context.Context, id string, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&model.SourceFile{}).Where("id = ?", id).Update("indexed_at", at).Error; err != nil {
		return fmt.Errorf("mark file indexed failed: %w", err)
	}
	return nil
}

func (r *FileRepository) ClearIndexed(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Model(&model.SourceFile{}).Where("id = ?", id).Update("indexed_at", nil).Error; err != nil {
		return fmt.Errorf("clear file indexed failed: %w", err)
	}
	return nil
}

// Delete removes the file together with its extracted content and chunks.
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteFiles(tx, []string{id})
	})
}

// DeleteByScope removes every file of the scope with its dependents and
// returns how many files were removed.
func (r *FileRepository) DeleteByScope(ctx context.Context, scope model.Scope) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&model.SourceFile{}).
			Where("related_model_name = ? AND related_model_id = ?", scope.Name, scope.ID).
			Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("list file ids by scope failed: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		deleted = int64(len(ids))
		return deleteFiles(tx, ids)
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func deleteFiles(tx *gorm.DB, ids []string) error {
	if err := tx.Where("file_id IN ?", ids).Delete(&model.ContentChunk{}).Error; err != nil {
		return fmt.Errorf("delete content chunks failed: %w", err)
	}
	if err := tx.Where("file_id IN ?", ids).Delete(&model.ExtractedContent{}).Error; err != nil {
		return fmt.Errorf("delete file contents failed: %w", err)
	}
	if err := tx.Where("id IN ?", ids).Delete(&model.SourceFile{}).Error; err != nil {
		return fmt.Errorf("delete files failed: %w", err)
	}
	return nil
}
