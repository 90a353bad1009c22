package app

import (
	"context"
	"fmt"
	"log/slog"

	"collabrag/internal/logger"
	"collabrag/internal/metrics"
	"collabrag/internal/model"
	"collabrag/internal/storage"
	"collabrag/internal/vectorindex"
)

// ScopeDeletion reports what DeleteScope removed. Warnings collects the steps
// that failed; the remaining steps still ran.
type ScopeDeletion struct {
	Scope    model.Scope `json:"scope"`
	Files    int64       `json:"files"`
	Objects  int         `json:"objects"`
	Warnings []string    `json:"warnings,omitempty"`
}

type ContentService struct {
	files   FileStore
	blobs   storage.BlobStore
	index   vectorindex.Index
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewContentService(files FileStore, blobs storage.BlobStore, index vectorindex.Index, m *metrics.Metrics, log *slog.Logger) *ContentService {
	return &ContentService{
		files:   files,
		blobs:   blobs,
		index:   index,
		metrics: m,
		log:     logger.OrDiscard(log),
	}
}

func (s *ContentService) ListFiles(ctx context.Context, scope model.Scope) ([]model.SourceFile, error) {
	if !scope.Valid() {
		return nil, ErrInvalidInput
	}
	files, err := s.files.ListByScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return files, nil
}

// DeleteFile removes one file of the scope from every store: vectors first,
// then bytes, then rows.
func (s *ContentService) DeleteFile(ctx context.Context, scope model.Scope, fileID string) error {
	if !scope.Valid() || fileID == "" {
		return ErrInvalidInput
	}
	file, err := s.files.GetByIDInScope(ctx, scope, fileID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if file == nil {
		return ErrFileNotFound
	}
	if err := s.index.DeleteByFile(ctx, file.ID); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, file.Path); err != nil {
		s.log.Warn("delete stored object failed", "file_id", file.ID, "key", file.Path, "error", err)
	}
	if err := s.files.Delete(ctx, file.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	s.log.Info("file deleted", "scope", scope.ID, "file_id", file.ID)
	return nil
}

// DeleteScope removes everything owned by scope. It never fails: each step
// is attempted and failures are logged and reported as warnings.
func (s *ContentService) DeleteScope(ctx context.Context, scope model.Scope) *ScopeDeletion {
	result := &ScopeDeletion{Scope: scope}
	if !scope.Valid() {
		result.Warnings = append(result.Warnings, "invalid scope")
		return result
	}
	log := s.log.With("scope", scope.ID)
	warn := func(step string, err error) {
		log.Warn("scope deletion step failed", "step", step, "error", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", step, err))
	}

	if err := s.index.DeleteByScope(ctx, scope.ID); err != nil {
		warn("vectors", err)
	}
	prefix, err := storage.ScopePrefix(scope)
	if err == nil {
		result.Objects, err = s.blobs.DeletePrefix(ctx, prefix)
	}
	if err != nil {
		warn("objects", err)
	}
	result.Files, err = s.files.DeleteByScope(ctx, scope)
	if err != nil {
		warn("rows", err)
	}

	s.metrics.ObserveScopeDeletion(len(result.Warnings) == 0)
	log.Info("scope deleted", "files", result.Files, "objects", result.Objects, "warnings", len(result.Warnings))
	return result
}
