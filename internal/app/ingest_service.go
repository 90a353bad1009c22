package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"collabrag/internal/ai"
	"collabrag/internal/chunker"
	"collabrag/internal/embedding"
	"collabrag/internal/extract"
	"collabrag/internal/logger"
	"collabrag/internal/metrics"
	"collabrag/internal/model"
	"collabrag/internal/pkg/retry"
	"collabrag/internal/storage"
	"collabrag/internal/vectorindex"
)

type IngestStatus string

const (
	StatusIndexed      IngestStatus = "indexed"
	StatusNoContent    IngestStatus = "no_content"
	StatusPendingIndex IngestStatus = "pending_index"
)

type IngestInput struct {
	UserID    uint
	Scope     model.Scope
	FileName  string
	MediaType string
	Data      []byte
}

type IngestResult struct {
	File       model.SourceFile `json:"file"`
	Status     IngestStatus     `json:"status"`
	ChunkCount int              `json:"chunk_count"`
	IndexError string           `json:"index_error,omitempty"`
}

// IngestDeps are the collaborators of IngestService. Publisher and Metrics
// may be nil.
type IngestDeps struct {
	Files     FileStore
	Contents  ContentStore
	Chunks    ChunkStore
	Blobs     storage.BlobStore
	Extractor TextExtractor
	Splitter  *chunker.Splitter
	Embedder  embedding.Gateway
	Index     vectorindex.Index
	Publisher ReindexPublisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

type IngestOptions struct {
	// StrictIndexing makes indexing failures fail the ingest call.
	StrictIndexing bool
	MaxUploadBytes int64
	Retry          retry.Policy
}

type IngestService struct {
	files     FileStore
	contents  ContentStore
	chunks    ChunkStore
	blobs     storage.BlobStore
	extractor TextExtractor
	splitter  *chunker.Splitter
	embedder  embedding.Gateway
	index     vectorindex.Index
	publisher ReindexPublisher
	metrics   *metrics.Metrics
	log       *slog.Logger
	opts      IngestOptions
	now       func() time.Time
}

func NewIngestService(deps IngestDeps, opts IngestOptions) *IngestService {
	return &IngestService{
		files:     deps.Files,
		contents:  deps.Contents,
		chunks:    deps.Chunks,
		blobs:     deps.Blobs,
		extractor: deps.Extractor,
		splitter:  deps.Splitter,
		embedder:  deps.Embedder,
		index:     deps.Index,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		log:       logger.OrDiscard(deps.Logger),
		opts:      opts,
		now:       time.Now,
	}
}

// Ingest stores, extracts, chunks and indexes one uploaded file. Failures
// before the content row is committed leave nothing behind. Indexing failures
// leave the file in place as pending and schedule a reindex.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	if input.UserID == 0 || !input.Scope.Valid() || len(input.Data) == 0 {
		return nil, ErrInvalidInput
	}
	if s.opts.MaxUploadBytes > 0 && int64(len(input.Data)) > s.opts.MaxUploadBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, s.opts.MaxUploadBytes)
	}
	if !s.extractor.Supports(input.MediaType) {
		return nil, fmt.Errorf("%w: %s", extract.ErrUnsupportedContentType, input.MediaType)
	}

	name := strings.TrimSpace(input.FileName)
	if name == "" {
		name = "untitled"
	}
	log := s.log.With("scope", input.Scope.ID, "file_name", name)

	// 1. raw bytes, then the file row
	start := time.Now()
	key, err := storage.ObjectKey(input.Scope, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	err = retry.DoErr(ctx, s.opts.Retry, ai.IsTransient, "store object", func(ctx context.Context) error {
		return s.blobs.Put(ctx, key, input.Data, input.MediaType)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	file := model.SourceFile{
		ID:               uuid.NewString(),
		UserID:           input.UserID,
		RelatedModelName: input.Scope.Name,
		RelatedModelID:   input.Scope.ID,
		MimeType:         input.MediaType,
		OriginalName:     name,
		Path:             key,
		Size:             int64(len(input.Data)),
	}
	if err := s.files.Create(ctx, &file); err != nil {
		s.deleteBlob(log, key)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	s.metrics.ObserveStage("store", start)
	log = log.With("file_id", file.ID)

	// 2. extraction
	start = time.Now()
	text, err := s.extractor.Extract(ctx, input.MediaType, input.Data)
	if err != nil {
		s.unwind(log, &file)
		if errors.Is(err, extract.ErrUnsupportedContentType) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	s.metrics.ObserveStage("extract", start)

	if strings.TrimSpace(text) == "" {
		log.Info("no content extracted")
		s.metrics.ObserveIngest(string(StatusNoContent))
		return &IngestResult{File: file, Status: StatusNoContent}, nil
	}

	// 3. canonical content
	if err := s.contents.Create(ctx, &model.ExtractedContent{FileID: file.ID, Content: text}); err != nil {
		s.unwind(log, &file)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	// 4-5. chunk and index; the upload stands even if this fails
	count, err := s.indexContent(ctx, &file, text)
	if err != nil {
		log.Error("indexing failed, file left pending", "error", err)
		s.scheduleReindex(log, file.ID, err)
		s.metrics.ObserveIngest(string(StatusPendingIndex))
		result := &IngestResult{File: file, Status: StatusPendingIndex, IndexError: err.Error()}
		if s.opts.StrictIndexing {
			return result, err
		}
		return result, nil
	}

	log.Info("file ingested", "chunks", count)
	s.metrics.ObserveIngest(string(StatusIndexed))
	return &IngestResult{File: file, Status: StatusIndexed, ChunkCount: count}, nil
}

// SupportedMediaTypes lists the media types Ingest accepts.
func (s *IngestService) SupportedMediaTypes() []string {
	return s.extractor.MediaTypes()
}

// Reindex rebuilds the chunks and vectors of a file from its stored content.
// Records are replaced in place and leftovers beyond the new chunk count are
// removed. A file that no longer exists, or has no content, is a no-op.
func (s *IngestService) Reindex(ctx context.Context, fileID string) (int, error) {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if file == nil {
		return 0, nil
	}
	content, err := s.contents.GetByFileID(ctx, fileID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if content == nil {
		return 0, nil
	}

	if err := s.files.ClearIndexed(ctx, fileID); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return s.indexContent(ctx, file, content.Content)
}

// ReindexInScope is Reindex limited to files owned by scope.
func (s *IngestService) ReindexInScope(ctx context.Context, scope model.Scope, fileID string) (int, error) {
	file, err := s.files.GetByIDInScope(ctx, scope, fileID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if file == nil {
		return 0, ErrFileNotFound
	}
	return s.Reindex(ctx, fileID)
}

// ReindexPending retries files that have content but were never indexed and
// are older than olderThan. It returns how many were indexed.
func (s *IngestService) ReindexPending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	files, err := s.files.ListPendingIndex(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	done := 0
	var errs []error
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.Reindex(ctx, f.ID); err != nil {
			s.log.Warn("pending reindex failed", "file_id", f.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

func (s *IngestService) indexContent(ctx context.Context, file *model.SourceFile, text string) (int, error) {
	start := time.Now()
	pieces := s.splitter.Split(text)
	s.metrics.ObserveStage("chunk", start)
	if len(pieces) == 0 {
		return 0, nil
	}

	previous, err := s.chunks.ListByFileID(ctx, file.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	chunks := make([]model.ContentChunk, len(pieces))
	texts := make([]string, len(pieces))
	current := make(map[string]struct{}, len(pieces))
	for i, p := range pieces {
		id := chunkID(file.ID, p.Index)
		current[id] = struct{}{}
		chunks[i] = model.ContentChunk{
			ID:       id,
			FileID:   file.ID,
			Sequence: p.Index,
			Content:  p.Content,
		}
		texts[i] = p.Content
	}
	if err := s.chunks.ReplaceForFile(ctx, file.ID, chunks); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	start = time.Now()
	vectors, err := s.embedder.Embed(ctx, texts, embedding.ModeIndex)
	if err != nil {
		return 0, err
	}
	s.metrics.ObserveStage("embed", start)

	records := make([]vectorindex.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vectorindex.Record{
			ID:       c.ID,
			Vector:   vectors[i],
			FileID:   file.ID,
			ScopeID:  file.RelatedModelID,
			Sequence: c.Sequence,
			Content:  c.Content,
		}
	}
	start = time.Now()
	err = retry.DoErr(ctx, s.opts.Retry, vectorindex.IsTransient, "upsert vectors", func(ctx context.Context) error {
		return s.index.Upsert(ctx, records)
	})
	if err != nil {
		return 0, err
	}
	s.metrics.ObserveStage("upsert", start)

	var stale []string
	for _, c := range previous {
		if _, ok := current[c.ID]; !ok {
			stale = append(stale, c.ID)
		}
	}
	err = retry.DoErr(ctx, s.opts.Retry, vectorindex.IsTransient, "delete stale vectors", func(ctx context.Context) error {
		return s.index.DeleteByIDs(ctx, stale)
	})
	if err != nil {
		return 0, err
	}

	at := s.now()
	if err := s.files.MarkIndexed(ctx, file.ID, at); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	file.IndexedAt = &at
	return len(chunks), nil
}

// chunkID is stable per file and position.
func chunkID(fileID string, sequence int) string {
	ns, err := uuid.Parse(fileID)
	if err != nil {
		ns = uuid.NewSHA1(uuid.NameSpaceURL, []byte(fileID))
	}
	return uuid.NewSHA1(ns, []byte(strconv.Itoa(sequence))).String()
}

func (s *IngestService) scheduleReindex(log *slog.Logger, fileID string, cause error) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job := model.ReindexJob{FileID: fileID, Reason: cause.Error(), EnqueuedAt: s.now()}
	if err := s.publisher.Publish(ctx, job); err != nil {
		log.Warn("enqueue reindex job failed", "error", err)
	}
}

// unwind removes a file whose ingestion failed before its content was
// committed. Cleanup runs detached from the request context.
func (s *IngestService) unwind(log *slog.Logger, file *model.SourceFile) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.files.Delete(ctx, file.ID); err != nil {
		log.Warn("delete file row during unwind failed", "error", err)
	}
	s.deleteBlob(log, file.Path)
}

func (s *IngestService) deleteBlob(log *slog.Logger, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.blobs.Delete(ctx, key); err != nil {
		log.Warn("delete stored object failed", "key", key, "error", err)
	}
}
