package app

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"iter"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"collabrag/internal/ai"
	"collabrag/internal/chunker"
	"collabrag/internal/embedding"
	"collabrag/internal/extract"
	"collabrag/internal/model"
	"collabrag/internal/pkg/retry"
	"collabrag/internal/repository"
	"collabrag/internal/storage"
	"collabrag/internal/vectorindex"
)

const dims = 32

// wordEmbedder hashes words into a fixed-size bag-of-words vector.
type wordEmbedder struct {
	mu    sync.Mutex
	fails int
	err   error
	modes []embedding.Mode
}

func (w *wordEmbedder) Embed(_ context.Context, texts []string, mode embedding.Mode) ([][]float32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.modes = append(w.modes, mode)
	if w.fails > 0 {
		w.fails--
		return nil, fmt.Errorf("%w: %w", embedding.ErrProvider, w.err)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, dims)
		vec[0] = 0.01
		for _, word := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			h.Write([]byte(strings.Trim(word, ".,?!")))
			vec[h.Sum32()%dims]++
		}
		out[i] = vec
	}
	return out, nil
}

// gatedEmbedder holds every call until the expected number of callers arrive.
type gatedEmbedder struct {
	*wordEmbedder
	arrived sync.WaitGroup
}

func newGatedEmbedder(inner *wordEmbedder, callers int) *gatedEmbedder {
	g := &gatedEmbedder{wordEmbedder: inner}
	g.arrived.Add(callers)
	return g
}

func (g *gatedEmbedder) Embed(ctx context.Context, texts []string, mode embedding.Mode) ([][]float32, error) {
	g.arrived.Done()
	g.arrived.Wait()
	return g.wordEmbedder.Embed(ctx, texts, mode)
}

type recordingPublisher struct {
	mu   sync.Mutex
	jobs []model.ReindexJob
}

func (p *recordingPublisher) Publish(_ context.Context, job model.ReindexJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	return nil
}

// scriptedChat replays fragments, optionally failing after failAfter of them.
type scriptedChat struct {
	fragments []string
	failAfter int
	failErr   error
	received  [][]ai.ChatMessage
	produced  int
}

func (c *scriptedChat) Stream(_ context.Context, messages []ai.ChatMessage) iter.Seq2[string, error] {
	c.received = append(c.received, messages)
	return func(yield func(string, error) bool) {
		for i, f := range c.fragments {
			if c.failErr != nil && i == c.failAfter {
				yield("", c.failErr)
				return
			}
			c.produced++
			if !yield(f, nil) {
				return
			}
		}
	}
}

type brokenIndex struct {
	vectorindex.Index
	err error
}

func (b brokenIndex) Query(context.Context, []float32, int, string) ([]vectorindex.Match, error) {
	return nil, b.err
}

func (b brokenIndex) Upsert(context.Context, []vectorindex.Record) error {
	return b.err
}

type env struct {
	db        *gorm.DB
	files     *repository.FileRepository
	contents  *repository.ContentRepository
	chunks    *repository.ChunkRepository
	blobs     *storage.Local
	blobRoot  string
	index     *vectorindex.Chromem
	embedder  *wordEmbedder
	publisher *recordingPublisher
	chat      *scriptedChat
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	root := t.TempDir()
	blobs, err := storage.NewLocal(root)
	require.NoError(t, err)
	index, err := vectorindex.NewChromem(vectorindex.ChromemConfig{Collection: "test"}, nil)
	require.NoError(t, err)

	return &env{
		db:        db,
		files:     repository.NewFileRepository(db),
		contents:  repository.NewContentRepository(db),
		chunks:    repository.NewChunkRepository(db),
		blobs:     blobs,
		blobRoot:  root,
		index:     index,
		embedder:  &wordEmbedder{err: errors.New("provider unavailable")},
		publisher: &recordingPublisher{},
		chat:      &scriptedChat{},
	}
}

func (e *env) ingestService(t *testing.T, extractor TextExtractor, strict bool) *IngestService {
	t.Helper()
	splitter, err := chunker.New()
	require.NoError(t, err)
	if extractor == nil {
		extractor = extract.NewDefault(extract.Options{PDFMode: "text"})
	}
	return NewIngestService(IngestDeps{
		Files:     e.files,
		Contents:  e.contents,
		Chunks:    e.chunks,
		Blobs:     e.blobs,
		Extractor: extractor,
		Splitter:  splitter,
		Embedder:  e.embedder,
		Index:     e.index,
		Publisher: e.publisher,
	}, IngestOptions{StrictIndexing: strict, Retry: retry.Policy{MaxAttempts: 1}})
}

func (e *env) queryService(index vectorindex.Index) *QueryService {
	if index == nil {
		index = e.index
	}
	return NewQueryService(QueryDeps{
		Embedder: e.embedder,
		Index:    index,
		Chat:     e.chat,
	}, QueryOptions{TopK: 5, MaxHistoryTurns: 20, Retry: retry.Policy{MaxAttempts: 1}})
}

func (e *env) countRows(t *testing.T, value any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(value).Count(&n).Error)
	return n
}

func textInput(scope model.Scope, name, body string) IngestInput {
	return IngestInput{
		UserID:    1,
		Scope:     scope,
		FileName:  name,
		MediaType: "text/plain",
		Data:      []byte(body),
	}
}

func drain(tokens iter.Seq2[string, error]) (string, error) {
	var b strings.Builder
	for s, err := range tokens {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}
