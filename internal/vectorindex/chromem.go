package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"collabrag/internal/logger"
)

type ChromemConfig struct {
	// PersistPath is a directory; empty keeps the index in memory only.
	PersistPath string
	Compress    bool
	Collection  string
}

// Chromem is an embedded index for single-node deployments and tests.
type Chromem struct {
	mu     sync.RWMutex
	db     *chromem.DB
	col    *chromem.Collection
	cfg    ChromemConfig
	dbPath string
	log    *slog.Logger
}

func NewChromem(cfg ChromemConfig, log *slog.Logger) (*Chromem, error) {
	log = logger.OrDiscard(log)
	if cfg.Collection == "" {
		cfg.Collection = "collab_content"
	}

	db := chromem.NewDB()
	var dbPath string
	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}
		dbPath = filepath.Join(cfg.PersistPath, "vectors.gob")
		if cfg.Compress {
			dbPath += ".gz"
		}
		if _, err := os.Stat(dbPath); err == nil {
			loaded := chromem.NewDB()
			if err := loaded.ImportFromFile(dbPath, ""); err != nil {
				log.Warn("failed to load vector database, starting empty", "path", dbPath, "error", err)
			} else {
				db = loaded
				log.Info("loaded vector database from file", "path", dbPath)
			}
		}
	}

	noEmbed := func(context.Context, string) ([]float32, error) {
		return nil, errors.New("embedding function called but vectors should be pre-computed")
	}
	col, err := db.GetOrCreateCollection(cfg.Collection, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("failed to get/create collection %q: %w", cfg.Collection, err)
	}
	return &Chromem{db: db, col: col, cfg: cfg, dbPath: dbPath, log: log}, nil
}

func (c *Chromem) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:      r.ID,
			Content: r.Content,
			Metadata: map[string]string{
				FieldChunkID:  r.ID,
				FieldFileID:   r.FileID,
				FieldScopeID:  r.ScopeID,
				FieldSequence: strconv.Itoa(r.Sequence),
			},
			Embedding: r.Vector,
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return indexErr("upsert", err)
	}
	c.persist()
	return nil
}

func (c *Chromem) Query(ctx context.Context, vector []float32, k int, scopeID string) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := min(fetchLimit(k), c.col.Count())
	if n == 0 {
		return nil, nil
	}
	results, err := c.col.QueryEmbedding(ctx, vector, n, map[string]string{FieldScopeID: scopeID}, nil)
	if err != nil {
		return nil, indexErr("query", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		seq, _ := strconv.Atoi(r.Metadata[FieldSequence])
		matches = append(matches, Match{
			ID:       r.ID,
			FileID:   r.Metadata[FieldFileID],
			ScopeID:  r.Metadata[FieldScopeID],
			Sequence: seq,
			Content:  r.Content,
			Score:    r.Similarity,
		})
	}
	return rank(matches, k), nil
}

func (c *Chromem) DeleteByScope(ctx context.Context, scopeID string) error {
	return c.deleteWhere(ctx, "delete by scope", map[string]string{FieldScopeID: scopeID})
}

func (c *Chromem) DeleteByFile(ctx context.Context, fileID string) error {
	return c.deleteWhere(ctx, "delete by file", map[string]string{FieldFileID: fileID})
}

func (c *Chromem) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.deleteWhere(ctx, "delete by ids", nil, ids...)
}

func (c *Chromem) deleteWhere(ctx context.Context, op string, where map[string]string, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.col.Delete(ctx, where, nil, ids...); err != nil {
		return indexErr(op, err)
	}
	c.persist()
	return nil
}

func (c *Chromem) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.col.Count()
}

func (c *Chromem) persist() {
	if c.dbPath == "" {
		return
	}
	if err := c.db.ExportToFile(c.dbPath, c.cfg.Compress, ""); err != nil {
		c.log.Warn("failed to persist vector database", "path", c.dbPath, "error", err)
	}
}
