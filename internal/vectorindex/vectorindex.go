// Package vectorindex stores chunk embeddings and answers scoped
// nearest-neighbour queries.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var ErrIndex = errors.New("vector index error")

// Payload field names shared by every backend.
const (
	FieldChunkID  = "chunk_id"
	FieldFileID   = "file_id"
	FieldScopeID  = "workspace_scope_id"
	FieldContent  = "content"
	FieldSequence = "sequence"
)

// Record is one indexed chunk. ID is the chunk id and must be a UUID.
type Record struct {
	ID       string
	Vector   []float32
	FileID   string
	ScopeID  string
	Sequence int
	Content  string
}

type Match struct {
	ID       string
	FileID   string
	ScopeID  string
	Sequence int
	Content  string
	Score    float32
}

// Index is safe for concurrent use.
type Index interface {
	// Upsert inserts or replaces records by id in one backend call.
	Upsert(ctx context.Context, records []Record) error
	// Query returns up to k records of the scope nearest to vector by cosine
	// similarity, best first, ties broken by ascending id.
	Query(ctx context.Context, vector []float32, k int, scopeID string) ([]Match, error)
	DeleteByScope(ctx context.Context, scopeID string) error
	DeleteByFile(ctx context.Context, fileID string) error
	// DeleteByIDs removes records by id; unknown ids are ignored.
	DeleteByIDs(ctx context.Context, ids []string) error
}

func indexErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIndex, op, err)
}

// fetchLimit over-fetches so ties at the k boundary resolve by id.
func fetchLimit(k int) int {
	return k * 2
}

// rank sorts by score desc then id asc and keeps the first k.
func rank(matches []Match, k int) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
