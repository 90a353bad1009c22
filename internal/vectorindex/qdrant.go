package vectorindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimensions int
}

// Qdrant stores records as points whose payload carries the chunk fields.
type Qdrant struct {
	client     *qdrant.Client
	collection string
}

func NewQdrant(cfg QdrantConfig) (*Qdrant, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334 // Qdrant gRPC port
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Qdrant{client: client, collection: cfg.Collection}, nil
}

// EnsureCollection creates the cosine collection and keyword indexes on the
// filter fields when missing.
func (q *Qdrant) EnsureCollection(ctx context.Context, dimensions int) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimensions),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}

	for _, field := range []string{FieldScopeID, FieldFileID} {
		_, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create payload index %s: %w", field, err)
		}
	}
	return nil
}

func (q *Qdrant) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         toPoints(records),
	})
	if err != nil {
		return indexErr("upsert", err)
	}
	return nil
}

func (q *Qdrant) Query(ctx context.Context, vector []float32, k int, scopeID string) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	limit := uint64(fetchLimit(k))
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         keywordFilter(FieldScopeID, scopeID),
		Limit:          &limit,
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{
				Enable: true,
			},
		},
	})
	if err != nil {
		return nil, indexErr("query", err)
	}

	matches := make([]Match, 0, len(points))
	for _, p := range points {
		matches = append(matches, toMatch(p))
	}
	return rank(matches, k), nil
}

func (q *Qdrant) DeleteByScope(ctx context.Context, scopeID string) error {
	return q.delete(ctx, "delete by scope", qdrant.NewPointsSelectorFilter(keywordFilter(FieldScopeID, scopeID)))
}

func (q *Qdrant) DeleteByFile(ctx context.Context, fileID string) error {
	return q.delete(ctx, "delete by file", qdrant.NewPointsSelectorFilter(keywordFilter(FieldFileID, fileID)))
}

func (q *Qdrant) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return q.delete(ctx, "delete by ids", qdrant.NewPointsSelector(pointIDs(ids)...))
}

func (q *Qdrant) delete(ctx context.Context, op string, selector *qdrant.PointsSelector) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         selector,
	})
	if err != nil {
		return indexErr(op, err)
	}
	return nil
}

// Ping checks the server is reachable.
func (q *Qdrant) Ping(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

func (q *Qdrant) Close() error {
	return q.client.Close()
}

func keywordFilter(key, value string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: key,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{
							Keyword: value,
						},
					},
				},
			},
		}},
	}
}

func pointIDs(ids []string) []*qdrant.PointId {
	out := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		out[i] = qdrant.NewIDUUID(id)
	}
	return out
}

func toPoints(records []Record) []*qdrant.PointStruct {
	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(r.ID),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				FieldChunkID:  r.ID,
				FieldFileID:   r.FileID,
				FieldScopeID:  r.ScopeID,
				FieldSequence: r.Sequence,
				FieldContent:  r.Content,
			}),
		}
	}
	return points
}

func toMatch(p *qdrant.ScoredPoint) Match {
	m := Match{Score: p.GetScore()}
	if id := p.GetId(); id != nil {
		m.ID = id.GetUuid()
	}
	payload := p.GetPayload()
	if v, ok := payload[FieldFileID]; ok {
		m.FileID = v.GetStringValue()
	}
	if v, ok := payload[FieldScopeID]; ok {
		m.ScopeID = v.GetStringValue()
	}
	if v, ok := payload[FieldSequence]; ok {
		m.Sequence = int(v.GetIntegerValue())
	}
	if v, ok := payload[FieldContent]; ok {
		m.Content = v.GetStringValue()
	}
	return m
}
