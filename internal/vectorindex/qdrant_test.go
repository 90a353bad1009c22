package vectorindex

import (
	"testing"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPointsCarriesPayload(t *testing.T) {
	r := rec("scope-1", "file-1", 3, 0.5, 0.25)
	points := toPoints([]Record{r})
	require.Len(t, points, 1)
	p := points[0]

	assert.Equal(t, r.ID, p.GetId().GetUuid())
	assert.Equal(t, []float32{0.5, 0.25}, p.GetVectors().GetVector().GetData())
	payload := p.GetPayload()
	assert.Equal(t, r.ID, payload[FieldChunkID].GetStringValue())
	assert.Equal(t, "file-1", payload[FieldFileID].GetStringValue())
	assert.Equal(t, "scope-1", payload[FieldScopeID].GetStringValue())
	assert.Equal(t, int64(3), payload[FieldSequence].GetIntegerValue())
	assert.Equal(t, r.Content, payload[FieldContent].GetStringValue())
}

func TestToMatchReadsPayloadBack(t *testing.T) {
	r := rec("scope-1", "file-1", 7, 1, 0)
	point := toPoints([]Record{r})[0]

	m := toMatch(&qdrant.ScoredPoint{Id: point.GetId(), Payload: point.GetPayload(), Score: 0.75})
	assert.Equal(t, Match{
		ID:       r.ID,
		FileID:   "file-1",
		ScopeID:  "scope-1",
		Sequence: 7,
		Content:  r.Content,
		Score:    0.75,
	}, m)

	assert.Equal(t, Match{Score: 0.1}, toMatch(&qdrant.ScoredPoint{Score: 0.1}))
}

func TestKeywordFilterMatchesOneField(t *testing.T) {
	f := keywordFilter(FieldScopeID, "c1")
	require.Len(t, f.GetMust(), 1)
	assert.Empty(t, f.GetShould())
	assert.Empty(t, f.GetMustNot())

	field := f.GetMust()[0].GetField()
	require.NotNil(t, field)
	assert.Equal(t, FieldScopeID, field.GetKey())
	assert.Equal(t, "c1", field.GetMatch().GetKeyword())
}

func TestPointIDsKeepOrder(t *testing.T) {
	ids := []string{uuid.NewString(), uuid.NewString()}
	selector := qdrant.NewPointsSelector(pointIDs(ids)...)

	got := selector.GetPoints().GetIds()
	require.Len(t, got, 2)
	assert.Equal(t, ids[0], got[0].GetUuid())
	assert.Equal(t, ids[1], got[1].GetUuid())
	assert.Nil(t, selector.GetFilter())
}
