package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbeddingKey(t *testing.T) {
	a := EmbeddingKey("text-embedding-004", "what is the budget?")
	b := EmbeddingKey("text-embedding-004", "what is the budget?")
	c := EmbeddingKey("other-model", "what is the budget?")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "embed:query:text-embedding-004:"))
	assert.Len(t, strings.TrimPrefix(a, "embed:query:text-embedding-004:"), 64)
}
