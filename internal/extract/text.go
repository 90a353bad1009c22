package extract

import (
	"context"
	"strings"
)

// TextHandler reads UTF-8 text. Markup is kept as-is and layout collapses
// to single spaces.
type TextHandler struct{}

func (TextHandler) Extract(_ context.Context, _ string, data []byte) (string, error) {
	s := strings.TrimPrefix(string(data), "\uFEFF")
	s = strings.ToValidUTF8(s, "\uFFFD")
	return Normalize(s), nil
}
