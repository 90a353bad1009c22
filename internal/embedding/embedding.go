// Package embedding maps text to vectors. Documents and questions are
// embedded in different modes so asymmetric providers can optimize each.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var ErrProvider = errors.New("embedding provider error")

type Mode int

const (
	ModeIndex Mode = iota
	ModeQuery
)

func (m Mode) String() string {
	switch m {
	case ModeIndex:
		return "index"
	case ModeQuery:
		return "query"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Gateway returns exactly one vector per input text, in input order.
type Gateway interface {
	Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error)
}

func providerErr(err error) error {
	if errors.Is(err, ErrProvider) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrProvider, err)
}

func validate(texts []string, maxChars int) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no input texts", ErrProvider)
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: input %d is empty", ErrProvider, i)
		}
		if maxChars > 0 && utf8.RuneCountInString(t) > maxChars {
			return fmt.Errorf("%w: input %d exceeds %d characters", ErrProvider, i, maxChars)
		}
	}
	return nil
}

// batches splits n items into consecutive [start, end) ranges of at most size.
func batches(n, size int) [][2]int {
	if size <= 0 {
		size = n
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}

func checkCount(got, want int) error {
	if got != want {
		return fmt.Errorf("%w: got %d vectors for %d inputs", ErrProvider, got, want)
	}
	return nil
}
