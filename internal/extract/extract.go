// Package extract turns uploaded bytes into normalized plain text. Each
// supported media type maps to a Kind, and each Kind to a Handler.
package extract

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"sort"
	"strings"
	"unicode"
)

var ErrUnsupportedContentType = errors.New("unsupported content type")

type Kind string

const (
	KindText  Kind = "text"
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
	KindDOCX  Kind = "docx"
	KindXLSX  Kind = "xlsx"
)

// Handler extracts text from one kind of document. Output need not be
// normalized; the Extractor does that.
type Handler interface {
	Extract(ctx context.Context, mediaType string, data []byte) (string, error)
}

type HandlerFunc func(ctx context.Context, mediaType string, data []byte) (string, error)

func (f HandlerFunc) Extract(ctx context.Context, mediaType string, data []byte) (string, error) {
	return f(ctx, mediaType, data)
}

type Extractor struct {
	kinds    map[string]Kind
	handlers map[Kind]Handler
}

func New() *Extractor {
	return &Extractor{
		kinds:    make(map[string]Kind),
		handlers: make(map[Kind]Handler),
	}
}

// Register binds a handler to a kind and the media types that select it.
func (e *Extractor) Register(kind Kind, h Handler, mediaTypes ...string) {
	e.handlers[kind] = h
	for _, mt := range mediaTypes {
		e.kinds[baseMediaType(mt)] = kind
	}
}

func (e *Extractor) KindOf(mediaType string) (Kind, bool) {
	kind, ok := e.kinds[baseMediaType(mediaType)]
	if !ok {
		return "", false
	}
	_, ok = e.handlers[kind]
	return kind, ok
}

func (e *Extractor) Supports(mediaType string) bool {
	_, ok := e.KindOf(mediaType)
	return ok
}

// MediaTypes lists the media types that have a registered handler.
func (e *Extractor) MediaTypes() []string {
	out := make([]string, 0, len(e.kinds))
	for mt, kind := range e.kinds {
		if _, ok := e.handlers[kind]; ok {
			out = append(out, mt)
		}
	}
	sort.Strings(out)
	return out
}

// Extract returns whitespace-normalized text. An empty result is valid and
// means the document has no extractable content.
func (e *Extractor) Extract(ctx context.Context, mediaType string, data []byte) (string, error) {
	kind, ok := e.KindOf(mediaType)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContentType, mediaType)
	}
	text, err := e.handlers[kind].Extract(ctx, baseMediaType(mediaType), data)
	if err != nil {
		return "", fmt.Errorf("extract %s failed: %w", kind, err)
	}
	return NormalizeBlocks(text), nil
}

// Normalize collapses every whitespace run to a single space and trims.
func Normalize(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// NormalizeBlocks normalizes each blank-line separated block and rejoins the
// non-empty ones with a blank line.
func NormalizeBlocks(s string) string {
	return JoinBlocks(strings.Split(s, "\n\n"))
}

func JoinBlocks(blocks []string) string {
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if n := Normalize(b); n != "" {
			out = append(out, n)
		}
	}
	return strings.Join(out, "\n\n")
}

func baseMediaType(mt string) string {
	parsed, _, err := mime.ParseMediaType(mt)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mt))
	}
	return parsed
}
