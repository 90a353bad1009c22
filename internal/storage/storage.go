// Package storage keeps the raw bytes of uploaded files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"collabrag/internal/model"
)

var (
	ErrNotFound     = errors.New("object not found")
	ErrInvalidScope = errors.New("invalid scope")
)

// BlobStore addresses objects by slash-separated keys.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, mediaType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete is a no-op for missing keys.
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every object under prefix and returns how many.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// ObjectKey places a file under <scope name>/<scope id>/<uuid><ext>.
func ObjectKey(scope model.Scope, originalName string) (string, error) {
	prefix, err := ScopePrefix(scope)
	if err != nil {
		return "", err
	}
	return prefix + uuid.NewString() + sanitizeExt(filepath.Ext(originalName)), nil
}

// ScopePrefix is the key prefix holding every object of scope. Scope parts are
// used verbatim, so only valid scopes are accepted.
func ScopePrefix(scope model.Scope) (string, error) {
	if !scope.Valid() {
		return "", fmt.Errorf("%w: %q/%q", ErrInvalidScope, scope.Name, scope.ID)
	}
	return scope.Name + "/" + scope.ID + "/", nil
}

// checkScopePrefix refuses prefixes that would span more than one scope.
func checkScopePrefix(prefix string) error {
	name, rest, ok := strings.Cut(prefix, "/")
	id, tail, ok2 := strings.Cut(rest, "/")
	if !ok || !ok2 || tail != "" || !(model.Scope{Name: name, ID: id}).Valid() {
		return fmt.Errorf("%w: prefix %q", ErrInvalidScope, prefix)
	}
	return nil
}

func sanitizeExt(ext string) string {
	ext = strings.ToLower(ext)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.':
			return r
		default:
			return -1
		}
	}, ext)
}
