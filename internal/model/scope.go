package model

import "strings"

// ScopeCollab is the only owning kind files attach to today.
const ScopeCollab = "Collab"

const maxScopeSegment = 128

// Scope is the polymorphic owner reference of a SourceFile.
type Scope struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

func CollabScope(id string) Scope {
	return Scope{Name: ScopeCollab, ID: id}
}

// Valid reports whether both parts are usable verbatim as one storage path
// segment, so distinct scopes never share a prefix.
func (s Scope) Valid() bool {
	return validSegment(s.Name) && validSegment(s.ID)
}

func validSegment(s string) bool {
	if s == "" || len(s) > maxScopeSegment || strings.Trim(s, ".") == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
