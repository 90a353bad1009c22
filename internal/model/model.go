package model

// All lists every table the service migrates.
func All() []any {
	return []any{&SourceFile{}, &ExtractedContent{}, &ContentChunk{}}
}
