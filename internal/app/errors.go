package app

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrStorage          = errors.New("storage failed")
	ErrExtraction       = errors.New("extraction failed")
	ErrFileNotFound     = errors.New("file not found")
	ErrRetrieval        = errors.New("retrieval failed")
	ErrIncompleteAnswer = errors.New("answer incomplete")
)
