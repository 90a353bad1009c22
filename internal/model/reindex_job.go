package model

import "time"

// ReindexJob asks the worker to rebuild the chunks and vectors of a file.
type ReindexJob struct {
	FileID     string    `json:"file_id"`
	Reason     string    `json:"reason"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
