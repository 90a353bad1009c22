package model

import "time"

// ContentChunk is one indexed slice of ExtractedContent. ID doubles as the
// vector record id.
type ContentChunk struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	FileID    string    `gorm:"size:36;not null;index:idx_content_chunks_file_seq,priority:1" json:"file_id"`
	Sequence  int       `gorm:"not null;index:idx_content_chunks_file_seq,priority:2" json:"sequence"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (ContentChunk) TableName() string {
	return "content_chunks"
}
