package model

import "time"

// ExtractedContent is the canonical text of a SourceFile. Written once.
type ExtractedContent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FileID    string    `gorm:"size:36;not null;uniqueIndex" json:"file_id"`
	Content   string    `gorm:"type:longtext;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (ExtractedContent) TableName() string {
	return "file_contents"
}
