package model

import "time"

// SourceFile is an uploaded document owned by a scope. IndexedAt stays nil
// until its chunks are searchable.
type SourceFile struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	RelatedModelName string     `gorm:"size:64;not null;index:idx_files_related_model,priority:1" json:"related_model_name"`
	RelatedModelID   string     `gorm:"size:64;not null;index:idx_files_related_model,priority:2" json:"related_model_id"`
	MimeType         string     `gorm:"size:128;not null" json:"mime_type"`
	OriginalName     string     `gorm:"size:255;not null" json:"original_name"`
	Path             string     `gorm:"size:512;not null" json:"path"`
	Size             int64      `gorm:"not null" json:"size"`
	IndexedAt        *time.Time `gorm:"index" json:"indexed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (SourceFile) TableName() string {
	return "files"
}

func (f *SourceFile) Scope() Scope {
	return Scope{Name: f.RelatedModelName, ID: f.RelatedModelID}
}
