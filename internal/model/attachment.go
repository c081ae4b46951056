package model

import "time"

// Attachment is the metadata of a blob stored for a request.
// FolderRef and FileRef are opaque backend references (Drive ids or local tags).
type Attachment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RequestID    uint      `gorm:"not null;index" json:"request_id"`
	FolderRef    string    `gorm:"type:varchar(200)" json:"folder_ref"`
	FileRef      string    `gorm:"type:varchar(200);not null" json:"-"`
	OriginalName string    `gorm:"type:varchar(255);not null" json:"original_name"`
	StoredName   string    `gorm:"type:varchar(255);not null" json:"stored_name"`
	ContentType  string    `gorm:"type:varchar(120);not null" json:"content_type"`
	Size         int64     `gorm:"not null" json:"size"`
	UploadedBy   string    `gorm:"type:varchar(120);not null" json:"uploaded_by"`
	CreatedAt    time.Time `gorm:"not null;index" json:"created_at"`
}
