package models

import (
	"time"

	"github.com/google/uuid"
)

// Export represents the metadata of a converted glTF document stored in the database.
type Export struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OriginalFilename   string    `json:"original_filename"`
	Format             string    `json:"format"`
	ContentType        string    `json:"content_type"`
	Size               int64     `json:"size"`
	StorageKey         string    `json:"storage_key"`
	NodeCount          int       `json:"node_count"`
	SkippedCount       int       `json:"skipped_count"`
	ExportSelectedOnly bool      `json:"export_selected_only"`
	CreatedAt          time.Time `json:"created_at"`
}
