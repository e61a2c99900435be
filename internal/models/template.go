package models

import (
	"time"

	"github.com/google/uuid"
)

// LegalTemplate is a downloadable contract/document template. The document
// itself lives in object storage under ObjectKey; this row is only metadata.
type LegalTemplate struct {
	ID          uuid.UUID `json:"id" db:"id"`
	TitleAr     string    `json:"title_ar" db:"title_ar"`
	TitleEn     string    `json:"title_en" db:"title_en"`
	Category    string    `json:"category" db:"category"`
	ObjectKey   string    `json:"-" db:"object_key"`
	ContentType string    `json:"content_type" db:"content_type"`
	SizeBytes   int64     `json:"size_bytes" db:"size_bytes"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
