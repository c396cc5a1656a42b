package models

import (
	"strings"
	"time"

	"fintrack/internal/uuid"

	"gorm.io/gorm"
)

// Base contains the common columns shared by every table.
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate assigns a UUIDv7 to new records so primary keys sort by
// insertion time.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}

// JoinList serializes a list field (tags, tracking categories) into its
// stored comma-joined form. Empty elements are dropped.
func JoinList(items []string) string {
	clean := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			clean = append(clean, trimmed)
		}
	}
	return strings.Join(clean, ",")
}

// SplitList is the inverse of JoinList. It returns nil for an empty column.
func SplitList(stored string) []string {
	if stored == "" {
		return nil
	}
	parts := strings.Split(stored, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
