// Package domain contains persistence models for configured import origins.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Source is a configured origin for cost-export imports: a named base
// location plus activity flag and last-attempt bookkeeping.
type Source struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	Name            string       `json:"name" gorm:"type:text;not null"`
	BaseLocator     string       `json:"base_locator" gorm:"type:text;not null"`
	Active          bool         `json:"active" gorm:"not null;default:true"`
	LastAttemptedAt *time.Time   `json:"last_attempted_at"`
	LastImportedAt  *time.Time   `json:"last_imported_at"`
	Status          string       `json:"status" gorm:"type:text"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Source) TableName() string { return "sources" }
