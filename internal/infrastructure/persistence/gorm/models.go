// Package gorm provides GORM model definitions and the database-backed preference store
package gorm

import (
	"time"
)

// ThemePreferenceModel represents one stored theme preference
type ThemePreferenceModel struct {
	Key       string `gorm:"column:preference_key;type:varchar(255);primaryKey"`
	Value     string `gorm:"column:value;type:varchar(16);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the table name used by ThemePreferenceModel
func (ThemePreferenceModel) TableName() string {
	return "theme_preferences"
}

// Models lists every model managed by AutoMigrate
func Models() []interface{} {
	return []interface{}{
		&ThemePreferenceModel{},
	}
}
