package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alchemorsel/kitchen/internal/ports/outbound"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PreferenceRepository implements the preference store using GORM
type PreferenceRepository struct {
	db *gorm.DB
}

var _ outbound.PreferenceStore = (*PreferenceRepository)(nil)

// NewPreferenceRepository creates a new preference repository
func NewPreferenceRepository(db *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get finds the value stored under key
func (r *PreferenceRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var model ThemePreferenceModel

	result := r.db.WithContext(ctx).Where("preference_key = ?", key).Take(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read preference %s: %w", key, result.Error)
	}

	return model.Value, true, nil
}

// Set inserts or overwrites the value stored under key
func (r *PreferenceRepository) Set(ctx context.Context, key, value string) error {
	now := time.Now()
	model := ThemePreferenceModel{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "preference_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&model)
	if result.Error != nil {
		return fmt.Errorf("failed to write preference %s: %w", key, result.Error)
	}

	return nil
}

// Delete removes the value stored under key; a missing key is not an error
func (r *PreferenceRepository) Delete(ctx context.Context, key string) error {
	result := r.db.WithContext(ctx).Where("preference_key = ?", key).Delete(&ThemePreferenceModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete preference %s: %w", key, result.Error)
	}

	return nil
}

// Count returns the number of stored preferences
func (r *PreferenceRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&ThemePreferenceModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
