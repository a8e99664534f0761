package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rezars19/rz-automedata/internal/app/policy"
	"github.com/rezars19/rz-automedata/internal/models"
	"github.com/rezars19/rz-automedata/pkg/tool"
)

// GetSetting reads one admin setting value. The policy table denies the
// anonymous principal every operation on settings.
func (s *Store) GetSetting(ctx context.Context, p policy.Principal, key string) (string, error) {
	if err := policy.Authorize(p, policy.ResourceAdminSetting, policy.OpSelect); err != nil {
		return "", err
	}
	var row models.AdminSetting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return row.Value, nil
}

// GetSettingInt reads a numeric setting, returning fallback when the key is
// missing or not a number.
func (s *Store) GetSettingInt(ctx context.Context, p policy.Principal, key string, fallback int64) (int64, error) {
	v, err := s.GetSetting(ctx, p, key)
	if errors.Is(err, ErrNotFound) {
		return fallback, nil
	}
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.ParseInt(v, 10, 64)
	if convErr != nil {
		return fallback, nil
	}
	return n, nil
}

// SetSetting upserts one key/value pair.
func (s *Store) SetSetting(ctx context.Context, p policy.Principal, key, value string) error {
	if err := policy.Authorize(p, policy.ResourceAdminSetting, policy.OpUpdate); err != nil {
		return err
	}
	row := &models.AdminSetting{ID: tool.GenerateUUIDV7(), Key: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// ListSettings returns all settings rows for administrative display.
func (s *Store) ListSettings(ctx context.Context, p policy.Principal) ([]*models.AdminSetting, error) {
	if err := policy.Authorize(p, policy.ResourceAdminSetting, policy.OpSelect); err != nil {
		return nil, err
	}
	var rows []*models.AdminSetting
	if err := s.db.WithContext(ctx).Order("key asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	return rows, nil
}
