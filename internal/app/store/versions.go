package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/rezars19/rz-automedata/internal/app/policy"
	"github.com/rezars19/rz-automedata/internal/models"
	"github.com/rezars19/rz-automedata/pkg/tool"
)

// ListAppVersions returns release rows visible to the principal, newest
// first. The anonymous principal only ever sees active rows; the restriction
// comes from the policy row filter, not from the caller.
func (s *Store) ListAppVersions(ctx context.Context, p policy.Principal) ([]*models.AppVersion, error) {
	if err := policy.Authorize(p, policy.ResourceAppVersion, policy.OpSelect); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Order("created_at desc")
	if cond := policy.SelectRowFilter(p, policy.ResourceAppVersion); cond != "" {
		q = q.Where(cond)
	}
	var rows []*models.AppVersion
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list app versions: %w", err)
	}
	return rows, nil
}

// LatestAppVersion returns the newest version row visible to the principal,
// or ErrNotFound when none is published.
func (s *Store) LatestAppVersion(ctx context.Context, p policy.Principal) (*models.AppVersion, error) {
	if err := policy.Authorize(p, policy.ResourceAppVersion, policy.OpSelect); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Order("created_at desc")
	if cond := policy.SelectRowFilter(p, policy.ResourceAppVersion); cond != "" {
		q = q.Where(cond)
	}
	var row models.AppVersion
	err := q.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest app version: %w", err)
	}
	return &row, nil
}

func (s *Store) CreateAppVersion(ctx context.Context, p policy.Principal, v *models.AppVersion) error {
	if err := policy.Authorize(p, policy.ResourceAppVersion, policy.OpInsert); err != nil {
		return err
	}
	if v.ID == "" {
		v.ID = tool.GenerateUUIDV7()
	}
	if err := s.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("failed to create app version: %w", err)
	}
	return nil
}

func (s *Store) UpdateAppVersion(ctx context.Context, p policy.Principal, version string, fields map[string]any) error {
	if err := policy.Authorize(p, policy.ResourceAppVersion, policy.OpUpdate); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.AppVersion{}).
		Where("version = ?", version).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update app version: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
