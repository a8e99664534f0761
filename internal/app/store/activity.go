package store

import (
	"context"
	"fmt"

	"github.com/rezars19/rz-automedata/internal/app/policy"
	"github.com/rezars19/rz-automedata/internal/models"
	"github.com/rezars19/rz-automedata/pkg/tool"
)

// AppendActivity writes one immutable ledger entry. There is no update path
// for activity rows anywhere in this package.
func (s *Store) AppendActivity(ctx context.Context, p policy.Principal, entry *models.ActivityLog) error {
	if err := policy.Authorize(p, policy.ResourceActivityLog, policy.OpInsert); err != nil {
		return err
	}
	if !entry.Action.Valid() {
		return fmt.Errorf("invalid activity action: %q", entry.Action)
	}
	if entry.ID == "" {
		entry.ID = tool.GenerateUUIDV7()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append activity log: %w", err)
	}
	return nil
}

// ListActivity returns ledger entries for a license key, newest first.
func (s *Store) ListActivity(ctx context.Context, p policy.Principal, licenseKey string, limit int) ([]*models.ActivityLog, error) {
	if err := policy.Authorize(p, policy.ResourceActivityLog, policy.OpSelect); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	var rows []*models.ActivityLog
	q := s.db.WithContext(ctx).Order("created_at desc").Limit(limit)
	if licenseKey != "" {
		q = q.Where("license_key = ?", licenseKey)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list activity logs: %w", err)
	}
	return rows, nil
}

// PurgeActivity bulk-deletes ledger rows for administrative data resets. The
// policy gate restricts it to the privileged principal.
func (s *Store) PurgeActivity(ctx context.Context, p policy.Principal) (int64, error) {
	if err := policy.Authorize(p, policy.ResourceActivityLog, policy.OpDelete); err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Where("1=1").Delete(&models.ActivityLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge activity logs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
