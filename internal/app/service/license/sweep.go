package license

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rezars19/rz-automedata/internal/models"
	"github.com/rezars19/rz-automedata/pkg/logctx"
	"github.com/rezars19/rz-automedata/pkg/metrics"
	"github.com/rezars19/rz-automedata/pkg/tool"
	"github.com/rezars19/rz-automedata/pkg/types"
)

// SweepExpired demotes every active license whose expiry has passed and
// appends one `expired` ledger entry per affected row, all in a single
// transaction. Returns the number of rows transitioned. Safe to invoke
// repeatedly and concurrently: a license already demoted no longer matches
// the selection, and zero matches is not an error.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	var count int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lapsed []*models.License
		err := tx.
			Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", types.LicenseStatusActive, now).
			Find(&lapsed).Error
		if err != nil {
			return fmt.Errorf("failed to select lapsed licenses: %w", err)
		}

		for _, lic := range lapsed {
			res := tx.Model(&models.License{}).
				Where("id = ? AND status = ?", lic.ID, types.LicenseStatusActive).
				Update("status", types.LicenseStatusExpired)
			if res.Error != nil {
				return fmt.Errorf("failed to expire license %s: %w", lic.LicenseKey, res.Error)
			}
			// lost the race to a concurrent sweep; skip the ledger entry too
			if res.RowsAffected == 0 {
				continue
			}

			entry := &models.ActivityLog{
				ID:         tool.GenerateUUIDV7(),
				LicenseID:  &lic.ID,
				LicenseKey: lic.LicenseKey,
				Action:     types.ActivityActionExpired,
				Details:    fmt.Sprintf("Automatically expired (expires_at %s)", lic.ExpiresAt.Format(time.RFC3339)),
			}
			if err := tx.Create(entry).Error; err != nil {
				return fmt.Errorf("failed to append expiry log: %w", err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if count > 0 {
		metrics.SweptLicensesTotal.Add(float64(count))
		logctx.FromCtx(ctx, s.log).Infow("expired licenses swept", "count", count)
	}
	return count, nil
}
