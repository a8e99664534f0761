package license

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rezars19/rz-automedata/internal/models"
	"github.com/rezars19/rz-automedata/pkg/tool"
	"github.com/rezars19/rz-automedata/pkg/types"
)

// ErrLicenseNotFound is returned by admin mutations against an unknown key.
var ErrLicenseNotFound = errors.New("license not found")

// mutate loads the license, applies fn, saves it and appends the ledger entry
// returned by fn — all inside one transaction.
func (s *Service) mutate(ctx context.Context, licenseKey string, fn func(lic *models.License) *models.ActivityLog) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lic models.License
		if err := tx.Where("license_key = ?", licenseKey).First(&lic).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLicenseNotFound
			}
			return fmt.Errorf("failed to load license: %w", err)
		}

		entry := fn(&lic)

		if err := tx.Save(&lic).Error; err != nil {
			return fmt.Errorf("failed to save license: %w", err)
		}
		if entry != nil {
			if entry.ID == "" {
				entry.ID = tool.GenerateUUIDV7()
			}
			entry.LicenseID = &lic.ID
			entry.LicenseKey = lic.LicenseKey
			if err := tx.Create(entry).Error; err != nil {
				return fmt.Errorf("failed to append activity log: %w", err)
			}
		}
		return nil
	})
}

// Ban blocks a license outright; the client sees the banned status on its
// next check-in.
func (s *Service) Ban(ctx context.Context, licenseKey, reason string) error {
	return s.mutate(ctx, licenseKey, func(lic *models.License) *models.ActivityLog {
		lic.Status = types.LicenseStatusBanned
		return &models.ActivityLog{
			Action:  types.ActivityActionBanned,
			Details: reason,
		}
	})
}

// Unban restores a banned license to active when its expiry still holds,
// otherwise to expired.
func (s *Service) Unban(ctx context.Context, licenseKey string) error {
	now := time.Now().UTC()
	return s.mutate(ctx, licenseKey, func(lic *models.License) *models.ActivityLog {
		if lic.ExpiresAt == nil || lic.ExpiresAt.After(now) {
			lic.Status = types.LicenseStatusActive
		} else {
			lic.Status = types.LicenseStatusExpired
		}
		return &models.ActivityLog{
			Action:  types.ActivityActionUnbanned,
			Details: fmt.Sprintf("Unbanned, status restored to %s", lic.Status),
		}
	})
}

// Deactivate demotes a license to inactive without touching plan or expiry.
func (s *Service) Deactivate(ctx context.Context, licenseKey, reason string) error {
	return s.mutate(ctx, licenseKey, func(lic *models.License) *models.ActivityLog {
		lic.Status = types.LicenseStatusInactive
		return &models.ActivityLog{
			Action:  types.ActivityActionDeactivated,
			Details: reason,
		}
	})
}

// ChangePlan switches the plan label without altering status or expiry;
// lifetime is the exception because its invariant forces a nil expiry.
func (s *Service) ChangePlan(ctx context.Context, licenseKey string, plan types.Plan) error {
	if !plan.Valid() {
		return fmt.Errorf("invalid plan: %s", plan)
	}
	return s.mutate(ctx, licenseKey, func(lic *models.License) *models.ActivityLog {
		from := lic.Plan
		lic.Plan = plan
		if plan == types.PlanLifetime {
			lic.ExpiresAt = nil
		}
		return &models.ActivityLog{
			Action:  types.ActivityActionPlanChanged,
			Details: fmt.Sprintf("Plan changed from %s to %s", from, plan),
			Extra:   datatypes.JSONMap{"from": string(from), "to": string(plan)},
		}
	})
}

// Renew extends the current entitlement window by durationDays, anchored at
// the later of now and the current expiry. Unlike Activate, renewal is
// additive. Revenue is attributed the same way as activation.
func (s *Service) Renew(ctx context.Context, licenseKey string, durationDays int) (*ActivateResult, error) {
	if durationDays <= 0 {
		return nil, fmt.Errorf("duration_days must be positive")
	}
	now := time.Now().UTC()
	var result *ActivateResult

	err := s.mutate(ctx, licenseKey, func(lic *models.License) *models.ActivityLog {
		if lic.Plan == types.PlanLifetime {
			result = &ActivateResult{Success: true, LicenseKey: lic.LicenseKey, Plan: lic.Plan}
			return nil
		}
		anchor := now
		if lic.ExpiresAt != nil && lic.ExpiresAt.After(now) {
			anchor = *lic.ExpiresAt
		}
		exp := anchor.Add(time.Duration(durationDays) * 24 * time.Hour)
		lic.ExpiresAt = &exp
		lic.Status = types.LicenseStatusActive

		revenue, err := s.planRevenue(ctx, lic.Plan)
		if err != nil {
			revenue = 0
		}
		result = &ActivateResult{Success: true, LicenseKey: lic.LicenseKey, Plan: lic.Plan, ExpiresAt: lic.ExpiresAt}
		return &models.ActivityLog{
			Action:        types.ActivityActionRenewed,
			Details:       fmt.Sprintf("Renewed for %d days until %s", durationDays, exp.Format(time.RFC3339)),
			RevenueAmount: revenue,
		}
	})
	if errors.Is(err, ErrLicenseNotFound) {
		return &ActivateResult{Success: false, Error: "License not found"}, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
