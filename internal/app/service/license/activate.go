package license

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rezars19/rz-automedata/internal/app/policy"
	"github.com/rezars19/rz-automedata/internal/models"
	"github.com/rezars19/rz-automedata/pkg/logctx"
	"github.com/rezars19/rz-automedata/pkg/metrics"
	"github.com/rezars19/rz-automedata/pkg/tool"
	"github.com/rezars19/rz-automedata/pkg/types"
)

// applyActivation transitions lic to active at now. Lifetime plans clear the
// expiry unconditionally; every other plan anchors the new expiry at now, so
// repeated activations reset the window rather than extending it. The first
// activation timestamp is preserved across re-activations.
func applyActivation(lic *models.License, plan types.Plan, durationDays int, now time.Time) {
	lic.Plan = plan
	lic.Status = types.LicenseStatusActive
	if lic.ActivatedAt == nil {
		at := now
		lic.ActivatedAt = &at
	}
	if plan == types.PlanLifetime {
		lic.ExpiresAt = nil
	} else {
		exp := now.Add(time.Duration(durationDays) * 24 * time.Hour)
		lic.ExpiresAt = &exp
	}
}

// Activate transitions the license identified by req.LicenseKey to active and
// appends an `activated` ledger entry with the revenue attributed for the
// plan. An unknown key yields Success=false; storage failures abort the whole
// call and roll everything back.
func (s *Service) Activate(ctx context.Context, req *ActivateRequest) (*ActivateResult, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if !req.Plan.Valid() {
		return nil, fmt.Errorf("invalid plan: %s", req.Plan)
	}
	if req.DurationDays <= 0 && req.Plan == types.PlanTrial {
		req.DurationDays = s.trialDays(ctx)
	}
	if req.Plan != types.PlanLifetime && req.DurationDays <= 0 {
		return nil, fmt.Errorf("duration_days must be positive for plan %s", req.Plan)
	}

	now := time.Now().UTC()
	var result *ActivateResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lic models.License
		if err := tx.Where("license_key = ?", req.LicenseKey).First(&lic).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result = &ActivateResult{Success: false, Error: "License not found"}
				return nil
			}
			return fmt.Errorf("failed to load license: %w", err)
		}

		applyActivation(&lic, req.Plan, req.DurationDays, now)
		if err := tx.Save(&lic).Error; err != nil {
			return fmt.Errorf("failed to save license: %w", err)
		}

		revenue, err := s.planRevenue(ctx, req.Plan)
		if err != nil {
			return err
		}
		entry := &models.ActivityLog{
			ID:            tool.GenerateUUIDV7(),
			LicenseID:     &lic.ID,
			LicenseKey:    lic.LicenseKey,
			Action:        types.ActivityActionActivated,
			Details:       activationDetails(req.Plan, req.DurationDays),
			RevenueAmount: revenue,
			Extra: datatypes.JSONMap{
				"plan":          string(req.Plan),
				"duration_days": req.DurationDays,
			},
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append activation log: %w", err)
		}

		result = &ActivateResult{
			Success:    true,
			LicenseKey: lic.LicenseKey,
			Plan:       lic.Plan,
			ExpiresAt:  lic.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Success {
		metrics.ActivationsTotal.WithLabelValues(string(req.Plan)).Inc()
		logctx.FromCtx(ctx, s.log).Infow("license activated",
			"license_key", req.LicenseKey, "plan", req.Plan, "duration_days", req.DurationDays)
	}
	return result, nil
}

func activationDetails(plan types.Plan, durationDays int) string {
	if plan == types.PlanLifetime {
		return "Activated with lifetime plan"
	}
	return fmt.Sprintf("Activated with %s plan for %d days", plan, durationDays)
}

// trialDays resolves the default trial window from admin settings, falling
// back to the configured value.
func (s *Service) trialDays(ctx context.Context) int {
	fallback := int64(s.cfg.License.TrialDays)
	if fallback <= 0 {
		fallback = 2
	}
	days, err := s.store.GetSettingInt(ctx, policy.PrincipalPrivileged, models.SettingTrialDays, fallback)
	if err != nil || days <= 0 {
		return int(fallback)
	}
	return int(days)
}

// planRevenue resolves the revenue attributed to an activation from the
// pricing settings; trial activations attribute nothing.
func (s *Service) planRevenue(ctx context.Context, plan types.Plan) (int64, error) {
	var key string
	switch plan {
	case types.PlanMonthly:
		key = models.SettingPriceMonthly
	case types.PlanYearly:
		key = models.SettingPriceYearly
	case types.PlanLifetime:
		key = models.SettingPriceLifetime
	default:
		return 0, nil
	}
	return s.store.GetSettingInt(ctx, policy.PrincipalPrivileged, key, 0)
}
