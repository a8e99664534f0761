package statistics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/rezars19/rz-automedata/internal/models"
	"github.com/rezars19/rz-automedata/pkg/types"
)

// Service provides the read-only dashboard aggregates.
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service { return &Service{db: db} }

var Module = fx.Options(
	fx.Provide(New),
)

// DashboardStatistics is the administrative overview of the license pool.
type DashboardStatistics struct {
	TotalLicenses      int64 `json:"total_licenses"`
	ActiveLicenses     int64 `json:"active_licenses"`
	InactiveLicenses   int64 `json:"inactive_licenses"`
	ExpiredLicenses    int64 `json:"expired_licenses"`
	BannedLicenses     int64 `json:"banned_licenses"`
	TodayRegistrations int64 `json:"today_registrations"`
	TotalRevenue       int64 `json:"total_revenue"`
	TodayRevenue       int64 `json:"today_revenue"`
}

type statusCount struct {
	Status types.LicenseStatus `json:"status"`
	Count  int64               `json:"count"`
}

// GetDashboardStatistics runs the component aggregates concurrently and
// returns the merged snapshot.
func (s *Service) GetDashboardStatistics(ctx context.Context) (*DashboardStatistics, error) {
	dayStart := time.Now().UTC().Truncate(24 * time.Hour)

	var (
		out      DashboardStatistics
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
	}

	wg.Add(3)

	go func() {
		defer wg.Done()
		var rows []statusCount
		err := s.db.WithContext(ctx).Model(&models.License{}).
			Select("status, count(*) as count").
			Group("status").
			Find(&rows).Error
		if err != nil {
			fail(fmt.Errorf("failed to count licenses by status: %w", err))
			return
		}
		byStatus := lo.SliceToMap(rows, func(r statusCount) (types.LicenseStatus, int64) { return r.Status, r.Count })
		out.ActiveLicenses = byStatus[types.LicenseStatusActive]
		out.InactiveLicenses = byStatus[types.LicenseStatusInactive]
		out.ExpiredLicenses = byStatus[types.LicenseStatusExpired]
		out.BannedLicenses = byStatus[types.LicenseStatusBanned]
		out.TotalLicenses = lo.Sum(lo.Map(rows, func(r statusCount, _ int) int64 { return r.Count }))
	}()

	go func() {
		defer wg.Done()
		err := s.db.WithContext(ctx).Model(&models.License{}).
			Where("created_at >= ?", dayStart).
			Count(&out.TodayRegistrations).Error
		if err != nil {
			fail(fmt.Errorf("failed to count today registrations: %w", err))
		}
	}()

	go func() {
		defer wg.Done()
		type revenueRow struct {
			Total int64 `json:"total"`
			Today int64 `json:"today"`
		}
		var rev revenueRow
		err := s.db.WithContext(ctx).Model(&models.ActivityLog{}).
			Select("COALESCE(SUM(revenue_amount), 0) as total, COALESCE(SUM(revenue_amount) FILTER (WHERE created_at >= ?), 0) as today", dayStart).
			Scan(&rev).Error
		if err != nil {
			fail(fmt.Errorf("failed to sum revenue: %w", err))
			return
		}
		out.TotalRevenue = rev.Total
		out.TodayRevenue = rev.Today
	}()

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return &out, nil
}
