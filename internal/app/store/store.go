// Package store is the Entitlement Store: every read and write of license
// data passes through here carrying an explicit principal, and the policy
// check runs before any statement reaches the database.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rezars19/rz-automedata/internal/app/policy"
	"github.com/rezars19/rz-automedata/internal/models"
	"github.com/rezars19/rz-automedata/pkg/tool"
	"github.com/rezars19/rz-automedata/pkg/types"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

type Store struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewStore(db *gorm.DB, log *zap.SugaredLogger) *Store {
	return &Store{db: db, log: log}
}

// DB exposes the underlying handle for privileged procedures that manage
// their own transactions.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// RegisterLicense inserts a fresh license row. Duplicate license keys surface
// the storage layer's uniqueness violation as a hard failure.
func (s *Store) RegisterLicense(ctx context.Context, p policy.Principal, lic *models.License) error {
	if err := policy.Authorize(p, policy.ResourceLicense, policy.OpInsert); err != nil {
		return err
	}
	if lic.ID == "" {
		lic.ID = tool.GenerateUUIDV7()
	}
	if lic.Plan == "" {
		lic.Plan = types.PlanTrial
	}
	if lic.Status == "" {
		lic.Status = types.LicenseStatusInactive
	}
	if err := s.db.WithContext(ctx).Create(lic).Error; err != nil {
		return fmt.Errorf("failed to register license: %w", err)
	}
	return nil
}

func (s *Store) GetLicenseByKey(ctx context.Context, p policy.Principal, licenseKey string) (*models.License, error) {
	if err := policy.Authorize(p, policy.ResourceLicense, policy.OpSelect); err != nil {
		return nil, err
	}
	var lic models.License
	err := s.db.WithContext(ctx).Where("license_key = ?", licenseKey).First(&lic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get license: %w", err)
	}
	return &lic, nil
}

// FindLicenseByMachineID returns the oldest license row registered for the
// fingerprint, or ErrNotFound. Used to restore an installation after a
// reinstall instead of handing out a fresh trial.
func (s *Store) FindLicenseByMachineID(ctx context.Context, p policy.Principal, machineID string) (*models.License, error) {
	if err := policy.Authorize(p, policy.ResourceLicense, policy.OpSelect); err != nil {
		return nil, err
	}
	var lic models.License
	err := s.db.WithContext(ctx).
		Where("machine_id = ?", machineID).
		Order("created_at asc").
		First(&lic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find license by machine id: %w", err)
	}
	return &lic, nil
}

// UpdateLicenseFields applies a partial update to the license row identified
// by key. updated_at is refreshed by the write path itself, never by callers.
func (s *Store) UpdateLicenseFields(ctx context.Context, p policy.Principal, licenseKey string, fields map[string]any) error {
	if err := policy.Authorize(p, policy.ResourceLicense, policy.OpUpdate); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.License{}).
		Where("license_key = ?", licenseKey).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update license: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastCheck records a client check-in. Last write wins; no ordering
// between concurrent check-ins is needed.
func (s *Store) TouchLastCheck(ctx context.Context, p policy.Principal, licenseKey string, at time.Time) error {
	return s.UpdateLicenseFields(ctx, p, licenseKey, map[string]any{"last_check": at})
}

// DeleteLicense removes a license row. Only the privileged principal passes
// the policy gate; clients can never delete entitlement records.
func (s *Store) DeleteLicense(ctx context.Context, p policy.Principal, licenseKey string) error {
	if err := policy.Authorize(p, policy.ResourceLicense, policy.OpDelete); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("license_key = ?", licenseKey).Delete(&models.License{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete license: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type ListLicensesRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ListLicensesResponse struct {
	Items []*models.License `json:"items"`
	Total int64             `json:"total"`
}

// filtersAnd joins filters with AND.
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	for i, f := range w.filters {
		if i > 0 {
			builder.WriteString(" AND ")
		}
		f.Build(builder)
	}
}

// ListLicenses implements paginated admin listing with filters.
func (s *Store) ListLicenses(ctx context.Context, p policy.Principal, req *ListLicensesRequest) (*ListLicensesResponse, error) {
	if err := policy.Authorize(p, policy.ResourceLicense, policy.OpSelect); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.License{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count licenses: %w", err)
	}

	var rows []*models.License
	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"}}})
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list licenses: %w", err)
	}

	return &ListLicensesResponse{Items: rows, Total: total}, nil
}
