package license

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rezars19/rz-automedata/internal/app/store"
	"github.com/rezars19/rz-automedata/pkg/config"
	"github.com/rezars19/rz-automedata/pkg/types"
)

// Manager is the privileged lifecycle surface consumed by admin handlers and
// the sweep scheduler. Its operations run with elevated privilege and bypass
// the anonymous policy table.
type Manager interface {
	Activate(ctx context.Context, req *ActivateRequest) (*ActivateResult, error)
	SweepExpired(ctx context.Context) (int64, error)
	Renew(ctx context.Context, licenseKey string, durationDays int) (*ActivateResult, error)
	Ban(ctx context.Context, licenseKey, reason string) error
	Unban(ctx context.Context, licenseKey string) error
	Deactivate(ctx context.Context, licenseKey, reason string) error
	ChangePlan(ctx context.Context, licenseKey string, plan types.Plan) error
}

type Service struct {
	cfg   *config.Config
	db    *gorm.DB
	store *store.Store
	log   *zap.SugaredLogger
}

func NewService(cfg *config.Config, db *gorm.DB, st *store.Store, log *zap.SugaredLogger) Manager {
	return &Service{cfg: cfg, db: db, store: st, log: log}
}

type ActivateRequest struct {
	LicenseKey   string     `json:"license_key"`
	Plan         types.Plan `json:"plan"`
	DurationDays int        `json:"duration_days"`
}

// ActivateResult is the structured outcome of an activation attempt. An
// unknown license key is reported through Success=false and Error, never as a
// Go error, so admin tooling can branch on the flag.
type ActivateResult struct {
	Success    bool       `json:"success"`
	LicenseKey string     `json:"license_key,omitempty"`
	Plan       types.Plan `json:"plan,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}
