package models

import (
	"time"

	"github.com/rezars19/rz-automedata/pkg/types"
)

// License stores one entitlement token per desktop installation.
// Use Entitled() to decide whether the holder may use the application; it
// checks status and expiry together because a lapsed license may still read
// status=active until the next sweep runs.
type License struct {
	ID         string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	LicenseKey string `gorm:"column:license_key;type:varchar(64);not null;uniqueIndex" json:"license_key"`
	// MachineID is the hardware fingerprint reported at registration. Indexed
	// for the reinstall lookup but deliberately not unique: the historical
	// schema never enforced one row per machine.
	MachineID string              `gorm:"column:machine_id;type:varchar(64);index" json:"machine_id"`
	Plan      types.Plan          `gorm:"column:plan;type:varchar(32);not null;default:'trial'" json:"plan"`
	Status    types.LicenseStatus `gorm:"column:status;type:varchar(32);not null;default:'inactive'" json:"status"`
	// ActivatedAt is set on first activation and preserved across later
	// re-activations.
	ActivatedAt *time.Time `gorm:"column:activated_at;default:null" json:"activated_at"`
	// ExpiresAt is nil for lifetime plans ("never expires").
	ExpiresAt *time.Time `gorm:"column:expires_at;default:null" json:"expires_at"`
	// LastCheck is the most recent client validation timestamp.
	LastCheck *time.Time `gorm:"column:last_check;default:null" json:"last_check"`
	UserName  string     `gorm:"column:user_name;type:varchar(128)" json:"user_name"`
	UserEmail string     `gorm:"column:user_email;type:varchar(128)" json:"user_email"`
	// Notes is free text for administrator annotations.
	Notes string `gorm:"column:notes;type:text" json:"notes"`
	// CreatedAt / UpdatedAt are managed by GORM; UpdatedAt refreshes on every
	// mutation through the write path, callers never set it.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (License) TableName() string {
	return "licenses"
}

// Entitled reports whether the license grants use of the application at now.
// status=active alone is not sufficient: a license past its expiry is already
// out of entitlement even before the sweep demotes it.
func (l *License) Entitled(now time.Time) bool {
	if l == nil || l.Status != types.LicenseStatusActive {
		return false
	}
	return l.ExpiresAt == nil || l.ExpiresAt.After(now)
}
