package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/rezars19/rz-automedata/pkg/types"
)

// ActivityLog is the append-only ledger of license lifecycle events.
// Rows are never updated; the only deletion path is an administrative bulk
// reset.
type ActivityLog struct {
	ID string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	// LicenseID references the license row; it goes null if the license is
	// later deleted so ledger history survives cleanup.
	LicenseID *string  `gorm:"column:license_id;type:uuid;index;constraint:OnDelete:SET NULL" json:"license_id"`
	License   *License `gorm:"foreignKey:LicenseID;references:ID" json:"-"`
	// LicenseKey is stored redundantly so entries stay attributable without
	// the reference.
	LicenseKey string               `gorm:"column:license_key;type:varchar(64);index;not null" json:"license_key"`
	Action     types.ActivityAction `gorm:"column:action;type:varchar(32);not null" json:"action"`
	Details    string               `gorm:"column:details;type:text" json:"details"`
	IPAddress  string               `gorm:"column:ip_address;type:varchar(64)" json:"ip_address"`
	// RevenueAmount is in whole monetary units, attributed on activated and
	// renewed events only.
	RevenueAmount int64             `gorm:"column:revenue_amount;not null;default:0" json:"revenue_amount"`
	Extra         datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}
