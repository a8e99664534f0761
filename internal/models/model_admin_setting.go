package models

import "time"

// AdminSetting is a key/value configuration row read by administrative
// tooling (trial length, plan pricing). Never exposed to the anonymous
// principal.
type AdminSetting struct {
	ID        string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Key       string    `gorm:"column:key;type:varchar(64);not null;uniqueIndex" json:"key"`
	Value     string    `gorm:"column:value;type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AdminSetting) TableName() string {
	return "admin_settings"
}

// Setting keys seeded at startup.
const (
	SettingTrialDays     = "trial_days"
	SettingPriceMonthly  = "price_monthly"
	SettingPriceYearly   = "price_yearly"
	SettingPriceLifetime = "price_lifetime"
)
