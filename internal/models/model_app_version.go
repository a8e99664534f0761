package models

import "time"

// AppVersion is a published desktop release used for update checks.
// Managed by administrators; anonymous clients only ever see rows with
// IsActive set.
type AppVersion struct {
	ID           string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Version      string `gorm:"column:version;type:varchar(32);not null;uniqueIndex" json:"version"`
	ReleaseNotes string `gorm:"column:release_notes;type:text" json:"release_notes"`
	DownloadURL  string `gorm:"column:download_url;type:varchar(512)" json:"download_url"`
	// IsMandatory tells the client to block usage until it updates.
	IsMandatory bool      `gorm:"column:is_mandatory;not null;default:false" json:"is_mandatory"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (AppVersion) TableName() string {
	return "app_versions"
}
