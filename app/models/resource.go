package models

import "time"

// Resource maps a sellable resource id to the private channel it unlocks
// and the access duration a purchase grants. DurationDays <= 0 means the
// grant never expires.
type Resource struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ResourceID   string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"resource_id"`
	Name         string    `gorm:"type:varchar(200);not null;default:''" json:"name"`
	ChannelID    string    `gorm:"type:varchar(191);not null;default:''" json:"channel_id"`
	DurationDays int       `gorm:"not null;default:0" json:"duration_days"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
