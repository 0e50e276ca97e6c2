package models

import "time"

// ProcessedNotification is the dedup marker for webhook deliveries. The
// unique (gateway, marker) index makes check-and-record atomic: concurrent
// redeliveries race on the insert and exactly one wins.
type ProcessedNotification struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Gateway       string    `gorm:"type:varchar(32);not null;index:ux_processed_notifications_gateway_marker,unique,priority:1" json:"gateway"`
	Marker        string    `gorm:"type:varchar(191);not null;index:ux_processed_notifications_gateway_marker,unique,priority:2" json:"marker"`
	OrderToken    string    `gorm:"type:varchar(191);not null;default:''" json:"order_token"`
	PaymentStatus string    `gorm:"type:varchar(32);not null;default:''" json:"payment_status"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
