package models

import "time"

const (
	SubscriptionStatusActive  = "active"
	SubscriptionStatusExpired = "expired"
	SubscriptionStatusRevoked = "revoked"
)

// Subscription is the durable access grant for one (subject, resource)
// pair. Records are never deleted; lifecycle is expressed through status
// transitions so the table doubles as the audit trail.
type Subscription struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	SubjectID  int64      `gorm:"not null;index:ux_subscriptions_subject_resource,unique,priority:1" json:"subject_id"`
	ResourceID string     `gorm:"type:varchar(191);not null;index:ux_subscriptions_subject_resource,unique,priority:2" json:"resource_id"`
	GrantedAt  time.Time  `gorm:"type:timestamp;not null" json:"granted_at"`
	ExpiryAt   *time.Time `gorm:"type:timestamp;default:null;index:idx_subscriptions_status_expiry,priority:2" json:"expiry_at,omitempty"`
	Status     string     `gorm:"type:varchar(16);not null;default:'active';index:idx_subscriptions_status_expiry,priority:1" json:"status"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsPermanent reports whether the grant never expires.
func (s *Subscription) IsPermanent() bool {
	return s.ExpiryAt == nil
}
