package domain

import "time"

// PendingReferral is a referral code captured from a `ref` link before the
// visitor registered. At most one row exists per visitor key; a newer
// capture overwrites the older one.
type PendingReferral struct {
	ID         string    `gorm:"type:varchar(36);not null;primaryKey"`
	VisitorKey string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_pending_visitor"`
	Code       string    `gorm:"type:varchar(32);not null"`
	CapturedAt time.Time `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (PendingReferral) TableName() string { return "pending_referrals" }
