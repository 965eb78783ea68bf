package models

import (
	"time"

	"github.com/google/uuid"
)

// ReferralStatus is the lifecycle state of a referral. Pending is the
// only non-terminal state; completed, expired and cancelled are final.
type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralCompleted ReferralStatus = "completed"
	ReferralExpired   ReferralStatus = "expired"
	ReferralCancelled ReferralStatus = "cancelled"
)

// Terminal reports whether no further transitions may leave this status
func (s ReferralStatus) Terminal() bool {
	return s != ReferralPending
}

// Referral is a tracked invitation with a unique code and a one-time
// payout to both parties on completion.
type Referral struct {
	Base
	ReferrerID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"referrer_id"`
	Referrer           User           `gorm:"foreignKey:ReferrerID" json:"-"`
	ReferralCode       string         `gorm:"type:varchar(20);uniqueIndex;not null" json:"referral_code"`
	ReferredID         *uuid.UUID     `gorm:"type:uuid" json:"referred_id,omitempty"`
	Status             ReferralStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Source             string         `gorm:"type:varchar(50)" json:"source,omitempty"`
	Campaign           string         `gorm:"type:varchar(100)" json:"campaign,omitempty"`
	ReferralDate       time.Time      `json:"referral_date"`
	ExpiryDate         time.Time      `gorm:"index" json:"expiry_date"`
	CompletionDate     *time.Time     `json:"completion_date,omitempty"`
	ReferrerPoints     int            `gorm:"not null;default:0" json:"referrer_points"`
	ReferredPoints     int            `gorm:"not null;default:0" json:"referred_points"`
	ReferrerRewardedAt *time.Time     `json:"referrer_rewarded_at,omitempty"`
	ReferredRewardedAt *time.Time     `json:"referred_rewarded_at,omitempty"`
}
