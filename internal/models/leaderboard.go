package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LeaderboardPeriod is the time window a snapshot covers
type LeaderboardPeriod string

const (
	PeriodAllTime LeaderboardPeriod = "all_time"
	PeriodMonthly LeaderboardPeriod = "monthly"
	PeriodWeekly  LeaderboardPeriod = "weekly"
	PeriodDaily   LeaderboardPeriod = "daily"
)

// AllPeriods lists every snapshot period in recompute order
var AllPeriods = []LeaderboardPeriod{PeriodAllTime, PeriodMonthly, PeriodWeekly, PeriodDaily}

// Valid reports whether p is a known period
func (p LeaderboardPeriod) Valid() bool {
	switch p {
	case PeriodAllTime, PeriodMonthly, PeriodWeekly, PeriodDaily:
		return true
	}
	return false
}

// ChangeDirection describes rank movement relative to the prior snapshot
type ChangeDirection string

const (
	ChangeUp   ChangeDirection = "up"
	ChangeDown ChangeDirection = "down"
	ChangeSame ChangeDirection = "same"
	ChangeNew  ChangeDirection = "new"
)

// LeaderboardEntry is one row of a point-in-time ranking snapshot for a
// period. Snapshots are fully replaced on recompute, never patched.
type LeaderboardEntry struct {
	ID              uuid.UUID         `gorm:"type:uuid;primary_key" json:"id"`
	UserID          uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_leaderboard_user_period" json:"user_id"`
	User            User              `gorm:"foreignKey:UserID" json:"-"`
	Period          LeaderboardPeriod `gorm:"type:varchar(20);not null;uniqueIndex:idx_leaderboard_user_period;index" json:"period"`
	Rank            int               `gorm:"not null" json:"rank"`
	Points          int               `gorm:"not null" json:"points"`
	Level           int               `gorm:"not null" json:"level"`
	BadgesCount     int               `gorm:"not null;default:0" json:"badges_count"`
	ChangeDirection ChangeDirection   `gorm:"type:varchar(10);not null;default:'new'" json:"change_direction"`
	ChangeValue     int               `gorm:"not null;default:0" json:"change_value"`
	ComputedAt      time.Time         `json:"computed_at"`
	CreatedAt       time.Time         `json:"-"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (e *LeaderboardEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
