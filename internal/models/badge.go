package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BadgeRarity indicates how hard a badge is to earn
type BadgeRarity string

const (
	RarityCommon    BadgeRarity = "common"
	RarityUncommon  BadgeRarity = "uncommon"
	RarityRare      BadgeRarity = "rare"
	RarityEpic      BadgeRarity = "epic"
	RarityLegendary BadgeRarity = "legendary"
)

// BadgeCriterion is one measurable requirement for earning a badge,
// e.g. {type: "project_launch", value: 5}.
type BadgeCriterion struct {
	Type  string `json:"type"`
	Value int    `json:"value"`
}

// BadgeCriteria is the list of criteria stored as a jsonb column
type BadgeCriteria []BadgeCriterion

// Value implements the driver.Valuer interface
func (c BadgeCriteria) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface
func (c *BadgeCriteria) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("unsupported type for BadgeCriteria scan")
	}

	return json.Unmarshal(bytes, c)
}

// Badge is an achievement definition from the badge catalog
type Badge struct {
	Base
	Slug           string        `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
	Name           string        `gorm:"type:varchar(100);not null" json:"name"`
	Description    string        `gorm:"type:text" json:"description"`
	Icon           string        `gorm:"type:varchar(100)" json:"icon"`
	Rarity         BadgeRarity   `gorm:"type:varchar(20);not null;default:'common'" json:"rarity"`
	Category       string        `gorm:"type:varchar(50);not null" json:"category"`
	Active         bool          `gorm:"not null;default:true" json:"active"`
	PointsRequired int           `gorm:"not null;default:0" json:"points_required"`
	Criteria       BadgeCriteria `gorm:"type:jsonb" json:"criteria"`
}

// UserBadge tracks one user's progress toward (and ownership of) a badge.
// Created lazily on first evaluation; Earned is a one-way transition.
type UserBadge struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	UserID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_user_badge" json:"user_id"`
	User            User       `gorm:"foreignKey:UserID" json:"-"`
	BadgeID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_user_badge" json:"badge_id"`
	Badge           Badge      `gorm:"foreignKey:BadgeID" json:"badge"`
	Earned          bool       `gorm:"not null;default:false" json:"earned"`
	EarnedDate      *time.Time `json:"earned_date,omitempty"`
	Progress        int        `gorm:"not null;default:0" json:"progress"`
	IsDisplayed     bool       `gorm:"not null;default:true" json:"is_displayed"`
	IsShared        bool       `gorm:"not null;default:false" json:"is_shared"`
	SharedPlatforms JSON       `gorm:"type:jsonb" json:"shared_platforms,omitempty"`
	AwardedBy       *uuid.UUID `gorm:"type:uuid" json:"awarded_by,omitempty"`
	AwardReason     string     `gorm:"type:text" json:"award_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (ub *UserBadge) BeforeCreate(tx *gorm.DB) error {
	if ub.ID == uuid.Nil {
		ub.ID = uuid.New()
	}
	return nil
}
