package models

import (
	"strings"

	"github.com/google/uuid"
)

// User is the local projection of the platform's user directory. The
// gamification engine only reads identity and display fields from it;
// account management lives in the main platform service.
type User struct {
	Base
	Email      string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Username   string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	FirstName  string     `gorm:"type:varchar(100)" json:"first_name"`
	LastName   string     `gorm:"type:varchar(100)" json:"last_name"`
	AvatarURL  string     `gorm:"type:text" json:"avatar_url"`
	IsAdmin    bool       `gorm:"default:false" json:"-"`
	ReferredBy *uuid.UUID `gorm:"type:uuid" json:"-"`
}

// DisplayName returns the name shown on leaderboards and referral pages.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}
