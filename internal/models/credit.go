package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionType classifies a credit transaction
type TransactionType string

const (
	TransactionEarned  TransactionType = "earned"
	TransactionSpent   TransactionType = "spent"
	TransactionBonus   TransactionType = "bonus"
	TransactionPenalty TransactionType = "penalty"
)

// Activity types the engine knows how to count. The column itself is an
// open string so new activities can award points before a counter exists.
const (
	ActivityProjectLaunch     = "project_launch"
	ActivityMentorshipSession = "mentorship_session"
	ActivityOpportunityShare  = "opportunity_share"
	ActivitySocialShare       = "social_share"
	ActivityChallengeWon      = "challenge_won"
	ActivityReferralSuccess   = "referral_success"
	ActivityReferralSignup    = "referral_signup"
	ActivityBadgeEarned       = "badge_earned"
	ActivityBadgeShared       = "badge_shared"
	ActivityLevelUp           = "level_up"
)

// CreditTransaction is one immutable entry in the point ledger. Rows are
// only ever inserted; there is no update or delete path anywhere in the
// codebase.
type CreditTransaction struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	UserID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	User            User            `gorm:"foreignKey:UserID" json:"-"`
	TransactionType TransactionType `gorm:"type:varchar(20);not null" json:"transaction_type"`
	ActivityType    string          `gorm:"type:varchar(50);not null;index" json:"activity_type"`
	Points          int             `gorm:"not null" json:"points"`
	Description     string          `gorm:"type:text;not null" json:"description"`
	ProjectID       *uuid.UUID      `gorm:"type:uuid" json:"project_id,omitempty"`
	RelatedUserID   *uuid.UUID      `gorm:"type:uuid" json:"related_user_id,omitempty"`
	OpportunityID   *uuid.UUID      `gorm:"type:uuid" json:"opportunity_id,omitempty"`
	BadgeID         *uuid.UUID      `gorm:"type:uuid" json:"badge_id,omitempty"`
	Metadata        JSON            `gorm:"type:jsonb" json:"metadata,omitempty"`
	Source          string          `gorm:"type:varchar(50)" json:"source"`
	IdempotencyKey  *string         `gorm:"type:varchar(100);uniqueIndex" json:"idempotency_key,omitempty"`
	LevelBefore     int             `gorm:"not null" json:"level_before"`
	CreatedAt       time.Time       `json:"created_at"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (t *CreditTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// CreditSummary is the per-user derived account aggregate. TotalPoints
// must equal the sum of the user's ledger rows at every observable
// instant; Version guards concurrent read-modify-write cycles.
type CreditSummary struct {
	ID                  uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID              uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	User                User      `gorm:"foreignKey:UserID" json:"-"`
	TotalPoints         int       `gorm:"not null;default:0" json:"total_points"`
	CurrentLevel        int       `gorm:"not null;default:1" json:"current_level"`
	LevelProgress       int       `gorm:"not null;default:0" json:"level_progress"`
	PointsToNextLevel   int       `gorm:"not null;default:0" json:"points_to_next_level"`
	CurrentStreak       int       `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak       int       `gorm:"not null;default:0" json:"longest_streak"`
	LastActivityDate    time.Time `json:"last_activity_date"`
	DailyPoints         int       `gorm:"not null;default:0" json:"daily_points"`
	WeeklyPoints        int       `gorm:"not null;default:0" json:"weekly_points"`
	WeekStart           time.Time `json:"-"`
	MonthlyPoints       int       `gorm:"not null;default:0" json:"monthly_points"`
	MonthStart          time.Time `json:"-"`
	TotalContributions  int       `gorm:"not null;default:0" json:"total_contributions"`
	ProjectsLaunched    int       `gorm:"not null;default:0" json:"projects_launched"`
	MentorshipSessions  int       `gorm:"not null;default:0" json:"mentorship_sessions"`
	OpportunitiesShared int       `gorm:"not null;default:0" json:"opportunities_shared"`
	SocialShares        int       `gorm:"not null;default:0" json:"social_shares"`
	ChallengesWon       int       `gorm:"not null;default:0" json:"challenges_won"`
	ReferralsSuccessful int       `gorm:"not null;default:0" json:"referrals_successful"`
	Version             int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (s *CreditSummary) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
