package referrals

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mentorhub/backend/internal/apperrors"
	"github.com/mentorhub/backend/internal/database"
	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/internal/services/credits"
	"github.com/mentorhub/backend/internal/utils"
	"gorm.io/gorm"
)

// maxCodeAttempts bounds regeneration when a random code collides
const maxCodeAttempts = 5

// ReferralService drives the referral lifecycle: pending is the only
// live state; completed, expired and cancelled are terminal.
type ReferralService struct {
	db      *gorm.DB
	credits *credits.CreditService
}

// NewReferralService creates a referral service
func NewReferralService(db *gorm.DB, creditSvc *credits.CreditService) *ReferralService {
	return &ReferralService{db: db, credits: creditSvc}
}

// GenerateCode creates a pending referral with a fresh unique code. A
// collision regenerates with new randomness instead of bouncing the
// caller.
func (s *ReferralService) GenerateCode(ctx context.Context, referrerID uuid.UUID, source, campaign string) (*models.Referral, error) {
	if referrerID == uuid.Nil {
		return nil, apperrors.InvalidArgument("referrer_id is required")
	}

	var exists int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", referrerID).Count(&exists).Error; err != nil {
		return nil, apperrors.Internal("failed to resolve referrer", err)
	}
	if exists == 0 {
		return nil, apperrors.NotFound("user %s not found", referrerID)
	}

	cfg := s.credits.Config()
	now := time.Now().UTC()

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := utils.GenerateCode(cfg.ReferralCodeLength)
		if err != nil {
			return nil, apperrors.Internal("failed to generate referral code", err)
		}

		referral := models.Referral{
			ReferrerID:     referrerID,
			ReferralCode:   code,
			Status:         models.ReferralPending,
			Source:         source,
			Campaign:       campaign,
			ReferralDate:   now,
			ExpiryDate:     now.AddDate(0, 0, cfg.ReferralExpiryDays),
			ReferrerPoints: cfg.ReferrerPoints,
			ReferredPoints: cfg.ReferredPoints,
		}

		err = s.db.WithContext(ctx).Create(&referral).Error
		if err == nil {
			return &referral, nil
		}
		if !database.IsUniqueViolation(err) {
			return nil, apperrors.Internal("failed to create referral", err)
		}
		log.Printf("referral code collision on %q, regenerating", code)
	}

	return nil, apperrors.Internal("exhausted referral code attempts", nil)
}

// Validation is the read-only answer for a referral code
type Validation struct {
	Valid          bool   `json:"valid"`
	ReferrerName   string `json:"referrer_name,omitempty"`
	ReferrerAvatar string `json:"referrer_avatar,omitempty"`
	Campaign       string `json:"campaign,omitempty"`
	Source         string `json:"source,omitempty"`
}

// Validate checks whether a code can still be redeemed. A pending
// referral discovered past its expiry is marked expired on the spot.
func (s *ReferralService) Validate(ctx context.Context, code string) (*Validation, error) {
	referral, err := s.byCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if referral.Status == models.ReferralPending && s.expireIfOverdue(ctx, referral) {
		return nil, apperrors.Conflict("referral code has expired")
	}
	if referral.Status != models.ReferralPending {
		return nil, apperrors.Conflict("referral code is %s", referral.Status)
	}

	var referrer models.User
	if err := s.db.WithContext(ctx).First(&referrer, "id = ?", referral.ReferrerID).Error; err != nil {
		return nil, apperrors.Internal("failed to load referrer", err)
	}

	return &Validation{
		Valid:          true,
		ReferrerName:   referrer.DisplayName(),
		ReferrerAvatar: referrer.AvatarURL,
		Campaign:       referral.Campaign,
		Source:         referral.Source,
	}, nil
}

// ProcessResult reports the payouts of a completed referral
type ProcessResult struct {
	Referral       *models.Referral `json:"referral"`
	ReferrerPoints int              `json:"referrer_points"`
	ReferredPoints int              `json:"referred_points"`
}

// Process completes a pending referral for the newly signed-up user and
// pays both parties exactly once. The pending→completed transition is a
// single conditional update, so of any concurrent callers exactly one
// succeeds and the rest get Conflict.
func (s *ReferralService) Process(ctx context.Context, code string, newUserID uuid.UUID) (*ProcessResult, error) {
	if newUserID == uuid.Nil {
		return nil, apperrors.InvalidArgument("user_id is required")
	}

	referral, err := s.byCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if referral.ReferrerID == newUserID {
		return nil, apperrors.InvalidArgument("self-referral is not allowed")
	}

	var exists int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", newUserID).Count(&exists).Error; err != nil {
		return nil, apperrors.Internal("failed to resolve user", err)
	}
	if exists == 0 {
		return nil, apperrors.NotFound("user %s not found", newUserID)
	}

	if referral.Status == models.ReferralPending && s.expireIfOverdue(ctx, referral) {
		return nil, apperrors.Conflict("referral code has expired")
	}
	if referral.Status != models.ReferralPending {
		return nil, apperrors.Conflict("referral is %s", referral.Status)
	}

	now := time.Now().UTC()
	err = s.credits.WithRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Referral{}).
				Where("id = ? AND status = ?", referral.ID, models.ReferralPending).
				Updates(map[string]interface{}{
					"status":               models.ReferralCompleted,
					"referred_id":          newUserID,
					"completion_date":      now,
					"referrer_rewarded_at": now,
					"referred_rewarded_at": now,
					"updated_at":           now,
				})
			if res.Error != nil {
				return apperrors.Internal("failed to complete referral", res.Error)
			}
			if res.RowsAffected == 0 {
				return apperrors.Conflict("referral is no longer pending")
			}

			if _, err := s.credits.AwardPointsTx(tx, credits.AwardInput{
				UserID:        referral.ReferrerID,
				ActivityType:  models.ActivityReferralSuccess,
				Points:        referral.ReferrerPoints,
				Description:   "Successful referral",
				RelatedUserID: &newUserID,
				Metadata:      models.JSON{"referral_code": referral.ReferralCode},
				Source:        "referrals",
			}); err != nil {
				return err
			}

			if _, err := s.credits.AwardPointsTx(tx, credits.AwardInput{
				UserID:        newUserID,
				ActivityType:  models.ActivityReferralSignup,
				Points:        referral.ReferredPoints,
				Description:   "Joined through a referral",
				RelatedUserID: &referral.ReferrerID,
				Metadata:      models.JSON{"referral_code": referral.ReferralCode},
				Source:        "referrals",
			}); err != nil {
				return err
			}

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.credits.TouchLeaderboard(ctx, referral.ReferrerID, newUserID)

	referral.Status = models.ReferralCompleted
	referral.ReferredID = &newUserID
	referral.CompletionDate = &now
	referral.ReferrerRewardedAt = &now
	referral.ReferredRewardedAt = &now

	return &ProcessResult{
		Referral:       referral,
		ReferrerPoints: referral.ReferrerPoints,
		ReferredPoints: referral.ReferredPoints,
	}, nil
}

// Cancel voids a pending referral. Only the referrer may cancel.
func (s *ReferralService) Cancel(ctx context.Context, referralID, callerID uuid.UUID) error {
	var referral models.Referral
	if err := s.db.WithContext(ctx).First(&referral, "id = ?", referralID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("referral %s not found", referralID)
		}
		return apperrors.Internal("failed to load referral", err)
	}

	if referral.ReferrerID != callerID {
		return apperrors.Forbidden("only the referrer can cancel a referral")
	}

	res := s.db.WithContext(ctx).Model(&models.Referral{}).
		Where("id = ? AND status = ?", referralID, models.ReferralPending).
		Updates(map[string]interface{}{
			"status":     models.ReferralCancelled,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return apperrors.Internal("failed to cancel referral", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.Conflict("referral is %s", referral.Status)
	}
	return nil
}

// GetMyReferrals lists a referrer's referrals, newest first
func (s *ReferralService) GetMyReferrals(ctx context.Context, referrerID uuid.UUID) ([]models.Referral, error) {
	var referrals []models.Referral
	if err := s.db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("created_at DESC").
		Find(&referrals).Error; err != nil {
		return nil, apperrors.Internal("failed to load referrals", err)
	}
	return referrals, nil
}

// ExpireOverdue flips every pending referral past its expiry date to
// expired. Run periodically so listings stay consistent between reads.
func (s *ReferralService) ExpireOverdue(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Referral{}).
		Where("status = ? AND expiry_date < ?", models.ReferralPending, time.Now().UTC()).
		Updates(map[string]interface{}{
			"status":     models.ReferralExpired,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, apperrors.Internal("failed to expire referrals", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *ReferralService) byCode(ctx context.Context, code string) (*models.Referral, error) {
	if code == "" {
		return nil, apperrors.InvalidArgument("referral code is required")
	}

	var referral models.Referral
	if err := s.db.WithContext(ctx).Where("referral_code = ?", code).First(&referral).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("referral code not found")
		}
		return nil, apperrors.Internal("failed to load referral", err)
	}
	return &referral, nil
}

// expireIfOverdue lazily marks an overdue pending referral expired.
// Returns true when the referral is (now) expired.
func (s *ReferralService) expireIfOverdue(ctx context.Context, referral *models.Referral) bool {
	if referral.ExpiryDate.After(time.Now().UTC()) {
		return false
	}

	res := s.db.WithContext(ctx).Model(&models.Referral{}).
		Where("id = ? AND status = ?", referral.ID, models.ReferralPending).
		Update("status", models.ReferralExpired)
	if res.Error != nil {
		log.Printf("failed to lazily expire referral %s: %v", referral.ID, res.Error)
	}
	referral.Status = models.ReferralExpired
	return true
}
