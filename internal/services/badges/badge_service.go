package badges

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mentorhub/backend/internal/apperrors"
	"github.com/mentorhub/backend/internal/database"
	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/internal/services/credits"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// BadgeService evaluates badge criteria and awards badges
type BadgeService struct {
	db       *gorm.DB
	credits  *credits.CreditService
	registry *CriteriaRegistry

	// Per-user limiters for the share bonus so repeated shares of the
	// same badge cannot farm points.
	shareMu       sync.Mutex
	shareLimiters map[uuid.UUID]*rate.Limiter
}

// NewBadgeService creates a badge service backed by the credit service
func NewBadgeService(db *gorm.DB, creditSvc *credits.CreditService) *BadgeService {
	return &BadgeService{
		db:            db,
		credits:       creditSvc,
		registry:      NewCriteriaRegistry(),
		shareLimiters: make(map[uuid.UUID]*rate.Limiter),
	}
}

// Registry exposes the criterion registry so feature modules can add
// criterion types without touching the evaluator.
func (s *BadgeService) Registry() *CriteriaRegistry {
	return s.registry
}

// ListBadges returns the badge catalog, active badges only unless asked
func (s *BadgeService) ListBadges(ctx context.Context, includeInactive bool) ([]models.Badge, error) {
	q := s.db.WithContext(ctx).Order("category, name")
	if !includeInactive {
		q = q.Where("active = ?", true)
	}

	var badges []models.Badge
	if err := q.Find(&badges).Error; err != nil {
		return nil, apperrors.Internal("failed to load badge catalog", err)
	}
	return badges, nil
}

// GetUserBadges returns the user's badge rows with catalog data preloaded
func (s *BadgeService) GetUserBadges(ctx context.Context, userID uuid.UUID) ([]models.UserBadge, error) {
	var userBadges []models.UserBadge
	if err := s.db.WithContext(ctx).Preload("Badge").
		Where("user_id = ?", userID).
		Order("earned DESC, progress DESC").
		Find(&userBadges).Error; err != nil {
		return nil, apperrors.Internal("failed to load user badges", err)
	}
	return userBadges, nil
}

// BadgeProgress is the evaluation of one badge for one user
type BadgeProgress struct {
	Badge    models.Badge        `json:"badge"`
	Earned   bool                `json:"earned"`
	Progress int                 `json:"progress"`
	Criteria []CriterionProgress `json:"criteria"`
}

// EvaluateProgress scores every criterion of a badge against the user's
// account summary and refreshes the stored progress. The UserBadge row is
// created lazily on first evaluation.
func (s *BadgeService) EvaluateProgress(ctx context.Context, userID, badgeID uuid.UUID) (*BadgeProgress, error) {
	badge, err := s.getBadge(ctx, badgeID)
	if err != nil {
		return nil, err
	}

	summary, err := s.credits.GetSummary(ctx, userID)
	if err != nil {
		return nil, err
	}

	criteria := s.registry.Evaluate(summary, badge.Criteria)
	overall := OverallProgress(criteria)

	userBadge, err := s.refreshProgress(ctx, userID, badge.ID, overall)
	if err != nil {
		return nil, err
	}

	result := &BadgeProgress{
		Badge:    *badge,
		Earned:   userBadge.Earned,
		Progress: overall,
		Criteria: criteria,
	}
	if userBadge.Earned {
		// Earned is one-way; evaluation never walks progress back.
		result.Progress = 100
	}
	return result, nil
}

// Award marks the badge earned and grants its point reward in one
// transaction. Re-awarding an earned badge is rejected, not absorbed.
func (s *BadgeService) Award(ctx context.Context, userID, badgeID, awardedBy uuid.UUID, reason string) (*models.UserBadge, error) {
	badge, err := s.getBadge(ctx, badgeID)
	if err != nil {
		return nil, err
	}
	if !badge.Active {
		return nil, apperrors.InvalidArgument("badge %s is not active", badge.Slug)
	}

	var exists int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&exists).Error; err != nil {
		return nil, apperrors.Internal("failed to resolve user", err)
	}
	if exists == 0 {
		return nil, apperrors.NotFound("user %s not found", userID)
	}

	var userBadge models.UserBadge
	err = s.credits.WithRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ub, err := s.markEarnedTx(tx, userID, badge.ID, awardedBy, reason)
			if err != nil {
				return err
			}

			if badge.PointsRequired > 0 {
				if _, err := s.credits.AwardPointsTx(tx, credits.AwardInput{
					UserID:       userID,
					ActivityType: models.ActivityBadgeEarned,
					Points:       badge.PointsRequired,
					Description:  fmt.Sprintf("Earned badge: %s", badge.Name),
					BadgeID:      &badge.ID,
					Source:       "badges",
				}); err != nil {
					return err
				}
			}

			userBadge = *ub
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.credits.TouchLeaderboard(ctx, userID)

	userBadge.Badge = *badge
	return &userBadge, nil
}

// ShareResult reports whether the share earned its bonus
type ShareResult struct {
	UserBadge    *models.UserBadge `json:"user_badge"`
	BonusAwarded bool              `json:"bonus_awarded"`
	BonusPoints  int               `json:"bonus_points"`
}

// Share records a social share of an earned badge and grants the fixed
// share bonus, capped per user per day.
func (s *BadgeService) Share(ctx context.Context, userID, badgeID uuid.UUID, platforms []string) (*ShareResult, error) {
	if len(platforms) == 0 {
		return nil, apperrors.InvalidArgument("at least one platform is required")
	}

	var userBadge models.UserBadge
	err := s.db.WithContext(ctx).Where("user_id = ? AND badge_id = ?", userID, badgeID).First(&userBadge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("badge not found for user")
		}
		return nil, apperrors.Internal("failed to load user badge", err)
	}
	if !userBadge.Earned {
		return nil, apperrors.Conflict("badge must be earned before it can be shared")
	}

	now := time.Now().UTC()
	shared := models.JSON{"platforms": platforms, "shared_at": now.Format(time.RFC3339)}
	if err := s.db.WithContext(ctx).Model(&userBadge).Updates(map[string]interface{}{
		"is_shared":        true,
		"shared_platforms": shared,
		"updated_at":       now,
	}).Error; err != nil {
		return nil, apperrors.Internal("failed to record badge share", err)
	}
	userBadge.IsShared = true
	userBadge.SharedPlatforms = shared

	result := &ShareResult{UserBadge: &userBadge}

	cfg := s.credits.Config()
	if cfg.ShareBonusPoints > 0 && s.allowShareBonus(userID, cfg.SharesPerDay) {
		if _, err := s.credits.AwardPoints(ctx, credits.AwardInput{
			UserID:       userID,
			ActivityType: models.ActivityBadgeShared,
			Points:       cfg.ShareBonusPoints,
			Description:  "Shared a badge",
			BadgeID:      &badgeID,
			Metadata:     models.JSON{"platforms": platforms},
			Source:       "badges",
		}); err != nil {
			return nil, err
		}
		result.BonusAwarded = true
		result.BonusPoints = cfg.ShareBonusPoints
	}

	return result, nil
}

// allowShareBonus rate-limits share rewards to sharesPerDay per user
func (s *BadgeService) allowShareBonus(userID uuid.UUID, sharesPerDay int) bool {
	if sharesPerDay <= 0 {
		return false
	}

	s.shareMu.Lock()
	limiter, ok := s.shareLimiters[userID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(24*time.Hour/time.Duration(sharesPerDay)), sharesPerDay)
		s.shareLimiters[userID] = limiter
	}
	s.shareMu.Unlock()

	return limiter.Allow()
}

func (s *BadgeService) getBadge(ctx context.Context, badgeID uuid.UUID) (*models.Badge, error) {
	var badge models.Badge
	if err := s.db.WithContext(ctx).First(&badge, "id = ?", badgeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("badge %s not found", badgeID)
		}
		return nil, apperrors.Internal("failed to load badge", err)
	}
	return &badge, nil
}

// refreshProgress upserts the lazily-created UserBadge row with the
// latest progress. Earned rows are left untouched.
func (s *BadgeService) refreshProgress(ctx context.Context, userID, badgeID uuid.UUID, progress int) (*models.UserBadge, error) {
	var userBadge models.UserBadge
	err := s.db.WithContext(ctx).Where("user_id = ? AND badge_id = ?", userID, badgeID).First(&userBadge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		userBadge = models.UserBadge{
			UserID:   userID,
			BadgeID:  badgeID,
			Progress: progress,
		}
		if cerr := s.db.WithContext(ctx).Create(&userBadge).Error; cerr != nil {
			if database.IsUniqueViolation(cerr) {
				// Another evaluation created it; reread below.
				err = s.db.WithContext(ctx).Where("user_id = ? AND badge_id = ?", userID, badgeID).First(&userBadge).Error
				if err != nil {
					return nil, apperrors.Internal("failed to load user badge", err)
				}
			} else {
				return nil, apperrors.Internal("failed to create user badge", cerr)
			}
		} else {
			return &userBadge, nil
		}
	} else if err != nil {
		return nil, apperrors.Internal("failed to load user badge", err)
	}

	if !userBadge.Earned && userBadge.Progress != progress {
		if err := s.db.WithContext(ctx).Model(&models.UserBadge{}).
			Where("id = ? AND earned = ?", userBadge.ID, false).
			Update("progress", progress).Error; err != nil {
			return nil, apperrors.Internal("failed to update badge progress", err)
		}
		userBadge.Progress = progress
	}

	return &userBadge, nil
}

// markEarnedTx flips the one-way earned transition. The guarded update
// plus the unique (user_id, badge_id) index make duplicate awards lose
// with Conflict regardless of interleaving.
func (s *BadgeService) markEarnedTx(tx *gorm.DB, userID, badgeID, awardedBy uuid.UUID, reason string) (*models.UserBadge, error) {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"earned":       true,
		"earned_date":  now,
		"progress":     100,
		"awarded_by":   awardedBy,
		"award_reason": reason,
		"updated_at":   now,
	}

	res := tx.Model(&models.UserBadge{}).
		Where("user_id = ? AND badge_id = ? AND earned = ?", userID, badgeID, false).
		Updates(updates)
	if res.Error != nil {
		return nil, apperrors.Internal("failed to mark badge earned", res.Error)
	}

	if res.RowsAffected == 0 {
		var existing models.UserBadge
		err := tx.Where("user_id = ? AND badge_id = ?", userID, badgeID).First(&existing).Error
		if err == nil {
			return nil, apperrors.Conflict("badge already earned")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Internal("failed to load user badge", err)
		}

		userBadge := models.UserBadge{
			UserID:      userID,
			BadgeID:     badgeID,
			Earned:      true,
			EarnedDate:  &now,
			Progress:    100,
			AwardedBy:   &awardedBy,
			AwardReason: reason,
		}
		if err := tx.Create(&userBadge).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return nil, apperrors.Conflict("badge already earned")
			}
			return nil, apperrors.Internal("failed to create user badge", err)
		}
		return &userBadge, nil
	}

	var userBadge models.UserBadge
	if err := tx.Where("user_id = ? AND badge_id = ?", userID, badgeID).First(&userBadge).Error; err != nil {
		return nil, apperrors.Internal("failed to reload user badge", err)
	}
	return &userBadge, nil
}
