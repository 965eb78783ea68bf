package credits

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/mentorhub/backend/internal/apperrors"
	"github.com/mentorhub/backend/internal/config"
	"github.com/mentorhub/backend/internal/database"
	"github.com/mentorhub/backend/internal/models"
	"gorm.io/gorm"
)

// maxAwardAttempts bounds optimistic-lock retries before surfacing Conflict
const maxAwardAttempts = 3

// errVersionConflict signals a lost optimistic-lock race; the whole
// transaction is retried from a fresh read.
var errVersionConflict = errors.New("credit summary version conflict")

// LeaderboardNotifier schedules a ranking recompute after a points change.
// The credits service never recomputes rankings inline.
type LeaderboardNotifier interface {
	Touch(ctx context.Context, userIDs ...uuid.UUID) error
}

// CreditService owns the point ledger and the derived account summaries
type CreditService struct {
	db       *gorm.DB
	levels   *LevelTable
	cfg      config.GamificationConfig
	notifier LeaderboardNotifier
}

// NewCreditService creates a credit service with an injected level table
func NewCreditService(db *gorm.DB, cfg config.GamificationConfig) (*CreditService, error) {
	levels, err := NewLevelTable(cfg.Levels)
	if err != nil {
		return nil, fmt.Errorf("invalid level configuration: %w", err)
	}
	return &CreditService{db: db, levels: levels, cfg: cfg}, nil
}

// SetNotifier wires the leaderboard dependency after construction
func (s *CreditService) SetNotifier(n LeaderboardNotifier) {
	s.notifier = n
}

// Levels exposes the level table for read-only derivations
func (s *CreditService) Levels() *LevelTable {
	return s.levels
}

// Config returns the gamification configuration this service was built with
func (s *CreditService) Config() config.GamificationConfig {
	return s.cfg
}

// AwardInput describes one point-affecting event
type AwardInput struct {
	UserID          uuid.UUID
	ActivityType    string
	Points          int
	Description     string
	TransactionType models.TransactionType
	ProjectID       *uuid.UUID
	RelatedUserID   *uuid.UUID
	OpportunityID   *uuid.UUID
	BadgeID         *uuid.UUID
	Metadata        models.JSON
	Source          string
	IdempotencyKey  string
}

// AwardResult carries the post-mutation state of an award
type AwardResult struct {
	Entry        *models.CreditTransaction  `json:"entry"`
	Bonuses      []models.CreditTransaction `json:"bonuses,omitempty"`
	Summary      *models.CreditSummary      `json:"summary"`
	LevelUp      bool                       `json:"level_up"`
	Deduplicated bool                       `json:"-"`
}

// AwardPoints appends a ledger entry and updates the account summary
// atomically. Level-ups append one bonus entry per level crossed, folded
// into the same update. Concurrent awards for one user are serialized by
// an optimistic version check with bounded retry.
func (s *CreditService) AwardPoints(ctx context.Context, input AwardInput) (*AwardResult, error) {
	if err := s.validate(&input); err != nil {
		return nil, err
	}

	var exists int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", input.UserID).Count(&exists).Error; err != nil {
		return nil, apperrors.Internal("failed to resolve user", err)
	}
	if exists == 0 {
		return nil, apperrors.NotFound("user %s not found", input.UserID)
	}

	var result *AwardResult
	err := s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			r, err := s.AwardPointsTx(tx, input)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.touchLeaderboard(ctx, input.UserID)
	return result, nil
}

// AwardPointsTx runs the award inside an existing transaction so callers
// (badge awards, referral completion) can combine it with their own
// writes. The caller owns commit and rollback; leaderboard touches are
// also the caller's responsibility.
func (s *CreditService) AwardPointsTx(tx *gorm.DB, input AwardInput) (*AwardResult, error) {
	now := time.Now().UTC()

	// Retried upstream deliveries carrying the same key return the
	// original entry instead of double-awarding.
	if input.IdempotencyKey != "" {
		var existing models.CreditTransaction
		err := tx.Where("idempotency_key = ?", input.IdempotencyKey).First(&existing).Error
		if err == nil {
			summary, serr := s.loadSummaryTx(tx, input.UserID)
			if serr != nil {
				return nil, serr
			}
			return &AwardResult{Entry: &existing, Summary: summary, Deduplicated: true}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Internal("failed to check idempotency key", err)
		}
	}

	summary, err := s.loadOrCreateSummaryTx(tx, input.UserID)
	if err != nil {
		return nil, err
	}
	priorVersion := summary.Version

	rolloverPeriods(summary, now)
	advanceStreak(summary, now)

	levelBefore := summary.CurrentLevel

	entry := models.CreditTransaction{
		UserID:          input.UserID,
		TransactionType: input.TransactionType,
		ActivityType:    input.ActivityType,
		Points:          input.Points,
		Description:     input.Description,
		ProjectID:       input.ProjectID,
		RelatedUserID:   input.RelatedUserID,
		OpportunityID:   input.OpportunityID,
		BadgeID:         input.BadgeID,
		Metadata:        input.Metadata,
		Source:          input.Source,
		LevelBefore:     levelBefore,
		CreatedAt:       now,
	}
	if input.IdempotencyKey != "" {
		key := input.IdempotencyKey
		entry.IdempotencyKey = &key
	}

	if err := tx.Create(&entry).Error; err != nil {
		if database.IsUniqueViolation(err) {
			// Lost an idempotency race; rerun to pick up the winner's entry.
			return nil, errVersionConflict
		}
		return nil, apperrors.Internal("failed to append ledger entry", err)
	}

	summary.TotalPoints += input.Points
	addPeriodPoints(summary, input.Points)
	if input.Points > 0 {
		summary.TotalContributions++
	}
	bumpActivityCounter(summary, input.ActivityType)

	// Grant the configured bonus for every level actually crossed. Bonuses
	// fold into the same total, so a bonus that itself crosses a threshold
	// grants that level's bonus too.
	var bonuses []models.CreditTransaction
	current := levelBefore
	info := s.levels.LevelFor(summary.TotalPoints)
	for info.Level > current {
		for lvl := current + 1; lvl <= info.Level; lvl++ {
			bonus := s.levels.BonusFor(lvl)
			if bonus <= 0 {
				continue
			}
			bonuses = append(bonuses, models.CreditTransaction{
				UserID:          input.UserID,
				TransactionType: models.TransactionBonus,
				ActivityType:    models.ActivityLevelUp,
				Points:          bonus,
				Description:     fmt.Sprintf("Level %d bonus", lvl),
				Source:          "system",
				LevelBefore:     current,
				CreatedAt:       now,
			})
			summary.TotalPoints += bonus
			addPeriodPoints(summary, bonus)
		}
		current = info.Level
		info = s.levels.LevelFor(summary.TotalPoints)
	}

	if len(bonuses) > 0 {
		if err := tx.Create(&bonuses).Error; err != nil {
			return nil, apperrors.Internal("failed to append bonus entries", err)
		}
	}

	summary.CurrentLevel = info.Level
	summary.LevelProgress = info.Progress
	summary.PointsToNextLevel = info.PointsToNext
	summary.LastActivityDate = now
	summary.Version = priorVersion + 1
	summary.UpdatedAt = now

	res := tx.Model(&models.CreditSummary{}).
		Where("user_id = ? AND version = ?", input.UserID, priorVersion).
		Updates(summaryUpdates(summary))
	if res.Error != nil {
		return nil, apperrors.Internal("failed to update credit summary", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errVersionConflict
	}

	return &AwardResult{
		Entry:   &entry,
		Bonuses: bonuses,
		Summary: summary,
		LevelUp: summary.CurrentLevel > levelBefore,
	}, nil
}

// WithRetry reruns fn while it loses optimistic-lock races, up to the
// bounded attempt budget, then surfaces Conflict. Exported so composing
// services (badges, referrals) share the same retry policy.
func (s *CreditService) WithRetry(ctx context.Context, fn func() error) error {
	return s.withRetry(ctx, fn)
}

func (s *CreditService) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxAwardAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return apperrors.Internal("award cancelled", ctx.Err())
			case <-time.After(retryBackoff(attempt)):
			}
		}

		err = fn()
		if err == nil || !errors.Is(err, errVersionConflict) {
			return err
		}
		log.Printf("credit summary contention, retrying (attempt %d)", attempt+1)
	}
	return apperrors.Conflict("account is being updated concurrently, try again")
}

// retryBackoff returns a jittered backoff for the given attempt
func retryBackoff(attempt int) time.Duration {
	base := time.Duration(attempt) * 20 * time.Millisecond
	jitter := time.Duration(rand.Int63n(int64(15 * time.Millisecond)))
	return base + jitter
}

// GetSummary returns the account summary for a user, synthesizing a
// level-1 zero summary for users who have not earned anything yet.
func (s *CreditService) GetSummary(ctx context.Context, userID uuid.UUID) (*models.CreditSummary, error) {
	var summary models.CreditSummary
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&summary).Error
	if err == nil {
		return &summary, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Internal("failed to load credit summary", err)
	}

	var exists int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&exists).Error; err != nil {
		return nil, apperrors.Internal("failed to resolve user", err)
	}
	if exists == 0 {
		return nil, apperrors.NotFound("user %s not found", userID)
	}

	info := s.levels.LevelFor(0)
	return &models.CreditSummary{
		UserID:            userID,
		CurrentLevel:      info.Level,
		LevelProgress:     info.Progress,
		PointsToNextLevel: info.PointsToNext,
	}, nil
}

// GetHistory returns a page of the user's ledger, newest first
func (s *CreditService) GetHistory(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]models.CreditTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.CreditTransaction{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, apperrors.Internal("failed to count transactions", err)
	}

	var entries []models.CreditTransaction
	offset := (page - 1) * pageSize
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Offset(offset).Limit(pageSize).
		Find(&entries).Error; err != nil {
		return nil, 0, apperrors.Internal("failed to load transactions", err)
	}

	return entries, total, nil
}

// TouchLeaderboard asks the notifier for a recompute; used by composing
// services after their own transactions commit.
func (s *CreditService) TouchLeaderboard(ctx context.Context, userIDs ...uuid.UUID) {
	s.touchLeaderboard(ctx, userIDs...)
}

func (s *CreditService) touchLeaderboard(ctx context.Context, userIDs ...uuid.UUID) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Touch(ctx, userIDs...); err != nil {
		log.Printf("failed to schedule leaderboard recompute: %v", err)
	}
}

func (s *CreditService) validate(input *AwardInput) error {
	if input.UserID == uuid.Nil {
		return apperrors.InvalidArgument("user_id is required")
	}
	if input.ActivityType == "" {
		return apperrors.InvalidArgument("activity_type is required")
	}
	if input.Points == 0 {
		// Callers may omit points for activities with a configured
		// default value.
		pts, ok := s.cfg.ActivityPoints[input.ActivityType]
		if !ok || pts == 0 {
			return apperrors.InvalidArgument("points must be non-zero")
		}
		input.Points = pts
	}
	if input.Description == "" {
		return apperrors.InvalidArgument("description is required")
	}

	switch input.TransactionType {
	case "":
		if input.Points > 0 {
			input.TransactionType = models.TransactionEarned
		} else {
			input.TransactionType = models.TransactionPenalty
		}
	case models.TransactionEarned, models.TransactionSpent, models.TransactionBonus, models.TransactionPenalty:
	default:
		return apperrors.InvalidArgument("unknown transaction type %q", input.TransactionType)
	}

	if input.Source == "" {
		input.Source = "api"
	}
	return nil
}

func (s *CreditService) loadSummaryTx(tx *gorm.DB, userID uuid.UUID) (*models.CreditSummary, error) {
	var summary models.CreditSummary
	if err := tx.Where("user_id = ?", userID).First(&summary).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			info := s.levels.LevelFor(0)
			return &models.CreditSummary{UserID: userID, CurrentLevel: info.Level}, nil
		}
		return nil, apperrors.Internal("failed to load credit summary", err)
	}
	return &summary, nil
}

func (s *CreditService) loadOrCreateSummaryTx(tx *gorm.DB, userID uuid.UUID) (*models.CreditSummary, error) {
	var summary models.CreditSummary
	err := tx.Where("user_id = ?", userID).First(&summary).Error
	if err == nil {
		return &summary, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Internal("failed to load credit summary", err)
	}

	info := s.levels.LevelFor(0)
	summary = models.CreditSummary{
		UserID:            userID,
		CurrentLevel:      info.Level,
		LevelProgress:     info.Progress,
		PointsToNextLevel: info.PointsToNext,
	}
	if err := tx.Create(&summary).Error; err != nil {
		if database.IsUniqueViolation(err) {
			// Another writer created it first; retry picks it up.
			return nil, errVersionConflict
		}
		return nil, apperrors.Internal("failed to create credit summary", err)
	}
	return &summary, nil
}

// summaryUpdates builds the full column map for the guarded update. Every
// mutable column is written so the row matches the in-memory struct.
func summaryUpdates(s *models.CreditSummary) map[string]interface{} {
	return map[string]interface{}{
		"total_points":         s.TotalPoints,
		"current_level":        s.CurrentLevel,
		"level_progress":       s.LevelProgress,
		"points_to_next_level": s.PointsToNextLevel,
		"current_streak":       s.CurrentStreak,
		"longest_streak":       s.LongestStreak,
		"last_activity_date":   s.LastActivityDate,
		"daily_points":         s.DailyPoints,
		"weekly_points":        s.WeeklyPoints,
		"week_start":           s.WeekStart,
		"monthly_points":       s.MonthlyPoints,
		"month_start":          s.MonthStart,
		"total_contributions":  s.TotalContributions,
		"projects_launched":    s.ProjectsLaunched,
		"mentorship_sessions":  s.MentorshipSessions,
		"opportunities_shared": s.OpportunitiesShared,
		"social_shares":        s.SocialShares,
		"challenges_won":       s.ChallengesWon,
		"referrals_successful": s.ReferralsSuccessful,
		"version":              s.Version,
		"updated_at":           s.UpdatedAt,
	}
}

// rolloverPeriods zeroes any period counter whose window has ended
func rolloverPeriods(s *models.CreditSummary, now time.Time) {
	if !sameDay(s.LastActivityDate, now) {
		s.DailyPoints = 0
	}

	ws := weekStart(now)
	if !s.WeekStart.Equal(ws) {
		s.WeeklyPoints = 0
		s.WeekStart = ws
	}

	ms := monthStart(now)
	if !s.MonthStart.Equal(ms) {
		s.MonthlyPoints = 0
		s.MonthStart = ms
	}
}

func addPeriodPoints(s *models.CreditSummary, points int) {
	s.DailyPoints += points
	s.WeeklyPoints += points
	s.MonthlyPoints += points
}

// advanceStreak extends the daily activity streak: consecutive days grow
// it, a gap resets it, repeat activity on the same day leaves it alone.
func advanceStreak(s *models.CreditSummary, now time.Time) {
	switch {
	case s.LastActivityDate.IsZero():
		s.CurrentStreak = 1
	case sameDay(s.LastActivityDate, now):
		if s.CurrentStreak == 0 {
			s.CurrentStreak = 1
		}
	case sameDay(s.LastActivityDate, now.AddDate(0, 0, -1)):
		s.CurrentStreak++
	default:
		s.CurrentStreak = 1
	}

	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
}

func bumpActivityCounter(s *models.CreditSummary, activityType string) {
	switch activityType {
	case models.ActivityProjectLaunch:
		s.ProjectsLaunched++
	case models.ActivityMentorshipSession:
		s.MentorshipSessions++
	case models.ActivityOpportunityShare:
		s.OpportunitiesShared++
	case models.ActivitySocialShare, models.ActivityBadgeShared:
		s.SocialShares++
	case models.ActivityChallengeWon:
		s.ChallengesWon++
	case models.ActivityReferralSuccess:
		s.ReferralsSuccessful++
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func weekStart(t time.Time) time.Time {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday closes the week
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -(weekday - 1))
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
