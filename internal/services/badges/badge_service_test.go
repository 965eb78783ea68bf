package badges

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/mentorhub/backend/internal/apperrors"
	"github.com/mentorhub/backend/internal/config"
	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/internal/services/credits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupBadgeTest(t *testing.T) (*BadgeService, *credits.CreditService, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.CreditTransaction{},
		&models.CreditSummary{},
		&models.Badge{},
		&models.UserBadge{},
	))

	creditSvc, err := credits.NewCreditService(db, config.LoadGamificationConfig())
	require.NoError(t, err)
	return NewBadgeService(db, creditSvc), creditSvc, db
}

func createBadgeUser(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()

	user := models.User{
		Email:    uuid.NewString() + "@example.com",
		Username: "u-" + uuid.NewString()[:8],
	}
	require.NoError(t, db.Create(&user).Error)
	return user.ID
}

func createBadge(t *testing.T, db *gorm.DB, points int, criteria models.BadgeCriteria) *models.Badge {
	t.Helper()

	badge := models.Badge{
		Slug:           "b-" + uuid.NewString()[:8],
		Name:           "Test Badge",
		Rarity:         models.RarityCommon,
		Category:       "testing",
		Active:         true,
		PointsRequired: points,
		Criteria:       criteria,
	}
	require.NoError(t, db.Create(&badge).Error)
	return &badge
}

func TestAwardBadgeMarksEarnedAndGrantsPoints(t *testing.T) {
	svc, creditSvc, db := setupBadgeTest(t)
	userID := createBadgeUser(t, db)
	adminID := createBadgeUser(t, db)
	badge := createBadge(t, db, 50, nil)
	ctx := context.Background()

	userBadge, err := svc.Award(ctx, userID, badge.ID, adminID, "exceptional work")
	require.NoError(t, err)

	assert.True(t, userBadge.Earned)
	assert.NotNil(t, userBadge.EarnedDate)
	assert.Equal(t, 100, userBadge.Progress)
	assert.Equal(t, "exceptional work", userBadge.AwardReason)

	summary, err := creditSvc.GetSummary(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 50, summary.TotalPoints)

	var entry models.CreditTransaction
	require.NoError(t, db.Where("user_id = ? AND activity_type = ?", userID, models.ActivityBadgeEarned).First(&entry).Error)
	assert.Equal(t, 50, entry.Points)
	require.NotNil(t, entry.BadgeID)
	assert.Equal(t, badge.ID, *entry.BadgeID)
}

func TestAwardBadgeTwiceConflictsWithoutDoublePay(t *testing.T) {
	svc, creditSvc, db := setupBadgeTest(t)
	userID := createBadgeUser(t, db)
	adminID := createBadgeUser(t, db)
	badge := createBadge(t, db, 50, nil)
	ctx := context.Background()

	_, err := svc.Award(ctx, userID, badge.ID, adminID, "first")
	require.NoError(t, err)

	_, err = svc.Award(ctx, userID, badge.ID, adminID, "second")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	// The failed transaction rolled back, so no extra ledger entry and no
	// extra points.
	var count int64
	require.NoError(t, db.Model(&models.CreditTransaction{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	summary, err := creditSvc.GetSummary(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 50, summary.TotalPoints)
}

func TestAwardBadgeUnknownUser(t *testing.T) {
	svc, _, db := setupBadgeTest(t)
	adminID := createBadgeUser(t, db)
	badge := createBadge(t, db, 50, nil)
	ghostID := uuid.New()

	_, err := svc.Award(context.Background(), ghostID, badge.ID, adminID, "")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	// Nothing was written for the unknown user: no badge row, no ledger
	// entry, no summary.
	var badgeRows, ledgerRows, summaryRows int64
	require.NoError(t, db.Model(&models.UserBadge{}).Where("user_id = ?", ghostID).Count(&badgeRows).Error)
	require.NoError(t, db.Model(&models.CreditTransaction{}).Where("user_id = ?", ghostID).Count(&ledgerRows).Error)
	require.NoError(t, db.Model(&models.CreditSummary{}).Where("user_id = ?", ghostID).Count(&summaryRows).Error)
	assert.EqualValues(t, 0, badgeRows)
	assert.EqualValues(t, 0, ledgerRows)
	assert.EqualValues(t, 0, summaryRows)
}

func TestAwardInactiveBadgeRejected(t *testing.T) {
	svc, _, db := setupBadgeTest(t)
	userID := createBadgeUser(t, db)
	adminID := createBadgeUser(t, db)

	badge := createBadge(t, db, 10, nil)
	require.NoError(t, db.Model(badge).Update("active", false).Error)

	_, err := svc.Award(context.Background(), userID, badge.ID, adminID, "")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))
}

func TestEvaluateProgressCreatesAndUpdatesRow(t *testing.T) {
	svc, creditSvc, db := setupBadgeTest(t)
	userID := createBadgeUser(t, db)
	badge := createBadge(t, db, 0, models.BadgeCriteria{
		{Type: "project_launch", Value: 2},
	})
	ctx := context.Background()

	progress, err := svc.EvaluateProgress(ctx, userID, badge.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, progress.Progress)
	assert.False(t, progress.Earned)

	_, err = creditSvc.AwardPoints(ctx, credits.AwardInput{
		UserID:       userID,
		ActivityType: models.ActivityProjectLaunch,
		Points:       25,
		Description:  "Launched",
	})
	require.NoError(t, err)

	progress, err = svc.EvaluateProgress(ctx, userID, badge.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, progress.Progress)

	var userBadge models.UserBadge
	require.NoError(t, db.Where("user_id = ? AND badge_id = ?", userID, badge.ID).First(&userBadge).Error)
	assert.Equal(t, 50, userBadge.Progress)
	assert.False(t, userBadge.Earned)
}

func TestEvaluateProgressNeverWalksEarnedBack(t *testing.T) {
	svc, _, db := setupBadgeTest(t)
	userID := createBadgeUser(t, db)
	adminID := createBadgeUser(t, db)
	badge := createBadge(t, db, 0, models.BadgeCriteria{
		{Type: "challenges_won", Value: 10},
	})
	ctx := context.Background()

	_, err := svc.Award(ctx, userID, badge.ID, adminID, "granted early")
	require.NoError(t, err)

	// Criteria are nowhere near met, but the badge stays earned at 100.
	progress, err := svc.EvaluateProgress(ctx, userID, badge.ID)
	require.NoError(t, err)
	assert.True(t, progress.Earned)
	assert.Equal(t, 100, progress.Progress)

	var userBadge models.UserBadge
	require.NoError(t, db.Where("user_id = ? AND badge_id = ?", userID, badge.ID).First(&userBadge).Error)
	assert.True(t, userBadge.Earned)
	assert.Equal(t, 100, userBadge.Progress)
}

func TestShareRequiresEarnedBadge(t *testing.T) {
	svc, _, db := setupBadgeTest(t)
	userID := createBadgeUser(t, db)
	badge := createBadge(t, db, 0, models.BadgeCriteria{
		{Type: "project_launch", Value: 2},
	})
	ctx := context.Background()

	// Unearned row exists after evaluation; sharing it is still rejected.
	_, err := svc.EvaluateProgress(ctx, userID, badge.ID)
	require.NoError(t, err)

	_, err = svc.Share(ctx, userID, badge.ID, []string{"twitter"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestShareAwardsBonusUpToDailyCap(t *testing.T) {
	svc, creditSvc, db := setupBadgeTest(t)
	userID := createBadgeUser(t, db)
	adminID := createBadgeUser(t, db)
	ctx := context.Background()

	cfg := creditSvc.Config()

	var sharesRewarded int
	for i := 0; i < cfg.SharesPerDay+2; i++ {
		badge := createBadge(t, db, 0, nil)
		_, err := svc.Award(ctx, userID, badge.ID, adminID, "")
		require.NoError(t, err)

		result, err := svc.Share(ctx, userID, badge.ID, []string{"linkedin"})
		require.NoError(t, err)
		assert.True(t, result.UserBadge.IsShared)
		if result.BonusAwarded {
			sharesRewarded++
			assert.Equal(t, cfg.ShareBonusPoints, result.BonusPoints)
		}
	}

	assert.Equal(t, cfg.SharesPerDay, sharesRewarded)

	var bonusEntries int64
	require.NoError(t, db.Model(&models.CreditTransaction{}).
		Where("user_id = ? AND activity_type = ?", userID, models.ActivityBadgeShared).
		Count(&bonusEntries).Error)
	assert.EqualValues(t, cfg.SharesPerDay, bonusEntries)
}

func TestListBadgesFiltersInactive(t *testing.T) {
	svc, _, db := setupBadgeTest(t)

	createBadge(t, db, 0, nil)
	inactive := createBadge(t, db, 0, nil)
	require.NoError(t, db.Model(inactive).Update("active", false).Error)

	active, err := svc.ListBadges(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	all, err := svc.ListBadges(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
