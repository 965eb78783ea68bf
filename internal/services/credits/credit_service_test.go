package credits

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mentorhub/backend/internal/apperrors"
	"github.com/mentorhub/backend/internal/config"
	"github.com/mentorhub/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
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
	))
	return db
}

func testService(t *testing.T) (*CreditService, *gorm.DB) {
	t.Helper()

	db := testDB(t)
	svc, err := NewCreditService(db, config.LoadGamificationConfig())
	require.NoError(t, err)
	return svc, db
}

func createUser(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()

	user := models.User{
		Email:    uuid.NewString() + "@example.com",
		Username: "u-" + uuid.NewString()[:8],
	}
	require.NoError(t, db.Create(&user).Error)
	return user.ID
}

func TestAwardPointsAppendsLedgerAndUpdatesSummary(t *testing.T) {
	svc, db := testService(t)
	userID := createUser(t, db)
	ctx := context.Background()

	result, err := svc.AwardPoints(ctx, AwardInput{
		UserID:       userID,
		ActivityType: models.ActivityMentorshipSession,
		Points:       50,
		Description:  "Completed a mentorship session",
	})
	require.NoError(t, err)

	assert.Equal(t, 50, result.Entry.Points)
	assert.Equal(t, models.TransactionEarned, result.Entry.TransactionType)
	assert.Equal(t, 50, result.Summary.TotalPoints)
	assert.Equal(t, 1, result.Summary.CurrentLevel)
	assert.Equal(t, 1, result.Summary.TotalContributions)
	assert.Equal(t, 1, result.Summary.MentorshipSessions)
	assert.Equal(t, 1, result.Summary.CurrentStreak)
	assert.False(t, result.LevelUp)
}

func TestAwardPointsLedgerSumMatchesSummary(t *testing.T) {
	svc, db := testService(t)
	userID := createUser(t, db)
	ctx := context.Background()

	awards := []int{50, 25, 10, 150, 25, -15, 50}
	for _, points := range awards {
		_, err := svc.AwardPoints(ctx, AwardInput{
			UserID:       userID,
			ActivityType: models.ActivityOpportunityShare,
			Points:       points,
			Description:  "activity",
		})
		require.NoError(t, err)
	}

	var ledgerSum int
	require.NoError(t, db.Model(&models.CreditTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&ledgerSum).Error)

	summary, err := svc.GetSummary(ctx, userID)
	require.NoError(t, err)

	// Bonus entries are part of the ledger, so the sum always matches the
	// derived total exactly.
	assert.Equal(t, summary.TotalPoints, ledgerSum)
}

func TestAwardPointsLevelUpGrantsBonus(t *testing.T) {
	svc, db := testService(t)
	userID := createUser(t, db)
	ctx := context.Background()

	result, err := svc.AwardPoints(ctx, AwardInput{
		UserID:       userID,
		ActivityType: models.ActivityProjectLaunch,
		Points:       100,
		Description:  "Launched a project",
	})
	require.NoError(t, err)

	// 100 points crosses level 2 whose bonus is 50, totalling 150.
	assert.True(t, result.LevelUp)
	assert.Equal(t, 2, result.Summary.CurrentLevel)
	assert.Equal(t, 150, result.Summary.TotalPoints)
	require.Len(t, result.Bonuses, 1)
	assert.Equal(t, 50, result.Bonuses[0].Points)
	assert.Equal(t, models.TransactionBonus, result.Bonuses[0].TransactionType)
	assert.Equal(t, models.ActivityLevelUp, result.Bonuses[0].ActivityType)

	var count int64
	require.NoError(t, db.Model(&models.CreditTransaction{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestAwardPointsMultiLevelJumpGrantsEveryBonus(t *testing.T) {
	svc, db := testService(t)
	userID := createUser(t, db)
	ctx := context.Background()

	// 600 points crosses levels 2, 3 and 4 in one award (thresholds 100,
	// 250, 500). Bonuses 50+75+100 bring the total to 825.
	result, err := svc.AwardPoints(ctx, AwardInput{
		UserID:       userID,
		ActivityType: models.ActivityChallengeWon,
		Points:       600,
		Description:  "Won the quarterly challenge",
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Summary.CurrentLevel)
	assert.Equal(t, 825, result.Summary.TotalPoints)
	require.Len(t, result.Bonuses, 3)
}

func TestAwardPointsIdempotencyKeyDeduplicates(t *testing.T) {
	svc, db := testService(t)
	userID := createUser(t, db)
	ctx := context.Background()

	input := AwardInput{
		UserID:         userID,
		ActivityType:   models.ActivitySocialShare,
		Points:         10,
		Description:    "Shared on social",
		IdempotencyKey: "evt-123",
	}

	first, err := svc.AwardPoints(ctx, input)
	require.NoError(t, err)
	assert.False(t, first.Deduplicated)

	second, err := svc.AwardPoints(ctx, input)
	require.NoError(t, err)
	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.Entry.ID, second.Entry.ID)

	var count int64
	require.NoError(t, db.Model(&models.CreditTransaction{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	summary, err := svc.GetSummary(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 10, summary.TotalPoints)
}

func TestAwardPointsValidation(t *testing.T) {
	svc, db := testService(t)
	userID := createUser(t, db)
	ctx := context.Background()

	cases := []struct {
		name  string
		input AwardInput
		kind  apperrors.Kind
	}{
		{"missing user", AwardInput{ActivityType: "x", Points: 1, Description: "d"}, apperrors.KindInvalidArgument},
		{"missing activity", AwardInput{UserID: userID, Points: 1, Description: "d"}, apperrors.KindInvalidArgument},
		{"zero points", AwardInput{UserID: userID, ActivityType: "x", Description: "d"}, apperrors.KindInvalidArgument},
		{"missing description", AwardInput{UserID: userID, ActivityType: "x", Points: 1}, apperrors.KindInvalidArgument},
		{"bad transaction type", AwardInput{UserID: userID, ActivityType: "x", Points: 1, Description: "d", TransactionType: "weird"}, apperrors.KindInvalidArgument},
		{"unknown user", AwardInput{UserID: uuid.New(), ActivityType: "x", Points: 1, Description: "d"}, apperrors.KindNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AwardPoints(ctx, tc.input)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperrors.KindOf(err))
		})
	}
}

func TestAwardPointsDefaultsFromActivityConfig(t *testing.T) {
	svc, db := testService(t)
	userID := createUser(t, db)
	ctx := context.Background()

	// Omitted points fall back to the configured value for the activity.
	result, err := svc.AwardPoints(ctx, AwardInput{
		UserID:       userID,
		ActivityType: models.ActivityMentorshipSession,
		Description:  "Completed a mentorship session",
	})
	require.NoError(t, err)
	assert.Equal(t, svc.Config().ActivityPoints[models.ActivityMentorshipSession], result.Entry.Points)

	// Activities without a configured default still require explicit points.
	_, err = svc.AwardPoints(ctx, AwardInput{
		UserID:       userID,
		ActivityType: "unconfigured_activity",
		Description:  "d",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))
}

func TestGetSummarySynthesizesZeroSummary(t *testing.T) {
	svc, db := testService(t)
	userID := createUser(t, db)

	summary, err := svc.GetSummary(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TotalPoints)
	assert.Equal(t, 1, summary.CurrentLevel)
	assert.Equal(t, 100, summary.PointsToNextLevel)
}

func TestGetSummaryUnknownUser(t *testing.T) {
	svc, _ := testService(t)

	_, err := svc.GetSummary(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestGetHistoryPagination(t *testing.T) {
	svc, db := testService(t)
	userID := createUser(t, db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.AwardPoints(ctx, AwardInput{
			UserID:       userID,
			ActivityType: models.ActivitySocialShare,
			Points:       10,
			Description:  "share",
		})
		require.NoError(t, err)
	}

	entries, total, err := svc.GetHistory(ctx, userID, 1, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, entries, 3)

	entries, _, err = svc.GetHistory(ctx, userID, 2, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestWithRetryRecoversFromVersionConflict(t *testing.T) {
	svc, _ := testService(t)

	attempts := 0
	err := svc.WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errVersionConflict
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryExhaustionSurfacesConflict(t *testing.T) {
	svc, _ := testService(t)

	attempts := 0
	err := svc.WithRetry(context.Background(), func() error {
		attempts++
		return errVersionConflict
	})
	require.Error(t, err)
	assert.Equal(t, maxAwardAttempts, attempts)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestWithRetryDoesNotRetryOtherErrors(t *testing.T) {
	svc, _ := testService(t)

	attempts := 0
	err := svc.WithRetry(context.Background(), func() error {
		attempts++
		return apperrors.NotFound("nope")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestAdvanceStreak(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	t.Run("first activity starts streak", func(t *testing.T) {
		s := &models.CreditSummary{}
		advanceStreak(s, now)
		assert.Equal(t, 1, s.CurrentStreak)
		assert.Equal(t, 1, s.LongestStreak)
	})

	t.Run("same day does not grow streak", func(t *testing.T) {
		s := &models.CreditSummary{CurrentStreak: 3, LongestStreak: 3, LastActivityDate: now.Add(-2 * time.Hour)}
		advanceStreak(s, now)
		assert.Equal(t, 3, s.CurrentStreak)
	})

	t.Run("consecutive day grows streak", func(t *testing.T) {
		s := &models.CreditSummary{CurrentStreak: 3, LongestStreak: 5, LastActivityDate: now.AddDate(0, 0, -1)}
		advanceStreak(s, now)
		assert.Equal(t, 4, s.CurrentStreak)
		assert.Equal(t, 5, s.LongestStreak)
	})

	t.Run("gap resets streak", func(t *testing.T) {
		s := &models.CreditSummary{CurrentStreak: 9, LongestStreak: 9, LastActivityDate: now.AddDate(0, 0, -3)}
		advanceStreak(s, now)
		assert.Equal(t, 1, s.CurrentStreak)
		assert.Equal(t, 9, s.LongestStreak)
	})
}

func TestRolloverPeriods(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	s := &models.CreditSummary{
		DailyPoints:      40,
		WeeklyPoints:     120,
		MonthlyPoints:    300,
		LastActivityDate: now.AddDate(0, -1, 0),
		WeekStart:        weekStart(now.AddDate(0, -1, 0)),
		MonthStart:       monthStart(now.AddDate(0, -1, 0)),
	}
	rolloverPeriods(s, now)

	assert.Equal(t, 0, s.DailyPoints)
	assert.Equal(t, 0, s.WeeklyPoints)
	assert.Equal(t, 0, s.MonthlyPoints)
	assert.Equal(t, weekStart(now), s.WeekStart)
	assert.Equal(t, monthStart(now), s.MonthStart)
}
