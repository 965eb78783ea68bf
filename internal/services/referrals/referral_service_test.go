package referrals

import (
	"context"
	"testing"
	"time"

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

func setupReferralTest(t *testing.T) (*ReferralService, *credits.CreditService, *gorm.DB) {
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
		&models.Referral{},
	))

	creditSvc, err := credits.NewCreditService(db, config.LoadGamificationConfig())
	require.NoError(t, err)
	return NewReferralService(db, creditSvc), creditSvc, db
}

func createReferralUser(t *testing.T, db *gorm.DB, name string) uuid.UUID {
	t.Helper()

	user := models.User{
		Email:     uuid.NewString() + "@example.com",
		Username:  "u-" + uuid.NewString()[:8],
		FirstName: name,
	}
	require.NoError(t, db.Create(&user).Error)
	return user.ID
}

func TestGenerateCode(t *testing.T) {
	svc, creditSvc, db := setupReferralTest(t)
	referrerID := createReferralUser(t, db, "Ada")

	referral, err := svc.GenerateCode(context.Background(), referrerID, "app", "launch")
	require.NoError(t, err)

	cfg := creditSvc.Config()
	assert.Len(t, referral.ReferralCode, cfg.ReferralCodeLength)
	assert.Equal(t, models.ReferralPending, referral.Status)
	assert.Equal(t, cfg.ReferrerPoints, referral.ReferrerPoints)
	assert.Equal(t, cfg.ReferredPoints, referral.ReferredPoints)
	assert.True(t, referral.ExpiryDate.After(time.Now()))
}

func TestGenerateCodeUnknownReferrer(t *testing.T) {
	svc, _, _ := setupReferralTest(t)

	_, err := svc.GenerateCode(context.Background(), uuid.New(), "", "")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestValidateCode(t *testing.T) {
	svc, _, db := setupReferralTest(t)
	referrerID := createReferralUser(t, db, "Ada")
	ctx := context.Background()

	referral, err := svc.GenerateCode(ctx, referrerID, "app", "launch")
	require.NoError(t, err)

	validation, err := svc.Validate(ctx, referral.ReferralCode)
	require.NoError(t, err)
	assert.True(t, validation.Valid)
	assert.Equal(t, "Ada", validation.ReferrerName)
	assert.Equal(t, "launch", validation.Campaign)

	_, err = svc.Validate(ctx, "NOPE1234")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestProcessPaysBothPartiesOnce(t *testing.T) {
	svc, creditSvc, db := setupReferralTest(t)
	referrerID := createReferralUser(t, db, "Ada")
	newUserID := createReferralUser(t, db, "Grace")
	ctx := context.Background()

	referral, err := svc.GenerateCode(ctx, referrerID, "", "")
	require.NoError(t, err)

	result, err := svc.Process(ctx, referral.ReferralCode, newUserID)
	require.NoError(t, err)

	cfg := creditSvc.Config()
	assert.Equal(t, cfg.ReferrerPoints, result.ReferrerPoints)
	assert.Equal(t, cfg.ReferredPoints, result.ReferredPoints)
	assert.Equal(t, models.ReferralCompleted, result.Referral.Status)

	referrerSummary, err := creditSvc.GetSummary(ctx, referrerID)
	require.NoError(t, err)
	// 500 crosses levels 2-4, whose bonuses add 225.
	assert.Equal(t, 725, referrerSummary.TotalPoints)
	assert.Equal(t, 1, referrerSummary.ReferralsSuccessful)

	referredSummary, err := creditSvc.GetSummary(ctx, newUserID)
	require.NoError(t, err)
	assert.Equal(t, 150, referredSummary.TotalPoints)

	// Processing the same code again must not pay anyone twice.
	_, err = svc.Process(ctx, referral.ReferralCode, newUserID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	var entries int64
	require.NoError(t, db.Model(&models.CreditTransaction{}).
		Where("activity_type IN ?", []string{models.ActivityReferralSuccess, models.ActivityReferralSignup}).
		Count(&entries).Error)
	assert.EqualValues(t, 2, entries)
}

func TestProcessRejectsSelfReferral(t *testing.T) {
	svc, _, db := setupReferralTest(t)
	referrerID := createReferralUser(t, db, "Ada")
	ctx := context.Background()

	referral, err := svc.GenerateCode(ctx, referrerID, "", "")
	require.NoError(t, err)

	_, err = svc.Process(ctx, referral.ReferralCode, referrerID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))
}

func TestProcessExpiredCode(t *testing.T) {
	svc, _, db := setupReferralTest(t)
	referrerID := createReferralUser(t, db, "Ada")
	newUserID := createReferralUser(t, db, "Grace")
	ctx := context.Background()

	referral, err := svc.GenerateCode(ctx, referrerID, "", "")
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Referral{}).
		Where("id = ?", referral.ID).
		Update("expiry_date", time.Now().UTC().AddDate(0, 0, -1)).Error)

	_, err = svc.Process(ctx, referral.ReferralCode, newUserID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	// The lazy expiry persisted the terminal state.
	var reloaded models.Referral
	require.NoError(t, db.First(&reloaded, "id = ?", referral.ID).Error)
	assert.Equal(t, models.ReferralExpired, reloaded.Status)
}

func TestCancelOnlyByReferrerWhilePending(t *testing.T) {
	svc, _, db := setupReferralTest(t)
	referrerID := createReferralUser(t, db, "Ada")
	strangerID := createReferralUser(t, db, "Eve")
	newUserID := createReferralUser(t, db, "Grace")
	ctx := context.Background()

	referral, err := svc.GenerateCode(ctx, referrerID, "", "")
	require.NoError(t, err)

	err = svc.Cancel(ctx, referral.ID, strangerID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	require.NoError(t, svc.Cancel(ctx, referral.ID, referrerID))

	// Cancelled is terminal; it can be neither cancelled again nor processed.
	err = svc.Cancel(ctx, referral.ID, referrerID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	_, err = svc.Process(ctx, referral.ReferralCode, newUserID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestGetMyReferrals(t *testing.T) {
	svc, _, db := setupReferralTest(t)
	referrerID := createReferralUser(t, db, "Ada")
	otherID := createReferralUser(t, db, "Eve")
	ctx := context.Background()

	_, err := svc.GenerateCode(ctx, referrerID, "", "")
	require.NoError(t, err)
	_, err = svc.GenerateCode(ctx, referrerID, "", "")
	require.NoError(t, err)
	_, err = svc.GenerateCode(ctx, otherID, "", "")
	require.NoError(t, err)

	mine, err := svc.GetMyReferrals(ctx, referrerID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestExpireOverdueSweep(t *testing.T) {
	svc, _, db := setupReferralTest(t)
	referrerID := createReferralUser(t, db, "Ada")
	ctx := context.Background()

	overdue, err := svc.GenerateCode(ctx, referrerID, "", "")
	require.NoError(t, err)
	fresh, err := svc.GenerateCode(ctx, referrerID, "", "")
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Referral{}).
		Where("id = ?", overdue.ID).
		Update("expiry_date", time.Now().UTC().Add(-time.Hour)).Error)

	expired, err := svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, expired)

	var expiredRow models.Referral
	require.NoError(t, db.First(&expiredRow, "id = ?", overdue.ID).Error)
	assert.Equal(t, models.ReferralExpired, expiredRow.Status)

	var freshRow models.Referral
	require.NoError(t, db.First(&freshRow, "id = ?", fresh.ID).Error)
	assert.Equal(t, models.ReferralPending, freshRow.Status)
}
