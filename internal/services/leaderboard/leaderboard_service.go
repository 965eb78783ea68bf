package leaderboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mentorhub/backend/internal/apperrors"
	"github.com/mentorhub/backend/internal/models"
	"gorm.io/gorm"
)

// recomputeBatchSize bounds each summary read so a recompute never holds
// an unbounded scan inside one request
const recomputeBatchSize = 500

// LeaderboardService builds and serves ranking snapshots
type LeaderboardService struct {
	db *gorm.DB
}

// NewLeaderboardService creates a leaderboard service
func NewLeaderboardService(db *gorm.DB) *LeaderboardService {
	return &LeaderboardService{db: db}
}

// Recompute rebuilds the snapshot for one period: one chunked read pass
// over account summaries, ranking in memory, then one write pass that
// swaps the snapshot inside a single transaction. Readers never observe a
// partially updated ranking.
func (s *LeaderboardService) Recompute(ctx context.Context, period models.LeaderboardPeriod) error {
	if !period.Valid() {
		return apperrors.InvalidArgument("unknown leaderboard period %q", period)
	}
	now := time.Now().UTC()

	badgeCounts, err := s.badgeCounts(ctx)
	if err != nil {
		return err
	}

	prev, err := s.snapshot(ctx, period)
	if err != nil {
		return err
	}

	var standings []standing
	var batch []models.CreditSummary
	err = s.db.WithContext(ctx).Model(&models.CreditSummary{}).Order("user_id").
		FindInBatches(&batch, recomputeBatchSize, func(tx *gorm.DB, _ int) error {
			for i := range batch {
				sum := &batch[i]
				standings = append(standings, standing{
					UserID:      sum.UserID,
					Points:      periodPoints(sum, period, now),
					Level:       sum.CurrentLevel,
					BadgesCount: badgeCounts[sum.UserID],
				})
			}
			return nil
		}).Error
	if err != nil {
		return apperrors.Internal("failed to read credit summaries", err)
	}

	entries := assignRanks(standings, prev, period, now)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("period = ?", period).Delete(&models.LeaderboardEntry{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.CreateInBatches(entries, 200).Error
	})
	if err != nil {
		return apperrors.Internal("failed to replace leaderboard snapshot", err)
	}
	return nil
}

// RecomputeAll rebuilds every period's snapshot
func (s *LeaderboardService) RecomputeAll(ctx context.Context) error {
	for _, period := range models.AllPeriods {
		if err := s.Recompute(ctx, period); err != nil {
			return err
		}
	}
	return nil
}

// GetLeaderboard returns one page of the snapshot for a period with user
// display data preloaded.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, period models.LeaderboardPeriod, limit, page int) ([]models.LeaderboardEntry, int64, error) {
	if !period.Valid() {
		return nil, 0, apperrors.InvalidArgument("unknown leaderboard period %q", period)
	}
	if limit < 1 || limit > 100 {
		limit = 25
	}
	if page < 1 {
		page = 1
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.LeaderboardEntry{}).Where("period = ?", period).Count(&total).Error; err != nil {
		return nil, 0, apperrors.Internal("failed to count leaderboard entries", err)
	}

	var entries []models.LeaderboardEntry
	if err := s.db.WithContext(ctx).Preload("User").
		Where("period = ?", period).
		Order("rank ASC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, 0, apperrors.Internal("failed to load leaderboard", err)
	}

	return entries, total, nil
}

// badgeCounts returns earned-badge totals keyed by user
func (s *LeaderboardService) badgeCounts(ctx context.Context) (map[uuid.UUID]int, error) {
	type row struct {
		UserID uuid.UUID
		Total  int
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&models.UserBadge{}).
		Select("user_id, count(*) as total").
		Where("earned = ?", true).
		Group("user_id").
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Internal("failed to count badges", err)
	}

	counts := make(map[uuid.UUID]int, len(rows))
	for _, r := range rows {
		counts[r.UserID] = r.Total
	}
	return counts, nil
}

// snapshot loads the current snapshot for a period keyed by user
func (s *LeaderboardService) snapshot(ctx context.Context, period models.LeaderboardPeriod) (map[uuid.UUID]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	if err := s.db.WithContext(ctx).Where("period = ?", period).Find(&entries).Error; err != nil {
		return nil, apperrors.Internal("failed to load previous snapshot", err)
	}

	prev := make(map[uuid.UUID]models.LeaderboardEntry, len(entries))
	for _, e := range entries {
		prev[e.UserID] = e
	}
	return prev, nil
}
