package leaderboard

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mentorhub/backend/internal/models"
)

// standing is one user's input to a ranking pass
type standing struct {
	UserID      uuid.UUID
	Points      int
	Level       int
	BadgesCount int
}

// assignRanks sorts standings and produces a dense 1..N snapshot.
// Ordering is points descending with user_id ascending as the tie-break,
// so equal totals always rank in the same reproducible order. Change
// fields diff against the prior snapshot for the same period.
func assignRanks(standings []standing, prev map[uuid.UUID]models.LeaderboardEntry, period models.LeaderboardPeriod, now time.Time) []models.LeaderboardEntry {
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Points != standings[j].Points {
			return standings[i].Points > standings[j].Points
		}
		return strings.Compare(standings[i].UserID.String(), standings[j].UserID.String()) < 0
	})

	entries := make([]models.LeaderboardEntry, 0, len(standings))
	for i, s := range standings {
		entry := models.LeaderboardEntry{
			UserID:      s.UserID,
			Period:      period,
			Rank:        i + 1,
			Points:      s.Points,
			Level:       s.Level,
			BadgesCount: s.BadgesCount,
			ComputedAt:  now,
		}

		if old, ok := prev[s.UserID]; ok {
			switch {
			case entry.Rank < old.Rank:
				entry.ChangeDirection = models.ChangeUp
				entry.ChangeValue = old.Rank - entry.Rank
			case entry.Rank > old.Rank:
				entry.ChangeDirection = models.ChangeDown
				entry.ChangeValue = entry.Rank - old.Rank
			default:
				entry.ChangeDirection = models.ChangeSame
			}
		} else {
			entry.ChangeDirection = models.ChangeNew
		}

		entries = append(entries, entry)
	}
	return entries
}

// periodPoints reads the point total relevant to a period off a summary.
// Stale period counters (no activity since the window rolled over) count
// as zero rather than leaking last window's points into this one.
func periodPoints(s *models.CreditSummary, period models.LeaderboardPeriod, now time.Time) int {
	switch period {
	case models.PeriodAllTime:
		return s.TotalPoints
	case models.PeriodMonthly:
		if !sameMonth(s.MonthStart, now) {
			return 0
		}
		return s.MonthlyPoints
	case models.PeriodWeekly:
		if !sameWeek(s.WeekStart, now) {
			return 0
		}
		return s.WeeklyPoints
	case models.PeriodDaily:
		if !sameDay(s.LastActivityDate, now) {
			return 0
		}
		return s.DailyPoints
	}
	return 0
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func sameWeek(weekStart, now time.Time) bool {
	now = now.UTC()
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return weekStart.Equal(day.AddDate(0, 0, -(weekday - 1)))
}

func sameMonth(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}
