package jobs

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/mentorhub/backend/internal/queue"
	"github.com/mentorhub/backend/internal/services/leaderboard"
	"github.com/mentorhub/backend/internal/services/referrals"
)

// Register wires the job handlers onto the queue and the recurring
// sweeps onto the scheduler. The caller owns starting and stopping both.
func Register(q *queue.RedisQueue, scheduler *gocron.Scheduler, leaderboardSvc *leaderboard.LeaderboardService, referralSvc *referrals.ReferralService) error {
	q.RegisterHandler(LeaderboardRecomputeJobType, NewLeaderboardRecomputeHandler(leaderboardSvc))

	if _, err := scheduler.Every(10).Minutes().Do(ExpireReferrals(referralSvc)); err != nil {
		return err
	}

	// Safety net: a periodic full rebuild repairs any snapshot drift even
	// if every coalesced touch job were lost.
	if _, err := scheduler.Every(1).Hour().Do(func() {
		if _, err := q.Enqueue(context.Background(), LeaderboardRecomputeJobType, LeaderboardRecomputePayload{},
			queue.WithCoalesce("leaderboard:scheduled", time.Minute)); err != nil {
			log.Printf("failed to schedule leaderboard rebuild: %v", err)
		}
	}); err != nil {
		return err
	}

	return nil
}
