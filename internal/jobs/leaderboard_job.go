package jobs

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/internal/queue"
	"github.com/mentorhub/backend/internal/services/leaderboard"
)

// LeaderboardRecomputeJobType identifies leaderboard recompute jobs
const LeaderboardRecomputeJobType queue.JobType = "leaderboard_recompute"

// touchCoalesceTTL batches bursts of awards into one recompute
const touchCoalesceTTL = 3 * time.Second

// LeaderboardRecomputePayload selects which period to rebuild; empty
// means all periods.
type LeaderboardRecomputePayload struct {
	Period models.LeaderboardPeriod `json:"period,omitempty"`
}

// NewLeaderboardRecomputeHandler returns the worker-side handler
func NewLeaderboardRecomputeHandler(svc *leaderboard.LeaderboardService) queue.JobHandler {
	return func(ctx context.Context, job queue.Job) error {
		var payload LeaderboardRecomputePayload
		if len(job.Payload) > 0 {
			if err := json.Unmarshal(job.Payload, &payload); err != nil {
				return err
			}
		}

		if payload.Period != "" {
			return svc.Recompute(ctx, payload.Period)
		}
		return svc.RecomputeAll(ctx)
	}
}

// QueueToucher turns award-time leaderboard touches into coalesced
// recompute jobs.
type QueueToucher struct {
	q *queue.RedisQueue
}

// NewQueueToucher creates a toucher over the given queue
func NewQueueToucher(q *queue.RedisQueue) *QueueToucher {
	return &QueueToucher{q: q}
}

// Touch enqueues a full recompute. The coalesce key drops the enqueue
// entirely when one is already in flight, so N awards in a burst cost
// one rebuild.
func (t *QueueToucher) Touch(ctx context.Context, userIDs ...uuid.UUID) error {
	_, err := t.q.Enqueue(ctx, LeaderboardRecomputeJobType, LeaderboardRecomputePayload{},
		queue.WithCoalesce("leaderboard:touch", touchCoalesceTTL))
	if err != nil {
		log.Printf("failed to enqueue leaderboard recompute: %v", err)
	}
	return err
}
