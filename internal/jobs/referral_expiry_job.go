package jobs

import (
	"context"
	"log"

	"github.com/mentorhub/backend/internal/services/referrals"
)

// ExpireReferrals sweeps pending referrals past their expiry date. Reads
// also expire lazily, so the sweep only keeps listings tidy between
// lookups.
func ExpireReferrals(svc *referrals.ReferralService) func() {
	return func() {
		expired, err := svc.ExpireOverdue(context.Background())
		if err != nil {
			log.Printf("referral expiry sweep failed: %v", err)
			return
		}
		if expired > 0 {
			log.Printf("referral expiry sweep: %d referral(s) expired", expired)
		}
	}
}
