package jobs

import (
	"context"
	"log"
	"time"

	"mizan2/internal/repositories"
)

// SubscriptionSweeper flips active paid subscriptions whose end date has
// passed to past_due. Entitlement checks already refuse expired profiles on
// read; the sweep keeps the stored status truthful for reporting and email
// campaigns.
type SubscriptionSweeper struct {
	subscriberRepo repositories.SubscriberRepository
}

func NewSubscriptionSweeper(subscriberRepo repositories.SubscriberRepository) *SubscriptionSweeper {
	return &SubscriptionSweeper{subscriberRepo: subscriberRepo}
}

func (s *SubscriptionSweeper) Run(ctx context.Context) {
	lapsed, err := s.subscriberRepo.MarkLapsed(ctx, time.Now())
	if err != nil {
		log.Printf("ERROR: subscription sweep failed: %v", err)
		return
	}
	if lapsed > 0 {
		log.Printf("subscription sweep: %d subscriptions marked past_due", lapsed)
	}
}
