package jobs

import (
	"context"
	"log"

	"mizan2/internal/services"
)

// SettlementRetrier drains the queue of profile activations that failed after
// their callback was already acknowledged to the gateway. Each run re-applies
// until the queue is empty or an activation fails again, in which case it goes
// back on the queue for the next run.
type SettlementRetrier struct {
	queue             services.SettlementRetryQueue
	settlementService services.SettlementService
}

func NewSettlementRetrier(queue services.SettlementRetryQueue, settlementService services.SettlementService) *SettlementRetrier {
	return &SettlementRetrier{
		queue:             queue,
		settlementService: settlementService,
	}
}

func (r *SettlementRetrier) Run(ctx context.Context) {
	for {
		activation, err := r.queue.Dequeue(ctx)
		if err != nil {
			log.Printf("ERROR: settlement retry dequeue failed: %v", err)
			return
		}
		if activation == nil {
			return
		}

		if err := r.settlementService.ApplyActivation(ctx, activation); err != nil {
			log.Printf("ERROR: settlement retry failed for user %s txn %s: %v", activation.UserID, activation.TransactionRef, err)
			if requeueErr := r.queue.Enqueue(ctx, activation); requeueErr != nil {
				log.Printf("ERROR: could not requeue activation for txn %s: %v", activation.TransactionRef, requeueErr)
			}
			return
		}
		log.Printf("settlement retry: activation applied for user %s txn %s", activation.UserID, activation.TransactionRef)
	}
}
