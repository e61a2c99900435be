package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"mizan2/internal/models"
	"mizan2/internal/repositories"

	"github.com/google/uuid"
)

// ErrMalformedCallback marks a callback that passed signature verification but
// carries no usable subscription metadata. The handler maps it to a 400 so the
// integration drift is visible instead of silently swallowed.
var ErrMalformedCallback = errors.New("callback carries no subscription metadata")

// SettlementService reconciles verified gateway callbacks into durable
// subscription state. Signature verification happens before this layer; by the
// time Reconcile runs, the payload is authentic.
type SettlementService interface {
	Reconcile(ctx context.Context, tx *CallbackTransaction) error
	ApplyActivation(ctx context.Context, activation *models.PendingActivation) error
}

// SettlementRetryQueue parks activations whose persistence failed after the
// callback was acknowledged. Implemented on redis in the caching package.
type SettlementRetryQueue interface {
	Enqueue(ctx context.Context, activation *models.PendingActivation) error
	Dequeue(ctx context.Context) (*models.PendingActivation, error)
}

// SnapshotInvalidator drops a subscriber's cached usage snapshot so the UI
// reflects a tier change before the TTL expires.
type SnapshotInvalidator interface {
	DeleteUsageSnapshot(ctx context.Context, userID string) error
}

type settlementService struct {
	subscriberRepo repositories.SubscriberRepository
	paymentRepo    repositories.PaymentRepository
	retryQueue     SettlementRetryQueue
	snapshots      SnapshotInvalidator
	now            func() time.Time
}

func NewSettlementService(subscriberRepo repositories.SubscriberRepository, paymentRepo repositories.PaymentRepository, retryQueue SettlementRetryQueue, snapshots SnapshotInvalidator) SettlementService {
	return &settlementService{
		subscriberRepo: subscriberRepo,
		paymentRepo:    paymentRepo,
		retryQueue:     retryQueue,
		snapshots:      snapshots,
		now:            time.Now,
	}
}

// Reconcile applies one settlement callback:
//
//	ledger append (idempotency point) -> profile activation on success.
//
// A duplicate transaction ref is a no-op success: the gateway retries webhooks
// on timeout and must never double-extend a subscription. Persistence errors
// after this point are queued for out-of-band retry and do NOT propagate, so
// the handler still acknowledges the event.
func (s *settlementService) Reconcile(ctx context.Context, tx *CallbackTransaction) error {
	meta := callbackMetadata(tx)
	if meta == nil {
		return ErrMalformedCallback
	}

	tier, tierOK := models.ParseTier(meta.Tier)
	cycle, cycleOK := models.ParseBillingCycle(meta.BillingCycle)
	if meta.UserID == "" || !tierOK || !cycleOK {
		return fmt.Errorf("%w: user=%q tier=%q cycle=%q", ErrMalformedCallback, meta.UserID, meta.Tier, meta.BillingCycle)
	}

	succeeded := tx.Success && !tx.IsRefunded
	status := models.PaymentFailed
	if succeeded {
		status = models.PaymentSucceeded
	}

	record := &models.PaymentRecord{
		ID:             uuid.New(),
		UserID:         meta.UserID,
		TransactionRef: strconv.FormatInt(tx.ID, 10),
		OrderRef:       strconv.FormatInt(tx.Order.ID, 10),
		AmountCents:    tx.AmountCents,
		Currency:       tx.Currency,
		Status:         status,
		Tier:           tier,
		BillingCycle:   cycle,
		PaymentMethod:  tx.SourceData.Type,
	}

	activation := &models.PendingActivation{
		UserID:         meta.UserID,
		Tier:           tier,
		BillingCycle:   cycle,
		EndDate:        extendExpiry(s.now(), cycle),
		CustomerRef:    strconv.FormatInt(tx.Owner, 10),
		TransactionRef: record.TransactionRef,
	}

	inserted, err := s.paymentRepo.Create(ctx, record)
	if err != nil {
		log.Printf("ERROR: settlement ledger write failed for txn %s: %v", record.TransactionRef, err)
		if succeeded {
			s.park(ctx, activation)
		}
		return nil
	}
	if !inserted {
		// Duplicate delivery of an already-settled transaction.
		log.Printf("settlement: duplicate callback for txn %s ignored", record.TransactionRef)
		return nil
	}

	if !succeeded {
		return nil
	}

	if err := s.subscriberRepo.ActivateSubscription(ctx, activation.UserID, activation.Tier, activation.BillingCycle, activation.EndDate, activation.CustomerRef, activation.TransactionRef); err != nil {
		log.Printf("ERROR: subscription activation failed for user %s txn %s: %v", activation.UserID, activation.TransactionRef, err)
		s.park(ctx, activation)
		return nil
	}
	s.invalidateSnapshot(ctx, activation.UserID)
	return nil
}

// ApplyActivation re-applies a parked activation. Used by the retry job.
func (s *settlementService) ApplyActivation(ctx context.Context, activation *models.PendingActivation) error {
	if err := s.subscriberRepo.ActivateSubscription(ctx, activation.UserID, activation.Tier, activation.BillingCycle, activation.EndDate, activation.CustomerRef, activation.TransactionRef); err != nil {
		return err
	}
	s.invalidateSnapshot(ctx, activation.UserID)
	return nil
}

// invalidateSnapshot drops the cached usage decision so the subscriber sees
// their new tier immediately instead of after the snapshot TTL.
func (s *settlementService) invalidateSnapshot(ctx context.Context, userID string) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.DeleteUsageSnapshot(ctx, userID); err != nil {
		log.Printf("WARN: usage snapshot invalidation failed for %s: %v", userID, err)
	}
}

func (s *settlementService) park(ctx context.Context, activation *models.PendingActivation) {
	if s.retryQueue == nil {
		return
	}
	if err := s.retryQueue.Enqueue(ctx, activation); err != nil {
		log.Printf("ERROR: could not park activation for user %s txn %s: %v", activation.UserID, activation.TransactionRef, err)
	}
}

// callbackMetadata returns the subscription context attached during
// payment-key creation. obj.metadata is the authoritative channel; the order's
// shipping_data is read only as a legacy fallback from older integrations.
func callbackMetadata(tx *CallbackTransaction) *PaymentKeyMetadata {
	if tx.Metadata != nil && tx.Metadata.UserID != "" {
		return tx.Metadata
	}
	if tx.Order.ShippingData != nil && tx.Order.ShippingData.UserID != "" {
		log.Printf("settlement: txn %d used legacy shipping_data metadata", tx.ID)
		return tx.Order.ShippingData
	}
	return nil
}

// extendExpiry uses calendar-aware arithmetic so month lengths and leap years
// never drift the renewal date.
func extendExpiry(from time.Time, cycle models.BillingCycle) time.Time {
	if cycle == models.CycleYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}
