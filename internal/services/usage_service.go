package services

import (
	"context"
	"log"
	"time"

	"mizan2/internal/billing"
	"mizan2/internal/caching"
	"mizan2/internal/common"
	"mizan2/internal/models"
	"mizan2/internal/repositories"
)

// UsageService owns the daily question counter and the server-confirmed
// entitlement snapshot. The client never trusts its own copy of the counter;
// it re-reads the decision returned here after every increment.
type UsageService interface {
	// Entitlement returns the current decision, creating the free profile row
	// for a first-seen identity.
	Entitlement(ctx context.Context, identity *common.Identity) (*billing.Decision, error)
	// RecordQuestion increments the counter after a permitted question and
	// returns the fresh decision.
	RecordQuestion(ctx context.Context, identity *common.Identity) (*billing.Decision, error)
	// Snapshot is the display variant of Entitlement: it may serve a cached
	// decision up to the snapshot TTL old. Gating must use Entitlement.
	Snapshot(ctx context.Context, identity *common.Identity) (*billing.Decision, error)
	Profile(ctx context.Context, identity *common.Identity) (*models.SubscriberProfile, error)
}

type usageService struct {
	subscriberRepo repositories.SubscriberRepository
	cache          caching.CacheService
	now            func() time.Time
}

func NewUsageService(subscriberRepo repositories.SubscriberRepository, cache caching.CacheService) UsageService {
	return &usageService{
		subscriberRepo: subscriberRepo,
		cache:          cache,
		now:            time.Now,
	}
}

func (s *usageService) Profile(ctx context.Context, identity *common.Identity) (*models.SubscriberProfile, error) {
	var email, name, phone *string
	if identity.Email != "" {
		email = &identity.Email
	}
	if identity.Name != "" {
		name = &identity.Name
	}
	if identity.Phone != "" {
		phone = &identity.Phone
	}
	return s.subscriberRepo.GetOrCreate(ctx, identity.UserID, email, name, nil, phone)
}

func (s *usageService) Entitlement(ctx context.Context, identity *common.Identity) (*billing.Decision, error) {
	profile, err := s.Profile(ctx, identity)
	if err != nil {
		return nil, err
	}
	decision := billing.Evaluate(profile, s.now())
	s.cacheDecision(ctx, identity.UserID, &decision)
	return &decision, nil
}

func (s *usageService) Snapshot(ctx context.Context, identity *common.Identity) (*billing.Decision, error) {
	if s.cache != nil {
		cached := &billing.Decision{}
		if err := s.cache.GetUsageSnapshot(ctx, identity.UserID, cached); err == nil {
			return cached, nil
		}
	}
	return s.Entitlement(ctx, identity)
}

// RecordQuestion performs the atomic reset-or-increment at the persistence
// layer, then rebuilds the decision from the confirmed count. The stored
// profile is re-read rather than patched so status/expiry changes that landed
// between the gate and the increment are reflected.
func (s *usageService) RecordQuestion(ctx context.Context, identity *common.Identity) (*billing.Decision, error) {
	if _, err := s.subscriberRepo.IncrementDailyUsage(ctx, identity.UserID); err != nil {
		return nil, err
	}
	profile, err := s.subscriberRepo.GetByUserID(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}
	decision := billing.Evaluate(profile, s.now())
	s.cacheDecision(ctx, identity.UserID, &decision)
	return &decision, nil
}

// cacheDecision stores a short-lived display snapshot. It is read-through only
// for UI refreshes; entitlement gating always goes to Postgres.
func (s *usageService) cacheDecision(ctx context.Context, userID string, decision *billing.Decision) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetUsageSnapshot(ctx, userID, decision, 30*time.Second); err != nil {
		log.Printf("WARN: usage snapshot cache write failed for %s: %v", userID, err)
	}
}
