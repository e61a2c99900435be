package billing

import (
	"time"

	"mizan2/internal/models"
)

// Unlimited is the Limit value reported for tiers without a daily cap.
const Unlimited = -1

var dailyLimits = map[models.Tier]int{
	models.TierFree:    3,
	models.TierBasic:   10,
	models.TierPro:     50,
	models.TierPremium: Unlimited,
}

// DailyLimit returns the question cap for a tier. Unknown tiers fall back to
// the free limit rather than granting anything.
func DailyLimit(tier models.Tier) int {
	if limit, ok := dailyLimits[tier]; ok {
		return limit
	}
	return dailyLimits[models.TierFree]
}

// Reason explains an entitlement decision. The client renders a different
// prompt per reason (upgrade vs renew), so these values are part of the API.
type Reason string

const (
	ReasonOK           Reason = "ok"
	ReasonLimitReached Reason = "limit_reached"
	ReasonExpired      Reason = "subscription_expired"
	ReasonInactive     Reason = "subscription_inactive"
)

// Decision is the server-confirmed entitlement snapshot the client trusts.
type Decision struct {
	Allowed   bool        `json:"allowed"`
	Reason    Reason      `json:"reason"`
	Tier      models.Tier `json:"tier"`
	Used      int         `json:"used"`
	Limit     int         `json:"limit"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

// UsedToday returns the counter value valid for "now": a stored count from a
// previous calendar day reads as zero even before the repo has rolled it over.
func UsedToday(profile *models.SubscriberProfile, now time.Time) int {
	if !sameDay(profile.UsageDate, now) {
		return 0
	}
	return profile.DailyQuestionCount
}

// Evaluate computes whether the subscriber may ask a question right now.
// Pure over stored state: no side effects, no counter mutation.
//
// Entitlement = not expired AND (status active OR free tier) AND under limit.
// The free tier never consults the expiry date, even if one is populated.
func Evaluate(profile *models.SubscriberProfile, now time.Time) Decision {
	d := Decision{
		Tier:      profile.Tier,
		Used:      UsedToday(profile, now),
		Limit:     DailyLimit(profile.Tier),
		ExpiresAt: profile.SubscriptionEndDate,
	}

	if profile.Tier != models.TierFree {
		if profile.SubscriptionEndDate != nil && profile.SubscriptionEndDate.Before(now) {
			d.Reason = ReasonExpired
			return d
		}
		if profile.Status != models.StatusActive {
			d.Reason = ReasonInactive
			return d
		}
	}

	if d.Limit != Unlimited && d.Used >= d.Limit {
		d.Reason = ReasonLimitReached
		return d
	}

	d.Allowed = true
	d.Reason = ReasonOK
	return d
}

// CanAskQuestion is the boolean view of Evaluate.
func CanAskQuestion(profile *models.SubscriberProfile, now time.Time) bool {
	return Evaluate(profile, now).Allowed
}

// Remaining returns the questions left today, or Unlimited.
func Remaining(profile *models.SubscriberProfile, now time.Time) int {
	limit := DailyLimit(profile.Tier)
	if limit == Unlimited {
		return Unlimited
	}
	left := limit - UsedToday(profile, now)
	if left < 0 {
		return 0
	}
	return left
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
