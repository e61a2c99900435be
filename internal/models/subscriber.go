package models

import (
	"time"
)

// Tier is a named subscription level.
type Tier string

const (
	TierFree    Tier = "free"
	TierBasic   Tier = "basic"
	TierPro     Tier = "pro"
	TierPremium Tier = "premium"
)

// ParseTier validates a tier string coming from the client or a gateway callback.
func ParseTier(s string) (Tier, bool) {
	switch Tier(s) {
	case TierFree, TierBasic, TierPro, TierPremium:
		return Tier(s), true
	}
	return "", false
}

// PaidTiers are the tiers that can be purchased.
var PaidTiers = []Tier{TierBasic, TierPro, TierPremium}

// IsPaid reports whether the tier is one of the purchasable tiers.
func (t Tier) IsPaid() bool {
	return t == TierBasic || t == TierPro || t == TierPremium
}

// SubscriptionStatus is the lifecycle state of a subscriber's plan.
type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusInactive SubscriptionStatus = "inactive"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
)

// BillingCycle is the payment recurrence, affecting price and expiry extension.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

func ParseBillingCycle(s string) (BillingCycle, bool) {
	switch BillingCycle(s) {
	case CycleMonthly, CycleYearly:
		return BillingCycle(s), true
	}
	return "", false
}

// PaymentMethod selects the gateway payment rail.
type PaymentMethod string

const (
	MethodCard         PaymentMethod = "card"
	MethodWallet       PaymentMethod = "wallet"
	MethodInstallments PaymentMethod = "installments"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case MethodCard, MethodWallet, MethodInstallments:
		return PaymentMethod(s), true
	}
	return "", false
}

// SubscriberProfile is the durable per-user subscription record. UserID is the
// opaque identity issued by the hosted auth provider. UsageDate is the calendar
// day DailyQuestionCount belongs to; the repo resets the count when it rolls over.
type SubscriberProfile struct {
	UserID                string             `json:"user_id" db:"user_id"`
	Email                 *string            `json:"email" db:"email"`
	FirstName             *string            `json:"first_name" db:"first_name"`
	LastName              *string            `json:"last_name" db:"last_name"`
	Phone                 *string            `json:"phone" db:"phone"`
	Tier                  Tier               `json:"tier" db:"tier"`
	Status                SubscriptionStatus `json:"status" db:"status"`
	BillingCycle          BillingCycle       `json:"billing_cycle" db:"billing_cycle"`
	DailyQuestionCount    int                `json:"daily_question_count" db:"daily_question_count"`
	UsageDate             time.Time          `json:"usage_date" db:"usage_date"`
	SubscriptionEndDate   *time.Time         `json:"subscription_end_date" db:"subscription_end_date"`
	GatewayCustomerRef    *string            `json:"gateway_customer_ref" db:"gateway_customer_ref"`
	GatewayTransactionRef *string            `json:"gateway_transaction_ref" db:"gateway_transaction_ref"`
	CreatedAt             time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at" db:"updated_at"`
}
