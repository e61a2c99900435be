package repositories

import (
	"context"
	"time"

	"mizan2/internal/models"
)

type SubscriberRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.SubscriberProfile, error)
	GetOrCreate(ctx context.Context, userID string, email, firstName, lastName, phone *string) (*models.SubscriberProfile, error)
	IncrementDailyUsage(ctx context.Context, userID string) (int, error)
	ActivateSubscription(ctx context.Context, userID string, tier models.Tier, cycle models.BillingCycle, endDate time.Time, customerRef, transactionRef string) error
	MarkLapsed(ctx context.Context, now time.Time) (int64, error)
}

type subscriberRepo struct {
	db Database
}

func NewSubscriberRepo(db Database) SubscriberRepository {
	return &subscriberRepo{db: db}
}

const subscriberColumns = `user_id, email, first_name, last_name, phone, tier, status, billing_cycle, daily_question_count, usage_date, subscription_end_date, gateway_customer_ref, gateway_transaction_ref, created_at, updated_at`

func (r *subscriberRepo) scanOne(row interface{ Scan(dest ...any) error }) (*models.SubscriberProfile, error) {
	p := &models.SubscriberProfile{}
	err := row.Scan(&p.UserID, &p.Email, &p.FirstName, &p.LastName, &p.Phone, &p.Tier, &p.Status, &p.BillingCycle, &p.DailyQuestionCount, &p.UsageDate, &p.SubscriptionEndDate, &p.GatewayCustomerRef, &p.GatewayTransactionRef, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *subscriberRepo) GetByUserID(ctx context.Context, userID string) (*models.SubscriberProfile, error) {
	query := `
		SELECT ` + subscriberColumns + `
		FROM subscribers
		WHERE user_id = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, userID))
}

// GetOrCreate inserts a free/inactive profile for a first-seen identity and
// returns the current row either way. This is the one-way migration point from
// the untrusted pre-auth client counter: server state starts at zero here.
func (r *subscriberRepo) GetOrCreate(ctx context.Context, userID string, email, firstName, lastName, phone *string) (*models.SubscriberProfile, error) {
	insert := `
		INSERT INTO subscribers (user_id, email, first_name, last_name, phone, tier, status, billing_cycle, daily_question_count, usage_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'free', 'inactive', 'monthly', 0, CURRENT_DATE, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, insert, userID, email, firstName, lastName, phone); err != nil {
		return nil, err
	}
	return r.GetByUserID(ctx, userID)
}

// IncrementDailyUsage performs the compare-day/reset/increment as one
// statement so two concurrent questions can never both observe a stale
// pre-rollover count. Returns the count after the increment.
func (r *subscriberRepo) IncrementDailyUsage(ctx context.Context, userID string) (int, error) {
	query := `
		UPDATE subscribers
		SET daily_question_count = CASE WHEN usage_date = CURRENT_DATE THEN daily_question_count + 1 ELSE 1 END,
		    usage_date = CURRENT_DATE,
		    updated_at = NOW()
		WHERE user_id = $1
		RETURNING daily_question_count
	`
	var count int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ActivateSubscription upserts the paid state. A subscriber whose first
// server interaction was checkout has no profile row yet when the settlement
// callback lands; a plain UPDATE would match zero rows and the paid activation
// would vanish without an error.
func (r *subscriberRepo) ActivateSubscription(ctx context.Context, userID string, tier models.Tier, cycle models.BillingCycle, endDate time.Time, customerRef, transactionRef string) error {
	query := `
		INSERT INTO subscribers (user_id, tier, status, billing_cycle, daily_question_count, usage_date, subscription_end_date, gateway_customer_ref, gateway_transaction_ref, created_at, updated_at)
		VALUES ($1, $2, 'active', $3, 0, CURRENT_DATE, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET tier = EXCLUDED.tier, status = 'active', billing_cycle = EXCLUDED.billing_cycle,
		    subscription_end_date = EXCLUDED.subscription_end_date,
		    gateway_customer_ref = EXCLUDED.gateway_customer_ref,
		    gateway_transaction_ref = EXCLUDED.gateway_transaction_ref,
		    updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, userID, tier, cycle, endDate, customerRef, transactionRef)
	return err
}

// MarkLapsed flips active paid subscriptions whose end date has passed to
// past_due. Run by the daily sweep job.
func (r *subscriberRepo) MarkLapsed(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE subscribers
		SET status = 'past_due', updated_at = NOW()
		WHERE status = 'active' AND tier <> 'free'
		  AND subscription_end_date IS NOT NULL AND subscription_end_date < $1
	`
	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
