package repositories

import (
	"context"

	"mizan2/internal/models"
)

type PaymentRepository interface {
	// Create appends a ledger row. Returns false with a nil error when a row
	// for the same transaction_ref already exists (duplicate webhook delivery).
	Create(ctx context.Context, record *models.PaymentRecord) (bool, error)
	GetByTransactionRef(ctx context.Context, transactionRef string) (*models.PaymentRecord, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.PaymentRecord, error)
}

type paymentRepo struct {
	db Database
}

func NewPaymentRepo(db Database) PaymentRepository {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) Create(ctx context.Context, record *models.PaymentRecord) (bool, error) {
	query := `
		INSERT INTO payments (id, user_id, transaction_ref, order_ref, amount_cents, currency, status, tier, billing_cycle, payment_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (transaction_ref) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, record.ID, record.UserID, record.TransactionRef, record.OrderRef, record.AmountCents, record.Currency, record.Status, record.Tier, record.BillingCycle, record.PaymentMethod)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepo) GetByTransactionRef(ctx context.Context, transactionRef string) (*models.PaymentRecord, error) {
	record := &models.PaymentRecord{}
	query := `
		SELECT id, user_id, transaction_ref, order_ref, amount_cents, currency, status, tier, billing_cycle, payment_method, created_at
		FROM payments
		WHERE transaction_ref = $1
	`
	err := r.db.QueryRow(ctx, query, transactionRef).Scan(&record.ID, &record.UserID, &record.TransactionRef, &record.OrderRef, &record.AmountCents, &record.Currency, &record.Status, &record.Tier, &record.BillingCycle, &record.PaymentMethod, &record.CreatedAt)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *paymentRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.PaymentRecord, error) {
	query := `
		SELECT id, user_id, transaction_ref, order_ref, amount_cents, currency, status, tier, billing_cycle, payment_method, created_at
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.PaymentRecord
	for rows.Next() {
		record := &models.PaymentRecord{}
		if err := rows.Scan(&record.ID, &record.UserID, &record.TransactionRef, &record.OrderRef, &record.AmountCents, &record.Currency, &record.Status, &record.Tier, &record.BillingCycle, &record.PaymentMethod, &record.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
