package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"mizan2/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, record *models.PaymentRecord) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) GetByTransactionRef(ctx context.Context, transactionRef string) (*models.PaymentRecord, error) {
	args := m.Called(ctx, transactionRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentRecord), args.Error(1)
}

func (m *MockPaymentRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.PaymentRecord, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]*models.PaymentRecord), args.Error(1)
}

type MockRetryQueue struct {
	mock.Mock
}

func (m *MockRetryQueue) Enqueue(ctx context.Context, activation *models.PendingActivation) error {
	args := m.Called(ctx, activation)
	return args.Error(0)
}

func (m *MockRetryQueue) Dequeue(ctx context.Context) (*models.PendingActivation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PendingActivation), args.Error(1)
}

type MockSnapshotInvalidator struct {
	mock.Mock
}

func (m *MockSnapshotInvalidator) DeleteUsageSnapshot(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

var settlementNow = time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)

func newTestSettlementService(subscriberRepo *MockSubscriberRepository, paymentRepo *MockPaymentRepository, queue *MockRetryQueue) *settlementService {
	return &settlementService{
		subscriberRepo: subscriberRepo,
		paymentRepo:    paymentRepo,
		retryQueue:     queue,
		now:            func() time.Time { return settlementNow },
	}
}

func successCallback() *CallbackTransaction {
	tx := sampleCallbackTransaction()
	tx.Metadata = &PaymentKeyMetadata{UserID: "user-1", Tier: "basic", BillingCycle: "monthly"}
	return tx
}

// Successful monthly settlement: one succeeded ledger row and the profile
// activated with an end date exactly one calendar month out.
func TestReconcile_SuccessActivatesSubscription(t *testing.T) {
	subscriberRepo := new(MockSubscriberRepository)
	paymentRepo := new(MockPaymentRepository)

	paymentRepo.On("Create", mock.Anything, mock.MatchedBy(func(r *models.PaymentRecord) bool {
		return r.TransactionRef == "12345678" &&
			r.OrderRef == "87654321" &&
			r.Status == models.PaymentSucceeded &&
			r.Tier == models.TierBasic &&
			r.BillingCycle == models.CycleMonthly &&
			r.AmountCents == 30000 &&
			r.Currency == "EGP" &&
			r.UserID == "user-1"
	})).Return(true, nil)

	wantEnd := settlementNow.AddDate(0, 1, 0)
	subscriberRepo.On("ActivateSubscription", mock.Anything, "user-1", models.TierBasic, models.CycleMonthly, wantEnd, "42", "12345678").Return(nil)

	svc := newTestSettlementService(subscriberRepo, paymentRepo, new(MockRetryQueue))
	err := svc.Reconcile(context.Background(), successCallback())

	require.NoError(t, err)
	paymentRepo.AssertExpectations(t)
	subscriberRepo.AssertExpectations(t)
}

func TestReconcile_YearlyExtendsOneCalendarYear(t *testing.T) {
	subscriberRepo := new(MockSubscriberRepository)
	paymentRepo := new(MockPaymentRepository)

	tx := successCallback()
	tx.Metadata.Tier = "pro"
	tx.Metadata.BillingCycle = "yearly"

	paymentRepo.On("Create", mock.Anything, mock.Anything).Return(true, nil)
	subscriberRepo.On("ActivateSubscription", mock.Anything, "user-1", models.TierPro, models.CycleYearly, settlementNow.AddDate(1, 0, 0), "42", "12345678").Return(nil)

	svc := newTestSettlementService(subscriberRepo, paymentRepo, new(MockRetryQueue))
	require.NoError(t, svc.Reconcile(context.Background(), tx))
	subscriberRepo.AssertExpectations(t)
}

// A redelivered webhook for an already-settled transaction is a no-op success:
// no second ledger row, no second extension.
func TestReconcile_DuplicateDeliveryIsNoop(t *testing.T) {
	subscriberRepo := new(MockSubscriberRepository)
	paymentRepo := new(MockPaymentRepository)

	paymentRepo.On("Create", mock.Anything, mock.Anything).Return(false, nil)

	svc := newTestSettlementService(subscriberRepo, paymentRepo, new(MockRetryQueue))
	err := svc.Reconcile(context.Background(), successCallback())

	require.NoError(t, err)
	subscriberRepo.AssertNotCalled(t, "ActivateSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// Failed payments are ledgered but never touch the profile.
func TestReconcile_FailureOnlyAppendsLedger(t *testing.T) {
	subscriberRepo := new(MockSubscriberRepository)
	paymentRepo := new(MockPaymentRepository)

	tx := successCallback()
	tx.Success = false

	paymentRepo.On("Create", mock.Anything, mock.MatchedBy(func(r *models.PaymentRecord) bool {
		return r.Status == models.PaymentFailed
	})).Return(true, nil)

	svc := newTestSettlementService(subscriberRepo, paymentRepo, new(MockRetryQueue))
	require.NoError(t, svc.Reconcile(context.Background(), tx))
	subscriberRepo.AssertNotCalled(t, "ActivateSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// A refunded "success" is not a success.
func TestReconcile_RefundedIsRecordedAsFailed(t *testing.T) {
	subscriberRepo := new(MockSubscriberRepository)
	paymentRepo := new(MockPaymentRepository)

	tx := successCallback()
	tx.IsRefunded = true

	paymentRepo.On("Create", mock.Anything, mock.MatchedBy(func(r *models.PaymentRecord) bool {
		return r.Status == models.PaymentFailed
	})).Return(true, nil)

	svc := newTestSettlementService(subscriberRepo, paymentRepo, new(MockRetryQueue))
	require.NoError(t, svc.Reconcile(context.Background(), tx))
	subscriberRepo.AssertNotCalled(t, "ActivateSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_MissingMetadataRejected(t *testing.T) {
	tx := sampleCallbackTransaction() // no metadata, no shipping_data

	svc := newTestSettlementService(new(MockSubscriberRepository), new(MockPaymentRepository), new(MockRetryQueue))
	err := svc.Reconcile(context.Background(), tx)
	assert.ErrorIs(t, err, ErrMalformedCallback)
}

func TestReconcile_UnknownTierRejected(t *testing.T) {
	tx := successCallback()
	tx.Metadata.Tier = "platinum"

	svc := newTestSettlementService(new(MockSubscriberRepository), new(MockPaymentRepository), new(MockRetryQueue))
	err := svc.Reconcile(context.Background(), tx)
	assert.ErrorIs(t, err, ErrMalformedCallback)
}

// Legacy integrations carry the context in order.shipping_data instead.
func TestReconcile_LegacyShippingDataFallback(t *testing.T) {
	subscriberRepo := new(MockSubscriberRepository)
	paymentRepo := new(MockPaymentRepository)

	tx := sampleCallbackTransaction()
	tx.Order.ShippingData = &PaymentKeyMetadata{UserID: "user-9", Tier: "premium", BillingCycle: "monthly"}

	paymentRepo.On("Create", mock.Anything, mock.MatchedBy(func(r *models.PaymentRecord) bool {
		return r.UserID == "user-9" && r.Tier == models.TierPremium
	})).Return(true, nil)
	subscriberRepo.On("ActivateSubscription", mock.Anything, "user-9", models.TierPremium, models.CycleMonthly, mock.Anything, "42", "12345678").Return(nil)

	svc := newTestSettlementService(subscriberRepo, paymentRepo, new(MockRetryQueue))
	require.NoError(t, svc.Reconcile(context.Background(), tx))
	subscriberRepo.AssertExpectations(t)
}

// Activation failure after the ledger row landed: the event is still
// acknowledged (nil) and the activation parked for the retry job.
func TestReconcile_ActivationFailureParksRetry(t *testing.T) {
	subscriberRepo := new(MockSubscriberRepository)
	paymentRepo := new(MockPaymentRepository)
	queue := new(MockRetryQueue)

	paymentRepo.On("Create", mock.Anything, mock.Anything).Return(true, nil)
	subscriberRepo.On("ActivateSubscription", mock.Anything, "user-1", models.TierBasic, models.CycleMonthly, mock.Anything, "42", "12345678").Return(errors.New("connection reset"))
	queue.On("Enqueue", mock.Anything, mock.MatchedBy(func(a *models.PendingActivation) bool {
		return a.UserID == "user-1" && a.TransactionRef == "12345678" && a.EndDate.Equal(settlementNow.AddDate(0, 1, 0))
	})).Return(nil)

	svc := newTestSettlementService(subscriberRepo, paymentRepo, queue)
	err := svc.Reconcile(context.Background(), successCallback())

	require.NoError(t, err)
	queue.AssertExpectations(t)
}

// Ledger write failure on a successful payment: acknowledged, activation parked.
func TestReconcile_LedgerFailureParksRetry(t *testing.T) {
	subscriberRepo := new(MockSubscriberRepository)
	paymentRepo := new(MockPaymentRepository)
	queue := new(MockRetryQueue)

	paymentRepo.On("Create", mock.Anything, mock.Anything).Return(false, errors.New("deadlock"))
	queue.On("Enqueue", mock.Anything, mock.Anything).Return(nil)

	svc := newTestSettlementService(subscriberRepo, paymentRepo, queue)
	err := svc.Reconcile(context.Background(), successCallback())

	require.NoError(t, err)
	queue.AssertExpectations(t)
	subscriberRepo.AssertNotCalled(t, "ActivateSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// A tier change must be visible immediately, not after the snapshot TTL.
func TestReconcile_SuccessDropsCachedSnapshot(t *testing.T) {
	subscriberRepo := new(MockSubscriberRepository)
	paymentRepo := new(MockPaymentRepository)
	snapshots := new(MockSnapshotInvalidator)

	paymentRepo.On("Create", mock.Anything, mock.Anything).Return(true, nil)
	subscriberRepo.On("ActivateSubscription", mock.Anything, "user-1", models.TierBasic, models.CycleMonthly, mock.Anything, "42", "12345678").Return(nil)
	snapshots.On("DeleteUsageSnapshot", mock.Anything, "user-1").Return(nil)

	svc := newTestSettlementService(subscriberRepo, paymentRepo, new(MockRetryQueue))
	svc.snapshots = snapshots

	require.NoError(t, svc.Reconcile(context.Background(), successCallback()))
	snapshots.AssertExpectations(t)
}

func TestApplyActivation(t *testing.T) {
	subscriberRepo := new(MockSubscriberRepository)
	end := settlementNow.AddDate(0, 1, 0)
	subscriberRepo.On("ActivateSubscription", mock.Anything, "user-1", models.TierBasic, models.CycleMonthly, end, "42", "12345678").Return(nil)

	svc := newTestSettlementService(subscriberRepo, new(MockPaymentRepository), new(MockRetryQueue))
	err := svc.ApplyActivation(context.Background(), &models.PendingActivation{
		UserID:         "user-1",
		Tier:           models.TierBasic,
		BillingCycle:   models.CycleMonthly,
		EndDate:        end,
		CustomerRef:    "42",
		TransactionRef: "12345678",
	})
	require.NoError(t, err)
	subscriberRepo.AssertExpectations(t)
}
