package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mizan2/internal/common"
	"mizan2/internal/models"
	"mizan2/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) CreateOrder(ctx context.Context, req *services.CheckoutRequest) (*services.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CheckoutSession), args.Error(1)
}

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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PaymentRecord), args.Error(1)
}

func postCreateOrder(t *testing.T, handler *BillingHandlers, body string, identity *common.Identity) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions/create-order", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if identity != nil {
		req = req.WithContext(common.WithIdentity(req.Context(), identity))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.CreateOrder(c)
	if err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func decodeErrorEnvelope(t *testing.T, rec *httptest.ResponseRecorder) *common.ErrorResponse {
	t.Helper()

	var resp common.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return &resp
}

func billingTestIdentity() *common.Identity {
	return &common.Identity{UserID: "auth0|507f1f77bcf86cd799439011", Email: "user@example.com"}
}

// Every client error from this endpoint carries the same response envelope,
// whether the body failed to bind or a field failed validation.
func TestCreateOrder_InvalidTierUsesErrorEnvelope(t *testing.T) {
	checkout := new(MockCheckoutService)
	handler := NewBillingHandlers(checkout, new(MockPaymentRepository))

	rec := postCreateOrder(t, handler, `{"tier":"platinum","billingCycle":"monthly","paymentMethod":"card"}`, billingTestIdentity())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeErrorEnvelope(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Details, "tier")
	checkout.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestCreateOrder_InvalidBillingCycleUsesErrorEnvelope(t *testing.T) {
	checkout := new(MockCheckoutService)
	handler := NewBillingHandlers(checkout, new(MockPaymentRepository))

	rec := postCreateOrder(t, handler, `{"tier":"pro","billingCycle":"weekly","paymentMethod":"card"}`, billingTestIdentity())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeErrorEnvelope(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Details, "billingCycle")
	checkout.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestCreateOrder_MalformedBodyUsesErrorEnvelope(t *testing.T) {
	checkout := new(MockCheckoutService)
	handler := NewBillingHandlers(checkout, new(MockPaymentRepository))

	rec := postCreateOrder(t, handler, `{"tier":`, billingTestIdentity())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeErrorEnvelope(t, rec)
	assert.Equal(t, "CLIENT_ERROR", resp.Error.Code)
	checkout.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestCreateOrder_MissingIdentityUsesErrorEnvelope(t *testing.T) {
	checkout := new(MockCheckoutService)
	handler := NewBillingHandlers(checkout, new(MockPaymentRepository))

	rec := postCreateOrder(t, handler, `{"tier":"pro","billingCycle":"monthly","paymentMethod":"card"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeErrorEnvelope(t, rec)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
	checkout.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestCreateOrder_GatewayFailureUsesErrorEnvelope(t *testing.T) {
	checkout := new(MockCheckoutService)
	handler := NewBillingHandlers(checkout, new(MockPaymentRepository))

	checkout.On("CreateOrder", mock.Anything, mock.MatchedBy(func(req *services.CheckoutRequest) bool {
		return req.Tier == models.TierPro && req.BillingCycle == models.CycleMonthly && req.Method == models.MethodCard
	})).Return(nil, errors.New("gateway timeout"))

	rec := postCreateOrder(t, handler, `{"tier":"pro","billingCycle":"monthly","paymentMethod":"card"}`, billingTestIdentity())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeErrorEnvelope(t, rec)
	assert.Equal(t, "SERVER_ERROR", resp.Error.Code)
	checkout.AssertExpectations(t)
}

func TestCreateOrder_ReturnsCheckoutSession(t *testing.T) {
	checkout := new(MockCheckoutService)
	handler := NewBillingHandlers(checkout, new(MockPaymentRepository))

	checkout.On("CreateOrder", mock.Anything, mock.Anything).Return(&services.CheckoutSession{
		PaymentToken: "tok-123",
		OrderID:      87654321,
		IframeID:     "778899",
		IframeURL:    "https://accept.paymob.com/api/acceptance/iframes/778899?payment_token=tok-123",
	}, nil)

	rec := postCreateOrder(t, handler, `{"tier":"pro","billingCycle":"monthly","paymentMethod":"card"}`, billingTestIdentity())

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "tok-123", body["paymentToken"])
	checkout.AssertExpectations(t)
}
