package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHMACSecret = "test-hmac-secret"

func sampleCallbackTransaction() *CallbackTransaction {
	return &CallbackTransaction{
		ID:                   12345678,
		AmountCents:          30000,
		CreatedAt:            "2024-05-14T10:00:00.000000",
		Currency:             "EGP",
		ErrorOccured:         false,
		HasParentTransaction: false,
		IntegrationID:        111222,
		Is3DSecure:           true,
		IsAuth:               false,
		IsCapture:            false,
		IsRefunded:           false,
		IsStandalonePayment:  true,
		IsVoided:             false,
		Order:                CallbackOrder{ID: 87654321},
		Owner:                42,
		Pending:              false,
		SourceData:           CallbackSourceData{Pan: "2345", SubType: "MasterCard", Type: "card"},
		Success:              true,
	}
}

// Golden vector: the concatenation order is gateway contract and reordering
// breaks verification without any error, so the exact digest is pinned here.
// Computed independently as HMAC-SHA512 over
// amount_cents .. created_at .. currency .. flags .. order.id .. owner ..
// pending .. source_data .. success with the secret above.
func TestComputeCallbackHMAC_GoldenVector(t *testing.T) {
	svc := NewPaymobService("api-key", testHMACSecret, "http://unused").(*paymobService)

	const want = "cd3941961a15803e73a2b22d87829b073255e947acb8ab37a2cd35186debac0a63b805ee9ab303ace49e539bfe0935e063ee3a9bff1c32024043a6c00c5ae63c"
	assert.Equal(t, want, svc.ComputeCallbackHMAC(sampleCallbackTransaction()))
}

func TestComputeCallbackHMAC_FlippedFieldChangesDigest(t *testing.T) {
	svc := NewPaymobService("api-key", testHMACSecret, "http://unused").(*paymobService)

	base := svc.ComputeCallbackHMAC(sampleCallbackTransaction())

	flipped := sampleCallbackTransaction()
	flipped.Success = false
	const wantFlipped = "51da89995d2735b771c37df2e648183e66280caad1233b5b77850f3f99b6d5fef5c80fe5f600706647e9a5c28f278bed13ebc312d9d1ff61934bde3acbecf362"
	assert.Equal(t, wantFlipped, svc.ComputeCallbackHMAC(flipped))
	assert.NotEqual(t, base, svc.ComputeCallbackHMAC(flipped))

	amountChanged := sampleCallbackTransaction()
	amountChanged.AmountCents = 30001
	assert.NotEqual(t, base, svc.ComputeCallbackHMAC(amountChanged))

	refunded := sampleCallbackTransaction()
	refunded.IsRefunded = true
	assert.NotEqual(t, base, svc.ComputeCallbackHMAC(refunded))
}

func TestVerifyCallbackHMAC(t *testing.T) {
	svc := NewPaymobService("api-key", testHMACSecret, "http://unused").(*paymobService)
	tx := sampleCallbackTransaction()

	assert.True(t, svc.VerifyCallbackHMAC(tx, svc.ComputeCallbackHMAC(tx)))
	assert.False(t, svc.VerifyCallbackHMAC(tx, "deadbeef"))
	assert.False(t, svc.VerifyCallbackHMAC(tx, ""))

	other := NewPaymobService("api-key", "other-secret", "http://unused").(*paymobService)
	assert.False(t, other.VerifyCallbackHMAC(tx, svc.ComputeCallbackHMAC(tx)))
}

// Exercises the three-call handshake against a fake gateway and checks each
// request body carries what the contract requires.
func TestPaymobHandshake(t *testing.T) {
	var calls []string

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/tokens", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "auth")
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "api-key", req["api_key"])
		json.NewEncoder(w).Encode(map[string]string{"token": "bearer-1"})
	})
	mux.HandleFunc("/ecommerce/orders", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "order")
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bearer-1", req["auth_token"])
		assert.EqualValues(t, 30000, req["amount_cents"])
		assert.Equal(t, "EGP", req["currency"])
		assert.NotEmpty(t, req["merchant_order_id"])
		json.NewEncoder(w).Encode(map[string]int64{"id": 555})
	})
	mux.HandleFunc("/acceptance/payment_keys", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "key")
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bearer-1", req["auth_token"])
		assert.EqualValues(t, 555, req["order_id"])
		assert.EqualValues(t, 3600, req["expiration"])
		assert.EqualValues(t, 111222, req["integration_id"])

		billing := req["billing_data"].(map[string]interface{})
		assert.NotEmpty(t, billing["email"])
		assert.NotEmpty(t, billing["phone_number"])

		metadata := req["metadata"].(map[string]interface{})
		assert.Equal(t, "user-1", metadata["user_id"])
		assert.Equal(t, "pro", metadata["tier"])
		assert.Equal(t, "monthly", metadata["billing_cycle"])
		json.NewEncoder(w).Encode(map[string]string{"token": "payment-token-xyz"})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	svc := NewPaymobService("api-key", testHMACSecret, server.URL)
	ctx := context.Background()

	token, err := svc.Authenticate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bearer-1", token)

	orderID, err := svc.CreateOrder(ctx, token, &PaymobOrderRequest{
		AmountCents:     30000,
		Currency:        "EGP",
		MerchantOrderID: "user-1_pro_monthly_1715680800000_abc123",
		ItemName:        "Mizan pro plan (monthly)",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 555, orderID)

	paymentToken, err := svc.CreatePaymentKey(ctx, token, &PaymentKeyRequest{
		AmountCents:   30000,
		Currency:      "EGP",
		OrderID:       orderID,
		IntegrationID: "111222",
		Billing: BillingData{
			Email: "user@example.com", FirstName: "Sara", LastName: "NA",
			PhoneNumber: "+201000000000", Apartment: "NA", Building: "NA",
			Floor: "NA", Street: "NA", City: "NA", State: "NA",
			Country: "EG", PostalCode: "NA",
		},
		Metadata: PaymentKeyMetadata{UserID: "user-1", Tier: "pro", BillingCycle: "monthly"},
	})
	require.NoError(t, err)
	assert.Equal(t, "payment-token-xyz", paymentToken)

	assert.Equal(t, []string{"auth", "order", "key"}, calls)
}

func TestPaymobHandshake_GatewayErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	svc := NewPaymobService("bad-key", testHMACSecret, server.URL)
	_, err := svc.Authenticate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestCreatePaymentKey_BadIntegrationID(t *testing.T) {
	svc := NewPaymobService("api-key", testHMACSecret, "http://unused")
	_, err := svc.CreatePaymentKey(context.Background(), "bearer", &PaymentKeyRequest{
		IntegrationID: "not-a-number",
	})
	assert.Error(t, err)
}
