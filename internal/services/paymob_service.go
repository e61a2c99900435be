package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// PaymobService wraps the gateway's three-step checkout handshake and the
// inbound callback signature check. The three calls are strictly sequential:
// every order needs a fresh bearer token, and a payment key needs an order id.
type PaymobService interface {
	Authenticate(ctx context.Context) (string, error)
	CreateOrder(ctx context.Context, authToken string, req *PaymobOrderRequest) (int64, error)
	CreatePaymentKey(ctx context.Context, authToken string, req *PaymentKeyRequest) (string, error)
	VerifyCallbackHMAC(tx *CallbackTransaction, received string) bool
	ComputeCallbackHMAC(tx *CallbackTransaction) string
}

type paymobService struct {
	apiKey     string
	hmacSecret string
	baseURL    string
	http       *http.Client
}

// NewPaymobService creates a gateway client. baseURL is the API root, e.g.
// https://accept.paymob.com/api.
func NewPaymobService(apiKey, hmacSecret, baseURL string) PaymobService {
	return &paymobService{
		apiKey:     apiKey,
		hmacSecret: hmacSecret,
		baseURL:    baseURL,
		http:       &http.Client{Timeout: 15 * time.Second},
	}
}

type PaymobOrderRequest struct {
	AmountCents     int64
	Currency        string
	MerchantOrderID string
	// ItemName carries the human-readable tier/cycle description on the order.
	// It is display-only; the reconciler relies on the payment-key metadata.
	ItemName string
}

// BillingData is the contact block the gateway requires on every payment key.
// The gateway rejects blank fields, so absent values must arrive as "NA".
type BillingData struct {
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Apartment   string `json:"apartment"`
	Building    string `json:"building"`
	Floor       string `json:"floor"`
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`
	PostalCode  string `json:"postal_code"`
}

// PaymentKeyMetadata is echoed back verbatim in the settlement callback and is
// the authoritative channel the reconciler recovers context from.
type PaymentKeyMetadata struct {
	UserID       string `json:"user_id"`
	Tier         string `json:"tier"`
	BillingCycle string `json:"billing_cycle"`
}

type PaymentKeyRequest struct {
	AmountCents   int64
	Currency      string
	OrderID       int64
	IntegrationID string
	Billing       BillingData
	Metadata      PaymentKeyMetadata
}

// CallbackOrder is the order echo inside a settlement callback.
type CallbackOrder struct {
	ID              int64              `json:"id"`
	MerchantOrderID string             `json:"merchant_order_id"`
	ShippingData    *PaymentKeyMetadata `json:"shipping_data"`
}

type CallbackSourceData struct {
	Pan     string `json:"pan"`
	SubType string `json:"sub_type"`
	Type    string `json:"type"`
}

// CallbackTransaction is the `obj` of an inbound webhook. The field set
// mirrors the gateway contract; every member of the HMAC concatenation below
// must be present here.
type CallbackTransaction struct {
	ID                   int64               `json:"id"`
	AmountCents          int64               `json:"amount_cents"`
	CreatedAt            string              `json:"created_at"`
	Currency             string              `json:"currency"`
	ErrorOccured         bool                `json:"error_occured"`
	HasParentTransaction bool                `json:"has_parent_transaction"`
	IntegrationID        int64               `json:"integration_id"`
	Is3DSecure           bool                `json:"is_3d_secure"`
	IsAuth               bool                `json:"is_auth"`
	IsCapture            bool                `json:"is_capture"`
	IsRefunded           bool                `json:"is_refunded"`
	IsStandalonePayment  bool                `json:"is_standalone_payment"`
	IsVoided             bool                `json:"is_voided"`
	Order                CallbackOrder       `json:"order"`
	Owner                int64               `json:"owner"`
	Pending              bool                `json:"pending"`
	SourceData           CallbackSourceData  `json:"source_data"`
	Success              bool                `json:"success"`
	Metadata             *PaymentKeyMetadata `json:"metadata"`
	HMAC                 string              `json:"hmac"`
}

// CallbackPayload is the webhook body envelope.
type CallbackPayload struct {
	Type string              `json:"type"`
	Obj  CallbackTransaction `json:"obj"`
}

// Authenticate exchanges the static API key for a short-lived bearer token.
func (s *paymobService) Authenticate(ctx context.Context) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"api_key": s.apiKey}
	if err := s.post(ctx, "/auth/tokens", body, &resp); err != nil {
		return "", fmt.Errorf("paymob auth failed: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("paymob auth returned empty token")
	}
	return resp.Token, nil
}

// CreateOrder registers the order and returns the gateway order id.
func (s *paymobService) CreateOrder(ctx context.Context, authToken string, req *PaymobOrderRequest) (int64, error) {
	body := map[string]interface{}{
		"auth_token":        authToken,
		"delivery_needed":   false,
		"amount_cents":      req.AmountCents,
		"currency":          req.Currency,
		"merchant_order_id": req.MerchantOrderID,
		"items": []map[string]interface{}{
			{
				"name":         req.ItemName,
				"amount_cents": req.AmountCents,
				"quantity":     1,
			},
		},
	}
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := s.post(ctx, "/ecommerce/orders", body, &resp); err != nil {
		return 0, fmt.Errorf("paymob order creation failed: %w", err)
	}
	if resp.ID == 0 {
		return 0, fmt.Errorf("paymob order creation returned no order id")
	}
	return resp.ID, nil
}

// CreatePaymentKey mints the opaque checkout token for an order.
func (s *paymobService) CreatePaymentKey(ctx context.Context, authToken string, req *PaymentKeyRequest) (string, error) {
	integrationID, err := strconv.ParseInt(req.IntegrationID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid paymob integration id %q: %v", req.IntegrationID, err)
	}

	body := map[string]interface{}{
		"auth_token":     authToken,
		"amount_cents":   req.AmountCents,
		"expiration":     3600,
		"order_id":       req.OrderID,
		"billing_data":   req.Billing,
		"currency":       req.Currency,
		"integration_id": integrationID,
		"metadata":       req.Metadata,
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := s.post(ctx, "/acceptance/payment_keys", body, &resp); err != nil {
		return "", fmt.Errorf("paymob payment key creation failed: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("paymob payment key creation returned empty token")
	}
	return resp.Token, nil
}

// ComputeCallbackHMAC reproduces the gateway's signature: HMAC-SHA512 over the
// contractual field subset concatenated in this exact order, hex-encoded.
// The order is part of the gateway contract; changing it breaks verification
// silently, which is why the golden-vector test pins it.
func (s *paymobService) ComputeCallbackHMAC(tx *CallbackTransaction) string {
	fields := []string{
		strconv.FormatInt(tx.AmountCents, 10),
		tx.CreatedAt,
		tx.Currency,
		strconv.FormatBool(tx.ErrorOccured),
		strconv.FormatBool(tx.HasParentTransaction),
		strconv.FormatInt(tx.ID, 10),
		strconv.FormatInt(tx.IntegrationID, 10),
		strconv.FormatBool(tx.Is3DSecure),
		strconv.FormatBool(tx.IsAuth),
		strconv.FormatBool(tx.IsCapture),
		strconv.FormatBool(tx.IsRefunded),
		strconv.FormatBool(tx.IsStandalonePayment),
		strconv.FormatBool(tx.IsVoided),
		strconv.FormatInt(tx.Order.ID, 10),
		strconv.FormatInt(tx.Owner, 10),
		strconv.FormatBool(tx.Pending),
		tx.SourceData.Pan,
		tx.SourceData.SubType,
		tx.SourceData.Type,
		strconv.FormatBool(tx.Success),
	}

	mac := hmac.New(sha512.New, []byte(s.hmacSecret))
	for _, f := range fields {
		mac.Write([]byte(f))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallbackHMAC checks an inbound callback signature in constant time.
func (s *paymobService) VerifyCallbackHMAC(tx *CallbackTransaction, received string) bool {
	if received == "" {
		return false
	}
	expected := s.ComputeCallbackHMAC(tx)
	return hmac.Equal([]byte(expected), []byte(received))
}

func (s *paymobService) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, truncate(respBody, 512))
	}
	return json.Unmarshal(respBody, out)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
