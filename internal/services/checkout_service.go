package services

import (
	"context"
	"fmt"
	"time"

	"mizan2/internal/billing"
	"mizan2/internal/config"
	"mizan2/internal/models"
	"mizan2/internal/repositories"

	"github.com/labstack/gommon/random"
)

// CheckoutService drives the gateway handshake that turns a plan selection
// into a redirectable hosted-checkout session. It writes no local state:
// recovery after a half-finished checkout relies on the gateway's own order
// plus the eventual settlement callback.
type CheckoutService interface {
	CreateOrder(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
}

// CheckoutRequest carries the validated plan selection plus the contact
// fields from the caller's session token, used as fallbacks when the stored
// profile has none.
type CheckoutRequest struct {
	UserID       string
	Tier         models.Tier
	BillingCycle models.BillingCycle
	Method       models.PaymentMethod

	SessionEmail string
	SessionName  string
	SessionPhone string
}

type CheckoutSession struct {
	PaymentToken    string `json:"paymentToken"`
	OrderID         int64  `json:"orderId"`
	MerchantOrderID string `json:"merchantOrderId"`
	IframeID        string `json:"iframeId"`
	IframeURL       string `json:"iframeUrl"`
	AmountCents     int64  `json:"amountCents"`
}

type checkoutService struct {
	subscriberRepo repositories.SubscriberRepository
	paymob         PaymobService
	cfg            config.PaymobConfig
}

func NewCheckoutService(subscriberRepo repositories.SubscriberRepository, paymob PaymobService, cfg config.PaymobConfig) CheckoutService {
	return &checkoutService{
		subscriberRepo: subscriberRepo,
		paymob:         paymob,
		cfg:            cfg,
	}
}

func (s *checkoutService) CreateOrder(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	if !req.Tier.IsPaid() {
		return nil, fmt.Errorf("tier %q is not purchasable", req.Tier)
	}

	amount, err := billing.PriceFor(req.Tier, req.BillingCycle)
	if err != nil {
		return nil, err
	}

	integrationID, err := s.cfg.IntegrationIDFor(req.Method)
	if err != nil {
		return nil, err
	}

	profile, err := s.subscriberRepo.GetByUserID(ctx, req.UserID)
	if err != nil {
		// Checkout must not depend on the profile row existing yet; the
		// session claims and placeholders cover the contact fields.
		profile = nil
	}
	contact := resolveBillingContact(profile, req)

	authToken, err := s.paymob.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	// Timestamp plus a random suffix: repeated attempts by the same user must
	// never collide on the gateway's merchant_order_id uniqueness check.
	merchantOrderID := fmt.Sprintf("%s_%s_%s_%d_%s",
		req.UserID, req.Tier, req.BillingCycle, time.Now().UnixMilli(), random.String(6))

	orderID, err := s.paymob.CreateOrder(ctx, authToken, &PaymobOrderRequest{
		AmountCents:     amount,
		Currency:        billing.Currency,
		MerchantOrderID: merchantOrderID,
		ItemName:        fmt.Sprintf("Mizan %s plan (%s)", req.Tier, req.BillingCycle),
	})
	if err != nil {
		return nil, err
	}

	paymentToken, err := s.paymob.CreatePaymentKey(ctx, authToken, &PaymentKeyRequest{
		AmountCents:   amount,
		Currency:      billing.Currency,
		OrderID:       orderID,
		IntegrationID: integrationID,
		Billing:       contact,
		Metadata: PaymentKeyMetadata{
			UserID:       req.UserID,
			Tier:         string(req.Tier),
			BillingCycle: string(req.BillingCycle),
		},
	})
	if err != nil {
		return nil, err
	}

	return &CheckoutSession{
		PaymentToken:    paymentToken,
		OrderID:         orderID,
		MerchantOrderID: merchantOrderID,
		IframeID:        s.cfg.IframeID,
		IframeURL:       fmt.Sprintf("%s/%s?payment_token=%s", s.cfg.CheckoutBase, s.cfg.IframeID, paymentToken),
		AmountCents:     amount,
	}, nil
}

const contactPlaceholder = "NA"

// resolveBillingContact fills the gateway's mandatory contact block by
// preference: stored profile, then session claims, then placeholders. The
// gateway rejects blank fields, so nothing may stay empty.
func resolveBillingContact(profile *models.SubscriberProfile, req *CheckoutRequest) BillingData {
	var email, firstName, lastName, phone string
	if profile != nil {
		email = deref(profile.Email)
		firstName = deref(profile.FirstName)
		lastName = deref(profile.LastName)
		phone = deref(profile.Phone)
	}
	return BillingData{
		Email:       firstNonEmpty(email, req.SessionEmail, contactPlaceholder),
		FirstName:   firstNonEmpty(firstName, req.SessionName, contactPlaceholder),
		LastName:    firstNonEmpty(lastName, contactPlaceholder),
		PhoneNumber: firstNonEmpty(phone, req.SessionPhone, contactPlaceholder),
		Apartment:   contactPlaceholder,
		Building:    contactPlaceholder,
		Floor:       contactPlaceholder,
		Street:      contactPlaceholder,
		City:        contactPlaceholder,
		State:       contactPlaceholder,
		Country:     "EG",
		PostalCode:  contactPlaceholder,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
