package handlers

import (
	"net/http"
	"strconv"

	"mizan2/internal/billing"
	"mizan2/internal/common"
	"mizan2/internal/models"
	"mizan2/internal/repositories"
	"mizan2/internal/services"

	"github.com/labstack/echo/v4"
)

// BillingHandlers handles plan listing, checkout initiation and payment history.
type BillingHandlers struct {
	checkoutService services.CheckoutService
	paymentRepo     repositories.PaymentRepository
}

func NewBillingHandlers(checkoutService services.CheckoutService, paymentRepo repositories.PaymentRepository) *BillingHandlers {
	return &BillingHandlers{
		checkoutService: checkoutService,
		paymentRepo:     paymentRepo,
	}
}

type planView struct {
	Tier         models.Tier `json:"tier"`
	DailyLimit   int         `json:"daily_limit"`
	MonthlyCents int64       `json:"monthly_cents"`
	YearlyCents  int64       `json:"yearly_cents"`
	Currency     string      `json:"currency"`
}

// ListPlans handles GET /v1/plans. Public: the pricing page reads this.
func (h *BillingHandlers) ListPlans(c echo.Context) error {
	plans := []planView{
		{Tier: models.TierFree, DailyLimit: billing.DailyLimit(models.TierFree), Currency: billing.Currency},
	}
	for _, tier := range models.PaidTiers {
		monthly, err := billing.PriceFor(tier, models.CycleMonthly)
		if err != nil {
			return common.SendServerError(c, err.Error())
		}
		yearly, err := billing.PriceFor(tier, models.CycleYearly)
		if err != nil {
			return common.SendServerError(c, err.Error())
		}
		plans = append(plans, planView{
			Tier:         tier,
			DailyLimit:   billing.DailyLimit(tier),
			MonthlyCents: monthly,
			YearlyCents:  yearly,
			Currency:     billing.Currency,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"plans": plans})
}

// CreateOrder handles POST /v1/subscriptions/create-order. Validates the plan
// selection, then drives the gateway handshake and returns the hosted-checkout
// redirect. Input problems are 400s; configuration and gateway problems are
// 500s with the upstream message attached for support diagnostics.
func (h *BillingHandlers) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()

	identity, ok := common.IdentityFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req struct {
		Tier          string `json:"tier"`
		BillingCycle  string `json:"billingCycle"`
		PaymentMethod string `json:"paymentMethod"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	tier, ok := models.ParseTier(req.Tier)
	if !ok || !tier.IsPaid() {
		return common.SendValidationError(c, "tier", "must be one of basic, pro, premium")
	}
	cycle, ok := models.ParseBillingCycle(req.BillingCycle)
	if !ok {
		return common.SendValidationError(c, "billingCycle", "must be monthly or yearly")
	}
	method, ok := models.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return common.SendValidationError(c, "paymentMethod", "must be one of card, wallet, installments")
	}

	session, err := h.checkoutService.CreateOrder(ctx, &services.CheckoutRequest{
		UserID:       identity.UserID,
		Tier:         tier,
		BillingCycle: cycle,
		Method:       method,
		SessionEmail: identity.Email,
		SessionName:  identity.Name,
		SessionPhone: identity.Phone,
	})
	if err != nil {
		return common.SendServerError(c, "Payment initiation failed: "+err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":      true,
		"paymentToken": session.PaymentToken,
		"orderId":      session.OrderID,
		"iframeId":     session.IframeID,
		"iframeUrl":    session.IframeURL,
	})
}

// ListPayments handles GET /v1/payments: the caller's settlement ledger.
func (h *BillingHandlers) ListPayments(c echo.Context) error {
	ctx := c.Request().Context()

	identity, ok := common.IdentityFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	limit := 20
	offset := 0
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil && l > 0 {
			limit = l
		}
	}
	if offsetParam := c.QueryParam("offset"); offsetParam != "" {
		if o, err := strconv.Atoi(offsetParam); err == nil && o >= 0 {
			offset = o
		}
	}

	records, err := h.paymentRepo.ListByUser(ctx, identity.UserID, limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to list payments")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"payments": records})
}
