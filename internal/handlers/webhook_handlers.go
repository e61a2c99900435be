package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"mizan2/internal/services"

	"github.com/labstack/echo/v4"
)

// WebhookHandlers receives the gateway's settlement callbacks. The endpoint is
// unauthenticated by design: the HMAC signature is the only authenticity proof.
type WebhookHandlers struct {
	paymobService     services.PaymobService
	settlementService services.SettlementService
}

func NewWebhookHandlers(paymobService services.PaymobService, settlementService services.SettlementService) *WebhookHandlers {
	return &WebhookHandlers{
		paymobService:     paymobService,
		settlementService: settlementService,
	}
}

// PaymobCallback handles POST /webhooks/paymob.
//
// A bad signature or missing metadata is rejected with a 400 -- never a silent
// 200, which would let forged callbacks activate subscriptions. Persistence
// trouble after a verified, well-formed event is still acknowledged (the
// reconciler parks the work) so the gateway does not start a retry storm.
func (h *WebhookHandlers) PaymobCallback(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read request body")
	}

	var payload services.CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("WARN: unparseable gateway callback: %v; body=%s", err, body)
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid callback payload")
	}

	// Some gateway configurations deliver the signature as a query parameter
	// instead of the body field.
	received := payload.Obj.HMAC
	if received == "" {
		received = c.QueryParam("hmac")
	}
	if !h.paymobService.VerifyCallbackHMAC(&payload.Obj, received) {
		log.Printf("SECURITY: gateway callback with invalid HMAC for txn %d rejected", payload.Obj.ID)
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid callback signature")
	}

	if err := h.settlementService.Reconcile(c.Request().Context(), &payload.Obj); err != nil {
		if errors.Is(err, services.ErrMalformedCallback) {
			// Contract drift on the gateway side; keep the payload around for
			// investigation.
			log.Printf("ERROR: malformed gateway callback: %v; body=%s", err, body)
			return echo.NewHTTPError(http.StatusBadRequest, "Callback missing subscription metadata")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Callback processing failed")
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
