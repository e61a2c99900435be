package handlers

import (
	"net/http"
	"strings"

	"mizan2/internal/common"
	"mizan2/internal/services"

	"github.com/labstack/echo/v4"
)

// QuestionHandlers gates and serves the AI question flow.
type QuestionHandlers struct {
	usageService     services.UsageService
	assistantService services.AssistantService
}

func NewQuestionHandlers(usageService services.UsageService, assistantService services.AssistantService) *QuestionHandlers {
	return &QuestionHandlers{
		usageService:     usageService,
		assistantService: assistantService,
	}
}

// GetEntitlement handles GET /v1/entitlement: the server-confirmed snapshot
// the client renders its counters and prompts from. Display-only, so it may be
// served from the short-lived cache; the question gate never is. First call
// for a new identity creates the free profile row.
func (h *QuestionHandlers) GetEntitlement(c echo.Context) error {
	ctx := c.Request().Context()

	identity, ok := common.IdentityFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	decision, err := h.usageService.Snapshot(ctx, identity)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to evaluate entitlement")
	}
	return c.JSON(http.StatusOK, decision)
}

// AskQuestion handles POST /v1/questions: entitlement gate, assistant call,
// then the atomic counter increment. The 403 body carries the decision so the
// client can distinguish the upgrade prompt (limit_reached) from the renew
// prompt (subscription_expired).
func (h *QuestionHandlers) AskQuestion(c echo.Context) error {
	ctx := c.Request().Context()

	identity, ok := common.IdentityFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	var req struct {
		Question string `json:"question"`
		Language string `json:"language"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}
	if req.Language == "" {
		req.Language = "ar"
	}

	decision, err := h.usageService.Entitlement(ctx, identity)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to evaluate entitlement")
	}
	if !decision.Allowed {
		return c.JSON(http.StatusForbidden, decision)
	}

	answer, err := h.assistantService.Answer(ctx, req.Question, req.Language)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "Assistant is unavailable, please try again")
	}

	usage, err := h.usageService.RecordQuestion(ctx, identity)
	if err != nil {
		// The answer was produced; losing the increment is the lesser harm,
		// but it must be visible in logs.
		c.Logger().Errorf("usage increment failed for %s: %v", identity.UserID, err)
		usage = decision
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"answer": answer,
		"usage":  usage,
	})
}
