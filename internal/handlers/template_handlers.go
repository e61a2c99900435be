package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"mizan2/internal/common"
	"mizan2/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// TemplateHandlers serves the legal template library.
type TemplateHandlers struct {
	templateService services.TemplateService
	usageService    services.UsageService
}

func NewTemplateHandlers(templateService services.TemplateService, usageService services.UsageService) *TemplateHandlers {
	return &TemplateHandlers{
		templateService: templateService,
		usageService:    usageService,
	}
}

// ListTemplates handles GET /v1/templates.
func (h *TemplateHandlers) ListTemplates(c echo.Context) error {
	limit := 50
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

	templates, err := h.templateService.List(c.Request().Context(), limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list templates")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"templates": templates})
}

// DownloadTemplate handles GET /v1/templates/:id/download. Paid tiers only;
// the response carries a short-lived presigned object URL.
func (h *TemplateHandlers) DownloadTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	identity, ok := common.IdentityFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return common.SendValidationError(c, "id", "must be a valid template id")
	}

	profile, err := h.usageService.Profile(ctx, identity)
	if err != nil {
		return common.SendServerError(c, "Failed to load profile")
	}

	url, err := h.templateService.DownloadURL(ctx, profile, templateID)
	if err != nil {
		if errors.Is(err, services.ErrTemplateAccessDenied) {
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return common.SendNotFoundError(c, "Template")
	}

	return c.JSON(http.StatusOK, map[string]string{"url": url})
}
