package handler

import (
	"net/http"
	"time"

	"affiliate-payouts/internal/dto"
	"affiliate-payouts/internal/service"

	"github.com/labstack/echo/v4"
)

type ReferralHandler struct {
	attributionService service.AttributionService
	commissionService  service.CommissionService
	nowFn              func() time.Time
}

func NewReferralHandler(attributionService service.AttributionService, commissionService service.CommissionService) *ReferralHandler {
	return &ReferralHandler{
		attributionService: attributionService,
		commissionService:  commissionService,
		nowFn:              time.Now,
	}
}

func (h *ReferralHandler) Click(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ClickRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	attribution, err := h.attributionService.RecordClick(ctx, req.UserKey, req.Code, h.nowFn())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, attribution)
}

func (h *ReferralHandler) Resolve(c echo.Context) error {
	ctx := c.Request().Context()

	userKey := c.QueryParam("user_key")
	if userKey == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing user_key")
	}

	affiliateID, ok, err := h.attributionService.Resolve(ctx, userKey, h.nowFn())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.ResolveResponse{
		UserKey:     userKey,
		AffiliateID: affiliateID,
		Attributed:  ok,
	})
}

// Purchase is the entry point for the purchase pipeline.
func (h *ReferralHandler) Purchase(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.PurchaseEvent
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	commissions, err := h.commissionService.Create(ctx, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.PurchaseResponse{
		PurchaseID:  req.PurchaseID,
		Commissions: commissions,
	})
}
