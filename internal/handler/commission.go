package handler

import (
	"net/http"
	"strconv"

	"affiliate-payouts/internal/dto"
	"affiliate-payouts/internal/middleware"
	"affiliate-payouts/internal/model"
	"affiliate-payouts/internal/repository"
	"affiliate-payouts/internal/service"

	"github.com/labstack/echo/v4"
)

type CommissionHandler struct {
	commissionService service.CommissionService
}

func NewCommissionHandler(commissionService service.CommissionService) *CommissionHandler {
	return &CommissionHandler{
		commissionService: commissionService,
	}
}

func (h *CommissionHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	filter := repository.CommissionFilter{
		Status:      model.CommissionStatus(c.QueryParam("status")),
		AffiliateID: c.QueryParam("affiliate_id"),
	}

	var err error
	if filter.Tier, err = intQuery(c, "tier"); err != nil {
		return err
	}
	if filter.Limit, err = intQuery(c, "limit"); err != nil {
		return err
	}
	if filter.Offset, err = intQuery(c, "offset"); err != nil {
		return err
	}
	if raw := c.QueryParam("min_amount"); raw != "" {
		if filter.MinCents, err = model.ParseAmount(raw); err != nil {
			return err
		}
	}

	list, err := h.commissionService.List(ctx, filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, list)
}

func (h *CommissionHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	commissionID := c.Param("id")

	commission, err := h.commissionService.Get(ctx, commissionID)
	if err != nil {
		return err
	}

	history, err := h.commissionService.History(ctx, commissionID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.CommissionDetail{
		Commission: commission,
		History:    history,
	})
}

func (h *CommissionHandler) Approve(c echo.Context) error {
	ctx := c.Request().Context()

	commission, err := h.commissionService.Approve(ctx, middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, commission)
}

func (h *CommissionHandler) Reject(c echo.Context) error {
	ctx := c.Request().Context()

	// the body is optional
	var req dto.RejectRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
		}
	}

	commission, err := h.commissionService.Reject(ctx, middleware.ActorFrom(c), c.Param("id"), req.Reason)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, commission)
}

func (h *CommissionHandler) Retry(c echo.Context) error {
	ctx := c.Request().Context()

	commission, err := h.commissionService.Reapprove(ctx, middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, commission)
}

func intQuery(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}

	return n, nil
}
