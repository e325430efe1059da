package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"affiliate-payouts/internal/dto"
	"affiliate-payouts/internal/model"
	"affiliate-payouts/internal/service"

	"github.com/labstack/echo/v4"
)

type PayoutHandler struct {
	payoutService service.PayoutService
}

func NewPayoutHandler(payoutService service.PayoutService) *PayoutHandler {
	return &PayoutHandler{
		payoutService: payoutService,
	}
}

func (h *PayoutHandler) Process(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ProcessPayoutsRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
		}
	}

	minCents := h.payoutService.DefaultThreshold()
	if req.MinAmount != "" {
		var err error
		if minCents, err = model.ParseAmount(req.MinAmount); err != nil {
			return err
		}
	}

	batch, err := h.payoutService.ProcessPayouts(ctx, minCents)
	if errors.Is(err, model.ErrExternalSubmissionFailure) && batch != nil {
		return c.JSON(http.StatusBadGateway, map[string]interface{}{
			"error": err.Error(),
			"batch": batch,
		})
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, batch)
}

func (h *PayoutHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	limit, err := intQuery(c, "limit")
	if err != nil {
		return err
	}
	offset, err := intQuery(c, "offset")
	if err != nil {
		return err
	}

	list, err := h.payoutService.ListBatches(ctx, limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, list)
}

func (h *PayoutHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	detail, err := h.payoutService.GetBatch(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, detail)
}

func (h *PayoutHandler) Reconcile(c echo.Context) error {
	ctx := c.Request().Context()

	batch, err := h.payoutService.Reconcile(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, batch)
}

func (h *PayoutHandler) PayPalWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	err = h.payoutService.HandleWebhook(ctx, c.Request().Header, body)
	if err != nil {
		return fmt.Errorf("handle webhook: %w", err)
	}

	return c.NoContent(http.StatusOK)
}
