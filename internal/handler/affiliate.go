package handler

import (
	"net/http"

	"affiliate-payouts/internal/dto"
	"affiliate-payouts/internal/middleware"
	"affiliate-payouts/internal/service"

	"github.com/labstack/echo/v4"
)

type AffiliateHandler struct {
	affiliateService service.AffiliateService
	reportService    service.ReportService
}

func NewAffiliateHandler(affiliateService service.AffiliateService, reportService service.ReportService) *AffiliateHandler {
	return &AffiliateHandler{
		affiliateService: affiliateService,
		reportService:    reportService,
	}
}

func (h *AffiliateHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.RegisterAffiliateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	affiliate, err := h.affiliateService.Register(ctx, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, affiliate)
}

func (h *AffiliateHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	affiliate, err := h.affiliateService.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, affiliate)
}

func (h *AffiliateHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := h.reportService.AffiliateStats(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, stats)
}

func (h *AffiliateHandler) AdminStats(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := h.reportService.AdminStats(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, stats)
}

func (h *AffiliateHandler) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.UpdateAffiliateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	affiliate, err := h.affiliateService.UpdateStatus(ctx, middleware.ActorFrom(c), c.Param("id"), req.Status)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, affiliate)
}
