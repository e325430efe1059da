package server

import (
	"context"

	"affiliate-payouts/internal/handler"
	appmiddleware "affiliate-payouts/internal/middleware"
	"affiliate-payouts/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

type Services struct {
	Affiliate   service.AffiliateService
	Attribution service.AttributionService
	Commission  service.CommissionService
	Payout      service.PayoutService
	Report      service.ReportService
}

type Server struct {
	echo              *echo.Echo
	affiliateHandler  *handler.AffiliateHandler
	referralHandler   *handler.ReferralHandler
	commissionHandler *handler.CommissionHandler
	payoutHandler     *handler.PayoutHandler
}

func NewServer(services Services, log logrus.FieldLogger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(log)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := log.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:              e,
		affiliateHandler:  handler.NewAffiliateHandler(services.Affiliate, services.Report),
		referralHandler:   handler.NewReferralHandler(services.Attribution, services.Commission),
		commissionHandler: handler.NewCommissionHandler(services.Commission),
		payoutHandler:     handler.NewPayoutHandler(services.Payout),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	api.POST("/affiliates", s.affiliateHandler.Register)
	api.GET("/affiliates/:id", s.affiliateHandler.Get)
	api.GET("/affiliates/:id/stats", s.affiliateHandler.Stats)

	api.POST("/referrals/click", s.referralHandler.Click)
	api.GET("/referrals/resolve", s.referralHandler.Resolve)
	api.POST("/purchases", s.referralHandler.Purchase)

	// -------- admin --------
	admin := api.Group("/admin", appmiddleware.ActorMiddleware())
	admin.GET("/stats", s.affiliateHandler.AdminStats)
	admin.PUT("/affiliates/:id/status", s.affiliateHandler.UpdateStatus)

	admin.GET("/commissions", s.commissionHandler.List)
	admin.GET("/commissions/:id", s.commissionHandler.Get)
	admin.POST("/commissions/:id/approve", s.commissionHandler.Approve)
	admin.POST("/commissions/:id/reject", s.commissionHandler.Reject)
	admin.POST("/commissions/:id/retry", s.commissionHandler.Retry)

	admin.POST("/payouts/process", s.payoutHandler.Process)
	admin.GET("/payouts", s.payoutHandler.List)
	admin.GET("/payouts/:id", s.payoutHandler.Get)
	admin.POST("/payouts/:id/reconcile", s.payoutHandler.Reconcile)

	// -------- paypal webhooks --------
	api.POST("/paypal/webhook", s.payoutHandler.PayPalWebhook)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() *echo.Echo {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
