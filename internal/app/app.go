package app

import (
	"context"
	"fmt"

	"affiliate-payouts/internal/client"
	"affiliate-payouts/internal/config"
	"affiliate-payouts/internal/repository"
	"affiliate-payouts/internal/server"
	"affiliate-payouts/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App holds the wired services shared by the API process and payoutctl.
type App struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Services server.Services
	Log      *logrus.Logger
}

func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	db, err := client.InitDBClient(cfg.Database, log)
	if err != nil {
		return nil, err
	}

	var (
		locker repository.Locker
		rdb    *redis.Client
	)
	if cfg.Redis.URL != "" {
		rdb, err = client.InitRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		locker = repository.NewRedisLocker(rdb)
	} else {
		log.Warn("REDIS_URL not set, payout locks are process local")
		locker = repository.NewLocalLocker()
	}

	paypalClient := client.NewPaypalClient(&cfg.Paypal)

	return Wire(db, rdb, paypalClient, locker, cfg, log), nil
}

// Wire builds repositories and services on top of already opened clients.
func Wire(
	db *gorm.DB,
	rdb *redis.Client,
	paypalClient client.PaypalClient,
	locker repository.Locker,
	cfg *config.Config,
	log *logrus.Logger,
) *App {
	affiliateRepo := repository.NewAffiliateRepository(db)
	attributionRepo := repository.NewAttributionRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	affiliateService := service.NewAffiliateService(affiliateRepo, cfg.AffiliateAutoActivate, log)
	attributionService := service.NewAttributionService(attributionRepo, affiliateRepo, cfg.Policy.AttributionWindow, log)
	commissionService := service.NewCommissionService(
		db,
		commissionRepo,
		affiliateService,
		attributionService,
		cfg.Policy,
		log,
	)
	payoutService := service.NewPayoutService(
		db,
		paypalClient,
		affiliateRepo,
		commissionRepo,
		payoutRepo,
		webhookEventRepo,
		locker,
		service.PayoutOptionsFromConfig(cfg),
		log,
	)
	reportService := service.NewReportService(affiliateRepo, attributionRepo, commissionRepo)

	return &App{
		DB:    db,
		Redis: rdb,
		Services: server.Services{
			Affiliate:   affiliateService,
			Attribution: attributionService,
			Commission:  commissionService,
			Payout:      payoutService,
			Report:      reportService,
		},
		Log: log,
	}
}

func (a *App) Close() error {
	var firstErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			firstErr = fmt.Errorf("close redis: %w", err)
		}
	}

	sqlDB, err := a.DB.DB()
	if err == nil {
		if err := sqlDB.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close database: %w", err)
		}
	}

	return firstErr
}
