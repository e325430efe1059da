package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"affiliate-payouts/internal/model"
	"affiliate-payouts/internal/repository"

	"github.com/sirupsen/logrus"
)

type AttributionService interface {
	RecordClick(ctx context.Context, userKey, affiliateCode string, now time.Time) (*model.ReferralAttribution, error)
	Resolve(ctx context.Context, userKey string, now time.Time) (affiliateID string, ok bool, err error)
}

type attributionServiceImpl struct {
	attributionRepo repository.AttributionRepository
	affiliateRepo   repository.AffiliateRepository
	window          time.Duration
	log             logrus.FieldLogger
}

func NewAttributionService(
	attributionRepo repository.AttributionRepository,
	affiliateRepo repository.AffiliateRepository,
	window time.Duration,
	log logrus.FieldLogger,
) AttributionService {
	return &attributionServiceImpl{
		attributionRepo: attributionRepo,
		affiliateRepo:   affiliateRepo,
		window:          window,
		log:             log.WithField("component", "attribution"),
	}
}

// RecordClick writes a new attribution row for the user. Older rows stay for
// audit; Resolve only ever looks at the newest one.
func (s *attributionServiceImpl) RecordClick(ctx context.Context, userKey, affiliateCode string, now time.Time) (*model.ReferralAttribution, error) {
	userKey = strings.TrimSpace(userKey)
	if userKey == "" {
		return nil, fmt.Errorf("%w: user key is required", model.ErrInvalidInput)
	}

	affiliate, err := s.affiliateRepo.FindByCode(ctx, normalizeCode(affiliateCode))
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrUnknownReferralCode
	}
	if err != nil {
		return nil, fmt.Errorf("find affiliate by code: %w", err)
	}
	if affiliate.Status != model.AffiliateActive {
		return nil, model.ErrUnknownReferralCode
	}

	attribution := &model.ReferralAttribution{
		UserKey:     userKey,
		AffiliateID: affiliate.ID,
		CreatedAt:   now.UTC(),
	}
	if err := s.attributionRepo.Create(ctx, attribution); err != nil {
		return nil, fmt.Errorf("store attribution: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_key":     userKey,
		"affiliate_id": affiliate.ID,
	}).Debug("referral click recorded")

	return attribution, nil
}

func (s *attributionServiceImpl) Resolve(ctx context.Context, userKey string, now time.Time) (string, bool, error) {
	userKey = strings.TrimSpace(userKey)
	if userKey == "" {
		return "", false, nil
	}

	// clicks made after now never count, so a late purchase event is
	// credited as of when it happened
	latest, err := s.attributionRepo.Latest(ctx, userKey, now)
	if errors.Is(err, model.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("latest attribution: %w", err)
	}

	if now.Sub(latest.CreatedAt) > s.window {
		return "", false, nil
	}

	return latest.AffiliateID, true, nil
}
