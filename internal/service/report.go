package service

import (
	"context"
	"fmt"

	"affiliate-payouts/internal/dto"
	"affiliate-payouts/internal/model"
	"affiliate-payouts/internal/repository"

	"github.com/shopspring/decimal"
)

type ReportService interface {
	AffiliateStats(ctx context.Context, affiliateID string) (*dto.AffiliateStats, error)
	AdminStats(ctx context.Context) (*dto.AdminStats, error)
}

type reportServiceImpl struct {
	affiliateRepo   repository.AffiliateRepository
	attributionRepo repository.AttributionRepository
	commissionRepo  repository.CommissionRepository
}

func NewReportService(
	affiliateRepo repository.AffiliateRepository,
	attributionRepo repository.AttributionRepository,
	commissionRepo repository.CommissionRepository,
) ReportService {
	return &reportServiceImpl{
		affiliateRepo:   affiliateRepo,
		attributionRepo: attributionRepo,
		commissionRepo:  commissionRepo,
	}
}

func (s *reportServiceImpl) AffiliateStats(ctx context.Context, affiliateID string) (*dto.AffiliateStats, error) {
	if _, err := s.affiliateRepo.FindByID(ctx, nil, affiliateID); err != nil {
		return nil, err
	}

	earned, err := s.commissionRepo.SumByAffiliate(ctx, affiliateID, model.CommissionPaid)
	if err != nil {
		return nil, fmt.Errorf("sum paid commissions: %w", err)
	}

	pending, err := s.commissionRepo.SumByAffiliate(ctx, affiliateID, model.CommissionHeld, model.CommissionApproved)
	if err != nil {
		return nil, fmt.Errorf("sum pending commissions: %w", err)
	}

	referrals, err := s.attributionRepo.CountUsers(ctx, affiliateID)
	if err != nil {
		return nil, fmt.Errorf("count referrals: %w", err)
	}

	conversions, err := s.commissionRepo.CountConversions(ctx, affiliateID)
	if err != nil {
		return nil, fmt.Errorf("count conversions: %w", err)
	}

	subAffiliates, err := s.affiliateRepo.CountReferredBy(ctx, affiliateID)
	if err != nil {
		return nil, fmt.Errorf("count sub affiliates: %w", err)
	}

	return &dto.AffiliateStats{
		AffiliateID:       affiliateID,
		TotalEarnedCents:  earned,
		TotalEarned:       model.FormatCents(earned),
		PendingCents:      pending,
		Pending:           model.FormatCents(pending),
		ReferralCount:     referrals,
		ConversionCount:   conversions,
		ConversionRate:    conversionRate(conversions, referrals).StringFixed(2),
		SubAffiliateCount: subAffiliates,
	}, nil
}

func (s *reportServiceImpl) AdminStats(ctx context.Context) (*dto.AdminStats, error) {
	count, total, err := s.commissionRepo.Totals(ctx,
		model.CommissionHeld,
		model.CommissionApproved,
		model.CommissionPaid,
		model.CommissionFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("commission totals: %w", err)
	}

	_, pending, err := s.commissionRepo.Totals(ctx, model.CommissionApproved)
	if err != nil {
		return nil, fmt.Errorf("pending payout totals: %w", err)
	}

	activeIDs, err := s.affiliateRepo.ListIDsByStatus(ctx, model.AffiliateActive)
	if err != nil {
		return nil, fmt.Errorf("list active affiliates: %w", err)
	}

	referrals, err := s.attributionRepo.CountUsersByAffiliate(ctx)
	if err != nil {
		return nil, fmt.Errorf("count referrals: %w", err)
	}

	conversions, err := s.commissionRepo.CountConversionsByAffiliate(ctx)
	if err != nil {
		return nil, fmt.Errorf("count conversions: %w", err)
	}

	// averaged over active affiliates that have at least one referral
	sum := decimal.Zero
	n := int64(0)
	for _, id := range activeIDs {
		if referrals[id] == 0 {
			continue
		}
		sum = sum.Add(conversionRate(conversions[id], referrals[id]))
		n++
	}
	avg := decimal.Zero
	if n > 0 {
		avg = sum.Div(decimal.NewFromInt(n))
	}

	return &dto.AdminStats{
		TotalCommissionCount:  count,
		TotalCommissionsCents: total,
		TotalCommissions:      model.FormatCents(total),
		PendingPayoutsCents:   pending,
		PendingPayouts:        model.FormatCents(pending),
		ActiveAffiliateCount:  int64(len(activeIDs)),
		AvgConversionRate:     avg.StringFixed(2),
	}, nil
}

// conversionRate is conversions / referrals as a percentage.
func conversionRate(conversions, referrals int64) decimal.Decimal {
	if referrals == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(conversions).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(referrals))
}
