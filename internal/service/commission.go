package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"affiliate-payouts/internal/config"
	"affiliate-payouts/internal/dto"
	"affiliate-payouts/internal/model"
	"affiliate-payouts/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxTransitionAttempts = 3

type CommissionService interface {
	Create(ctx context.Context, event *dto.PurchaseEvent) ([]*model.Commission, error)
	Approve(ctx context.Context, actor model.Actor, commissionID string) (*model.Commission, error)
	Reject(ctx context.Context, actor model.Actor, commissionID, reason string) (*model.Commission, error)
	Reapprove(ctx context.Context, actor model.Actor, commissionID string) (*model.Commission, error)
	Get(ctx context.Context, commissionID string) (*model.Commission, error)
	History(ctx context.Context, commissionID string) ([]*model.CommissionTransition, error)
	List(ctx context.Context, filter repository.CommissionFilter) (*dto.CommissionList, error)
}

type commissionServiceImpl struct {
	db                 *gorm.DB
	commissionRepo     repository.CommissionRepository
	affiliateService   AffiliateService
	attributionService AttributionService
	policy             config.Policy
	ledger             *ledgerWriter
	log                logrus.FieldLogger
	nowFn              func() time.Time
}

func NewCommissionService(
	db *gorm.DB,
	commissionRepo repository.CommissionRepository,
	affiliateService AffiliateService,
	attributionService AttributionService,
	policy config.Policy,
	log logrus.FieldLogger,
) CommissionService {
	s := &commissionServiceImpl{
		db:                 db,
		commissionRepo:     commissionRepo,
		affiliateService:   affiliateService,
		attributionService: attributionService,
		policy:             policy,
		log:                log.WithField("component", "commission_ledger"),
		nowFn:              time.Now,
	}
	s.ledger = &ledgerWriter{
		commissionRepo: commissionRepo,
		log:            s.log,
		nowFn:          func() time.Time { return s.nowFn() },
	}
	return s
}

// Create books the tier-1 and tier-2 commissions for a purchase. Replaying the
// same purchase returns the rows written the first time.
func (s *commissionServiceImpl) Create(ctx context.Context, event *dto.PurchaseEvent) ([]*model.Commission, error) {
	purchaseID := strings.TrimSpace(event.PurchaseID)
	buyerKey := strings.TrimSpace(event.BuyerUserKey)
	if purchaseID == "" || buyerKey == "" {
		return nil, fmt.Errorf("%w: purchase_id and buyer_user_key are required", model.ErrInvalidInput)
	}

	amountCents, err := model.ParseAmount(event.Amount)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(event.Currency))
	if currency == "" {
		currency = s.policy.Currency
	}

	existing, err := s.commissionRepo.FindByPurchase(ctx, nil, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("find commissions by purchase: %w", err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	now := s.nowFn()
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}

	affiliateID, ok, err := s.attributionService.Resolve(ctx, buyerKey, occurredAt)
	if err != nil {
		return nil, fmt.Errorf("resolve attribution: %w", err)
	}
	if !ok {
		s.log.WithField("purchase_id", purchaseID).Debug("purchase not attributed")
		return []*model.Commission{}, nil
	}

	direct, err := s.affiliateService.Get(ctx, affiliateID)
	if err != nil {
		return nil, fmt.Errorf("load attributed affiliate: %w", err)
	}
	if direct.Status != model.AffiliateActive {
		s.log.WithFields(logrus.Fields{
			"purchase_id":  purchaseID,
			"affiliate_id": direct.ID,
			"status":       direct.Status,
		}).Info("attributed affiliate is not active, no commission")
		return []*model.Commission{}, nil
	}

	tier1, tier2, err := s.affiliateService.TierAncestors(ctx, direct.ID)
	if err != nil {
		return nil, fmt.Errorf("tier ancestors: %w", err)
	}

	candidates := []*model.Commission{
		s.newCommission(tier1, purchaseID, buyerKey, 1, model.ApplyRate(amountCents, s.policy.Tier1Rate), currency, now),
	}
	if tier2 != nil && *tier2 != tier1 {
		candidates = append(candidates,
			s.newCommission(*tier2, purchaseID, buyerKey, 2, model.ApplyRate(amountCents, s.policy.Tier2Rate), currency, now))
	}

	var created []*model.Commission
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, commission := range candidates {
			if commission.AmountCents <= 0 {
				continue
			}

			inserted, err := s.commissionRepo.CreateIfAbsent(ctx, tx, commission)
			if err != nil {
				return fmt.Errorf("store commission: %w", err)
			}
			if !inserted {
				continue
			}

			if err := s.ledger.created(ctx, tx, commission); err != nil {
				return err
			}
		}

		created, err = s.commissionRepo.FindByPurchase(ctx, tx, purchaseID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (s *commissionServiceImpl) newCommission(affiliateID, purchaseID, buyerKey string, tier int, cents int64, currency string, now time.Time) *model.Commission {
	return &model.Commission{
		ID:          uuid.NewString(),
		AffiliateID: affiliateID,
		PurchaseID:  purchaseID,
		Tier:        tier,
		BuyerKey:    buyerKey,
		AmountCents: cents,
		Currency:    currency,
		Status:      model.CommissionHeld,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *commissionServiceImpl) Approve(ctx context.Context, actor model.Actor, commissionID string) (*model.Commission, error) {
	return s.mutate(ctx, commissionID, func(tx *gorm.DB, commission *model.Commission) error {
		switch commission.Status {
		case model.CommissionApproved:
			return nil
		case model.CommissionHeld:
		default:
			return fmt.Errorf("%w: cannot approve a %s commission", model.ErrInvalidStateTransition, commission.Status)
		}

		if s.nowFn().Sub(commission.CreatedAt) < s.policy.HoldPeriod {
			return fmt.Errorf("%w: commission %s is held until %s",
				model.ErrHoldPeriodNotElapsed,
				commission.ID,
				commission.CreatedAt.Add(s.policy.HoldPeriod).Format(time.RFC3339),
			)
		}

		return s.ledger.apply(ctx, tx, commission, transitionInput{
			to:    model.CommissionApproved,
			actor: actor,
		})
	})
}

func (s *commissionServiceImpl) Reject(ctx context.Context, actor model.Actor, commissionID, reason string) (*model.Commission, error) {
	return s.mutate(ctx, commissionID, func(tx *gorm.DB, commission *model.Commission) error {
		if commission.Status == model.CommissionRejected {
			return nil
		}
		if commission.Status == model.CommissionApproved && commission.PayoutBatchID != nil {
			return fmt.Errorf("%w: commission is part of payout batch %s", model.ErrInvalidStateTransition, *commission.PayoutBatchID)
		}

		return s.ledger.apply(ctx, tx, commission, transitionInput{
			to:     model.CommissionRejected,
			actor:  actor,
			reason: strings.TrimSpace(reason),
		})
	})
}

// Reapprove puts a commission whose payout failed back into the approved pool
// so the next payout run can pick it up. Held commissions go through Approve
// and its hold period check.
func (s *commissionServiceImpl) Reapprove(ctx context.Context, actor model.Actor, commissionID string) (*model.Commission, error) {
	return s.mutate(ctx, commissionID, func(tx *gorm.DB, commission *model.Commission) error {
		if commission.Status == model.CommissionApproved && commission.PayoutBatchID == nil {
			return nil
		}
		if commission.Status != model.CommissionFailed {
			return fmt.Errorf("%w: only failed commissions can be retried, %s is %s",
				model.ErrInvalidStateTransition, commission.ID, commission.Status)
		}

		reason := ""
		if commission.ErrorCode != "" {
			reason = "retry after " + commission.ErrorCode
		}

		return s.ledger.apply(ctx, tx, commission, transitionInput{
			to:     model.CommissionApproved,
			actor:  actor,
			reason: reason,
			fields: map[string]interface{}{
				"payout_batch_id": nil,
				"payout_item_id":  nil,
				"error_code":      "",
				"error_message":   "",
			},
		})
	})
}

// mutate runs fn against a fresh read of the commission and retries when a
// concurrent writer got there first.
func (s *commissionServiceImpl) mutate(ctx context.Context, commissionID string, fn func(tx *gorm.DB, commission *model.Commission) error) (*model.Commission, error) {
	var (
		result *model.Commission
		err    error
	)

	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			commission, err := s.commissionRepo.FindByID(ctx, tx, commissionID)
			if err != nil {
				return err
			}

			if err := fn(tx, commission); err != nil {
				return err
			}

			result = commission
			return nil
		})
		if !errors.Is(err, model.ErrConcurrentModification) {
			break
		}

		s.log.WithFields(logrus.Fields{
			"commission_id": commissionID,
			"attempt":       attempt,
		}).Warn("concurrent commission update, retrying")
	}

	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *commissionServiceImpl) Get(ctx context.Context, commissionID string) (*model.Commission, error) {
	return s.commissionRepo.FindByID(ctx, nil, commissionID)
}

func (s *commissionServiceImpl) History(ctx context.Context, commissionID string) ([]*model.CommissionTransition, error) {
	if _, err := s.commissionRepo.FindByID(ctx, nil, commissionID); err != nil {
		return nil, err
	}

	return s.commissionRepo.ListTransitions(ctx, commissionID)
}

func (s *commissionServiceImpl) List(ctx context.Context, filter repository.CommissionFilter) (*dto.CommissionList, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", model.ErrInvalidInput, filter.Status)
	}
	if filter.Tier != 0 && filter.Tier != 1 && filter.Tier != 2 {
		return nil, fmt.Errorf("%w: tier %d", model.ErrInvalidInput, filter.Tier)
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	items, total, err := s.commissionRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list commissions: %w", err)
	}

	return &dto.CommissionList{
		Items:  items,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}
