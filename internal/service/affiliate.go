package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"affiliate-payouts/internal/dto"
	"affiliate-payouts/internal/model"
	"affiliate-payouts/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// no 0/O or 1/I to keep codes readable
	referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	referralCodeLength   = 8
	maxCodeAttempts      = 5
)

type AffiliateService interface {
	Register(ctx context.Context, req *dto.RegisterAffiliateRequest) (*model.Affiliate, error)
	Get(ctx context.Context, affiliateID string) (*model.Affiliate, error)
	GetByCode(ctx context.Context, code string) (*model.Affiliate, error)
	TierAncestors(ctx context.Context, affiliateID string) (tier1 string, tier2 *string, err error)
	UpdateStatus(ctx context.Context, actor model.Actor, affiliateID string, status model.AffiliateStatus) (*model.Affiliate, error)
}

type affiliateServiceImpl struct {
	affiliateRepo repository.AffiliateRepository
	autoActivate  bool
	log           logrus.FieldLogger
	nowFn         func() time.Time
}

func NewAffiliateService(
	affiliateRepo repository.AffiliateRepository,
	autoActivate bool,
	log logrus.FieldLogger,
) AffiliateService {
	return &affiliateServiceImpl{
		affiliateRepo: affiliateRepo,
		autoActivate:  autoActivate,
		log:           log.WithField("component", "affiliate_graph"),
		nowFn:         time.Now,
	}
}

func (s *affiliateServiceImpl) Register(ctx context.Context, req *dto.RegisterAffiliateRequest) (*model.Affiliate, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	paypalEmail := normalizeEmail(req.PaypalEmail)
	if paypalEmail == "" {
		paypalEmail = email
	}

	if name == "" || !validEmail(email) || !validEmail(paypalEmail) {
		return nil, fmt.Errorf("%w: name, email and paypal_email are required", model.ErrInvalidInput)
	}

	if _, err := s.affiliateRepo.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email %s is already registered", model.ErrAlreadyExists, email)
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("find affiliate by email: %w", err)
	}

	var referredBy *string
	if code := normalizeCode(req.ReferralCode); code != "" {
		referrer, err := s.affiliateRepo.FindByCode(ctx, code)
		switch {
		case err == nil && referrer.Status == model.AffiliateActive && referrer.Email != email:
			referredBy = &referrer.ID
		case err == nil:
			s.log.WithFields(logrus.Fields{
				"referral_code": code,
				"referrer_id":   referrer.ID,
			}).Info("referral code ignored for registration")
		case errors.Is(err, model.ErrNotFound):
			s.log.WithField("referral_code", code).Info("unknown referral code on registration")
		default:
			return nil, fmt.Errorf("find referrer: %w", err)
		}
	}

	status := model.AffiliatePending
	if s.autoActivate {
		status = model.AffiliateActive
	}

	now := s.nowFn()
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := generateReferralCode()
		if err != nil {
			return nil, fmt.Errorf("generate referral code: %w", err)
		}

		exists, err := s.affiliateRepo.CodeExists(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("check referral code: %w", err)
		}
		if exists {
			continue
		}

		affiliate := &model.Affiliate{
			ID:           uuid.NewString(),
			Name:         name,
			Email:        email,
			PaypalEmail:  paypalEmail,
			ReferralCode: code,
			Status:       status,
			ReferredByID: referredBy,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		err = s.affiliateRepo.Create(ctx, nil, affiliate)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost a race on either the code or the email; the email case is
			// reported by the next FindByEmail
			if _, findErr := s.affiliateRepo.FindByEmail(ctx, email); findErr == nil {
				return nil, fmt.Errorf("%w: email %s is already registered", model.ErrAlreadyExists, email)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store affiliate: %w", err)
		}

		s.log.WithFields(logrus.Fields{
			"affiliate_id":  affiliate.ID,
			"referral_code": affiliate.ReferralCode,
			"referred_by":   derefOr(referredBy, ""),
			"status":        affiliate.Status,
		}).Info("affiliate registered")

		return affiliate, nil
	}

	return nil, fmt.Errorf("could not allocate a unique referral code after %d attempts", maxCodeAttempts)
}

func (s *affiliateServiceImpl) Get(ctx context.Context, affiliateID string) (*model.Affiliate, error) {
	return s.affiliateRepo.FindByID(ctx, nil, affiliateID)
}

func (s *affiliateServiceImpl) GetByCode(ctx context.Context, code string) (*model.Affiliate, error) {
	return s.affiliateRepo.FindByCode(ctx, normalizeCode(code))
}

// TierAncestors is a single foreign-key hop: the affiliate earns tier 1 and
// its active upstream referrer, if any, earns tier 2.
func (s *affiliateServiceImpl) TierAncestors(ctx context.Context, affiliateID string) (string, *string, error) {
	affiliate, err := s.affiliateRepo.FindByID(ctx, nil, affiliateID)
	if err != nil {
		return "", nil, err
	}

	if affiliate.ReferredByID == nil || *affiliate.ReferredByID == affiliate.ID {
		return affiliate.ID, nil, nil
	}

	referrer, err := s.affiliateRepo.FindByID(ctx, nil, *affiliate.ReferredByID)
	if errors.Is(err, model.ErrNotFound) {
		return affiliate.ID, nil, nil
	}
	if err != nil {
		return "", nil, err
	}

	if referrer.Status != model.AffiliateActive {
		return affiliate.ID, nil, nil
	}

	return affiliate.ID, &referrer.ID, nil
}

func (s *affiliateServiceImpl) UpdateStatus(ctx context.Context, actor model.Actor, affiliateID string, status model.AffiliateStatus) (*model.Affiliate, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: status %q", model.ErrInvalidInput, status)
	}

	affiliate, err := s.affiliateRepo.FindByID(ctx, nil, affiliateID)
	if err != nil {
		return nil, err
	}

	if affiliate.Status == status {
		return affiliate, nil
	}

	if err := s.affiliateRepo.UpdateStatus(ctx, affiliateID, status); err != nil {
		return nil, fmt.Errorf("update affiliate status: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"affiliate_id": affiliateID,
		"from":         affiliate.Status,
		"to":           status,
		"actor":        actor.ID,
		"actor_kind":   actor.Kind,
	}).Info("affiliate status changed")

	return s.affiliateRepo.FindByID(ctx, nil, affiliateID)
}

func generateReferralCode() (string, error) {
	max := big.NewInt(int64(len(referralCodeAlphabet)))
	buf := make([]byte, referralCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = referralCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
