package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"affiliate-payouts/internal/config"
	"affiliate-payouts/internal/dto"
	"affiliate-payouts/internal/logger"
	"affiliate-payouts/internal/model"
	"affiliate-payouts/internal/repository"
	"affiliate-payouts/internal/testutil"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type fakePaypal struct {
	mu        sync.Mutex
	submitErr error
	pollErr   error
	verifyErr error
	requests  []*model.PaypalPayoutRequest
	results   map[string]*model.PayoutBatchResult
}

func newFakePaypal() *fakePaypal {
	return &fakePaypal{results: make(map[string]*model.PayoutBatchResult)}
}

func (f *fakePaypal) CreatePayoutBatch(_ context.Context, req *model.PaypalPayoutRequest) (*model.PayoutSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.requests = append(f.requests, req)

	return &model.PayoutSubmission{
		ExternalBatchID: "PP-" + req.SenderBatchHeader.SenderBatchID,
		Outcome:         model.BatchOutcomeInProgress,
	}, nil
}

func (f *fakePaypal) GetPayoutBatch(_ context.Context, externalBatchID string) (*model.PayoutBatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if r, ok := f.results[externalBatchID]; ok {
		return r, nil
	}
	return &model.PayoutBatchResult{ExternalBatchID: externalBatchID, Outcome: model.BatchOutcomeInProgress}, nil
}

func (f *fakePaypal) VerifyWebhookSignature(context.Context, http.Header, []byte) error {
	return f.verifyErr
}

// settle makes every item of the last submitted batch finish with outcome.
func (f *fakePaypal) settle(t *testing.T, outcome model.ItemOutcome, errorCode string) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.requests) == 0 {
		t.Fatal("no payout batch submitted")
	}
	req := f.requests[len(f.requests)-1]
	externalID := "PP-" + req.SenderBatchHeader.SenderBatchID

	result := &model.PayoutBatchResult{ExternalBatchID: externalID, Outcome: model.BatchOutcomeDone}
	for i, item := range req.Items {
		r := model.PayoutItemResult{
			SenderItemID:   item.SenderItemID,
			ExternalItemID: fmt.Sprintf("ITEM-%d", i),
			Outcome:        outcome,
		}
		if outcome == model.OutcomePaid {
			r.TransactionID = fmt.Sprintf("TX-%s", item.SenderItemID[:8])
		}
		if outcome == model.OutcomeFailed {
			r.ErrorCode = errorCode
			r.ErrorMessage = "receiver cannot be paid"
		}
		result.Items = append(result.Items, r)
	}
	f.results[externalID] = result

	return externalID
}

func (f *fakePaypal) submittedItems() []model.PayoutRequestItem {
	f.mu.Lock()
	defer f.mu.Unlock()

	var items []model.PayoutRequestItem
	for _, req := range f.requests {
		items = append(items, req.Items...)
	}
	return items
}

type fixture struct {
	t   *testing.T
	ctx context.Context
	db  *gorm.DB
	now time.Time

	paypal         *fakePaypal
	affiliateRepo  repository.AffiliateRepository
	commissionRepo repository.CommissionRepository
	payoutRepo     repository.PayoutRepository

	affiliates   *affiliateServiceImpl
	attributions *attributionServiceImpl
	commissions  *commissionServiceImpl
	payouts      *payoutServiceImpl
	reports      ReportService
}

func testPolicy() config.Policy {
	return config.Policy{
		Tier1Rate:         decimal.RequireFromString("0.10"),
		Tier2Rate:         decimal.RequireFromString("0.05"),
		HoldPeriod:        30 * 24 * time.Hour,
		AttributionWindow: 30 * 24 * time.Hour,
		MinPayout:         decimal.RequireFromString("25.00"),
		Currency:          "USD",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	log := logger.Discard()
	policy := testPolicy()

	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		db:     db,
		now:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		paypal: newFakePaypal(),
	}
	clock := func() time.Time { return f.now }

	f.affiliateRepo = repository.NewAffiliateRepository(db)
	attributionRepo := repository.NewAttributionRepository(db)
	f.commissionRepo = repository.NewCommissionRepository(db)
	f.payoutRepo = repository.NewPayoutRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	f.affiliates = NewAffiliateService(f.affiliateRepo, true, log).(*affiliateServiceImpl)
	f.affiliates.nowFn = clock
	f.attributions = NewAttributionService(attributionRepo, f.affiliateRepo, policy.AttributionWindow, log).(*attributionServiceImpl)
	f.commissions = NewCommissionService(db, f.commissionRepo, f.affiliates, f.attributions, policy, log).(*commissionServiceImpl)
	f.commissions.nowFn = clock
	f.payouts = NewPayoutService(
		db,
		f.paypal,
		f.affiliateRepo,
		f.commissionRepo,
		f.payoutRepo,
		webhookEventRepo,
		repository.NewLocalLocker(),
		PayoutOptions{
			Currency:     "USD",
			MinPayout:    2500,
			EmailSubject: "You have a payout!",
			PollTimeout:  time.Second,
		},
		log,
	).(*payoutServiceImpl)
	f.payouts.nowFn = clock
	f.reports = NewReportService(f.affiliateRepo, attributionRepo, f.commissionRepo)

	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) register(name, refCode string) *model.Affiliate {
	f.t.Helper()

	affiliate, err := f.affiliates.Register(f.ctx, &dto.RegisterAffiliateRequest{
		Name:         name,
		Email:        name + "@example.com",
		PaypalEmail:  name + "-pay@example.com",
		ReferralCode: refCode,
	})
	if err != nil {
		f.t.Fatalf("register %s: %v", name, err)
	}
	return affiliate
}

func (f *fixture) click(userKey, code string) {
	f.t.Helper()

	if _, err := f.attributions.RecordClick(f.ctx, userKey, code, f.now); err != nil {
		f.t.Fatalf("record click: %v", err)
	}
}

func (f *fixture) purchase(purchaseID, buyer, amount string) []*model.Commission {
	f.t.Helper()

	commissions, err := f.commissions.Create(f.ctx, &dto.PurchaseEvent{
		PurchaseID:   purchaseID,
		BuyerUserKey: buyer,
		Amount:       amount,
		Currency:     "USD",
		OccurredAt:   f.now,
	})
	if err != nil {
		f.t.Fatalf("create commissions for %s: %v", purchaseID, err)
	}
	return commissions
}

// approvedCommission books a single tier-1 commission and approves it once
// the hold period is over.
func (f *fixture) approvedCommission(affiliate *model.Affiliate, buyer, purchaseID, amount string) *model.Commission {
	f.t.Helper()

	f.click(buyer, affiliate.ReferralCode)
	commissions := f.purchase(purchaseID, buyer, amount)
	if len(commissions) == 0 {
		f.t.Fatalf("purchase %s produced no commission", purchaseID)
	}

	f.advance(30 * 24 * time.Hour)

	approved, err := f.commissions.Approve(f.ctx, model.AdminActor("ops"), commissions[0].ID)
	if err != nil {
		f.t.Fatalf("approve: %v", err)
	}
	return approved
}

func (f *fixture) reload(commissionID string) *model.Commission {
	f.t.Helper()

	c, err := f.commissionRepo.FindByID(f.ctx, nil, commissionID)
	if err != nil {
		f.t.Fatalf("reload commission: %v", err)
	}
	return c
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("got error %v, want %v", err, target)
	}
}
