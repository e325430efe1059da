package service

import (
	"testing"
	"time"

	"affiliate-payouts/internal/dto"
	"affiliate-payouts/internal/model"
)

func TestResolveLastClickWins(t *testing.T) {
	f := newFixture(t)
	a := f.register("alice", "")
	b := f.register("bob", "")

	f.click("user-1", a.ReferralCode)
	f.advance(time.Hour)
	f.click("user-1", b.ReferralCode)

	got, ok, err := f.attributions.Resolve(f.ctx, "user-1", f.now)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ok || got != b.ID {
		t.Fatalf("resolve = %q, %v; want %s", got, ok, b.ID)
	}
}

func TestResolveExpiresAfterWindow(t *testing.T) {
	f := newFixture(t)
	a := f.register("alice", "")

	f.click("user-1", a.ReferralCode)

	if _, ok, _ := f.attributions.Resolve(f.ctx, "user-1", f.now.Add(30*24*time.Hour)); !ok {
		t.Fatal("attribution should still hold at exactly the window")
	}
	if _, ok, _ := f.attributions.Resolve(f.ctx, "user-1", f.now.Add(30*24*time.Hour+time.Second)); ok {
		t.Fatal("attribution should have expired")
	}
	if _, ok, _ := f.attributions.Resolve(f.ctx, "someone-else", f.now); ok {
		t.Fatal("unknown user should not resolve")
	}
}

func TestResolveIgnoresLaterClicks(t *testing.T) {
	f := newFixture(t)
	a := f.register("alice", "")
	b := f.register("bob", "")

	f.click("user-1", a.ReferralCode)
	purchasedAt := f.now.Add(time.Hour)
	f.advance(48 * time.Hour)
	f.click("user-1", b.ReferralCode)

	got, ok, err := f.attributions.Resolve(f.ctx, "user-1", purchasedAt)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ok || got != a.ID {
		t.Fatalf("resolve at purchase time = %q, %v; want %s", got, ok, a.ID)
	}

	// the purchase event arrives after bob's click
	commissions, err := f.commissions.Create(f.ctx, &dto.PurchaseEvent{
		PurchaseID:   "order-1",
		BuyerUserKey: "user-1",
		Amount:       "100.00",
		OccurredAt:   purchasedAt,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(commissions) != 1 || commissions[0].AffiliateID != a.ID {
		t.Fatalf("commissions = %+v, want one for alice", commissions)
	}

	// nothing before the first click
	if _, ok, _ := f.attributions.Resolve(f.ctx, "user-1", purchasedAt.Add(-2*time.Hour)); ok {
		t.Fatal("purchase before any click should not be attributed")
	}
}

func TestRecordClickValidation(t *testing.T) {
	f := newFixture(t)
	a := f.register("alice", "")

	_, err := f.attributions.RecordClick(f.ctx, "user-1", "ZZZZZZZZ", f.now)
	wantErr(t, err, model.ErrUnknownReferralCode)

	_, err = f.attributions.RecordClick(f.ctx, "  ", a.ReferralCode, f.now)
	wantErr(t, err, model.ErrInvalidInput)
}
