package service

import (
	"strings"
	"testing"

	"affiliate-payouts/internal/dto"
	"affiliate-payouts/internal/model"
)

func TestRegisterGeneratesReadableCode(t *testing.T) {
	f := newFixture(t)

	a := f.register("alice", "")

	if len(a.ReferralCode) != referralCodeLength {
		t.Fatalf("code %q has length %d", a.ReferralCode, len(a.ReferralCode))
	}
	for _, r := range a.ReferralCode {
		if !strings.ContainsRune(referralCodeAlphabet, r) {
			t.Fatalf("code %q contains %q outside the alphabet", a.ReferralCode, r)
		}
	}
	if a.Status != model.AffiliateActive {
		t.Fatalf("status = %s, want active", a.Status)
	}
	if a.ReferredByID != nil {
		t.Fatalf("unexpected referrer %s", *a.ReferredByID)
	}
}

func TestRegisterLinksReferrer(t *testing.T) {
	f := newFixture(t)

	a := f.register("alice", "")
	b := f.register("bob", strings.ToLower(a.ReferralCode))

	if b.ReferredByID == nil || *b.ReferredByID != a.ID {
		t.Fatalf("bob referred by %v, want %s", b.ReferredByID, a.ID)
	}

	tier1, tier2, err := f.affiliates.TierAncestors(f.ctx, b.ID)
	if err != nil {
		t.Fatalf("tier ancestors: %v", err)
	}
	if tier1 != b.ID || tier2 == nil || *tier2 != a.ID {
		t.Fatalf("ancestors = %s, %v", tier1, tier2)
	}
}

func TestRegisterUnknownCodeAndDuplicateEmail(t *testing.T) {
	f := newFixture(t)

	c := f.register("carol", "NOPE2345")
	if c.ReferredByID != nil {
		t.Fatal("unknown code should not link a referrer")
	}

	_, err := f.affiliates.Register(f.ctx, &dto.RegisterAffiliateRequest{
		Name:         "carol again",
		Email:        "carol@example.com",
		PaypalEmail:  "carol@example.com",
		ReferralCode: c.ReferralCode,
	})
	wantErr(t, err, model.ErrAlreadyExists)
}

func TestRegisterValidatesInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.affiliates.Register(f.ctx, &dto.RegisterAffiliateRequest{Name: "x", Email: "not-an-email"})
	wantErr(t, err, model.ErrInvalidInput)

	_, err = f.affiliates.Register(f.ctx, &dto.RegisterAffiliateRequest{Email: "x@example.com"})
	wantErr(t, err, model.ErrInvalidInput)
}

func TestTierAncestorsSkipsInactiveReferrer(t *testing.T) {
	f := newFixture(t)

	a := f.register("alice", "")
	b := f.register("bob", a.ReferralCode)

	if _, err := f.affiliates.UpdateStatus(f.ctx, model.AdminActor("ops"), a.ID, model.AffiliateSuspended); err != nil {
		t.Fatalf("suspend: %v", err)
	}

	tier1, tier2, err := f.affiliates.TierAncestors(f.ctx, b.ID)
	if err != nil {
		t.Fatalf("tier ancestors: %v", err)
	}
	if tier1 != b.ID || tier2 != nil {
		t.Fatalf("ancestors = %s, %v; want only tier 1", tier1, tier2)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	a := f.register("alice", "")

	_, err := f.affiliates.UpdateStatus(f.ctx, model.AdminActor(""), a.ID, "banned")
	wantErr(t, err, model.ErrInvalidInput)

	_, err = f.affiliates.UpdateStatus(f.ctx, model.AdminActor(""), "missing", model.AffiliateActive)
	wantErr(t, err, model.ErrNotFound)
}

func TestPendingAffiliatesWhenAutoActivateOff(t *testing.T) {
	f := newFixture(t)
	f.affiliates.autoActivate = false

	a := f.register("alice", "")
	if a.Status != model.AffiliatePending {
		t.Fatalf("status = %s, want pending", a.Status)
	}

	_, err := f.attributions.RecordClick(f.ctx, "user-1", a.ReferralCode, f.now)
	wantErr(t, err, model.ErrUnknownReferralCode)
}
