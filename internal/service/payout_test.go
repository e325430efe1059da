package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"affiliate-payouts/internal/model"
)

func TestPayoutHappyPath(t *testing.T) {
	f := newFixture(t)

	a := f.register("alice", "")
	c := f.approvedCommission(a, "buyer-1", "order-1", "300.00") // $30.00

	batch, err := f.payouts.ProcessPayouts(f.ctx, 2500)
	if err != nil {
		t.Fatalf("process payouts: %v", err)
	}
	if batch.Status != model.BatchOpen || batch.ExternalBatchID == nil {
		t.Fatalf("batch = %s ext=%v, want open with external id", batch.Status, batch.ExternalBatchID)
	}
	if batch.TotalCents != 3000 || batch.ItemCount != 1 {
		t.Fatalf("batch total %d items %d", batch.TotalCents, batch.ItemCount)
	}

	items := f.paypal.submittedItems()
	if len(items) != 1 {
		t.Fatalf("submitted %d items, want 1", len(items))
	}
	if items[0].Amount.Value != "30.00" || items[0].Amount.Currency != "USD" || items[0].Receiver != a.PaypalEmail {
		t.Fatalf("unexpected payout item %+v", items[0])
	}

	tagged := f.reload(c.ID)
	if tagged.Status != model.CommissionApproved || tagged.PayoutBatchID == nil || *tagged.PayoutBatchID != batch.ID {
		t.Fatalf("commission after submit = %s batch=%v", tagged.Status, tagged.PayoutBatchID)
	}

	f.paypal.settle(t, model.OutcomePaid, "")
	f.advance(time.Hour)

	batch, err = f.payouts.Reconcile(f.ctx, batch.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if batch.Status != model.BatchCompleted || batch.CompletedAt == nil {
		t.Fatalf("batch status = %s, want completed", batch.Status)
	}

	paid := f.reload(c.ID)
	if paid.Status != model.CommissionPaid || paid.TransactionID == "" || paid.PaidAt == nil {
		t.Fatalf("commission = %s tx=%q paid_at=%v", paid.Status, paid.TransactionID, paid.PaidAt)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture(t)

	a := f.register("alice", "")
	c := f.approvedCommission(a, "buyer-1", "order-1", "300.00")

	batch, err := f.payouts.ProcessPayouts(f.ctx, 2500)
	if err != nil {
		t.Fatalf("process payouts: %v", err)
	}
	f.paypal.settle(t, model.OutcomePaid, "")

	for i := 0; i < 3; i++ {
		if _, err := f.payouts.Reconcile(f.ctx, batch.ID); err != nil {
			t.Fatalf("reconcile #%d: %v", i, err)
		}
	}

	history, err := f.commissions.History(f.ctx, c.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	// held, approved, paid
	if len(history) != 3 {
		t.Fatalf("history has %d rows, want 3", len(history))
	}

	// an open batch polled again with the same response changes nothing either
	if err := f.db.Model(&model.PayoutBatch{}).Where("id = ?", batch.ID).Update("status", model.BatchOpen).Error; err != nil {
		t.Fatalf("reopen batch: %v", err)
	}
	if _, err := f.payouts.Reconcile(f.ctx, batch.ID); err != nil {
		t.Fatalf("reconcile reopened: %v", err)
	}
	if got := f.reload(c.ID); got.Status != model.CommissionPaid || got.Version != 4 {
		t.Fatalf("commission = %s v%d after replay", got.Status, got.Version)
	}
}

func TestThresholdExcludesSmallGroups(t *testing.T) {
	f := newFixture(t)

	a := f.register("alice", "")
	b := f.register("bob", "")
	f.approvedCommission(a, "buyer-1", "order-1", "200.00") // $20
	f.approvedCommission(b, "buyer-2", "order-2", "150.00") // $15
	f.approvedCommission(b, "buyer-3", "order-3", "150.00") // $15

	groups, err := f.payouts.SelectEligible(f.ctx, 2500)
	if err != nil {
		t.Fatalf("select eligible: %v", err)
	}
	if _, ok := groups[a.ID]; ok {
		t.Fatal("alice is below the threshold")
	}
	if len(groups[b.ID]) != 2 {
		t.Fatalf("bob group has %d commissions, want 2", len(groups[b.ID]))
	}

	batch, err := f.payouts.ProcessPayouts(f.ctx, 2500)
	if err != nil {
		t.Fatalf("process payouts: %v", err)
	}
	if batch.TotalCents != 3000 || batch.ItemCount != 1 {
		t.Fatalf("batch total %d items %d, want 3000 in 1 item", batch.TotalCents, batch.ItemCount)
	}

	_, err = f.payouts.ProcessPayouts(f.ctx, 2500)
	wantErr(t, err, model.ErrNoEligibleCommissions)
}

func TestItemFailureAndRetry(t *testing.T) {
	f := newFixture(t)

	a := f.register("alice", "")
	c := f.approvedCommission(a, "buyer-1", "order-1", "300.00")

	first, err := f.payouts.ProcessPayouts(f.ctx, 2500)
	if err != nil {
		t.Fatalf("process payouts: %v", err)
	}
	f.paypal.settle(t, model.OutcomeFailed, "RECEIVER_UNREGISTERED")

	if _, err := f.payouts.Reconcile(f.ctx, first.ID); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	failed := f.reload(c.ID)
	if failed.Status != model.CommissionFailed || failed.ErrorCode != "RECEIVER_UNREGISTERED" {
		t.Fatalf("commission = %s code=%q", failed.Status, failed.ErrorCode)
	}

	// failed commissions are not picked up until an admin retries them
	_, err = f.payouts.ProcessPayouts(f.ctx, 2500)
	wantErr(t, err, model.ErrNoEligibleCommissions)

	retried, err := f.commissions.Reapprove(f.ctx, model.AdminActor("ops"), c.ID)
	if err != nil {
		t.Fatalf("reapprove: %v", err)
	}
	if retried.Status != model.CommissionApproved || retried.PayoutBatchID != nil || retried.ErrorCode != "" {
		t.Fatalf("retried = %s batch=%v code=%q", retried.Status, retried.PayoutBatchID, retried.ErrorCode)
	}

	second, err := f.payouts.ProcessPayouts(f.ctx, 2500)
	if err != nil {
		t.Fatalf("second process payouts: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("retry should go out in a new batch")
	}
	f.paypal.settle(t, model.OutcomePaid, "")

	if _, err := f.payouts.Reconcile(f.ctx, second.ID); err != nil {
		t.Fatalf("reconcile second: %v", err)
	}

	paid := f.reload(c.ID)
	if paid.Status != model.CommissionPaid || paid.TransactionID == "" {
		t.Fatalf("commission = %s tx=%q", paid.Status, paid.TransactionID)
	}

	history, err := f.commissions.History(f.ctx, c.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	want := []model.CommissionStatus{
		model.CommissionHeld,
		model.CommissionApproved,
		model.CommissionFailed,
		model.CommissionApproved,
		model.CommissionPaid,
	}
	if len(history) != len(want) {
		t.Fatalf("history has %d rows, want %d", len(history), len(want))
	}
	for i, status := range want {
		if history[i].ToStatus != status {
			t.Fatalf("history[%d] = %s, want %s", i, history[i].ToStatus, status)
		}
	}
	if history[2].ActorKind != model.ActorSystem || history[3].ActorID != "ops" {
		t.Fatalf("unexpected actors: %+v / %+v", history[2], history[3])
	}
}

func TestSubmissionFailureReleasesCommissions(t *testing.T) {
	f := newFixture(t)

	a := f.register("alice", "")
	c := f.approvedCommission(a, "buyer-1", "order-1", "300.00")

	f.paypal.submitErr = errors.New("connection reset")
	batch, err := f.payouts.ProcessPayouts(f.ctx, 2500)
	wantErr(t, err, model.ErrExternalSubmissionFailure)
	if batch == nil || batch.Status != model.BatchFailed {
		t.Fatalf("batch = %+v, want failed", batch)
	}

	released := f.reload(c.ID)
	if released.Status != model.CommissionApproved || released.PayoutBatchID != nil {
		t.Fatalf("commission = %s batch=%v, want approved and untagged", released.Status, released.PayoutBatchID)
	}

	_, err = f.payouts.Reconcile(f.ctx, batch.ID)
	wantErr(t, err, model.ErrBatchClosed)

	f.paypal.submitErr = nil
	next, err := f.payouts.ProcessPayouts(f.ctx, 2500)
	if err != nil {
		t.Fatalf("process payouts after failure: %v", err)
	}
	if next.Status != model.BatchOpen {
		t.Fatalf("next batch = %s", next.Status)
	}
}

func TestDeniedBatchFailsPendingItems(t *testing.T) {
	f := newFixture(t)

	a := f.register("alice", "")
	c := f.approvedCommission(a, "buyer-1", "order-1", "300.00")

	batch, err := f.payouts.ProcessPayouts(f.ctx, 2500)
	if err != nil {
		t.Fatalf("process payouts: %v", err)
	}
	f.paypal.results[*batch.ExternalBatchID] = &model.PayoutBatchResult{
		ExternalBatchID: *batch.ExternalBatchID,
		Outcome:         model.BatchOutcomeRejected,
	}

	batch, err = f.payouts.Reconcile(f.ctx, batch.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if batch.Status != model.BatchCompleted {
		t.Fatalf("batch = %s, want completed", batch.Status)
	}

	failed := f.reload(c.ID)
	if failed.Status != model.CommissionFailed || failed.ErrorCode != batchDeniedCode {
		t.Fatalf("commission = %s code=%q", failed.Status, failed.ErrorCode)
	}
}

func TestPollFailureIsStatusUnknown(t *testing.T) {
	f := newFixture(t)

	a := f.register("alice", "")
	c := f.approvedCommission(a, "buyer-1", "order-1", "300.00")

	batch, err := f.payouts.ProcessPayouts(f.ctx, 2500)
	if err != nil {
		t.Fatalf("process payouts: %v", err)
	}

	f.paypal.pollErr = context.DeadlineExceeded
	_, err = f.payouts.Reconcile(f.ctx, batch.ID)
	wantErr(t, err, model.ErrPayoutStatusUnknown)

	n, err := f.payouts.ReconcileOpen(f.ctx)
	wantErr(t, err, model.ErrPayoutStatusUnknown)
	if n != 0 {
		t.Fatalf("reconciled %d batches, want 0", n)
	}

	if got := f.reload(c.ID); got.Status != model.CommissionApproved {
		t.Fatalf("commission = %s, want unchanged", got.Status)
	}

	// still pending at PayPal: batch stays open
	f.paypal.pollErr = nil
	n, err = f.payouts.ReconcileOpen(f.ctx)
	if err != nil || n != 1 {
		t.Fatalf("reconcile open = %d, %v", n, err)
	}
	detail, err := f.payouts.GetBatch(f.ctx, batch.ID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if detail.Batch.Status != model.BatchOpen || detail.Batch.LastPolledAt == nil {
		t.Fatalf("batch = %s polled=%v", detail.Batch.Status, detail.Batch.LastPolledAt)
	}
	if len(detail.Items) != 1 || len(detail.Commissions) != 1 {
		t.Fatalf("detail has %d items, %d commissions", len(detail.Items), len(detail.Commissions))
	}
}

func TestConcurrentRunsNeverDoubleInclude(t *testing.T) {
	f := newFixture(t)

	a := f.register("alice", "")
	b := f.register("bob", "")
	f.approvedCommission(a, "buyer-1", "order-1", "300.00")
	f.approvedCommission(b, "buyer-2", "order-2", "400.00")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		batches []*model.PayoutBatch
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch, err := f.payouts.ProcessPayouts(context.Background(), 2500)
			if err != nil {
				if !errors.Is(err, model.ErrConcurrentModification) && !errors.Is(err, model.ErrNoEligibleCommissions) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			mu.Lock()
			batches = append(batches, batch)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(batches) != 1 {
		t.Fatalf("%d runs submitted a batch, want 1", len(batches))
	}

	seen := map[string]bool{}
	for _, item := range f.paypal.submittedItems() {
		if seen[item.Receiver] {
			t.Fatalf("%s paid twice", item.Receiver)
		}
		seen[item.Receiver] = true
	}
	if len(seen) != 2 {
		t.Fatalf("paid %d affiliates, want 2", len(seen))
	}
}

func TestSubmitBatchSkipsAlreadyTaggedGroups(t *testing.T) {
	f := newFixture(t)

	a := f.register("alice", "")
	f.approvedCommission(a, "buyer-1", "order-1", "300.00")

	groups, err := f.payouts.SelectEligible(f.ctx, 2500)
	if err != nil {
		t.Fatalf("select eligible: %v", err)
	}

	if _, err := f.payouts.SubmitBatch(f.ctx, groups); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	// same stale selection again: every commission is already tagged
	_, err = f.payouts.SubmitBatch(f.ctx, groups)
	wantErr(t, err, model.ErrNoEligibleCommissions)

	if n := len(f.paypal.submittedItems()); n != 1 {
		t.Fatalf("submitted %d items, want 1", n)
	}
}

func TestRejectBlockedWhileInBatch(t *testing.T) {
	f := newFixture(t)

	a := f.register("alice", "")
	c := f.approvedCommission(a, "buyer-1", "order-1", "300.00")

	if _, err := f.payouts.ProcessPayouts(f.ctx, 2500); err != nil {
		t.Fatalf("process payouts: %v", err)
	}

	_, err := f.commissions.Reject(f.ctx, model.AdminActor("ops"), c.ID, "too late")
	wantErr(t, err, model.ErrInvalidStateTransition)
}

func TestWebhookReconcilesAndDedupes(t *testing.T) {
	f := newFixture(t)

	a := f.register("alice", "")
	c := f.approvedCommission(a, "buyer-1", "order-1", "300.00")

	batch, err := f.payouts.ProcessPayouts(f.ctx, 2500)
	if err != nil {
		t.Fatalf("process payouts: %v", err)
	}
	externalID := f.paypal.settle(t, model.OutcomePaid, "")

	body := []byte(`{
		"id": "WH-1",
		"event_type": "PAYMENT.PAYOUTSBATCH.SUCCESS",
		"resource": {"batch_header": {"payout_batch_id": "` + externalID + `"}}
	}`)

	if err := f.payouts.HandleWebhook(f.ctx, http.Header{}, body); err != nil {
		t.Fatalf("handle webhook: %v", err)
	}
	if got := f.reload(c.ID); got.Status != model.CommissionPaid {
		t.Fatalf("commission = %s, want paid", got.Status)
	}

	// redelivery is ignored
	if err := f.payouts.HandleWebhook(f.ctx, http.Header{}, body); err != nil {
		t.Fatalf("redelivered webhook: %v", err)
	}

	detail, err := f.payouts.GetBatch(f.ctx, batch.ID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if detail.Batch.Status != model.BatchCompleted {
		t.Fatalf("batch = %s", detail.Batch.Status)
	}

	f.paypal.verifyErr = model.ErrWebhookSignature
	err = f.payouts.HandleWebhook(f.ctx, http.Header{}, []byte(`{"id":"WH-2"}`))
	wantErr(t, err, model.ErrWebhookSignature)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc"},
		{"aé", 2, "a"},  // é is two bytes
		{"a€b", 3, "a"}, // € is three bytes
		{"a€b", 4, "a€"},
		{"€", 1, ""},
	}
	for _, tc := range cases {
		got := truncate(tc.in, tc.n)
		if got != tc.want || !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}

	long := strings.Repeat("é", 300) // 600 bytes
	if got := truncate(long, 511); len(got) != 510 || !utf8.ValidString(got) {
		t.Fatalf("truncate to 511 bytes gave %d bytes, valid=%v", len(got), utf8.ValidString(got))
	}
}
