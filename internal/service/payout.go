package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"affiliate-payouts/internal/client"
	"affiliate-payouts/internal/config"
	"affiliate-payouts/internal/dto"
	"affiliate-payouts/internal/model"
	"affiliate-payouts/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	payoutRunLockKey   = "payout-run"
	payoutRunLockTTL   = 10 * time.Minute
	reconcileLockTTL   = 2 * time.Minute
	openBatchPageSize  = 100
	batchDeniedCode    = "BATCH_DENIED"
	submissionFailCode = "SUBMISSION_FAILED"
)

type PayoutService interface {
	SelectEligible(ctx context.Context, minCents int64) (map[string][]*model.Commission, error)
	SubmitBatch(ctx context.Context, groups map[string][]*model.Commission) (*model.PayoutBatch, error)
	ProcessPayouts(ctx context.Context, minCents int64) (*model.PayoutBatch, error)
	Reconcile(ctx context.Context, batchID string) (*model.PayoutBatch, error)
	ReconcileOpen(ctx context.Context) (int, error)
	GetBatch(ctx context.Context, batchID string) (*dto.PayoutBatchDetail, error)
	ListBatches(ctx context.Context, limit, offset int) (*dto.PayoutBatchList, error)
	HandleWebhook(ctx context.Context, headers http.Header, body []byte) error
	DefaultThreshold() int64
}

type PayoutOptions struct {
	Currency     string
	MinPayout    int64 // minor units
	EmailSubject string
	PollTimeout  time.Duration
}

func PayoutOptionsFromConfig(cfg *config.Config) PayoutOptions {
	return PayoutOptions{
		Currency:     cfg.Policy.Currency,
		MinPayout:    model.DecimalToCents(cfg.Policy.MinPayout),
		EmailSubject: cfg.Paypal.EmailSubject,
		PollTimeout:  cfg.Worker.PollTimeout,
	}
}

type payoutServiceImpl struct {
	db               *gorm.DB
	paypalClient     client.PaypalClient
	affiliateRepo    repository.AffiliateRepository
	commissionRepo   repository.CommissionRepository
	payoutRepo       repository.PayoutRepository
	webhookEventRepo repository.WebhookEventRepository
	locker           repository.Locker
	opts             PayoutOptions
	ledger           *ledgerWriter
	log              logrus.FieldLogger
	nowFn            func() time.Time
}

func NewPayoutService(
	db *gorm.DB,
	paypalClient client.PaypalClient,
	affiliateRepo repository.AffiliateRepository,
	commissionRepo repository.CommissionRepository,
	payoutRepo repository.PayoutRepository,
	webhookEventRepo repository.WebhookEventRepository,
	locker repository.Locker,
	opts PayoutOptions,
	log logrus.FieldLogger,
) PayoutService {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 15 * time.Second
	}

	s := &payoutServiceImpl{
		db:               db,
		paypalClient:     paypalClient,
		affiliateRepo:    affiliateRepo,
		commissionRepo:   commissionRepo,
		payoutRepo:       payoutRepo,
		webhookEventRepo: webhookEventRepo,
		locker:           locker,
		opts:             opts,
		log:              log.WithField("component", "payout_orchestrator"),
		nowFn:            time.Now,
	}
	s.ledger = &ledgerWriter{
		commissionRepo: commissionRepo,
		log:            s.log,
		nowFn:          func() time.Time { return s.nowFn() },
	}
	return s
}

func (s *payoutServiceImpl) DefaultThreshold() int64 {
	return s.opts.MinPayout
}

// SelectEligible groups approved, untagged commissions by affiliate and keeps
// the groups whose sum reaches minCents. Groups below the threshold simply
// wait for the next run.
func (s *payoutServiceImpl) SelectEligible(ctx context.Context, minCents int64) (map[string][]*model.Commission, error) {
	var groups map[string][]*model.Commission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		groups, err = s.selectEligible(ctx, tx, minCents)
		return err
	})
	if err != nil {
		return nil, err
	}

	return groups, nil
}

func (s *payoutServiceImpl) selectEligible(ctx context.Context, tx *gorm.DB, minCents int64) (map[string][]*model.Commission, error) {
	commissions, err := s.commissionRepo.ListEligible(ctx, tx, s.opts.Currency)
	if err != nil {
		return nil, fmt.Errorf("list eligible commissions: %w", err)
	}

	all := make(map[string][]*model.Commission)
	sums := make(map[string]int64)
	for _, c := range commissions {
		all[c.AffiliateID] = append(all[c.AffiliateID], c)
		sums[c.AffiliateID] += c.AmountCents
	}

	groups := make(map[string][]*model.Commission)
	for affiliateID, list := range all {
		if sums[affiliateID] < minCents || sums[affiliateID] <= 0 {
			continue
		}
		groups[affiliateID] = list
	}

	return groups, nil
}

func (s *payoutServiceImpl) SubmitBatch(ctx context.Context, groups map[string][]*model.Commission) (*model.PayoutBatch, error) {
	var (
		batch *model.PayoutBatch
		items []*model.PayoutItem
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		batch, items, err = s.reserve(ctx, tx, groups)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.submit(ctx, batch, items)
}

// ProcessPayouts is one payout run: select and reserve in a single
// transaction, then submit. Only one run is allowed at a time.
func (s *payoutServiceImpl) ProcessPayouts(ctx context.Context, minCents int64) (*model.PayoutBatch, error) {
	if minCents < 0 {
		return nil, fmt.Errorf("%w: negative payout threshold", model.ErrInvalidInput)
	}

	unlock, ok, err := s.locker.TryLock(ctx, payoutRunLockKey, payoutRunLockTTL)
	if err != nil {
		return nil, fmt.Errorf("payout run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: another payout run is in progress", model.ErrConcurrentModification)
	}
	defer unlock()

	var (
		batch *model.PayoutBatch
		items []*model.PayoutItem
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		groups, err := s.selectEligible(ctx, tx, minCents)
		if err != nil {
			return err
		}

		batch, items, err = s.reserve(ctx, tx, groups)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.submit(ctx, batch, items)
}

// reserve writes the local batch, one item per affiliate and tags every
// commission of the item. Each group runs in its own savepoint so a group that
// lost a race is dropped without aborting the others.
func (s *payoutServiceImpl) reserve(ctx context.Context, tx *gorm.DB, groups map[string][]*model.Commission) (*model.PayoutBatch, []*model.PayoutItem, error) {
	if len(groups) == 0 {
		return nil, nil, model.ErrNoEligibleCommissions
	}

	now := s.nowFn()
	batch := &model.PayoutBatch{
		ID:        uuid.NewString(),
		Status:    model.BatchSubmitting,
		Currency:  s.opts.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.payoutRepo.CreateBatch(ctx, tx, batch); err != nil {
		return nil, nil, fmt.Errorf("store payout batch: %w", err)
	}

	affiliateIDs := make([]string, 0, len(groups))
	for affiliateID := range groups {
		affiliateIDs = append(affiliateIDs, affiliateID)
	}
	sort.Strings(affiliateIDs)

	var items []*model.PayoutItem
	for _, affiliateID := range affiliateIDs {
		group := groups[affiliateID]

		affiliate, err := s.affiliateRepo.FindByID(ctx, tx, affiliateID)
		if err != nil {
			return nil, nil, fmt.Errorf("load affiliate %s: %w", affiliateID, err)
		}
		if affiliate.Status != model.AffiliateActive {
			continue
		}

		item := &model.PayoutItem{
			ID:          uuid.NewString(),
			BatchID:     batch.ID,
			AffiliateID: affiliateID,
			Receiver:    affiliate.PaypalEmail,
			Currency:    s.opts.Currency,
			Status:      model.ItemPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		ids := make([]string, 0, len(group))
		for _, c := range group {
			if c.AffiliateID != affiliateID || c.Currency != s.opts.Currency {
				return nil, nil, fmt.Errorf("%w: commission %s does not belong to group %s", model.ErrInvalidInput, c.ID, affiliateID)
			}
			item.AmountCents += c.AmountCents
			ids = append(ids, c.ID)
		}

		err = tx.Transaction(func(gtx *gorm.DB) error {
			if err := s.payoutRepo.CreateItem(ctx, gtx, item); err != nil {
				return fmt.Errorf("store payout item: %w", err)
			}

			tagged, err := s.commissionRepo.Tag(ctx, gtx, ids, batch.ID, item.ID)
			if err != nil {
				return fmt.Errorf("tag commissions: %w", err)
			}
			if tagged != int64(len(ids)) {
				return model.ErrConcurrentModification
			}
			return nil
		})
		if errors.Is(err, model.ErrConcurrentModification) {
			s.log.WithFields(logrus.Fields{
				"batch_id":     batch.ID,
				"affiliate_id": affiliateID,
			}).Warn("commissions changed while reserving payout, group skipped")
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		batch.TotalCents += item.AmountCents
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, nil, model.ErrNoEligibleCommissions
	}

	batch.ItemCount = len(items)
	err := s.payoutRepo.UpdateBatch(ctx, tx, batch.ID, map[string]interface{}{
		"total_cents": batch.TotalCents,
		"item_count":  batch.ItemCount,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("update payout batch totals: %w", err)
	}

	return batch, items, nil
}

// submit makes the single PayPal call for a reserved batch. No transaction is
// open while it runs.
func (s *payoutServiceImpl) submit(ctx context.Context, batch *model.PayoutBatch, items []*model.PayoutItem) (*model.PayoutBatch, error) {
	log := s.log.WithFields(logrus.Fields{
		"batch_id": batch.ID,
		"items":    len(items),
		"total":    model.FormatCents(batch.TotalCents),
		"currency": batch.Currency,
	})

	req := &model.PaypalPayoutRequest{
		SenderBatchHeader: model.SenderBatchHeader{
			SenderBatchID: batch.ID,
			EmailSubject:  s.opts.EmailSubject,
		},
		Items: make([]model.PayoutRequestItem, 0, len(items)),
	}
	for _, item := range items {
		req.Items = append(req.Items, model.PayoutRequestItem{
			RecipientType: "EMAIL",
			Amount: model.Amount{
				Currency: item.Currency,
				Value:    model.FormatCents(item.AmountCents),
			},
			Receiver:     item.Receiver,
			Note:         "Affiliate commission payout",
			SenderItemID: item.ID,
		})
	}

	// the reservation is already committed, so the outcome must be recorded
	// even if the caller goes away
	submitCtx := context.WithoutCancel(ctx)

	submission, submitErr := s.paypalClient.CreatePayoutBatch(submitCtx, req)
	if submitErr != nil {
		log.WithError(submitErr).Error("payout batch submission failed")

		err := s.db.WithContext(submitCtx).Transaction(func(tx *gorm.DB) error {
			err := s.payoutRepo.UpdateBatch(submitCtx, tx, batch.ID, map[string]interface{}{
				"status":        model.BatchFailed,
				"error_message": truncate(submitErr.Error(), 512),
			})
			if err != nil {
				return err
			}

			for _, item := range items {
				err := s.payoutRepo.UpdateItem(submitCtx, tx, item.ID, map[string]interface{}{
					"status":        model.ItemFailed,
					"error_code":    submissionFailCode,
					"error_message": truncate(submitErr.Error(), 512),
				})
				if err != nil {
					return err
				}
			}

			return s.commissionRepo.Untag(submitCtx, tx, batch.ID)
		})
		if err != nil {
			return nil, fmt.Errorf("release failed payout batch %s: %w", batch.ID, err)
		}

		failed, err := s.payoutRepo.FindBatch(submitCtx, nil, batch.ID)
		if err != nil {
			return nil, err
		}
		return failed, fmt.Errorf("%w: %w", model.ErrExternalSubmissionFailure, submitErr)
	}

	now := s.nowFn()
	err := s.payoutRepo.UpdateBatch(submitCtx, nil, batch.ID, map[string]interface{}{
		"status":            model.BatchOpen,
		"external_batch_id": submission.ExternalBatchID,
		"submitted_at":      now,
	})
	if err != nil {
		return nil, fmt.Errorf("store external batch id %s: %w", submission.ExternalBatchID, err)
	}

	log.WithFields(logrus.Fields{
		"external_batch_id": submission.ExternalBatchID,
		"batch_status":      submission.Outcome,
	}).Info("payout batch submitted")

	return s.payoutRepo.FindBatch(submitCtx, nil, batch.ID)
}

// Reconcile pulls the batch status from PayPal and writes item outcomes into
// the ledger. Items already paid or failed are left alone, so running it
// twice on the same response changes nothing.
func (s *payoutServiceImpl) Reconcile(ctx context.Context, batchID string) (*model.PayoutBatch, error) {
	batch, err := s.payoutRepo.FindBatch(ctx, nil, batchID)
	if err != nil {
		return nil, err
	}

	switch batch.Status {
	case model.BatchCompleted:
		return batch, nil
	case model.BatchFailed:
		return nil, fmt.Errorf("%w: batch %s failed at submission", model.ErrBatchClosed, batch.ID)
	case model.BatchSubmitting:
		return nil, fmt.Errorf("%w: batch %s has not been accepted yet", model.ErrPayoutStatusUnknown, batch.ID)
	}
	if batch.ExternalBatchID == nil {
		return nil, fmt.Errorf("%w: batch %s has no external id", model.ErrPayoutStatusUnknown, batch.ID)
	}

	unlock, ok, err := s.locker.TryLock(ctx, "reconcile:"+batch.ID, reconcileLockTTL)
	if err != nil {
		return nil, fmt.Errorf("reconcile lock: %w", err)
	}
	if !ok {
		s.log.WithField("batch_id", batch.ID).Debug("reconcile already running")
		return batch, nil
	}
	defer unlock()

	pollCtx, cancel := context.WithTimeout(ctx, s.opts.PollTimeout)
	result, err := s.paypalClient.GetPayoutBatch(pollCtx, *batch.ExternalBatchID)
	cancel()
	if err != nil {
		s.log.WithError(err).WithField("batch_id", batch.ID).Warn("payout batch status unavailable")
		return nil, fmt.Errorf("%w: %w", model.ErrPayoutStatusUnknown, err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyBatchResult(ctx, tx, batch, result)
	})
	if err != nil {
		return nil, fmt.Errorf("apply payout batch %s result: %w", batch.ID, err)
	}

	return s.payoutRepo.FindBatch(ctx, nil, batch.ID)
}

func (s *payoutServiceImpl) applyBatchResult(ctx context.Context, tx *gorm.DB, batch *model.PayoutBatch, result *model.PayoutBatchResult) error {
	bySenderID := make(map[string]model.PayoutItemResult, len(result.Items))
	for _, r := range result.Items {
		bySenderID[r.SenderItemID] = r
	}

	items, err := s.payoutRepo.ListItems(ctx, tx, batch.ID)
	if err != nil {
		return fmt.Errorf("list payout items: %w", err)
	}

	terminal := 0
	for _, listed := range items {
		item, err := s.payoutRepo.LockItem(ctx, tx, listed.ID)
		if err != nil {
			return err
		}
		if item.Status != model.ItemPending {
			terminal++
			continue
		}

		r, found := bySenderID[item.ID]
		if !found {
			r = model.PayoutItemResult{SenderItemID: item.ID, Outcome: model.OutcomePending}
		}
		if r.Outcome == model.OutcomePending && result.Outcome == model.BatchOutcomeRejected {
			r.Outcome = model.OutcomeFailed
			r.ErrorCode = batchDeniedCode
			r.ErrorMessage = "payout batch was denied or canceled"
		}

		switch r.Outcome {
		case model.OutcomePaid:
			if err := s.markItemPaid(ctx, tx, batch, item, r); err != nil {
				return err
			}
			terminal++
		case model.OutcomeFailed:
			if err := s.markItemFailed(ctx, tx, item, r); err != nil {
				return err
			}
			terminal++
		default:
			if r.ExternalItemID != "" && r.ExternalItemID != item.ExternalItemID {
				err := s.payoutRepo.UpdateItem(ctx, tx, item.ID, map[string]interface{}{
					"external_item_id": r.ExternalItemID,
				})
				if err != nil {
					return fmt.Errorf("update payout item: %w", err)
				}
			}
		}
	}

	polledAt := result.PolledAt
	if polledAt.IsZero() {
		polledAt = s.nowFn()
	}
	fields := map[string]interface{}{"last_polled_at": polledAt}
	if terminal == len(items) {
		fields["status"] = model.BatchCompleted
		fields["completed_at"] = s.nowFn()
	}

	if err := s.payoutRepo.UpdateBatch(ctx, tx, batch.ID, fields); err != nil {
		return fmt.Errorf("update payout batch: %w", err)
	}

	if terminal == len(items) {
		s.log.WithFields(logrus.Fields{
			"batch_id":          batch.ID,
			"external_batch_id": derefOr(batch.ExternalBatchID, ""),
		}).Info("payout batch completed")
	}

	return nil
}

func (s *payoutServiceImpl) markItemPaid(ctx context.Context, tx *gorm.DB, batch *model.PayoutBatch, item *model.PayoutItem, r model.PayoutItemResult) error {
	err := s.payoutRepo.UpdateItem(ctx, tx, item.ID, map[string]interface{}{
		"status":           model.ItemPaid,
		"external_item_id": r.ExternalItemID,
		"transaction_id":   r.TransactionID,
	})
	if err != nil {
		return fmt.Errorf("update payout item: %w", err)
	}

	commissions, err := s.commissionRepo.ListByItem(ctx, tx, item.ID)
	if err != nil {
		return fmt.Errorf("list item commissions: %w", err)
	}

	paidAt := s.nowFn()
	for _, c := range commissions {
		if c.Status != model.CommissionApproved {
			continue
		}

		err := s.ledger.apply(ctx, tx, c, transitionInput{
			to:     model.CommissionPaid,
			actor:  model.SystemActor,
			reason: "payout batch " + derefOr(batch.ExternalBatchID, batch.ID),
			fields: map[string]interface{}{
				"transaction_id": r.TransactionID,
				"paid_at":        paidAt,
			},
		})
		if err != nil {
			return fmt.Errorf("mark commission %s paid: %w", c.ID, err)
		}
	}

	return nil
}

func (s *payoutServiceImpl) markItemFailed(ctx context.Context, tx *gorm.DB, item *model.PayoutItem, r model.PayoutItemResult) error {
	message := truncate(r.ErrorMessage, 512)
	err := s.payoutRepo.UpdateItem(ctx, tx, item.ID, map[string]interface{}{
		"status":           model.ItemFailed,
		"external_item_id": r.ExternalItemID,
		"error_code":       r.ErrorCode,
		"error_message":    message,
	})
	if err != nil {
		return fmt.Errorf("update payout item: %w", err)
	}

	commissions, err := s.commissionRepo.ListByItem(ctx, tx, item.ID)
	if err != nil {
		return fmt.Errorf("list item commissions: %w", err)
	}

	for _, c := range commissions {
		if c.Status != model.CommissionApproved {
			continue
		}

		err := s.ledger.apply(ctx, tx, c, transitionInput{
			to:     model.CommissionFailed,
			actor:  model.SystemActor,
			reason: fmt.Sprintf("%s: %s", model.ErrExternalItemFailure, r.ErrorCode),
			fields: map[string]interface{}{
				"error_code":    r.ErrorCode,
				"error_message": message,
			},
		})
		if err != nil {
			return fmt.Errorf("mark commission %s failed: %w", c.ID, err)
		}
	}

	return nil
}

// ReconcileOpen polls every open batch once. Batches that could not be
// polled stay open for the next tick.
func (s *payoutServiceImpl) ReconcileOpen(ctx context.Context) (int, error) {
	batches, err := s.payoutRepo.ListOpenBatches(ctx, openBatchPageSize)
	if err != nil {
		return 0, fmt.Errorf("list open batches: %w", err)
	}

	reconciled := 0
	var errs []error
	for _, batch := range batches {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		if _, err := s.Reconcile(ctx, batch.ID); err != nil {
			s.log.WithError(err).WithField("batch_id", batch.ID).Warn("reconcile batch")
			errs = append(errs, err)
			continue
		}
		reconciled++
	}

	return reconciled, errors.Join(errs...)
}

func (s *payoutServiceImpl) GetBatch(ctx context.Context, batchID string) (*dto.PayoutBatchDetail, error) {
	batch, err := s.payoutRepo.FindBatch(ctx, nil, batchID)
	if err != nil {
		return nil, err
	}

	items, err := s.payoutRepo.ListItems(ctx, nil, batchID)
	if err != nil {
		return nil, fmt.Errorf("list payout items: %w", err)
	}

	commissions, err := s.commissionRepo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch commissions: %w", err)
	}

	return &dto.PayoutBatchDetail{
		Batch:       batch,
		Items:       items,
		Commissions: commissions,
	}, nil
}

func (s *payoutServiceImpl) ListBatches(ctx context.Context, limit, offset int) (*dto.PayoutBatchList, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	batches, total, err := s.payoutRepo.ListBatches(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list payout batches: %w", err)
	}

	return &dto.PayoutBatchList{
		Items:  batches,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// HandleWebhook treats PayPal payout events as a hint to reconcile the batch
// right away instead of waiting for the next poll.
func (s *payoutServiceImpl) HandleWebhook(ctx context.Context, headers http.Header, body []byte) error {
	if err := s.paypalClient.VerifyWebhookSignature(ctx, headers, body); err != nil {
		if errors.Is(err, model.ErrWebhookSignature) {
			return err
		}
		return fmt.Errorf("%w: %w", model.ErrWebhookSignature, err)
	}

	var event model.PayPalWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: unmarshal webhook event: %v", model.ErrInvalidInput, err)
	}
	if event.ID == "" {
		return fmt.Errorf("%w: webhook event without id", model.ErrInvalidInput)
	}

	log := s.log.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.EventType,
	})

	processed, err := s.webhookEventRepo.Exists(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("check webhook event: %w", err)
	}
	if processed {
		log.Debug("webhook event already processed")
		return nil
	}

	if strings.HasPrefix(event.EventType, "PAYMENT.PAYOUTSBATCH.") || strings.HasPrefix(event.EventType, "PAYMENT.PAYOUTS-ITEM.") {
		if err := s.reconcileFromEvent(ctx, &event, log); err != nil {
			return err
		}
	} else {
		log.Info("ignoring webhook event")
	}

	if err := s.webhookEventRepo.MarkProcessed(ctx, event.ID, event.EventType); err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}

	return nil
}

func (s *payoutServiceImpl) reconcileFromEvent(ctx context.Context, event *model.PayPalWebhookEvent, log logrus.FieldLogger) error {
	externalID := event.BatchID()
	if externalID == "" {
		log.Warn("payout webhook without payout_batch_id")
		return nil
	}

	batch, err := s.payoutRepo.FindBatchByExternalID(ctx, externalID)
	if errors.Is(err, model.ErrNotFound) {
		log.WithField("external_batch_id", externalID).Warn("webhook for unknown payout batch")
		return nil
	}
	if err != nil {
		return fmt.Errorf("find batch by external id: %w", err)
	}

	_, err = s.Reconcile(ctx, batch.ID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrPayoutStatusUnknown):
		// not marked processed, PayPal redelivers
		return err
	default:
		log.WithError(err).WithField("batch_id", batch.ID).Warn("reconcile from webhook")
		return nil
	}
}

// truncate keeps at most n bytes of s without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
