package service

import (
	"context"
	"fmt"
	"time"

	"affiliate-payouts/internal/model"
	"affiliate-payouts/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ledgerWriter is the only code path that changes a commission's status.
// Both the admin operations and payout reconciliation go through it so every
// change is checked against the transition table and leaves an audit row.
type ledgerWriter struct {
	commissionRepo repository.CommissionRepository
	log            logrus.FieldLogger
	nowFn          func() time.Time
}

type transitionInput struct {
	to     model.CommissionStatus
	actor  model.Actor
	reason string
	fields map[string]interface{}
}

func (w *ledgerWriter) apply(ctx context.Context, tx *gorm.DB, commission *model.Commission, in transitionInput) error {
	from := commission.Status
	if !from.CanTransitionTo(in.to) {
		return fmt.Errorf("%w: %s -> %s", model.ErrInvalidStateTransition, from, in.to)
	}

	if err := w.commissionRepo.Transition(ctx, tx, commission, in.to, in.fields); err != nil {
		return err
	}

	err := w.commissionRepo.AppendTransition(ctx, tx, &model.CommissionTransition{
		CommissionID:  commission.ID,
		FromStatus:    from,
		ToStatus:      in.to,
		ActorID:       in.actor.ID,
		ActorKind:     in.actor.Kind,
		Reason:        in.reason,
		PayoutBatchID: derefOr(commission.PayoutBatchID, ""),
		TransactionID: commission.TransactionID,
		CreatedAt:     w.nowFn(),
	})
	if err != nil {
		return fmt.Errorf("append commission transition: %w", err)
	}

	w.log.WithFields(logrus.Fields{
		"commission_id": commission.ID,
		"from":          from,
		"to":            in.to,
		"actor":         in.actor.ID,
		"actor_kind":    in.actor.Kind,
	}).Info("commission transition")

	return nil
}

// created records the initial held row of a new commission.
func (w *ledgerWriter) created(ctx context.Context, tx *gorm.DB, commission *model.Commission) error {
	err := w.commissionRepo.AppendTransition(ctx, tx, &model.CommissionTransition{
		CommissionID: commission.ID,
		ToStatus:     commission.Status,
		ActorID:      model.SystemActor.ID,
		ActorKind:    model.SystemActor.Kind,
		Reason:       "purchase " + commission.PurchaseID,
		CreatedAt:    w.nowFn(),
	})
	if err != nil {
		return fmt.Errorf("append commission transition: %w", err)
	}

	w.log.WithFields(logrus.Fields{
		"commission_id": commission.ID,
		"affiliate_id":  commission.AffiliateID,
		"purchase_id":   commission.PurchaseID,
		"tier":          commission.Tier,
		"amount":        model.FormatCents(commission.AmountCents),
		"to":            commission.Status,
	}).Info("commission created")

	return nil
}
