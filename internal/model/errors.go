package model

import "errors"

var (
	ErrNotFound                  = errors.New("not found")
	ErrInvalidInput              = errors.New("invalid input")
	ErrAlreadyExists             = errors.New("already exists")
	ErrUnknownReferralCode       = errors.New("unknown referral code")
	ErrHoldPeriodNotElapsed      = errors.New("hold period not elapsed")
	ErrInvalidStateTransition    = errors.New("invalid state transition")
	ErrConcurrentModification    = errors.New("concurrent modification")
	ErrExternalSubmissionFailure = errors.New("external payout submission failed")
	ErrExternalItemFailure       = errors.New("external payout item failed")
	ErrPayoutStatusUnknown       = errors.New("payout status unknown, retry later")
	ErrNoEligibleCommissions     = errors.New("no eligible commissions")
	ErrBatchClosed               = errors.New("payout batch is not open")
	ErrWebhookSignature          = errors.New("webhook signature verification failed")
)
