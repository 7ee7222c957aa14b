package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fundlink/fundlink/internal/pkg/partner"
)

// processWebhookEventJob processes one registered webhook event. The partner
// service folds processing failures into the event row itself, so a non-nil
// error here means the row could not even be loaded or updated; those are
// worth the queue's retry cycle.
func (q *Queue) processWebhookEventJob(ctx context.Context, job *Job) error {
	payload, err := WebhookEventJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid webhook event payload: %w", err)
	}
	if payload.EventID == 0 {
		return fmt.Errorf("webhook event job without event_id")
	}
	return q.svc.HandleEvent(ctx, payload.EventID)
}

// processMerchantSyncJob refreshes one merchant from the processor. Domain
// guards (no external id, no token) are terminal: retrying cannot fix them,
// so they complete the job with a warning instead of entering retry.
func (q *Queue) processMerchantSyncJob(ctx context.Context, job *Job) error {
	payload, err := MerchantSyncJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid merchant sync payload: %w", err)
	}

	_, err = q.svc.Sync(ctx, payload.MerchantID)
	var dse *partner.DomainStateError
	if errors.As(err, &dse) {
		log.Warnf("[JobQueue] merchant %d sync skipped: %v", payload.MerchantID, dse)
		return nil
	}
	return err
}

func (q *Queue) processPaymentsReconcileJob(ctx context.Context, job *Job) error {
	payload, err := ReconcileJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid reconcile payload: %w", err)
	}

	n, err := q.svc.SyncMerchantPayments(ctx, payload.MerchantID, payload.Since)
	var dse *partner.DomainStateError
	if errors.As(err, &dse) {
		log.Warnf("[JobQueue] merchant %d payments reconcile skipped: %v", payload.MerchantID, dse)
		return nil
	}
	if err != nil {
		return err
	}
	log.Debugf("[JobQueue] merchant %d: reconciled %d payments", payload.MerchantID, n)
	return nil
}

func (q *Queue) processPayoutsReconcileJob(ctx context.Context, job *Job) error {
	payload, err := ReconcileJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid reconcile payload: %w", err)
	}

	n, err := q.svc.SyncMerchantPayouts(ctx, payload.MerchantID, payload.Since)
	var dse *partner.DomainStateError
	if errors.As(err, &dse) {
		log.Warnf("[JobQueue] merchant %d payouts reconcile skipped: %v", payload.MerchantID, dse)
		return nil
	}
	if err != nil {
		return err
	}
	log.Debugf("[JobQueue] merchant %d: reconciled %d payouts", payload.MerchantID, n)
	return nil
}
