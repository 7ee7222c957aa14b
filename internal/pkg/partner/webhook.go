package partner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/fundlink/fundlink/app/models"
	"github.com/fundlink/fundlink/internal/pkg/gateway"
	"github.com/fundlink/fundlink/internal/pkg/money"
)

// RegisterEvent records one inbound webhook delivery in the event log and
// returns the stored row. Registration is deliberately cheap: it verifies
// the signature, dedups by external event id and persists the raw payload.
// Processing happens separately via HandleEvent. The returned bool is false
// when the delivery was a duplicate of an already registered event.
func (s *Service) RegisterEvent(ctx context.Context, body []byte, signatureHeader string) (*models.WebhookEvent, bool, error) {
	_ = ctx
	payload, err := gateway.ParseWebhookPayload(body)
	if err != nil {
		return nil, false, err
	}

	settings, err := s.repo.GatewaySettings()
	if err != nil {
		return nil, false, err
	}
	signatureValid := gateway.VerifyWebhookSignature(body, signatureHeader, settings.WebhookSecret)

	ev := &models.WebhookEvent{
		ExternalEventID: externalEventID(body),
		EventType:       payload.EventType,
		ObjectID:        payload.ObjectID,
		ObjectType:      payload.ObjectType,
		PayloadJSON:     string(body),
		SignatureValid:  signatureValid,
		Status:          models.EventStatusPending,
		OccurredAt:      payload.OccurredAt,
	}
	if !signatureValid {
		// Kept for diagnosis but never processed.
		ev.Status = models.EventStatusFailed
		ev.ProcessingError = "webhook signature verification failed"
	}

	created, stored, err := s.repo.CreateWebhookEventIfNotExists(ev)
	if err != nil {
		return nil, false, err
	}
	if !created {
		log.Debugf("[Partner] duplicate webhook delivery %s (%s), already registered as event %d", stored.ExternalEventID, stored.EventType, stored.ID)
	}
	return stored, created, nil
}

// externalEventID extracts the processor's delivery id. Deliveries without
// one are deduped by a digest of the raw body so an identical redelivery
// still collapses onto the stored row.
func externalEventID(body []byte) string {
	var envelope struct {
		ID      string `json:"id"`
		EventID string `json:"event_id"`
	}
	_ = json.Unmarshal(body, &envelope)
	if id := strings.TrimSpace(envelope.ID); id != "" {
		return id
	}
	if id := strings.TrimSpace(envelope.EventID); id != "" {
		return id
	}
	sum := sha256.Sum256(body)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// HandleEvent processes one registered event. Processed events are never
// reprocessed. Processing failures are folded into the row (status failed
// plus the error text) instead of surfacing to the caller: the processor's
// delivery has already been acknowledged and a failed event is replayed by
// an operator, not retried automatically.
func (s *Service) HandleEvent(ctx context.Context, eventID uint) error {
	ev, err := s.repo.GetWebhookEvent(eventID)
	if err != nil {
		return err
	}

	switch ev.Status {
	case models.EventStatusProcessed:
		return nil
	case models.EventStatusFailed:
		if !ev.SignatureValid {
			return nil
		}
	case models.EventStatusProcessing:
		return nil
	}

	ev.Status = models.EventStatusProcessing
	if err := s.repo.SaveWebhookEvent(ev); err != nil {
		return err
	}

	perr := s.dispatchEvent(ctx, ev)

	now := time.Now()
	var unknown *UnknownEntityError
	switch {
	case perr == nil:
		ev.Status = models.EventStatusProcessed
		ev.ProcessingError = ""
		ev.ProcessedAt = &now
	case errors.As(perr, &unknown):
		// An event for an entity this platform never onboarded is not an
		// error worth keeping in the failed queue; note it and move on.
		ev.Status = models.EventStatusProcessed
		ev.ProcessingError = perr.Error()
		ev.ProcessedAt = &now
		log.Infof("[Partner] event %d (%s): %v", ev.ID, ev.EventType, perr)
	default:
		ev.Status = models.EventStatusFailed
		ev.ProcessingError = perr.Error()
		log.Errorf("[Partner] event %d (%s) failed: %v", ev.ID, ev.EventType, perr)
	}
	return s.repo.SaveWebhookEvent(ev)
}

// staleProcessingAge is how long an event may sit in processing before an
// operator can replay it. A crash between the status save and the outcome
// save strands the row in processing; after this window it is treated as
// abandoned rather than in flight.
const staleProcessingAge = 15 * time.Minute

// ReplayEvent resets a failed or stale-processing event back to pending and
// processes it again. Operator tooling only; events with an invalid
// signature stay dead.
func (s *Service) ReplayEvent(ctx context.Context, eventID uint) error {
	ev, err := s.repo.GetWebhookEvent(eventID)
	if err != nil {
		return err
	}
	if !ev.SignatureValid {
		return &DomainStateError{Message: "event failed signature verification and cannot be replayed"}
	}
	switch ev.Status {
	case models.EventStatusFailed:
	case models.EventStatusProcessing:
		if age := time.Since(ev.UpdatedAt); age < staleProcessingAge {
			return &DomainStateError{Message: fmt.Sprintf("event has been processing for %s, a worker may still own it", age.Round(time.Second))}
		}
		log.Warnf("[Partner] event %d stuck in processing since %s, replaying", ev.ID, ev.UpdatedAt)
	default:
		return &DomainStateError{Message: fmt.Sprintf("event is %s, only failed or stale processing events can be replayed", ev.Status)}
	}

	ev.Status = models.EventStatusPending
	ev.ProcessingError = ""
	if err := s.repo.SaveWebhookEvent(ev); err != nil {
		return err
	}
	return s.HandleEvent(ctx, eventID)
}

func (s *Service) dispatchEvent(ctx context.Context, ev *models.WebhookEvent) error {
	payload, err := gateway.ParseWebhookPayload([]byte(ev.PayloadJSON))
	if err != nil {
		return err
	}

	switch payload.ObjectType {
	case "merchant":
		return s.handleMerchantEvent(payload)
	case "payment":
		return s.handlePaymentEvent(ctx, payload)
	case "refund":
		return s.handleRefundEvent(payload)
	case "payout":
		return s.handlePayoutEvent(ctx, payload)
	default:
		return fmt.Errorf("unsupported webhook object type %q", payload.ObjectType)
	}
}

func (s *Service) handleMerchantEvent(payload *gateway.WebhookPayload) error {
	remote, err := gateway.ParseMerchant(payload.Object)
	if err != nil {
		return err
	}

	m, err := s.repo.GetMerchantByExternalID(remote.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &UnknownEntityError{Kind: "merchant", ExternalID: remote.ID}
	} else if err != nil {
		return err
	}

	unlock := s.locks.Lock(m.OrganizationID)
	defer unlock()

	return s.repo.WithTx(func(repo Repository) error {
		if !applyRemoteMerchant(m, remote, payload.OccurredAt) {
			log.Debugf("[Partner] merchant %d: stale event (%s), skipping", m.ID, payload.EventType)
			return nil
		}
		return repo.SaveMerchant(m)
	})
}

func (s *Service) handlePaymentEvent(ctx context.Context, payload *gateway.WebhookPayload) error {
	p, err := gateway.ParsePayment(payload.Object)
	if err != nil {
		return err
	}

	m, err := s.merchantForObject(p.MerchantID)
	if err != nil {
		return err
	}
	return s.StorePayment(ctx, m, p, payload.OccurredAt)
}

// handleRefundEvent folds a succeeded refund into the refunded payment's
// transaction. Partial refunds keep the transaction completed; only a full
// refund cancels it.
func (s *Service) handleRefundEvent(payload *gateway.WebhookPayload) error {
	r, err := gateway.ParseRefund(payload.Object)
	if err != nil {
		return err
	}
	if r.Status != gateway.PaymentStatusSucceeded {
		return nil
	}

	// The refund mutates the same rows a racing payment webhook folds, so
	// it takes the organization lock like every other fold entry point.
	known, err := s.repo.GetPaymentDetailByExternalID(r.PaymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &UnknownEntityError{Kind: "payment", ExternalID: r.PaymentID}
	} else if err != nil {
		return err
	}
	merchant, err := s.repo.GetMerchant(known.MerchantID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(merchant.OrganizationID)
	defer unlock()

	return s.repo.WithTx(func(repo Repository) error {
		detail, err := repo.GetPaymentDetailByExternalID(r.PaymentID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &UnknownEntityError{Kind: "payment", ExternalID: r.PaymentID}
		} else if err != nil {
			return err
		}

		txn, err := repo.GetTransaction(detail.PaymentTransactionID)
		if err != nil {
			return err
		}

		refunded, err := money.ToMinorUnits(r.Amount.Value, r.Amount.Currency)
		if err != nil {
			return fmt.Errorf("refund %s amount: %w", r.ID, err)
		}
		if refunded >= txn.AmountMinor {
			txn.Status = models.TransactionStatusCancelled
			if err := repo.SaveTransaction(txn); err != nil {
				return err
			}
			detail.Status = gateway.PaymentStatusCanceled
			return repo.SavePaymentDetail(detail)
		}
		return nil
	})
}

func (s *Service) handlePayoutEvent(ctx context.Context, payload *gateway.WebhookPayload) error {
	p, err := gateway.ParsePayout(payload.Object)
	if err != nil {
		return err
	}

	m, err := s.merchantForObject(p.MerchantID)
	if err != nil {
		return err
	}
	return s.StorePayout(ctx, m, p)
}

func (s *Service) merchantForObject(externalMerchantID string) (*models.Merchant, error) {
	if strings.TrimSpace(externalMerchantID) == "" {
		return nil, errors.New("webhook object carries no merchant id")
	}
	m, err := s.repo.GetMerchantByExternalID(externalMerchantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &UnknownEntityError{Kind: "merchant", ExternalID: externalMerchantID}
	}
	return m, err
}
