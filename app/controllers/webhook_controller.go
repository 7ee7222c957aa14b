package controllers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/fundlink/fundlink/app/repository"
	"github.com/fundlink/fundlink/internal/pkg/jobqueue"
)

// webhookSignatureHeaders are checked in order; the processor sends the
// first one, the others cover older deliveries and test tooling.
var webhookSignatureHeaders = []string{"X-Gateway-Signature", "Webhook-Signature", "X-Signature"}

// HandleGatewayWebhook receives processor webhook deliveries. Registration
// is synchronous and cheap; the actual state fold runs on the job queue so
// the delivery is acknowledged without waiting on remote lookups.
func HandleGatewayWebhook(c *fiber.Ctx) error {
	body := append([]byte(nil), c.BodyRaw()...)
	if len(body) == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "empty body")
	}

	signature := ""
	for _, header := range webhookSignatureHeaders {
		if v := strings.TrimSpace(c.Get(header)); v != "" {
			signature = v
			break
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	stored, created, err := partnerService().RegisterEvent(ctx, body, signature)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "webhook payload could not be registered")
	}
	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if !stored.SignatureValid {
		// The row is kept for diagnosis but never dispatched.
		return jsonError(c, fiber.StatusUnauthorized, "invalid_signature", "webhook signature verification failed")
	}

	payload := jobqueue.WebhookEventJobPayload{EventID: stored.ID}
	if _, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobqueue.JobTypeWebhookEvent, payload.ToMap()); err != nil {
		// The event is registered; a stuck enqueue is recovered by replay.
		log.Errorf("[Webhook] failed to enqueue event %d: %v", stored.ID, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "event_id": stored.ID})
}

// HandleWebhookEventIndex lists the webhook event log with the common filters
func HandleWebhookEventIndex(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetWebhookEventRepository()
	events, total, err := repo.List(listFilterFromQuery(c))
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "event list failed")
	}
	counts, err := repo.CountByStatus()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "event counts failed")
	}
	return c.JSON(fiber.Map{"events": events, "total": total, "counts": counts})
}

// HandleWebhookEventShow returns one event log row with its raw payload
func HandleWebhookEventShow(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	repo := repository.GetGlobalFactory().GetWebhookEventRepository()
	event, err := repo.GetByID(id)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(event)
}

// HandleWebhookEventReplay reprocesses a failed event
func HandleWebhookEventReplay(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	if err := partnerService().ReplayEvent(ctx, id); err != nil {
		return domainError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}
