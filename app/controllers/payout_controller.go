package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fundlink/fundlink/app/repository"
	"github.com/fundlink/fundlink/internal/pkg/jobqueue"
)

// HandlePayoutIndex lists payouts with the common admin filters
func HandlePayoutIndex(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetPayoutRepository()
	payouts, total, err := repo.List(listFilterFromQuery(c))
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "payout list failed")
	}
	return c.JSON(fiber.Map{"payouts": payouts, "total": total})
}

// HandlePayoutShow returns one payout row
func HandlePayoutShow(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	repo := repository.GetGlobalFactory().GetPayoutRepository()
	payout, err := repo.GetByID(id)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(payout)
}

// HandlePayoutReconcile enqueues a payouts reconciliation job for one merchant
func HandlePayoutReconcile(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	var since *time.Time
	if t := parseTimeQuery(c.Query("since")); t != nil {
		since = t
	}

	payload := jobqueue.ReconcileJobPayload{MerchantID: id, Since: since}
	job, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobqueue.JobTypePayoutsReconcile, payload.ToMap())
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "enqueue failed")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true, "job_id": job.ID})
}
