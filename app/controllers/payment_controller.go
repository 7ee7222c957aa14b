package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fundlink/fundlink/app/repository"
	"github.com/fundlink/fundlink/internal/pkg/jobqueue"
)

// HandlePaymentIndex lists payment transactions with the common admin filters
func HandlePaymentIndex(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetPaymentRepository()
	transactions, total, err := repo.ListTransactions(listFilterFromQuery(c))
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "payment list failed")
	}
	return c.JSON(fiber.Map{"payments": transactions, "total": total})
}

// HandlePaymentShow returns one transaction together with its gateway-side detail row
func HandlePaymentShow(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	repo := repository.GetGlobalFactory().GetPaymentRepository()
	txn, err := repo.GetTransactionByID(id)
	if err != nil {
		return domainError(c, err)
	}

	response := fiber.Map{"payment": txn, "details": txn.Details(), "donor": txn.Details()}

	// The detail row is keyed by the processor payment id; a transaction
	// created on our site may not have one yet.
	if txn.ExternalPaymentID != "" {
		if detail, err := repo.GetDetailByExternalID(txn.ExternalPaymentID); err == nil {
			response["gateway_detail"] = detail
		}
	}
	return c.JSON(response)
}

// HandlePaymentDetailIndex lists the gateway-side payment detail rows
func HandlePaymentDetailIndex(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetPaymentRepository()
	details, total, err := repo.ListDetails(listFilterFromQuery(c))
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "payment detail list failed")
	}
	return c.JSON(fiber.Map{"details": details, "total": total})
}

// HandlePaymentDetailShow returns one gateway-side payment detail row
func HandlePaymentDetailShow(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	repo := repository.GetGlobalFactory().GetPaymentRepository()
	detail, err := repo.GetDetailByID(id)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(detail)
}

// HandlePaymentReconcile enqueues a payments reconciliation job for one merchant
func HandlePaymentReconcile(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	var since *time.Time
	if t := parseTimeQuery(c.Query("since")); t != nil {
		since = t
	}

	payload := jobqueue.ReconcileJobPayload{MerchantID: id, Since: since}
	job, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobqueue.JobTypePaymentsReconcile, payload.ToMap())
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "enqueue failed")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true, "job_id": job.ID})
}
