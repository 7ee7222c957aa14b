package controllers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fundlink/fundlink/app/models"
	"github.com/fundlink/fundlink/app/repository"
)

type merchantCreateRequest struct {
	OrganizationID uint                    `json:"organization_id"`
	Settings       models.MerchantSettings `json:"settings"`
}

// HandleMerchantCreate creates (or returns) the draft merchant for an organization
func HandleMerchantCreate(c *fiber.Ctx) error {
	var req merchantCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}
	if req.OrganizationID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "organization_id is required")
	}

	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	merchant, err := partnerService().CreateDraft(ctx, req.OrganizationID, req.Settings)
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(merchant)
}

// HandleMerchantSubmit submits the draft merchant to the processor for onboarding
func HandleMerchantSubmit(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	data := map[string]interface{}{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&data); err != nil {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
		}
	}

	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	merchant, err := partnerService().SubmitOnboarding(ctx, id, data)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(merchant)
}

// HandleMerchantSync pulls the current processor state for one merchant
func HandleMerchantSync(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	merchant, err := partnerService().Sync(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(merchant)
}

// HandleMerchantDeactivate blocks a merchant locally with a reason
func HandleMerchantDeactivate(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
		}
	}

	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	if err := partnerService().Deactivate(ctx, id, req.Reason); err != nil {
		return domainError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// HandleMerchantBatchSync refreshes every onboarded merchant against the processor
func HandleMerchantBatchSync(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*requestTimeout)
	defer cancel()

	report, err := partnerService().SyncAuthorizedMerchants(ctx)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(fiber.Map{"synced": report.Synced, "failed": report.Failed})
}

// HandleMerchantAttach binds an already existing processor merchant to an organization
func HandleMerchantAttach(c *fiber.Ctx) error {
	var req struct {
		OrganizationID uint   `json:"organization_id"`
		ExternalID     string `json:"external_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}
	if req.OrganizationID == 0 || strings.TrimSpace(req.ExternalID) == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "organization_id and external_id are required")
	}

	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	merchant, err := partnerService().AttachMerchant(ctx, req.OrganizationID, strings.TrimSpace(req.ExternalID))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(merchant)
}

// HandleMerchantIndex lists merchants with the common admin filters. A
// non-empty external_id query resolves that single merchant instead.
func HandleMerchantIndex(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetMerchantRepository()

	if externalID := strings.TrimSpace(c.Query("external_id")); externalID != "" {
		merchant, err := repo.GetByExternalID(externalID)
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(fiber.Map{"merchants": []models.Merchant{*merchant}, "total": 1})
	}

	merchants, total, err := repo.List(listFilterFromQuery(c))
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "merchant list failed")
	}
	return c.JSON(fiber.Map{"merchants": merchants, "total": total})
}

// HandleMerchantShow returns one merchant with its settings and documents
func HandleMerchantShow(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	repo := repository.GetGlobalFactory().GetMerchantRepository()
	merchant, err := repo.GetByID(id)
	if err != nil {
		return domainError(c, err)
	}

	return c.JSON(fiber.Map{
		"merchant":  merchant,
		"settings":  merchant.Settings(),
		"documents": merchant.Documents(),
	})
}

// HandleMerchantStats returns aggregated payment and payout figures
func HandleMerchantStats(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	repo := repository.GetGlobalFactory().GetMerchantRepository()
	if _, err := repo.GetByID(id); err != nil {
		return domainError(c, err)
	}
	stats, err := repo.GetStats(id)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "stats aggregation failed")
	}
	return c.JSON(stats)
}
