package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fundlink/fundlink/app/models"
	"github.com/fundlink/fundlink/app/repository"
)

// HandleOrganizationCreate registers a fundraising organization
func HandleOrganizationCreate(c *fiber.Ctx) error {
	var org models.Organization
	if err := c.BodyParser(&org); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}
	if err := org.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	repo := repository.GetGlobalFactory().GetOrganizationRepository()
	if err := repo.Create(&org); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "organization create failed")
	}
	return c.Status(fiber.StatusCreated).JSON(org)
}

// HandleOrganizationIndex lists organizations with offset/limit pagination
func HandleOrganizationIndex(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetOrganizationRepository()

	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)

	orgs, err := repo.List(offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "organization list failed")
	}
	total, err := repo.Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "organization count failed")
	}
	return c.JSON(fiber.Map{"organizations": orgs, "total": total})
}

// HandleOrganizationShow returns one organization
func HandleOrganizationShow(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	repo := repository.GetGlobalFactory().GetOrganizationRepository()
	org, err := repo.GetByID(id)
	if err != nil {
		return domainError(c, err)
	}

	response := fiber.Map{"organization": org}
	if merchant, err := repository.GetGlobalFactory().GetMerchantRepository().GetByOrganizationID(id); err == nil {
		response["merchant"] = merchant
	}
	return c.JSON(response)
}

// HandleOrganizationUpdate updates organization master data
func HandleOrganizationUpdate(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	repo := repository.GetGlobalFactory().GetOrganizationRepository()
	org, err := repo.GetByID(id)
	if err != nil {
		return domainError(c, err)
	}

	if err := c.BodyParser(org); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}
	org.ID = id
	if err := org.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}
	if err := repo.Update(org); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "organization update failed")
	}
	return c.JSON(org)
}
