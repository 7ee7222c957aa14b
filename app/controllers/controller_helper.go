package controllers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/fundlink/fundlink/app/repository"
	"github.com/fundlink/fundlink/internal/pkg/jobqueue"
	"github.com/fundlink/fundlink/internal/pkg/partner"
)

const requestTimeout = 20 * time.Second

// partnerService returns the shared partner service. Going through the job
// manager matters: the per-organization locks only serialize when every
// caller uses the same service instance.
func partnerService() *partner.Service {
	return jobqueue.GetManager().GetService()
}

// jsonError writes a consistent JSON error body
func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

// domainError maps partner/gateway errors onto HTTP statuses
func domainError(c *fiber.Ctx, err error) error {
	var stateErr *partner.DomainStateError
	if errors.As(err, &stateErr) {
		return jsonError(c, fiber.StatusConflict, "invalid_state", stateErr.Error())
	}
	var unknownErr *partner.UnknownEntityError
	if errors.As(err, &unknownErr) {
		return jsonError(c, fiber.StatusNotFound, "not_found", unknownErr.Error())
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusNotFound, "not_found", "record not found")
	}
	return jsonError(c, fiber.StatusBadGateway, "gateway_error", err.Error())
}

// parseIDParam reads a positive numeric route parameter
func parseIDParam(c *fiber.Ctx, name string) (uint, error) {
	raw := strings.TrimSpace(c.Params(name))
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return uint(id), nil
}

// listFilterFromQuery builds a repository filter from common query params:
// organization_id, merchant_id, status, from, to (RFC3339), offset, limit.
func listFilterFromQuery(c *fiber.Ctx) repository.ListFilter {
	filter := repository.ListFilter{
		Status: strings.TrimSpace(c.Query("status")),
		Offset: c.QueryInt("offset", 0),
		Limit:  c.QueryInt("limit", 0),
	}
	if v := c.QueryInt("organization_id", 0); v > 0 {
		filter.OrganizationID = uint(v)
	}
	if v := c.QueryInt("merchant_id", 0); v > 0 {
		filter.MerchantID = uint(v)
	}
	if t := parseTimeQuery(c.Query("from")); t != nil {
		filter.From = t
	}
	if t := parseTimeQuery(c.Query("to")); t != nil {
		filter.To = t
	}
	return filter
}

func parseTimeQuery(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	// Date-only values are common in ops tooling
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t
	}
	return nil
}
