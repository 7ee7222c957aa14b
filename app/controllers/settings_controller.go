package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fundlink/fundlink/app/models"
	"github.com/fundlink/fundlink/app/repository"
)

// HandleSettingsShow returns the global gateway settings with secrets masked
func HandleSettingsShow(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetSettingRepository()
	settings, err := repo.GetGatewaySettings()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "settings load failed")
	}
	return c.JSON(fiber.Map{
		"client_id":          settings.ClientID,
		"client_secret_set":  settings.ClientSecret != "",
		"api_base_url":       settings.APIBaseURL,
		"oauth_base_url":     settings.OAuthBaseURL,
		"callback_url":       settings.CallbackURL,
		"webhook_secret_set": settings.WebhookSecret != "",
	})
}

// HandleSettingsUpdate replaces the global gateway settings. Empty secret
// fields keep the stored value so the masked GET response can be round
// tripped without wiping credentials.
func HandleSettingsUpdate(c *fiber.Ctx) error {
	var incoming models.GatewaySettings
	if err := c.BodyParser(&incoming); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}

	repo := repository.GetGlobalFactory().GetSettingRepository()
	current, err := repo.GetGatewaySettings()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "settings load failed")
	}

	if incoming.ClientSecret == "" {
		incoming.ClientSecret = current.ClientSecret
	}
	if incoming.WebhookSecret == "" {
		incoming.WebhookSecret = current.WebhookSecret
	}

	if err := incoming.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}
	if err := repo.SaveGatewaySettings(&incoming); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "settings save failed")
	}
	return c.JSON(fiber.Map{"ok": true})
}
