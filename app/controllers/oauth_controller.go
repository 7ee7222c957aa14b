package controllers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/fundlink/fundlink/internal/pkg/env"
	"github.com/fundlink/fundlink/internal/pkg/session"
)

const (
	gatewayOAuthStateSessionKey = "gateway_oauth_state"
	gatewayOAuthOrgSessionKey   = "gateway_oauth_org"
	oauthRedirectTarget         = "/gateway/connected"
)

// HandleGatewayConnect starts the partner authorization flow for one
// organization. The CSRF state and the organization id live in the redis
// session until the processor redirects back.
func HandleGatewayConnect(c *fiber.Ctx) error {
	orgID, err := parseIDParam(c, "orgID")
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "invalid organization"}).Redirect(oauthRedirectTarget)
	}

	state, err := generateOAuthState(24)
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "could not generate OAuth state"}).Redirect(oauthRedirectTarget)
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "could not load session"}).Redirect(oauthRedirectTarget)
	}
	sess.Set(gatewayOAuthStateSessionKey, state)
	sess.Set(gatewayOAuthOrgSessionKey, strconv.FormatUint(uint64(orgID), 10))
	if err := sess.Save(); err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "could not save session"}).Redirect(oauthRedirectTarget)
	}

	authorizeURL, err := partnerService().BeginAuthorization(orgID, gatewayCallbackURL(), state)
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "gateway OAuth is not configured"}).Redirect(oauthRedirectTarget)
	}

	return c.Redirect(authorizeURL, fiber.StatusSeeOther)
}

// HandleGatewayCallback completes the partner authorization flow
func HandleGatewayCallback(c *fiber.Ctx) error {
	if oauthErr := strings.TrimSpace(c.Query("error")); oauthErr != "" {
		msg := c.Query("error_description", oauthErr)
		return flash.WithError(c, fiber.Map{"type": "error", "message": "gateway authorization failed: " + msg}).Redirect(oauthRedirectTarget)
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "could not load session"}).Redirect(oauthRedirectTarget)
	}
	expectedState, _ := sess.Get(gatewayOAuthStateSessionKey).(string)
	orgRaw, _ := sess.Get(gatewayOAuthOrgSessionKey).(string)
	gotState := strings.TrimSpace(c.Query("state"))
	sess.Delete(gatewayOAuthStateSessionKey)
	sess.Delete(gatewayOAuthOrgSessionKey)
	_ = sess.Save()

	// State mismatch means this callback was not started by us. Reject
	// before the code is ever exchanged.
	if expectedState == "" || gotState == "" || expectedState != gotState {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "invalid OAuth state (state mismatch)"}).Redirect(oauthRedirectTarget)
	}

	orgID, err := strconv.ParseUint(orgRaw, 10, 32)
	if err != nil || orgID == 0 {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "authorization session expired"}).Redirect(oauthRedirectTarget)
	}

	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "OAuth code missing"}).Redirect(oauthRedirectTarget)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	merchant, err := partnerService().CompleteOAuth(ctx, uint(orgID), code, gatewayCallbackURL())
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "token exchange with the gateway failed"}).Redirect(oauthRedirectTarget)
	}

	msg := "gateway connected, merchant status: " + merchant.Status
	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": msg}).Redirect(oauthRedirectTarget)
}

// HandleGatewayConnected is the landing target for the flash messages above
func HandleGatewayConnected(c *fiber.Ctx) error {
	fm := flash.Get(c)
	if len(fm) == 0 {
		return c.JSON(fiber.Map{"ok": true})
	}
	status := fiber.StatusOK
	if t, _ := fm["type"].(string); t == "error" {
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fm)
}

// gatewayCallbackURL resolves the redirect URI the processor sends the
// operator back to. The stored settings win so a proxy setup can override
// the env default.
func gatewayCallbackURL() string {
	if settings, err := partnerService().Repo().GatewaySettings(); err == nil && settings.CallbackURL != "" {
		return settings.CallbackURL
	}
	return strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", "http://localhost:8080"), "/") + "/gateway/callback"
}

func generateOAuthState(size int) (string, error) {
	if size < 16 {
		size = 16
	}
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
