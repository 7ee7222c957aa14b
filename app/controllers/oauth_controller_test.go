package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundlink/fundlink/internal/pkg/session"
)

// newCallbackApp wires the callback handler plus a seeding route that puts
// a known state and organization into the caller's session, the way
// HandleGatewayConnect does before redirecting to the processor.
func newCallbackApp(t *testing.T, state string) *fiber.App {
	t.Helper()
	session.UseStore(fibersession.New())

	app := fiber.New()
	app.Get("/seed", func(c *fiber.Ctx) error {
		sess, err := session.GetSessionStore().Get(c)
		require.NoError(t, err)
		sess.Set(gatewayOAuthStateSessionKey, state)
		sess.Set(gatewayOAuthOrgSessionKey, "1")
		return sess.Save()
	})
	app.Get("/gateway/callback", HandleGatewayCallback)
	app.Get("/gateway/connected", HandleGatewayConnected)
	return app
}

func sessionCookie(t *testing.T, app *fiber.App) *http.Cookie {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/seed", nil))
	require.NoError(t, err)
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" {
			return c
		}
	}
	t.Fatal("seed request set no session cookie")
	return nil
}

func TestGatewayCallbackRejectsMismatchedState(t *testing.T) {
	// No service or database is wired up: a callback whose state does not
	// match the session value must be rejected before anything past the
	// state comparison runs, so the handler never needs them.
	app := newCallbackApp(t, "expected-state")
	cookie := sessionCookie(t, app)

	req := httptest.NewRequest(http.MethodGet, "/gateway/callback?state=forged-state&code=code_1", nil)
	req.AddCookie(cookie)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, oauthRedirectTarget, resp.Header.Get("Location"))

	// Follow the redirect with the flash cookies: the landing page reports
	// the rejection as an error.
	landing := httptest.NewRequest(http.MethodGet, oauthRedirectTarget, nil)
	for _, c := range resp.Cookies() {
		landing.AddCookie(c)
	}
	landed, err := app.Test(landing)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, landed.StatusCode)
}

func TestGatewayCallbackRejectsMissingSessionState(t *testing.T) {
	app := newCallbackApp(t, "expected-state")

	// No seed request: a fresh session carries no stored state, so even a
	// plausible-looking callback is rejected.
	req := httptest.NewRequest(http.MethodGet, "/gateway/callback?state=expected-state&code=code_1", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, oauthRedirectTarget, resp.Header.Get("Location"))
}

func TestGatewayCallbackReportsProcessorError(t *testing.T) {
	app := newCallbackApp(t, "expected-state")

	req := httptest.NewRequest(http.MethodGet, "/gateway/callback?error=access_denied", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, oauthRedirectTarget, resp.Header.Get("Location"))
}
