package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fundlink/fundlink/app/controllers"
	"github.com/fundlink/fundlink/internal/pkg/constants"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Processor webhooks (no auth, signature-verified in the service)
	app.Post(constants.WebhookRoute, controllers.HandleGatewayWebhook)

	// Partner OAuth flow. Connect is operator-facing, the callback is hit
	// by the processor's redirect and has to stay public.
	app.Get(constants.GatewayConnectRoute+"/:orgID", controllers.HandleGatewayConnect)
	app.Get(constants.GatewayCallbackRoute, controllers.HandleGatewayCallback)
	app.Get("/gateway/connected", controllers.HandleGatewayConnected)
}
