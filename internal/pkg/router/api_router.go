package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/fundlink/fundlink/app/controllers"
	"github.com/fundlink/fundlink/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes, guarded by admin basic auth
	v1 := api.Group("/v1", middleware.AdminBasicAuth())

	// Organizations
	v1.Post("/organizations", controllers.HandleOrganizationCreate)
	v1.Get("/organizations", controllers.HandleOrganizationIndex)
	v1.Get("/organizations/:id", controllers.HandleOrganizationShow)
	v1.Put("/organizations/:id", controllers.HandleOrganizationUpdate)

	// Merchant lifecycle
	v1.Post("/merchants", controllers.HandleMerchantCreate)
	v1.Post("/merchants/sync", controllers.HandleMerchantBatchSync)
	v1.Post("/merchants/attach", controllers.HandleMerchantAttach)
	v1.Get("/merchants", controllers.HandleMerchantIndex)
	v1.Get("/merchants/:id", controllers.HandleMerchantShow)
	v1.Get("/merchants/:id/stats", controllers.HandleMerchantStats)
	v1.Post("/merchants/:id/submit", controllers.HandleMerchantSubmit)
	v1.Post("/merchants/:id/sync", controllers.HandleMerchantSync)
	v1.Post("/merchants/:id/deactivate", controllers.HandleMerchantDeactivate)

	// Onboarding documents
	v1.Post("/merchants/:id/documents", controllers.HandleMerchantDocumentUpload)
	v1.Get("/merchants/:id/documents/:docID", controllers.HandleMerchantDocumentDownload)

	// Reconciliation triggers
	v1.Post("/merchants/:id/reconcile/payments", controllers.HandlePaymentReconcile)
	v1.Post("/merchants/:id/reconcile/payouts", controllers.HandlePayoutReconcile)

	// Payments and payouts
	v1.Get("/payments", controllers.HandlePaymentIndex)
	v1.Get("/payments/:id", controllers.HandlePaymentShow)
	v1.Get("/payment-details", controllers.HandlePaymentDetailIndex)
	v1.Get("/payment-details/:id", controllers.HandlePaymentDetailShow)
	v1.Get("/payouts", controllers.HandlePayoutIndex)
	v1.Get("/payouts/:id", controllers.HandlePayoutShow)

	// Webhook event log
	v1.Get("/webhook-events", controllers.HandleWebhookEventIndex)
	v1.Get("/webhook-events/:id", controllers.HandleWebhookEventShow)
	v1.Post("/webhook-events/:id/replay", controllers.HandleWebhookEventReplay)

	// Gateway settings
	v1.Get("/settings", controllers.HandleSettingsShow)
	v1.Put("/settings", controllers.HandleSettingsUpdate)

	// Queue monitor
	queueController := controllers.GetQueueController()
	v1.Get("/queue/stats", queueController.HandleQueueStats)
	v1.Get("/queue/items", queueController.HandleQueueItems)
	v1.Delete("/queue/items/:key", queueController.HandleQueueItemDelete)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
