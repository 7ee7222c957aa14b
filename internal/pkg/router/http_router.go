package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fundlink/fundlink/app/controllers"
	"github.com/fundlink/fundlink/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session (backs the OAuth CSRF state)
	session.NewSessionStore()

	// Initialize queue controller with repository
	controllers.InitializeQueueController()

	h.registerPublicRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
