package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/fundlink/fundlink/app/repository"
	"github.com/fundlink/fundlink/internal/pkg/cache"
	"github.com/fundlink/fundlink/internal/pkg/database"
	"github.com/fundlink/fundlink/internal/pkg/docstore"
	"github.com/fundlink/fundlink/internal/pkg/env"
	"github.com/fundlink/fundlink/internal/pkg/jobqueue"
	"github.com/fundlink/fundlink/internal/pkg/router"
)

func main() {
	app := NewApplication()

	manager := jobqueue.GetManager()
	manager.Start()

	// Stop the workers before the listener goes away so in-flight webhook
	// jobs finish their folds.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		manager.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	// Initialize repository factory
	repository.InitializeFactory(database.GetDB())

	// Wire the onboarding document store when S3 is configured
	setupDocumentStore()

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 33554432, // 32 MiB, onboarding documents are the largest bodies
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("ADMIN_API_USER", "admin"): env.GetEnv("ADMIN_API_PASSWORD", ""),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app
}

func setupDocumentStore() {
	cfg, err := docstore.LoadConfig()
	if err != nil {
		log.Printf("document store config invalid, uploads disabled: %v", err)
		return
	}
	if !cfg.IsEnabled() {
		return
	}
	store, err := docstore.NewStore(cfg)
	if err != nil {
		log.Printf("document store unavailable, uploads disabled: %v", err)
		return
	}
	jobqueue.GetManager().GetService().SetDocumentStore(store, cfg)
}
