package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/coursepass/coursepass/app/controllers"
	"github.com/coursepass/coursepass/internal/pkg/cache"
	"github.com/coursepass/coursepass/internal/pkg/config"
	"github.com/coursepass/coursepass/internal/pkg/database"
	"github.com/coursepass/coursepass/internal/pkg/env"
	"github.com/coursepass/coursepass/internal/pkg/ledger"
	"github.com/coursepass/coursepass/internal/pkg/reconciler"
	"github.com/coursepass/coursepass/internal/pkg/report"
	"github.com/coursepass/coursepass/internal/pkg/router"
	"github.com/coursepass/coursepass/internal/pkg/telegram"
	"github.com/coursepass/coursepass/internal/pkg/webhook"
)

func main() {
	env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	database.SetupDatabase()
	cache.SetupCache()

	app, manager := newApplication(cfg)
	manager.Start()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("Shutting down...")
		manager.Stop()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	if err := app.Listen(fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort)); err != nil {
		log.Fatal(err)
	}
}

func newApplication(cfg *config.Config) (*fiber.App, *reconciler.Manager) {
	ledgerService := ledger.NewServiceFromDB(database.GetDB())
	bot := telegram.NewClient(cfg.BotToken)
	reporter := report.NewAdminReporter(cfg, bot)

	processor := webhook.NewProcessor(cfg, ledgerService)
	rec := reconciler.New(cfg, ledgerService, bot, reporter)
	manager := reconciler.NewManager(rec, cfg.SweepInterval)

	app := fiber.New(fiber.Config{
		AppName:   "coursepass",
		BodyLimit: 1 << 20,
	})
	app.Use(recover.New(), logger.New())

	webhookController := controllers.NewWebhookController(cfg, processor, bot, reporter)
	adminController := controllers.NewAdminController(manager)
	router.InstallRouter(app, cfg, webhookController, adminController)

	return app, manager
}
