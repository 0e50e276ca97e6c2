package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/coursepass/coursepass/internal/pkg/cache"
	"github.com/coursepass/coursepass/internal/pkg/config"
	"github.com/coursepass/coursepass/internal/pkg/database"
	"github.com/coursepass/coursepass/internal/pkg/env"
	"github.com/coursepass/coursepass/internal/pkg/ledger"
	"github.com/coursepass/coursepass/internal/pkg/reconciler"
	"github.com/coursepass/coursepass/internal/pkg/report"
	"github.com/coursepass/coursepass/internal/pkg/telegram"
)

// Runs exactly one reconciliation sweep and prints its summary. Meant for
// cron setups and operators who want a sweep outside the service interval.
func main() {
	env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	database.SetupDatabase()
	cache.SetupCache()

	ledgerService := ledger.NewServiceFromDB(database.GetDB())
	bot := telegram.NewClient(cfg.BotToken)
	reporter := report.NewAdminReporter(cfg, bot)
	rec := reconciler.New(cfg, ledgerService, bot, reporter)
	manager := reconciler.NewManager(rec, cfg.SweepInterval)

	summary, err := manager.RunLocked(context.Background(), time.Now())
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(summary)
}
