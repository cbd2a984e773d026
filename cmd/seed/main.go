package main

import (
	"context"
	"log"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/shopspring/decimal"

	"github.com/costledger/costledger-api/internal/config"
	"github.com/costledger/costledger-api/internal/database"
	"github.com/costledger/costledger-api/internal/jobs"
	"github.com/costledger/costledger-api/internal/repository"
	"github.com/costledger/costledger-api/internal/services"
	"github.com/costledger/costledger-api/pkg/logger"
)

// Seeds a handful of approved budgets so a fresh environment has pairs to
// write work orders and certificates against. Safe to re-run: budgets are
// upserted through the same guarded path the API uses.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Setup(cfg.Environment)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	repos := repository.NewRepositories(db)
	worker := jobs.NewWorker(1)
	svcs := services.NewServices(db, repos, cfg, worker)

	budgets := []struct {
		projectID string
		costCode  string
		amount    string
	}{
		{"PRJ-DEMO", "CIVIL-001", "2500000.00"},
		{"PRJ-DEMO", "ELEC-001", "800000.00"},
		{"PRJ-DEMO", "PLUMB-001", "450000.00"},
	}

	ctx := context.Background()
	for _, b := range budgets {
		amount, err := decimal.NewFromString(b.amount)
		if err != nil {
			logger.Error("Invalid seed amount", "amount", b.amount, "error", err)
			os.Exit(1)
		}
		out, err := svcs.Ledger.UpdateBudget(ctx, b.projectID, b.costCode, amount, "seed", "")
		if err != nil {
			logger.Error("Failed to seed budget",
				"project_id", b.projectID, "cost_code", b.costCode, "error", err)
			os.Exit(1)
		}
		logger.Info("Seeded budget",
			"project_id", b.projectID, "cost_code", b.costCode, "amount", b.amount,
			"operation_id", out.OperationID)
	}

	// Let the outbox worker flush event and audit writes before exiting.
	time.Sleep(500 * time.Millisecond)
	worker.Shutdown()
	logger.Info("Seed complete", "budgets", len(budgets))
}
