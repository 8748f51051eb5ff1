package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/ibaf-upi/ibaf-api/pkg/config"
	"github.com/ibaf-upi/ibaf-api/pkg/database"
	"github.com/ibaf-upi/ibaf-api/pkg/logger"
)

func main() {
	flag.Usage = func() {
		log.Println("usage: migrator [up|down|status]")
	}
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	switch command {
	case "up":
		err = database.Migrate(ctx, db.DB)
	case "down":
		err = database.Rollback(ctx, db.DB)
	case "status":
		err = database.Status(ctx, db.DB)
	default:
		flag.Usage()
		logr.Fatal("unknown command", zap.String("command", command))
	}
	if err != nil {
		logr.Fatal("migration failed", zap.String("command", command), zap.Error(err))
	}
	logr.Info("migration finished", zap.String("command", command))
}
