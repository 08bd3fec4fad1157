// cmd/historian/main.go pops closed-round records from Redis and persists
// them to PostgreSQL.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/spyfall/internal/cache"
	"github.com/jason-s-yu/spyfall/internal/config"
	"github.com/jason-s-yu/spyfall/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := cfg.Logger()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.RedisAddr == "" || cfg.HistoryDatabaseURL == "" {
		logger.Fatal("REDIS_ADDR and HISTORY_DATABASE_URL are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatal(err)
	}
	defer rdb.Close()

	pool, err := pgxpool.New(ctx, cfg.HistoryDatabaseURL)
	if err != nil {
		logger.Fatalf("unable to create connection pool: %v", err)
	}
	defer pool.Close()

	sink, err := historian.NewPostgresSink(ctx, pool)
	if err != nil {
		logger.Fatal(err)
	}

	svc := historian.NewService(rdb, cfg.HistoryQueue, sink, cfg.HistoryBatchSize, cfg.HistoryFlushInterval, logrus.NewEntry(logger))
	svc.Run(ctx)
	logger.Info("historian shutdown complete")
}
