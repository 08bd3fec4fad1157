// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/spyfall/internal/auth"
	"github.com/jason-s-yu/spyfall/internal/bot"
	"github.com/jason-s-yu/spyfall/internal/cache"
	"github.com/jason-s-yu/spyfall/internal/config"
	"github.com/jason-s-yu/spyfall/internal/game"
	"github.com/jason-s-yu/spyfall/internal/handlers"
	"github.com/jason-s-yu/spyfall/internal/lobby"
	"github.com/jason-s-yu/spyfall/internal/locations"
	"github.com/jason-s-yu/spyfall/internal/middleware"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ds, err := loadDataset(ctx, cfg)
	if err != nil {
		logger.Fatalf("loading locations: %v", err)
	}
	logger.Infof("loaded %d themes", len(ds.Themes()))

	decider := bot.NewOpenAIDecider(bot.OpenAIConfig{
		APIKey:   cfg.OpenAIAPIKey,
		Model:    cfg.OpenAIModel,
		BaseURL:  cfg.OpenAIBaseURL,
		MaxTries: cfg.DecisionRetries,
		Backoff:  cfg.DecisionBackoff,
	})
	if _, off := decider.(bot.Unavailable); off {
		logger.Warn("OPENAI_API_KEY not set; distractors and bot votes use local fallbacks")
	}

	var recorder game.Recorder
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Warnf("round history disabled: %v", err)
		} else {
			defer rdb.Close()
			recorder = cache.NewRedisPublisher(rdb, cfg.HistoryQueue)
		}
	}

	signer, err := auth.NewSigner(cfg.SessionTTL)
	if err != nil {
		logger.Fatalf("session signer: %v", err)
	}

	entry := logrus.NewEntry(logger)
	reg := lobby.NewRegistry(signer, func(code string) *game.Game {
		return game.New(code, game.Config{
			Dataset:         ds,
			Decider:         decider,
			Recorder:        recorder,
			Logger:          entry,
			DecisionTimeout: cfg.DecisionTimeout,
		})
	}, entry)
	go reg.Run(ctx, cfg.SweepInterval, cfg.ReapAfter)

	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(logger)
	mux.Handle("/ws", logged(handlers.RoomWSHandler(logger, reg)))
	mux.Handle("/themes", logged(handlers.ThemesHandler(ds)))
	mux.Handle("/healthz", handlers.HealthHandler(reg))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("Running on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
}

// loadDataset reads locations from Postgres when configured, else the
// embedded set.
func loadDataset(ctx context.Context, cfg config.Config) (*locations.Dataset, error) {
	if cfg.LocationsDatabaseURL == "" {
		return locations.LoadEmbedded()
	}
	pool, err := pgxpool.New(ctx, cfg.LocationsDatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to locations database: %w", err)
	}
	defer pool.Close()
	return locations.LoadPostgres(ctx, pool)
}
