package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/HugoFernandezz/Jaleo/internal/adapters/expo"
	"github.com/HugoFernandezz/Jaleo/internal/adapters/fourvenues"
	server "github.com/HugoFernandezz/Jaleo/internal/adapters/http_server"
	"github.com/HugoFernandezz/Jaleo/internal/adapters/legacyapi"
	"github.com/HugoFernandezz/Jaleo/internal/adapters/observability"
	redisad "github.com/HugoFernandezz/Jaleo/internal/adapters/redis"
	"github.com/HugoFernandezz/Jaleo/internal/app"
	"github.com/HugoFernandezz/Jaleo/internal/domain"
	"github.com/HugoFernandezz/Jaleo/internal/shared"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// data sources: live feed first, then the fallback chain in order
	feed := fourvenues.New(cfg.FeedBase, cfg.FeedWS, cfg.FeedKey, cfg.FeedRPS)

	var fallbacks []domain.FallbackSource
	if cfg.LocalAPIURL != "" {
		fallbacks = append(fallbacks, legacyapi.NewLocalAPI(cfg.LocalAPIURL))
	}
	if cfg.DocStoreURL != "" {
		fallbacks = append(fallbacks, legacyapi.NewDocStore(cfg.DocStoreURL, cfg.DocStoreKey))
	}

	hub := app.NewHub(feed, fallbacks...)

	// push notifications for newly seen parties, keyed off redis state
	if len(cfg.PushTokens) > 0 {
		keys := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		det := app.NewDetector(keys, expo.New(cfg.PushTokens))
		unsub, err := hub.Subscribe(context.Background(), func(snap domain.Snapshot) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := det.Process(ctx, snap); err != nil {
				log.Warn().Err(err).Msg("new-party detection failed")
			}
		})
		if err != nil {
			log.Warn().Err(err).Msg("live feed unavailable, notifications disabled")
		} else {
			defer unsub()
		}
	}

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Hub: hub, AdminKey: cfg.AdminKey})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
