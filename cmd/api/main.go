package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/adapters/bokun"
	server "github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/adapters/http_server"
	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/adapters/observability"
	redisad "github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/adapters/redis"
	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/app"
	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/shared"
	mysqlrepo "github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	syncSvc := buildSyncService(cfg, repo, cache)
	q := app.NewQueryService(repo, cache, cfg.CacheTTL, nil)

	// http
	srv := server.New()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Sync: syncSvc, Q: q})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return runPeriodicSync(ctx, syncSvc, cfg.SyncInterval)
	})
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func buildSyncService(cfg shared.Config, repo *mysqlrepo.Repo, cache *redisad.Cache) *app.SyncService {
	enabled := cfg.SyncEnabled && cfg.CredentialsPresent()
	if !enabled {
		log.Warn().Msg("booking sync disabled")
		return app.NewSyncService(nil, nil, nil, repo, cache, false, cfg.WindowDays, nil)
	}

	limiter := bokun.NewWindowLimiter(cfg.RateCeiling, time.Minute, time.Now)
	client, err := bokun.New(cfg.BokunBase, cfg.BokunAccessKey, cfg.BokunSecretKey, limiter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Bokun client")
	}
	strategy := bokun.NewSearchStrategy(client)
	tf := app.NewTransformer(client, cache, int(cfg.CacheTTL.Seconds()))
	rec := app.NewReconciler(repo, nil)
	return app.NewSyncService(strategy, tf, rec, repo, cache, true, cfg.WindowDays, nil)
}

func runPeriodicSync(ctx context.Context, svc *app.SyncService, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			res, err := svc.Run(ctx, time.Time{}, time.Time{})
			if err != nil {
				log.Warn().Err(err).Msg("periodic sync failed")
				continue
			}
			log.Info().Int("synced", res.Synced).Int("total", res.Total).
				Int("errors", len(res.Errors)).Msg("periodic sync ok")
		}
	}
}
