package main

import (
	"context"
	"database/sql"
	"flag"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/adapters/bokun"
	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/adapters/observability"
	redisad "github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/adapters/redis"
	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/app"
	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/shared"
	mysqlrepo "github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/storage/mysql"
)

func main() {
	fromFlag := flag.String("from", "", "window start, YYYY-MM-DD (default today)")
	toFlag := flag.String("to", "", "window end, YYYY-MM-DD (default start + window days)")
	flag.Parse()

	ctx := context.Background()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Str("base", cfg.BokunBase).
		Int("window_days", cfg.WindowDays).
		Msg("syncer starting")

	if !cfg.SyncEnabled || !cfg.CredentialsPresent() {
		log.Fatal().Msg("sync disabled or Bokun credentials missing")
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	limiter := bokun.NewWindowLimiter(cfg.RateCeiling, time.Minute, time.Now)
	client, err := bokun.New(cfg.BokunBase, cfg.BokunAccessKey, cfg.BokunSecretKey, limiter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Bokun client")
	}
	strategy := bokun.NewSearchStrategy(client)
	tf := app.NewTransformer(client, cache, int(cfg.CacheTTL.Seconds()))
	rec := app.NewReconciler(repo, nil)
	svc := app.NewSyncService(strategy, tf, rec, repo, cache, true, cfg.WindowDays, nil)

	from := parseDate(*fromFlag)
	to := parseDate(*toFlag)

	res, err := svc.Run(ctx, from, to)
	if err != nil {
		log.Fatal().Err(err).Msg("sync run failed")
	}
	for _, e := range res.Errors {
		log.Warn().Str("detail", e).Msg("booking skipped")
	}
	log.Info().Int("synced", res.Synced).Int("total", res.Total).
		Int("errors", len(res.Errors)).Msg("sync completed")
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		log.Fatal().Str("value", s).Msg("dates must be YYYY-MM-DD")
	}
	return t
}
