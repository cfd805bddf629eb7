package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"dealhound/pkg/api"
	"dealhound/pkg/baseline"
	"dealhound/pkg/cache"
	"dealhound/pkg/config"
	"dealhound/pkg/counters"
	"dealhound/pkg/deal"
	"dealhound/pkg/fetcher"
	"dealhound/pkg/logger"
	"dealhound/pkg/notify"
	"dealhound/pkg/orchestrator"
	"dealhound/pkg/rates"
	"dealhound/pkg/sources"
	"dealhound/pkg/sources/avito"
	"dealhound/pkg/sources/kufar"
	"dealhound/pkg/store"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.JSONLogs)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connection failed")
		}
		st = pg
	} else {
		log.Warn().Msg("DATABASE_URL not set, using in-memory store; state is lost on restart")
		st = store.NewMemory()
	}
	defer st.Close()

	cnt := counters.New(cfg.RedisAddr, cfg.RedisPassword, log)
	defer cnt.Close()
	if cnt.Enabled() {
		if err := cnt.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, counters degraded to no-op")
		}
	}

	var pageCache *cache.Cache
	if cfg.CachePath != "" {
		c, err := cache.New(cfg.CachePath, cfg.CacheTTL)
		if err != nil {
			log.Warn().Err(err).Msg("page cache unavailable, fetching without cache")
		} else {
			pageCache = c
			defer c.Close()
			go prunePages(ctx, c, cfg.CacheTTL, log)
		}
	}

	fetch := fetcher.New(cfg.FetchTimeout, cfg.FetchRetries, cfg.BackoffBase, pageCache, log)

	var renderer orchestrator.Renderer
	if cfg.RenderFallback {
		renderer = fetcher.NewRenderer(cfg.RenderTimeout, log)
	}

	markets := []sources.Marketplace{avito.New(), kufar.New()}

	notifiers := map[string]notify.Notifier{}
	for _, m := range markets {
		token, ok := cfg.BotTokens[m.Name()]
		if !ok || token == "" {
			log.Warn().Str("source", m.Name()).Msg("no bot token configured, deals for this source are logged only")
			continue
		}
		notifiers[m.Name()] = notify.NewTelegram(token, log)
	}

	conv := rates.NewProvider(log)
	calc := baseline.NewCalculator(st, cfg.MedianWindowDays, cfg.MedianMaxSamples, log)

	orch := orchestrator.New(st, calc, fetch, renderer, markets, notifiers, conv, cnt,
		orchestrator.Options{
			PollInterval:    cfg.PollInterval,
			PagesPerRun:     cfg.PagesPerRun,
			RequestDelay:    cfg.RequestDelay,
			Thresholds:      deal.Thresholds{Percent: cfg.DealPercent, Absolute: cfg.AbsoluteDiscounts},
			RenderFallback:  cfg.RenderFallback,
			RefreshCronSpec: cfg.RefreshCronSpec,
		}, log)

	admin := api.NewServer(orch, cnt, "./", log)
	go func() {
		if err := admin.Serve(ctx, cfg.AdminAddr); err != nil {
			log.Error().Err(err).Msg("admin api failed")
			stop()
		}
	}()

	log.Info().
		Int("sources", len(markets)).
		Dur("poll_interval", cfg.PollInterval).
		Msg("dealhound starting")

	if err := orch.Run(ctx); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("orchestrator stopped")
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}

// prunePages clears expired cache rows once per TTL period so the sqlite file
// does not grow across long runs.
func prunePages(ctx context.Context, c *cache.Cache, ttl time.Duration, log zerolog.Logger) {
	t := time.NewTicker(ttl)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := c.Prune(); err != nil {
				log.Warn().Err(err).Msg("page cache prune failed")
			}
		}
	}
}
