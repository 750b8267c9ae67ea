package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/band-algebra/internal/cache/redisstore"
	"github.com/mohammed-shakir/band-algebra/internal/cloudmask"
	"github.com/mohammed-shakir/band-algebra/internal/core/config"
	"github.com/mohammed-shakir/band-algebra/internal/core/health"
	"github.com/mohammed-shakir/band-algebra/internal/core/httpclient"
	"github.com/mohammed-shakir/band-algebra/internal/core/observability"
	"github.com/mohammed-shakir/band-algebra/internal/core/router"
	"github.com/mohammed-shakir/band-algebra/internal/core/server"
	"github.com/mohammed-shakir/band-algebra/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/band-algebra/internal/logger"
	h3mapper "github.com/mohammed-shakir/band-algebra/internal/mapper/h3"
	"github.com/mohammed-shakir/band-algebra/internal/materialize"
	"github.com/mohammed-shakir/band-algebra/internal/metrics"
	"github.com/mohammed-shakir/band-algebra/internal/platform"
	"github.com/mohammed-shakir/band-algebra/internal/scaling"
	"github.com/mohammed-shakir/band-algebra/internal/spectral"
	"github.com/mohammed-shakir/band-algebra/internal/summary"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// .env is optional
	_ = godotenv.Load()

	cfg := config.FromEnv()
	if Version != "dev" {
		cfg.Version = Version
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Service:   "band-algebra",
		Component: "server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(cfg.Version)
	appLog.Info("starting band-algebra", "addr", cfg.Addr, "version", cfg.Version, "materialize", cfg.Materialize.URL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outbound := httpclient.NewOutbound(httpclient.WithUserAgent("band-algebra/" + cfg.Version))
	ready := map[string]health.Check{}

	var rs *redisstore.Client
	if cfg.RedisAddr != "" {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		c, err := redisstore.New(pctx, cfg.RedisAddr,
			redisstore.WithPoolSize(cfg.RedisPoolSize),
			redisstore.WithMinIdleConns(cfg.RedisMinIdle),
			redisstore.WithDialTimeout(cfg.RedisDialTimeout),
			redisstore.WithReadTimeout(cfg.RedisRWTimeout),
			redisstore.WithWriteTimeout(cfg.RedisRWTimeout),
		)
		cancel()
		if err != nil {
			appLog.Error("redis init failed", "addr", cfg.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = c.Close() }()
		rs = c
		ready["redis"] = rs.Ping
	}

	var mat materialize.Client
	if cfg.Materialize.URL != "" {
		hc, err := materialize.NewHTTPClient(materialize.Config{
			Endpoint:     cfg.Materialize.URL,
			TokenURL:     cfg.Materialize.TokenURL,
			ClientID:     cfg.Materialize.ClientID,
			ClientSecret: cfg.Materialize.ClientSecret,
			Scopes:       cfg.Materialize.Scopes,
			Retries:      cfg.Materialize.Retries,
			Backoff:      cfg.Materialize.Backoff,
		}, outbound, appLog)
		if err != nil {
			appLog.Error("materialize client setup failed", "err", err)
			return 1
		}
		mat = hc
		if rs != nil {
			mat = materialize.NewCached(hc, rs, cfg.CacheTTLDefault, cfg.CacheOpTimeout, appLog)
		}
	}

	var resolver *platform.Resolver
	if mat != nil {
		resolver = platform.NewResolver(nil, mat, cfg.ResolverCacheSize, appLog)
	} else {
		resolver = platform.NewResolver(nil, nil, cfg.ResolverCacheSize, appLog)
	}

	registries := spectral.NewRegistries(cfg.Registry.URL, outbound, appLog)
	if cfg.Registry.Online && cfg.Registry.URL != "" {
		if _, err := registries.Refresh(ctx); err != nil {
			appLog.Warn("online registry unavailable, serving bundled", "err", err)
		}
	}

	normalizer, err := scaling.NewNormalizer(resolver, appLog)
	if err != nil {
		appLog.Error("scale tables failed to load", "err", err)
		return 1
	}

	mapper := h3mapper.New()
	deps := router.Deps{
		Resolver:   resolver,
		Catalog:    platform.DefaultCatalog(),
		Registries: registries,
		Indexer:    spectral.NewEngine(registries, resolver, appLog),
		Masker:     cloudmask.NewMasker(resolver, appLog),
		Normalizer: normalizer,
		Cells:      mapper,
		DefaultRes: cfg.H3Res,
	}
	if mat != nil {
		scfg := summary.DefaultConfig()
		scfg.ResMin, scfg.ResMax = cfg.H3ResMin, cfg.H3ResMax
		scfg.MaxCells = cfg.SummaryMaxCells
		scfg.Workers = cfg.SummaryMaxWorkers
		scfg.Scale = cfg.SummaryScale
		scfg.TTLFor = cfg.TTLFor
		scfg.OpTimeout = cfg.CacheOpTimeout
		if rs != nil {
			deps.Summaries = summary.New(scfg, mapper, mat, rs, appLog)
		} else {
			deps.Summaries = summary.New(scfg, mapper, mat, nil, appLog)
		}
	} else {
		appLog.Info("MATERIALIZE_URL not set, summaries disabled")
	}

	g, gctx := errgroup.WithContext(ctx)

	if strings.EqualFold(os.Getenv("METRICS_ENABLED"), "true") {
		p := metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
			Build: metrics.BuildInfo{
				Version:   cfg.Version,
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		g.Go(func() error { return p.Serve(gctx) })
	}

	if cfg.Invalidation.Enabled {
		if rs == nil {
			appLog.Error("invalidation needs REDIS_ADDR")
			return 1
		}
		kcfg := kafkaconsumer.FromEnv()
		kcfg.Enabled = true
		kcfg.Topic = cfg.Invalidation.Topic
		kcfg.GroupID = cfg.Invalidation.GroupID
		kcfg.Brokers = splitBrokers(cfg.Invalidation.Brokers)
		var refresher kafkaconsumer.RegistryRefresher
		if cfg.Registry.Online {
			refresher = registries
		}
		cons := kafkaconsumer.New(kcfg, appLog, rs, mapper, refresher, cfg.Resolutions())
		g.Go(func() error { return cons.Start(gctx) })
	}

	g.Go(func() error { return server.Run(gctx, cfg, appLog, deps, ready) })

	if err := g.Wait(); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func splitBrokers(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
