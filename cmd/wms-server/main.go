package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/gee-wms/internal/cache/redisstore"
	"github.com/mohammed-shakir/gee-wms/internal/compositor"
	"github.com/mohammed-shakir/gee-wms/internal/core/config"
	"github.com/mohammed-shakir/gee-wms/internal/core/health"
	"github.com/mohammed-shakir/gee-wms/internal/core/httpclient"
	"github.com/mohammed-shakir/gee-wms/internal/core/observability"
	"github.com/mohammed-shakir/gee-wms/internal/core/server"
	"github.com/mohammed-shakir/gee-wms/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/gee-wms/internal/layers"
	"github.com/mohammed-shakir/gee-wms/internal/logger"
	"github.com/mohammed-shakir/gee-wms/internal/metrics"
	"github.com/mohammed-shakir/gee-wms/internal/wms"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// overriding listen address via flag
	addrFlag := flag.String("addr", "", "listen address")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zl := logger.Build(logger.Config{Level: "error", Service: "gee-wms"}, os.Stderr)
		zl.Error().Err(err).Msg("invalid configuration")
		return 2
	}
	if *addrFlag != "" {
		cfg.Addr = strings.TrimSpace(*addrFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "gee-wms",
		Component: "server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	var deps server.Deps
	if cfg.MetricsEnabled {
		p := metrics.Init(metrics.Config{Enabled: true, Build: metrics.BuildInfoFromEnv(Version)})
		observability.Init(p.Registerer(), true)
		deps.Metrics = p.Handler()
		deps.MetricsPath = p.Path()
	} else {
		observability.Init(nil, false)
	}
	observability.ExposeBuildInfo(Version)

	appLog.Info("starting wms adapter",
		"addr", cfg.Addr,
		"version", Version,
		"backend", cfg.BackendURL,
		"redis", cfg.Redis.Enabled,
		"invalidation", cfg.Invalidation.Enabled)
	if cfg.BackendURL == "" {
		appLog.Warn("BACKEND_URL not set, backend is taken from the request Host header")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.NewOutbound(httpclient.Options{
		InsecureSkipVerify: cfg.BackendTLSInsecure,
		Timeout:            cfg.TileFetchTimeout,
		MaxConnsPerHost:    cfg.TileFetchWorkers * 2,
	})

	deps.Checks = map[string]health.Checker{}
	regOpts := layers.Options{
		TTL:             cfg.RegistryTTL,
		Size:            cfg.RegistrySize,
		FetchTimeout:    cfg.TileFetchTimeout,
		SharedOpTimeout: cfg.Redis.OpTimeout,
	}
	if cfg.Redis.Enabled {
		rc, err := redisstore.New(ctx, cfg.Redis.Addr,
			redisstore.WithReadTimeout(cfg.Redis.OpTimeout),
			redisstore.WithWriteTimeout(cfg.Redis.OpTimeout))
		if err != nil {
			appLog.Error("redis unavailable", "addr", cfg.Redis.Addr, "err", err)
			return 1
		}
		defer func() { _ = rc.Close() }()
		regOpts.Shared = rc
		deps.Checks["redis"] = rc
	}

	registry := layers.NewRegistry(appLog, httpClient, regOpts)
	comp := compositor.New(appLog, httpClient, compositor.Options{
		Workers:     cfg.TileFetchWorkers,
		TileTimeout: cfg.TileFetchTimeout,
		MaxTiles:    cfg.MaxTilesPerRequest,
	})
	deps.WMS = wms.NewDispatcher(appLog, registry, comp, wms.Options{
		Title:     cfg.ServiceTitle,
		StrictCRS: cfg.StrictCRS,
		MaxWidth:  cfg.MaxWidth,
		MaxHeight: cfg.MaxHeight,
	})
	deps.Invalidator = registry

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Invalidation.Enabled {
		kcfg := kafkaconsumer.NewConfig(cfg.Invalidation.Brokers, cfg.Invalidation.Topic, cfg.Invalidation.GroupID)
		kzl := logger.Build(logger.Config{
			Level:     cfg.LogLevel,
			Console:   cfg.LogConsole,
			Service:   "gee-wms",
			Component: "kafka_consumer",
		}, os.Stdout)
		consumer := kafkaconsumer.New(kcfg, appLog, &kzl, registry)
		deps.Checks["kafka"] = consumer
		g.Go(func() error { return consumer.Start(gctx) })
	}
	g.Go(func() error { return server.Run(gctx, cfg, appLog, deps) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
