package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/marketguard/pkg/lifecycle/xrun"
	"github.com/omeyang/marketguard/pkg/observability/xlog"
	"github.com/omeyang/marketguard/pkg/observability/xmetrics"
	"github.com/omeyang/marketguard/pkg/resilience/xlimit"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "启动网关",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "覆盖 ratelimit.store.endpoint",
				Sources: cli.EnvVars("MARKETGUARD_REDIS_URL"),
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "监视配置文件并热更新限流策略",
				Value: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd.String("config"))
			if err != nil {
				return err
			}
			if u := cmd.String("redis-url"); u != "" {
				cfg.limit.Store.Endpoint = u
			}
			return serve(ctx, cfg, cmd.Bool("watch"))
		},
	}
}

func newLogger(cfg logConfig) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetOutput(os.Stderr).
		SetLevelString(cfg.Level).
		SetFormat(cfg.Format).
		SetEnrich(true).
		SetAttrs(slog.String("service", "marketguard"))
	if cfg.File != "" {
		b = b.SetFile(cfg.File, cfg.Rotation)
	}
	logger, cleanup, err := b.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: log: %w", errConfig, err)
	}
	return logger, cleanup, nil
}

func serve(ctx context.Context, cfg *loadedConfig, watch bool) (err error) {
	logger, closeLog, err := newLogger(cfg.app.Log)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeLog()) }()
	xlog.SetDefault(logger)

	tel, err := setupTelemetry(ctx, cfg.app.Telemetry)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, tel.shutdown(context.WithoutCancel(ctx))) }()

	observer, err := xmetrics.NewOTelObserver(
		xmetrics.WithTracerProvider(tel.tracerProvider),
		xmetrics.WithMeterProvider(tel.meterProvider),
	)
	if err != nil {
		return err
	}

	limiter, err := xlimit.New(ctx, cfg.limit,
		xlimit.WithLogger(logger.With(xlog.Component("xlimit"))),
		xlimit.WithObserver(observer),
		xlimit.WithMeterProvider(tel.meterProvider),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}
	defer func() { err = errors.Join(err, ignoreClosed(limiter.Close(context.WithoutCancel(ctx)))) }()

	server := &http.Server{
		Addr:              cfg.app.Server.Addr,
		Handler:           instrument(newRouter(limiter, logger), tel),
		ReadHeaderTimeout: cfg.app.Server.ReadTimeout,
	}

	services := []xrun.Service{{
		Name: "http",
		Run:  xrun.HTTPServer(server, cfg.app.Server.ShutdownTimeout),
	}}
	if watch {
		w, werr := xlimit.WatchConfig(cfg.source, xlimit.DefaultConfigPath, limiter, logger)
		if werr != nil {
			logger.Warn(ctx, "config watch disabled", xlog.Err(werr))
		} else {
			services = append(services, xrun.Service{Name: "config-watch", Run: w.Run})
		}
	}

	logger.Info(ctx, "marketguard starting",
		slog.String("addr", server.Addr),
		slog.String("store", limiter.StoreType()),
		slog.String("version", Version),
	)

	err = xrun.Run(ctx, []xrun.Option{xrun.WithLogger(logger), xrun.WithName("marketguard")}, services...)
	if errors.Is(err, xrun.ErrSignal) {
		logger.Info(ctx, "marketguard stopped", xlog.Err(err))
		return nil
	}
	return err
}

func ignoreClosed(err error) error {
	if errors.Is(err, xlimit.ErrLimiterClosed) {
		return nil
	}
	return err
}
