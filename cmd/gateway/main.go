package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/redisgate/redisgate/internal/api"
	"github.com/redisgate/redisgate/internal/command"
	"github.com/redisgate/redisgate/internal/config"
	"github.com/redisgate/redisgate/internal/gateway"
	"github.com/redisgate/redisgate/internal/logging"
	"github.com/redisgate/redisgate/internal/metrics"
	"github.com/redisgate/redisgate/internal/pool"
	"github.com/redisgate/redisgate/internal/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy := command.DefaultPolicy()
	if cfg.PolicyFile != "" {
		policy, err = command.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load command policy")
		}
		logger.Info().Str("path", cfg.PolicyFile).Msg("command policy loaded")
	}

	var source tenant.Source
	if cfg.ControlPlaneDatabaseURL != "" {
		cpPool, err := tenant.NewControlPlanePool(ctx, cfg.ControlPlaneDatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to control-plane database")
		}
		defer cpPool.Close()
		metrics.RegisterControlPlanePoolMetrics(cpPool)
		source = &tenant.PGSource{Pool: cpPool}
		logger.Info().Msg("using control-plane database tenant source")
	} else {
		source = &tenant.FileSource{Path: cfg.TenantFile}
		logger.Info().Str("path", cfg.TenantFile).Msg("using file tenant source")
	}

	table := tenant.NewTable()
	metrics.RegisterTenantTableSize(table.Len)

	pools := pool.NewManager(pool.Config{
		MinIdle:          cfg.PoolMinIdle,
		MaxActive:        cfg.PoolMaxActive,
		AcquireTimeout:   cfg.PoolAcquireTimeout,
		DialTimeout:      cfg.PoolDialTimeout,
		DialRetries:      cfg.PoolDialRetries,
		DialBackoff:      cfg.PoolDialBackoff,
		IdleTimeout:      cfg.PoolIdleTimeout,
		EvictionInterval: cfg.PoolEvictionInterval,
	}, logger)
	defer pools.Close()
	table.OnEvict(pools.CloseInstance)

	dispatcher := gateway.NewDispatcher(table, pools, cfg.CommandTimeout, logger)
	srv := api.NewServer(logger, dispatcher, policy, table)

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	refresher := tenant.NewRefresher(table, source, cfg.TenantRefreshInterval, logger)
	group.Go(func() error {
		return refresher.Run(groupCtx)
	})

	group.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting gateway server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	var metricsServer *http.Server
	if cfg.MetricsListenAddr != "" {
		metricsServer = metrics.NewServer(cfg.MetricsListenAddr)
		group.Go(func() error {
			logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info().Msg("shutting down gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if metricsServer != nil {
			metricsServer.Shutdown(shutdownCtx)
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("gateway failed")
	}
}
