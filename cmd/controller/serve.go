package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/codec"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/config"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/engine"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/httpapi"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/logging"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/metrics"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/publish"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/state"
)

type serveOptions struct {
	grpcAddr         string
	httpAddr         string
	redisAddr        string
	redisPrefix      string
	snapshotInterval time.Duration
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve engines over gRPC and HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, root, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.grpcAddr, "grpc-addr", envOr("GATEKEEPER_GRPC_ADDR", ":50051"), "gRPC listen address")
	f.StringVar(&opts.httpAddr, "http-addr", envOr("GATEKEEPER_HTTP_ADDR", ":8080"), "admin HTTP listen address")
	f.StringVar(&opts.redisAddr, "redis-addr", envOr("REDIS_ADDR", ""), "Redis address for event fan-out (empty disables)")
	f.StringVar(&opts.redisPrefix, "redis-prefix", "gatekeeper", "Redis channel prefix")
	f.DurationVar(&opts.snapshotInterval, "snapshot-interval", 30*time.Second, "how often engine snapshots are saved")
	return cmd
}

// #region serve
func runServe(ctx context.Context, root *rootOptions, opts *serveOptions) error {
	logger := log.Logger

	cfg, err := config.Load(root.configPath)
	if err != nil {
		return err
	}

	store, err := state.NewStore(root.dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	reg, err := engine.NewRegistry(cfg, engine.WithLogger(logger))
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mtx, err := metrics.New(promReg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	journal := logging.NewJournal(store.DB(), logger)

	var pub *publish.Publisher
	if opts.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: opts.redisAddr})
		defer rdb.Close()
		pub = publish.NewPublisher(rdb, publish.Options{Prefix: opts.redisPrefix}, logger)
	}

	reg.OnCreate(func(e *engine.Engine) {
		e.Subscribe(mtx.Listener)
		e.Subscribe(journal.Listener)
		if pub != nil {
			e.Subscribe(pub.Listener)
		}
	})

	restored, err := store.RestoreAll(reg)
	if err != nil {
		return fmt.Errorf("restore snapshots: %w", err)
	}
	if len(restored) > 0 {
		logger.Info().Strs("symbols", restored).Msg("engines restored")
	}

	lis, err := net.Listen("tcp", opts.grpcAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", opts.grpcAddr, err)
	}
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(codec.LoggingInterceptor(logger)))
	codec.RegisterDecisionServer(grpcSrv, codec.NewServer(reg, logger))
	httpSrv := httpapi.NewServer(reg, promReg, logger).WithPublisher(pub)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", opts.grpcAddr).Msg("grpc listening")
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		grpcSrv.GracefulStop()
		return nil
	})
	g.Go(func() error {
		return httpSrv.Run(ctx, opts.httpAddr)
	})
	if root.configPath != "" {
		g.Go(func() error {
			return config.Watch(ctx, root.configPath, cfg, logger, func(p engine.ConfigPatch) {
				if _, err := reg.UpdateConfig(p); err != nil {
					logger.Warn().Err(err).Msg("config reload rejected")
				}
			})
		})
	}
	if pub != nil {
		g.Go(func() error { return pub.Run(ctx) })
	}
	g.Go(func() error {
		return snapshotLoop(ctx, store, reg, opts.snapshotInterval)
	})

	err = g.Wait()
	if saveErr := store.SaveAll(reg, time.Now()); saveErr != nil {
		logger.Error().Err(saveErr).Msg("final snapshot failed")
	}
	logger.Info().Msg("controller stopped")
	return err
}

func snapshotLoop(ctx context.Context, store *state.Store, reg *engine.Registry, every time.Duration) error {
	if every <= 0 {
		return nil
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			if err := store.SaveAll(reg, now); err != nil {
				log.Warn().Err(err).Msg("snapshot failed")
			}
		}
	}
}

// #endregion serve
