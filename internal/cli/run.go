package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/zkstage/coordinator/api/zkstagepb"
	"github.com/zkstage/coordinator/internal/config"
	"github.com/zkstage/coordinator/internal/dispatcher"
	"github.com/zkstage/coordinator/internal/metrics"
	"github.com/zkstage/coordinator/internal/objectstore"
	"github.com/zkstage/coordinator/internal/persistence"
	"github.com/zkstage/coordinator/internal/recovery"
	"github.com/zkstage/coordinator/internal/server"
	"github.com/zkstage/coordinator/internal/submission"
	"github.com/zkstage/coordinator/internal/workerpool"
)

// runCoordinator loads cfg, opens every durable store, builds the worker
// pool, and serves the client-facing gRPC API plus the recovery loop until
// an interrupt signal arrives. Grounded on the teacher's runControllerNode,
// generalized from a single Controller to the Submissions/Events/Pool
// trio this engine's Dispatcher and Loop share.
func runCoordinator(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := slog.Default()

	submissions, err := persistence.OpenSubmissionStore(filepath.Join(cfg.DataDir, "submissions"))
	if err != nil {
		return fmt.Errorf("open submission store: %w", err)
	}
	defer submissions.Close()

	whitelist, err := persistence.OpenWhitelistStore(filepath.Join(cfg.DataDir, "whitelist"))
	if err != nil {
		return fmt.Errorf("open whitelist store: %w", err)
	}
	defer whitelist.Close()

	events, err := persistence.Open(filepath.Join(cfg.DataDir, "events.log"), 256, time.Second)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer events.Close()

	poolCfg, err := cfg.WorkerPoolConfig()
	if err != nil {
		return fmt.Errorf("build worker pool config: %w", err)
	}
	pool := workerpool.NewPool(poolCfg)

	objects := objectstore.NewLocal(cfg.BaseDir)
	collector := metrics.NewCollector()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.StartServer(cfg.MetricsAddr); err != nil {
				log.Error("metrics server exited", "error", err)
			}
		}()
	}

	taskTimeout := time.Duration(cfg.TaskTimeout)
	if taskTimeout == 0 {
		taskTimeout = 2 * time.Hour
	}
	dispatchCfg := dispatcher.Config{
		Submissions: submissions,
		Events:      events,
		Pool:        pool,
		Objects:     objects,
		TaskTimeout: taskTimeout,
		Metrics:     collector,
		Log:         log,
	}

	loop := recovery.New(submissions, events, pool, dispatchCfg, log)

	submitSvc := submission.New(submissions, whitelist, events, objects, cfg.FileserverURL, log)
	submitSvc.Metrics = collector

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}
	grpcServer := grpc.NewServer()
	zkstagepb.RegisterStageServiceServer(grpcServer, server.NewServer(submitSvc))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return loop.Run(egCtx) })
	eg.Go(func() error {
		log.Info("coordinator: gRPC server listening", "addr", cfg.ListenAddr)
		return grpcServer.Serve(lis)
	})
	eg.Go(func() error {
		<-egCtx.Done()
		grpcServer.GracefulStop()
		return nil
	})

	if err := eg.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("coordinator: shut down cleanly")
	return nil
}
