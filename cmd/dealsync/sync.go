package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hyperengineering/dealsync/internal/authority"
	"github.com/hyperengineering/dealsync/internal/cache"
	"github.com/hyperengineering/dealsync/internal/config"
	"github.com/hyperengineering/dealsync/internal/projection"
	"github.com/hyperengineering/dealsync/internal/types"
	"github.com/hyperengineering/dealsync/internal/worker"
	"github.com/spf13/cobra"
)

var syncInterval time.Duration

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a headless mirror that keeps the deal cache converged",
	Long: `Populates the local deal and stage mirror from the remote authority
and reconciles it on an interval until interrupted. Useful for keeping
a warm mirror next to an embedding host, and for smoke-testing the
authority connection.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().DurationVar(&syncInterval, "interval", 30*time.Second,
		"Reconciliation interval")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	initLogger(cfg)

	if cfg.Authority.URL == "" {
		return errors.New("DEALSYNC_AUTHORITY_URL must be set")
	}

	client := authority.NewHTTPClient(cfg.Authority.URL, cfg.Authority.APIKey,
		time.Duration(cfg.Authority.Timeout))
	deals := cache.New[types.DealView]()
	stages := cache.New[types.Stage]()
	svc := projection.New(client, deals, stages,
		cfg.Projection.FlagChunkSize, time.Duration(cfg.Projection.StalenessWindow))

	stageList, err := svc.FetchStages(ctx, true)
	if err != nil {
		return err
	}
	dealList, err := svc.FetchAllDeals(ctx)
	if err != nil {
		return err
	}
	slog.Info("mirror populated",
		"component", "sync",
		"deals", len(dealList),
		"stages", len(stageList),
	)

	coordinator := worker.NewReconcileCoordinator(svc, syncInterval)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		coordinator.Run(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	slog.Info("mirror stopped", "component", "sync")
	return nil
}
