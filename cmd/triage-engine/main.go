package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackerman-thebest/mail-mind-sub001/internal/adapters/spool"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/classifier"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/config"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/core"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/di"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/dispatch"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/pool"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	cfg *config.Config,
	inferencePool *pool.Pool,
	dispatcher *dispatch.Dispatcher,
	priorityClassifier *classifier.Classifier,
	profileStore core.ProfileStore,
) error {
	defer logger.Sync()

	batchCfg, err := cfg.GetBatch()
	if err != nil {
		return err
	}
	spoolCfg, err := cfg.GetSpool()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bring up the inference pool; an unreachable backend is fatal here
	if err := inferencePool.Initialize(ctx); err != nil {
		logger.Error("Failed to initialize inference pool", zap.Error(err))
		return err
	}

	intake, err := spool.New(spoolCfg.Dir, spoolCfg.ProcessedDir, spoolCfg.FailedDir, logger)
	if err != nil {
		logger.Error("Failed to open spool", zap.Error(err))
		return err
	}

	stats := inferencePool.Stats()
	logger.Info("Triage engine ready",
		zap.Int("pool_total", stats.Total),
		zap.Int("pool_idle", stats.Idle),
		zap.String("spool_dir", spoolCfg.Dir),
		zap.Duration("poll_interval", spoolCfg.PollInterval))

	if report, err := priorityClassifier.GetClassificationAccuracy(ctx, 30); err == nil {
		logger.Info("Classification accuracy over trailing 30 days",
			zap.Int("classified", report.TotalClassified),
			zap.Int("corrected", report.TotalCorrected),
			zap.Float64("accuracy_pct", report.AccuracyPercentage),
			zap.Bool("target_met", report.TargetMet),
			zap.String("trend", report.Trend))
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(spoolCfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			logger.Info("Shutting down...")
			cancel()
			inferencePool.Stop()
			if stopper, ok := profileStore.(interface{ Stop() }); ok {
				stopper.Stop()
			}
			logger.Info("Shutdown complete")
			return nil
		case <-ticker.C:
			processSpool(ctx, intake, dispatcher, batchCfg, logger)
		}
	}
}

// processSpool drains the spool once: scan, dispatch as one batch,
// archive each message by its outcome
func processSpool(
	ctx context.Context,
	intake *spool.Spool,
	dispatcher *dispatch.Dispatcher,
	batchCfg config.BatchConfig,
	logger *zap.Logger,
) {
	emails, paths, err := intake.Scan()
	if err != nil {
		logger.Error("Spool scan failed", zap.Error(err))
		return
	}
	if len(emails) == 0 {
		return
	}

	notifier := dispatch.NewProgressNotifier(batchCfg.ProgressBuffer)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for u := range notifier.Updates() {
			logger.Debug("Batch progress",
				zap.Int("done", u.Done), zap.Int("total", u.Total))
		}
	}()

	batch, err := dispatcher.ProcessBatch(ctx, emails, batchCfg.ItemTimeout, notifier.Func())
	notifier.Close()
	<-drained
	if err != nil {
		logger.Error("Batch rejected", zap.Error(err))
		return
	}

	for i, item := range batch.Results {
		ok := item.Status == core.ItemSuccess
		if ok {
			logger.Info("Email triaged",
				zap.String("message_id", item.ItemID),
				zap.String("priority", item.Result.Priority.String()),
				zap.String("base_priority", item.Result.BasePriority.String()),
				zap.Float64("confidence", item.Result.Confidence),
				zap.Bool("vip", item.Result.VIPApplied))
		} else {
			logger.Warn("Email triage failed",
				zap.String("message_id", item.ItemID),
				zap.Bool("timeout", item.Timeout),
				zap.String("error", item.Error))
		}
		if err := intake.Archive(paths[i], ok); err != nil {
			logger.Error("Failed to archive spool file",
				zap.String("file", paths[i]), zap.Error(err))
		}
	}

	logger.Info("Spool batch complete",
		zap.Int("total", batch.Total),
		zap.Int("success", batch.Success),
		zap.Int("failed", batch.Failed),
		zap.Duration("elapsed", batch.Elapsed),
		zap.Float64("items_per_minute", batch.Throughput))
}
