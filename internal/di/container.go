package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/hackerman-thebest/mail-mind-sub001/internal/classifier"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/config"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/core"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/dispatch"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/factory"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/logging"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/pool"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewBackendFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register backend dialer
	if err := container.Provide(func(f *factory.BackendFactory) (core.BackendDialer, error) {
		return f.CreateDialer()
	}); err != nil {
		return nil, err
	}

	// Register profile store
	if err := container.Provide(func(f *factory.StoreFactory) (core.ProfileStore, error) {
		return f.CreateProfileStore()
	}); err != nil {
		return nil, err
	}

	// Register inference pool
	if err := container.Provide(func(cfg *config.Config, dialer core.BackendDialer, logger *zap.Logger) (*pool.Pool, error) {
		poolCfg, err := cfg.GetPool()
		if err != nil {
			return nil, err
		}
		return pool.New(dialer, poolCfg.Size, logger)
	}); err != nil {
		return nil, err
	}

	// Register triage service
	if err := container.Provide(func(
		f *factory.BackendFactory,
		tp *utils.TextProcessor,
		logger *zap.Logger,
	) *core.TriageService {
		return core.NewTriageService(logger, tp, f.ModelName(), f.GenerateOptions(), f.MaxBodySize())
	}); err != nil {
		return nil, err
	}

	// Register classifier
	if err := container.Provide(func(cfg *config.Config, store core.ProfileStore, logger *zap.Logger) *classifier.Classifier {
		priorityCfg := cfg.GetPriority()
		return classifier.New(store, classifier.Config{
			UpperThreshold: priorityCfg.UpperThreshold,
			LowerThreshold: priorityCfg.LowerThreshold,
			BaseRate:       priorityCfg.BaseRate,
			AccuracyTarget: priorityCfg.AccuracyTarget,
		}, logger)
	}); err != nil {
		return nil, err
	}

	// Register per-item pipeline
	if err := container.Provide(classifier.NewPipeline); err != nil {
		return nil, err
	}
	if err := container.Provide(func(p *classifier.Pipeline) dispatch.ItemProcessor {
		return p
	}); err != nil {
		return nil, err
	}

	// Register batch dispatcher
	if err := container.Provide(func(
		cfg *config.Config,
		p *pool.Pool,
		processor dispatch.ItemProcessor,
		logger *zap.Logger,
	) (*dispatch.Dispatcher, error) {
		poolCfg, err := cfg.GetPool()
		if err != nil {
			return nil, err
		}
		return dispatch.NewDispatcher(p, processor, poolCfg.AcquireTimeout, logger), nil
	}); err != nil {
		return nil, err
	}

	return container, nil
}
