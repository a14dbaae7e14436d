package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"vision-qc/config"
	"vision-qc/internal/container"
	"vision-qc/internal/domain/entity"
	"vision-qc/internal/domain/port"
	"vision-qc/internal/infrastructure/clock"
	"vision-qc/internal/infrastructure/imagestore"
	"vision-qc/internal/infrastructure/metrics"
	"vision-qc/internal/infrastructure/storage"
	"vision-qc/internal/infrastructure/trainer"
	"vision-qc/internal/infrastructure/vision"
	"vision-qc/internal/logger"
)

// application собранные зависимости одного запуска.
type application struct {
	container *container.Container
	registry  *prometheus.Registry
	log       *zap.Logger

	closers []func() error
}

func bootstrap(ctx context.Context, cfg *config.Config) (*application, error) {
	log, err := logger.New(logger.Config{
		Environment: cfg.Environment,
		LogLevel:    cfg.LogLevel,
		ServiceName: "vision-qc",
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	a := &application{log: log, closers: []func() error{log.Sync}}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	for _, dir := range []string{cfg.RawDir, cfg.DatasetDir, cfg.ModelsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	store, err := storage.OpenSQLite(cfg.DBPath, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	images, err := imagestore.NewFileStore(cfg.RawDir)
	if err != nil {
		return nil, err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.New(a.registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	// Без модели сервис работает: ревью, дрейф и дообучение детектор не используют.
	var detector port.DefectDetector
	if d, err := vision.NewGoCVDetector(cfg.ModelPath, cfg.Labels); err != nil {
		log.Warn("detector disabled", zap.String("model", cfg.ModelPath), zap.Error(err))
	} else {
		detector = d
		a.closers = append(a.closers, d.Close)
	}

	a.container = container.New(container.Deps{
		Store:    store,
		Users:    storage.NewMemoryUserRepository(),
		Images:   images,
		Detector: detector,
		Trainer:  trainer.NewYOLOTrainer(cfg.YOLOBin, cfg.BaseWeights, cfg.TrainDevice, cfg.RunsDir, log),
		Clock:    clock.System{},
		Metrics:  collector,
		Log:      log,
	}, container.Settings{
		DefaultThreshold: cfg.DefaultThreshold,
		Labels:           cfg.Labels,
		Drift:            cfg.Drift,
		Train:            entity.TrainParams{Epochs: cfg.TrainEpochs, ImageSize: cfg.TrainImageSize},
		DatasetDir:       cfg.DatasetDir,
		ArtifactPath:     cfg.ArtifactPath(),
	})

	if err := a.container.SeedDefaults(ctx); err != nil {
		return nil, fmt.Errorf("seed config: %w", err)
	}

	ok = true
	return a, nil
}

// Close освобождает ресурсы в обратном порядке.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}
