package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"vision-qc/internal/domain/entity"
	"vision-qc/internal/domain/port"
)

// RetrainTrigger собирает корпус, запускает дообучение и публикует веса.
// Вызовы выполняются строго по одному.
type RetrainTrigger struct {
	curator      *CorpusCurator
	trainer      port.Trainer
	audit        *AuditTrail
	vocabulary   []string
	params       entity.TrainParams
	artifactPath string
	metrics      port.Metrics
	log          *zap.Logger

	mu sync.Mutex
}

// NewRetrainTrigger создаёт оркестратор; новые веса копируются в artifactPath.
func NewRetrainTrigger(
	curator *CorpusCurator,
	trainer port.Trainer,
	audit *AuditTrail,
	vocabulary []string,
	params entity.TrainParams,
	artifactPath string,
	metrics port.Metrics,
	log *zap.Logger,
) *RetrainTrigger {
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &RetrainTrigger{
		curator:      curator,
		trainer:      trainer,
		audit:        audit,
		vocabulary:   vocabulary,
		params:       params,
		artifactPath: artifactPath,
		metrics:      metrics,
		log:          log.Named("retrain"),
	}
}

// Retrain никогда не возвращает ошибку: любой исход описан в RetrainResult.
func (r *RetrainTrigger) Retrain(ctx context.Context) entity.RetrainResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := r.retrain(ctx)
	r.metrics.RetrainFinished(result)
	return result
}

func (r *RetrainTrigger) retrain(ctx context.Context) entity.RetrainResult {
	curation, err := r.curator.Curate(ctx, r.vocabulary)
	if err != nil {
		r.log.Error("corpus curation failed", zap.Error(err))
		return entity.RetrainResult{Message: fmt.Sprintf("corpus curation failed: %v", err)}
	}
	if curation.Insufficient {
		r.log.Info("retrain skipped", zap.String("reason", curation.Message))
		return entity.RetrainResult{Message: curation.Message}
	}
	manifest := *curation.Manifest

	start := fmt.Sprintf("Starting fine-tuning on human-reviewed data: %d images, %d labelled objects, %d epochs.",
		manifest.ImageCount, manifest.ExampleCount, r.params.Epochs)
	if _, err := r.audit.Record(ctx, entity.ActionTrainStart, nil, start); err != nil {
		r.log.Error("record train start", zap.Error(err))
		return entity.RetrainResult{Message: fmt.Sprintf("could not record training start: %v", err)}
	}

	return r.train(ctx, manifest)
}

func (r *RetrainTrigger) train(ctx context.Context, manifest entity.CorpusManifest) (result entity.RetrainResult) {
	defer func() {
		if p := recover(); p != nil {
			result = r.fail(ctx, &TrainingError{Err: fmt.Errorf("panic: %v", p)})
		}
	}()

	artifact, err := r.trainer.Fit(ctx, manifest, r.params)
	if err != nil {
		return r.fail(ctx, &TrainingError{Err: err})
	}

	if !fileExists(artifact) {
		// Обучение завершилось, но весов нет: успехом это не считаем и в журнал не пишем.
		r.log.Warn("trained but artifact missing", zap.String("artifact", artifact))
		return entity.RetrainResult{Message: "Training finished but weights not found."}
	}

	if err := publishArtifact(artifact, r.artifactPath); err != nil {
		return r.fail(ctx, fmt.Errorf("publish weights: %w", err))
	}

	details := fmt.Sprintf("Fine-tuning complete. New weights saved to %s. Dataset size: %d images, %d labelled objects.",
		r.artifactPath, manifest.ImageCount, manifest.ExampleCount)
	if _, err := r.audit.Record(ctx, entity.ActionTrainComplete, nil, details); err != nil {
		return r.fail(ctx, fmt.Errorf("record training completion: %w", err))
	}

	r.log.Info("retrain complete", zap.String("weights", r.artifactPath), zap.Int("examples", manifest.ExampleCount))
	return entity.RetrainResult{
		Success:      true,
		Message:      "Training successful",
		ArtifactPath: r.artifactPath,
		ExampleCount: manifest.ExampleCount,
	}
}

func (r *RetrainTrigger) fail(ctx context.Context, err error) entity.RetrainResult {
	r.log.Error("retrain failed", zap.Error(err))

	// Контекст мог быть отменён вместе с обучением; запись о сбое всё равно нужна.
	if _, aerr := r.audit.Record(context.WithoutCancel(ctx), entity.ActionTrainFailed, nil, fmt.Sprintf("Retraining failed: %v", err)); aerr != nil {
		r.log.Error("record train failure", zap.Error(aerr))
	}
	return entity.RetrainResult{Message: err.Error()}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// publishArtifact копирует веса во временный файл рядом с dst и атомарно переименовывает.
func publishArtifact(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp"
	if err := copyFile(src, tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return errors.Join(err, os.Remove(tmp))
	}
	return nil
}
