package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vision-qc/internal/domain/entity"
	"vision-qc/internal/domain/port"
)

// Triage решает судьбу инспекции: automated, если максимальная уверенность не ниже порога.
// Равенство порогу уходит в automated.
func Triage(detections []entity.Detection, threshold float64) entity.TriageDecision {
	maxConf := 0.0
	for _, d := range detections {
		if d.Confidence > maxConf {
			maxConf = d.Confidence
		}
	}

	status := entity.StatusPendingReview
	if maxConf >= threshold {
		status = entity.StatusAutomated
	}
	return entity.TriageDecision{Status: status, MaxConfidence: maxConf}
}

// InspectionService сортирует результаты детектора и принимает вердикты проверяющих.
type InspectionService struct {
	store    port.Store
	images   port.ImageStore
	detector port.DefectDetector
	config   *ConfigService
	audit    *AuditTrail
	clock    port.Clock
	metrics  port.Metrics
	log      *zap.Logger
}

// InspectionOutput содержит итог сортировки, найденные объекты и картинку с подсветкой.
type InspectionOutput struct {
	Summary     *entity.InspectionSummary
	Detections  []entity.Detection
	Highlighted []byte
}

// NewInspectionService создаёт сервис инспекций. images и detector нужны только для Inspect.
func NewInspectionService(
	store port.Store,
	images port.ImageStore,
	detector port.DefectDetector,
	config *ConfigService,
	audit *AuditTrail,
	clock port.Clock,
	metrics port.Metrics,
	log *zap.Logger,
) *InspectionService {
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &InspectionService{
		store:    store,
		images:   images,
		detector: detector,
		config:   config,
		audit:    audit,
		clock:    clock,
		metrics:  metrics,
		log:      log.Named("inspection"),
	}
}

// SubmitInspection сортирует готовый ответ детектора и сохраняет инспекцию.
// При threshold == nil берётся текущий порог из настроек. Создание инспекции не аудируется.
func (s *InspectionService) SubmitInspection(ctx context.Context, sourceRef string, detections []entity.Detection, threshold *float64) (*entity.InspectionSummary, error) {
	var used float64
	if threshold != nil {
		if err := ValidateThreshold(*threshold); err != nil {
			return nil, err
		}
		used = *threshold
	} else {
		t, err := s.config.Threshold(ctx)
		if err != nil {
			return nil, fmt.Errorf("read threshold: %w", err)
		}
		used = t
	}

	if detections == nil {
		detections = []entity.Detection{}
	}
	decision := Triage(detections, used)

	inspection := &entity.Inspection{
		SourceRef:     sourceRef,
		Predictions:   detections,
		MaxConfidence: decision.MaxConfidence,
		ThresholdUsed: used,
		Status:        decision.Status,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.store.Inspections().Create(ctx, inspection); err != nil {
		return nil, err
	}

	s.metrics.InspectionTriaged(decision.Status, decision.MaxConfidence)
	s.log.Info("inspection triaged",
		zap.Uint("id", inspection.ID),
		zap.String("status", string(decision.Status)),
		zap.Float64("max_confidence", decision.MaxConfidence),
		zap.Float64("threshold", used))

	return &entity.InspectionSummary{
		ID:            inspection.ID,
		SourceRef:     sourceRef,
		Status:        decision.Status,
		MaxConfidence: decision.MaxConfidence,
		ThresholdUsed: used,
	}, nil
}

// Inspect сохраняет изображение, запускает детектор и сортирует результат.
func (s *InspectionService) Inspect(ctx context.Context, filename string, imageData []byte, threshold *float64) (*InspectionOutput, error) {
	if s.detector == nil || s.images == nil {
		return nil, ErrDetectorNotConfigured
	}

	ref, err := s.images.Save(ctx, filename, imageData)
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	detections, err := s.detector.Detect(ctx, imageData)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	summary, err := s.SubmitInspection(ctx, ref, detections, threshold)
	if err != nil {
		return nil, err
	}

	var highlighted []byte
	if len(detections) > 0 {
		highlighted, err = s.detector.HighlightDefects(imageData, detections)
		if err != nil {
			s.log.Warn("highlight failed", zap.Uint("id", summary.ID), zap.Error(err))
		}
	}

	return &InspectionOutput{Summary: summary, Detections: detections, Highlighted: highlighted}, nil
}

// SubmitReview записывает вердикт проверяющего и переводит инспекцию в reviewed.
// Каждый вызов, в том числе повторный, добавляет свою запись human_review.
func (s *InspectionService) SubmitReview(ctx context.Context, id uint, correction entity.Correction) error {
	var prior entity.InspectionStatus
	err := s.store.Atomic(ctx, func(tx port.Store) error {
		current, err := tx.Inspections().Get(ctx, id)
		if err != nil {
			return err
		}
		prior = current.Status

		if err := tx.Inspections().SaveReview(ctx, id, correction); err != nil {
			return err
		}

		inspectionID := id
		_, err = s.audit.RecordTo(ctx, tx.Audit(), entity.ActionHumanReview, &inspectionID, reviewDetails(prior, correction))
		return err
	})
	if err != nil {
		return fmt.Errorf("submit review for inspection %d: %w", id, err)
	}

	s.metrics.ReviewSubmitted(prior)
	s.log.Info("review submitted", zap.Uint("id", id), zap.String("prior_status", string(prior)))
	return nil
}

// Get возвращает инспекцию по ID.
func (s *InspectionService) Get(ctx context.Context, id uint) (*entity.Inspection, error) {
	return s.store.Inspections().Get(ctx, id)
}

// ListInspections возвращает инспекции от новых к старым; пустой status означает все.
func (s *InspectionService) ListInspections(ctx context.Context, status entity.InspectionStatus) ([]entity.Inspection, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	return s.store.Inspections().List(ctx, status)
}

// Stats возвращает количество инспекций по статусам.
func (s *InspectionService) Stats(ctx context.Context) (entity.Stats, error) {
	return s.store.Inspections().Stats(ctx)
}

func reviewDetails(prior entity.InspectionStatus, c entity.Correction) string {
	notes := c.Notes
	if notes == "" {
		notes = "None"
	}
	details := fmt.Sprintf("Human reviewer updated status from %s to reviewed. Notes: %s", prior, notes)
	if c.Verified != nil {
		details += fmt.Sprintf(". Verified: %t", *c.Verified)
	}
	if c.Detections != nil {
		details += fmt.Sprintf(". Corrected detections: %d", len(c.Detections))
	}
	return details
}
