package container

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	app "vision-qc/internal/application"
	"vision-qc/internal/domain/entity"
	"vision-qc/internal/domain/port"
)

// Settings параметры сервисов, не являющиеся зависимостями.
type Settings struct {
	DefaultThreshold float64
	Labels           []string
	Drift            entity.DriftParams
	Train            entity.TrainParams
	DatasetDir       string
	ArtifactPath     string
}

// Deps инфраструктура, которую собирает main.
type Deps struct {
	Store    port.Store
	Users    port.UserRepository
	Images   port.ImageStore
	Detector port.DefectDetector
	Trainer  port.Trainer
	Clock    port.Clock
	Metrics  port.Metrics
	Log      *zap.Logger
}

type Container struct {
	Settings Settings

	Audit             *app.AuditTrail
	ConfigService     *app.ConfigService
	UserService       *app.UserService
	InspectionService *app.InspectionService
	DriftMonitor      *app.DriftMonitor
	CorpusCurator     *app.CorpusCurator
	RetrainTrigger    *app.RetrainTrigger
}

func New(deps Deps, settings Settings) *Container {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	audit := app.NewAuditTrail(deps.Store, deps.Clock)
	configService := app.NewConfigService(deps.Store, audit, deps.Clock, log, settings.DefaultThreshold)
	inspectionService := app.NewInspectionService(deps.Store, deps.Images, deps.Detector, configService, audit, deps.Clock, deps.Metrics, log)
	driftMonitor := app.NewDriftMonitor(deps.Store, audit, deps.Clock, settings.Drift, deps.Metrics, log)
	curator := app.NewCorpusCurator(deps.Store, deps.Images, settings.DatasetDir, log)
	retrain := app.NewRetrainTrigger(curator, deps.Trainer, audit, settings.Labels, settings.Train, settings.ArtifactPath, deps.Metrics, log)

	return &Container{
		Settings:          settings,
		Audit:             audit,
		ConfigService:     configService,
		UserService:       app.NewUserService(deps.Users),
		InspectionService: inspectionService,
		DriftMonitor:      driftMonitor,
		CorpusCurator:     curator,
		RetrainTrigger:    retrain,
	}
}

// SeedDefaults записывает настройки по умолчанию, если их ещё нет.
func (c *Container) SeedDefaults(ctx context.Context) error {
	return c.ConfigService.Seed(ctx, map[string]string{
		entity.ConfigConfidenceThreshold: strconv.FormatFloat(c.Settings.DefaultThreshold, 'f', -1, 64),
	})
}
