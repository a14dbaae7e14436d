package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vision-qc/internal/domain/entity"
	"vision-qc/internal/infrastructure/imagestore"
	"vision-qc/internal/infrastructure/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeDetector struct {
	detections []entity.Detection
	err        error
}

func (d *fakeDetector) Detect(ctx context.Context, imageData []byte) ([]entity.Detection, error) {
	return d.detections, d.err
}

func (d *fakeDetector) HighlightDefects(imageData []byte, detections []entity.Detection) ([]byte, error) {
	return []byte("highlighted"), nil
}

type fakeTrainer struct {
	fit   func(ctx context.Context, manifest entity.CorpusManifest, params entity.TrainParams) (string, error)
	calls atomic.Int32
}

func (f *fakeTrainer) Fit(ctx context.Context, manifest entity.CorpusManifest, params entity.TrainParams) (string, error) {
	f.calls.Add(1)
	if f.fit == nil {
		return "", errors.New("no fit configured")
	}
	return f.fit(ctx, manifest, params)
}

type testEnv struct {
	store      *storage.SQLiteStore
	images     *imagestore.FileStore
	clock      *fakeClock
	audit      *AuditTrail
	config     *ConfigService
	inspection *InspectionService
	drift      *DriftMonitor
	curator    *CorpusCurator
	trainer    *fakeTrainer
	retrain    *RetrainTrigger
	datasetDir string
	modelPath  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()

	store, err := storage.OpenSQLite(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	root := t.TempDir()
	images, err := imagestore.NewFileStore(filepath.Join(root, "raw"))
	require.NoError(t, err)

	env := &testEnv{
		store:      store,
		images:     images,
		clock:      newFakeClock(),
		trainer:    &fakeTrainer{},
		datasetDir: filepath.Join(root, "active_learning"),
		modelPath:  filepath.Join(root, "models", "fine_tuned.pt"),
	}
	env.audit = NewAuditTrail(store, env.clock)
	env.config = NewConfigService(store, env.audit, env.clock, log, entity.DefaultConfidenceThreshold)
	env.inspection = NewInspectionService(store, images, &fakeDetector{}, env.config, env.audit, env.clock, nil, log)
	env.drift = NewDriftMonitor(store, env.audit, env.clock, entity.DefaultDriftParams(), nil, log)
	env.curator = NewCorpusCurator(store, images, env.datasetDir, log)
	env.retrain = NewRetrainTrigger(env.curator, env.trainer, env.audit, entity.DefaultLabelVocabulary,
		entity.TrainParams{Epochs: 10, ImageSize: 640}, env.modelPath, nil, log)
	return env
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

// submit сохраняет инспекцию с заданными детекциями и сдвигает часы на секунду.
func (e *testEnv) submit(t *testing.T, ref string, detections ...entity.Detection) *entity.InspectionSummary {
	t.Helper()
	summary, err := e.inspection.SubmitInspection(context.Background(), ref, detections, nil)
	require.NoError(t, err)
	e.clock.Advance(time.Second)
	return summary
}

// submitWithImage сохраняет изображение w x h и инспекцию по нему.
func (e *testEnv) submitWithImage(t *testing.T, w, h int, detections ...entity.Detection) *entity.InspectionSummary {
	t.Helper()
	ref, err := e.images.Save(context.Background(), "part.png", pngImage(t, w, h))
	require.NoError(t, err)
	return e.submit(t, ref, detections...)
}

func (e *testEnv) auditOf(t *testing.T, action entity.AuditAction) []entity.AuditEntry {
	t.Helper()
	all, err := e.audit.List(context.Background(), 0)
	require.NoError(t, err)
	var out []entity.AuditEntry
	for _, entry := range all {
		if entry.Action == action {
			out = append(out, entry)
		}
	}
	return out
}

func det(label string, conf, x1, y1, x2, y2 float64) entity.Detection {
	return entity.Detection{Label: label, Confidence: conf, Box: entity.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
