package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vision-qc/internal/container"
	"vision-qc/internal/domain/entity"
	"vision-qc/internal/domain/port"
	"vision-qc/internal/infrastructure/clock"
	"vision-qc/internal/infrastructure/imagestore"
	"vision-qc/internal/infrastructure/metrics"
	"vision-qc/internal/infrastructure/storage"
)

type stubDetector struct {
	detections []entity.Detection
	err        error
}

func (d *stubDetector) Detect(ctx context.Context, imageData []byte) ([]entity.Detection, error) {
	return d.detections, d.err
}

func (d *stubDetector) HighlightDefects(imageData []byte, detections []entity.Detection) ([]byte, error) {
	return imageData, nil
}

type testServer struct {
	srv      *Server
	c        *container.Container
	detector *stubDetector
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()

	store, err := storage.OpenSQLite(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	root := t.TempDir()
	images, err := imagestore.NewFileStore(filepath.Join(root, "raw"))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	collector, err := metrics.New(reg)
	require.NoError(t, err)

	detector := &stubDetector{}
	c := container.New(container.Deps{
		Store:    store,
		Users:    storage.NewMemoryUserRepository(),
		Images:   images,
		Detector: detector,
		Clock:    clock.System{},
		Metrics:  collector,
		Log:      log,
	}, container.Settings{
		DefaultThreshold: entity.DefaultConfidenceThreshold,
		Labels:           entity.DefaultLabelVocabulary,
		Drift:            entity.DefaultDriftParams(),
		Train:            entity.TrainParams{Epochs: 1, ImageSize: 640},
		DatasetDir:       filepath.Join(root, "active_learning"),
		ArtifactPath:     filepath.Join(root, "models", "fine_tuned.pt"),
	})
	require.NoError(t, c.SeedDefaults(context.Background()))

	return &testServer{
		srv:      NewServer(c, images.Dir(), reg, log),
		c:        c,
		detector: detector,
	}
}

func (ts *testServer) do(t *testing.T, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) upload(t *testing.T, threshold string) entity.InspectionSummary {
	t.Helper()

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewGray(image.Rect(0, 0, 32, 24))))

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "part.png")
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	if threshold != "" {
		require.NoError(t, w.WriteField("threshold", threshold))
	}
	require.NoError(t, w.Close())

	rec := ts.do(t, http.MethodPost, "/upload/", body.Bytes(), w.FormDataContentType())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary entity.InspectionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	return summary
}

func TestRoot(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "active")
}

func TestUploadAndTriage(t *testing.T) {
	ts := newTestServer(t)

	ts.detector.detections = []entity.Detection{{Label: "stain", Confidence: 0.9, Box: entity.BoundingBox{X1: 1, Y1: 1, X2: 10, Y2: 10}}}
	auto := ts.upload(t, "")
	assert.Equal(t, entity.StatusAutomated, auto.Status)
	assert.InDelta(t, 0.6, auto.ThresholdUsed, 1e-9)
	assert.True(t, strings.HasSuffix(auto.SourceRef, ".png"))

	ts.detector.detections = nil
	pending := ts.upload(t, "0.5")
	assert.Equal(t, entity.StatusPendingReview, pending.Status)
	assert.Equal(t, 0.0, pending.MaxConfidence)
	assert.InDelta(t, 0.5, pending.ThresholdUsed, 1e-9)

	rec := ts.do(t, http.MethodGet, "/images/"+auto.SourceRef, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/inspections/?status=pending_review", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []InspectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, pending.ID, items[0].ID)
	assert.Nil(t, items[0].FinalPrediction)

	rec = ts.do(t, http.MethodGet, "/inspections/", nil, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 2)
	assert.Equal(t, pending.ID, items[0].ID, "newest first")

	rec = ts.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "inspections_total")
}

func TestUploadValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/upload/", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/inspections/?status=bogus", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRejectedByQualityGate(t *testing.T) {
	ts := newTestServer(t)
	ts.detector.err = fmt.Errorf("%w: image is blurry", port.ErrImageRejected)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "part.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("not really a jpeg"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rec := ts.do(t, http.MethodPost, "/upload/", body.Bytes(), w.FormDataContentType())
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "blurry")

	stats, err := ts.c.InspectionService.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestReview(t *testing.T) {
	ts := newTestServer(t)
	pending := ts.upload(t, "")

	body := `{"final_prediction": {"notes": "scratch confirmed", "verified": true}}`
	rec := ts.do(t, http.MethodPost, "/review/"+itoa(pending.ID), []byte(body), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/inspections/"+itoa(pending.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var insp InspectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &insp))
	assert.Equal(t, string(entity.StatusReviewed), insp.Status)
	require.NotNil(t, insp.FinalPrediction)
	assert.Equal(t, "scratch confirmed", insp.FinalPrediction.Notes)

	rec = ts.do(t, http.MethodGet, "/audit/?limit=1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []entity.AuditEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, entity.ActionHumanReview, entries[0].Action)
	assert.Contains(t, entries[0].Details, "from pending_review to reviewed. Notes: scratch confirmed")

	rec = ts.do(t, http.MethodPost, "/review/9999", []byte(body), "application/json")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/review/abc", []byte(body), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfig(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/config/confidence_threshold", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"key":"confidence_threshold","value":"0.6"}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/config/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/config/", []byte(`{"key":"confidence_threshold","value":0.75}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/config/confidence_threshold", nil, "")
	assert.JSONEq(t, `{"key":"confidence_threshold","value":"0.75"}`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/config/", []byte(`{"key":"confidence_threshold","value":"1.5"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/config/", []byte(`{"value":"x"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	entries, err := ts.c.Audit.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Config 'confidence_threshold' changed from 0.6 to 0.75", entries[0].Details)
}

func TestDriftAndRetrainInsufficient(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/drift/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report entity.DriftReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Insufficient)
	assert.False(t, report.DriftDetected)

	rec = ts.do(t, http.MethodPost, "/retrain/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var result entity.RetrainResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "insufficient data")

	rec = ts.do(t, http.MethodGet, "/stats/", nil, "")
	assert.JSONEq(t, `{"total":0,"automated":0,"pending":0,"reviewed":0}`, rec.Body.String())
}

func TestAuditLimitValidation(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/audit/?limit=0", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/audit/?limit=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditWithoutLimitReturnsEverything(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	const changes = 60
	for i := 0; i < changes; i++ {
		value := "0.5"
		if i%2 == 1 {
			value = "0.6"
		}
		require.NoError(t, ts.c.ConfigService.Set(ctx, entity.ConfigConfidenceThreshold, value))
	}

	rec := ts.do(t, http.MethodGet, "/audit/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []entity.AuditEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, changes)

	rec = ts.do(t, http.MethodGet, "/audit/?limit=5", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 5)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
