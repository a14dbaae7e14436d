package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	app "vision-qc/internal/application"
	"vision-qc/internal/domain/entity"
)

// InspectionResponse инспекция в ответе API.
type InspectionResponse struct {
	ID              uint               `json:"id"`
	ImageFilename   string             `json:"image_filename"`
	Prediction      []entity.Detection `json:"prediction"`
	Confidence      float64            `json:"confidence"`
	ThresholdUsed   float64            `json:"threshold_used"`
	Status          string             `json:"status"`
	FinalPrediction *entity.Correction `json:"final_prediction"`
	CreatedAt       time.Time          `json:"created_at"`
}

// ReviewRequest тело POST /review/:id.
type ReviewRequest struct {
	FinalPrediction *entity.Correction `json:"final_prediction"`
}

// ConfigRequest тело POST /config/. value может быть строкой или числом.
type ConfigRequest struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, messageResponse{Message: "Vision QC API is active."})
}

// Upload принимает изображение в поле file и проводит инспекцию.
func (s *Server) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return s.badRequest(c, "file is required")
	}

	var threshold *float64
	if raw := strings.TrimSpace(c.FormValue("threshold")); raw != "" {
		v, err := app.ParseThreshold(raw)
		if err != nil {
			return s.badRequest(c, err.Error())
		}
		threshold = &v
	}

	f, err := fh.Open()
	if err != nil {
		return s.badRequest(c, "cannot read file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return s.badRequest(c, "cannot read file")
	}

	out, err := s.c.InspectionService.Inspect(c.Request().Context(), fh.Filename, data, threshold)
	if err != nil {
		return s.fail(c, "upload", err)
	}
	return c.JSON(http.StatusOK, out.Summary)
}

// ListInspections отдаёт инспекции от новых к старым, ?status= фильтрует.
func (s *Server) ListInspections(c echo.Context) error {
	status := entity.InspectionStatus(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return s.badRequest(c, fmt.Sprintf("unknown status %q", status))
	}

	items, err := s.c.InspectionService.ListInspections(c.Request().Context(), status)
	if err != nil {
		return s.fail(c, "list inspections", err)
	}

	resp := make([]InspectionResponse, 0, len(items))
	for i := range items {
		resp = append(resp, toInspectionResponse(&items[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) GetInspection(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return s.badRequest(c, err.Error())
	}

	insp, err := s.c.InspectionService.Get(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, "get inspection", err)
	}
	return c.JSON(http.StatusOK, toInspectionResponse(insp))
}

// SubmitReview записывает вердикт проверяющего.
func (s *Server) SubmitReview(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return s.badRequest(c, err.Error())
	}

	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return s.badRequest(c, "invalid request format")
	}

	var correction entity.Correction
	if req.FinalPrediction != nil {
		correction = *req.FinalPrediction
	}

	if err := s.c.InspectionService.SubmitReview(c.Request().Context(), id, correction); err != nil {
		return s.fail(c, "submit review", err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Review submitted successfully"})
}

func (s *Server) Stats(c echo.Context) error {
	stats, err := s.c.InspectionService.Stats(c.Request().Context())
	if err != nil {
		return s.fail(c, "stats", err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) GetConfig(c echo.Context) error {
	key := c.Param("key")
	value, err := s.c.ConfigService.Get(c.Request().Context(), key)
	if err != nil {
		return s.fail(c, "get config", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"key": key, "value": value})
}

func (s *Server) SetConfig(c echo.Context) error {
	var req ConfigRequest
	if err := c.Bind(&req); err != nil {
		return s.badRequest(c, "invalid request format")
	}
	if strings.TrimSpace(req.Key) == "" {
		return s.badRequest(c, "key is required")
	}

	value, err := configValue(req.Value)
	if err != nil {
		return s.badRequest(c, err.Error())
	}

	if err := s.c.ConfigService.Set(c.Request().Context(), req.Key, value); err != nil {
		return s.fail(c, "set config", err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: fmt.Sprintf("Config %s updated", req.Key)})
}

func (s *Server) Drift(c echo.Context) error {
	report, err := s.c.DriftMonitor.Detect(c.Request().Context())
	if err != nil {
		return s.fail(c, "drift", err)
	}
	return c.JSON(http.StatusOK, report)
}

// Retrain выполняется синхронно, ответ приходит после окончания обучения.
func (s *Server) Retrain(c echo.Context) error {
	return c.JSON(http.StatusOK, s.c.RetrainTrigger.Retrain(c.Request().Context()))
}

// Audit отдаёт журнал от новых записей к старым. Без limit возвращается весь журнал.
func (s *Server) Audit(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return s.badRequest(c, "limit must be a positive integer")
		}
		limit = n
	}

	entries, err := s.c.Audit.List(c.Request().Context(), limit)
	if err != nil {
		return s.fail(c, "audit", err)
	}
	return c.JSON(http.StatusOK, entries)
}

func toInspectionResponse(i *entity.Inspection) InspectionResponse {
	return InspectionResponse{
		ID:              i.ID,
		ImageFilename:   i.SourceRef,
		Prediction:      i.Predictions,
		Confidence:      i.MaxConfidence,
		ThresholdUsed:   i.ThresholdUsed,
		Status:          string(i.Status),
		FinalPrediction: i.FinalPredictions,
		CreatedAt:       i.CreatedAt,
	}
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", c.Param("id"))
	}
	return uint(id), nil
}

// configValue приводит JSON-значение к строке: строки без кавычек, остальное как есть.
func configValue(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("value is required")
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}
	return string(raw), nil
}

func (s *Server) badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

// fail переводит ошибку сервиса в HTTP-статус.
func (s *Server) fail(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, app.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, app.ErrInvalidThreshold):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, app.ErrImageRejected):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, app.ErrDetectorNotConfigured):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	}

	s.log.Error(op, zap.String("path", c.Path()), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
