// Package rest отдаёт сервисы контроля качества по HTTP.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vision-qc/internal/container"
)

const maxUploadSize = "32M"

// Server HTTP-интерфейс поверх контейнера сервисов.
type Server struct {
	echo *echo.Echo
	c    *container.Container
	log  *zap.Logger
}

// NewServer регистрирует маршруты. imagesDir раздаётся как /images, gatherer как /metrics.
func NewServer(c *container.Container, imagesDir string, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, c: c, log: log.Named("rest")}

	e.Use(middleware.Recover())
	e.Use(s.requestLogger())
	e.Use(middleware.BodyLimit(maxUploadSize))

	e.GET("/", s.Root)
	e.POST("/upload/", s.Upload)
	e.GET("/inspections/", s.ListInspections)
	e.GET("/inspections/:id", s.GetInspection)
	e.POST("/review/:id", s.SubmitReview)
	e.GET("/stats/", s.Stats)
	e.GET("/config/:key", s.GetConfig)
	e.POST("/config/", s.SetConfig)
	e.GET("/drift/", s.Drift)
	e.POST("/retrain/", s.Retrain)
	e.GET("/audit/", s.Audit)

	if imagesDir != "" {
		e.Static("/images", imagesDir)
	}
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return s
}

// Handler нужен для httptest.
func (s *Server) Handler() http.Handler { return s.echo }

// Start слушает addr до Shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info("http server listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency.Round(time.Microsecond)),
			}
			if v.Error != nil {
				s.log.Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			s.log.Debug("request", fields...)
			return nil
		},
	})
}
