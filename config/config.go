package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"vision-qc/internal/domain/entity"
)

type Config struct {
	TelegramToken string
	HTTPAddr      string
	Environment   string
	LogLevel      string

	DBPath     string
	RawDir     string
	DatasetDir string
	ModelsDir  string
	RunsDir    string

	ModelPath   string
	BaseWeights string
	YOLOBin     string
	Labels      []string

	TrainEpochs    int
	TrainImageSize int
	TrainDevice    string

	DefaultThreshold float64
	Drift            entity.DriftParams
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8000"),
		Environment:   getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DBPath:        getEnv("DB_PATH", "opti_quality.db"),
		RawDir:        getEnv("RAW_DIR", filepath.Join("data", "raw")),
		DatasetDir:    getEnv("DATASET_DIR", filepath.Join("data", "active_learning")),
		ModelsDir:     getEnv("MODELS_DIR", "models"),
		RunsDir:       getEnv("RUNS_DIR", filepath.Join("runs", "detect")),
		ModelPath:     getEnv("MODEL_PATH", "yolo11n.onnx"),
		BaseWeights:   getEnv("BASE_WEIGHTS", "yolo11n.pt"),
		YOLOBin:       getEnv("YOLO_BIN", "yolo"),
		TrainDevice:   getEnv("TRAIN_DEVICE", "cpu"),
		Labels:        parseList(os.Getenv("LABELS"), entity.DefaultLabelVocabulary),
		Drift:         entity.DefaultDriftParams(),
	}

	var err error
	if cfg.TrainEpochs, err = getInt("TRAIN_EPOCHS", 10); err != nil {
		return nil, err
	}
	if cfg.TrainImageSize, err = getInt("TRAIN_IMAGE_SIZE", 640); err != nil {
		return nil, err
	}
	if cfg.DefaultThreshold, err = getFloat("DEFAULT_THRESHOLD", entity.DefaultConfidenceThreshold); err != nil {
		return nil, err
	}
	if cfg.DefaultThreshold < 0 || cfg.DefaultThreshold > 1 {
		return nil, fmt.Errorf("DEFAULT_THRESHOLD must be within [0, 1], got %v", cfg.DefaultThreshold)
	}

	if cfg.Drift.RecentWindow, err = getInt("DRIFT_RECENT_WINDOW", cfg.Drift.RecentWindow); err != nil {
		return nil, err
	}
	if cfg.Drift.RecentSplit, err = getInt("DRIFT_RECENT_SPLIT", cfg.Drift.RecentSplit); err != nil {
		return nil, err
	}
	if cfg.Drift.MinSamples, err = getInt("DRIFT_MIN_SAMPLES", cfg.Drift.MinSamples); err != nil {
		return nil, err
	}
	if cfg.Drift.DropThreshold, err = getFloat("DRIFT_DROP_THRESHOLD", cfg.Drift.DropThreshold); err != nil {
		return nil, err
	}
	if cfg.Drift.Cooldown, err = getDuration("DRIFT_COOLDOWN", cfg.Drift.Cooldown); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ArtifactPath куда публикуются дообученные веса.
func (c *Config) ArtifactPath() string {
	return filepath.Join(c.ModelsDir, "fine_tuned.pt")
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseList(v string, fallback []string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
