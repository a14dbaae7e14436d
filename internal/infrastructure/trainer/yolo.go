package trainer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"vision-qc/internal/domain/entity"
)

// runName каталог запуска внутри RunsDir. Перезаписывается при каждом обучении.
const runName = "run"

const maxLogLine = 1024 * 1024

// YOLOTrainer дообучает модель внешней командой `yolo detect train`.
type YOLOTrainer struct {
	Bin         string // путь к исполняемому файлу yolo
	BaseWeights string // стартовые веса
	Device      string
	RunsDir     string
	log         *zap.Logger
}

func NewYOLOTrainer(bin, baseWeights, device, runsDir string, log *zap.Logger) *YOLOTrainer {
	if log == nil {
		log = zap.NewNop()
	}
	return &YOLOTrainer{
		Bin:         bin,
		BaseWeights: baseWeights,
		Device:      device,
		RunsDir:     runsDir,
		log:         log,
	}
}

// Fit запускает обучение и возвращает путь к лучшим весам запуска.
// Наличие файла не проверяется, это делает вызывающий код.
func (t *YOLOTrainer) Fit(ctx context.Context, manifest entity.CorpusManifest, params entity.TrainParams) (string, error) {
	if manifest.ManifestPath == "" {
		return "", errors.New("empty dataset manifest path")
	}

	// Веса прошлого запуска не должны сойти за результат текущего.
	runDir := filepath.Join(t.RunsDir, runName)
	if err := os.RemoveAll(runDir); err != nil {
		return "", fmt.Errorf("clean previous run %s: %w", runDir, err)
	}

	cmd := exec.CommandContext(ctx, t.Bin, t.args(manifest, params)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	cmd.Stderr = cmd.Stdout

	t.log.Info("training started",
		zap.String("bin", t.Bin),
		zap.String("dataset", manifest.ManifestPath),
		zap.Int("epochs", params.Epochs),
		zap.Int("imgsz", params.ImageSize),
	)

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", t.Bin, err)
	}

	// Вывод нужно дочитать до Wait: Wait закрывает канал.
	t.stream(stdout)

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("training interrupted: %w", ctxErr)
		}
		return "", fmt.Errorf("training failed: %w", err)
	}

	return t.WeightsPath(), nil
}

// WeightsPath путь, куда yolo кладёт лучшие веса.
func (t *YOLOTrainer) WeightsPath() string {
	return filepath.Join(t.RunsDir, runName, "weights", "best.pt")
}

func (t *YOLOTrainer) args(manifest entity.CorpusManifest, params entity.TrainParams) []string {
	args := []string{
		"detect", "train",
		"data=" + manifest.ManifestPath,
		"model=" + t.BaseWeights,
		"epochs=" + strconv.Itoa(params.Epochs),
		"imgsz=" + strconv.Itoa(params.ImageSize),
		"project=" + t.RunsDir,
		"name=" + runName,
		"exist_ok=True",
	}
	if t.Device != "" {
		args = append(args, "device="+t.Device)
	}
	return args
}

// stream пишет вывод yolo в лог построчно. Прогресс-бары разделены '\r', поэтому режем и по нему.
// Если строка не влезла в буфер, остаток всё равно вычитывается, иначе процесс встанет на записи.
func (t *YOLOTrainer) stream(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLogLine)
	scanner.Split(scanLines)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			t.log.Debug("yolo", zap.String("line", line))
		}
	}
	if err := scanner.Err(); err != nil {
		t.log.Warn("yolo output truncated", zap.Error(err))
	}
	_, _ = io.Copy(io.Discard, r)
}

// scanLines как bufio.ScanLines, но концом строки считается и '\r'.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
