package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"vision-qc/internal/domain/entity"
	"vision-qc/internal/domain/port"
)

// MinReviewedForTraining минимум проверенных инспекций для сборки корпуса.
const MinReviewedForTraining = 5

const (
	trainSubdir   = "train"
	imagesSubdir  = "images"
	labelsSubdir  = "labels"
	manifestName  = "dataset.yaml"
	stagingPrefix = ".train-"
)

// CorpusCurator собирает обучающий набор YOLO из проверенных инспекций.
// Каталог train каждый раз строится заново из текущих данных.
type CorpusCurator struct {
	store       port.Store
	images      port.ImageStore
	datasetDir  string
	minReviewed int
	log         *zap.Logger

	mu sync.Mutex
}

// NewCorpusCurator создаёт куратора, пишущего набор в datasetDir.
func NewCorpusCurator(store port.Store, images port.ImageStore, datasetDir string, log *zap.Logger) *CorpusCurator {
	return &CorpusCurator{
		store:       store,
		images:      images,
		datasetDir:  datasetDir,
		minReviewed: MinReviewedForTraining,
		log:         log.Named("corpus"),
	}
}

// Curate пересобирает набор данных. Недостаток данных возвращается в результате, а не ошибкой.
func (c *CorpusCurator) Curate(ctx context.Context, vocabulary []string) (*entity.CurationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reviewed, err := c.store.Inspections().Reviewed(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reviewed inspections: %w", err)
	}
	if len(reviewed) < c.minReviewed {
		return &entity.CurationResult{
			Insufficient: true,
			Message: fmt.Sprintf("insufficient data: need at least %d reviewed inspections, have %d",
				c.minReviewed, len(reviewed)),
		}, nil
	}

	corpus := BuildCorpus(ctx, reviewed, vocabulary, c.images, c.log)
	for label, n := range corpus.AliasedLabels {
		c.log.Warn("unknown label mapped to class 0",
			zap.String("label", label), zap.Int("count", n), zap.String("class0", corpus.Vocabulary[0]))
	}

	manifest, err := c.materialize(corpus)
	if err != nil {
		return nil, err
	}

	c.log.Info("corpus rebuilt",
		zap.Int("images", manifest.ImageCount),
		zap.Int("examples", manifest.ExampleCount),
		zap.Int("skipped", len(corpus.Skipped)),
		zap.Int("skipped_detections", corpus.SkippedDetections))

	return &entity.CurationResult{Manifest: manifest, Skipped: corpus.Skipped}, nil
}

// BuildCorpus переводит проверенные инспекции в примеры YOLO. Размеры кадра читаются
// из самого изображения. Рамка с ошибкой геометрии пропускается и логируется; инспекция
// пропускается целиком, если изображение недоступно или не уцелело ни одной рамки.
// Порядок примеров совпадает с порядком inspections.
func BuildCorpus(ctx context.Context, inspections []entity.Inspection, vocabulary []string, images port.ImageStore, log *zap.Logger) *entity.Corpus {
	if len(vocabulary) == 0 {
		vocabulary = entity.DefaultLabelVocabulary
	}
	classIndex := make(map[string]int, len(vocabulary))
	for i, name := range vocabulary {
		key := normalizeLabel(name)
		if _, dup := classIndex[key]; !dup {
			classIndex[key] = i
		}
	}

	corpus := &entity.Corpus{
		Vocabulary:    vocabulary,
		AliasedLabels: map[string]int{},
	}

	for i := range inspections {
		insp := &inspections[i]
		item, err := convertInspection(ctx, insp, classIndex, images, corpus, log)
		if err != nil {
			log.Warn("skipping example", zap.Uint("inspection_id", insp.ID), zap.Error(err))
			corpus.Skipped = append(corpus.Skipped, insp.ID)
			continue
		}
		corpus.Items = append(corpus.Items, *item)
	}
	return corpus
}

func convertInspection(ctx context.Context, insp *entity.Inspection, classIndex map[string]int, images port.ImageStore, corpus *entity.Corpus, log *zap.Logger) (*entity.CorpusItem, *GeometryError) {
	img, err := images.Resolve(ctx, insp.SourceRef)
	if err != nil {
		return nil, &GeometryError{InspectionID: insp.ID, ImageRef: insp.SourceRef, Err: err}
	}

	detections := insp.TrainingDetections()
	examples := make([]entity.TrainingExample, 0, len(detections))
	unknown := map[string]int{}
	var lastErr error
	for i, d := range detections {
		box, err := d.Box.Normalize(img.Width, img.Height)
		if err != nil {
			log.Warn("skipping detection",
				zap.Uint("inspection_id", insp.ID), zap.Int("index", i),
				zap.String("label", d.Label), zap.Error(err))
			lastErr = err
			continue
		}

		label := normalizeLabel(d.Label)
		if label == "" {
			label = normalizeLabel(entity.DefaultLabelVocabulary[0])
		}
		classID, ok := classIndex[label]
		if !ok {
			classID = 0
			unknown[label]++
		}
		examples = append(examples, entity.TrainingExample{ImageRef: insp.SourceRef, ClassID: classID, Box: box})
	}

	// Пустая разметка означала бы «дефектов нет», поэтому без уцелевших рамок кадр не берём.
	if len(examples) == 0 && lastErr != nil {
		return nil, &GeometryError{InspectionID: insp.ID, ImageRef: insp.SourceRef, Err: lastErr}
	}
	corpus.SkippedDetections += len(detections) - len(examples)

	// Счётчик неизвестных меток обновляем только для принятых примеров.
	for label, n := range unknown {
		corpus.AliasedLabels[label] += n
	}

	return &entity.CorpusItem{InspectionID: insp.ID, ImageRef: insp.SourceRef, Examples: examples}, nil
}

// materialize пишет корпус во временный каталог и подменяет им train целиком.
func (c *CorpusCurator) materialize(corpus *entity.Corpus) (*entity.CorpusManifest, error) {
	if err := os.MkdirAll(c.datasetDir, 0o755); err != nil {
		return nil, fmt.Errorf("create dataset dir: %w", err)
	}

	staging, err := os.MkdirTemp(c.datasetDir, stagingPrefix)
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	for _, sub := range []string{imagesSubdir, labelsSubdir} {
		if err := os.MkdirAll(filepath.Join(staging, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", sub, err)
		}
	}

	for _, item := range corpus.Items {
		if err := copyFile(c.images.Path(item.ImageRef), filepath.Join(staging, imagesSubdir, item.ImageRef)); err != nil {
			return nil, fmt.Errorf("copy image for inspection %d: %w", item.InspectionID, err)
		}
		labelPath := filepath.Join(staging, labelsSubdir, labelFileName(item.ImageRef))
		if err := os.WriteFile(labelPath, FormatLabels(item.Examples), 0o644); err != nil {
			return nil, fmt.Errorf("write labels for inspection %d: %w", item.InspectionID, err)
		}
	}

	trainDir := filepath.Join(c.datasetDir, trainSubdir)
	if err := os.RemoveAll(trainDir); err != nil {
		return nil, fmt.Errorf("remove old train dir: %w", err)
	}
	if err := os.Rename(staging, trainDir); err != nil {
		return nil, fmt.Errorf("publish train dir: %w", err)
	}

	absDataset, err := filepath.Abs(c.datasetDir)
	if err != nil {
		return nil, err
	}
	manifestPath := filepath.Join(c.datasetDir, manifestName)
	if err := writeManifest(manifestPath, absDataset, corpus.Vocabulary); err != nil {
		return nil, err
	}

	return &entity.CorpusManifest{
		DatasetPath:  absDataset,
		ManifestPath: manifestPath,
		ImagesDir:    filepath.Join(trainDir, imagesSubdir),
		LabelsDir:    filepath.Join(trainDir, labelsSubdir),
		Vocabulary:   corpus.Vocabulary,
		ImageCount:   len(corpus.Items),
		ExampleCount: corpus.ExampleCount(),
	}, nil
}

// FormatLabels строки разметки YOLO: "class cx cy w h" с шестью знаками после запятой.
func FormatLabels(examples []entity.TrainingExample) []byte {
	var buf bytes.Buffer
	for _, ex := range examples {
		fmt.Fprintf(&buf, "%d %.6f %.6f %.6f %.6f\n", ex.ClassID, ex.Box.CX, ex.Box.CY, ex.Box.W, ex.Box.H)
	}
	return buf.Bytes()
}

// datasetManifest формат dataset.yaml для ultralytics. Для маленьких наборов val = train.
type datasetManifest struct {
	Path  string   `yaml:"path"`
	Train string   `yaml:"train"`
	Val   string   `yaml:"val"`
	NC    int      `yaml:"nc"`
	Names []string `yaml:"names"`
}

func writeManifest(path, datasetPath string, vocabulary []string) error {
	data, err := yaml.Marshal(datasetManifest{
		Path:  datasetPath,
		Train: trainSubdir + "/" + imagesSubdir,
		Val:   trainSubdir + "/" + imagesSubdir,
		NC:    len(vocabulary),
		Names: vocabulary,
	})
	if err != nil {
		return fmt.Errorf("marshal dataset manifest: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write dataset manifest: %w", err)
	}
	return os.Rename(tmp, path)
}

func labelFileName(imageRef string) string {
	return strings.TrimSuffix(imageRef, filepath.Ext(imageRef)) + ".txt"
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
