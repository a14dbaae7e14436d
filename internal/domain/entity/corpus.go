package entity

// DefaultLabelVocabulary классы дефектов по умолчанию. Индекс класса равен позиции в списке.
var DefaultLabelVocabulary = []string{"defect", "fracture", "stain", "misalignment"}

// TrainingExample одна строка разметки YOLO.
type TrainingExample struct {
	ImageRef string
	ClassID  int
	Box      NormalizedBox
}

// CorpusItem все примеры одного изображения.
type CorpusItem struct {
	InspectionID uint
	ImageRef     string
	Examples     []TrainingExample
}

// Corpus набор данных, собранный из проверенных инспекций.
type Corpus struct {
	Vocabulary        []string
	Items             []CorpusItem
	Skipped           []uint         // инспекции, пропущенные целиком
	SkippedDetections int            // отдельные рамки с ошибкой геометрии
	AliasedLabels     map[string]int // неизвестные метки, отнесённые к классу 0
}

// ExampleCount количество строк разметки в корпусе.
func (c *Corpus) ExampleCount() int {
	n := 0
	for _, item := range c.Items {
		n += len(item.Examples)
	}
	return n
}

// CorpusManifest описание собранного набора данных на диске.
type CorpusManifest struct {
	DatasetPath  string   // корень набора данных
	ManifestPath string   // путь к dataset.yaml
	ImagesDir    string
	LabelsDir    string
	Vocabulary   []string
	ImageCount   int
	ExampleCount int
}

// CurationResult итог подготовки корпуса.
type CurationResult struct {
	Insufficient bool
	Message      string
	Manifest     *CorpusManifest
	Skipped      []uint
}

// TrainParams параметры дообучения.
type TrainParams struct {
	Epochs    int
	ImageSize int
}

// RetrainResult итог переобучения.
type RetrainResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	ArtifactPath string `json:"weights,omitempty"`
	ExampleCount int    `json:"example_count,omitempty"`
}
