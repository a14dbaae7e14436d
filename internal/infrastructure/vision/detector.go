//go:build gocv
// +build gocv

package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"

	"gocv.io/x/gocv"

	"vision-qc/internal/domain/entity"
)

// GoCVDetector запускает YOLO-модель в формате ONNX через модуль DNN OpenCV.
type GoCVDetector struct {
	Classes      []string
	InputSize    int     // сторона квадратного входа сети
	MinScore     float64 // ниже этой уверенности ответ отбрасывается
	NMSThreshold float64
	Quality      QualityLimits

	mu  sync.Mutex // gocv.Net не потокобезопасен
	net gocv.Net
}

// NewGoCVDetector загружает модель modelPath; classes: имена классов в порядке обучения.
func NewGoCVDetector(modelPath string, classes []string) (*GoCVDetector, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model %s", modelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, err
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, err
	}

	return &GoCVDetector{
		Classes:      classes,
		InputSize:    640,
		MinScore:     0.25,
		NMSThreshold: 0.45,
		Quality:      DefaultQualityLimits(),
		net:          net,
	}, nil
}

// Detect проверяет качество кадра и возвращает найденные объекты в пикселях исходного изображения.
func (d *GoCVDetector) Detect(ctx context.Context, imageData []byte) ([]entity.Detection, error) {
	frame, err := decodeFrame(imageData)
	if err != nil {
		return nil, err
	}
	defer frame.Close()

	if err := d.Quality.Check(measureQuality(frame)); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	output, err := d.forward(frame)
	if err != nil {
		return nil, err
	}
	defer output.Close()

	raw, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read model output: %w", err)
	}

	// Координаты сети относятся к квадрату InputSize; растягиваем обратно.
	scaleX := float64(frame.Cols()) / float64(d.InputSize)
	scaleY := float64(frame.Rows()) / float64(d.InputSize)
	candidates, err := parseYOLOOutput(raw, output.Size(), d.Classes, d.MinScore, scaleX, scaleY)
	if err != nil {
		return nil, err
	}

	return nonMaxSuppression(candidates, d.NMSThreshold), nil
}

func (d *GoCVDetector) forward(frame gocv.Mat) (gocv.Mat, error) {
	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(d.InputSize, d.InputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	if out.Empty() {
		out.Close()
		return gocv.NewMat(), errors.New("model returned empty output")
	}
	return out, nil
}

// HighlightDefects рисует рамки и подписи найденных объектов и возвращает JPEG.
func (d *GoCVDetector) HighlightDefects(imageData []byte, detections []entity.Detection) ([]byte, error) {
	frame, err := decodeFrame(imageData)
	if err != nil {
		return nil, err
	}
	defer frame.Close()

	boxColor := color.RGBA{R: 255, G: 64, A: 255}
	for _, det := range detections {
		box := det.Box.Clamp(frame.Cols(), frame.Rows())
		rect := image.Rect(int(box.X1), int(box.Y1), int(box.X2), int(box.Y2))
		gocv.Rectangle(&frame, rect, boxColor, 2)

		caption := fmt.Sprintf("%s %.2f", det.Label, det.Confidence)
		textY := rect.Min.Y - 6
		if textY < 14 {
			textY = rect.Min.Y + 14
		}
		gocv.PutText(&frame, caption, image.Pt(rect.Min.X, textY), gocv.FontHersheySimplex, 0.5, boxColor, 1)
	}

	img, err := frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return out.Bytes(), nil
}

// Close освобождает модель
func (d *GoCVDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

func decodeFrame(imageData []byte) (gocv.Mat, error) {
	frame, err := gocv.IMDecode(imageData, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("decode image: %w", err)
	}
	if frame.Empty() {
		frame.Close()
		return gocv.NewMat(), errors.New("decode image: empty result")
	}
	return frame, nil
}

// measureQuality считает доли «плохих» пикселей: границы Canny, пересвет, тени и блики.
func measureQuality(frame gocv.Mat) QualityMetrics {
	m := QualityMetrics{Width: frame.Cols(), Height: frame.Rows()}
	if frame.Empty() {
		return m
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	m.EdgeRatio = maskRatio(gray, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.Canny(src, dst, 80, 160)
	})
	m.OverexposedRatio = maskRatio(gray, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.Threshold(src, dst, 250, 255, gocv.ThresholdBinary)
	})
	m.UnderexposedRatio = maskRatio(gray, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.Threshold(src, dst, 20, 255, gocv.ThresholdBinaryInv)
	})
	m.GlareRatio = glareRatio(frame)
	return m
}

// glareRatio доля пикселей с низкой насыщенностью и высокой яркостью.
func glareRatio(frame gocv.Mat) float64 {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	channels := gocv.Split(hsv)
	defer func() {
		for i := range channels {
			channels[i].Close()
		}
	}()
	if len(channels) < 3 {
		return 1
	}

	pale := gocv.NewMat()
	defer pale.Close()
	gocv.Threshold(channels[1], &pale, 40, 255, gocv.ThresholdBinaryInv)

	bright := gocv.NewMat()
	defer bright.Close()
	gocv.Threshold(channels[2], &bright, 245, 255, gocv.ThresholdBinary)

	return maskRatio(pale, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.BitwiseAnd(src, bright, dst)
	})
}

func maskRatio(src gocv.Mat, build func(src gocv.Mat, dst *gocv.Mat)) float64 {
	mask := gocv.NewMat()
	defer mask.Close()
	build(src, &mask)

	total := mask.Cols() * mask.Rows()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(mask)) / float64(total)
}
