package imageprocessor

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
	"go.uber.org/zap"
)

// facefinder is the frontal-face cascade shipped with pigo (MIT).
//
//go:embed cascade/facefinder
var facefinder []byte

// PigoParams tunes the cascade scan.
type PigoParams struct {
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	MinQuality   float32
}

// DefaultPigoParams mirrors the usual frontal-face setup.
func DefaultPigoParams() PigoParams {
	return PigoParams{
		MinSize:      40,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5.0,
	}
}

// PigoDetector runs a pigo pixel-intensity-comparison cascade over the image
// at multiple scales.
type PigoDetector struct {
	classifier *pigo.Pigo
	params     PigoParams
}

// LoadPigoDetector reads a cascade file from disk.
func LoadPigoDetector(path string, params PigoParams) (*PigoDetector, error) {
	cascade, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read face cascade: %w", err)
	}
	return NewPigoDetector(cascade, params)
}

// LoadPigoDetectorOrDefault loads the cascade at path, falling back to the
// bundled facefinder cascade when path is empty or unusable.
func LoadPigoDetectorOrDefault(path string, params PigoParams, logger *zap.Logger) (*PigoDetector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != "" {
		detector, err := LoadPigoDetector(path, params)
		if err == nil {
			return detector, nil
		}
		logger.Warn("face cascade unusable, using bundled cascade", zap.String("path", path), zap.Error(err))
	}
	return DefaultPigoDetector(params)
}

// DefaultPigoDetector unpacks the bundled facefinder cascade.
func DefaultPigoDetector(params PigoParams) (*PigoDetector, error) {
	return NewPigoDetector(facefinder, params)
}

// NewPigoDetector unpacks a binary cascade.
func NewPigoDetector(cascade []byte, params PigoParams) (*PigoDetector, error) {
	// pigo indexes the header without bounds checks.
	if len(cascade) < 16 {
		return nil, errors.New("face cascade is truncated")
	}
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack face cascade: %w", err)
	}
	return &PigoDetector{classifier: classifier, params: params}, nil
}

// Detect implements Detector.
func (d *PigoDetector) Detect(ctx context.Context, gray *image.Gray) ([]image.Rectangle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cols, rows := gray.Bounds().Dx(), gray.Bounds().Dy()
	maxSize := d.params.MaxSize
	if maxSize <= 0 {
		maxSize = max(cols, rows)
	}

	dets := d.classifier.RunCascade(pigo.CascadeParams{
		MinSize:     d.params.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: d.params.ShiftFactor,
		ScaleFactor: d.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: gray.Pix,
			Rows:   rows,
			Cols:   cols,
			Dim:    gray.Stride,
		},
	}, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.params.IoUThreshold)

	faces := make([]image.Rectangle, 0, len(dets))
	for _, det := range dets {
		if det.Q < d.params.MinQuality {
			continue
		}
		half := det.Scale / 2
		faces = append(faces, image.Rect(det.Col-half, det.Row-half, det.Col-half+det.Scale, det.Row-half+det.Scale))
	}
	return faces, nil
}
