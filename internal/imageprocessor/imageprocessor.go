package imageprocessor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/domain"
)

// MaxPixels bounds the decoded canvas; headers claiming more are rejected
// before any pixel buffer is allocated.
const MaxPixels = 40_000_000

// Detector finds faces in a single-channel image whose bounds start at the
// origin. Results are returned in the detector's own order.
type Detector interface {
	Detect(ctx context.Context, gray *image.Gray) ([]image.Rectangle, error)
}

// FaceCropper cuts the first detected face out of an uploaded photo.
type FaceCropper struct {
	detector Detector
	logger   *zap.Logger
}

// NewFaceCropper wires a cropper to a detector.
func NewFaceCropper(detector Detector, logger *zap.Logger) *FaceCropper {
	return &FaceCropper{detector: detector, logger: logger.Named("face_cropper")}
}

// Crop decodes data, detects faces and returns the first face region of the
// colour image encoded as PNG.
func (c *FaceCropper) Crop(ctx context.Context, data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: unable to decode image: %v", domain.ErrValidation, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: unsupported image dimensions %dx%d", domain.ErrValidation, cfg.Width, cfg.Height)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: unable to decode image: %v", domain.ErrValidation, err)
	}

	bounds := src.Bounds()
	gray := Grayscale(src)
	faces, err := c.detector.Detect(ctx, gray)
	if err != nil {
		return nil, fmt.Errorf("face detection: %w", err)
	}
	if len(faces) == 0 {
		return nil, domain.ErrNoFace
	}

	box := faces[0].Add(bounds.Min).Intersect(bounds)
	if box.Empty() {
		return nil, domain.ErrNoFace
	}
	c.logger.Debug("face detected",
		zap.String("format", format),
		zap.Int("faces", len(faces)),
		zap.Stringer("box", box))

	face := image.NewNRGBA(image.Rect(0, 0, box.Dx(), box.Dy()))
	draw.Draw(face, face.Bounds(), src, box.Min, draw.Src)

	var out bytes.Buffer
	if err := png.Encode(&out, face); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return out.Bytes(), nil
}

// Grayscale converts img to luminance with bounds moved to the origin.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
