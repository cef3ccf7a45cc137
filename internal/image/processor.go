package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "image-squeezer/internal/errors"
)

// OutputMIMEType is the only format the processor produces.
const OutputMIMEType = "image/jpeg"

// DefaultMaxPixels bounds the decoded surface when no limit is configured.
const DefaultMaxPixels = 64 << 20

// Processor decodes arbitrary images and re-encodes them as JPEG
type Processor struct {
	maxPixels int64
}

// NewProcessor creates a new image processor. Images whose header declares
// more than maxPixels pixels are refused before decoding; zero or less
// selects DefaultMaxPixels.
func NewProcessor(maxPixels int64) *Processor {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Processor{maxPixels: maxPixels}
}

// Metadata describes a decoded image without its pixels
type Metadata struct {
	Format string
	Width  int
	Height int
}

// Result is a re-encoded image
type Result struct {
	Data    []byte
	Width   int
	Height  int
	Quality int
}

// Size returns the encoded byte length
func (r *Result) Size() int64 {
	return int64(len(r.Data))
}

// Inspect reads only the image header
func (p *Processor) Inspect(data []byte) (*Metadata, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.WithCause(apperrors.ErrDecodeFailed, err)
	}
	if err := p.checkPixels(cfg); err != nil {
		return nil, err
	}
	return &Metadata{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// checkPixels refuses surfaces the decoder would have to allocate beyond the
// configured limit. The header is trusted only for this check.
func (p *Processor) checkPixels(cfg image.Config) error {
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > p.maxPixels {
		return apperrors.WithCause(apperrors.ErrImageTooLarge,
			fmt.Errorf("%dx%d exceeds %d pixels", cfg.Width, cfg.Height, p.maxPixels))
	}
	return nil
}

// Compress decodes data into a pixel surface at its native size and encodes
// it as JPEG. factor is a quality factor in (0,1].
func (p *Processor) Compress(ctx context.Context, data []byte, factor float64) (*Result, error) {
	quality, err := QualityFromFactor(factor)
	if err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.WithCause(apperrors.ErrDecodeFailed, err)
	}
	if err := p.checkPixels(cfg); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.WithCause(apperrors.ErrDecodeFailed, err)
	}

	// Skip the encode if the caller went away during decode
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	surface := flatten(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, surface, &jpeg.Options{Quality: quality}); err != nil {
		return nil, apperrors.WithCause(apperrors.ErrEncodeFailed, err)
	}

	b := surface.Bounds()
	return &Result{
		Data:    buf.Bytes(),
		Width:   b.Dx(),
		Height:  b.Dy(),
		Quality: quality,
	}, nil
}

// flatten draws img onto an opaque black surface of the same size. JPEG has
// no alpha channel, so transparent pixels come out black like a canvas export.
func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	surface := imaging.New(b.Dx(), b.Dy(), color.Black)
	return imaging.Overlay(surface, img, image.Pt(0, 0), 1.0)
}

// QualityFromFactor maps a factor in (0,1] to the encoder's 1..100 scale.
func QualityFromFactor(factor float64) (int, error) {
	if math.IsNaN(factor) || factor <= 0 || factor > 1 {
		return 0, fmt.Errorf("quality factor %v: %w", factor, apperrors.ErrInvalidQuality)
	}
	q := int(math.Round(factor * 100))
	if q < 1 {
		q = 1
	}
	return q, nil
}
