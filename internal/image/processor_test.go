package image

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	apperrors "image-squeezer/internal/errors"
)

func noisyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{
				R: uint8(rng.Intn(256)),
				G: uint8((x * 255) / w),
				B: uint8((y * 255) / h),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestCompress_PreservesDimensions(t *testing.T) {
	p := NewProcessor(0)
	sizes := [][2]int{{1, 1}, {17, 3}, {64, 48}, {3, 129}}

	for _, sz := range sizes {
		data := noisyPNG(t, sz[0], sz[1])
		res, err := p.Compress(context.Background(), data, 0.8)
		if err != nil {
			t.Fatalf("Compress(%dx%d) error = %v", sz[0], sz[1], err)
		}
		if res.Width != sz[0] || res.Height != sz[1] {
			t.Errorf("result = %dx%d, want %dx%d", res.Width, res.Height, sz[0], sz[1])
		}

		decoded, err := jpeg.Decode(bytes.NewReader(res.Data))
		if err != nil {
			t.Fatalf("output is not a JPEG: %v", err)
		}
		if b := decoded.Bounds(); b.Dx() != sz[0] || b.Dy() != sz[1] {
			t.Errorf("decoded output = %dx%d, want %dx%d", b.Dx(), b.Dy(), sz[0], sz[1])
		}
	}
}

func TestCompress_LowerQualityIsSmaller(t *testing.T) {
	p := NewProcessor(0)
	data := noisyPNG(t, 128, 128)

	low, err := p.Compress(context.Background(), data, 0.1)
	if err != nil {
		t.Fatalf("Compress(0.1) error = %v", err)
	}
	high, err := p.Compress(context.Background(), data, 0.95)
	if err != nil {
		t.Fatalf("Compress(0.95) error = %v", err)
	}
	if low.Size() > high.Size() {
		t.Errorf("size at q=10 (%d) > size at q=95 (%d)", low.Size(), high.Size())
	}
	if low.Quality != 10 || high.Quality != 95 {
		t.Errorf("qualities = %d/%d, want 10/95", low.Quality, high.Quality)
	}
}

func TestCompress_TransparentBecomesBlack(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	res, err := NewProcessor(0).Compress(context.Background(), buf.Bytes(), 1)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	out, err := jpeg.Decode(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	r, g, b, _ := out.At(4, 4).RGBA()
	if r>>8 > 8 || g>>8 > 8 || b>>8 > 8 {
		t.Errorf("pixel = (%d,%d,%d), want near black", r>>8, g>>8, b>>8)
	}
}

func TestCompress_DecodeFailure(t *testing.T) {
	p := NewProcessor(0)
	for _, data := range [][]byte{nil, []byte("definitely not an image")} {
		_, err := p.Compress(context.Background(), data, 0.8)
		if !errors.Is(err, apperrors.ErrDecodeFailed) {
			t.Errorf("Compress(%q) error = %v, want ErrDecodeFailed", data, err)
		}
	}
}

func TestCompress_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewProcessor(0).Compress(ctx, noisyPNG(t, 4, 4), 0.5)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Compress() error = %v, want context.Canceled", err)
	}
}

func TestInspect(t *testing.T) {
	p := NewProcessor(0)
	meta, err := p.Inspect(noisyPNG(t, 31, 7))
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if meta.Format != "png" || meta.Width != 31 || meta.Height != 7 {
		t.Errorf("Inspect() = %+v, want png 31x7", meta)
	}

	if _, err := p.Inspect([]byte{0x00}); !errors.Is(err, apperrors.ErrDecodeFailed) {
		t.Errorf("Inspect(garbage) error = %v, want ErrDecodeFailed", err)
	}
}

// pngHeader returns a PNG signature and IHDR chunk declaring w x h RGBA
// pixels, with no image data behind it.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // truecolor with alpha

	chunk := append([]byte("IHDR"), ihdr...)
	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestCompress_RefusesOversizedHeader(t *testing.T) {
	data := pngHeader(60000, 60000)
	p := NewProcessor(0)

	if _, err := p.Compress(context.Background(), data, 0.8); !errors.Is(err, apperrors.ErrImageTooLarge) {
		t.Errorf("Compress() error = %v, want ErrImageTooLarge", err)
	}
	if _, err := p.Inspect(data); !errors.Is(err, apperrors.ErrImageTooLarge) {
		t.Errorf("Inspect() error = %v, want ErrImageTooLarge", err)
	}
}

func TestCompress_MaxPixels(t *testing.T) {
	data := noisyPNG(t, 16, 16)

	if _, err := NewProcessor(255).Compress(context.Background(), data, 0.8); !errors.Is(err, apperrors.ErrImageTooLarge) {
		t.Errorf("Compress() under a 255 pixel limit error = %v, want ErrImageTooLarge", err)
	}
	if _, err := NewProcessor(256).Compress(context.Background(), data, 0.8); err != nil {
		t.Errorf("Compress() at the 256 pixel limit error = %v", err)
	}
}

func TestQualityFromFactor(t *testing.T) {
	tests := []struct {
		factor  float64
		want    int
		wantErr bool
	}{
		{1, 100, false},
		{0.8, 80, false},
		{0.01, 1, false},
		{0.004, 1, false},
		{0.555, 56, false},
		{0, 0, true},
		{-0.5, 0, true},
		{1.01, 0, true},
	}

	for _, tt := range tests {
		got, err := QualityFromFactor(tt.factor)
		if (err != nil) != tt.wantErr {
			t.Errorf("QualityFromFactor(%v) error = %v, wantErr %v", tt.factor, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, apperrors.ErrInvalidQuality) {
			t.Errorf("QualityFromFactor(%v) error = %v, want ErrInvalidQuality", tt.factor, err)
		}
		if got != tt.want {
			t.Errorf("QualityFromFactor(%v) = %d, want %d", tt.factor, got, tt.want)
		}
	}
}
