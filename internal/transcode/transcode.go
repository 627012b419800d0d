// Package transcode shrinks images through a best-effort re-encode chain.
//
// A candidate encoding replaces the original only when it beats that
// format's size-ratio threshold; otherwise the original bytes and MIME are
// kept verbatim, so the chain can never corrupt or grow an asset.
package transcode

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// Config holds the tuning knobs of the compression chain. The defaults are
// long-lived product constants; treat them as given rather than optimal.
type Config struct {
	MaxLongEdge   int
	WebPQuality   float32
	JPEGQuality   int
	WebPThreshold float64
	JPEGThreshold float64
	PNGThreshold  float64
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		MaxLongEdge:   2048,
		WebPQuality:   80,
		JPEGQuality:   85,
		WebPThreshold: 0.95,
		JPEGThreshold: 0.98,
		PNGThreshold:  0.98,
	}
}

// Compressor re-encodes images with size thresholds per target format.
type Compressor struct {
	cfg    Config
	logger *zap.Logger
}

// New constructs a Compressor.
func New(cfg Config, logger *zap.Logger) *Compressor {
	return &Compressor{cfg: cfg, logger: logger}
}

// candidate is one re-encode attempt's outcome; never persisted.
type candidate struct {
	bytes []byte
	mime  string
	ratio float64
}

// Compress decodes, optionally resizes, and re-encodes data. It returns the
// winning candidate's bytes and MIME, or the originals when no candidate
// clears its threshold. An undecodable input is an error; everything past
// decoding degrades to "keep original".
func (c *Compressor) Compress(data []byte, mime string) ([]byte, string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	work := c.resizeIfNecessary(img)
	originalSize := len(data)

	attempts := []struct {
		mime      string
		threshold float64
		encode    func(image.Image) ([]byte, error)
	}{
		{"image/webp", c.cfg.WebPThreshold, c.encodeWebP},
		{"image/jpeg", c.cfg.JPEGThreshold, c.encodeJPEG},
		{"image/png", c.cfg.PNGThreshold, c.encodePNG},
	}

	for _, att := range attempts {
		encoded, err := att.encode(work)
		if err != nil {
			c.logger.Warn("encode candidate failed",
				zap.String("mime", att.mime), zap.Error(err))
			continue
		}
		if len(encoded) == 0 {
			continue
		}
		cand := candidate{
			bytes: encoded,
			mime:  att.mime,
			ratio: float64(len(encoded)) / float64(originalSize),
		}
		if cand.ratio < att.threshold {
			c.logger.Info("compression candidate adopted",
				zap.String("mime", cand.mime),
				zap.Int("original_bytes", originalSize),
				zap.Int("final_bytes", len(cand.bytes)),
				zap.Int("ratio_pct", int(math.Round(cand.ratio*100))))
			return cand.bytes, cand.mime, nil
		}
		c.logger.Debug("compression candidate rejected",
			zap.String("mime", cand.mime),
			zap.Int("ratio_pct", int(math.Round(cand.ratio*100))))
	}

	c.logger.Info("no compression gain, keeping original",
		zap.Int("bytes", originalSize), zap.String("mime", mime))
	return data, mime, nil
}

// resizeIfNecessary scales the image down, preserving aspect ratio, when
// the longer edge exceeds the configured cap.
func (c *Compressor) resizeIfNecessary(img image.Image) image.Image {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	longEdge := w
	if h > longEdge {
		longEdge = h
	}
	if longEdge <= c.cfg.MaxLongEdge {
		return img
	}

	scale := float64(c.cfg.MaxLongEdge) / float64(longEdge)
	newW := int(math.Round(float64(w) * scale))
	newH := int(math.Round(float64(h) * scale))

	resized := imaging.Resize(img, newW, newH, imaging.CatmullRom)
	c.logger.Info("image resized",
		zap.Int("from_w", w), zap.Int("from_h", h),
		zap.Int("to_w", newW), zap.Int("to_h", newH))
	return resized
}

func (c *Compressor) encodeWebP(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: c.cfg.WebPQuality}); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeJPEG flattens any alpha channel onto a white background first; JPEG
// has no transparency and would otherwise render black.
func (c *Compressor) encodeJPEG(img image.Image) ([]byte, error) {
	flattened := flattenOntoWhite(img)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flattened, &jpeg.Options{Quality: c.cfg.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Compressor) encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func flattenOntoWhite(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, b, src, b.Min, draw.Over)
	return dst
}
