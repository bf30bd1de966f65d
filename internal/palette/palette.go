// Package palette derives a theme colour from a remote thumbnail.
package palette

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"

	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

// DefaultColor is used whenever no dominant colour can be derived.
var DefaultColor = color.RGBA{R: 0x29, G: 0xB9, B: 0x73, A: 0xFF}

// ErrNoDominantColor is returned for images made only of transparent or white pixels.
var ErrNoDominantColor = errors.New("image has no dominant colour")

const (
	defaultMaxImageBytes = 5 << 20
	sampleTarget         = 10000
	alphaCutoff          = 125
	whiteCutoff          = 250
)

// Fetcher downloads thumbnails and extracts their dominant colour.
type Fetcher struct {
	http     *http.Client
	maxBytes int64
	logger   *zap.Logger
}

// NewFetcher builds a Fetcher. A nil client means http.DefaultClient.
func NewFetcher(client *http.Client, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{http: client, maxBytes: defaultMaxImageBytes, logger: logger.Named("palette")}
}

// Fetch downloads and decodes the image at url (JPEG, PNG, GIF or WebP).
func (f *Fetcher) Fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	f.logger.Debug("thumbnail decoded", zap.String("format", format), zap.Int("bytes", len(data)))
	return img, nil
}

// ThemeColor returns the dominant colour of the image at url.
func (f *Fetcher) ThemeColor(ctx context.Context, url string) (color.RGBA, error) {
	img, err := f.Fetch(ctx, url)
	if err != nil {
		return DefaultColor, err
	}
	c, ok := Dominant(img)
	if !ok {
		return DefaultColor, ErrNoDominantColor
	}
	return c, nil
}

// Dominant buckets sampled pixels into a 5-bit-per-channel histogram, skipping
// transparent and near-white pixels, and returns the mean colour of the fullest bucket.
func Dominant(img image.Image) (color.RGBA, bool) {
	bounds := img.Bounds()
	step := 1
	if pixels := bounds.Dx() * bounds.Dy(); pixels > sampleTarget {
		step = int(math.Sqrt(float64(pixels) / sampleTarget))
	}

	counts := make([]int, 1<<15)
	sums := make([][3]int, 1<<15)
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A < alphaCutoff {
				continue
			}
			if c.R > whiteCutoff && c.G > whiteCutoff && c.B > whiteCutoff {
				continue
			}
			key := int(c.R>>3)<<10 | int(c.G>>3)<<5 | int(c.B>>3)
			counts[key]++
			sums[key][0] += int(c.R)
			sums[key][1] += int(c.G)
			sums[key][2] += int(c.B)
		}
	}

	best := -1
	for key, n := range counts {
		if n > 0 && (best < 0 || n > counts[best]) {
			best = key
		}
	}
	if best < 0 {
		return color.RGBA{}, false
	}
	n := counts[best]
	return color.RGBA{
		R: uint8(sums[best][0] / n),
		G: uint8(sums[best][1] / n),
		B: uint8(sums[best][2] / n),
		A: 0xFF,
	}, true
}

// Hex formats c as #RRGGBB.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}
