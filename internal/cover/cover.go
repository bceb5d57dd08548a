// Package cover downloads a book cover and tiles it into a wide image
// suitable for a social media post.
package cover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
)

const (
	// CoverFile is the downloaded cover, kept next to the tiled image.
	CoverFile = "cover.jpg"
	// TiledFile is the composite that gets posted.
	TiledFile = "cover_tiled.jpg"

	defaultHeight      = 220
	defaultAspect      = 2.25
	defaultQuality     = 85
	maxDownloadBytes   = 10 << 20
	defaultHTTPTimeout = 30 * time.Second
)

// ErrEmptyImage is returned when the downloaded cover has no pixels.
var ErrEmptyImage = errors.New("cover image has zero width or height")

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Compositor builds tiled cover images inside a working directory.
type Compositor struct {
	dir        string
	httpClient HTTPDoer
	height     int
	aspect     float64
	quality    int
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(comp *Compositor) {
		if c != nil {
			comp.httpClient = c
		}
	}
}

// WithHeight sets the height the cover is scaled to.
func WithHeight(height int) Option {
	return func(comp *Compositor) {
		if height > 0 {
			comp.height = height
		}
	}
}

// WithAspect sets the target width to height ratio of the tiled image.
func WithAspect(aspect float64) Option {
	return func(comp *Compositor) {
		if aspect > 0 {
			comp.aspect = aspect
		}
	}
}

// New creates a Compositor writing into dir.
func New(dir string, opts ...Option) *Compositor {
	c := &Compositor{
		dir:        dir,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		height:     defaultHeight,
		aspect:     defaultAspect,
		quality:    defaultQuality,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the working directory.
func (c *Compositor) Dir() string {
	return c.dir
}

// EnsureDir creates the working directory and checks that it is writable.
func (c *Compositor) EnsureDir() error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	probe, err := os.CreateTemp(c.dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("artifact directory %s is not writable: %w", c.dir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

// Cleanup removes images left over from a previous cycle.
func (c *Compositor) Cleanup() error {
	var errs []error
	for _, name := range []string{CoverFile, TiledFile} {
		err := os.Remove(filepath.Join(c.dir, name))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildCoverArt downloads the cover at imageURL and writes the tiled
// composite. It returns the path of the composite.
func (c *Compositor) BuildCoverArt(ctx context.Context, imageURL string) (string, error) {
	data, err := c.download(ctx, imageURL)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(c.dir, CoverFile), data, 0o644); err != nil {
		return "", fmt.Errorf("saving cover: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decoding cover: %w", err)
	}

	tiled, err := Tile(img, c.height, c.aspect)
	if err != nil {
		return "", err
	}

	// re-encoding drops any embedded color profile or EXIF data
	out := filepath.Join(c.dir, TiledFile)
	if err := imaging.Save(tiled, out, imaging.JPEGQuality(c.quality)); err != nil {
		return "", fmt.Errorf("saving tiled cover: %w", err)
	}

	slog.Info("Tiled the cover", "path", out, "width", tiled.Bounds().Dx(), "height", tiled.Bounds().Dy())
	return out, nil
}

func (c *Compositor) download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating cover request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download cover: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d downloading cover from %s", resp.StatusCode, imageURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("reading cover: %w", err)
	}
	return data, nil
}

// Tile scales img to height and repeats it horizontally until the result
// is roughly aspect times as wide as it is high. Extra copies are
// ceil(h*aspect/w)-1, computed on the source dimensions.
func Tile(img image.Image, height int, aspect float64) (*image.NRGBA, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyImage
	}

	copies := int(math.Ceil(float64(h) * aspect / float64(w)))
	if copies < 1 {
		copies = 1
	}

	scaled := imaging.Resize(img, 0, height, imaging.Lanczos)
	sw, sh := scaled.Bounds().Dx(), scaled.Bounds().Dy()

	out := imaging.New(sw*copies, sh, color.White)
	for i := range copies {
		out = imaging.Paste(out, scaled, image.Pt(i*sw, 0))
	}
	return out, nil
}
