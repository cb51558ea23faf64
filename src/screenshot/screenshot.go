package screenshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/kbinani/screenshot"
)

// DefaultCaptureTimeout bounds a single OS capture call.
const DefaultCaptureTimeout = 10 * time.Second

var ErrCaptureTimeout = errors.New("screen capture timed out")

// Region is a screen rectangle in virtual-screen pixel coordinates.
// X and Y may be negative on multi-monitor setups.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (r Region) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Frac returns the sub-region spanning the given fractions of width and height.
// Fractions are clamped to [0,1].
func (r Region) Frac(left, top, right, bottom float64) Region {
	left, top, right, bottom = clamp01(left), clamp01(top), clamp01(right), clamp01(bottom)
	if right < left {
		right = left
	}
	if bottom < top {
		bottom = top
	}
	x0 := r.X + int(float64(r.Width)*left)
	y0 := r.Y + int(float64(r.Height)*top)
	x1 := r.X + int(float64(r.Width)*right)
	y1 := r.Y + int(float64(r.Height)*bottom)
	return Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Bottom returns the lower fraction of the region.
func (r Region) Bottom(fraction float64) Region {
	return r.Frac(0, 1-fraction, 1, 1)
}

// At returns the point at fractional offsets inside the region.
func (r Region) At(fx, fy float64) Point {
	return Point{X: r.X + int(float64(r.Width)*clamp01(fx)), Y: r.Y + int(float64(r.Height)*clamp01(fy))}
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// GetDisplayBounds returns the bounds of the primary display
func GetDisplayBounds() (image.Rectangle, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	return screenshot.GetDisplayBounds(0), nil
}

// PrimaryRegion returns the primary display as a Region.
func PrimaryRegion() (Region, error) {
	b, err := GetDisplayBounds()
	if err != nil {
		return Region{}, err
	}
	return Region{X: b.Min.X, Y: b.Min.Y, Width: b.Dx(), Height: b.Dy()}, nil
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func captureRect(region Region) (*image.RGBA, error) {
	if region.Empty() {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", region.Width, region.Height)
	}
	img, err := screenshot.CaptureRect(region.Rect())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %w", err)
	}
	return img, nil
}

// Capturer produces a raster image of a screen region.
type Capturer interface {
	Capture(ctx context.Context, region Region, dest string) (image.Image, error)
}

// ScreenCapturer captures through the OS facility and persists each shot as PNG.
type ScreenCapturer struct {
	Timeout time.Duration
	// TempDir receives generated files when no destination is given.
	TempDir string
}

func NewScreenCapturer() *ScreenCapturer {
	return &ScreenCapturer{Timeout: DefaultCaptureTimeout}
}

// Capture grabs region, writes it to dest (or a generated temp file) and returns the image.
// Errors are propagated; retry is the caller's job.
func (c *ScreenCapturer) Capture(ctx context.Context, region Region, dest string) (image.Image, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCaptureTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resCh := make(chan struct {
		img *image.RGBA
		err error
	}, 1)
	go func() {
		img, err := captureRect(region)
		resCh <- struct {
			img *image.RGBA
			err error
		}{img, err}
	}()

	var img *image.RGBA
	select {
	case r := <-resCh:
		if r.err != nil {
			return nil, r.err
		}
		img = r.img
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrCaptureTimeout, timeout)
		}
		return nil, ctx.Err()
	}

	if err := c.persist(img, dest); err != nil {
		return nil, err
	}
	return img, nil
}

func (c *ScreenCapturer) persist(img image.Image, dest string) error {
	data, err := EncodePNG(img)
	if err != nil {
		return err
	}
	if dest == "" {
		f, err := os.CreateTemp(c.TempDir, "capture-*.png")
		if err != nil {
			return fmt.Errorf("create capture file: %w", err)
		}
		defer os.Remove(f.Name())
		defer f.Close()
		_, err = f.Write(data)
		return err
	}
	return os.WriteFile(dest, data, 0o600)
}
