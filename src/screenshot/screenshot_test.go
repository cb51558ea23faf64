package screenshot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaptureRegionRejectsInvalidDimensions(t *testing.T) {
	_, err := NewScreenCapturer().Capture(context.Background(), Region{}, "")
	assert.Error(t, err)

	_, err = NewScreenCapturer().Capture(context.Background(), Region{Width: 10, Height: -1}, "")
	assert.Error(t, err)
}

func TestRegionFrac(t *testing.T) {
	r := Region{X: -1920, Y: 100, Width: 400, Height: 800}

	assert.Equal(t, Region{X: -1720, Y: 100, Width: 200, Height: 200}, r.Frac(0.5, 0, 1, 0.25))
	assert.Equal(t, Region{X: -1920, Y: 500, Width: 400, Height: 400}, r.Bottom(0.5))
	assert.Equal(t, Region{X: -1920, Y: 100, Width: 400, Height: 800}, r.Frac(-1, -1, 2, 2))
	assert.True(t, r.Frac(0.7, 0.5, 0.2, 0.1).Empty())
}

func TestRegionPoints(t *testing.T) {
	r := Region{X: 10, Y: 20, Width: 100, Height: 50}

	assert.Equal(t, Point{X: 60, Y: 45}, r.Center())
	assert.Equal(t, Point{X: 98, Y: 23}, r.At(0.88, 0.07))
}

func TestGetDisplayBounds(t *testing.T) {
	_, err := GetDisplayBounds()
	if err != nil {
		t.Logf("Failed to get display bounds (expected in headless environment): %v", err)
	}
}
