// Package vision ranks located UI elements and chains locate strategies.
// The OpenCV-backed strategies live in vision/opencv.
package vision

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"kakao-autopilot/src/screenshot"
)

var (
	ErrNotFound = errors.New("element not found")
	ErrTimeout  = errors.New("element search timed out")
)

// Candidate is a located point proposed by a strategy, in screen coordinates.
type Candidate struct {
	Point screenshot.Point `json:"point"`
	// Score is the correlation score for template matches and the contour area otherwise.
	Score float64           `json:"score"`
	Box   screenshot.Region `json:"box"`
	Label string            `json:"label,omitempty"`
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s@(%d,%d) score=%.3f", c.Label, c.Point.X, c.Point.Y, c.Score)
}

// Strategy locates one element inside a region or returns ErrNotFound / ErrTimeout.
type Strategy interface {
	Name() string
	Locate(ctx context.Context, region screenshot.Region) (Candidate, error)
}

// Chain tries strategies in order and stops at the first success.
type Chain []Strategy

// Locate returns the first candidate and the name of the strategy that produced it.
// Exhausting the chain yields ErrNotFound wrapping every strategy's failure.
func (c Chain) Locate(ctx context.Context, region screenshot.Region) (Candidate, string, error) {
	var failures []string
	for _, s := range c {
		if err := ctx.Err(); err != nil {
			return Candidate{}, "", err
		}
		cand, err := s.Locate(ctx, region)
		if err == nil {
			return cand, s.Name(), nil
		}
		failures = append(failures, fmt.Sprintf("%s: %v", s.Name(), err))
	}
	if len(failures) == 0 {
		return Candidate{}, "", ErrNotFound
	}
	return Candidate{}, "", fmt.Errorf("%w (%s)", ErrNotFound, strings.Join(failures, "; "))
}

// Names lists the strategies in order.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name()
	}
	return names
}

// PickRightmost orders icon candidates right-most first, then smallest area.
func PickRightmost(cands []Candidate) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	sorted := append([]Candidate(nil), cands...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Point.X != sorted[j].Point.X {
			return sorted[i].Point.X > sorted[j].Point.X
		}
		return sorted[i].Score < sorted[j].Score
	})
	return sorted[0], true
}

// PickLargest returns the candidate with the largest area; the earliest wins ties.
func PickLargest(cands []Candidate) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}

// Accept reports whether a correlation score clears the threshold. Equal is accepted.
func Accept(score, threshold float64) bool {
	return score >= threshold
}

// FitWithin scales (w,h) down to fit inside (maxW,maxH) shrunk by margin,
// preserving aspect ratio. It reports whether scaling was needed.
func FitWithin(w, h, maxW, maxH int, margin float64) (int, int, bool) {
	if w <= maxW && h <= maxH {
		return w, h, false
	}
	limitW := float64(maxW) * (1 - margin)
	limitH := float64(maxH) * (1 - margin)
	scale := math.Min(limitW/float64(w), limitH/float64(h))
	nw := int(math.Floor(float64(w) * scale))
	nh := int(math.Floor(float64(h) * scale))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh, true
}

// ToScreen maps a pixel in a captured image back to screen coordinates.
// Captures can be denser than screen points (HiDPI), so pixels are rescaled.
func ToScreen(region screenshot.Region, imgW, imgH int, px, py int) screenshot.Point {
	sx, sy := 1.0, 1.0
	if imgW > 0 && region.Width > 0 {
		sx = float64(region.Width) / float64(imgW)
	}
	if imgH > 0 && region.Height > 0 {
		sy = float64(region.Height) / float64(imgH)
	}
	return screenshot.Point{
		X: region.X + int(math.Round(float64(px)*sx)),
		Y: region.Y + int(math.Round(float64(py)*sy)),
	}
}
