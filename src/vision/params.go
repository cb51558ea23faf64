package vision

import (
	"context"
	"fmt"

	"kakao-autopilot/src/screenshot"
)

// Window is a fractional sub-rectangle of a region.
type Window struct {
	Left   float64 `yaml:"left"`
	Top    float64 `yaml:"top"`
	Right  float64 `yaml:"right"`
	Bottom float64 `yaml:"bottom"`
}

func (w Window) Apply(r screenshot.Region) screenshot.Region {
	return r.Frac(w.Left, w.Top, w.Right, w.Bottom)
}

// Inset trims fractions off each edge of a region.
type Inset struct {
	Left   float64 `yaml:"left"`
	Top    float64 `yaml:"top"`
	Right  float64 `yaml:"right"`
	Bottom float64 `yaml:"bottom"`
}

func (i Inset) Window() Window {
	return Window{Left: i.Left, Top: i.Top, Right: 1 - i.Right, Bottom: 1 - i.Bottom}
}

type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// IconParams drives the contour icon search.
type IconParams struct {
	Window Window `yaml:"window"`
	Area   Range  `yaml:"area"`
	Aspect Range  `yaml:"aspect"`
}

func DefaultIconParams() IconParams {
	return IconParams{
		Window: Window{Left: 0.5, Top: 0, Right: 1, Bottom: 0.25},
		Area:   Range{Min: 80, Max: 2500},
		Aspect: Range{Min: 0.6, Max: 1.6},
	}
}

// HSV bounds use OpenCV's 8-bit ranges: H in [0,180], S and V in [0,255].
type HSV struct {
	H float64 `yaml:"h"`
	S float64 `yaml:"s"`
	V float64 `yaml:"v"`
}

type HSVBand struct {
	Lower HSV `yaml:"lower"`
	Upper HSV `yaml:"upper"`
}

type ButtonParams struct {
	Primary  HSVBand `yaml:"primary"`
	Neutral  HSVBand `yaml:"neutral"`
	Bottom   float64 `yaml:"bottom"`
	MinArea  float64 `yaml:"min_area"`
	MinWidth int     `yaml:"min_width"`
	Aspect   Range   `yaml:"aspect"`
}

func DefaultButtonParams() ButtonParams {
	return ButtonParams{
		Primary:  HSVBand{Lower: HSV{H: 20, S: 120, V: 180}, Upper: HSV{H: 35, S: 255, V: 255}},
		Neutral:  HSVBand{Lower: HSV{H: 0, S: 0, V: 200}, Upper: HSV{H: 180, S: 30, V: 245}},
		Bottom:   0.5,
		MinArea:  400,
		MinWidth: 40,
		Aspect:   Range{Min: 1.5, Max: 8},
	}
}

type TemplateParams struct {
	Threshold float64 `yaml:"threshold"`
	Margin    float64 `yaml:"margin"`
}

func DefaultTemplateParams() TemplateParams {
	return TemplateParams{Threshold: 0.7, Margin: 0.05}
}

// Offset is the coordinate heuristic: a fixed relative point inside the region.
// It never fails once the region is known, which makes it the last resort.
type Offset struct {
	FX float64 `yaml:"fx"`
	FY float64 `yaml:"fy"`
}

func (o Offset) Name() string { return "coordinate-heuristic" }

func (o Offset) Locate(ctx context.Context, region screenshot.Region) (Candidate, error) {
	if region.Empty() {
		return Candidate{}, fmt.Errorf("%w: empty region", ErrNotFound)
	}
	return Candidate{Point: region.At(o.FX, o.FY), Label: o.Name()}, nil
}

func aspect(w, h int) float64 {
	if h <= 0 {
		return 0
	}
	return float64(w) / float64(h)
}

// Keep reports whether a contour with the given area and bounding size can be the icon.
func (p IconParams) Keep(area float64, w, h int) bool {
	return p.Area.Contains(area) && p.Aspect.Contains(aspect(w, h))
}

// Keep reports whether a masked contour is shaped like a button.
func (p ButtonParams) Keep(area float64, w, h int) bool {
	return area >= p.MinArea && w >= p.MinWidth && p.Aspect.Contains(aspect(w, h))
}
