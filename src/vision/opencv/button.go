package opencv

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"kakao-autopilot/src/artifacts"
	"kakao-autopilot/src/screenshot"
	"kakao-autopilot/src/vision"
)

type Band int

const (
	Primary Band = iota
	Neutral
)

func (b Band) String() string {
	if b == Neutral {
		return "neutral"
	}
	return "primary"
}

// ButtonStrategy masks the bottom of the region by an HSV band and picks the
// largest button-shaped contour.
type ButtonStrategy struct {
	Capturer screenshot.Capturer
	Params   vision.ButtonParams
	Band     Band
	Sink     artifacts.Sink
}

func (s *ButtonStrategy) Name() string { return "color-button-" + s.Band.String() }

func (s *ButtonStrategy) band() vision.HSVBand {
	if s.Band == Neutral {
		return s.Params.Neutral
	}
	return s.Params.Primary
}

func (s *ButtonStrategy) Locate(ctx context.Context, region screenshot.Region) (vision.Candidate, error) {
	sub := region
	if s.Params.Bottom > 0 && s.Params.Bottom < 1 {
		sub = region.Bottom(s.Params.Bottom)
	}
	if sub.Empty() {
		return vision.Candidate{}, fmt.Errorf("%w: empty button region", vision.ErrNotFound)
	}
	src, img, err := grab(ctx, s.Capturer, sub)
	if err != nil {
		return vision.Candidate{}, err
	}
	defer src.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(src, &hsv, gocv.ColorBGRToHSV)

	b := s.band()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(hsv,
		gocv.NewScalar(b.Lower.H, b.Lower.S, b.Lower.V, 0),
		gocv.NewScalar(b.Upper.H, b.Upper.S, b.Upper.V, 0),
		&mask)

	bounds := img.Bounds()
	var kept []vision.Candidate
	var boxes []image.Rectangle
	var keptBoxes []image.Rectangle
	for _, bl := range contours(mask) {
		boxes = append(boxes, bl.box)
		if !s.Params.Keep(bl.area, bl.box.Dx(), bl.box.Dy()) {
			continue
		}
		keptBoxes = append(keptBoxes, bl.box)
		kept = append(kept, candidateFrom(sub, bounds.Dx(), bounds.Dy(), bl, s.Name()))
	}

	best, ok := vision.PickLargest(kept)
	if !ok {
		snapshot(ctx, s.Sink, "button_"+s.Band.String()+"_miss", src, boxes, nil, "no button")
		return vision.Candidate{}, fmt.Errorf("%w: no %s button", vision.ErrNotFound, s.Band)
	}
	for i, c := range kept {
		if c == best {
			p := center(keptBoxes[i])
			snapshot(ctx, s.Sink, "button_"+s.Band.String(), src, keptBoxes, &p, fmt.Sprintf("area %.0f", best.Score))
			break
		}
	}
	return best, nil
}
