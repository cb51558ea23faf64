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

// IconStrategy finds a small glyph (the add-friend icon) by Otsu binarization
// and external contours inside a fractional window of the region.
type IconStrategy struct {
	Capturer screenshot.Capturer
	Params   vision.IconParams
	Sink     artifacts.Sink
	Label    string
}

func (s *IconStrategy) Name() string { return "contour-icon" }

func (s *IconStrategy) Locate(ctx context.Context, region screenshot.Region) (vision.Candidate, error) {
	sub := s.Params.Window.Apply(region)
	if sub.Empty() {
		return vision.Candidate{}, fmt.Errorf("%w: empty icon window", vision.ErrNotFound)
	}
	src, img, err := grab(ctx, s.Capturer, sub)
	if err != nil {
		return vision.Candidate{}, err
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(gray, &bin, 0, 255, gocv.ThresholdBinaryInv|gocv.ThresholdOtsu)

	bounds := img.Bounds()
	var kept []vision.Candidate
	var boxes []image.Rectangle
	for _, b := range contours(bin) {
		if !s.Params.Keep(b.area, b.box.Dx(), b.box.Dy()) {
			continue
		}
		boxes = append(boxes, b.box)
		kept = append(kept, candidateFrom(sub, bounds.Dx(), bounds.Dy(), b, s.Label))
	}

	best, ok := vision.PickRightmost(kept)
	if !ok {
		snapshot(ctx, s.Sink, "icon_miss", src, boxes, nil, "no icon")
		return vision.Candidate{}, fmt.Errorf("%w: no contour passed the icon filter", vision.ErrNotFound)
	}
	for i, c := range kept {
		if c == best {
			p := center(boxes[i])
			snapshot(ctx, s.Sink, "icon", src, boxes, &p, fmt.Sprintf("%d candidates", len(kept)))
			break
		}
	}
	return best, nil
}
