package opencv

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/nfnt/resize"
	"github.com/vcaesar/imgo"
	"gocv.io/x/gocv"

	"kakao-autopilot/src/artifacts"
	"kakao-autopilot/src/screenshot"
	"kakao-autopilot/src/vision"
)

// TemplateStrategy correlates a reference image against the region in grayscale.
type TemplateStrategy struct {
	Capturer screenshot.Capturer
	Path     string
	Params   vision.TemplateParams
	Sink     artifacts.Sink

	once sync.Once
	tmpl image.Image
	err  error
}

func (s *TemplateStrategy) Name() string { return "template" }

func (s *TemplateStrategy) load() (image.Image, error) {
	s.once.Do(func() {
		s.tmpl, s.err = imgo.Read(s.Path)
		if s.err != nil {
			s.err = fmt.Errorf("failed to read template %s: %w", s.Path, s.err)
		}
	})
	return s.tmpl, s.err
}

// fit downscales tmpl when it does not fit inside a w x h search image.
func fit(tmpl image.Image, w, h int, margin float64) image.Image {
	b := tmpl.Bounds()
	nw, nh, scaled := vision.FitWithin(b.Dx(), b.Dy(), w, h, margin)
	if !scaled {
		return tmpl
	}
	log.Printf("vision: template %dx%d downscaled to %dx%d", b.Dx(), b.Dy(), nw, nh)
	return resize.Resize(uint(nw), uint(nh), tmpl, resize.Lanczos3)
}

func (s *TemplateStrategy) Locate(ctx context.Context, region screenshot.Region) (vision.Candidate, error) {
	tmpl, err := s.load()
	if err != nil {
		return vision.Candidate{}, err
	}
	src, img, err := grab(ctx, s.Capturer, region)
	if err != nil {
		return vision.Candidate{}, err
	}
	defer src.Close()
	bounds := img.Bounds()

	tmpl = fit(tmpl, bounds.Dx(), bounds.Dy(), s.Params.Margin)
	tmat, err := gocv.ImageToMatRGB(tmpl)
	if err != nil {
		return vision.Candidate{}, fmt.Errorf("convert template: %w", err)
	}
	defer tmat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	tgray := gocv.NewMat()
	defer tgray.Close()
	gocv.CvtColor(tmat, &tgray, gocv.ColorBGRToGray)

	if tgray.Cols() > gray.Cols() || tgray.Rows() > gray.Rows() {
		return vision.Candidate{}, fmt.Errorf("%w: template larger than region", vision.ErrNotFound)
	}

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(gray, tgray, &result, gocv.TmCcoeffNormed, mask)
	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
	score := float64(maxVal)

	box := image.Rect(maxLoc.X, maxLoc.Y, maxLoc.X+tgray.Cols(), maxLoc.Y+tgray.Rows())
	label := fmt.Sprintf("score %.3f / %.2f", score, s.Params.Threshold)
	if !vision.Accept(score, s.Params.Threshold) {
		snapshot(ctx, s.Sink, "template_miss", src, []image.Rectangle{box}, nil, label)
		return vision.Candidate{}, fmt.Errorf("%w: best score %.3f below %.2f", vision.ErrNotFound, score, s.Params.Threshold)
	}
	c := center(box)
	snapshot(ctx, s.Sink, "template", src, []image.Rectangle{box}, &c, label)

	cand := candidateFrom(region, bounds.Dx(), bounds.Dy(), blob{box: box}, s.Name())
	cand.Score = score
	return cand, nil
}
